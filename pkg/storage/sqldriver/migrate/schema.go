package migrate

import (
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"

	"github.com/papercomputeco/grove/pkg/joinset"
)

var (
	// SequencesColumns holds the columns for the "sequences" table.
	SequencesColumns = []*schema.Column{
		{Name: "name", Type: field.TypeString, Size: 64},
		{Name: "last_value", Type: field.TypeInt64},
	}
	// SequencesTable holds the schema information for the "sequences" table.
	SequencesTable = &schema.Table{
		Name:       "sequences",
		Columns:    SequencesColumns,
		PrimaryKey: []*schema.Column{SequencesColumns[0]},
	}

	// TransactionsColumns holds the columns for the "transactions" table.
	TransactionsColumns = []*schema.Column{
		{Name: "transaction_id", Type: field.TypeInt64},
		{Name: "branch_id", Type: field.TypeInt64},
		{Name: "tx_type", Type: field.TypeInt},
		{Name: "author", Type: field.TypeString, Default: ""},
		{Name: "comment", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "committed_at", Type: field.TypeTime},
	}
	// TransactionsTable holds the schema information for the "transactions" table.
	TransactionsTable = &schema.Table{
		Name:       "transactions",
		Columns:    TransactionsColumns,
		PrimaryKey: []*schema.Column{TransactionsColumns[0]},
		Indexes: []*schema.Index{
			{Name: "transaction_branch_id", Columns: []*schema.Column{TransactionsColumns[1]}},
		},
	}

	// BranchesColumns holds the columns for the "branches" table.
	BranchesColumns = []*schema.Column{
		{Name: "branch_id", Type: field.TypeInt64},
		{Name: "guid", Type: field.TypeString, Size: 36, Unique: true},
		{Name: "name", Type: field.TypeString},
		{Name: "branch_type", Type: field.TypeInt},
		{Name: "branch_state", Type: field.TypeInt},
		{Name: "archived", Type: field.TypeBool, Default: false},
		{Name: "parent_branch_id", Type: field.TypeInt64, Default: 0},
		{Name: "baseline_transaction_id", Type: field.TypeInt64, Default: 0},
		{Name: "parent_transaction_id", Type: field.TypeInt64, Default: 0},
	}
	// BranchesTable holds the schema information for the "branches" table.
	BranchesTable = &schema.Table{
		Name:       "branches",
		Columns:    BranchesColumns,
		PrimaryKey: []*schema.Column{BranchesColumns[0]},
	}

	// BranchAliasesColumns holds the columns for the "branch_aliases" table.
	BranchAliasesColumns = []*schema.Column{
		{Name: "branch_id", Type: field.TypeInt64},
		{Name: "alias", Type: field.TypeString},
	}
	// BranchAliasesTable holds the schema information for the "branch_aliases" table.
	BranchAliasesTable = &schema.Table{
		Name:       "branch_aliases",
		Columns:    BranchAliasesColumns,
		PrimaryKey: []*schema.Column{BranchAliasesColumns[0], BranchAliasesColumns[1]},
	}

	// MergeBranchesColumns holds the columns for the "merge_branches" table.
	MergeBranchesColumns = []*schema.Column{
		{Name: "merge_branch_id", Type: field.TypeInt64},
		{Name: "source_branch_id", Type: field.TypeInt64},
		{Name: "dest_branch_id", Type: field.TypeInt64},
	}
	// MergeBranchesTable holds the schema information for the "merge_branches" table.
	MergeBranchesTable = &schema.Table{
		Name:       "merge_branches",
		Columns:    MergeBranchesColumns,
		PrimaryKey: []*schema.Column{MergeBranchesColumns[0]},
	}

	// ArtifactVersionsColumns holds the columns for the "artifact_versions" table.
	ArtifactVersionsColumns = []*schema.Column{
		{Name: "branch_id", Type: field.TypeInt64},
		{Name: "gamma_id", Type: field.TypeInt64},
		{Name: "art_id", Type: field.TypeInt64},
		{Name: "guid", Type: field.TypeString, Size: 36},
		{Name: "art_type", Type: field.TypeString},
		{Name: "name", Type: field.TypeString},
		{Name: "transaction_id", Type: field.TypeInt64},
		{Name: "mod_type", Type: field.TypeInt},
		{Name: "is_current", Type: field.TypeBool},
	}
	// ArtifactVersionsTable holds the schema information for the "artifact_versions" table.
	ArtifactVersionsTable = &schema.Table{
		Name:       "artifact_versions",
		Columns:    ArtifactVersionsColumns,
		PrimaryKey: []*schema.Column{ArtifactVersionsColumns[0], ArtifactVersionsColumns[1]},
		Indexes: []*schema.Index{
			{Name: "artifactversion_branch_id_art_id_is_current", Columns: []*schema.Column{ArtifactVersionsColumns[0], ArtifactVersionsColumns[2], ArtifactVersionsColumns[8]}},
		},
	}

	// AttributeVersionsColumns holds the columns for the "attribute_versions" table.
	AttributeVersionsColumns = []*schema.Column{
		{Name: "branch_id", Type: field.TypeInt64},
		{Name: "gamma_id", Type: field.TypeInt64},
		{Name: "attr_id", Type: field.TypeInt64},
		{Name: "art_id", Type: field.TypeInt64},
		{Name: "attr_type", Type: field.TypeString},
		{Name: "value", Type: field.TypeString, Size: 2147483647},
		{Name: "uri", Type: field.TypeString, Default: ""},
		{Name: "transaction_id", Type: field.TypeInt64},
		{Name: "mod_type", Type: field.TypeInt},
		{Name: "is_current", Type: field.TypeBool},
	}
	// AttributeVersionsTable holds the schema information for the "attribute_versions" table.
	AttributeVersionsTable = &schema.Table{
		Name:       "attribute_versions",
		Columns:    AttributeVersionsColumns,
		PrimaryKey: []*schema.Column{AttributeVersionsColumns[0], AttributeVersionsColumns[1]},
		Indexes: []*schema.Index{
			{Name: "attributeversion_branch_id_art_id_is_current", Columns: []*schema.Column{AttributeVersionsColumns[0], AttributeVersionsColumns[3], AttributeVersionsColumns[9]}},
			{Name: "attributeversion_branch_id_attr_id", Columns: []*schema.Column{AttributeVersionsColumns[0], AttributeVersionsColumns[2]}},
		},
	}

	// RelationVersionsColumns holds the columns for the "relation_versions" table.
	RelationVersionsColumns = []*schema.Column{
		{Name: "branch_id", Type: field.TypeInt64},
		{Name: "gamma_id", Type: field.TypeInt64},
		{Name: "rel_link_id", Type: field.TypeInt64},
		{Name: "rel_type", Type: field.TypeString},
		{Name: "a_art_id", Type: field.TypeInt64},
		{Name: "b_art_id", Type: field.TypeInt64},
		{Name: "rationale", Type: field.TypeString, Size: 2147483647, Default: ""},
		{Name: "a_order", Type: field.TypeInt, Default: 0},
		{Name: "b_order", Type: field.TypeInt, Default: 0},
		{Name: "transaction_id", Type: field.TypeInt64},
		{Name: "mod_type", Type: field.TypeInt},
		{Name: "is_current", Type: field.TypeBool},
	}
	// RelationVersionsTable holds the schema information for the "relation_versions" table.
	RelationVersionsTable = &schema.Table{
		Name:       "relation_versions",
		Columns:    RelationVersionsColumns,
		PrimaryKey: []*schema.Column{RelationVersionsColumns[0], RelationVersionsColumns[1]},
		Indexes: []*schema.Index{
			{Name: "relationversion_branch_id_a_art_id", Columns: []*schema.Column{RelationVersionsColumns[0], RelationVersionsColumns[4]}},
			{Name: "relationversion_branch_id_b_art_id", Columns: []*schema.Column{RelationVersionsColumns[0], RelationVersionsColumns[5]}},
		},
	}

	// JoinSessionsColumns holds the columns for the "join_sessions" table.
	JoinSessionsColumns = []*schema.Column{
		{Name: joinset.QueryIDColumn, Type: field.TypeInt64},
		{Name: "kind", Type: field.TypeString, Size: 16},
		{Name: "issued_at", Type: field.TypeTime},
	}
	// JoinSessionsTable holds the schema information for the "join_sessions" table.
	JoinSessionsTable = &schema.Table{
		Name:       joinset.SessionTable,
		Columns:    JoinSessionsColumns,
		PrimaryKey: []*schema.Column{JoinSessionsColumns[0], JoinSessionsColumns[1]},
		Indexes: []*schema.Index{
			{Name: "joinsession_issued_at", Columns: []*schema.Column{JoinSessionsColumns[2]}},
		},
	}

	// Tables holds every table of the schema.
	Tables = append([]*schema.Table{
		SequencesTable,
		TransactionsTable,
		BranchesTable,
		BranchAliasesTable,
		MergeBranchesTable,
		ArtifactVersionsTable,
		AttributeVersionsTable,
		RelationVersionsTable,
		JoinSessionsTable,
	}, joinTables()...)
)

// joinTables builds one table per staged row shape from the joinset layout.
// Join rows carry no primary key; they are addressed by query id only.
func joinTables() []*schema.Table {
	var tables []*schema.Table
	for _, kind := range joinset.Kinds {
		layout := joinset.Tables[kind]
		queryID := &schema.Column{Name: joinset.QueryIDColumn, Type: field.TypeInt64}
		columns := []*schema.Column{queryID}
		for _, name := range layout.Columns {
			typ := field.TypeInt64
			if kind == joinset.KindChar || kind == joinset.KindTag {
				typ = field.TypeString
			}
			columns = append(columns, &schema.Column{Name: name, Type: typ})
		}
		tables = append(tables, &schema.Table{
			Name:    layout.Name,
			Columns: columns,
			Indexes: []*schema.Index{
				{Name: layout.Name + "_query_id", Columns: []*schema.Column{queryID}},
			},
		})
	}
	return tables
}
