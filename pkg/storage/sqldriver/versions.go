package sqldriver

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/grove/pkg/artifact"
	"github.com/papercomputeco/grove/pkg/changeset"
	"github.com/papercomputeco/grove/pkg/joinset"
	"github.com/papercomputeco/grove/pkg/storage/sqldriver/migrate"
	"github.com/papercomputeco/grove/pkg/txcache"
)

var artifactColumns = []string{"branch_id", "gamma_id", "art_id", "guid", "art_type", "name", "transaction_id", "mod_type", "is_current"}

var attributeColumns = []string{"branch_id", "gamma_id", "attr_id", "art_id", "attr_type", "value", "uri", "transaction_id", "mod_type", "is_current"}

var relationColumns = []string{
	"branch_id", "gamma_id", "rel_link_id", "rel_type", "a_art_id", "b_art_id",
	"rationale", "a_order", "b_order", "transaction_id", "mod_type", "is_current",
}

// Commit stores the transaction record and every version in the change set
// in one database transaction. Each new version replaces its item's current
// version; older versions are kept.
func (d *Driver) Commit(ctx context.Context, rec txcache.Record, cs *changeset.ChangeSet) error {
	return d.withTx(ctx, func(tx dialect.Tx) error {
		if err := d.branchExists(ctx, tx, cs.BranchID); err != nil {
			return err
		}
		if err := d.insertTransaction(ctx, tx, rec); err != nil {
			return err
		}

		var artifacts, attributes, relations [][]any
		for _, a := range cs.Artifacts {
			if a.Versioned {
				retire := d.retire(migrate.ArtifactVersionsTable.Name, cs.BranchID,
					entsql.EQ("art_id", a.ID))
				if _, err := exec(ctx, tx, retire); err != nil {
					return fmt.Errorf("retiring artifact %d: %w", a.ID, err)
				}
				artifacts = append(artifacts, []any{
					cs.BranchID, a.GammaID, a.ID, a.GUID, a.Type, a.Name, rec.ID, int(a.ModType), true,
				})
			}

			for _, attr := range a.Attributes {
				retire := d.retire(migrate.AttributeVersionsTable.Name, cs.BranchID,
					entsql.EQ("attr_id", attr.ID))
				if _, err := exec(ctx, tx, retire); err != nil {
					return fmt.Errorf("retiring attribute %d: %w", attr.ID, err)
				}
				attributes = append(attributes, []any{
					cs.BranchID, attr.GammaID, attr.ID, a.ID, attr.Type, attr.Value, attr.URI, rec.ID, int(attr.ModType), true,
				})
			}
		}

		for _, r := range cs.Relations {
			retire := d.retire(migrate.RelationVersionsTable.Name, cs.BranchID, entsql.And(
				entsql.EQ("rel_type", r.Type),
				entsql.EQ("a_art_id", r.AArtifactID),
				entsql.EQ("b_art_id", r.BArtifactID),
			))
			if _, err := exec(ctx, tx, retire); err != nil {
				return fmt.Errorf("retiring relation %d: %w", r.ID, err)
			}
			relations = append(relations, []any{
				cs.BranchID, r.GammaID, r.ID, r.Type, r.AArtifactID, r.BArtifactID,
				r.Rationale, r.AOrder, r.BOrder, rec.ID, int(r.ModType), true,
			})
		}

		if err := d.insertBatched(ctx, tx, migrate.ArtifactVersionsTable.Name, artifactColumns, artifacts); err != nil {
			return err
		}
		if err := d.insertBatched(ctx, tx, migrate.AttributeVersionsTable.Name, attributeColumns, attributes); err != nil {
			return err
		}
		return d.insertBatched(ctx, tx, migrate.RelationVersionsTable.Name, relationColumns, relations)
	})
}

// retire marks the current version of an item as superseded.
func (d *Driver) retire(table string, branchID int64, item *entsql.Predicate) *entsql.UpdateBuilder {
	return d.builder().Update(table).
		Set("is_current", false).
		Where(entsql.And(
			entsql.EQ("branch_id", branchID),
			item,
			entsql.EQ("is_current", true),
		))
}

// LoadJoinedArtifacts returns the current versions of the artifacts staged
// in an artifact join, with their current attributes.
func (d *Driver) LoadJoinedArtifacts(ctx context.Context, queryID, branchID int64) ([]*artifact.Artifact, error) {
	b := d.builder()
	av := b.Table(migrate.ArtifactVersionsTable.Name).As("av")
	j := b.Table(joinset.Tables[joinset.KindArtifact].Name).As("j")

	q := b.Select(av.C("art_id"), av.C("guid"), av.C("art_type"), av.C("name"), av.C("gamma_id"), av.C("transaction_id"), av.C("mod_type")).
		From(av).
		Join(j).
		OnP(entsql.And(
			entsql.ColumnsEQ(av.C("art_id"), j.C("art_id")),
			entsql.ColumnsEQ(av.C("branch_id"), j.C("branch_id")),
		)).
		Where(entsql.And(
			entsql.EQ(j.C(joinset.QueryIDColumn), queryID),
			entsql.EQ(av.C("branch_id"), branchID),
			entsql.EQ(av.C("is_current"), true),
		)).
		OrderBy(av.C("art_id"))

	type artifactRow struct {
		id, gammaID, txID int64
		guid, typ, name   string
		mod               int
	}
	var rows []artifactRow
	err := scan(ctx, d.drv, q, func(r *entsql.Rows) error {
		var row artifactRow
		if err := r.Scan(&row.id, &row.guid, &row.typ, &row.name, &row.gammaID, &row.txID, &row.mod); err != nil {
			return err
		}
		rows = append(rows, row)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading joined artifacts: %w", err)
	}

	attrs, err := d.loadJoinedAttributes(ctx, queryID, branchID)
	if err != nil {
		return nil, err
	}

	out := make([]*artifact.Artifact, 0, len(rows))
	for _, row := range rows {
		out = append(out, artifact.Restore(row.id, row.guid, branchID, row.typ, row.name, row.gammaID, row.txID, artifact.ModType(row.mod), attrs[row.id]))
	}
	return out, nil
}

func (d *Driver) loadJoinedAttributes(ctx context.Context, queryID, branchID int64) (map[int64][]*artifact.Attribute, error) {
	b := d.builder()
	at := b.Table(migrate.AttributeVersionsTable.Name).As("at")
	j := b.Table(joinset.Tables[joinset.KindArtifact].Name).As("j")

	q := b.Select(at.C("attr_id"), at.C("art_id"), at.C("attr_type"), at.C("value"), at.C("uri"), at.C("gamma_id"), at.C("mod_type")).
		From(at).
		Join(j).
		OnP(entsql.And(
			entsql.ColumnsEQ(at.C("art_id"), j.C("art_id")),
			entsql.ColumnsEQ(at.C("branch_id"), j.C("branch_id")),
		)).
		Where(entsql.And(
			entsql.EQ(j.C(joinset.QueryIDColumn), queryID),
			entsql.EQ(at.C("branch_id"), branchID),
			entsql.EQ(at.C("is_current"), true),
		)).
		OrderBy(at.C("attr_id"))

	out := make(map[int64][]*artifact.Attribute)
	err := scan(ctx, d.drv, q, func(r *entsql.Rows) error {
		var (
			id, artID, gammaID int64
			typ, value, uri    string
			mod                int
		)
		if err := r.Scan(&id, &artID, &typ, &value, &uri, &gammaID, &mod); err != nil {
			return err
		}
		out[artID] = append(out[artID], artifact.RestoreAttribute(id, artID, typ, value, uri, gammaID, artifact.ModType(mod)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading joined attributes: %w", err)
	}
	return out, nil
}

// LoadJoinedRelations returns the current versions of every relation with an
// endpoint staged in an artifact join.
func (d *Driver) LoadJoinedRelations(ctx context.Context, queryID, branchID int64) ([]*artifact.Relation, error) {
	b := d.builder()
	rv := b.Table(migrate.RelationVersionsTable.Name).As("rv")
	j := b.Table(joinset.Tables[joinset.KindArtifact].Name).As("j")

	q := b.Select(rv.C("rel_link_id"), rv.C("rel_type"), rv.C("a_art_id"), rv.C("b_art_id"), rv.C("rationale"),
		rv.C("a_order"), rv.C("b_order"), rv.C("gamma_id"), rv.C("transaction_id"), rv.C("mod_type")).
		Distinct().
		From(rv).
		Join(j).
		OnP(entsql.And(
			entsql.Or(
				entsql.ColumnsEQ(rv.C("a_art_id"), j.C("art_id")),
				entsql.ColumnsEQ(rv.C("b_art_id"), j.C("art_id")),
			),
			entsql.ColumnsEQ(rv.C("branch_id"), j.C("branch_id")),
		)).
		Where(entsql.And(
			entsql.EQ(j.C(joinset.QueryIDColumn), queryID),
			entsql.EQ(rv.C("branch_id"), branchID),
			entsql.EQ(rv.C("is_current"), true),
		)).
		OrderBy(rv.C("rel_type"), rv.C("a_art_id"), rv.C("b_art_id"))

	var out []*artifact.Relation
	err := scan(ctx, d.drv, q, func(r *entsql.Rows) error {
		var (
			id, a, b, gammaID, txID int64
			typ, rationale          string
			aOrder, bOrder, mod     int
		)
		if err := r.Scan(&id, &typ, &a, &b, &rationale, &aOrder, &bOrder, &gammaID, &txID, &mod); err != nil {
			return err
		}
		out = append(out, artifact.RestoreRelation(id, typ, a, b, rationale, aOrder, bOrder, gammaID, txID, artifact.ModType(mod)))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading joined relations: %w", err)
	}
	return out, nil
}

// copyCurrent seeds a new branch with the parent's live current versions,
// stamped with the child's baseline transaction.
func (d *Driver) copyCurrent(ctx context.Context, tx dialect.Tx, parentID, childID, txID int64) error {
	live := func() *entsql.Predicate {
		return entsql.And(
			entsql.EQ("branch_id", parentID),
			entsql.EQ("is_current", true),
			entsql.NEQ("mod_type", int(artifact.Deleted)),
		)
	}

	copied := make(map[int64]struct{})
	var artifacts [][]any
	q := d.builder().Select("gamma_id", "art_id", "guid", "art_type", "name", "mod_type").
		From(d.builder().Table(migrate.ArtifactVersionsTable.Name)).
		Where(live())
	err := scan(ctx, tx, q, func(r *entsql.Rows) error {
		var (
			gammaID, artID  int64
			guid, typ, name string
			mod             int
		)
		if err := r.Scan(&gammaID, &artID, &guid, &typ, &name, &mod); err != nil {
			return err
		}
		copied[artID] = struct{}{}
		artifacts = append(artifacts, []any{childID, gammaID, artID, guid, typ, name, txID, mod, true})
		return nil
	})
	if err != nil {
		return fmt.Errorf("reading artifacts of branch %d: %w", parentID, err)
	}

	var attributes [][]any
	q = d.builder().Select("gamma_id", "attr_id", "art_id", "attr_type", "value", "uri", "mod_type").
		From(d.builder().Table(migrate.AttributeVersionsTable.Name)).
		Where(live())
	err = scan(ctx, tx, q, func(r *entsql.Rows) error {
		var (
			gammaID, attrID, artID int64
			typ, value, uri        string
			mod                    int
		)
		if err := r.Scan(&gammaID, &attrID, &artID, &typ, &value, &uri, &mod); err != nil {
			return err
		}
		if _, ok := copied[artID]; ok {
			attributes = append(attributes, []any{childID, gammaID, attrID, artID, typ, value, uri, txID, mod, true})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("reading attributes of branch %d: %w", parentID, err)
	}

	var relations [][]any
	q = d.builder().Select("gamma_id", "rel_link_id", "rel_type", "a_art_id", "b_art_id", "rationale", "a_order", "b_order", "mod_type").
		From(d.builder().Table(migrate.RelationVersionsTable.Name)).
		Where(live())
	err = scan(ctx, tx, q, func(r *entsql.Rows) error {
		var (
			gammaID, relID, a, b int64
			typ, rationale       string
			aOrder, bOrder, mod  int
		)
		if err := r.Scan(&gammaID, &relID, &typ, &a, &b, &rationale, &aOrder, &bOrder, &mod); err != nil {
			return err
		}
		relations = append(relations, []any{childID, gammaID, relID, typ, a, b, rationale, aOrder, bOrder, txID, mod, true})
		return nil
	})
	if err != nil {
		return fmt.Errorf("reading relations of branch %d: %w", parentID, err)
	}

	if err := d.insertBatched(ctx, tx, migrate.ArtifactVersionsTable.Name, artifactColumns, artifacts); err != nil {
		return err
	}
	if err := d.insertBatched(ctx, tx, migrate.AttributeVersionsTable.Name, attributeColumns, attributes); err != nil {
		return err
	}
	return d.insertBatched(ctx, tx, migrate.RelationVersionsTable.Name, relationColumns, relations)
}
