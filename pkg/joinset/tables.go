package joinset

// Table describes where the rows of one kind live.
type Table struct {
	Name    string
	Columns []string
}

// SessionTable records every stored set so leaked sets can be swept.
const SessionTable = "join_sessions"

// QueryIDColumn is the leading column of every join table.
const QueryIDColumn = "query_id"

// Tables is the storage layout contract for staged rows. Columns are listed
// without the leading query id, in the order Row values are produced.
var Tables = map[Kind]Table{
	KindArtifact: {Name: "join_artifact", Columns: []string{"art_id", "branch_id"}},
	KindChar:     {Name: "join_char", Columns: []string{"value"}},
	KindTxGamma:  {Name: "join_tx", Columns: []string{"transaction_id", "gamma_id"}},
	KindTag:      {Name: "join_tag", Columns: []string{"tag"}},
	KindGamma:    {Name: "join_gamma", Columns: []string{"gamma_id"}},
}
