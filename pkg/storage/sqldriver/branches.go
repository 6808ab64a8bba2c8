package sqldriver

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/grove/pkg/branch"
	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/storage/sqldriver/migrate"
	"github.com/papercomputeco/grove/pkg/txcache"
)

var transactionColumns = []string{"transaction_id", "branch_id", "tx_type", "author", "comment", "committed_at"}

var branchColumns = []string{
	"branch_id", "guid", "name", "branch_type", "branch_state", "archived",
	"parent_branch_id", "baseline_transaction_id", "parent_transaction_id",
}

// ListTransactions returns every transaction record ordered by id.
func (d *Driver) ListTransactions(ctx context.Context) ([]txcache.Record, error) {
	q := d.builder().Select(transactionColumns...).
		From(d.builder().Table(migrate.TransactionsTable.Name)).
		OrderBy("transaction_id")

	var records []txcache.Record
	err := scan(ctx, d.drv, q, func(rows *entsql.Rows) error {
		var (
			r   txcache.Record
			typ int
		)
		if err := rows.Scan(&r.ID, &r.BranchID, &typ, &r.Author, &r.Comment, &r.Time); err != nil {
			return err
		}
		r.Type = txcache.Type(typ)
		records = append(records, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	return records, nil
}

// ListBranches returns every branch row ordered by id.
func (d *Driver) ListBranches(ctx context.Context) ([]branch.Row, error) {
	q := d.builder().Select(branchColumns...).
		From(d.builder().Table(migrate.BranchesTable.Name)).
		OrderBy("branch_id")

	var out []branch.Row
	err := scan(ctx, d.drv, q, func(rows *entsql.Rows) error {
		var (
			r          branch.Row
			typ, state int
		)
		if err := rows.Scan(&r.ID, &r.GUID, &r.Name, &typ, &state, &r.Archived, &r.ParentID, &r.BaselineTxID, &r.SourceTxID); err != nil {
			return err
		}
		r.Type = branch.Type(typ)
		r.State = branch.State(state)
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing branches: %w", err)
	}
	return out, nil
}

// ListMergeBranches returns every merge association ordered by merge id.
func (d *Driver) ListMergeBranches(ctx context.Context) ([]branch.MergeRow, error) {
	q := d.builder().Select("merge_branch_id", "source_branch_id", "dest_branch_id").
		From(d.builder().Table(migrate.MergeBranchesTable.Name)).
		OrderBy("merge_branch_id")

	var out []branch.MergeRow
	err := scan(ctx, d.drv, q, func(rows *entsql.Rows) error {
		var r branch.MergeRow
		if err := rows.Scan(&r.MergeID, &r.SourceID, &r.DestinationID); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing merge branches: %w", err)
	}
	return out, nil
}

// ListBranchAliases returns every alias ordered by branch id.
func (d *Driver) ListBranchAliases(ctx context.Context) ([]branch.AliasRow, error) {
	q := d.builder().Select("branch_id", "alias").
		From(d.builder().Table(migrate.BranchAliasesTable.Name)).
		OrderBy("branch_id", "alias")

	var out []branch.AliasRow
	err := scan(ctx, d.drv, q, func(rows *entsql.Rows) error {
		var r branch.AliasRow
		if err := rows.Scan(&r.BranchID, &r.Alias); err != nil {
			return err
		}
		out = append(out, r)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing branch aliases: %w", err)
	}
	return out, nil
}

// UpdateBranch replaces the mutable columns of an existing branch.
func (d *Driver) UpdateBranch(ctx context.Context, row branch.Row) error {
	q := d.builder().Update(migrate.BranchesTable.Name).
		Set("name", row.Name).
		Set("branch_type", int(row.Type)).
		Set("branch_state", int(row.State)).
		Set("archived", row.Archived).
		Set("parent_branch_id", row.ParentID).
		Set("baseline_transaction_id", row.BaselineTxID).
		Set("parent_transaction_id", row.SourceTxID).
		Where(entsql.EQ("branch_id", row.ID))

	n, err := exec(ctx, d.drv, q)
	if err != nil {
		return fmt.Errorf("updating branch %d: %w", row.ID, err)
	}
	if n == 0 {
		return storage.NotFound("branch", row.ID)
	}
	return nil
}

// PutMergeBranch stores or replaces a merge association.
func (d *Driver) PutMergeBranch(ctx context.Context, row branch.MergeRow) error {
	return d.withTx(ctx, func(tx dialect.Tx) error {
		del := d.builder().Delete(migrate.MergeBranchesTable.Name).
			Where(entsql.EQ("merge_branch_id", row.MergeID))
		if _, err := exec(ctx, tx, del); err != nil {
			return fmt.Errorf("replacing merge branch %d: %w", row.MergeID, err)
		}

		ins := d.builder().Insert(migrate.MergeBranchesTable.Name).
			Columns("merge_branch_id", "source_branch_id", "dest_branch_id").
			Values(row.MergeID, row.SourceID, row.DestinationID)
		if _, err := exec(ctx, tx, ins); err != nil {
			return fmt.Errorf("storing merge branch %d: %w", row.MergeID, err)
		}
		return nil
	})
}

// ReplaceBranchAliases sets the full alias list of a branch.
func (d *Driver) ReplaceBranchAliases(ctx context.Context, branchID int64, aliases []string) error {
	return d.withTx(ctx, func(tx dialect.Tx) error {
		if err := d.branchExists(ctx, tx, branchID); err != nil {
			return err
		}

		del := d.builder().Delete(migrate.BranchAliasesTable.Name).
			Where(entsql.EQ("branch_id", branchID))
		if _, err := exec(ctx, tx, del); err != nil {
			return fmt.Errorf("clearing aliases of branch %d: %w", branchID, err)
		}

		rows := make([][]any, 0, len(aliases))
		for _, alias := range aliases {
			rows = append(rows, []any{branchID, alias})
		}
		return d.insertBatched(ctx, tx, migrate.BranchAliasesTable.Name, []string{"branch_id", "alias"}, rows)
	})
}

// CreateBranch stores a new branch with its baseline transaction and seeds it
// with the parent's live current versions.
func (d *Driver) CreateBranch(ctx context.Context, row branch.Row, baseline txcache.Record) error {
	return d.withTx(ctx, func(tx dialect.Tx) error {
		if err := d.branchExists(ctx, tx, row.ID); err == nil {
			return storage.AlreadyExistsError{Kind: "branch", Key: fmt.Sprint(row.ID)}
		}
		if row.ParentID != 0 {
			if err := d.branchExists(ctx, tx, row.ParentID); err != nil {
				return err
			}
		}

		if err := d.insertTransaction(ctx, tx, baseline); err != nil {
			return err
		}

		ins := d.builder().Insert(migrate.BranchesTable.Name).
			Columns(branchColumns...).
			Values(row.ID, row.GUID, row.Name, int(row.Type), int(row.State), row.Archived,
				row.ParentID, row.BaselineTxID, row.SourceTxID)
		if _, err := exec(ctx, tx, ins); err != nil {
			return fmt.Errorf("storing branch %d: %w", row.ID, err)
		}

		if row.ParentID == 0 {
			return nil
		}
		return d.copyCurrent(ctx, tx, row.ParentID, row.ID, baseline.ID)
	})
}

func (d *Driver) branchExists(ctx context.Context, eq dialect.ExecQuerier, id int64) error {
	q := d.builder().Select("branch_id").
		From(d.builder().Table(migrate.BranchesTable.Name)).
		Where(entsql.EQ("branch_id", id))
	found, err := exists(ctx, eq, q)
	if err != nil {
		return fmt.Errorf("reading branch %d: %w", id, err)
	}
	if !found {
		return storage.NotFound("branch", id)
	}
	return nil
}

func (d *Driver) insertTransaction(ctx context.Context, eq dialect.ExecQuerier, rec txcache.Record) error {
	q := d.builder().Select("transaction_id").
		From(d.builder().Table(migrate.TransactionsTable.Name)).
		Where(entsql.EQ("transaction_id", rec.ID))
	found, err := exists(ctx, eq, q)
	if err != nil {
		return fmt.Errorf("reading transaction %d: %w", rec.ID, err)
	}
	if found {
		return storage.AlreadyExistsError{Kind: "transaction", Key: fmt.Sprint(rec.ID)}
	}

	ins := d.builder().Insert(migrate.TransactionsTable.Name).
		Columns(transactionColumns...).
		Values(rec.ID, rec.BranchID, int(rec.Type), rec.Author, rec.Comment, rec.Time.UTC())
	if _, err := exec(ctx, eq, ins); err != nil {
		return fmt.Errorf("storing transaction %d: %w", rec.ID, err)
	}
	return nil
}
