// Package sqldriver implements the storage boundary over any SQL database
// supported by ent's dialect/sql builders. The sqlite and postgres packages
// embed it after opening their connections.
package sqldriver

import (
	"context"
	stdsql "database/sql"
	"errors"
	"fmt"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/grove/pkg/storage/sqldriver/migrate"
)

// batchSize bounds the rows of one multi-row insert so statements stay under
// every supported database's bind variable limit.
const batchSize = 100

// Driver provides storage operations over an ent SQL driver. It is
// database-agnostic and can be embedded by specific drivers.
type Driver struct {
	drv *entsql.Driver
}

// New wraps an opened ent SQL driver.
func New(drv *entsql.Driver) *Driver {
	return &Driver{drv: drv}
}

// Migrate creates the schema, leaving existing tables and data in place.
func (d *Driver) Migrate(ctx context.Context) error {
	return migrate.Create(ctx, d.drv)
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.drv.Close()
}

func (d *Driver) builder() *entsql.DialectBuilder {
	return entsql.Dialect(d.drv.Dialect())
}

// withTx runs fn in a transaction, committing when it returns nil.
func (d *Driver) withTx(ctx context.Context, fn func(tx dialect.Tx) error) error {
	tx, err := d.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			err = errors.Join(err, fmt.Errorf("rolling back: %w", rerr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

type querier interface {
	Query() (string, []any)
}

// exec runs a statement and returns the number of affected rows.
func exec(ctx context.Context, eq dialect.ExecQuerier, q querier) (int64, error) {
	query, args := q.Query()
	var res stdsql.Result
	if err := eq.Exec(ctx, query, args, &res); err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// scan runs a query and calls fn for every row.
func scan(ctx context.Context, eq dialect.ExecQuerier, q querier, fn func(rows *entsql.Rows) error) error {
	query, args := q.Query()
	rows := &entsql.Rows{}
	if err := eq.Query(ctx, query, args, rows); err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := fn(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

// exists reports whether a query returns any row.
func exists(ctx context.Context, eq dialect.ExecQuerier, q querier) (bool, error) {
	found := false
	err := scan(ctx, eq, q, func(*entsql.Rows) error {
		found = true
		return nil
	})
	return found, err
}

// insertBatched inserts rows into table in chunks of batchSize.
func (d *Driver) insertBatched(ctx context.Context, eq dialect.ExecQuerier, table string, columns []string, rows [][]any) error {
	for start := 0; start < len(rows); start += batchSize {
		end := min(start+batchSize, len(rows))
		ins := d.builder().Insert(table).Columns(columns...)
		for _, row := range rows[start:end] {
			ins.Values(row...)
		}
		if _, err := exec(ctx, eq, ins); err != nil {
			return fmt.Errorf("inserting into %s: %w", table, err)
		}
	}
	return nil
}
