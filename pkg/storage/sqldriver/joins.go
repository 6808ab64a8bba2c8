package sqldriver

import (
	"context"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/grove/pkg/joinset"
	"github.com/papercomputeco/grove/pkg/storage"
)

// InsertJoin records a staged set in the session table and writes its rows.
func (d *Driver) InsertJoin(ctx context.Context, kind joinset.Kind, queryID int64, issuedAt time.Time, rows [][]any) error {
	layout, ok := joinset.Tables[kind]
	if !ok {
		return fmt.Errorf("unknown join kind %q", kind)
	}

	return d.withTx(ctx, func(tx dialect.Tx) error {
		session := d.builder().Select(joinset.QueryIDColumn).
			From(d.builder().Table(joinset.SessionTable)).
			Where(entsql.And(
				entsql.EQ(joinset.QueryIDColumn, queryID),
				entsql.EQ("kind", string(kind)),
			))
		found, err := exists(ctx, tx, session)
		if err != nil {
			return fmt.Errorf("checking %s join %d: %w", kind, queryID, err)
		}
		if found {
			return storage.AlreadyExistsError{Kind: string(kind) + " join", Key: fmt.Sprint(queryID)}
		}

		ins := d.builder().Insert(joinset.SessionTable).
			Columns(joinset.QueryIDColumn, "kind", "issued_at").
			Values(queryID, string(kind), issuedAt.UTC())
		if _, err := exec(ctx, tx, ins); err != nil {
			return fmt.Errorf("recording %s join %d: %w", kind, queryID, err)
		}

		columns := append([]string{joinset.QueryIDColumn}, layout.Columns...)
		values := make([][]any, 0, len(rows))
		for _, row := range rows {
			values = append(values, append([]any{queryID}, row...))
		}
		return d.insertBatched(ctx, tx, layout.Name, columns, values)
	})
}

// DeleteJoin removes a staged set's rows and its session record.
func (d *Driver) DeleteJoin(ctx context.Context, kind joinset.Kind, queryID int64) error {
	layout, ok := joinset.Tables[kind]
	if !ok {
		return fmt.Errorf("unknown join kind %q", kind)
	}

	return d.withTx(ctx, func(tx dialect.Tx) error {
		rows := d.builder().Delete(layout.Name).Where(entsql.EQ(joinset.QueryIDColumn, queryID))
		if _, err := exec(ctx, tx, rows); err != nil {
			return fmt.Errorf("deleting %s join rows: %w", kind, err)
		}

		session := d.builder().Delete(joinset.SessionTable).Where(entsql.And(
			entsql.EQ(joinset.QueryIDColumn, queryID),
			entsql.EQ("kind", string(kind)),
		))
		if _, err := exec(ctx, tx, session); err != nil {
			return fmt.Errorf("deleting %s join session: %w", kind, err)
		}
		return nil
	})
}

// ExpiredJoins lists the sets issued before the cutoff, oldest first.
func (d *Driver) ExpiredJoins(ctx context.Context, before time.Time) ([]joinset.Handle, error) {
	q := d.builder().Select(joinset.QueryIDColumn, "kind", "issued_at").
		From(d.builder().Table(joinset.SessionTable)).
		Where(entsql.LT("issued_at", before.UTC())).
		OrderBy("issued_at")

	var handles []joinset.Handle
	err := scan(ctx, d.drv, q, func(rows *entsql.Rows) error {
		var (
			h    joinset.Handle
			kind string
		)
		if err := rows.Scan(&h.QueryID, &kind, &h.IssuedAt); err != nil {
			return err
		}
		h.Kind = joinset.Kind(kind)
		handles = append(handles, h)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing expired joins: %w", err)
	}
	return handles, nil
}
