package sqldriver

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/papercomputeco/grove/pkg/storage"
	"github.com/papercomputeco/grove/pkg/storage/sqldriver/migrate"
)

// ReadSequence returns the last id handed out for a sequence.
func (d *Driver) ReadSequence(ctx context.Context, name string) (int64, error) {
	q := d.builder().Select("last_value").
		From(d.builder().Table(migrate.SequencesTable.Name)).
		Where(entsql.EQ("name", name))

	var (
		last  int64
		found bool
	)
	err := scan(ctx, d.drv, q, func(rows *entsql.Rows) error {
		found = true
		return rows.Scan(&last)
	})
	if err != nil {
		return 0, fmt.Errorf("reading sequence %s: %w", name, err)
	}
	if !found {
		return 0, storage.NotFoundError{Kind: "sequence", Key: name}
	}
	return last, nil
}

// CompareAndSwapSequence moves a sequence from prev to next if it still
// holds prev.
func (d *Driver) CompareAndSwapSequence(ctx context.Context, name string, prev, next int64) (bool, error) {
	q := d.builder().Update(migrate.SequencesTable.Name).
		Set("last_value", next).
		Where(entsql.And(
			entsql.EQ("name", name),
			entsql.EQ("last_value", prev),
		))

	n, err := exec(ctx, d.drv, q)
	if err != nil {
		return false, fmt.Errorf("updating sequence %s: %w", name, err)
	}
	return n == 1, nil
}

// CreateSequence creates a sequence whose last handed out id is start.
func (d *Driver) CreateSequence(ctx context.Context, name string, start int64) error {
	if _, err := d.ReadSequence(ctx, name); err == nil {
		return storage.AlreadyExistsError{Kind: "sequence", Key: name}
	}

	q := d.builder().Insert(migrate.SequencesTable.Name).
		Columns("name", "last_value").
		Values(name, start)
	if _, err := exec(ctx, d.drv, q); err != nil {
		return fmt.Errorf("creating sequence %s: %w", name, err)
	}
	return nil
}
