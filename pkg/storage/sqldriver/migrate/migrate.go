// Package migrate holds the relational schema of the SQL storage drivers and
// applies it through ent's schema migrator.
package migrate

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
)

// Create creates every missing table, column and index. Existing data is
// left untouched.
func Create(ctx context.Context, drv dialect.Driver) error {
	m, err := schema.NewMigrate(drv)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}
	if err := m.Create(ctx, Tables...); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}
