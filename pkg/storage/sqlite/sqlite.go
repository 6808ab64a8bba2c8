// Package sqlite provides a SQLite-backed storage driver using ent's SQL
// dialect.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/grove/pkg/storage/sqldriver"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteDriver implements the storage boundary using SQLite via the shared
// SQL driver.
type SQLiteDriver struct {
	*sqldriver.Driver
}

// NewSQLiteDriver creates a new SQLite-backed driver.
// The dbPath can be a file path or ":memory:" for an in-memory database.
func NewSQLiteDriver(ctx context.Context, dbPath string) (*SQLiteDriver, error) {
	// Open the database using the github.com/mattn/go-sqlite3 driver (registered as "sqlite3")
	db, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers; one connection keeps transactions from
	// tripping over each other with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	// Wrap the database connection with ent's SQL driver
	drv := sqldriver.New(entsql.OpenDB(dialect.SQLite, db))

	// Create any missing tables, columns and indexes
	if err := drv.Migrate(ctx); err != nil {
		drv.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteDriver{Driver: drv}, nil
}

// dsn enables foreign keys, which ent's migrator requires, and gives every
// in-memory database a unique shared-cache name.
func dsn(dbPath string) string {
	if dbPath == MemoryPath {
		return "file:" + uuid.NewString() + "?mode=memory&cache=shared&_fk=1"
	}

	sep := "?"
	if strings.Contains(dbPath, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(dbPath, "file:") {
		dbPath = "file:" + dbPath
	}
	return dbPath + sep + "_fk=1"
}
