// Package sqlite implements the repositories on top of sqlx and go-sqlite3.
// It backs local runs without Postgres and every storage-level test.
package sqlite

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/adanyl0v/go-todo-collections/internal/repository"
)

//go:embed schema.sql
var schema string

// FileDSN returns a DSN for a database file with foreign keys enforced.
func FileDSN(path string) string {
	return fmt.Sprintf("file:%s?_fk=1&_busy_timeout=5000", path)
}

// MemoryDSN returns a DSN for a named in-memory database with foreign keys
// enforced. Connections opened with the same name share the database.
func MemoryDSN(name string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", name)
}

// Open connects to the database and applies the schema. A single connection
// is kept open so that in-memory databases survive and writes never contend.
func Open(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	_, err = db.ExecContext(ctx, schema)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return db, nil
}

// Seed inserts the default collections when the collections table is empty.
func Seed(ctx context.Context, db *sqlx.DB) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int64
	err = tx.GetContext(ctx, &count, `SELECT count(*) FROM collections`)
	if err != nil {
		return fmt.Errorf("failed to count collections: %w", err)
	}
	if count > 0 {
		return nil
	}

	const insertCollectionQuery = `
INSERT INTO collections (name, is_favorite, created_at, updated_at)
VALUES (?, FALSE, ?, ?)
`
	now := time.Now()
	for _, name := range repository.DefaultCollections {
		_, err = tx.ExecContext(ctx, insertCollectionQuery, name, now, now)
		if err != nil {
			return fmt.Errorf("failed to seed collection %q: %w", name, err)
		}
	}
	return tx.Commit()
}

func mapError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintForeignKey {
		return fmt.Errorf("%w: %s", repository.ErrNotFound, sqliteErr.Error())
	}
	return err
}
