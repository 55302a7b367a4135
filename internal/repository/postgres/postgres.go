// Package postgres implements the repositories on top of a pgx pool.
package postgres

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adanyl0v/go-todo-collections/internal/repository"
)

//go:embed schema.sql
var schema string

// Migrate creates the tables if they are missing and, when seed is set,
// inserts the default collections into an empty collections table.
func Migrate(ctx context.Context, pool *pgxpool.Pool, seed bool) error {
	_, err := pool.Exec(ctx, schema)
	if err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	if !seed {
		return nil
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var count int64
	err = tx.QueryRow(ctx, `SELECT count(*) FROM collections`).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to count collections: %w", err)
	}
	if count > 0 {
		return nil
	}

	const insertCollectionQuery = `
INSERT INTO collections (name, is_favorite, created_at, updated_at)
VALUES ($1, FALSE, $2, $2)
`
	now := time.Now()
	for _, name := range repository.DefaultCollections {
		_, err = tx.Exec(ctx, insertCollectionQuery, name, now)
		if err != nil {
			return fmt.Errorf("failed to seed collection %q: %w", name, err)
		}
	}
	return tx.Commit(ctx)
}

// mapError translates driver errors into repository errors. A foreign key
// violation means the referenced collection or parent was deleted
// concurrently.
func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.ForeignKeyViolation {
		return fmt.Errorf("%w: %s", repository.ErrNotFound, pgErr.ConstraintName)
	}
	return err
}
