package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adanyl0v/go-todo-collections/internal/models"
	"github.com/adanyl0v/go-todo-collections/internal/repository"
)

type collectionRepository struct {
	pgPool *pgxpool.Pool
}

func NewCollectionRepository(pgPool *pgxpool.Pool) repository.CollectionRepository {
	return &collectionRepository{pgPool: pgPool}
}

func (r *collectionRepository) Create(ctx context.Context, collection *models.Collection) error {
	const insertCollectionQuery = `
INSERT INTO collections (name,
                         is_favorite,
                         created_at,
                         updated_at)
VALUES ($1, $2, $3, $4)
RETURNING id
`
	err := r.pgPool.QueryRow(
		ctx,
		insertCollectionQuery,
		collection.Name,
		collection.IsFavorite,
		collection.CreatedAt,
		collection.UpdatedAt,
	).Scan(&collection.ID)
	return mapError(err)
}

func (r *collectionRepository) FindAll(ctx context.Context) ([]*models.Collection, error) {
	const selectCollectionsQuery = `
SELECT id,
       name,
       is_favorite,
       created_at,
       updated_at
FROM collections
ORDER BY id
`
	rows, err := r.pgPool.Query(ctx, selectCollectionsQuery)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Collection, error) {
		return scanCollection(row)
	})
}

func (r *collectionRepository) FindByID(ctx context.Context, id int64) (*models.Collection, error) {
	const selectCollectionByIDQuery = `
SELECT id,
       name,
       is_favorite,
       created_at,
       updated_at
FROM collections
WHERE id = $1
`
	collection, err := scanCollection(r.pgPool.QueryRow(ctx, selectCollectionByIDQuery, id))
	if err != nil {
		return nil, mapError(err)
	}
	return collection, nil
}

func (r *collectionRepository) Update(ctx context.Context, collection *models.Collection) error {
	const updateCollectionQuery = `
UPDATE collections
SET name = $1,
    is_favorite = $2,
    updated_at = $3
WHERE id = $4
`
	tag, err := r.pgPool.Exec(
		ctx,
		updateCollectionQuery,
		collection.Name,
		collection.IsFavorite,
		collection.UpdatedAt,
		collection.ID,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *collectionRepository) Delete(ctx context.Context, id int64) error {
	const deleteCollectionQuery = `
DELETE FROM collections
WHERE id = $1
`
	tag, err := r.pgPool.Exec(ctx, deleteCollectionQuery, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *collectionRepository) Ping(ctx context.Context) error {
	return r.pgPool.Ping(ctx)
}

func scanCollection(row pgx.Row) (*models.Collection, error) {
	collection := new(models.Collection)
	err := row.Scan(
		&collection.ID,
		&collection.Name,
		&collection.IsFavorite,
		&collection.CreatedAt,
		&collection.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return collection, nil
}
