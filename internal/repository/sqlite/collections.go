package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/adanyl0v/go-todo-collections/internal/models"
	"github.com/adanyl0v/go-todo-collections/internal/repository"
)

type collectionRow struct {
	ID         int64     `db:"id"`
	Name       string    `db:"name"`
	IsFavorite bool      `db:"is_favorite"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

func (r collectionRow) toModel() *models.Collection {
	return &models.Collection{
		ID:         r.ID,
		Name:       r.Name,
		IsFavorite: r.IsFavorite,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
}

type collectionRepository struct {
	db *sqlx.DB
}

func NewCollectionRepository(db *sqlx.DB) repository.CollectionRepository {
	return &collectionRepository{db: db}
}

func (r *collectionRepository) Create(ctx context.Context, collection *models.Collection) error {
	const insertCollectionQuery = `
INSERT INTO collections (name, is_favorite, created_at, updated_at)
VALUES (?, ?, ?, ?)
`
	res, err := r.db.ExecContext(
		ctx,
		insertCollectionQuery,
		collection.Name,
		collection.IsFavorite,
		collection.CreatedAt,
		collection.UpdatedAt,
	)
	if err != nil {
		return mapError(err)
	}

	collection.ID, err = res.LastInsertId()
	return err
}

func (r *collectionRepository) FindAll(ctx context.Context) ([]*models.Collection, error) {
	var rows []collectionRow
	err := r.db.SelectContext(ctx, &rows, `SELECT * FROM collections ORDER BY id`)
	if err != nil {
		return nil, err
	}

	collections := make([]*models.Collection, len(rows))
	for i, row := range rows {
		collections[i] = row.toModel()
	}
	return collections, nil
}

func (r *collectionRepository) FindByID(ctx context.Context, id int64) (*models.Collection, error) {
	var row collectionRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM collections WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return row.toModel(), nil
}

func (r *collectionRepository) Update(ctx context.Context, collection *models.Collection) error {
	const updateCollectionQuery = `
UPDATE collections
SET name = ?,
    is_favorite = ?,
    updated_at = ?
WHERE id = ?
`
	res, err := r.db.ExecContext(
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
	return requireAffected(res)
}

func (r *collectionRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM collections WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *collectionRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNotFound
	}
	return nil
}
