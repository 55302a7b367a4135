package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/adanyl0v/go-todo-collections/internal/models"
	"github.com/adanyl0v/go-todo-collections/internal/repository"
)

const selectTasksQuery = `
SELECT id,
       title,
       description,
       date,
       completed,
       is_recurring,
       recurrence_pattern,
       collection_id,
       parent_task_id,
       created_at,
       updated_at
FROM tasks
`

type taskRepository struct {
	pgPool *pgxpool.Pool
}

func NewTaskRepository(pgPool *pgxpool.Pool) repository.TaskRepository {
	return &taskRepository{pgPool: pgPool}
}

func (r *taskRepository) Create(ctx context.Context, task *models.Task) error {
	const insertTaskQuery = `
INSERT INTO tasks (title,
                   description,
                   date,
                   completed,
                   is_recurring,
                   recurrence_pattern,
                   collection_id,
                   parent_task_id,
                   created_at,
                   updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING id
`
	err := r.pgPool.QueryRow(
		ctx,
		insertTaskQuery,
		task.Title,
		task.Description,
		task.Date,
		task.Completed,
		task.IsRecurring,
		task.RecurrencePattern,
		task.CollectionID,
		task.ParentTaskID,
		task.CreatedAt,
		task.UpdatedAt,
	).Scan(&task.ID)
	return mapError(err)
}

func (r *taskRepository) FindByID(ctx context.Context, id int64) (*models.Task, error) {
	task, err := scanTask(r.pgPool.QueryRow(ctx, selectTasksQuery+`WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}

	task.Subtasks, err = r.FindSubtasks(ctx, id)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) FindByCollectionID(ctx context.Context, collectionID int64) ([]*models.Task, error) {
	return r.query(ctx, selectTasksQuery+`WHERE collection_id = $1 ORDER BY id`, collectionID)
}

func (r *taskRepository) FindTopLevelByCollectionID(ctx context.Context, collectionID int64) ([]*models.Task, error) {
	tasks, err := r.FindByCollectionID(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	return repository.NestSubtasks(tasks), nil
}

func (r *taskRepository) FindSubtasks(ctx context.Context, parentID int64) ([]*models.Task, error) {
	return r.query(ctx, selectTasksQuery+`WHERE parent_task_id = $1 ORDER BY id`, parentID)
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task) error {
	const updateTaskQuery = `
UPDATE tasks
SET title = $1,
    description = $2,
    date = $3,
    completed = $4,
    is_recurring = $5,
    recurrence_pattern = $6,
    collection_id = $7,
    parent_task_id = $8,
    updated_at = $9
WHERE id = $10
`
	tag, err := r.pgPool.Exec(
		ctx,
		updateTaskQuery,
		task.Title,
		task.Description,
		task.Date,
		task.Completed,
		task.IsRecurring,
		task.RecurrencePattern,
		task.CollectionID,
		task.ParentTaskID,
		task.UpdatedAt,
		task.ID,
	)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *taskRepository) MoveSubtree(ctx context.Context, rootID, collectionID int64) error {
	const moveSubtreeQuery = `
WITH RECURSIVE subtree(id) AS (
    SELECT id FROM tasks WHERE parent_task_id = $1
    UNION ALL
    SELECT tasks.id FROM tasks JOIN subtree ON tasks.parent_task_id = subtree.id
)
UPDATE tasks
SET collection_id = $2
WHERE id IN (SELECT id FROM subtree)
`
	_, err := r.pgPool.Exec(ctx, moveSubtreeQuery, rootID, collectionID)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id int64) error {
	const deleteTaskQuery = `
DELETE FROM tasks
WHERE id = $1
`
	tag, err := r.pgPool.Exec(ctx, deleteTaskQuery, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *taskRepository) query(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	rows, err := r.pgPool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (*models.Task, error) {
		return scanTask(row)
	})
}

func scanTask(row pgx.Row) (*models.Task, error) {
	task := new(models.Task)
	err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&task.Date,
		&task.Completed,
		&task.IsRecurring,
		&task.RecurrencePattern,
		&task.CollectionID,
		&task.ParentTaskID,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}
