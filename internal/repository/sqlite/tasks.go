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

type taskRow struct {
	ID                int64          `db:"id"`
	Title             string         `db:"title"`
	Description       sql.NullString `db:"description"`
	Date              time.Time      `db:"date"`
	Completed         bool           `db:"completed"`
	IsRecurring       bool           `db:"is_recurring"`
	RecurrencePattern sql.NullString `db:"recurrence_pattern"`
	CollectionID      int64          `db:"collection_id"`
	ParentTaskID      sql.NullInt64  `db:"parent_task_id"`
	CreatedAt         time.Time      `db:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at"`
}

func (r taskRow) toModel() *models.Task {
	task := &models.Task{
		ID:           r.ID,
		Title:        r.Title,
		Date:         r.Date,
		Completed:    r.Completed,
		IsRecurring:  r.IsRecurring,
		CollectionID: r.CollectionID,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.Description.Valid {
		task.Description = &r.Description.String
	}
	if r.RecurrencePattern.Valid {
		task.RecurrencePattern = &r.RecurrencePattern.String
	}
	if r.ParentTaskID.Valid {
		task.ParentTaskID = &r.ParentTaskID.Int64
	}
	return task
}

type taskRepository struct {
	db *sqlx.DB
}

func NewTaskRepository(db *sqlx.DB) repository.TaskRepository {
	return &taskRepository{db: db}
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
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	res, err := r.db.ExecContext(
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
	)
	if err != nil {
		return mapError(err)
	}

	task.ID, err = res.LastInsertId()
	return err
}

func (r *taskRepository) FindByID(ctx context.Context, id int64) (*models.Task, error) {
	var row taskRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM tasks WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}

	task := row.toModel()
	task.Subtasks, err = r.FindSubtasks(ctx, id)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) FindByCollectionID(ctx context.Context, collectionID int64) ([]*models.Task, error) {
	return r.selectTasks(ctx, `SELECT * FROM tasks WHERE collection_id = ? ORDER BY id`, collectionID)
}

func (r *taskRepository) FindTopLevelByCollectionID(ctx context.Context, collectionID int64) ([]*models.Task, error) {
	tasks, err := r.FindByCollectionID(ctx, collectionID)
	if err != nil {
		return nil, err
	}
	return repository.NestSubtasks(tasks), nil
}

func (r *taskRepository) FindSubtasks(ctx context.Context, parentID int64) ([]*models.Task, error) {
	return r.selectTasks(ctx, `SELECT * FROM tasks WHERE parent_task_id = ? ORDER BY id`, parentID)
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task) error {
	const updateTaskQuery = `
UPDATE tasks
SET title = ?,
    description = ?,
    date = ?,
    completed = ?,
    is_recurring = ?,
    recurrence_pattern = ?,
    collection_id = ?,
    parent_task_id = ?,
    updated_at = ?
WHERE id = ?
`
	res, err := r.db.ExecContext(
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
	return requireAffected(res)
}

func (r *taskRepository) MoveSubtree(ctx context.Context, rootID, collectionID int64) error {
	const moveSubtreeQuery = `
WITH RECURSIVE subtree(id) AS (
    SELECT id FROM tasks WHERE parent_task_id = ?
    UNION ALL
    SELECT tasks.id FROM tasks JOIN subtree ON tasks.parent_task_id = subtree.id
)
UPDATE tasks
SET collection_id = ?
WHERE id IN (SELECT id FROM subtree)
`
	_, err := r.db.ExecContext(ctx, moveSubtreeQuery, rootID, collectionID)
	if err != nil {
		return mapError(err)
	}
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (r *taskRepository) selectTasks(ctx context.Context, query string, args ...any) ([]*models.Task, error) {
	var rows []taskRow
	err := r.db.SelectContext(ctx, &rows, query, args...)
	if err != nil {
		return nil, err
	}

	tasks := make([]*models.Task, len(rows))
	for i, row := range rows {
		tasks[i] = row.toModel()
	}
	return tasks, nil
}
