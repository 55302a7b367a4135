// Package repository declares the storage contract of the collections and
// tasks tables. Both backends enforce ON DELETE CASCADE from collections to
// tasks and from a task to its subtasks.
package repository

import (
	"context"
	"errors"

	"github.com/adanyl0v/go-todo-collections/internal/models"
)

// ErrNotFound is returned when a row does not exist, or when a referenced row
// disappeared between the check and the write.
var ErrNotFound = errors.New("record not found")

type CollectionRepository interface {
	// Create inserts the collection and sets its ID.
	Create(ctx context.Context, collection *models.Collection) error
	FindAll(ctx context.Context) ([]*models.Collection, error)
	FindByID(ctx context.Context, id int64) (*models.Collection, error)
	// Update writes name, is_favorite and updated_at.
	Update(ctx context.Context, collection *models.Collection) error
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

type TaskRepository interface {
	// Create inserts the task and sets its ID.
	Create(ctx context.Context, task *models.Task) error
	// FindByID returns the task with its direct subtasks loaded.
	FindByID(ctx context.Context, id int64) (*models.Task, error)
	// FindByCollectionID returns every task of the collection, subtasks
	// included, as a flat list.
	FindByCollectionID(ctx context.Context, collectionID int64) ([]*models.Task, error)
	// FindTopLevelByCollectionID returns the tasks of the collection without
	// a parent, with their subtask trees attached.
	FindTopLevelByCollectionID(ctx context.Context, collectionID int64) ([]*models.Task, error)
	FindSubtasks(ctx context.Context, parentID int64) ([]*models.Task, error)
	// Update overwrites every mutable column of the task.
	Update(ctx context.Context, task *models.Task) error
	// MoveSubtree sets the collection of every descendant of rootID.
	MoveSubtree(ctx context.Context, rootID, collectionID int64) error
	Delete(ctx context.Context, id int64) error
}
