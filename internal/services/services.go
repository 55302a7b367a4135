package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/adanyl0v/go-todo-collections/internal/models"
	"github.com/adanyl0v/go-todo-collections/internal/repository"
)

const (
	ResourceCollection = "collection"
	ResourceTask       = "task"
	ResourceParentTask = "parent task"
	ResourceSubtask    = "subtask"
)

// NotFoundError reports that a referenced collection or task does not exist.
type NotFoundError struct {
	Resource string
	ID       int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// ValidationError reports input that passed schema validation but violates
// a relational rule.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsNotFound reports whether err is or wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var notFound *NotFoundError
	return errors.As(err, &notFound)
}

func notFound(resource string, id int64, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Resource: resource, ID: id}
	}
	return err
}

type CollectionService interface {
	// CreateCollection creates a collection with zero derived stats.
	// Duplicate names are allowed.
	CreateCollection(ctx context.Context, params CreateCollectionParams) (*models.Collection, error)

	// GetCollections returns every collection with its derived stats.
	GetCollections(ctx context.Context) ([]*models.Collection, error)

	// GetCollectionByID returns the collection with its derived stats or a
	// *NotFoundError.
	GetCollectionByID(ctx context.Context, id int64) (*models.Collection, error)

	// UpdateCollection merges the non-nil fields of params into the
	// collection and bumps its updated_at.
	UpdateCollection(ctx context.Context, params UpdateCollectionParams) (*models.Collection, error)

	// DeleteCollection deletes the collection. Its tasks are removed by the
	// storage-level cascade.
	DeleteCollection(ctx context.Context, id int64) error
}

type TaskService interface {
	// CreateTask creates a task in an existing collection, optionally under
	// an existing parent task.
	CreateTask(ctx context.Context, params CreateTaskParams) (*models.Task, error)

	// GetTaskByID returns the task with its direct subtasks.
	GetTaskByID(ctx context.Context, id int64) (*models.Task, error)

	// GetTasksByCollectionID returns the top-level tasks of the collection
	// with nested subtasks. A non-nil completed narrows the result by
	// completion state.
	GetTasksByCollectionID(ctx context.Context, collectionID int64, completed *bool) ([]*models.Task, error)

	// UpdateTask applies the patch. Setting completed to true completes
	// every subtask first.
	UpdateTask(ctx context.Context, params UpdateTaskParams) (*models.Task, error)

	// DeleteTask deletes the task and, through the storage cascade, its
	// descendants.
	DeleteTask(ctx context.Context, id int64) error

	CreateSubtask(ctx context.Context, parentID int64, params CreateSubtaskParams) (*models.Task, error)
	GetSubtasks(ctx context.Context, parentID int64) ([]*models.Task, error)
	// UpdateSubtask updates params.ID if it is a direct child of parentID.
	UpdateSubtask(ctx context.Context, parentID int64, params UpdateTaskParams) (*models.Task, error)
	DeleteSubtask(ctx context.Context, parentID, subtaskID int64) error
}

type CreateCollectionParams struct {
	Name       string
	IsFavorite bool
}

type UpdateCollectionParams struct {
	ID         int64
	Name       *string
	IsFavorite *bool
}

type CreateTaskParams struct {
	Title             string
	Description       *string
	Date              time.Time
	Completed         bool
	IsRecurring       bool
	RecurrencePattern *string
	CollectionID      int64
	ParentTaskID      *int64
}

// CreateSubtaskParams describes a subtask. The collection is inherited from
// the parent and a zero Date defaults to the current time.
type CreateSubtaskParams struct {
	Title             string
	Description       *string
	Date              time.Time
	Completed         bool
	IsRecurring       bool
	RecurrencePattern *string
}

type UpdateTaskParams struct {
	ID                int64
	Title             *string
	Description       *string
	Date              *time.Time
	Completed         *bool
	IsRecurring       *bool
	RecurrencePattern *string
	CollectionID      *int64
	ParentTaskID      *int64
	// DetachParent turns the task into a top-level task. It takes
	// precedence over ParentTaskID.
	DetachParent bool
}
