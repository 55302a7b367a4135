package optimistic

import (
	"time"

	"github.com/adanyl0v/go-todo-collections/internal/client"
)

type Collection struct {
	ID             ID
	Name           string
	IsFavorite     bool
	CompletedTasks int
	TotalTasks     int
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Task is a cached task. CollectionID and ParentTaskID always refer to
// confirmed entities.
type Task struct {
	ID                ID
	Title             string
	Description       *string
	Date              time.Time
	Completed         bool
	IsRecurring       bool
	RecurrencePattern *string
	CollectionID      int64
	ParentTaskID      *int64
	CreatedAt         time.Time
	UpdatedAt         time.Time
	Subtasks          []Task
}

// NewTask describes a task to create. ParentTaskID nests it under an
// existing task.
type NewTask struct {
	Title             string
	Description       *string
	Date              time.Time
	Completed         bool
	IsRecurring       bool
	RecurrencePattern *string
	CollectionID      ID
	ParentTaskID      *ID
}

// TaskPatch is a partial task update. CollectionID moves the task to
// another collection. DetachParent makes it a top-level task and wins over
// ParentTaskID.
type TaskPatch struct {
	Title             *string
	Description       *string
	Date              *time.Time
	Completed         *bool
	IsRecurring       *bool
	RecurrencePattern *string
	CollectionID      *ID
	ParentTaskID      *ID
	DetachParent      bool
}

func (p TaskPatch) request() client.UpdateTaskRequest {
	req := client.UpdateTaskRequest{
		Title:             p.Title,
		Description:       p.Description,
		Date:              p.Date,
		Completed:         p.Completed,
		IsRecurring:       p.IsRecurring,
		RecurrencePattern: p.RecurrencePattern,
		DetachParent:      p.DetachParent,
	}
	if p.CollectionID != nil {
		id := p.CollectionID.Value()
		req.CollectionID = &id
	}
	if p.ParentTaskID != nil {
		id := p.ParentTaskID.Value()
		req.ParentTaskID = &id
	}
	return req
}

func (p TaskPatch) hasProvisional() bool {
	return (p.CollectionID != nil && p.CollectionID.IsProvisional()) ||
		(p.ParentTaskID != nil && p.ParentTaskID.IsProvisional())
}

func collectionFromClient(c client.Collection) Collection {
	return Collection{
		ID:             Confirmed(c.ID),
		Name:           c.Name,
		IsFavorite:     c.IsFavorite,
		CompletedTasks: c.CompletedTasks,
		TotalTasks:     c.TotalTasks,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
}

func taskFromClient(t client.Task) Task {
	task := Task{
		ID:                Confirmed(t.ID),
		Title:             t.Title,
		Description:       t.Description,
		Date:              t.Date,
		Completed:         t.Completed,
		IsRecurring:       t.IsRecurring,
		RecurrencePattern: t.RecurrencePattern,
		CollectionID:      t.CollectionID,
		ParentTaskID:      t.ParentTaskID,
		CreatedAt:         t.CreatedAt,
		UpdatedAt:         t.UpdatedAt,
	}
	if len(t.Subtasks) > 0 {
		task.Subtasks = make([]Task, 0, len(t.Subtasks))
		for _, subtask := range t.Subtasks {
			task.Subtasks = append(task.Subtasks, taskFromClient(subtask))
		}
	}
	return task
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneInt64(n *int64) *int64 {
	if n == nil {
		return nil
	}
	v := *n
	return &v
}

func cloneTasks(tasks []Task) []Task {
	if tasks == nil {
		return nil
	}
	cloned := make([]Task, len(tasks))
	for i, task := range tasks {
		task.Description = cloneString(task.Description)
		task.RecurrencePattern = cloneString(task.RecurrencePattern)
		task.ParentTaskID = cloneInt64(task.ParentTaskID)
		task.Subtasks = cloneTasks(task.Subtasks)
		cloned[i] = task
	}
	return cloned
}

// cloneValue deep copies a cached value so callers never share memory with
// the cache.
func cloneValue(value any) any {
	switch v := value.(type) {
	case []Collection:
		return append([]Collection(nil), v...)
	case []Task:
		return cloneTasks(v)
	default:
		return value
	}
}

// confirmedValue strips provisional entities from a cached value. ok is
// false when the value itself is provisional.
func confirmedValue(value any) (any, bool) {
	switch v := value.(type) {
	case []Collection:
		confirmed := make([]Collection, 0, len(v))
		for _, collection := range v {
			if !collection.ID.IsProvisional() {
				confirmed = append(confirmed, collection)
			}
		}
		return confirmed, true
	case Collection:
		return v, !v.ID.IsProvisional()
	case []Task:
		return confirmedTasks(v), true
	default:
		return value, value != nil
	}
}

func confirmedTasks(tasks []Task) []Task {
	confirmed := make([]Task, 0, len(tasks))
	for _, task := range tasks {
		if task.ID.IsProvisional() {
			continue
		}
		task.Subtasks = confirmedTasks(task.Subtasks)
		confirmed = append(confirmed, task)
	}
	return confirmed
}
