package client

import (
	"encoding/json"
	"time"
)

type Collection struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	IsFavorite     bool      `json:"isFavorite"`
	CompletedTasks int       `json:"completedTasks"`
	TotalTasks     int       `json:"totalTasks"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

type Task struct {
	ID                int64     `json:"id"`
	Title             string    `json:"title"`
	Description       *string   `json:"description"`
	Date              time.Time `json:"date"`
	Completed         bool      `json:"completed"`
	IsRecurring       bool      `json:"isRecurring"`
	RecurrencePattern *string   `json:"recurrencePattern"`
	CollectionID      int64     `json:"collectionId"`
	ParentTaskID      *int64    `json:"parentTaskId"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
	Subtasks          []Task    `json:"subtasks"`
}

type CreateCollectionRequest struct {
	Name       string `json:"name"`
	IsFavorite bool   `json:"isFavorite"`
}

type UpdateCollectionRequest struct {
	Name       *string `json:"name,omitempty"`
	IsFavorite *bool   `json:"isFavorite,omitempty"`
}

type CreateTaskRequest struct {
	Title             string    `json:"title"`
	Description       *string   `json:"description,omitempty"`
	Date              time.Time `json:"date"`
	Completed         bool      `json:"completed"`
	IsRecurring       bool      `json:"isRecurring"`
	RecurrencePattern *string   `json:"recurrencePattern,omitempty"`
	CollectionID      int64     `json:"collectionId"`
	ParentTaskID      *int64    `json:"parentTaskId,omitempty"`
}

type CreateSubtaskRequest struct {
	Title             string     `json:"title"`
	Description       *string    `json:"description,omitempty"`
	Date              *time.Time `json:"date,omitempty"`
	Completed         bool       `json:"completed"`
	IsRecurring       bool       `json:"isRecurring"`
	RecurrencePattern *string    `json:"recurrencePattern,omitempty"`
}

// UpdateTaskRequest is a partial task update. Nil fields are left
// untouched. DetachParent sends an explicit null parentTaskId.
type UpdateTaskRequest struct {
	Title             *string    `json:"title,omitempty"`
	Description       *string    `json:"description,omitempty"`
	Date              *time.Time `json:"date,omitempty"`
	Completed         *bool      `json:"completed,omitempty"`
	IsRecurring       *bool      `json:"isRecurring,omitempty"`
	RecurrencePattern *string    `json:"recurrencePattern,omitempty"`
	CollectionID      *int64     `json:"collectionId,omitempty"`
	ParentTaskID      *int64     `json:"parentTaskId,omitempty"`
	DetachParent      bool       `json:"-"`
}

func (r UpdateTaskRequest) MarshalJSON() ([]byte, error) {
	type plain UpdateTaskRequest
	body := struct {
		plain
		ParentTaskID json.RawMessage `json:"parentTaskId,omitempty"`
	}{plain: plain(r)}

	switch {
	case r.DetachParent:
		body.ParentTaskID = json.RawMessage("null")
	case r.ParentTaskID != nil:
		raw, err := json.Marshal(*r.ParentTaskID)
		if err != nil {
			return nil, err
		}
		body.ParentTaskID = raw
	}
	return json.Marshal(body)
}

type errorBody struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Stack   string `json:"stack"`
	} `json:"error"`
}
