package models

import "time"

type Task struct {
	ID                int64
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

	// Subtasks holds the direct children when the query loaded them.
	Subtasks []*Task
}

func (t *Task) IsSubtask() bool {
	return t.ParentTaskID != nil
}
