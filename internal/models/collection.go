package models

import "time"

type Collection struct {
	ID         int64
	Name       string
	IsFavorite bool
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// Derived from the collection's task rows, never stored.
	CompletedTasks int
	TotalTasks     int
}
