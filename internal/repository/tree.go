package repository

import "github.com/adanyl0v/go-todo-collections/internal/models"

// NestSubtasks links a flat task list into trees and returns the tasks
// without a parent in input order. Subtasks whose parent is not in the list
// are dropped.
func NestSubtasks(tasks []*models.Task) []*models.Task {
	byID := make(map[int64]*models.Task, len(tasks))
	for _, task := range tasks {
		task.Subtasks = nil
		byID[task.ID] = task
	}

	roots := make([]*models.Task, 0, len(tasks))
	for _, task := range tasks {
		if task.ParentTaskID != nil {
			if parent, ok := byID[*task.ParentTaskID]; ok {
				parent.Subtasks = append(parent.Subtasks, task)
			}
			continue
		}
		roots = append(roots, task)
	}
	return roots
}
