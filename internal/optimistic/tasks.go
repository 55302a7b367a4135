package optimistic

import (
	"context"

	"github.com/adanyl0v/go-todo-collections/internal/client"
)

func taskKeys(collectionIDs ...int64) []Key {
	keys := []Key{CollectionsKey()}
	for _, id := range collectionIDs {
		keys = append(keys, CollectionKey(id), TasksKey(id))
	}
	return keys
}

// CreateTask inserts a provisional task into the cached task tree of its
// collection and counts it in the collection stats.
func (s *Synchronizer) CreateTask(ctx context.Context, in NewTask) (Task, error) {
	if in.CollectionID.IsProvisional() || (in.ParentTaskID != nil && in.ParentTaskID.IsProvisional()) {
		return Task{}, ErrProvisional
	}

	collectionID := in.CollectionID.Value()
	now := s.now()
	provisional := Task{
		ID:                s.ids.next(),
		Title:             in.Title,
		Description:       cloneString(in.Description),
		Date:              in.Date,
		Completed:         in.Completed,
		IsRecurring:       in.IsRecurring,
		RecurrencePattern: cloneString(in.RecurrencePattern),
		CollectionID:      collectionID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	req := client.CreateTaskRequest{
		Title:             in.Title,
		Description:       in.Description,
		Date:              in.Date,
		Completed:         in.Completed,
		IsRecurring:       in.IsRecurring,
		RecurrencePattern: in.RecurrencePattern,
		CollectionID:      collectionID,
	}
	if in.ParentTaskID != nil {
		parentID := in.ParentTaskID.Value()
		provisional.ParentTaskID = &parentID
		req.ParentTaskID = &parentID
	}

	reqCtx := s.trackCreate(ctx, provisional.ID)
	m, err := s.begin("create task", taskKeys(collectionID), func() {
		s.insertTaskLocked(provisional)
		completed := 0
		if provisional.Completed {
			completed = 1
		}
		s.adjustStatsLocked(collectionID, 1, completed)
	})
	if err != nil {
		s.finishCreate(provisional.ID)
		return Task{}, err
	}

	created, err := s.api.CreateTask(reqCtx, req)
	if s.finishCreate(provisional.ID) {
		if err == nil {
			s.compensate(m.name, func(ctx context.Context) error {
				return s.api.DeleteTask(ctx, created.ID)
			})
		}
		s.commit(m, nil)
		return Task{}, ErrCancelled
	}
	if err != nil {
		s.rollback(m, err)
		return Task{}, err
	}

	task := taskFromClient(*created)
	s.commit(m, func() {
		if tasks, ok := s.tasksLocked(collectionID); ok {
			replaceTask(tasks, provisional.ID, task)
		}
	})

	s.logger.Info().
		Int64("task_id", created.ID).
		Int64("collection_id", collectionID).
		Msg("created task")
	return task, nil
}

// UpdateTask merges the patch into the cached task of the collection.
// Completing a task completes its cached subtasks as well, moving it to
// another collection carries its subtree and stats along.
func (s *Synchronizer) UpdateTask(ctx context.Context, collectionID int64, id ID, patch TaskPatch) (Task, error) {
	if id.IsProvisional() || patch.hasProvisional() {
		return Task{}, ErrProvisional
	}

	target := collectionID
	if patch.CollectionID != nil {
		target = patch.CollectionID.Value()
	}

	m, err := s.begin("update task", taskKeys(collectionID, target), func() {
		s.applyTaskPatchLocked(collectionID, target, id, patch)
	})
	if err != nil {
		return Task{}, err
	}

	updated, err := s.api.UpdateTask(ctx, id.Value(), patch.request())
	if err != nil {
		s.rollback(m, err)
		return Task{}, err
	}

	task := taskFromClient(*updated)
	s.commit(m, func() {
		if tasks, ok := s.tasksLocked(target); ok {
			current := findTask(tasks, id)
			if current != nil {
				subtasks := current.Subtasks
				*current = task
				current.Subtasks = subtasks
			}
		}
	})
	return task, nil
}

func (s *Synchronizer) applyTaskPatchLocked(collectionID, target int64, id ID, patch TaskPatch) {
	tasks, ok := s.tasksLocked(collectionID)
	if !ok {
		return
	}
	task := findTask(tasks, id)
	if task == nil {
		return
	}

	if patch.Title != nil {
		task.Title = *patch.Title
	}
	if patch.Description != nil {
		task.Description = cloneString(patch.Description)
	}
	if patch.Date != nil {
		task.Date = *patch.Date
	}
	if patch.IsRecurring != nil {
		task.IsRecurring = *patch.IsRecurring
	}
	if patch.RecurrencePattern != nil {
		task.RecurrencePattern = cloneString(patch.RecurrencePattern)
	}
	task.UpdatedAt = s.now()

	if patch.Completed != nil {
		switch {
		case *patch.Completed:
			s.adjustStatsLocked(collectionID, 0, completeSubtree(task))
		case task.Completed:
			task.Completed = false
			s.adjustStatsLocked(collectionID, 0, -1)
		}
	}

	reparent := patch.DetachParent || patch.ParentTaskID != nil
	if target == collectionID && !reparent {
		return
	}

	tasks, removed := removeTask(tasks, id)
	s.setLocked(TasksKey(collectionID), tasks)

	switch {
	case patch.DetachParent:
		removed.ParentTaskID = nil
	case patch.ParentTaskID != nil:
		parentID := patch.ParentTaskID.Value()
		removed.ParentTaskID = &parentID
	}
	if target != collectionID {
		total, completed := subtreeStats(removed)
		s.adjustStatsLocked(collectionID, -total, -completed)
		s.adjustStatsLocked(target, total, completed)
		moveSubtree(removed, target)
	}
	s.insertTaskLocked(*removed)
}

// insertTaskLocked adds task to the cached tree of its collection, under
// its parent when the parent is cached. Subtasks of uncached parents are
// left out.
func (s *Synchronizer) insertTaskLocked(task Task) {
	tasks, ok := s.tasksLocked(task.CollectionID)
	if !ok {
		return
	}
	if task.ParentTaskID == nil {
		s.setLocked(TasksKey(task.CollectionID), append(tasks, task))
		return
	}

	parent := findTask(tasks, Confirmed(*task.ParentTaskID))
	if parent != nil {
		parent.Subtasks = append(parent.Subtasks, task)
	}
}

// DeleteTask removes the task and its subtasks from the cached tree and
// subtracts them from the collection stats. Deleting a provisional task
// cancels its pending create instead of sending a request.
func (s *Synchronizer) DeleteTask(ctx context.Context, collectionID int64, id ID) error {
	if id.IsProvisional() {
		return s.cancelTask(collectionID, id)
	}

	m, err := s.begin("delete task", taskKeys(collectionID), func() {
		s.removeTaskLocked(collectionID, id)
	})
	if err != nil {
		return err
	}

	err = s.api.DeleteTask(ctx, id.Value())
	if err != nil {
		s.rollback(m, err)
		return err
	}
	s.commit(m, nil)

	s.logger.Info().
		Int64("task_id", id.Value()).
		Int64("collection_id", collectionID).
		Msg("deleted task")
	return nil
}

func (s *Synchronizer) cancelTask(collectionID int64, id ID) error {
	var cancelled bool
	s.withLockedKeys(taskKeys(collectionID), func() {
		cancelled = s.cancelCreateLocked(id)
		if cancelled {
			s.removeTaskLocked(collectionID, id)
		}
	})
	if !cancelled {
		return ErrProvisional
	}

	s.logger.Debug().
		Stringer("task_id", id).
		Int64("collection_id", collectionID).
		Msg("cancelled pending task create")
	return nil
}

func (s *Synchronizer) removeTaskLocked(collectionID int64, id ID) {
	tasks, ok := s.tasksLocked(collectionID)
	if !ok {
		return
	}
	tasks, removed := removeTask(tasks, id)
	if removed == nil {
		return
	}
	s.setLocked(TasksKey(collectionID), tasks)

	total, completed := subtreeStats(removed)
	s.adjustStatsLocked(collectionID, -total, -completed)
}
