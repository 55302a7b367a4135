package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-todo-collections/internal/models"
	"github.com/adanyl0v/go-todo-collections/internal/repository"
)

type taskServiceImpl struct {
	logger      zerolog.Logger
	collections repository.CollectionRepository
	tasks       repository.TaskRepository
}

func NewTaskService(
	logger zerolog.Logger,
	collections repository.CollectionRepository,
	tasks repository.TaskRepository,
) TaskService {
	return &taskServiceImpl{
		logger:      logger,
		collections: collections,
		tasks:       tasks,
	}
}

func (s *taskServiceImpl) CreateTask(ctx context.Context, params CreateTaskParams) (*models.Task, error) {
	_, err := s.collections.FindByID(ctx, params.CollectionID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("collection_id", params.CollectionID).
			Msg("failed to select collection")
		return nil, notFound(ResourceCollection, params.CollectionID, err)
	}

	if params.ParentTaskID != nil {
		err = s.checkParentCollection(ctx, *params.ParentTaskID, params.CollectionID)
		if err != nil {
			return nil, err
		}
	}

	now := time.Now()
	task := &models.Task{
		Title:             params.Title,
		Description:       params.Description,
		Date:              params.Date,
		Completed:         params.Completed,
		IsRecurring:       params.IsRecurring,
		RecurrencePattern: params.RecurrencePattern,
		CollectionID:      params.CollectionID,
		ParentTaskID:      params.ParentTaskID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	err = s.tasks.Create(ctx, task)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("collection_id", params.CollectionID).
			Msg("failed to insert task")
		return nil, notFound(ResourceCollection, params.CollectionID, err)
	}

	s.logger.Info().
		Int64("task_id", task.ID).
		Int64("collection_id", task.CollectionID).
		Msg("created task")
	return task, nil
}

func (s *taskServiceImpl) GetTaskByID(ctx context.Context, id int64) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("task_id", id).
			Msg("failed to select task")
		return nil, notFound(ResourceTask, id, err)
	}

	s.logger.Debug().
		Int64("task_id", id).
		Int("subtasks", len(task.Subtasks)).
		Msg("selected task")
	return task, nil
}

func (s *taskServiceImpl) GetTasksByCollectionID(ctx context.Context, collectionID int64, completed *bool) ([]*models.Task, error) {
	_, err := s.collections.FindByID(ctx, collectionID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("collection_id", collectionID).
			Msg("failed to select collection")
		return nil, notFound(ResourceCollection, collectionID, err)
	}

	tasks, err := s.tasks.FindTopLevelByCollectionID(ctx, collectionID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("collection_id", collectionID).
			Msg("failed to select tasks by collection id")
		return nil, err
	}

	if completed != nil {
		filtered := make([]*models.Task, 0, len(tasks))
		for _, task := range tasks {
			if task.Completed == *completed {
				filtered = append(filtered, task)
			}
		}
		tasks = filtered
	}

	s.logger.Debug().
		Int("count", len(tasks)).
		Int64("collection_id", collectionID).
		Msg("selected tasks by collection id")
	return tasks, nil
}

func (s *taskServiceImpl) UpdateTask(ctx context.Context, params UpdateTaskParams) (*models.Task, error) {
	task, err := s.tasks.FindByID(ctx, params.ID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("task_id", params.ID).
			Msg("failed to select task")
		return nil, notFound(ResourceTask, params.ID, err)
	}

	previousCollectionID := task.CollectionID
	if params.CollectionID != nil {
		_, err = s.collections.FindByID(ctx, *params.CollectionID)
		if err != nil {
			s.logger.Error().
				Err(err).
				Int64("collection_id", *params.CollectionID).
				Msg("failed to select collection")
			return nil, notFound(ResourceCollection, *params.CollectionID, err)
		}
		task.CollectionID = *params.CollectionID
	}

	switch {
	case params.DetachParent:
		task.ParentTaskID = nil
	case params.ParentTaskID != nil:
		err = s.checkParent(ctx, task.ID, *params.ParentTaskID)
		if err != nil {
			return nil, err
		}
		task.ParentTaskID = params.ParentTaskID
	}

	moved := task.CollectionID != previousCollectionID
	if task.ParentTaskID != nil && (moved || params.ParentTaskID != nil) {
		err = s.checkParentCollection(ctx, *task.ParentTaskID, task.CollectionID)
		if err != nil {
			return nil, err
		}
	}

	if params.Title != nil {
		task.Title = *params.Title
	}
	if params.Description != nil {
		task.Description = params.Description
	}
	if params.Date != nil {
		task.Date = *params.Date
	}
	if params.IsRecurring != nil {
		task.IsRecurring = *params.IsRecurring
	}
	if params.RecurrencePattern != nil {
		task.RecurrencePattern = params.RecurrencePattern
	}
	if params.Completed != nil {
		task.Completed = *params.Completed
		if task.Completed {
			err = s.completeSubtasks(ctx, task)
			if err != nil {
				return nil, err
			}
		}
	}
	task.UpdatedAt = time.Now()

	err = s.tasks.Update(ctx, task)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("task_id", task.ID).
			Msg("failed to update task")
		return nil, notFound(ResourceTask, task.ID, err)
	}

	if moved {
		err = s.tasks.MoveSubtree(ctx, task.ID, task.CollectionID)
		if err != nil {
			s.logger.Error().
				Err(err).
				Int64("task_id", task.ID).
				Int64("collection_id", task.CollectionID).
				Msg("failed to move subtasks")
			return nil, err
		}
		for _, subtask := range task.Subtasks {
			subtask.CollectionID = task.CollectionID
		}

		s.logger.Debug().
			Int64("task_id", task.ID).
			Int64("from_collection_id", previousCollectionID).
			Int64("to_collection_id", task.CollectionID).
			Msg("moved task subtree")
	}

	s.logger.Info().
		Int64("task_id", task.ID).
		Msg("updated task")
	return task, nil
}

// completeSubtasks marks every direct subtask of task as completed through
// UpdateTask, so deeper descendants are completed as well. Subtasks deleted
// in the meantime are skipped.
func (s *taskServiceImpl) completeSubtasks(ctx context.Context, task *models.Task) error {
	completed := true
	for _, subtask := range task.Subtasks {
		updated, err := s.UpdateTask(ctx, UpdateTaskParams{
			ID:        subtask.ID,
			Completed: &completed,
		})
		if err != nil {
			if IsNotFound(err) {
				s.logger.Warn().
					Int64("task_id", subtask.ID).
					Msg("subtask vanished during cascade")
				continue
			}
			return err
		}
		*subtask = *updated
	}

	s.logger.Debug().
		Int64("task_id", task.ID).
		Int("subtasks", len(task.Subtasks)).
		Msg("completed subtasks")
	return nil
}

// checkParent verifies that parentID exists and that making it the parent
// of taskID would not turn taskID into its own ancestor.
func (s *taskServiceImpl) checkParent(ctx context.Context, taskID, parentID int64) error {
	visited := make(map[int64]struct{})
	for id := parentID; ; {
		if id == taskID {
			s.logger.Error().
				Int64("task_id", taskID).
				Int64("parent_task_id", parentID).
				Msg("parent assignment creates a cycle")
			return &ValidationError{
				Field:   "parentTaskId",
				Message: "task cannot be its own ancestor",
			}
		}
		if _, ok := visited[id]; ok {
			return nil
		}
		visited[id] = struct{}{}

		ancestor, err := s.tasks.FindByID(ctx, id)
		if err != nil {
			s.logger.Error().
				Err(err).
				Int64("parent_task_id", id).
				Msg("failed to select parent task")
			return notFound(ResourceParentTask, id, err)
		}
		if ancestor.ParentTaskID == nil {
			return nil
		}
		id = *ancestor.ParentTaskID
	}
}

// checkParentCollection verifies that the parent exists and lives in the
// collection of its future child.
func (s *taskServiceImpl) checkParentCollection(ctx context.Context, parentID, collectionID int64) error {
	parent, err := s.tasks.FindByID(ctx, parentID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("parent_task_id", parentID).
			Msg("failed to select parent task")
		return notFound(ResourceParentTask, parentID, err)
	}

	if parent.CollectionID != collectionID {
		s.logger.Error().
			Int64("parent_task_id", parentID).
			Int64("parent_collection_id", parent.CollectionID).
			Int64("collection_id", collectionID).
			Msg("parent task belongs to another collection")
		return &ValidationError{
			Field:   "parentTaskId",
			Message: "parent task belongs to another collection",
		}
	}
	return nil
}

func (s *taskServiceImpl) DeleteTask(ctx context.Context, id int64) error {
	err := s.tasks.Delete(ctx, id)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("task_id", id).
			Msg("failed to delete task")
		return notFound(ResourceTask, id, err)
	}

	s.logger.Info().
		Int64("task_id", id).
		Msg("deleted task")
	return nil
}

func (s *taskServiceImpl) CreateSubtask(ctx context.Context, parentID int64, params CreateSubtaskParams) (*models.Task, error) {
	parent, err := s.tasks.FindByID(ctx, parentID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("parent_task_id", parentID).
			Msg("failed to select parent task")
		return nil, notFound(ResourceParentTask, parentID, err)
	}

	date := params.Date
	if date.IsZero() {
		date = time.Now()
	}

	return s.CreateTask(ctx, CreateTaskParams{
		Title:             params.Title,
		Description:       params.Description,
		Date:              date,
		Completed:         params.Completed,
		IsRecurring:       params.IsRecurring,
		RecurrencePattern: params.RecurrencePattern,
		CollectionID:      parent.CollectionID,
		ParentTaskID:      &parent.ID,
	})
}

func (s *taskServiceImpl) GetSubtasks(ctx context.Context, parentID int64) ([]*models.Task, error) {
	parent, err := s.tasks.FindByID(ctx, parentID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("task_id", parentID).
			Msg("failed to select task")
		return nil, notFound(ResourceTask, parentID, err)
	}

	s.logger.Debug().
		Int64("task_id", parentID).
		Int("count", len(parent.Subtasks)).
		Msg("selected subtasks")
	return parent.Subtasks, nil
}

func (s *taskServiceImpl) UpdateSubtask(ctx context.Context, parentID int64, params UpdateTaskParams) (*models.Task, error) {
	err := s.checkSubtask(ctx, parentID, params.ID)
	if err != nil {
		return nil, err
	}
	return s.UpdateTask(ctx, params)
}

func (s *taskServiceImpl) DeleteSubtask(ctx context.Context, parentID, subtaskID int64) error {
	err := s.checkSubtask(ctx, parentID, subtaskID)
	if err != nil {
		return err
	}
	return s.DeleteTask(ctx, subtaskID)
}

func (s *taskServiceImpl) checkSubtask(ctx context.Context, parentID, subtaskID int64) error {
	subtask, err := s.tasks.FindByID(ctx, subtaskID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("subtask_id", subtaskID).
			Msg("failed to select subtask")
		return notFound(ResourceSubtask, subtaskID, err)
	}

	if subtask.ParentTaskID == nil || *subtask.ParentTaskID != parentID {
		s.logger.Error().
			Int64("subtask_id", subtaskID).
			Int64("parent_task_id", parentID).
			Msg("subtask is not a child of this parent")
		return &NotFoundError{Resource: ResourceSubtask, ID: subtaskID}
	}
	return nil
}
