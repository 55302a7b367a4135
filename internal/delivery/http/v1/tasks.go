package v1

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/go-todo-collections/internal/models"
	"github.com/adanyl0v/go-todo-collections/internal/services"
)

type taskResponse struct {
	ID                int64          `json:"id"`
	Title             string         `json:"title"`
	Description       *string        `json:"description"`
	Date              time.Time      `json:"date"`
	Completed         bool           `json:"completed"`
	IsRecurring       bool           `json:"isRecurring"`
	RecurrencePattern *string        `json:"recurrencePattern"`
	CollectionID      int64          `json:"collectionId"`
	ParentTaskID      *int64         `json:"parentTaskId"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
	Subtasks          []taskResponse `json:"subtasks"`
}

func newTaskResponse(task *models.Task) taskResponse {
	return taskResponse{
		ID:                task.ID,
		Title:             task.Title,
		Description:       task.Description,
		Date:              task.Date,
		Completed:         task.Completed,
		IsRecurring:       task.IsRecurring,
		RecurrencePattern: task.RecurrencePattern,
		CollectionID:      task.CollectionID,
		ParentTaskID:      task.ParentTaskID,
		CreatedAt:         task.CreatedAt,
		UpdatedAt:         task.UpdatedAt,
		Subtasks:          newTaskResponses(task.Subtasks),
	}
}

// newTaskResponses never returns nil so that an empty list is encoded as [].
func newTaskResponses(tasks []*models.Task) []taskResponse {
	resp := make([]taskResponse, 0, len(tasks))
	for _, task := range tasks {
		resp = append(resp, newTaskResponse(task))
	}
	return resp
}

type createTaskRequest struct {
	Title             string     `json:"title" binding:"required,max=255"`
	Description       *string    `json:"description"`
	Date              *time.Time `json:"date" binding:"required"`
	Completed         bool       `json:"completed"`
	IsRecurring       bool       `json:"isRecurring"`
	RecurrencePattern *string    `json:"recurrencePattern"`
	CollectionID      int64      `json:"collectionId" binding:"required,gt=0"`
	ParentTaskID      *int64     `json:"parentTaskId" binding:"omitempty,gt=0"`
}

// optionalID tells an absent JSON field apart from an explicit null.
type optionalID struct {
	Set   bool
	Value *int64
}

func (o *optionalID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}

	var id int64
	err := json.Unmarshal(data, &id)
	if err != nil {
		return err
	}
	o.Value = &id
	return nil
}

type updateTaskRequest struct {
	Title             *string    `json:"title" binding:"omitempty,min=1,max=255"`
	Description       *string    `json:"description"`
	Date              *time.Time `json:"date"`
	Completed         *bool      `json:"completed"`
	IsRecurring       *bool      `json:"isRecurring"`
	RecurrencePattern *string    `json:"recurrencePattern"`
	CollectionID      *int64     `json:"collectionId" binding:"omitempty,gt=0"`
	ParentTaskID      optionalID `json:"parentTaskId"`
}

func (r *updateTaskRequest) empty() bool {
	return r.Title == nil &&
		r.Description == nil &&
		r.Date == nil &&
		r.Completed == nil &&
		r.IsRecurring == nil &&
		r.RecurrencePattern == nil &&
		r.CollectionID == nil &&
		!r.ParentTaskID.Set
}

func (r *updateTaskRequest) params(id int64) services.UpdateTaskParams {
	params := services.UpdateTaskParams{
		ID:                id,
		Title:             r.Title,
		Description:       r.Description,
		Date:              r.Date,
		Completed:         r.Completed,
		IsRecurring:       r.IsRecurring,
		RecurrencePattern: r.RecurrencePattern,
		CollectionID:      r.CollectionID,
	}
	if r.ParentTaskID.Set {
		params.ParentTaskID = r.ParentTaskID.Value
		params.DetachParent = r.ParentTaskID.Value == nil
	}
	return params
}

// bindUpdateTaskRequest binds a task patch, aborting with 400 on a malformed
// or empty body.
func (h *handlerImpl) bindUpdateTaskRequest(c *gin.Context) (*updateTaskRequest, bool) {
	var req updateTaskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Msg("failed to bind json")
		h.abortWithBindError(c, errInvalidRequestBody.Error(), err)
		return nil, false
	}
	if req.empty() {
		h.abortWithBindError(c, errEmptyPatch.Error(), nil)
		return nil, false
	}
	if req.ParentTaskID.Value != nil && *req.ParentTaskID.Value <= 0 {
		h.abortWithBindError(c, errInvalidID.Error(), nil)
		return nil, false
	}
	return &req, true
}

func (h *handlerImpl) HandleCreateTask(c *gin.Context) {
	var req createTaskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Msg("failed to bind json")
		h.abortWithBindError(c, errInvalidRequestBody.Error(), err)
		return
	}

	task, err := h.tasks.CreateTask(c, services.CreateTaskParams{
		Title:             req.Title,
		Description:       req.Description,
		Date:              *req.Date,
		Completed:         req.Completed,
		IsRecurring:       req.IsRecurring,
		RecurrencePattern: req.RecurrencePattern,
		CollectionID:      req.CollectionID,
		ParentTaskID:      req.ParentTaskID,
	})
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTaskResponse(task))
}

func (h *handlerImpl) HandleGetTask(c *gin.Context) {
	id, ok := h.bindID(c, "id")
	if !ok {
		return
	}

	task, err := h.tasks.GetTaskByID(c, id)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (h *handlerImpl) HandleUpdateTask(c *gin.Context) {
	id, ok := h.bindID(c, "id")
	if !ok {
		return
	}
	req, ok := h.bindUpdateTaskRequest(c)
	if !ok {
		return
	}

	task, err := h.tasks.UpdateTask(c, req.params(id))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(task))
}

func (h *handlerImpl) HandleDeleteTask(c *gin.Context) {
	id, ok := h.bindID(c, "id")
	if !ok {
		return
	}

	err := h.tasks.DeleteTask(c, id)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlerImpl) HandleGetTasksByCollection(c *gin.Context) {
	collectionID, ok := h.bindID(c, "collectionId")
	if !ok {
		return
	}

	var completed *bool
	switch c.Query("completed") {
	case "true":
		v := true
		completed = &v
	case "false":
		v := false
		completed = &v
	}

	tasks, err := h.tasks.GetTasksByCollectionID(c, collectionID, completed)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponses(tasks))
}
