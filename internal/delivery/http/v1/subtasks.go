package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/go-todo-collections/internal/services"
)

type createSubtaskRequest struct {
	Title             string     `json:"title" binding:"required,max=255"`
	Description       *string    `json:"description"`
	Date              *time.Time `json:"date"`
	Completed         bool       `json:"completed"`
	IsRecurring       bool       `json:"isRecurring"`
	RecurrencePattern *string    `json:"recurrencePattern"`
}

func (h *handlerImpl) HandleCreateSubtask(c *gin.Context) {
	parentID, ok := h.bindID(c, "id")
	if !ok {
		return
	}

	var req createSubtaskRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Msg("failed to bind json")
		h.abortWithBindError(c, errInvalidRequestBody.Error(), err)
		return
	}

	params := services.CreateSubtaskParams{
		Title:             req.Title,
		Description:       req.Description,
		Completed:         req.Completed,
		IsRecurring:       req.IsRecurring,
		RecurrencePattern: req.RecurrencePattern,
	}
	if req.Date != nil {
		params.Date = *req.Date
	}

	subtask, err := h.tasks.CreateSubtask(c, parentID, params)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTaskResponse(subtask))
}

func (h *handlerImpl) HandleGetSubtasks(c *gin.Context) {
	parentID, ok := h.bindID(c, "id")
	if !ok {
		return
	}

	subtasks, err := h.tasks.GetSubtasks(c, parentID)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponses(subtasks))
}

func (h *handlerImpl) HandleUpdateSubtask(c *gin.Context) {
	parentID, ok := h.bindID(c, "id")
	if !ok {
		return
	}
	subtaskID, ok := h.bindID(c, "subtaskId")
	if !ok {
		return
	}
	req, ok := h.bindUpdateTaskRequest(c)
	if !ok {
		return
	}

	subtask, err := h.tasks.UpdateSubtask(c, parentID, req.params(subtaskID))
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTaskResponse(subtask))
}

func (h *handlerImpl) HandleDeleteSubtask(c *gin.Context) {
	parentID, ok := h.bindID(c, "id")
	if !ok {
		return
	}
	subtaskID, ok := h.bindID(c, "subtaskId")
	if !ok {
		return
	}

	err := h.tasks.DeleteSubtask(c, parentID, subtaskID)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
