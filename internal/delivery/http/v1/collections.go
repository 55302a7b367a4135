package v1

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/go-todo-collections/internal/models"
	"github.com/adanyl0v/go-todo-collections/internal/services"
)

type collectionResponse struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	IsFavorite     bool      `json:"isFavorite"`
	CompletedTasks int       `json:"completedTasks"`
	TotalTasks     int       `json:"totalTasks"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func newCollectionResponse(collection *models.Collection) collectionResponse {
	return collectionResponse{
		ID:             collection.ID,
		Name:           collection.Name,
		IsFavorite:     collection.IsFavorite,
		CompletedTasks: collection.CompletedTasks,
		TotalTasks:     collection.TotalTasks,
		CreatedAt:      collection.CreatedAt,
		UpdatedAt:      collection.UpdatedAt,
	}
}

type createCollectionRequest struct {
	Name       string `json:"name" binding:"required,max=100"`
	IsFavorite bool   `json:"isFavorite"`
}

type updateCollectionRequest struct {
	Name       *string `json:"name" binding:"omitempty,min=1,max=100"`
	IsFavorite *bool   `json:"isFavorite"`
}

func (r *updateCollectionRequest) empty() bool {
	return r.Name == nil && r.IsFavorite == nil
}

func (h *handlerImpl) HandleGetCollections(c *gin.Context) {
	collections, err := h.collections.GetCollections(c)
	if err != nil {
		h.abortWithError(c, err)
		return
	}

	resp := make([]collectionResponse, 0, len(collections))
	for _, collection := range collections {
		resp = append(resp, newCollectionResponse(collection))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handlerImpl) HandleCreateCollection(c *gin.Context) {
	var req createCollectionRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Msg("failed to bind json")
		h.abortWithBindError(c, errInvalidRequestBody.Error(), err)
		return
	}

	collection, err := h.collections.CreateCollection(c, services.CreateCollectionParams{
		Name:       req.Name,
		IsFavorite: req.IsFavorite,
	})
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newCollectionResponse(collection))
}

func (h *handlerImpl) HandleGetCollection(c *gin.Context) {
	id, ok := h.bindID(c, "id")
	if !ok {
		return
	}

	collection, err := h.collections.GetCollectionByID(c, id)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCollectionResponse(collection))
}

func (h *handlerImpl) HandleUpdateCollection(c *gin.Context) {
	id, ok := h.bindID(c, "id")
	if !ok {
		return
	}

	var req updateCollectionRequest
	err := c.ShouldBindJSON(&req)
	if err != nil {
		h.logger.Warn().
			Err(err).
			Msg("failed to bind json")
		h.abortWithBindError(c, errInvalidRequestBody.Error(), err)
		return
	}
	if req.empty() {
		h.abortWithBindError(c, errEmptyPatch.Error(), nil)
		return
	}

	collection, err := h.collections.UpdateCollection(c, services.UpdateCollectionParams{
		ID:         id,
		Name:       req.Name,
		IsFavorite: req.IsFavorite,
	})
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newCollectionResponse(collection))
}

func (h *handlerImpl) HandleDeleteCollection(c *gin.Context) {
	id, ok := h.bindID(c, "id")
	if !ok {
		return
	}

	err := h.collections.DeleteCollection(c, id)
	if err != nil {
		h.abortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// bindID parses a positive integer path parameter, aborting with 400
// otherwise.
func (h *handlerImpl) bindID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		h.abortWithBindError(c, errInvalidID.Error(), err)
		return 0, false
	}
	return id, true
}
