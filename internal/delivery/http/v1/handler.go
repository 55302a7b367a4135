package v1

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-todo-collections/internal/services"
)

type Handler interface {
	HandleGetCollections(c *gin.Context)
	HandleCreateCollection(c *gin.Context)
	HandleGetCollection(c *gin.Context)
	HandleUpdateCollection(c *gin.Context)
	HandleDeleteCollection(c *gin.Context)

	HandleCreateTask(c *gin.Context)
	HandleGetTask(c *gin.Context)
	HandleUpdateTask(c *gin.Context)
	HandleDeleteTask(c *gin.Context)
	HandleGetTasksByCollection(c *gin.Context)

	HandleCreateSubtask(c *gin.Context)
	HandleGetSubtasks(c *gin.Context)
	HandleUpdateSubtask(c *gin.Context)
	HandleDeleteSubtask(c *gin.Context)

	HandleHealth(c *gin.Context)
	HandleRequestLogging(c *gin.Context)
	HandleNoRoute(c *gin.Context)
	HandleNoMethod(c *gin.Context)
}

// Pinger reports whether the storage behind the services is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type handlerImpl struct {
	logger      zerolog.Logger
	collections services.CollectionService
	tasks       services.TaskService
	pinger      Pinger
	// exposeErrors adds the internal error chain to error responses.
	exposeErrors bool
}

func New(
	logger zerolog.Logger,
	collectionService services.CollectionService,
	taskService services.TaskService,
	pinger Pinger,
	exposeErrors bool,
) Handler {
	return &handlerImpl{
		logger:       logger,
		collections:  collectionService,
		tasks:        taskService,
		pinger:       pinger,
		exposeErrors: exposeErrors,
	}
}

// RegisterRoutes mounts the collection and task resources at the root of
// router, matching the paths the web client calls.
func RegisterRoutes(router *gin.Engine, h Handler) {
	router.HandleMethodNotAllowed = true
	router.NoRoute(h.HandleNoRoute)
	router.NoMethod(h.HandleNoMethod)

	router.GET("/healthz", h.HandleHealth)

	collections := router.Group("/collections")
	collections.GET("", h.HandleGetCollections)
	collections.POST("", h.HandleCreateCollection)
	collections.GET("/:id", h.HandleGetCollection)
	collections.PATCH("/:id", h.HandleUpdateCollection)
	collections.DELETE("/:id", h.HandleDeleteCollection)

	tasks := router.Group("/tasks")
	tasks.POST("", h.HandleCreateTask)
	tasks.GET("/collection/:collectionId", h.HandleGetTasksByCollection)
	tasks.GET("/:id", h.HandleGetTask)
	tasks.PATCH("/:id", h.HandleUpdateTask)
	tasks.DELETE("/:id", h.HandleDeleteTask)
	tasks.GET("/:id/subtasks", h.HandleGetSubtasks)
	tasks.POST("/:id/subtasks", h.HandleCreateSubtask)
	tasks.PATCH("/:id/subtasks/:subtaskId", h.HandleUpdateSubtask)
	tasks.DELETE("/:id/subtasks/:subtaskId", h.HandleDeleteSubtask)
}
