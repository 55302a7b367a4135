package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/adanyl0v/go-todo-collections/internal/config"
	"github.com/adanyl0v/go-todo-collections/internal/delivery/http/v1"
	"github.com/adanyl0v/go-todo-collections/internal/repository"
	"github.com/adanyl0v/go-todo-collections/internal/services"
)

func MustListenAndServeHTTP() {
	cfg := config.Global()
	if cfg.Env != config.EnvLocal {
		gin.SetMode(gin.ReleaseMode)
	}

	httpCfg := cfg.HTTP

	router := NewRouter(
		globalLogger,
		globalCollectionRepository,
		globalTaskRepository,
		cfg.Env != config.EnvProd,
	)

	server := &http.Server{
		Addr:    net.JoinHostPort(httpCfg.Host, httpCfg.Port),
		Handler: router,
	}

	go func() {
		globalLogger.Info().
			Str("host", httpCfg.Host).
			Str("port", httpCfg.Port).
			Msg("setting up http server")
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			globalLogger.Error().
				Err(err).
				Msg("failed to listen and serve http")
			panic(err)
		}
	}()

	// kill (no params) sends SIGTERM, kill -2 sends SIGINT.
	// SIGKILL can't be caught.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	globalLogger.Info().
		Dur("timeout", httpCfg.ShutdownTimeout).
		Msg("shutting down http server")

	ctx, cancel := context.WithTimeout(context.Background(), httpCfg.ShutdownTimeout)
	defer cancel()

	err := server.Shutdown(ctx)
	if err != nil {
		globalLogger.Error().
			Err(err).
			Msg("failed to shutdown http server")
		panic(err)
	}
	globalLogger.Info().Msg("shut down http server")
}

// NewRouter builds the engine serving the collections API on top of the
// given repositories. exposeErrors adds the internal error chain to error
// responses.
func NewRouter(
	logger zerolog.Logger,
	collectionRepository repository.CollectionRepository,
	taskRepository repository.TaskRepository,
	exposeErrors bool,
) *gin.Engine {
	collectionService := services.NewCollectionService(logger, collectionRepository, taskRepository)
	taskService := services.NewTaskService(logger, collectionRepository, taskRepository)

	handler := v1.New(logger, collectionService, taskService, collectionRepository, exposeErrors)

	router := gin.New()
	router.Use(handler.HandleRequestLogging)
	router.Use(gin.Recovery())
	v1.RegisterRoutes(router, handler)
	return router
}
