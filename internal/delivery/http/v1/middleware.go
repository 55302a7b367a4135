package v1

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDCtxKey = "request_id"
)

// HandleRequestLogging tags the request with an id, echoed back in the
// X-Request-ID header, and writes one access log line once it completes.
func (h *handlerImpl) HandleRequestLogging(c *gin.Context) {
	requestID := c.GetHeader(requestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDCtxKey, requestID)
	c.Header(requestIDHeader, requestID)

	start := time.Now()
	c.Next()

	status := c.Writer.Status()
	event := h.logger.Info()
	switch {
	case status >= http.StatusInternalServerError:
		event = h.logger.Error()
	case status >= http.StatusBadRequest:
		event = h.logger.Warn()
	}
	event.
		Str("request_id", requestID).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status", status).
		Dur("latency", time.Since(start)).
		Str("client_ip", c.ClientIP()).
		Msg("handled request")
}

func (h *handlerImpl) HandleNoRoute(c *gin.Context) {
	abort(c, newNotFoundError(errUnknownRoute.Error()))
}

func (h *handlerImpl) HandleNoMethod(c *gin.Context) {
	abort(c, newStatusTextError(http.StatusMethodNotAllowed))
}

func (h *handlerImpl) HandleHealth(c *gin.Context) {
	err := h.pinger.Ping(c)
	if err != nil {
		h.logger.Error().
			Err(err).
			Msg("failed to ping storage")
		abort(c, newStatusTextError(http.StatusServiceUnavailable))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
