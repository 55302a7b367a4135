package v1

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/adanyl0v/go-todo-collections/internal/services"
)

var (
	errInvalidRequestBody = errors.New("invalid request body")
	errInvalidID          = errors.New("invalid id")
	errEmptyPatch         = errors.New("at least one field must be provided")
	errUnknownRoute       = errors.New("Unknown route")
)

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

type errorResponse struct {
	Error apiError `json:"error"`
}

func newAPIError(code int, message string) apiError {
	return apiError{
		Code:    code,
		Message: message,
	}
}

func (e apiError) Error() string {
	return e.Message
}

func abort(c *gin.Context, err apiError) {
	c.AbortWithStatusJSON(err.Code, errorResponse{Error: err})
}

func newStatusTextError(status int) apiError {
	return newAPIError(status, http.StatusText(status))
}

func newBadRequestError(message string) apiError {
	return newAPIError(http.StatusBadRequest, message)
}

func newNotFoundError(message string) apiError {
	return newAPIError(http.StatusNotFound, message)
}

// abortWithError converts a service error into its HTTP form.
func (h *handlerImpl) abortWithError(c *gin.Context, err error) {
	var (
		notFound   *services.NotFoundError
		validation *services.ValidationError
		apiErr     apiError
	)
	switch {
	case errors.As(err, &notFound):
		apiErr = newNotFoundError(capitalize(notFound.Error()))
	case errors.As(err, &validation):
		apiErr = newBadRequestError(validation.Error())
	default:
		apiErr = newStatusTextError(http.StatusInternalServerError)
	}

	if h.exposeErrors {
		apiErr.Stack = err.Error()
	}
	abort(c, apiErr)
}

// abortWithBindError rejects a request whose body or parameters failed
// validation.
func (h *handlerImpl) abortWithBindError(c *gin.Context, message string, err error) {
	apiErr := newBadRequestError(message)
	if h.exposeErrors && err != nil {
		apiErr.Stack = err.Error()
	}
	abort(c, apiErr)
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}
