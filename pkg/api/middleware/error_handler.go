package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/simflowlab/simflow/pkg/api/dto"
	"github.com/simflowlab/simflow/pkg/models"
)

// ErrorHandler recovers panics and renders errors that handlers left on
// the context. A handler that already wrote a response keeps it;
// leftover errors then only feed the request logger.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				c.JSON(http.StatusInternalServerError, dto.ErrorResponse{
					Error:   "Internal Server Error",
					Message: "An unexpected error occurred",
					Code:    "INTERNAL_ERROR",
				})
				c.Abort()
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status, code := httpStatusFor(err)
		c.JSON(status, dto.ErrorResponse{
			Error:   http.StatusText(status),
			Message: err.Error(),
			Code:    code,
		})
	}
}

// httpStatusFor maps the task lifecycle error types onto HTTP statuses
func httpStatusFor(err error) (int, string) {
	var submitErr *models.SubmissionError
	var cancelErr *models.CancellationError
	var timeoutErr *models.TimeoutError

	switch {
	case errors.Is(err, models.ErrTaskNotFound):
		return http.StatusNotFound, "TASK_NOT_FOUND"
	case errors.As(err, &submitErr):
		return http.StatusBadRequest, "INVALID_TASK"
	case errors.As(err, &cancelErr):
		return http.StatusConflict, "CANCEL_REJECTED"
	case errors.As(err, &timeoutErr):
		return http.StatusGatewayTimeout, "TASK_TIMEOUT"
	case errors.Is(err, models.ErrQueueUnavailable):
		return http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}

// AbortWithError aborts the request with a coded error response
func AbortWithError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    code,
	})
	c.Abort()
}

// AbortWithErrorDetails aborts the request with per-field error details
func AbortWithErrorDetails(c *gin.Context, statusCode int, code, message string, details map[string]interface{}) {
	c.JSON(statusCode, dto.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    code,
		Details: details,
	})
	c.Abort()
}
