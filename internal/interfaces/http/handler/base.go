package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/erp/commercesync/internal/domain/integration"
	"github.com/erp/commercesync/internal/infrastructure/scheduler"
	"github.com/erp/commercesync/internal/interfaces/http/dto"
)

// RequestIDKey is the context key for request ID
const RequestIDKey = "X-Request-ID"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader(RequestIDKey)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Accepted sends a 202 response for work that was queued
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// errorMapping ties a sentinel error to the code reported to clients
type errorMapping struct {
	target error
	code   string
}

var errorMappings = []errorMapping{
	{integration.ErrStoreNotFound, dto.ErrCodeNotFound},
	{integration.ErrStoreInactive, dto.ErrCodeInvalidState},
	{integration.ErrInvalidStoreID, dto.ErrCodeInvalidInput},
	{integration.ErrInvalidEntityType, dto.ErrCodeInvalidInput},
	{scheduler.ErrInvalidJob, dto.ErrCodeInvalidInput},
	{scheduler.ErrSchedulerNotRunning, dto.ErrCodeUnavailable},
	{scheduler.ErrQueueClosed, dto.ErrCodeUnavailable},
}

// HandleError converts domain and scheduler errors to HTTP responses.
// Anything unmapped is reported as an internal error without its message.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			h.Error(c, dto.GetHTTPStatus(m.code), m.code, err.Error())
			return
		}
	}
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
}
