package handlers

import (
	"net/http"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/auth"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/gin-gonic/gin"
)

// ===== COMMON RESPONSE STRUCTURES =====

// ErrorResponse represents an error response
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// ===== BASE HANDLER STRUCT =====

// BaseHandler provides common logging functionality for all handlers
type BaseHandler struct {
	logger utils.Logger
}

// NewBaseHandler creates a new base handler with logging capability
func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{
		logger: logger,
	}
}

// LogRequest logs incoming HTTP requests with context information
func (h *BaseHandler) LogRequest(c *gin.Context, message string, additionalFields ...interface{}) {
	start := time.Now()

	// Extract user info if available
	userID := h.extractUserID(c)
	requestID := c.GetHeader("X-Request-ID")

	fields := []interface{}{
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"remote_addr", c.ClientIP(),
		"user_agent", c.Request.UserAgent(),
		"request_id", requestID,
		"user_id", userID,
		"timestamp", start.Format(time.RFC3339),
	}

	// Add any additional fields provided
	fields = append(fields, additionalFields...)

	h.logger.Info(message, fields...)
}

// LogError logs error details with context information
func (h *BaseHandler) LogError(c *gin.Context, err error, message string, additionalFields ...interface{}) {
	requestID := c.GetHeader("X-Request-ID")
	userID := h.extractUserID(c)

	fields := []interface{}{
		"request_id", requestID,
		"user_id", userID,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}

	// Add any additional fields provided
	fields = append(fields, additionalFields...)

	h.logger.LogError(err, message, fields...)
}

// LogDebug logs debug information with context
func (h *BaseHandler) LogDebug(c *gin.Context, message string, additionalFields ...interface{}) {
	requestID := c.GetHeader("X-Request-ID")
	userID := h.extractUserID(c)

	fields := []interface{}{
		"request_id", requestID,
		"user_id", userID,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}

	// Add any additional fields provided
	fields = append(fields, additionalFields...)

	h.logger.Debug(message, fields...)
}

// LogInfo logs informational messages with context
func (h *BaseHandler) LogInfo(c *gin.Context, message string, additionalFields ...interface{}) {
	requestID := c.GetHeader("X-Request-ID")
	userID := h.extractUserID(c)

	fields := []interface{}{
		"request_id", requestID,
		"user_id", userID,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}

	// Add any additional fields provided
	fields = append(fields, additionalFields...)

	h.logger.Info(message, fields...)
}

// LogWarn logs warning messages with context
func (h *BaseHandler) LogWarn(c *gin.Context, message string, additionalFields ...interface{}) {
	requestID := c.GetHeader("X-Request-ID")
	userID := h.extractUserID(c)

	fields := []interface{}{
		"request_id", requestID,
		"user_id", userID,
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
	}

	// Add any additional fields provided
	fields = append(fields, additionalFields...)

	h.logger.Warn(message, fields...)
}

// Helper method to extract user ID from context
func (h *BaseHandler) extractUserID(c *gin.Context) interface{} {
	if actor, ok := auth.ActorFromContext(c); ok {
		return actor.UserID
	}
	return nil
}

// RespondWithError writes an ErrorResponse. Server errors are logged with
// the cause, denials as warnings and other client errors at debug level.
func (h *BaseHandler) RespondWithError(c *gin.Context, statusCode int, code, message string, err error, details interface{}) {
	switch {
	case statusCode >= http.StatusInternalServerError:
		h.LogError(c, err, message, "status_code", statusCode)
	case statusCode == http.StatusForbidden:
		h.LogWarn(c, message, "status_code", statusCode, "error", err)
	default:
		h.LogDebug(c, message, "status_code", statusCode, "code", code)
	}

	c.JSON(statusCode, ErrorResponse{
		Message: message,
		Details: details,
		Code:    code,
	})
}

// RespondWithSuccess writes data as the response body.
func (h *BaseHandler) RespondWithSuccess(c *gin.Context, statusCode int, data interface{}) {
	h.LogDebug(c, "Request completed", "status_code", statusCode)
	c.JSON(statusCode, data)
}
