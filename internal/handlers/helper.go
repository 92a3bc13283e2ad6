package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/auth"
	apperrors "github.com/SAP-F-2025/exam-service/internal/errors"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/gin-gonic/gin"
)

// parseIDParam reads a positive numeric path parameter. It writes a 400 and
// returns 0 when the parameter is missing or malformed.
func (h *BaseHandler) parseIDParam(c *gin.Context, param string) uint {
	idStr := strings.TrimSpace(c.Param(param))
	id, err := strconv.ParseUint(idStr, 10, 32)
	if err != nil || id == 0 {
		h.RespondWithError(c, http.StatusBadRequest, "INVALID_ID", "Invalid "+param, err, "ID must be a positive integer")
		return 0
	}
	return uint(id)
}

// actor returns the authenticated caller, writing a 401 when there is none.
func (h *BaseHandler) actor(c *gin.Context) (models.Actor, bool) {
	actor, ok := auth.ActorFromContext(c)
	if !ok {
		h.RespondWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated", nil, nil)
		return models.Actor{}, false
	}
	return actor, true
}

// bindJSON decodes the request body, writing a 400 on malformed input.
func (h *BaseHandler) bindJSON(c *gin.Context, dest interface{}) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		h.RespondWithError(c, http.StatusBadRequest, "INVALID_PAYLOAD", "Invalid request payload", err, err.Error())
		return false
	}
	return true
}

// handleServiceError maps service errors onto HTTP status codes.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrors apperrors.ValidationErrors
	if errors.As(err, &validationErrors) {
		h.RespondWithError(c, http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed", err, validationErrors)
		return
	}

	var permissionError *services.PermissionError
	if errors.As(err, &permissionError) {
		h.RespondWithError(c, http.StatusForbidden, "FORBIDDEN", "Access denied", err, map[string]interface{}{
			"resource": permissionError.Resource,
			"action":   permissionError.Action,
			"reason":   permissionError.Reason,
		})
		return
	}

	switch {
	case services.IsUnauthorized(err):
		h.RespondWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized access", err, nil)
	case services.IsForbidden(err):
		h.RespondWithError(c, http.StatusForbidden, "FORBIDDEN", "Forbidden - insufficient permissions", err, nil)
	case services.IsValidation(err):
		h.RespondWithError(c, http.StatusBadRequest, "VALIDATION_FAILED", "Validation failed", err, err.Error())
	case services.IsNotFound(err):
		h.RespondWithError(c, http.StatusNotFound, "NOT_FOUND", err.Error(), err, nil)
	case services.IsTimeExpired(err):
		h.RespondWithError(c, http.StatusGone, "TIME_EXPIRED", err.Error(), err, nil)
	case services.IsConflict(err):
		h.RespondWithError(c, http.StatusConflict, "CONFLICT", err.Error(), err, nil)
	case services.IsBusinessRule(err):
		h.RespondWithError(c, http.StatusUnprocessableEntity, "BUSINESS_RULE", err.Error(), err, nil)
	default:
		h.RespondWithError(c, http.StatusInternalServerError, "INTERNAL", "Internal server error", err, nil)
	}
}
