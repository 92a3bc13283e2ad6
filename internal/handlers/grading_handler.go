package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type GradingHandler struct {
	BaseHandler
	gradingService services.GradingService
}

type RecalculateRequest struct {
	ApplyTeacherMarks bool `json:"apply_teacher_marks"`
}

type FlagResponseRequest struct {
	Flagged bool `json:"flagged"`
}

func NewGradingHandler(gradingService services.GradingService, logger utils.Logger) *GradingHandler {
	return &GradingHandler{
		BaseHandler:    NewBaseHandler(logger),
		gradingService: gradingService,
	}
}

// ReviewAttempt returns a finished attempt with every response
// @Summary Review attempt
// @Tags grading
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.ReviewResult
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id}/review [get]
func (h *GradingHandler) ReviewAttempt(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	result, err := h.gradingService.Review(c.Request.Context(), actor, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, result)
}

// GradeResponse records a teacher mark and remarks on one response
// @Summary Grade response
// @Tags grading
// @Accept json
// @Produce json
// @Param id path uint true "Response ID"
// @Param grade body services.GradeRequest true "Teacher mark"
// @Success 200 {object} services.GradeResult
// @Failure 400 {object} ErrorResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /grading/responses/{id} [post]
func (h *GradingHandler) GradeResponse(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	responseID := h.parseIDParam(c, "id")
	if responseID == 0 {
		return
	}

	h.LogRequest(c, "Grading response", "response_id", responseID)

	var req services.GradeRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.gradingService.GradeResponse(c.Request.Context(), actor, responseID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, result)
}

// FlagResponse marks or clears a response for review
// @Summary Flag response
// @Tags grading
// @Accept json
// @Param id path uint true "Response ID"
// @Param flag body FlagResponseRequest true "Flag"
// @Success 204
// @Router /grading/responses/{id}/flag [put]
func (h *GradingHandler) FlagResponse(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	responseID := h.parseIDParam(c, "id")
	if responseID == 0 {
		return
	}

	var req FlagResponseRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.gradingService.FlagResponse(c.Request.Context(), actor, responseID, req.Flagged); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// GradeHistory lists the audit trail of teacher marks on a response
// @Summary Grade history
// @Tags grading
// @Produce json
// @Param id path uint true "Response ID"
// @Success 200 {array} models.GradeAudit
// @Router /grading/responses/{id}/history [get]
func (h *GradingHandler) GradeHistory(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	responseID := h.parseIDParam(c, "id")
	if responseID == 0 {
		return
	}

	history, err := h.gradingService.GradeHistory(c.Request.Context(), actor, responseID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, history)
}

// Recalculate rescores a finished attempt against the current answer keys
// @Summary Recalculate attempt
// @Tags grading
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param request body RecalculateRequest false "Whether to fold in teacher marks"
// @Success 200 {object} services.RecalculateResult
// @Router /attempts/{id}/recalculate [post]
func (h *GradingHandler) Recalculate(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	var req RecalculateRequest
	// An empty body means automatic marks only.
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Recalculating attempt", "attempt_id", attemptID, "apply_teacher_marks", req.ApplyTeacherMarks)

	result, err := h.gradingService.Recalculate(c.Request.Context(), actor, attemptID, req.ApplyTeacherMarks)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, result)
}
