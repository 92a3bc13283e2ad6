package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/SAP-F-2025/exam-service/internal/validator"
	"github.com/gin-gonic/gin"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
	validator      *validator.Validator
}

type StartAttemptRequest struct {
	ExamID uint `json:"exam_id" validate:"required"`
}

// ResponsesRequest carries answers for submit and autosave.
type ResponsesRequest struct {
	Responses []services.ResponseInput `json:"responses" validate:"dive"`
}

func NewAttemptHandler(attemptService services.AttemptService, validator *validator.Validator, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
		validator:      validator,
	}
}

// StartAttempt starts or returns the caller's in-progress attempt
// @Summary Start attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param request body StartAttemptRequest true "Exam to attempt"
// @Success 200 {object} services.StartAttemptResult
// @Success 201 {object} services.StartAttemptResult
// @Failure 404 {object} ErrorResponse
// @Router /attempts/start [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req StartAttemptRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogRequest(c, "Starting attempt", "exam_id", req.ExamID)

	result, err := h.attemptService.Start(c.Request.Context(), actor, req.ExamID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if result.Resumed {
		status = http.StatusOK
	}
	h.RespondWithSuccess(c, status, result)
}

// SubmitAttempt scores and finalises an attempt
// @Summary Submit attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param request body ResponsesRequest true "Answers"
// @Success 200 {object} services.SubmitResult
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	var req ResponsesRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Submitting attempt", "attempt_id", attemptID, "responses", len(req.Responses))

	result, err := h.attemptService.Submit(c.Request.Context(), actor, attemptID, req.Responses)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, result)
}

// SaveProgress autosaves answers without scoring
// @Summary Autosave attempt
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param request body ResponsesRequest true "Answers"
// @Success 200 {object} services.SaveProgressResult
// @Failure 409 {object} ErrorResponse
// @Failure 410 {object} ErrorResponse
// @Router /attempts/{id}/save [put]
func (h *AttemptHandler) SaveProgress(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	var req ResponsesRequest
	if !h.bindJSON(c, &req) {
		return
	}

	result, err := h.attemptService.SaveProgress(c.Request.Context(), actor, attemptID, req.Responses)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, result)
}

// ResumeAttempt returns questions and saved answers of an attempt
// @Summary Resume attempt
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.ResumeResult
// @Failure 404 {object} ErrorResponse
// @Router /attempts/{id}/resume [get]
func (h *AttemptHandler) ResumeAttempt(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	result, err := h.attemptService.Resume(c.Request.Context(), actor, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.RespondWithSuccess(c, http.StatusOK, result)
}
