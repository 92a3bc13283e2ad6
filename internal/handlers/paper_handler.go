package handlers

import (
	"net/http"

	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/gin-gonic/gin"
)

type PaperHandler struct {
	BaseHandler
	paperService services.PaperService
}

func NewPaperHandler(paperService services.PaperService, logger utils.Logger) *PaperHandler {
	return &PaperHandler{
		BaseHandler:  NewBaseHandler(logger),
		paperService: paperService,
	}
}

// CreatePaper stores a fixed question paper
// @Summary Create paper
// @Tags papers
// @Accept json
// @Produce json
// @Param paper body services.CreatePaperRequest true "Paper"
// @Success 201 {object} models.QuestionPaper
// @Router /papers [post]
func (h *PaperHandler) CreatePaper(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req services.CreatePaperRequest
	if !h.bindJSON(c, &req) {
		return
	}

	paper, err := h.paperService.CreatePaper(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusCreated, paper)
}

// StartPaper opens (or returns) the caller's attempt at a paper
// @Summary Start paper
// @Tags papers
// @Produce json
// @Param id path uint true "Paper ID"
// @Success 200 {object} services.PaperStartResult
// @Router /papers/{id}/start [post]
func (h *PaperHandler) StartPaper(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	paperID := h.parseIDParam(c, "id")
	if paperID == 0 {
		return
	}

	result, err := h.paperService.StartPaper(c.Request.Context(), actor, paperID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, result)
}

// SaveAnswer records the selected option for one paper question
// @Summary Save paper answer
// @Tags papers
// @Accept json
// @Param id path uint true "Paper attempt ID"
// @Param answer body services.SavePaperAnswerRequest true "Answer"
// @Success 204
// @Failure 410 {object} ErrorResponse
// @Router /paper-attempts/{id}/answers [put]
func (h *PaperHandler) SaveAnswer(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	var req services.SavePaperAnswerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.paperService.SavePaperAnswer(c.Request.Context(), actor, attemptID, &req); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// FinalSubmit locks the paper attempt and scores it
// @Summary Submit paper
// @Tags papers
// @Produce json
// @Param id path uint true "Paper attempt ID"
// @Success 200 {object} services.PaperResult
// @Router /paper-attempts/{id}/submit [post]
func (h *PaperHandler) FinalSubmit(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	result, err := h.paperService.FinalSubmit(c.Request.Context(), actor, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, result)
}

// Evaluate replaces the automatic score with teacher marks
// @Summary Evaluate paper attempt
// @Tags papers
// @Accept json
// @Produce json
// @Param id path uint true "Paper attempt ID"
// @Param evaluation body services.EvaluateRequest true "Marks and feedback"
// @Success 200 {object} services.PaperResult
// @Router /paper-attempts/{id}/evaluate [post]
func (h *PaperHandler) Evaluate(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	var req services.EvaluateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Evaluating paper attempt", "attempt_id", attemptID)

	result, err := h.paperService.Evaluate(c.Request.Context(), actor, attemptID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, result)
}

// @Summary Paper result
// @Tags papers
// @Produce json
// @Param id path uint true "Paper attempt ID"
// @Success 200 {object} services.PaperResult
// @Router /paper-attempts/{id} [get]
func (h *PaperHandler) GetResult(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}

	result, err := h.paperService.GetPaperResult(c.Request.Context(), actor, attemptID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, result)
}
