package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/SAP-F-2025/exam-service/internal/validator"
	"github.com/gin-gonic/gin"
)

const maxLeaderboardLimit = 100

type ExamHandler struct {
	BaseHandler
	examService        services.ExamService
	exportService      services.ExportService
	leaderboardService services.LeaderboardService
	validator          *validator.Validator
}

type ReorderQuestionsRequest struct {
	QuestionIDs []uint `json:"question_ids" validate:"required,min=1"`
}

func NewExamHandler(serviceManager services.ServiceManager, validator *validator.Validator, logger utils.Logger) *ExamHandler {
	return &ExamHandler{
		BaseHandler:        NewBaseHandler(logger),
		examService:        serviceManager.Exam(),
		exportService:      serviceManager.Export(),
		leaderboardService: serviceManager.Leaderboard(),
		validator:          validator,
	}
}

// ===== QUESTIONS =====

// CreateQuestion adds a question with its answer key to the catalogue
// @Summary Create question
// @Tags questions
// @Accept json
// @Produce json
// @Param question body models.Question true "Question"
// @Success 201 {object} models.Question
// @Failure 400 {object} ErrorResponse
// @Router /questions [post]
func (h *ExamHandler) CreateQuestion(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var question models.Question
	if !h.bindJSON(c, &question) {
		return
	}
	question.Type = models.QuestionType(strings.ToUpper(string(question.Type)))

	created, err := h.examService.CreateQuestion(c.Request.Context(), actor, &question)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogInfo(c, "Question created", "question_id", created.ID)
	h.RespondWithSuccess(c, http.StatusCreated, created)
}

// DeleteQuestion removes an unreferenced question
// @Summary Delete question
// @Tags questions
// @Param id path uint true "Question ID"
// @Success 204
// @Failure 409 {object} ErrorResponse
// @Router /questions/{id} [delete]
func (h *ExamHandler) DeleteQuestion(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	questionID := h.parseIDParam(c, "id")
	if questionID == 0 {
		return
	}

	if err := h.examService.DeleteQuestion(c.Request.Context(), actor, questionID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ===== EXAMS =====

// CreateExam creates an exam from existing questions
// @Summary Create exam
// @Tags exams
// @Accept json
// @Produce json
// @Param exam body services.CreateExamRequest true "Exam"
// @Success 201 {object} services.ExamSummary
// @Router /exams [post]
func (h *ExamHandler) CreateExam(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req services.CreateExamRequest
	if !h.bindJSON(c, &req) {
		return
	}

	summary, err := h.examService.CreateExam(c.Request.Context(), actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	h.LogInfo(c, "Exam created", "exam_id", summary.ID, "questions", len(summary.Questions))
	h.RespondWithSuccess(c, http.StatusCreated, summary)
}

// @Summary Get exam
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} services.ExamSummary
// @Router /exams/{id} [get]
func (h *ExamHandler) GetExam(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	summary, err := h.examService.GetExam(c.Request.Context(), actor, examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, summary)
}

// AddQuestion appends a question to the exam
// @Summary Add question to exam
// @Tags exams
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Param question body services.ExamQuestionInput true "Question link"
// @Success 200 {object} services.ExamSummary
// @Failure 409 {object} ErrorResponse
// @Router /exams/{id}/questions [post]
func (h *ExamHandler) AddQuestion(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	var input services.ExamQuestionInput
	if !h.bindJSON(c, &input) {
		return
	}

	summary, err := h.examService.AddQuestion(c.Request.Context(), actor, examID, input)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, summary)
}

// RemoveQuestion unlinks a question and renumbers the rest
// @Summary Remove question from exam
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Param question_id path uint true "Question ID"
// @Success 200 {object} services.ExamSummary
// @Router /exams/{id}/questions/{question_id} [delete]
func (h *ExamHandler) RemoveQuestion(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}
	questionID := h.parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}

	summary, err := h.examService.RemoveQuestion(c.Request.Context(), actor, examID, questionID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, summary)
}

// ReorderQuestions moves the listed questions to the front
// @Summary Reorder exam questions
// @Tags exams
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Param order body ReorderQuestionsRequest true "New order"
// @Success 200 {object} services.ExamSummary
// @Router /exams/{id}/questions/reorder [put]
func (h *ExamHandler) ReorderQuestions(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	var req ReorderQuestionsRequest
	if !h.bindJSON(c, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		h.handleServiceError(c, err)
		return
	}

	summary, err := h.examService.ReorderQuestions(c.Request.Context(), actor, examID, req.QuestionIDs)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, summary)
}

// GetStats summarises attempts of an exam
// @Summary Exam stats
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} repositories.AttemptStats
// @Router /exams/{id}/stats [get]
func (h *ExamHandler) GetStats(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	stats, err := h.examService.Stats(c.Request.Context(), actor, examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, stats)
}

// ===== RESULTS =====

// Leaderboard lists the top ranked attempts
// @Summary Exam leaderboard
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Param limit query int false "Number of entries (default 10, max 100)"
// @Success 200 {array} cache.LeaderboardEntry
// @Router /exams/{id}/leaderboard [get]
func (h *ExamHandler) Leaderboard(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			h.RespondWithError(c, http.StatusBadRequest, "INVALID_LIMIT", "Invalid limit", err, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxLeaderboardLimit)
	}

	entries, err := h.leaderboardService.Leaderboard(c.Request.Context(), actor, examID, limit)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, entries)
}

// ExportResults downloads exam results as xlsx (default) or csv
// @Summary Export exam results
// @Tags exams
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Exam ID"
// @Param format query string false "xlsx or csv"
// @Success 200 {file} file
// @Router /exams/{id}/results/export [get]
func (h *ExamHandler) ExportResults(c *gin.Context) {
	actor, ok := h.actor(c)
	if !ok {
		return
	}
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	format := services.ExportFormat(strings.ToLower(c.DefaultQuery("format", string(services.ExportExcel))))
	data, err := h.exportService.ExportExamResults(c.Request.Context(), actor, examID, format)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	contentType := "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	if format == services.ExportCSV {
		contentType = "text/csv"
	}
	filename := fmt.Sprintf("exam_%d_results.%s", examID, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}
