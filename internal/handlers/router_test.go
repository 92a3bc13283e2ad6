package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/auth"
	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories/memory"
	"github.com/SAP-F-2025/exam-service/internal/services"
	"github.com/SAP-F-2025/exam-service/internal/utils"
	"github.com/SAP-F-2025/exam-service/internal/validator"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "handler-test-secret"

type apiClient struct {
	t        *testing.T
	router   *gin.Engine
	provider *auth.JWTProvider
}

func newAPIClient(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	v := validator.New()
	serviceManager := services.NewServiceManager(services.Dependencies{
		Repo:      memory.NewRepository(memory.Open()),
		Publisher: events.NewMockEventPublisher(logger),
		Logger:    logger,
		Validator: v,
	})

	provider := auth.NewJWTProvider(testSecret)
	router := gin.New()
	NewHandlerManager(serviceManager, v, utils.NewNopLogger()).SetupRoutes(router, auth.Middleware(provider))

	return &apiClient{t: t, router: router, provider: provider}
}

func (c *apiClient) do(actor *models.Actor, method, path string, body interface{}) *httptest.ResponseRecorder {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		token, err := c.provider.SignToken(*actor, time.Hour)
		require.NoError(c.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

var (
	teacherActor = models.Actor{UserID: "teacher-1", Role: models.RoleTeacher}
	studentActor = models.Actor{UserID: "student-1", Role: models.RoleStudent}
)

// createExam builds a 10 minute exam with one MCQ worth 5 (key A) and one
// FIB worth 5 (key g) through the API.
func (c *apiClient) createExam() (examID, mcqID, fibID uint) {
	c.t.Helper()

	rec := c.do(&teacherActor, http.MethodPost, "/api/v1/questions", map[string]interface{}{
		"type":            "mcq",
		"statement":       "Unit of mass?",
		"choices":         map[string]string{"A": "gram", "B": "litre"},
		"correct_answers": []string{"A"},
		"marks":           5,
	})
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())
	mcqID = decode[models.Question](c.t, rec).ID

	rec = c.do(&teacherActor, http.MethodPost, "/api/v1/questions", map[string]interface{}{
		"type":            "FIB",
		"statement":       "Symbol for gram?",
		"correct_answers": []string{"g"},
		"marks":           5,
	})
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())
	fibID = decode[models.Question](c.t, rec).ID

	rec = c.do(&teacherActor, http.MethodPost, "/api/v1/exams", map[string]interface{}{
		"title":            "Units",
		"duration_seconds": 600,
		"questions":        []map[string]uint{{"question_id": mcqID}, {"question_id": fibID}},
	})
	require.Equal(c.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[services.ExamSummary](c.t, rec).ID, mcqID, fibID
}

func TestHealthAndAuth(t *testing.T) {
	c := newAPIClient(t)

	rec := c.do(nil, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = c.do(nil, http.MethodPost, "/api/v1/attempts/start", map[string]uint{"exam_id": 1})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAttemptLifecycle(t *testing.T) {
	c := newAPIClient(t)
	examID, mcqID, fibID := c.createExam()

	rec := c.do(&studentActor, http.MethodPost, "/api/v1/attempts/start", map[string]uint{"exam_id": examID})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	started := decode[services.StartAttemptResult](t, rec)
	require.Len(t, started.Questions, 2)
	assert.NotContains(t, rec.Body.String(), "correct_answers")

	rec = c.do(&studentActor, http.MethodPost, "/api/v1/attempts/start", map[string]uint{"exam_id": examID})
	assert.Equal(t, http.StatusOK, rec.Code)

	attemptPath := fmt.Sprintf("/api/v1/attempts/%d", started.AttemptID)
	rec = c.do(&studentActor, http.MethodPost, attemptPath+"/submit", map[string]interface{}{
		"responses": []map[string]interface{}{
			{"question_id": mcqID, "answer": map[string][]string{"answers": {"A"}}},
			{"question_id": fibID, "answer": "gm"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	submitted := decode[services.SubmitResult](t, rec)
	assert.Equal(t, 5.0, submitted.Score)
	assert.Equal(t, 50.0, submitted.Percentage)
	assert.Equal(t, models.AttemptSubmitted, submitted.Status)

	rec = c.do(&studentActor, http.MethodPut, attemptPath+"/save", map[string]interface{}{"responses": []interface{}{}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = c.do(&studentActor, http.MethodGet, attemptPath+"/review", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	review := decode[services.ReviewResult](t, rec)
	var fibResponse uint
	for _, item := range review.Responses {
		if item.QuestionID == fibID {
			fibResponse = item.ResponseID
		}
	}
	require.NotZero(t, fibResponse)

	gradePath := fmt.Sprintf("/api/v1/grading/responses/%d", fibResponse)
	rec = c.do(&studentActor, http.MethodPost, gradePath, map[string]interface{}{"teacher_mark": 5})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = c.do(&teacherActor, http.MethodPost, gradePath, map[string]interface{}{"remarks": "missing mark"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(&teacherActor, http.MethodPost, gradePath, map[string]interface{}{"teacher_mark": 4, "remarks": "Close enough"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "graded", decode[services.GradeResult](t, rec).Status)

	rec = c.do(&teacherActor, http.MethodPost, attemptPath+"/recalculate", map[string]bool{"apply_teacher_marks": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 9.0, decode[services.RecalculateResult](t, rec).Score)

	rec = c.do(&studentActor, http.MethodGet, fmt.Sprintf("/api/v1/exams/%d/leaderboard?limit=5", examID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]interface{}](t, rec), 1)

	rec = c.do(&teacherActor, http.MethodGet, fmt.Sprintf("/api/v1/exams/%d/results/export?format=csv", examID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "Attempt ID")
}

func TestErrorMapping(t *testing.T) {
	c := newAPIClient(t)
	examID, mcqID, _ := c.createExam()

	rec := c.do(&studentActor, http.MethodGet, "/api/v1/attempts/999/resume", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	assert.Equal(t, "NOT_FOUND", decode[ErrorResponse](t, rec).Code)

	rec = c.do(&studentActor, http.MethodGet, "/api/v1/attempts/abc/resume", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_ID", decode[ErrorResponse](t, rec).Code)

	rec = c.do(&teacherActor, http.MethodPost, fmt.Sprintf("/api/v1/exams/%d/questions", examID), map[string]uint{"question_id": mcqID})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "CONFLICT", decode[ErrorResponse](t, rec).Code)

	rec = c.do(&teacherActor, http.MethodPut, fmt.Sprintf("/api/v1/exams/%d/questions/reorder", examID), map[string][]uint{"question_ids": {}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = c.do(&studentActor, http.MethodPost, "/api/v1/questions", map[string]interface{}{"type": "MCQ"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decode[ErrorResponse](t, rec).Code)
}
