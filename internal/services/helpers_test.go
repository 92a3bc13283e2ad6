package services

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/repositories/memory"
	"github.com/SAP-F-2025/exam-service/internal/scoring"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var (
	admin        = models.Actor{UserID: "admin-1", Role: models.RoleAdmin}
	teacher      = models.Actor{UserID: "teacher-1", Role: models.RoleTeacher}
	otherTeacher = models.Actor{UserID: "teacher-2", Role: models.RoleTeacher}
	student      = models.Actor{UserID: "student-1", Role: models.RoleStudent}
	otherStudent = models.Actor{UserID: "student-2", Role: models.RoleStudent}
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	t         *testing.T
	ctx       context.Context
	repo      repositories.Repository
	publisher *events.MockEventPublisher
	clock     *testClock
	services  ServiceManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newCachedFixture(t, nil)
}

// newCachedFixture wires c as the service cache; nil means the no-op cache.
func newCachedFixture(t *testing.T, c cache.Cache) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := memory.NewRepository(memory.Open())
	publisher := events.NewMockEventPublisher(logger)
	clock := &testClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}

	return &fixture{
		t:         t,
		ctx:       context.Background(),
		repo:      repo,
		publisher: publisher,
		clock:     clock,
		services: NewServiceManager(Dependencies{
			Repo:      repo,
			Publisher: publisher,
			Cache:     c,
			Logger:    logger,
			Now:       clock.Now,
		}),
	}
}

func (f *fixture) mcq(correct string, marks float64) *models.Question {
	f.t.Helper()
	q, err := f.services.Exam().CreateQuestion(f.ctx, teacher, &models.Question{
		Type:           models.QuestionMCQ,
		Statement:      "Unit of mass?",
		Choices:        datatypes.JSON(`{"A":"gram","B":"litre","C":"metre"}`),
		CorrectAnswers: datatypes.JSON(`["` + correct + `"]`),
		Marks:          marks,
	})
	require.NoError(f.t, err)
	return q
}

func (f *fixture) fib(marks float64, accepted ...string) *models.Question {
	f.t.Helper()
	key, _ := json.Marshal(accepted)
	q, err := f.services.Exam().CreateQuestion(f.ctx, teacher, &models.Question{
		Type:           models.QuestionFIB,
		Statement:      "Symbol for gram?",
		CorrectAnswers: datatypes.JSON(key),
		Marks:          marks,
	})
	require.NoError(f.t, err)
	return q
}

// unitsExam builds a 600s exam: MCQ worth 5 (key A) then FIB worth 5 (key g).
func (f *fixture) unitsExam() (exam *ExamSummary, mcq, fib *models.Question) {
	f.t.Helper()
	mcq = f.mcq("A", 5)
	fib = f.fib(5, "g")
	exam, err := f.services.Exam().CreateExam(f.ctx, teacher, &CreateExamRequest{
		Title:           "Units",
		DurationSeconds: 600,
		Questions: []ExamQuestionInput{
			{QuestionID: mcq.ID},
			{QuestionID: fib.ID},
		},
	})
	require.NoError(f.t, err)
	return exam, mcq, fib
}

func (f *fixture) start(actor models.Actor, examID uint) *StartAttemptResult {
	f.t.Helper()
	started, err := f.services.Attempt().Start(f.ctx, actor, examID)
	require.NoError(f.t, err)
	return started
}

func answer(questionID uint, payload []byte) ResponseInput {
	return ResponseInput{QuestionID: questionID, Answer: json.RawMessage(payload)}
}

func correctAnswers(mcq, fib *models.Question) []ResponseInput {
	return []ResponseInput{
		answer(mcq.ID, scoring.EncodeChoices("A")),
		answer(fib.ID, scoring.EncodeText("g")),
	}
}

func (f *fixture) responseFor(attemptID, questionID uint) *models.Response {
	f.t.Helper()
	responses, err := f.repo.Response().GetByAttempt(f.ctx, nil, attemptID)
	require.NoError(f.t, err)
	for _, r := range responses {
		if r.QuestionID == questionID {
			return r
		}
	}
	f.t.Fatalf("no response for question %d", questionID)
	return nil
}

func ptr[T any](v T) *T { return &v }
