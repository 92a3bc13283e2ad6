package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/validator"
)

// ===== SERVICE INTERFACES =====

// AttemptService drives an attempt from start to a terminal status.
type AttemptService interface {
	Start(ctx context.Context, actor models.Actor, examID uint) (*StartAttemptResult, error)
	Submit(ctx context.Context, actor models.Actor, attemptID uint, responses []ResponseInput) (*SubmitResult, error)
	SaveProgress(ctx context.Context, actor models.Actor, attemptID uint, responses []ResponseInput) (*SaveProgressResult, error)
	Resume(ctx context.Context, actor models.Actor, attemptID uint) (*ResumeResult, error)
	// SweepExpired finalises up to batch in-progress attempts whose deadline is before now.
	SweepExpired(ctx context.Context, now time.Time, batch int) (*SweepResult, error)
}

// GradingService is the teacher overlay on top of automatic scoring.
type GradingService interface {
	Review(ctx context.Context, actor models.Actor, attemptID uint) (*ReviewResult, error)
	GradeResponse(ctx context.Context, actor models.Actor, responseID uint, req *GradeRequest) (*GradeResult, error)
	FlagResponse(ctx context.Context, actor models.Actor, responseID uint, flagged bool) error
	GradeHistory(ctx context.Context, actor models.Actor, responseID uint) ([]*models.GradeAudit, error)
	Recalculate(ctx context.Context, actor models.Actor, attemptID uint, applyTeacherMarks bool) (*RecalculateResult, error)
}

// ExamService maintains the question catalogue and exam composition.
type ExamService interface {
	CreateQuestion(ctx context.Context, actor models.Actor, question *models.Question) (*models.Question, error)
	DeleteQuestion(ctx context.Context, actor models.Actor, questionID uint) error
	CreateExam(ctx context.Context, actor models.Actor, req *CreateExamRequest) (*ExamSummary, error)
	GetExam(ctx context.Context, actor models.Actor, examID uint) (*ExamSummary, error)
	AddQuestion(ctx context.Context, actor models.Actor, examID uint, input ExamQuestionInput) (*ExamSummary, error)
	RemoveQuestion(ctx context.Context, actor models.Actor, examID, questionID uint) (*ExamSummary, error)
	ReorderQuestions(ctx context.Context, actor models.Actor, examID uint, questionIDs []uint) (*ExamSummary, error)
	Stats(ctx context.Context, actor models.Actor, examID uint) (*repositories.AttemptStats, error)
}

// PaperService implements the fixed question paper path.
type PaperService interface {
	CreatePaper(ctx context.Context, actor models.Actor, req *CreatePaperRequest) (*models.QuestionPaper, error)
	StartPaper(ctx context.Context, actor models.Actor, paperID uint) (*PaperStartResult, error)
	SavePaperAnswer(ctx context.Context, actor models.Actor, attemptID uint, req *SavePaperAnswerRequest) error
	FinalSubmit(ctx context.Context, actor models.Actor, attemptID uint) (*PaperResult, error)
	Evaluate(ctx context.Context, actor models.Actor, attemptID uint, req *EvaluateRequest) (*PaperResult, error)
	GetPaperResult(ctx context.Context, actor models.Actor, attemptID uint) (*PaperResult, error)
}

// ExportService renders exam results as spreadsheets.
type ExportService interface {
	ExportExamResults(ctx context.Context, actor models.Actor, examID uint, format ExportFormat) ([]byte, error)
}

// LeaderboardService serves ranked results, from cache when possible.
type LeaderboardService interface {
	Leaderboard(ctx context.Context, actor models.Actor, examID uint, limit int) ([]cache.LeaderboardEntry, error)
	Refresh(ctx context.Context, examID uint, entries []cache.LeaderboardEntry)
}

// ===== SERVICE MANAGER =====

// ServiceManager hands out the services sharing one set of dependencies.
type ServiceManager interface {
	Attempt() AttemptService
	Grading() GradingService
	Exam() ExamService
	Paper() PaperService
	Export() ExportService
	Leaderboard() LeaderboardService
}

// Dependencies are shared by every service. Now defaults to time.Now.
type Dependencies struct {
	Repo      repositories.Repository
	Publisher events.EventPublisher
	Cache     cache.Cache
	Logger    *slog.Logger
	Validator *validator.Validator
	Now       func() time.Time
}

type serviceManager struct {
	attempt     AttemptService
	grading     GradingService
	exam        ExamService
	paper       PaperService
	export      ExportService
	leaderboard LeaderboardService
}

func NewServiceManager(deps Dependencies) ServiceManager {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewNoopCache()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	base := newServiceBase(deps)
	leaderboard := &leaderboardService{serviceBase: base.named("leaderboard")}
	finaliser := &attemptFinaliser{serviceBase: base.named("attempt"), leaderboard: leaderboard}

	return &serviceManager{
		attempt:     &attemptService{serviceBase: base.named("attempt"), finaliser: finaliser},
		grading:     &gradingService{serviceBase: base.named("grading"), finaliser: finaliser},
		exam:        &examService{serviceBase: base.named("exam")},
		paper:       &paperService{serviceBase: base.named("paper")},
		export:      &exportService{serviceBase: base.named("export")},
		leaderboard: leaderboard,
	}
}

func (m *serviceManager) Attempt() AttemptService         { return m.attempt }
func (m *serviceManager) Grading() GradingService         { return m.grading }
func (m *serviceManager) Exam() ExamService               { return m.exam }
func (m *serviceManager) Paper() PaperService             { return m.paper }
func (m *serviceManager) Export() ExportService           { return m.export }
func (m *serviceManager) Leaderboard() LeaderboardService { return m.leaderboard }
