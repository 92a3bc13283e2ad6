package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"gorm.io/gorm"
)

// AttemptRepository interface for exam attempt operations
type AttemptRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	// GetByIDForUpdate row-locks the attempt until tx ends.
	GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error)
	Update(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error

	// Active attempt management; returns nil, nil when none exists
	GetActiveAttempt(ctx context.Context, tx *gorm.DB, userID string, examID uint) (*models.Attempt, error)

	// Query operations
	ListByExam(ctx context.Context, tx *gorm.DB, examID uint, filters AttemptFilters) ([]*models.Attempt, error)
	ListTerminalByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Attempt, error)
	ListExpired(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]ExpiredAttempt, error)

	// Ranking
	UpdateRanks(ctx context.Context, tx *gorm.DB, updates []RankUpdate) error

	// Statistics
	GetExamAttemptStats(ctx context.Context, tx *gorm.DB, examID uint, passingPercentage float64) (*AttemptStats, error)
}

// ResponseRepository interface for attempt response operations
type ResponseRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Response, error)
	GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Response, error)
	// GetByAttemptWithQuestions preloads Question for review screens.
	GetByAttemptWithQuestions(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Response, error)

	// Upsert creates or overwrites the answer for (attempt, question).
	Upsert(ctx context.Context, tx *gorm.DB, response *models.Response) error
	UpdateScores(ctx context.Context, tx *gorm.DB, updates []ScoreUpdate) error
	UpdateGrade(ctx context.Context, tx *gorm.DB, response *models.Response) error
	UpdateFlag(ctx context.Context, tx *gorm.DB, id uint, flagged bool) error
}

// GradeAuditRepository interface for manual grading history
type GradeAuditRepository interface {
	Create(ctx context.Context, tx *gorm.DB, audit *models.GradeAudit) error
	ListByResponse(ctx context.Context, tx *gorm.DB, responseID uint) ([]*models.GradeAudit, error)
	ListByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.GradeAudit, error)
}

// PaperRepository interface for the question paper path
type PaperRepository interface {
	CreatePaper(ctx context.Context, tx *gorm.DB, paper *models.QuestionPaper) error
	// GetPaper preloads questions ordered by position.
	GetPaper(ctx context.Context, tx *gorm.DB, id uint) (*models.QuestionPaper, error)

	CreateAttempt(ctx context.Context, tx *gorm.DB, attempt *models.PaperAttempt) error
	GetAttempt(ctx context.Context, tx *gorm.DB, id uint) (*models.PaperAttempt, error)
	GetAttemptForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.PaperAttempt, error)
	// GetAttemptByUser returns nil, nil when the user has not started the paper.
	GetAttemptByUser(ctx context.Context, tx *gorm.DB, paperID uint, userID string) (*models.PaperAttempt, error)
	UpdateAttempt(ctx context.Context, tx *gorm.DB, attempt *models.PaperAttempt) error

	GetAnswers(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.PaperAnswer, error)
	UpsertAnswer(ctx context.Context, tx *gorm.DB, answer *models.PaperAnswer) error
	MarkAnswersSubmitted(ctx context.Context, tx *gorm.DB, attemptID uint) error

	// GetEvaluation returns nil, nil when no evaluation exists.
	GetEvaluation(ctx context.Context, tx *gorm.DB, attemptID uint) (*models.Evaluation, error)
	SaveEvaluation(ctx context.Context, tx *gorm.DB, evaluation *models.Evaluation) error
}
