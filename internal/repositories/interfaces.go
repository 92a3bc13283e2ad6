package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"gorm.io/gorm"
)

// Returned by non-gorm implementations.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// IsNotFoundError matches both gorm and in-memory not-found errors.
func IsNotFoundError(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound) || errors.Is(err, ErrNotFound)
}

// IsDuplicateError matches unique constraint violations. The gorm variant
// requires TranslateError on the connection.
func IsDuplicateError(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrDuplicate)
}

// Repository groups every store used by the services. Each method accepts an
// optional transaction handle; nil means "outside a transaction".
type Repository interface {
	Exam() ExamRepository
	Question() QuestionRepository
	Attempt() AttemptRepository
	Response() ResponseRepository
	GradeAudit() GradeAuditRepository
	Paper() PaperRepository

	// WithTransaction runs fn atomically. The tx handed to fn must be passed
	// to every repository call made inside it.
	WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// ===== SHARED FILTER STRUCTS =====

type ExamFilters struct {
	Visibility []models.ExamVisibility `json:"visibility"`
	ActiveOnly bool                    `json:"active_only"`
	CreatedBy  *string                 `json:"created_by"`
	Limit      int                     `json:"limit"`
	Offset     int                     `json:"offset"`
}

type AttemptFilters struct {
	Status   []models.AttemptStatus `json:"status"`
	UserID   *string                `json:"user_id"`
	DateFrom *time.Time             `json:"date_from"`
	DateTo   *time.Time             `json:"date_to"`
	Limit    int                    `json:"limit"`
	Offset   int                    `json:"offset"`
}

// ===== SHARED HELPER STRUCTS =====

type QuestionOrder struct {
	QuestionID uint `json:"question_id"`
	Order      int  `json:"order"`
}

// RankUpdate is one row of a batched rank write.
type RankUpdate struct {
	AttemptID  uint
	Rank       int
	Percentile float64
}

// ScoreUpdate persists the automatic grading of a single response.
type ScoreUpdate struct {
	ResponseID   uint
	Correct      bool
	MarksAwarded float64
}

// ExpiredAttempt is an in-progress attempt past its exam deadline.
type ExpiredAttempt struct {
	AttemptID uint
	ExamID    uint
	UserID    string
	Deadline  time.Time
}

// ===== SHARED STATISTICS STRUCTS =====

type AttemptStats struct {
	TotalAttempts   int                          `json:"total_attempts"`
	StatusBreakdown map[models.AttemptStatus]int `json:"status_breakdown"`
	AverageScore    float64                      `json:"average_score"`
	HighestScore    float64                      `json:"highest_score"`
	PassRate        float64                      `json:"pass_rate"`
}
