package repositories

import (
	"context"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"gorm.io/gorm"
)

// ExamRepository interface for exam and exam-question link operations
type ExamRepository interface {
	// Basic CRUD operations
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	List(ctx context.Context, tx *gorm.DB, filters ExamFilters) ([]*models.Exam, error)

	// Question links, ordered by position with Question preloaded
	GetQuestions(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ExamQuestion, error)
	AddQuestion(ctx context.Context, tx *gorm.DB, link *models.ExamQuestion) error
	RemoveQuestion(ctx context.Context, tx *gorm.DB, examID, questionID uint) error
	UpdateOrder(ctx context.Context, tx *gorm.DB, examID uint, orders []QuestionOrder) error
	UpdateTotalMarks(ctx context.Context, tx *gorm.DB, examID uint, totalMarks float64) error

	// LockForRanking serializes rank recomputation for one exam inside tx.
	LockForRanking(ctx context.Context, tx *gorm.DB, examID uint) error
}
