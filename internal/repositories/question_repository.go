package repositories

import (
	"context"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"gorm.io/gorm"
)

// QuestionRepository interface for the answer-key store
type QuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *models.Question) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error)
	Update(ctx context.Context, tx *gorm.DB, question *models.Question) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error

	// IsReferenced reports whether any exam link or response points at the question.
	IsReferenced(ctx context.Context, tx *gorm.DB, id uint) (bool, error)
}
