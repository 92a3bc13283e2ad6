package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaperPostgreSQL struct {
	conn
}

func NewPaperPostgreSQL(db *gorm.DB) repositories.PaperRepository {
	return &PaperPostgreSQL{conn: conn{db: db}}
}

func (p *PaperPostgreSQL) CreatePaper(ctx context.Context, tx *gorm.DB, paper *models.QuestionPaper) error {
	db := p.getDB(tx)
	return db.WithContext(ctx).Create(paper).Error
}

func (p *PaperPostgreSQL) GetPaper(ctx context.Context, tx *gorm.DB, id uint) (*models.QuestionPaper, error) {
	db := p.getDB(tx)
	var paper models.QuestionPaper
	if err := db.WithContext(ctx).
		Preload("Questions", func(db *gorm.DB) *gorm.DB {
			return db.Order(`"order" ASC, id ASC`)
		}).
		First(&paper, id).Error; err != nil {
		return nil, err
	}
	return &paper, nil
}

// ===== ATTEMPTS =====

func (p *PaperPostgreSQL) CreateAttempt(ctx context.Context, tx *gorm.DB, attempt *models.PaperAttempt) error {
	db := p.getDB(tx)
	return db.WithContext(ctx).Omit(clause.Associations).Create(attempt).Error
}

func (p *PaperPostgreSQL) GetAttempt(ctx context.Context, tx *gorm.DB, id uint) (*models.PaperAttempt, error) {
	db := p.getDB(tx)
	var attempt models.PaperAttempt
	if err := db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (p *PaperPostgreSQL) GetAttemptForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.PaperAttempt, error) {
	db := p.getDB(tx)
	var attempt models.PaperAttempt
	if err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (p *PaperPostgreSQL) GetAttemptByUser(ctx context.Context, tx *gorm.DB, paperID uint, userID string) (*models.PaperAttempt, error) {
	db := p.getDB(tx)
	var attempt models.PaperAttempt
	if err := db.WithContext(ctx).
		Where("paper_id = ? AND user_id = ?", paperID, userID).
		First(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

func (p *PaperPostgreSQL) UpdateAttempt(ctx context.Context, tx *gorm.DB, attempt *models.PaperAttempt) error {
	db := p.getDB(tx)
	return db.WithContext(ctx).Omit(clause.Associations).Save(attempt).Error
}

// ===== ANSWERS =====

func (p *PaperPostgreSQL) GetAnswers(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.PaperAnswer, error) {
	db := p.getDB(tx)
	var answers []*models.PaperAnswer
	if err := db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("question_id ASC").
		Find(&answers).Error; err != nil {
		return nil, fmt.Errorf("failed to get paper answers: %w", err)
	}
	return answers, nil
}

func (p *PaperPostgreSQL) UpsertAnswer(ctx context.Context, tx *gorm.DB, answer *models.PaperAnswer) error {
	db := p.getDB(tx)
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"selected_option", "updated_at"}),
		}).
		Create(answer).Error
}

func (p *PaperPostgreSQL) MarkAnswersSubmitted(ctx context.Context, tx *gorm.DB, attemptID uint) error {
	db := p.getDB(tx)
	return db.WithContext(ctx).
		Model(&models.PaperAnswer{}).
		Where("attempt_id = ?", attemptID).
		Update("submitted", true).Error
}

// ===== EVALUATION =====

func (p *PaperPostgreSQL) GetEvaluation(ctx context.Context, tx *gorm.DB, attemptID uint) (*models.Evaluation, error) {
	db := p.getDB(tx)
	var evaluation models.Evaluation
	if err := db.WithContext(ctx).Where("attempt_id = ?", attemptID).First(&evaluation).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &evaluation, nil
}

func (p *PaperPostgreSQL) SaveEvaluation(ctx context.Context, tx *gorm.DB, evaluation *models.Evaluation) error {
	db := p.getDB(tx)
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"evaluator_id", "marks", "max_marks", "feedback", "evaluated_at", "updated_at"}),
		}).
		Create(evaluation).Error
}
