package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
)

type QuestionPostgreSQL struct {
	conn
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{conn: conn{db: db}}
}

func (q *QuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := q.getDB(tx)
	return db.WithContext(ctx).Create(question).Error
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	db := q.getDB(tx)
	var question models.Question
	if err := db.WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

func (q *QuestionPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	db := q.getDB(tx)
	var questions []*models.Question
	if len(ids) == 0 {
		return questions, nil
	}
	if err := db.WithContext(ctx).Where("id IN ?", ids).Find(&questions).Error; err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	return questions, nil
}

func (q *QuestionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	db := q.getDB(tx)
	return db.WithContext(ctx).Save(question).Error
}

func (q *QuestionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := q.getDB(tx)
	return db.WithContext(ctx).Delete(&models.Question{}, id).Error
}

func (q *QuestionPostgreSQL) IsReferenced(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	db := q.getDB(tx)

	var linked int64
	if err := db.WithContext(ctx).Model(&models.ExamQuestion{}).
		Where("question_id = ?", id).
		Count(&linked).Error; err != nil {
		return false, fmt.Errorf("failed to count exam links: %w", err)
	}
	if linked > 0 {
		return true, nil
	}

	var answered int64
	if err := db.WithContext(ctx).Model(&models.Response{}).
		Where("question_id = ?", id).
		Count(&answered).Error; err != nil {
		return false, fmt.Errorf("failed to count responses: %w", err)
	}
	return answered > 0, nil
}
