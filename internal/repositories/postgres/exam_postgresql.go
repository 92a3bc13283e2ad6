package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
)

type ExamPostgreSQL struct {
	conn
}

func NewExamPostgreSQL(db *gorm.DB) repositories.ExamRepository {
	return &ExamPostgreSQL{conn: conn{db: db}}
}

func (e *ExamPostgreSQL) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	db := e.getDB(tx)
	if exam.Visibility == "" {
		exam.Visibility = models.VisibilityPublic
	}
	return db.WithContext(ctx).Create(exam).Error
}

func (e *ExamPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	db := e.getDB(tx)
	var exam models.Exam
	if err := db.WithContext(ctx).First(&exam, id).Error; err != nil {
		return nil, err
	}
	return &exam, nil
}

func (e *ExamPostgreSQL) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	db := e.getDB(tx)
	return db.WithContext(ctx).Omit("Questions").Save(exam).Error
}

func (e *ExamPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, error) {
	db := e.getDB(tx)
	query := db.WithContext(ctx).Model(&models.Exam{})

	if len(filters.Visibility) > 0 {
		query = query.Where("visibility IN ?", filters.Visibility)
	}
	if filters.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	var exams []*models.Exam
	if err := query.Order("created_at DESC").Find(&exams).Error; err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}
	return exams, nil
}

// ===== QUESTION LINKS =====

func (e *ExamPostgreSQL) GetQuestions(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ExamQuestion, error) {
	db := e.getDB(tx)
	var links []*models.ExamQuestion
	if err := db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Preload("Question").
		Order(`"order" ASC, id ASC`).
		Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to get exam questions: %w", err)
	}
	return links, nil
}

func (e *ExamPostgreSQL) AddQuestion(ctx context.Context, tx *gorm.DB, link *models.ExamQuestion) error {
	db := e.getDB(tx)
	return db.WithContext(ctx).Omit("Question").Create(link).Error
}

func (e *ExamPostgreSQL) RemoveQuestion(ctx context.Context, tx *gorm.DB, examID, questionID uint) error {
	db := e.getDB(tx)
	result := db.WithContext(ctx).
		Where("exam_id = ? AND question_id = ?", examID, questionID).
		Delete(&models.ExamQuestion{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove question from exam: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// UpdateOrder writes new positions for the given links.
func (e *ExamPostgreSQL) UpdateOrder(ctx context.Context, tx *gorm.DB, examID uint, orders []repositories.QuestionOrder) error {
	db := e.getDB(tx)
	for _, o := range orders {
		if err := db.WithContext(ctx).
			Model(&models.ExamQuestion{}).
			Where("exam_id = ? AND question_id = ?", examID, o.QuestionID).
			Update("order", o.Order).Error; err != nil {
			return fmt.Errorf("failed to update question order: %w", err)
		}
	}
	return nil
}

func (e *ExamPostgreSQL) UpdateTotalMarks(ctx context.Context, tx *gorm.DB, examID uint, totalMarks float64) error {
	db := e.getDB(tx)
	return db.WithContext(ctx).
		Model(&models.Exam{}).
		Where("id = ?", examID).
		Update("total_marks", totalMarks).Error
}

// LockForRanking takes a transaction scoped advisory lock keyed by exam id.
func (e *ExamPostgreSQL) LockForRanking(ctx context.Context, tx *gorm.DB, examID uint) error {
	db := e.getDB(tx)
	return db.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(?)", int64(examID)).Error
}
