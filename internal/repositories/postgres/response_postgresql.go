package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ResponsePostgreSQL struct {
	conn
}

func NewResponsePostgreSQL(db *gorm.DB) repositories.ResponseRepository {
	return &ResponsePostgreSQL{conn: conn{db: db}}
}

func (r *ResponsePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Response, error) {
	db := r.getDB(tx)
	var response models.Response
	if err := db.WithContext(ctx).First(&response, id).Error; err != nil {
		return nil, err
	}
	return &response, nil
}

func (r *ResponsePostgreSQL) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Response, error) {
	db := r.getDB(tx)
	var responses []*models.Response
	if err := db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("id ASC").
		Find(&responses).Error; err != nil {
		return nil, fmt.Errorf("failed to get responses: %w", err)
	}
	return responses, nil
}

func (r *ResponsePostgreSQL) GetByAttemptWithQuestions(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Response, error) {
	db := r.getDB(tx)
	var responses []*models.Response
	if err := db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Preload("Question", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Order("id ASC").
		Find(&responses).Error; err != nil {
		return nil, fmt.Errorf("failed to get responses: %w", err)
	}
	return responses, nil
}

// Upsert overwrites the stored answer for (attempt_id, question_id).
func (r *ResponsePostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, response *models.Response) error {
	db := r.getDB(tx)
	return db.WithContext(ctx).
		Omit("Question").
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"answer_payload", "time_spent_seconds", "flagged_for_review", "updated_at"}),
		}).
		Create(response).Error
}

func (r *ResponsePostgreSQL) UpdateScores(ctx context.Context, tx *gorm.DB, updates []repositories.ScoreUpdate) error {
	db := r.getDB(tx)
	if len(updates) == 0 {
		return nil
	}

	var sb strings.Builder
	args := make([]interface{}, 0, len(updates)*3)
	sb.WriteString("UPDATE responses AS r SET correct = v.correct, marks_awarded = v.marks, updated_at = NOW() FROM (VALUES ")
	for i, u := range updates {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?::bigint, ?::boolean, ?::double precision)")
		args = append(args, u.ResponseID, u.Correct, u.MarksAwarded)
	}
	sb.WriteString(") AS v(id, correct, marks) WHERE r.id = v.id")

	if err := db.WithContext(ctx).Exec(sb.String(), args...).Error; err != nil {
		return fmt.Errorf("failed to update response scores: %w", err)
	}
	return nil
}

func (r *ResponsePostgreSQL) UpdateGrade(ctx context.Context, tx *gorm.DB, response *models.Response) error {
	db := r.getDB(tx)
	return db.WithContext(ctx).
		Model(&models.Response{}).
		Where("id = ?", response.ID).
		Updates(map[string]interface{}{
			"teacher_mark":     response.TeacherMark,
			"teacher_feedback": response.TeacherFeedback,
			"graded_by":        response.GradedBy,
			"graded_at":        response.GradedAt,
		}).Error
}

func (r *ResponsePostgreSQL) UpdateFlag(ctx context.Context, tx *gorm.DB, id uint, flagged bool) error {
	db := r.getDB(tx)
	return db.WithContext(ctx).
		Model(&models.Response{}).
		Where("id = ?", id).
		Update("flagged_for_review", flagged).Error
}
