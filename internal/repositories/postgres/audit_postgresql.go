package postgres

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
)

type GradeAuditPostgreSQL struct {
	conn
}

func NewGradeAuditPostgreSQL(db *gorm.DB) repositories.GradeAuditRepository {
	return &GradeAuditPostgreSQL{conn: conn{db: db}}
}

func (g *GradeAuditPostgreSQL) Create(ctx context.Context, tx *gorm.DB, audit *models.GradeAudit) error {
	db := g.getDB(tx)
	return db.WithContext(ctx).Create(audit).Error
}

func (g *GradeAuditPostgreSQL) ListByResponse(ctx context.Context, tx *gorm.DB, responseID uint) ([]*models.GradeAudit, error) {
	db := g.getDB(tx)
	var audits []*models.GradeAudit
	if err := db.WithContext(ctx).
		Where("response_id = ?", responseID).
		Order("created_at ASC, id ASC").
		Find(&audits).Error; err != nil {
		return nil, fmt.Errorf("failed to list grade audits: %w", err)
	}
	return audits, nil
}

func (g *GradeAuditPostgreSQL) ListByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.GradeAudit, error) {
	db := g.getDB(tx)
	var audits []*models.GradeAudit
	if err := db.WithContext(ctx).
		Where("attempt_id = ?", attemptID).
		Order("created_at ASC, id ASC").
		Find(&audits).Error; err != nil {
		return nil, fmt.Errorf("failed to list grade audits: %w", err)
	}
	return audits, nil
}
