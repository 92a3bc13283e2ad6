package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptPostgreSQL struct {
	conn
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{conn: conn{db: db}}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	db := a.getDB(tx)
	return db.WithContext(ctx).Omit("Exam", "Responses").Create(attempt).Error
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) Update(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	db := a.getDB(tx)
	return db.WithContext(ctx).Omit("Exam", "Responses").Save(attempt).Error
}

func (a *AttemptPostgreSQL) GetActiveAttempt(ctx context.Context, tx *gorm.DB, userID string, examID uint) (*models.Attempt, error) {
	db := a.getDB(tx)
	var attempt models.Attempt
	if err := db.WithContext(ctx).
		Where("user_id = ? AND exam_id = ? AND status = ?", userID, examID, models.AttemptInProgress).
		Order("id ASC").
		First(&attempt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) ListByExam(ctx context.Context, tx *gorm.DB, examID uint, filters repositories.AttemptFilters) ([]*models.Attempt, error) {
	db := a.getDB(tx)
	query := db.WithContext(ctx).Model(&models.Attempt{}).Where("exam_id = ?", examID)
	query = a.applyFilters(query, filters)

	var attempts []*models.Attempt
	if err := query.Order("id ASC").Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return attempts, nil
}

func (a *AttemptPostgreSQL) ListTerminalByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Attempt, error) {
	return a.ListByExam(ctx, tx, examID, repositories.AttemptFilters{
		Status: []models.AttemptStatus{models.AttemptSubmitted, models.AttemptTimedOut},
	})
}

// ListExpired finds in-progress attempts whose exam budget has run out.
func (a *AttemptPostgreSQL) ListExpired(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]repositories.ExpiredAttempt, error) {
	db := a.getDB(tx)
	const deadline = "attempts.started_at + make_interval(secs => exams.duration_seconds)"

	query := db.WithContext(ctx).
		Table("attempts").
		Select("attempts.id AS attempt_id, attempts.exam_id, attempts.user_id, "+deadline+" AS deadline").
		Joins("JOIN exams ON exams.id = attempts.exam_id").
		Where("attempts.status = ? AND exams.duration_seconds > 0 AND "+deadline+" < ?", models.AttemptInProgress, now).
		Order("attempts.id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var expired []repositories.ExpiredAttempt
	if err := query.Scan(&expired).Error; err != nil {
		return nil, fmt.Errorf("failed to list expired attempts: %w", err)
	}
	return expired, nil
}

// UpdateRanks writes ranks with one UPDATE ... FROM (VALUES ...) per batch.
func (a *AttemptPostgreSQL) UpdateRanks(ctx context.Context, tx *gorm.DB, updates []repositories.RankUpdate) error {
	db := a.getDB(tx)
	for start := 0; start < len(updates); start += rankBatchSize {
		end := min(start+rankBatchSize, len(updates))
		batch := updates[start:end]

		var sb strings.Builder
		args := make([]interface{}, 0, len(batch)*3)
		sb.WriteString("UPDATE attempts AS a SET rank = v.rank, percentile = v.percentile, updated_at = NOW() FROM (VALUES ")
		for i, u := range batch {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("(?::bigint, ?::bigint, ?::double precision)")
			args = append(args, u.AttemptID, u.Rank, u.Percentile)
		}
		sb.WriteString(") AS v(id, rank, percentile) WHERE a.id = v.id")

		if err := db.WithContext(ctx).Exec(sb.String(), args...).Error; err != nil {
			return fmt.Errorf("failed to update ranks: %w", err)
		}
	}
	return nil
}

func (a *AttemptPostgreSQL) GetExamAttemptStats(ctx context.Context, tx *gorm.DB, examID uint, passingPercentage float64) (*repositories.AttemptStats, error) {
	db := a.getDB(tx)

	var rows []struct {
		Status models.AttemptStatus
		Count  int
	}
	if err := db.WithContext(ctx).Model(&models.Attempt{}).
		Select("status, COUNT(*) AS count").
		Where("exam_id = ?", examID).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to get status breakdown: %w", err)
	}

	stats := &repositories.AttemptStats{StatusBreakdown: make(map[models.AttemptStatus]int)}
	for _, r := range rows {
		stats.StatusBreakdown[r.Status] = r.Count
		stats.TotalAttempts += r.Count
	}

	var agg struct {
		Average float64
		Highest float64
		Passed  int
		Total   int
	}
	if err := db.WithContext(ctx).Model(&models.Attempt{}).
		Select("COALESCE(AVG(total_score), 0) AS average, COALESCE(MAX(total_score), 0) AS highest, "+
			"COUNT(*) FILTER (WHERE percentage >= ?) AS passed, COUNT(*) AS total", passingPercentage).
		Where("exam_id = ? AND status IN ?", examID, []models.AttemptStatus{models.AttemptSubmitted, models.AttemptTimedOut}).
		Scan(&agg).Error; err != nil {
		return nil, fmt.Errorf("failed to aggregate scores: %w", err)
	}

	stats.AverageScore = agg.Average
	stats.HighestScore = agg.Highest
	if agg.Total > 0 {
		stats.PassRate = float64(agg.Passed) / float64(agg.Total) * 100
	}
	return stats, nil
}

func (a *AttemptPostgreSQL) applyFilters(query *gorm.DB, filters repositories.AttemptFilters) *gorm.DB {
	if len(filters.Status) > 0 {
		query = query.Where("status IN ?", filters.Status)
	}
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.DateFrom != nil {
		query = query.Where("started_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("started_at <= ?", *filters.DateTo)
	}
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}
	return query
}
