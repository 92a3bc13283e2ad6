package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"gorm.io/gorm"
)

type attemptRepository struct {
	db *DB
}

func (r *attemptRepository) Create(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	defer r.db.lockWrite(tx)()

	now := time.Now()
	attempt.ID = r.db.nextID("attempts")
	attempt.CreatedAt, attempt.UpdatedAt = now, now
	r.db.tables.attempts[attempt.ID] = stripAttempt(*attempt)
	return nil
}

func (r *attemptRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	row, ok := r.db.tables.attempts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &row, nil
}

func (r *attemptRepository) GetByIDForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.Attempt, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *attemptRepository) Update(ctx context.Context, tx *gorm.DB, attempt *models.Attempt) error {
	defer r.db.lockWrite(tx)()

	if _, ok := r.db.tables.attempts[attempt.ID]; !ok {
		return repositories.ErrNotFound
	}
	attempt.UpdatedAt = time.Now()
	r.db.tables.attempts[attempt.ID] = stripAttempt(*attempt)
	return nil
}

func (r *attemptRepository) GetActiveAttempt(ctx context.Context, tx *gorm.DB, userID string, examID uint) (*models.Attempt, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	var found *models.Attempt
	for _, row := range r.db.tables.attempts {
		if row.UserID == userID && row.ExamID == examID && row.Status == models.AttemptInProgress {
			if found == nil || row.ID < found.ID {
				a := row
				found = &a
			}
		}
	}
	return found, nil
}

func (r *attemptRepository) ListByExam(ctx context.Context, tx *gorm.DB, examID uint, filters repositories.AttemptFilters) ([]*models.Attempt, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	var attempts []*models.Attempt
	for _, row := range r.db.tables.attempts {
		if row.ExamID != examID {
			continue
		}
		if len(filters.Status) > 0 && !slices.Contains(filters.Status, row.Status) {
			continue
		}
		if filters.UserID != nil && row.UserID != *filters.UserID {
			continue
		}
		if filters.DateFrom != nil && row.StartedAt.Before(*filters.DateFrom) {
			continue
		}
		if filters.DateTo != nil && row.StartedAt.After(*filters.DateTo) {
			continue
		}
		a := row
		attempts = append(attempts, &a)
	}
	slices.SortFunc(attempts, func(a, b *models.Attempt) int { return cmp.Compare(a.ID, b.ID) })
	return paginate(attempts, filters.Limit, filters.Offset), nil
}

func (r *attemptRepository) ListTerminalByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.Attempt, error) {
	return r.ListByExam(ctx, tx, examID, repositories.AttemptFilters{
		Status: []models.AttemptStatus{models.AttemptSubmitted, models.AttemptTimedOut},
	})
}

func (r *attemptRepository) ListExpired(ctx context.Context, tx *gorm.DB, now time.Time, limit int) ([]repositories.ExpiredAttempt, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	var expired []repositories.ExpiredAttempt
	for _, row := range r.db.tables.attempts {
		if row.Status != models.AttemptInProgress {
			continue
		}
		exam, ok := r.db.tables.exams[row.ExamID]
		// Untimed exams never expire.
		if !ok || exam.DurationSeconds <= 0 {
			continue
		}
		deadline := exam.Deadline(row.StartedAt)
		if deadline.Before(now) {
			expired = append(expired, repositories.ExpiredAttempt{
				AttemptID: row.ID,
				ExamID:    row.ExamID,
				UserID:    row.UserID,
				Deadline:  deadline,
			})
		}
	}
	slices.SortFunc(expired, func(a, b repositories.ExpiredAttempt) int { return cmp.Compare(a.AttemptID, b.AttemptID) })
	return paginate(expired, limit, 0), nil
}

func (r *attemptRepository) UpdateRanks(ctx context.Context, tx *gorm.DB, updates []repositories.RankUpdate) error {
	defer r.db.lockWrite(tx)()

	for _, u := range updates {
		row, ok := r.db.tables.attempts[u.AttemptID]
		if !ok {
			continue
		}
		rank, percentile := u.Rank, u.Percentile
		row.Rank = &rank
		row.Percentile = &percentile
		r.db.tables.attempts[u.AttemptID] = row
	}
	return nil
}

func (r *attemptRepository) GetExamAttemptStats(ctx context.Context, tx *gorm.DB, examID uint, passingPercentage float64) (*repositories.AttemptStats, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	stats := &repositories.AttemptStats{StatusBreakdown: make(map[models.AttemptStatus]int)}
	var sum float64
	var terminal, passed int
	for _, row := range r.db.tables.attempts {
		if row.ExamID != examID {
			continue
		}
		stats.TotalAttempts++
		stats.StatusBreakdown[row.Status]++
		if !row.Status.IsTerminal() {
			continue
		}
		terminal++
		sum += row.TotalScore
		stats.HighestScore = max(stats.HighestScore, row.TotalScore)
		if row.Percentage >= passingPercentage {
			passed++
		}
	}
	if terminal > 0 {
		stats.AverageScore = sum / float64(terminal)
		stats.PassRate = float64(passed) / float64(terminal) * 100
	}
	return stats, nil
}

func stripAttempt(a models.Attempt) models.Attempt {
	a.Exam = nil
	a.Responses = nil
	return a
}

type responseRepository struct {
	db *DB
}

func (r *responseRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Response, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	row, ok := r.db.tables.responses[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &row, nil
}

func (r *responseRepository) GetByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Response, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	return r.byAttempt(attemptID, false), nil
}

func (r *responseRepository) GetByAttemptWithQuestions(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.Response, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	return r.byAttempt(attemptID, true), nil
}

// byAttempt must be called with the read lock held.
func (r *responseRepository) byAttempt(attemptID uint, withQuestions bool) []*models.Response {
	var responses []*models.Response
	for _, row := range r.db.tables.responses {
		if row.AttemptID != attemptID {
			continue
		}
		resp := row
		if withQuestions {
			if q, ok := r.db.tables.questions[row.QuestionID]; ok {
				resp.Question = &q
			}
		}
		responses = append(responses, &resp)
	}
	slices.SortFunc(responses, func(a, b *models.Response) int { return cmp.Compare(a.ID, b.ID) })
	return responses
}

func (r *responseRepository) Upsert(ctx context.Context, tx *gorm.DB, response *models.Response) error {
	defer r.db.lockWrite(tx)()

	now := time.Now()
	for id, row := range r.db.tables.responses {
		if row.AttemptID == response.AttemptID && row.QuestionID == response.QuestionID {
			row.AnswerPayload = response.AnswerPayload
			row.TimeSpentSeconds = response.TimeSpentSeconds
			row.FlaggedForReview = response.FlaggedForReview
			row.UpdatedAt = now
			r.db.tables.responses[id] = row
			response.ID = id
			return nil
		}
	}

	response.ID = r.db.nextID("responses")
	response.CreatedAt, response.UpdatedAt = now, now
	row := *response
	row.Question = nil
	r.db.tables.responses[response.ID] = row
	return nil
}

func (r *responseRepository) UpdateScores(ctx context.Context, tx *gorm.DB, updates []repositories.ScoreUpdate) error {
	defer r.db.lockWrite(tx)()

	for _, u := range updates {
		row, ok := r.db.tables.responses[u.ResponseID]
		if !ok {
			continue
		}
		row.Correct = u.Correct
		row.MarksAwarded = u.MarksAwarded
		r.db.tables.responses[u.ResponseID] = row
	}
	return nil
}

func (r *responseRepository) UpdateGrade(ctx context.Context, tx *gorm.DB, response *models.Response) error {
	defer r.db.lockWrite(tx)()

	row, ok := r.db.tables.responses[response.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	row.TeacherMark = response.TeacherMark
	row.TeacherFeedback = response.TeacherFeedback
	row.GradedBy = response.GradedBy
	row.GradedAt = response.GradedAt
	r.db.tables.responses[response.ID] = row
	return nil
}

func (r *responseRepository) UpdateFlag(ctx context.Context, tx *gorm.DB, id uint, flagged bool) error {
	defer r.db.lockWrite(tx)()

	row, ok := r.db.tables.responses[id]
	if !ok {
		return repositories.ErrNotFound
	}
	row.FlaggedForReview = flagged
	r.db.tables.responses[id] = row
	return nil
}

type auditRepository struct {
	db *DB
}

func (r *auditRepository) Create(ctx context.Context, tx *gorm.DB, audit *models.GradeAudit) error {
	defer r.db.lockWrite(tx)()

	audit.ID = r.db.nextID("grade_audits")
	if audit.CreatedAt.IsZero() {
		audit.CreatedAt = time.Now()
	}
	r.db.tables.audits[audit.ID] = *audit
	return nil
}

func (r *auditRepository) ListByResponse(ctx context.Context, tx *gorm.DB, responseID uint) ([]*models.GradeAudit, error) {
	return r.list(func(a models.GradeAudit) bool {
		return a.ResponseID != nil && *a.ResponseID == responseID
	}), nil
}

func (r *auditRepository) ListByAttempt(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.GradeAudit, error) {
	return r.list(func(a models.GradeAudit) bool { return a.AttemptID == attemptID }), nil
}

func (r *auditRepository) list(match func(models.GradeAudit) bool) []*models.GradeAudit {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	var audits []*models.GradeAudit
	for _, row := range r.db.tables.audits {
		if match(row) {
			a := row
			audits = append(audits, &a)
		}
	}
	slices.SortFunc(audits, func(a, b *models.GradeAudit) int { return cmp.Compare(a.ID, b.ID) })
	return audits
}
