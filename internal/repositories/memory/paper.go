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

type paperRepository struct {
	db *DB
}

// CreatePaper stores the paper and its questions.
func (r *paperRepository) CreatePaper(ctx context.Context, tx *gorm.DB, paper *models.QuestionPaper) error {
	defer r.db.lockWrite(tx)()

	now := time.Now()
	paper.ID = r.db.nextID("question_papers")
	paper.CreatedAt, paper.UpdatedAt = now, now
	for i := range paper.Questions {
		q := &paper.Questions[i]
		q.ID = r.db.nextID("paper_questions")
		q.PaperID = paper.ID
		r.db.tables.paperQs[q.ID] = *q
	}
	row := *paper
	row.Questions = nil
	r.db.tables.papers[paper.ID] = row
	return nil
}

func (r *paperRepository) GetPaper(ctx context.Context, tx *gorm.DB, id uint) (*models.QuestionPaper, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	row, ok := r.db.tables.papers[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	paper := row
	for _, q := range r.db.tables.paperQs {
		if q.PaperID == id {
			paper.Questions = append(paper.Questions, q)
		}
	}
	slices.SortFunc(paper.Questions, func(a, b models.PaperQuestion) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return &paper, nil
}

func (r *paperRepository) CreateAttempt(ctx context.Context, tx *gorm.DB, attempt *models.PaperAttempt) error {
	defer r.db.lockWrite(tx)()

	for _, row := range r.db.tables.paperAttempts {
		if row.PaperID == attempt.PaperID && row.UserID == attempt.UserID {
			return repositories.ErrDuplicate
		}
	}
	now := time.Now()
	attempt.ID = r.db.nextID("paper_attempts")
	attempt.CreatedAt, attempt.UpdatedAt = now, now
	r.db.tables.paperAttempts[attempt.ID] = stripPaperAttempt(*attempt)
	return nil
}

func (r *paperRepository) GetAttempt(ctx context.Context, tx *gorm.DB, id uint) (*models.PaperAttempt, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	row, ok := r.db.tables.paperAttempts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &row, nil
}

func (r *paperRepository) GetAttemptForUpdate(ctx context.Context, tx *gorm.DB, id uint) (*models.PaperAttempt, error) {
	return r.GetAttempt(ctx, tx, id)
}

func (r *paperRepository) GetAttemptByUser(ctx context.Context, tx *gorm.DB, paperID uint, userID string) (*models.PaperAttempt, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	for _, row := range r.db.tables.paperAttempts {
		if row.PaperID == paperID && row.UserID == userID {
			a := row
			return &a, nil
		}
	}
	return nil, nil
}

func (r *paperRepository) UpdateAttempt(ctx context.Context, tx *gorm.DB, attempt *models.PaperAttempt) error {
	defer r.db.lockWrite(tx)()

	if _, ok := r.db.tables.paperAttempts[attempt.ID]; !ok {
		return repositories.ErrNotFound
	}
	attempt.UpdatedAt = time.Now()
	r.db.tables.paperAttempts[attempt.ID] = stripPaperAttempt(*attempt)
	return nil
}

func (r *paperRepository) GetAnswers(ctx context.Context, tx *gorm.DB, attemptID uint) ([]*models.PaperAnswer, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	var answers []*models.PaperAnswer
	for _, row := range r.db.tables.paperAnswers {
		if row.AttemptID == attemptID {
			a := row
			answers = append(answers, &a)
		}
	}
	slices.SortFunc(answers, func(a, b *models.PaperAnswer) int { return cmp.Compare(a.QuestionID, b.QuestionID) })
	return answers, nil
}

func (r *paperRepository) UpsertAnswer(ctx context.Context, tx *gorm.DB, answer *models.PaperAnswer) error {
	defer r.db.lockWrite(tx)()

	now := time.Now()
	for id, row := range r.db.tables.paperAnswers {
		if row.AttemptID == answer.AttemptID && row.QuestionID == answer.QuestionID {
			row.SelectedOption = answer.SelectedOption
			row.UpdatedAt = now
			r.db.tables.paperAnswers[id] = row
			answer.ID = id
			return nil
		}
	}
	answer.ID = r.db.nextID("paper_answers")
	answer.UpdatedAt = now
	r.db.tables.paperAnswers[answer.ID] = *answer
	return nil
}

func (r *paperRepository) MarkAnswersSubmitted(ctx context.Context, tx *gorm.DB, attemptID uint) error {
	defer r.db.lockWrite(tx)()

	for id, row := range r.db.tables.paperAnswers {
		if row.AttemptID == attemptID {
			row.Submitted = true
			r.db.tables.paperAnswers[id] = row
		}
	}
	return nil
}

func (r *paperRepository) GetEvaluation(ctx context.Context, tx *gorm.DB, attemptID uint) (*models.Evaluation, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	for _, row := range r.db.tables.evaluations {
		if row.AttemptID == attemptID {
			e := row
			return &e, nil
		}
	}
	return nil, nil
}

func (r *paperRepository) SaveEvaluation(ctx context.Context, tx *gorm.DB, evaluation *models.Evaluation) error {
	defer r.db.lockWrite(tx)()

	now := time.Now()
	for id, row := range r.db.tables.evaluations {
		if row.AttemptID == evaluation.AttemptID {
			evaluation.ID = id
			evaluation.CreatedAt = row.CreatedAt
			evaluation.UpdatedAt = now
			r.db.tables.evaluations[id] = *evaluation
			return nil
		}
	}
	evaluation.ID = r.db.nextID("evaluations")
	evaluation.CreatedAt, evaluation.UpdatedAt = now, now
	r.db.tables.evaluations[evaluation.ID] = *evaluation
	return nil
}

func stripPaperAttempt(a models.PaperAttempt) models.PaperAttempt {
	a.Paper = nil
	a.Answers = nil
	a.Evaluation = nil
	return a
}
