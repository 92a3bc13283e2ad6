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

type examRepository struct {
	db *DB
}

func (r *examRepository) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	defer r.db.lockWrite(tx)()

	now := time.Now()
	exam.ID = r.db.nextID("exams")
	exam.CreatedAt, exam.UpdatedAt = now, now
	if exam.Visibility == "" {
		exam.Visibility = models.VisibilityPublic
	}
	row := *exam
	row.Questions = nil
	r.db.tables.exams[exam.ID] = row
	return nil
}

func (r *examRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	row, ok := r.db.tables.exams[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &row, nil
}

func (r *examRepository) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	defer r.db.lockWrite(tx)()

	if _, ok := r.db.tables.exams[exam.ID]; !ok {
		return repositories.ErrNotFound
	}
	exam.UpdatedAt = time.Now()
	row := *exam
	row.Questions = nil
	r.db.tables.exams[exam.ID] = row
	return nil
}

func (r *examRepository) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	var exams []*models.Exam
	for _, row := range r.db.tables.exams {
		if len(filters.Visibility) > 0 && !slices.Contains(filters.Visibility, row.Visibility) {
			continue
		}
		if filters.ActiveOnly && !row.IsActive {
			continue
		}
		if filters.CreatedBy != nil && (row.CreatedBy == nil || *row.CreatedBy != *filters.CreatedBy) {
			continue
		}
		exam := row
		exams = append(exams, &exam)
	}
	slices.SortFunc(exams, func(a, b *models.Exam) int { return cmp.Compare(b.ID, a.ID) })
	return paginate(exams, filters.Limit, filters.Offset), nil
}

func (r *examRepository) GetQuestions(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ExamQuestion, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	var links []*models.ExamQuestion
	for _, row := range r.db.tables.examQuestions {
		if row.ExamID != examID {
			continue
		}
		link := row
		if q, ok := r.db.tables.questions[row.QuestionID]; ok {
			link.Question = &q
		}
		links = append(links, &link)
	}
	slices.SortFunc(links, func(a, b *models.ExamQuestion) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return links, nil
}

func (r *examRepository) AddQuestion(ctx context.Context, tx *gorm.DB, link *models.ExamQuestion) error {
	defer r.db.lockWrite(tx)()

	for _, row := range r.db.tables.examQuestions {
		if row.ExamID == link.ExamID && row.QuestionID == link.QuestionID {
			return repositories.ErrDuplicate
		}
	}
	now := time.Now()
	link.ID = r.db.nextID("exam_questions")
	link.CreatedAt, link.UpdatedAt = now, now
	row := *link
	row.Question = nil
	r.db.tables.examQuestions[link.ID] = row
	return nil
}

func (r *examRepository) RemoveQuestion(ctx context.Context, tx *gorm.DB, examID, questionID uint) error {
	defer r.db.lockWrite(tx)()

	for id, row := range r.db.tables.examQuestions {
		if row.ExamID == examID && row.QuestionID == questionID {
			delete(r.db.tables.examQuestions, id)
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (r *examRepository) UpdateOrder(ctx context.Context, tx *gorm.DB, examID uint, orders []repositories.QuestionOrder) error {
	defer r.db.lockWrite(tx)()

	next := make(map[uint]int, len(orders))
	for _, o := range orders {
		next[o.QuestionID] = o.Order
	}
	for id, row := range r.db.tables.examQuestions {
		if order, ok := next[row.QuestionID]; ok && row.ExamID == examID {
			row.Order = order
			row.UpdatedAt = time.Now()
			r.db.tables.examQuestions[id] = row
		}
	}
	return nil
}

func (r *examRepository) UpdateTotalMarks(ctx context.Context, tx *gorm.DB, examID uint, totalMarks float64) error {
	defer r.db.lockWrite(tx)()

	row, ok := r.db.tables.exams[examID]
	if !ok {
		return repositories.ErrNotFound
	}
	row.TotalMarks = totalMarks
	r.db.tables.exams[examID] = row
	return nil
}

// LockForRanking is a no-op: transactions are already serialized.
func (r *examRepository) LockForRanking(ctx context.Context, tx *gorm.DB, examID uint) error {
	return nil
}

type questionRepository struct {
	db *DB
}

func (r *questionRepository) Create(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	defer r.db.lockWrite(tx)()

	now := time.Now()
	question.ID = r.db.nextID("questions")
	question.CreatedAt, question.UpdatedAt = now, now
	r.db.tables.questions[question.ID] = *question
	return nil
}

func (r *questionRepository) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Question, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	row, ok := r.db.tables.questions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &row, nil
}

func (r *questionRepository) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.Question, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	questions := make([]*models.Question, 0, len(ids))
	for _, id := range ids {
		if row, ok := r.db.tables.questions[id]; ok {
			questions = append(questions, &row)
		}
	}
	return questions, nil
}

func (r *questionRepository) Update(ctx context.Context, tx *gorm.DB, question *models.Question) error {
	defer r.db.lockWrite(tx)()

	if _, ok := r.db.tables.questions[question.ID]; !ok {
		return repositories.ErrNotFound
	}
	question.UpdatedAt = time.Now()
	r.db.tables.questions[question.ID] = *question
	return nil
}

func (r *questionRepository) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	defer r.db.lockWrite(tx)()

	if _, ok := r.db.tables.questions[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.db.tables.questions, id)
	return nil
}

func (r *questionRepository) IsReferenced(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	r.db.mutex.RLock()
	defer r.db.mutex.RUnlock()

	for _, row := range r.db.tables.examQuestions {
		if row.QuestionID == id {
			return true, nil
		}
	}
	for _, row := range r.db.tables.responses {
		if row.QuestionID == id {
			return true, nil
		}
	}
	return false, nil
}

func paginate[T any](rows []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
