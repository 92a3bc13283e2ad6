package services

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/cache"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/ordering"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/scoring"
	"gorm.io/gorm"
)

const examCacheTTL = 10 * time.Minute

// examCacheEntry is what GetExam keeps under cache.ExamKey.
type examCacheEntry struct {
	Visibility models.ExamVisibility `json:"visibility"`
	IsActive   bool                  `json:"is_active"`
	Summary    *ExamSummary          `json:"summary"`
}

// examService edits the catalogue. None of its operations rescore attempts
// that were already submitted; that needs an explicit recalculation.
type examService struct {
	serviceBase
}

// ===== QUESTIONS =====

func (s *examService) CreateQuestion(ctx context.Context, actor models.Actor, question *models.Question) (created *models.Question, err error) {
	ctx, op := s.log.WithOperation(ctx, "exam.create_question", actor.UserID, 0)
	defer func() {
		var id uint
		if created != nil {
			id = created.ID
		}
		op.LogResult(id, err)
	}()

	if err := requireStaff(actor, "question", "create"); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateStruct(question); err != nil {
		return nil, err
	}
	if err := s.validator.Question().ValidateQuestion(question); err != nil {
		return nil, err
	}

	creator := actor.UserID
	question.ID = 0
	question.CreatedBy = &creator
	question.IsActive = true
	if question.Difficulty == "" {
		question.Difficulty = models.DifficultyMedium
	}
	if err := s.repo.Question().Create(ctx, nil, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}
	return question, nil
}

// DeleteQuestion is refused while any exam or response references the question.
func (s *examService) DeleteQuestion(ctx context.Context, actor models.Actor, questionID uint) (err error) {
	ctx, op := s.log.WithOperation(ctx, "exam.delete_question", actor.UserID, questionID)
	defer func() { op.LogResult(questionID, err) }()

	if err := requireStaff(actor, "question", "delete"); err != nil {
		return err
	}

	return s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		question, err := s.repo.Question().GetByID(ctx, tx, questionID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrQuestionNotFound
			}
			return fmt.Errorf("failed to load question: %w", err)
		}
		if !actor.IsAdmin() && (question.CreatedBy == nil || *question.CreatedBy != actor.UserID) {
			return NewPermissionError(actor.UserID, questionID, "question", "delete", "only the creator or an admin may delete")
		}

		referenced, err := s.repo.Question().IsReferenced(ctx, tx, questionID)
		if err != nil {
			return fmt.Errorf("failed to check question references: %w", err)
		}
		if referenced {
			return ErrQuestionNotDeletable
		}
		return s.repo.Question().Delete(ctx, tx, questionID)
	})
}

// ===== EXAMS =====

func (s *examService) CreateExam(ctx context.Context, actor models.Actor, req *CreateExamRequest) (summary *ExamSummary, err error) {
	ctx, op := s.log.WithOperation(ctx, "exam.create", actor.UserID, 0)
	defer func() {
		var id uint
		if summary != nil {
			id = summary.ID
		}
		op.LogResult(id, err)
	}()

	if err := requireStaff(actor, "exam", "create"); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := s.checkQuestions(ctx, tx, req.Questions); err != nil {
			return err
		}

		creator := actor.UserID
		exam := &models.Exam{
			Title:            req.Title,
			Topic:            req.Topic,
			DurationSeconds:  req.DurationSeconds,
			PassingMarks:     req.PassingMarks,
			ShuffleQuestions: req.ShuffleQuestions,
			Visibility:       req.Visibility,
			IsActive:         true,
			CreatedBy:        &creator,
		}
		if exam.Visibility == "" {
			exam.Visibility = models.VisibilityPublic
		}
		if err := s.repo.Exam().Create(ctx, tx, exam); err != nil {
			return fmt.Errorf("failed to create exam: %w", err)
		}

		for i, in := range req.Questions {
			link := &models.ExamQuestion{
				ExamID:        exam.ID,
				QuestionID:    in.QuestionID,
				Order:         i + 1,
				MarksOverride: in.MarksOverride,
			}
			if err := s.repo.Exam().AddQuestion(ctx, tx, link); err != nil {
				return fmt.Errorf("failed to link question %d: %w", in.QuestionID, err)
			}
		}

		summary, err = s.refreshTotals(ctx, tx, exam)
		if err != nil {
			return err
		}
		if len(req.Questions) > 0 && req.PassingMarks > summary.TotalMarks {
			return NewBusinessRuleError("passing_marks", "passing marks cannot exceed the exam total marks", map[string]interface{}{
				"passing_marks": req.PassingMarks,
				"total_marks":   summary.TotalMarks,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *examService) GetExam(ctx context.Context, actor models.Actor, examID uint) (*ExamSummary, error) {
	entry, err := s.loadExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	visible := (&models.Exam{Visibility: entry.Visibility}).VisibleTo(actor.Role)
	if !visible || (!entry.IsActive && !actor.Role.IsStaff()) {
		return nil, ErrExamNotFound
	}
	return entry.Summary, nil
}

// loadExam reads through the cache. Cache failures fall back to the store.
func (s *examService) loadExam(ctx context.Context, examID uint) (*examCacheEntry, error) {
	key := cache.ExamKey(examID)

	var entry examCacheEntry
	if err := s.cache.Get(ctx, key, &entry); err == nil && entry.Summary != nil {
		return &entry, nil
	}

	exam, err := s.getExam(ctx, nil, examID)
	if err != nil {
		return nil, err
	}
	links, err := s.getQuestions(ctx, nil, examID)
	if err != nil {
		return nil, err
	}

	entry = examCacheEntry{
		Visibility: exam.Visibility,
		IsActive:   exam.IsActive,
		Summary:    examSummary(exam, links),
	}
	if err := s.cache.Set(ctx, key, entry, examCacheTTL); err != nil {
		s.logger.DebugContext(ctx, "Exam not cached", "exam_id", examID, "error", err)
	}
	return &entry, nil
}

// AddQuestion appends the question at position N+1.
func (s *examService) AddQuestion(ctx context.Context, actor models.Actor, examID uint, input ExamQuestionInput) (summary *ExamSummary, err error) {
	ctx, op := s.log.WithOperation(ctx, "exam.add_question", actor.UserID, examID)
	defer func() { op.LogResult(examID, err) }()

	if err := s.validator.ValidateStruct(&input); err != nil {
		return nil, err
	}

	err = s.editExam(ctx, actor, examID, "add question", func(tx *gorm.DB, exam *models.Exam, before []ordering.Item) error {
		for _, it := range before {
			if it.QuestionID == input.QuestionID {
				return ErrQuestionAlreadyInExam
			}
		}
		if err := s.checkQuestions(ctx, tx, []ExamQuestionInput{input}); err != nil {
			return err
		}

		after := ordering.Append(before, input.QuestionID)
		if err := s.applyOrder(ctx, tx, examID, before, after[:len(after)-1]); err != nil {
			return err
		}
		return s.repo.Exam().AddQuestion(ctx, tx, &models.ExamQuestion{
			ExamID:        examID,
			QuestionID:    input.QuestionID,
			Order:         after[len(after)-1].Order,
			MarksOverride: input.MarksOverride,
		})
	}, &summary)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// RemoveQuestion unlinks the question and compacts the rest to 1..N.
func (s *examService) RemoveQuestion(ctx context.Context, actor models.Actor, examID, questionID uint) (summary *ExamSummary, err error) {
	ctx, op := s.log.WithOperation(ctx, "exam.remove_question", actor.UserID, examID)
	defer func() { op.LogResult(examID, err) }()

	err = s.editExam(ctx, actor, examID, "remove question", func(tx *gorm.DB, exam *models.Exam, before []ordering.Item) error {
		if !slices.ContainsFunc(before, func(it ordering.Item) bool { return it.QuestionID == questionID }) {
			return ErrQuestionNotInExam
		}
		if err := s.repo.Exam().RemoveQuestion(ctx, tx, examID, questionID); err != nil {
			return fmt.Errorf("failed to unlink question: %w", err)
		}
		return s.applyOrder(ctx, tx, examID, before, ordering.Remove(before, questionID))
	}, &summary)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// ReorderQuestions puts the listed questions first, in the given order,
// followed by the unlisted ones in their current order.
func (s *examService) ReorderQuestions(ctx context.Context, actor models.Actor, examID uint, questionIDs []uint) (summary *ExamSummary, err error) {
	ctx, op := s.log.WithOperation(ctx, "exam.reorder_questions", actor.UserID, examID)
	defer func() { op.LogResult(examID, err) }()

	err = s.editExam(ctx, actor, examID, "reorder questions", func(tx *gorm.DB, exam *models.Exam, before []ordering.Item) error {
		after, err := ordering.Reorder(before, questionIDs)
		if err != nil {
			return reorderValidationError(err)
		}
		return s.applyOrder(ctx, tx, examID, before, after)
	}, &summary)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// Stats summarises attempts of the exam. The pass rate uses the exam
// passing marks as a share of its current total.
func (s *examService) Stats(ctx context.Context, actor models.Actor, examID uint) (*repositories.AttemptStats, error) {
	if err := requireStaff(actor, "exam", "view stats"); err != nil {
		return nil, err
	}
	exam, err := s.getExam(ctx, nil, examID)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, exam.CreatedBy) {
		return nil, NewPermissionError(actor.UserID, examID, "exam", "view stats", "exam is managed by another teacher")
	}

	passing := scoring.Percentage(exam.PassingMarks, exam.TotalMarks)
	stats, err := s.repo.Attempt().GetExamAttemptStats(ctx, nil, examID, passing)
	if err != nil {
		return nil, fmt.Errorf("failed to compute exam stats: %w", err)
	}
	return stats, nil
}

// ===== HELPERS =====

// editExam runs fn in a transaction after the access check, then refreshes
// the exam total marks and fills summary.
func (s *examService) editExam(ctx context.Context, actor models.Actor, examID uint, action string, fn func(tx *gorm.DB, exam *models.Exam, before []ordering.Item) error, summary **ExamSummary) error {
	if err := requireStaff(actor, "exam", action); err != nil {
		return err
	}

	err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		exam, err := s.getExam(ctx, tx, examID)
		if err != nil {
			return err
		}
		if !canManage(actor, exam.CreatedBy) {
			return NewPermissionError(actor.UserID, examID, "exam", action, "exam is managed by another teacher")
		}

		links, err := s.getQuestions(ctx, tx, examID)
		if err != nil {
			return err
		}
		if err := fn(tx, exam, orderingItems(links)); err != nil {
			return err
		}

		*summary, err = s.refreshTotals(ctx, tx, exam)
		return err
	})
	if err != nil {
		return err
	}

	if err := s.cache.Delete(ctx, cache.ExamKey(examID)); err != nil {
		s.logger.WarnContext(ctx, "Failed to invalidate cached exam", "exam_id", examID, "error", err)
	}
	return nil
}

// checkQuestions verifies every referenced question exists and is listed once.
func (s *examService) checkQuestions(ctx context.Context, tx *gorm.DB, inputs []ExamQuestionInput) error {
	if len(inputs) == 0 {
		return nil
	}
	ids := make([]uint, len(inputs))
	for i, in := range inputs {
		ids[i] = in.QuestionID
	}

	found, err := s.repo.Question().GetByIDs(ctx, tx, ids)
	if err != nil {
		return fmt.Errorf("failed to load questions: %w", err)
	}
	known := make(map[uint]struct{}, len(found))
	for _, q := range found {
		known[q.ID] = struct{}{}
	}

	var errs ValidationErrors
	seen := make(map[uint]struct{}, len(ids))
	for i, id := range ids {
		field := fmt.Sprintf("questions[%d].question_id", i)
		if _, ok := known[id]; !ok {
			errs = errs.Add(field, "question does not exist", id)
		}
		if _, dup := seen[id]; dup {
			errs = errs.Add(field, "question listed more than once", id)
		}
		seen[id] = struct{}{}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// applyOrder writes only the positions that moved.
func (s *examService) applyOrder(ctx context.Context, tx *gorm.DB, examID uint, before, after []ordering.Item) error {
	changes := ordering.Changes(before, after)
	if len(changes) == 0 {
		return nil
	}
	orders := make([]repositories.QuestionOrder, 0, len(changes))
	for id, order := range changes {
		orders = append(orders, repositories.QuestionOrder{QuestionID: id, Order: order})
	}
	slices.SortFunc(orders, func(a, b repositories.QuestionOrder) int { return cmp.Compare(a.QuestionID, b.QuestionID) })

	if err := s.repo.Exam().UpdateOrder(ctx, tx, examID, orders); err != nil {
		return fmt.Errorf("failed to update question order: %w", err)
	}
	return nil
}

// refreshTotals recomputes total marks from the current links.
func (s *examService) refreshTotals(ctx context.Context, tx *gorm.DB, exam *models.Exam) (*ExamSummary, error) {
	links, err := s.getQuestions(ctx, tx, exam.ID)
	if err != nil {
		return nil, err
	}
	total := scoring.TotalMarks(scoring.KeysFromExam(links))
	if total != exam.TotalMarks {
		if err := s.repo.Exam().UpdateTotalMarks(ctx, tx, exam.ID, total); err != nil {
			return nil, fmt.Errorf("failed to update total marks: %w", err)
		}
		exam.TotalMarks = total
	}
	return examSummary(exam, links), nil
}

func orderingItems(links []*models.ExamQuestion) []ordering.Item {
	items := make([]ordering.Item, len(links))
	for i, link := range links {
		items[i] = ordering.Item{QuestionID: link.QuestionID, Order: link.Order}
	}
	return items
}

func examSummary(exam *models.Exam, links []*models.ExamQuestion) *ExamSummary {
	summary := &ExamSummary{
		ID:         exam.ID,
		Title:      exam.Title,
		Visibility: exam.Visibility,
		TotalMarks: exam.TotalMarks,
		Questions:  make([]ExamQuestionOrder, 0, len(links)),
	}
	for _, it := range ordering.Sorted(orderingItems(links)) {
		summary.Questions = append(summary.Questions, ExamQuestionOrder{QuestionID: it.QuestionID, Order: it.Order})
	}
	return summary
}

func reorderValidationError(err error) error {
	var unknown *ordering.UnknownQuestionsError
	var dup *ordering.DuplicateQuestionError
	switch {
	case errors.As(err, &unknown):
		return ValidationErrors{}.Add("question_ids", "questions are not part of this exam", unknown.QuestionIDs)
	case errors.As(err, &dup):
		return ValidationErrors{}.Add("question_ids", "question listed more than once", dup.QuestionID)
	default:
		return err
	}
}
