package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/metrics"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/scoring"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type paperService struct {
	serviceBase
}

func (s *paperService) CreatePaper(ctx context.Context, actor models.Actor, req *CreatePaperRequest) (paper *models.QuestionPaper, err error) {
	ctx, op := s.log.WithOperation(ctx, "paper.create", actor.UserID, 0)
	defer func() {
		var id uint
		if paper != nil {
			id = paper.ID
		}
		op.LogResult(id, err)
	}()

	if err := requireStaff(actor, "paper", "create"); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	var errs ValidationErrors
	for i, q := range req.Questions {
		if _, ok := q.Options[q.CorrectOption]; !ok {
			errs = errs.Add(fmt.Sprintf("questions[%d].correct_option", i), "must be one of the option keys", q.CorrectOption)
		}
	}
	if len(errs) > 0 {
		return nil, errs
	}

	creator := actor.UserID
	paper = &models.QuestionPaper{
		Title:           req.Title,
		DurationMinutes: req.DurationMinutes,
		IsActive:        true,
		CreatedBy:       &creator,
		Questions:       make([]models.PaperQuestion, len(req.Questions)),
	}
	for i, q := range req.Questions {
		options, err := json.Marshal(q.Options)
		if err != nil {
			return nil, fmt.Errorf("failed to encode options: %w", err)
		}
		paper.Questions[i] = models.PaperQuestion{
			Text:          q.Text,
			Options:       datatypes.JSON(options),
			CorrectOption: q.CorrectOption,
			Marks:         q.Marks,
			Order:         i + 1,
		}
	}

	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		return s.repo.Paper().CreatePaper(ctx, tx, paper)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create paper: %w", err)
	}
	return paper, nil
}

// ===== STUDENT PATH =====

// StartPaper returns the caller's attempt for the paper, creating it on the
// first call.
func (s *paperService) StartPaper(ctx context.Context, actor models.Actor, paperID uint) (result *PaperStartResult, err error) {
	ctx, op := s.log.WithOperation(ctx, "paper.start", actor.UserID, paperID)
	defer func() { op.LogResult(paperID, err) }()

	paper, err := s.getPaper(ctx, nil, paperID)
	if err != nil {
		return nil, err
	}
	if !paper.IsActive {
		return nil, ErrPaperNotFound
	}

	var attempt *models.PaperAttempt
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		existing, err := s.repo.Paper().GetAttemptByUser(ctx, tx, paperID, actor.UserID)
		if err != nil {
			return fmt.Errorf("failed to look up paper attempt: %w", err)
		}
		if existing != nil {
			attempt = existing
			return nil
		}
		attempt = &models.PaperAttempt{PaperID: paperID, UserID: actor.UserID, StartedAt: s.now()}
		return s.repo.Paper().CreateAttempt(ctx, tx, attempt)
	})
	if err != nil {
		if !repositories.IsDuplicateError(err) {
			return nil, fmt.Errorf("failed to start paper: %w", err)
		}
		attempt, err = s.repo.Paper().GetAttemptByUser(ctx, nil, paperID, actor.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load concurrently started paper attempt: %w", err)
		}
		if attempt == nil {
			return nil, fmt.Errorf("failed to start paper: %w", ErrConflict)
		}
	}

	result = &PaperStartResult{
		AttemptID: attempt.ID,
		PaperID:   paper.ID,
		StartedAt: attempt.StartedAt,
		Deadline:  attempt.Deadline(paper),
		Submitted: attempt.Submitted,
		Questions: make([]PaperQuestionView, 0, len(paper.Questions)),
	}
	for _, q := range paper.Questions {
		options := map[string]string{}
		if len(q.Options) > 0 {
			if err := json.Unmarshal(q.Options, &options); err != nil {
				return nil, fmt.Errorf("failed to decode options of paper question %d: %w", q.ID, err)
			}
		}
		result.Questions = append(result.Questions, PaperQuestionView{
			QuestionID: q.ID,
			Order:      q.Order,
			Text:       q.Text,
			Options:    options,
			Marks:      q.Marks,
		})
	}
	return result, nil
}

func (s *paperService) SavePaperAnswer(ctx context.Context, actor models.Actor, attemptID uint, req *SavePaperAnswerRequest) (err error) {
	ctx, op := s.log.WithOperation(ctx, "paper.save_answer", actor.UserID, attemptID)
	defer func() { op.LogResult(attemptID, err) }()

	if err := s.validator.ValidateStruct(req); err != nil {
		return err
	}

	return s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		attempt, err := s.getPaperAttempt(ctx, tx, attemptID, true)
		if err != nil {
			return err
		}
		if attempt.UserID != actor.UserID {
			return ErrAttemptNotFound
		}
		paper, err := s.getPaper(ctx, tx, attempt.PaperID)
		if err != nil {
			return err
		}

		if !attempt.IsOpen(paper, s.now()) {
			if attempt.Submitted {
				return ErrAttemptNotActive
			}
			return ErrAttemptTimeExpired
		}
		if !paperHasQuestion(paper, req.QuestionID) {
			return ValidationErrors{}.Add("question_id", "question is not part of this paper", req.QuestionID)
		}

		return s.repo.Paper().UpsertAnswer(ctx, tx, &models.PaperAnswer{
			AttemptID:      attempt.ID,
			QuestionID:     req.QuestionID,
			SelectedOption: strings.TrimSpace(req.SelectedOption),
		})
	})
}

// FinalSubmit is idempotent: once submitted the stored result is returned.
func (s *paperService) FinalSubmit(ctx context.Context, actor models.Actor, attemptID uint) (result *PaperResult, err error) {
	ctx, op := s.log.WithOperation(ctx, "paper.final_submit", actor.UserID, attemptID)
	defer func() { op.LogResult(attemptID, err) }()

	var (
		attempt   *models.PaperAttempt
		submitted bool
	)
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		attempt, err = s.getPaperAttempt(ctx, tx, attemptID, true)
		if err != nil {
			return err
		}
		if attempt.UserID != actor.UserID {
			return ErrAttemptNotFound
		}

		if !attempt.Submitted {
			paper, err := s.getPaper(ctx, tx, attempt.PaperID)
			if err != nil {
				return err
			}
			answers, err := s.repo.Paper().GetAnswers(ctx, tx, attempt.ID)
			if err != nil {
				return fmt.Errorf("failed to load answers: %w", err)
			}
			if err := s.repo.Paper().MarkAnswersSubmitted(ctx, tx, attempt.ID); err != nil {
				return fmt.Errorf("failed to mark answers submitted: %w", err)
			}

			now := s.now()
			obtained := obtainedMarks(paper, answers)
			total := scoring.Round(paper.TotalMarks())

			attempt.Submitted = true
			attempt.SubmittedAt = &now
			attempt.AutoSubmitted = now.After(attempt.Deadline(paper))
			attempt.Score = &obtained
			attempt.MaxScore = &total
			if err := s.repo.Paper().UpdateAttempt(ctx, tx, attempt); err != nil {
				return fmt.Errorf("failed to update paper attempt: %w", err)
			}
			submitted = true
		}

		result, err = s.paperResult(ctx, tx, attempt)
		return err
	})
	if err != nil {
		return nil, err
	}

	if submitted {
		metrics.PaperSubmissions.WithLabelValues(strconv.FormatBool(attempt.AutoSubmitted)).Inc()
		s.publish(ctx, []*events.NotificationEvent{
			events.NewEvent(events.EventPaperSubmitted, events.PaperSubmittedEvent{
				AttemptID:     attempt.ID,
				PaperID:       attempt.PaperID,
				UserID:        attempt.UserID,
				Score:         *attempt.Score,
				MaxScore:      *attempt.MaxScore,
				AutoSubmitted: attempt.AutoSubmitted,
			}),
		})
	}
	return result, nil
}

// ===== EVALUATION =====

// Evaluate replaces the automatic paper score with teacher-entered marks.
// The maximum is the paper total at evaluation time; the last evaluation wins.
func (s *paperService) Evaluate(ctx context.Context, actor models.Actor, attemptID uint, req *EvaluateRequest) (result *PaperResult, err error) {
	ctx, op := s.log.WithOperation(ctx, "paper.evaluate", actor.UserID, attemptID)
	defer func() { op.LogResult(attemptID, err) }()

	if err := requireStaff(actor, "paper attempt", "evaluate"); err != nil {
		return nil, err
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	var evaluation *models.Evaluation
	var attempt *models.PaperAttempt
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		attempt, err = s.getPaperAttempt(ctx, tx, attemptID, true)
		if err != nil {
			return err
		}
		paper, err := s.getPaper(ctx, tx, attempt.PaperID)
		if err != nil {
			return err
		}
		if !canManage(actor, paper.CreatedBy) {
			return NewPermissionError(actor.UserID, attemptID, "paper attempt", "evaluate", "paper is managed by another teacher")
		}
		if !attempt.Submitted {
			return ErrAttemptNotFinished
		}

		total := scoring.Round(paper.TotalMarks())
		marks := *req.Marks
		if marks > total {
			return ValidationErrors{}.Add("marks", fmt.Sprintf("must not exceed the paper total of %.2f", total), marks)
		}

		evaluation, err = s.repo.Paper().GetEvaluation(ctx, tx, attempt.ID)
		if err != nil {
			return fmt.Errorf("failed to load evaluation: %w", err)
		}
		if evaluation == nil {
			evaluation = &models.Evaluation{AttemptID: attempt.ID}
		}
		now := s.now()
		evaluator := actor.UserID
		evaluation.EvaluatorID = &evaluator
		evaluation.Marks = marks
		evaluation.MaxMarks = total
		evaluation.Feedback = req.Feedback
		evaluation.EvaluatedAt = &now
		if err := s.repo.Paper().SaveEvaluation(ctx, tx, evaluation); err != nil {
			return fmt.Errorf("failed to save evaluation: %w", err)
		}

		attempt.Score = &marks
		attempt.MaxScore = &total
		if err := s.repo.Paper().UpdateAttempt(ctx, tx, attempt); err != nil {
			return fmt.Errorf("failed to update paper attempt: %w", err)
		}

		result, err = s.paperResult(ctx, tx, attempt)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, []*events.NotificationEvent{
		events.NewEvent(events.EventPaperEvaluated, events.PaperEvaluatedEvent{
			AttemptID:   attempt.ID,
			PaperID:     attempt.PaperID,
			UserID:      attempt.UserID,
			EvaluatorID: actor.UserID,
			Marks:       evaluation.Marks,
			MaxMarks:    evaluation.MaxMarks,
		}),
	})
	return result, nil
}

// GetPaperResult is visible to the attempt owner and to staff managing the paper.
func (s *paperService) GetPaperResult(ctx context.Context, actor models.Actor, attemptID uint) (*PaperResult, error) {
	attempt, err := s.getPaperAttempt(ctx, nil, attemptID, false)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != actor.UserID {
		paper, err := s.getPaper(ctx, nil, attempt.PaperID)
		if err != nil {
			return nil, err
		}
		if !canManage(actor, paper.CreatedBy) {
			return nil, ErrAttemptNotFound
		}
	}
	return s.paperResult(ctx, nil, attempt)
}

// ===== HELPERS =====

func (s *paperService) paperResult(ctx context.Context, tx *gorm.DB, attempt *models.PaperAttempt) (*PaperResult, error) {
	answers, err := s.repo.Paper().GetAnswers(ctx, tx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load answers: %w", err)
	}
	evaluation, err := s.repo.Paper().GetEvaluation(ctx, tx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load evaluation: %w", err)
	}

	result := &PaperResult{
		AttemptID:     attempt.ID,
		PaperID:       attempt.PaperID,
		UserID:        attempt.UserID,
		Submitted:     attempt.Submitted,
		SubmittedAt:   attempt.SubmittedAt,
		AutoSubmitted: attempt.AutoSubmitted,
		Score:         attempt.Score,
		MaxScore:      attempt.MaxScore,
		Answers:       make([]models.PaperAnswer, 0, len(answers)),
		Evaluation:    evaluation,
	}
	for _, a := range answers {
		result.Answers = append(result.Answers, *a)
	}
	return result, nil
}

// obtainedMarks sums the marks of questions whose selected option matches
// the correct one, ignoring case and surrounding space.
func obtainedMarks(paper *models.QuestionPaper, answers []*models.PaperAnswer) float64 {
	selected := make(map[uint]string, len(answers))
	for _, a := range answers {
		selected[a.QuestionID] = strings.TrimSpace(a.SelectedOption)
	}

	var obtained float64
	for _, q := range paper.Questions {
		choice, ok := selected[q.ID]
		if !ok || choice == "" {
			continue
		}
		if strings.EqualFold(choice, strings.TrimSpace(q.CorrectOption)) {
			obtained += q.Marks
		}
	}
	return scoring.Round(obtained)
}

func paperHasQuestion(paper *models.QuestionPaper, questionID uint) bool {
	for _, q := range paper.Questions {
		if q.ID == questionID {
			return true
		}
	}
	return false
}
