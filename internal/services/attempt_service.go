package services

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/metrics"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/scoring"
	"gorm.io/gorm"
)

type attemptService struct {
	serviceBase
	finaliser *attemptFinaliser
}

// ===== START =====

func (s *attemptService) Start(ctx context.Context, actor models.Actor, examID uint) (result *StartAttemptResult, err error) {
	ctx, op := s.log.WithOperation(ctx, "attempt.start", actor.UserID, examID)
	defer func() { op.LogResult(examID, err) }()

	exam, err := s.getExam(ctx, nil, examID)
	if err != nil {
		return nil, err
	}
	// Inactive and invisible exams are indistinguishable from missing ones.
	if !exam.IsActive || !exam.VisibleTo(actor.Role) {
		return nil, ErrExamNotFound
	}

	links, err := s.getQuestions(ctx, nil, examID)
	if err != nil {
		return nil, err
	}

	var (
		attempt *models.Attempt
		created bool
	)
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		existing, err := s.repo.Attempt().GetActiveAttempt(ctx, tx, actor.UserID, examID)
		if err != nil {
			return fmt.Errorf("failed to look up active attempt: %w", err)
		}
		if existing != nil {
			attempt = existing
			return nil
		}

		attempt = &models.Attempt{
			UserID:     actor.UserID,
			ExamID:     examID,
			Status:     models.AttemptInProgress,
			StartedAt:  s.now(),
			TotalMarks: scoring.TotalMarks(scoring.KeysFromExam(links)),
		}
		if err := s.repo.Attempt().Create(ctx, tx, attempt); err != nil {
			return err
		}
		created = true
		return nil
	})
	if err != nil {
		if !repositories.IsDuplicateError(err) {
			return nil, fmt.Errorf("failed to start attempt: %w", err)
		}
		// A concurrent start won the unique index race.
		attempt, err = s.repo.Attempt().GetActiveAttempt(ctx, nil, actor.UserID, examID)
		if err != nil {
			return nil, fmt.Errorf("failed to load concurrently started attempt: %w", err)
		}
		if attempt == nil {
			return nil, fmt.Errorf("failed to start attempt: %w", ErrConflict)
		}
		created = false
	}

	views, err := questionViews(links, attempt.ID, exam.ShuffleQuestions)
	if err != nil {
		return nil, fmt.Errorf("failed to build question views: %w", err)
	}

	expiresAt := exam.Deadline(attempt.StartedAt)
	if created {
		metrics.AttemptsStarted.Inc()
		s.publish(ctx, []*events.NotificationEvent{
			events.NewEvent(events.EventAttemptStarted, events.AttemptStartedEvent{
				AttemptID: attempt.ID,
				ExamID:    examID,
				UserID:    actor.UserID,
				StartedAt: attempt.StartedAt,
				ExpiresAt: expiresAt,
			}),
		})
	}

	return &StartAttemptResult{
		AttemptID: attempt.ID,
		ExamID:    examID,
		Status:    attempt.Status,
		StartedAt: attempt.StartedAt,
		ExpiresAt: expiresAt,
		Resumed:   !created,
		Questions: views,
	}, nil
}

// ===== SUBMIT =====

func (s *attemptService) Submit(ctx context.Context, actor models.Actor, attemptID uint, responses []ResponseInput) (result *SubmitResult, err error) {
	ctx, op := s.log.WithOperation(ctx, "attempt.submit", actor.UserID, attemptID)
	defer func() { op.LogResult(attemptID, err) }()

	var outcome *finaliseOutcome
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		attempt, err := s.getOwnedAttempt(ctx, tx, actor, attemptID, true)
		if err != nil {
			return err
		}

		// Repeated submits answer from the stored result.
		if attempt.Status.IsTerminal() {
			result = submitResult(attempt, nil)
			result.AlreadyFinished = true
			return nil
		}

		exam, err := s.getExam(ctx, tx, attempt.ExamID)
		if err != nil {
			return err
		}
		links, err := s.getQuestions(ctx, tx, exam.ID)
		if err != nil {
			return err
		}

		if errs := validateInputs(responses, links); len(errs) > 0 {
			return errs
		}
		if err := s.finaliser.applyInputs(ctx, tx, attempt.ID, responses); err != nil {
			return err
		}

		now := s.now()
		status := models.AttemptSubmitted
		if isExpired(exam, attempt, now) {
			status = models.AttemptTimedOut
		}

		outcome, err = s.finaliser.finalise(ctx, tx, attempt, exam, links, status, now)
		if err != nil {
			return err
		}
		result = submitResult(outcome.attempt, outcome.result.Warnings)
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outcome != nil {
		s.finaliser.afterCommit(ctx, outcome, triggerSubmit)
	}
	return result, nil
}

// ===== AUTOSAVE & RESUME =====

func (s *attemptService) SaveProgress(ctx context.Context, actor models.Actor, attemptID uint, responses []ResponseInput) (result *SaveProgressResult, err error) {
	ctx, op := s.log.WithOperation(ctx, "attempt.save_progress", actor.UserID, attemptID)
	defer func() { op.LogResult(attemptID, err) }()

	var outcome *finaliseOutcome
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		attempt, err := s.getOwnedAttempt(ctx, tx, actor, attemptID, true)
		if err != nil {
			return err
		}
		if attempt.Status.IsTerminal() {
			return ErrAttemptNotActive
		}

		exam, err := s.getExam(ctx, tx, attempt.ExamID)
		if err != nil {
			return err
		}
		links, err := s.getQuestions(ctx, tx, exam.ID)
		if err != nil {
			return err
		}

		now := s.now()
		if isExpired(exam, attempt, now) {
			// The late payload is discarded; what was saved before the
			// deadline is scored and committed.
			outcome, err = s.finaliser.finalise(ctx, tx, attempt, exam, links, models.AttemptTimedOut, now)
			return err
		}

		if errs := validateInputs(responses, links); len(errs) > 0 {
			return errs
		}
		if err := s.finaliser.applyInputs(ctx, tx, attempt.ID, responses); err != nil {
			return err
		}

		result = &SaveProgressResult{
			AttemptID:        attempt.ID,
			Saved:            len(responses),
			RemainingSeconds: remainingSeconds(exam, attempt, now),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outcome != nil {
		s.finaliser.afterCommit(ctx, outcome, triggerAutosave)
		return nil, ErrAttemptTimeExpired
	}
	return result, nil
}

func (s *attemptService) Resume(ctx context.Context, actor models.Actor, attemptID uint) (result *ResumeResult, err error) {
	ctx, op := s.log.WithOperation(ctx, "attempt.resume", actor.UserID, attemptID)
	defer func() { op.LogResult(attemptID, err) }()

	var outcome *finaliseOutcome
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		attempt, err := s.getOwnedAttempt(ctx, tx, actor, attemptID, true)
		if err != nil {
			return err
		}
		exam, err := s.getExam(ctx, tx, attempt.ExamID)
		if err != nil {
			return err
		}
		links, err := s.getQuestions(ctx, tx, exam.ID)
		if err != nil {
			return err
		}

		now := s.now()
		if attempt.Status == models.AttemptInProgress && isExpired(exam, attempt, now) {
			outcome, err = s.finaliser.finalise(ctx, tx, attempt, exam, links, models.AttemptTimedOut, now)
			if err != nil {
				return err
			}
			attempt = outcome.attempt
		}

		responses, err := s.repo.Response().GetByAttempt(ctx, tx, attempt.ID)
		if err != nil {
			return fmt.Errorf("failed to load responses: %w", err)
		}
		views, err := questionViews(links, attempt.ID, exam.ShuffleQuestions)
		if err != nil {
			return fmt.Errorf("failed to build question views: %w", err)
		}

		result = &ResumeResult{
			AttemptID:        attempt.ID,
			Status:           attempt.Status,
			StartedAt:        attempt.StartedAt,
			ExpiresAt:        exam.Deadline(attempt.StartedAt),
			RemainingSeconds: remainingSeconds(exam, attempt, now),
			TimeSpentSeconds: int(attempt.Elapsed(now).Seconds()),
			Questions:        views,
			Responses:        savedResponses(responses),
		}
		if attempt.Status.IsTerminal() {
			result.Result = submitResult(attempt, nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if outcome != nil {
		s.finaliser.afterCommit(ctx, outcome, triggerResume)
	}
	return result, nil
}

// ===== SWEEP =====

// SweepExpired finalises each overrun attempt in its own transaction so one
// failure does not hold back the rest of the batch.
func (s *attemptService) SweepExpired(ctx context.Context, now time.Time, batch int) (*SweepResult, error) {
	expired, err := s.repo.Attempt().ListExpired(ctx, nil, now, batch)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired attempts: %w", err)
	}

	result := &SweepResult{AttemptIDs: []uint{}}
	for _, candidate := range expired {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		var outcome *finaliseOutcome
		err := s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
			attempt, err := s.getAttempt(ctx, tx, candidate.AttemptID, true)
			if err != nil {
				return err
			}
			// Submitted between listing and locking.
			if attempt.Status.IsTerminal() {
				return nil
			}
			exam, err := s.getExam(ctx, tx, attempt.ExamID)
			if err != nil {
				return err
			}
			if !isExpired(exam, attempt, now) {
				return nil
			}
			links, err := s.getQuestions(ctx, tx, exam.ID)
			if err != nil {
				return err
			}
			outcome, err = s.finaliser.finalise(ctx, tx, attempt, exam, links, models.AttemptTimedOut, now)
			return err
		})
		if err != nil {
			s.logger.ErrorContext(ctx, "Failed to finalise expired attempt",
				"attempt_id", candidate.AttemptID,
				"exam_id", candidate.ExamID,
				"error", err)
			continue
		}
		if outcome == nil {
			continue
		}

		s.finaliser.afterCommit(ctx, outcome, triggerSweep)
		result.Finalised++
		result.AttemptIDs = append(result.AttemptIDs, candidate.AttemptID)
	}

	s.logger.InfoContext(ctx, "Expired attempts swept",
		"candidates", len(expired),
		"finalised", result.Finalised)
	return result, nil
}
