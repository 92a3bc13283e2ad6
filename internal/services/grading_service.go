package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/metrics"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type gradingService struct {
	serviceBase
	finaliser *attemptFinaliser
}

// canReview: students see their own attempts, teachers the attempts of
// exams they manage, admins everything.
func canReview(actor models.Actor, attempt *models.Attempt, exam *models.Exam) bool {
	if actor.IsStudent() {
		return attempt.UserID == actor.UserID
	}
	return canManage(actor, exam.CreatedBy)
}

// ===== REVIEW =====

func (s *gradingService) Review(ctx context.Context, actor models.Actor, attemptID uint) (result *ReviewResult, err error) {
	ctx, op := s.log.WithOperation(ctx, "grading.review", actor.UserID, attemptID)
	defer func() { op.LogResult(attemptID, err) }()

	attempt, err := s.getAttempt(ctx, nil, attemptID, false)
	if err != nil {
		return nil, err
	}
	exam, err := s.getExam(ctx, nil, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	// Existence is not revealed to callers outside the attempt's scope.
	if !canReview(actor, attempt, exam) {
		return nil, ErrAttemptNotFound
	}

	responses, err := s.repo.Response().GetByAttemptWithQuestions(ctx, nil, attemptID)
	if err != nil {
		return nil, fmt.Errorf("failed to load responses: %w", err)
	}

	result = &ReviewResult{
		AttemptID:  attempt.ID,
		ExamID:     attempt.ExamID,
		UserID:     attempt.UserID,
		Status:     attempt.Status,
		Score:      attempt.TotalScore,
		Percentage: attempt.Percentage,
		Rank:       attempt.Rank,
		Percentile: attempt.Percentile,
		Responses:  make([]ReviewItem, 0, len(responses)),
	}
	for _, r := range responses {
		item := ReviewItem{
			ResponseID:       r.ID,
			QuestionID:       r.QuestionID,
			Answer:           json.RawMessage("null"),
			Correct:          r.Correct,
			MarksAwarded:     r.MarksAwarded,
			TeacherMark:      r.TeacherMark,
			Remarks:          r.TeacherFeedback,
			FlaggedForReview: r.FlaggedForReview,
		}
		if len(r.AnswerPayload) > 0 {
			item.Answer = json.RawMessage(r.AnswerPayload)
		}
		if r.Question != nil {
			item.QuestionText = r.Question.Statement
			item.QuestionType = r.Question.Type
		}
		result.Responses = append(result.Responses, item)
	}
	return result, nil
}

// ===== MANUAL GRADING =====

// GradeResponse records a teacher mark next to the automatic result. The
// automatic correct flag and the attempt score are left untouched.
func (s *gradingService) GradeResponse(ctx context.Context, actor models.Actor, responseID uint, req *GradeRequest) (result *GradeResult, err error) {
	ctx, op := s.log.WithOperation(ctx, "grading.grade_response", actor.UserID, responseID)
	defer func() { op.LogResult(responseID, err) }()

	if actor.IsStudent() {
		return nil, NewPermissionError(actor.UserID, responseID, "response", "grade", "students cannot grade")
	}
	if err := s.validator.ValidateStruct(req); err != nil {
		return nil, err
	}

	var graded *models.Response
	var studentID string
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		response, err := s.getResponse(ctx, tx, responseID)
		if err != nil {
			return err
		}
		attempt, err := s.getAttempt(ctx, tx, response.AttemptID, true)
		if err != nil {
			return err
		}
		exam, err := s.getExam(ctx, tx, attempt.ExamID)
		if err != nil {
			return err
		}
		if !canManage(actor, exam.CreatedBy) {
			return NewPermissionError(actor.UserID, responseID, "response", "grade", "exam is managed by another teacher")
		}
		if !attempt.Status.IsTerminal() {
			return ErrAttemptNotFinished
		}

		previousMark, previousFeedback := response.TeacherMark, response.TeacherFeedback
		now := s.now()
		grader := actor.UserID

		response.TeacherMark = req.TeacherMark
		response.TeacherFeedback = req.Remarks
		response.GradedBy = &grader
		response.GradedAt = &now
		if err := s.repo.Response().UpdateGrade(ctx, tx, response); err != nil {
			return fmt.Errorf("failed to store grade: %w", err)
		}

		audit := &models.GradeAudit{
			EventType:        models.AuditGradeUpdated,
			GraderID:         actor.UserID,
			GraderRole:       actor.Role,
			AttemptID:        attempt.ID,
			ResponseID:       &response.ID,
			PreviousMark:     previousMark,
			NewMark:          req.TeacherMark,
			PreviousFeedback: previousFeedback,
			NewFeedback:      req.Remarks,
			CreatedAt:        now,
		}
		if err := s.repo.GradeAudit().Create(ctx, tx, audit); err != nil {
			return fmt.Errorf("failed to write grade audit: %w", err)
		}

		graded = response
		studentID = attempt.UserID
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TeacherGrades.Inc()
	s.publish(ctx, []*events.NotificationEvent{
		events.NewEvent(events.EventResponseGraded, events.ResponseGradedEvent{
			ResponseID:  graded.ID,
			AttemptID:   graded.AttemptID,
			QuestionID:  graded.QuestionID,
			StudentID:   studentID,
			GraderID:    actor.UserID,
			TeacherMark: graded.TeacherMark,
		}),
	})

	return &GradeResult{Status: "graded", ResponseID: graded.ID, TeacherMark: graded.TeacherMark}, nil
}

// FlagResponse may be called by the attempt owner or by staff managing the exam.
func (s *gradingService) FlagResponse(ctx context.Context, actor models.Actor, responseID uint, flagged bool) (err error) {
	ctx, op := s.log.WithOperation(ctx, "grading.flag_response", actor.UserID, responseID)
	defer func() { op.LogResult(responseID, err) }()

	return s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		response, err := s.getResponse(ctx, tx, responseID)
		if err != nil {
			return err
		}
		attempt, err := s.getAttempt(ctx, tx, response.AttemptID, false)
		if err != nil {
			return err
		}
		exam, err := s.getExam(ctx, tx, attempt.ExamID)
		if err != nil {
			return err
		}
		if !canReview(actor, attempt, exam) {
			if actor.IsStudent() {
				return ErrResponseNotFound
			}
			return NewPermissionError(actor.UserID, responseID, "response", "flag", "exam is managed by another teacher")
		}
		return s.repo.Response().UpdateFlag(ctx, tx, responseID, flagged)
	})
}

func (s *gradingService) GradeHistory(ctx context.Context, actor models.Actor, responseID uint) ([]*models.GradeAudit, error) {
	if actor.IsStudent() {
		return nil, NewPermissionError(actor.UserID, responseID, "response", "view history", "staff role required")
	}

	response, err := s.getResponse(ctx, nil, responseID)
	if err != nil {
		return nil, err
	}
	attempt, err := s.getAttempt(ctx, nil, response.AttemptID, false)
	if err != nil {
		return nil, err
	}
	exam, err := s.getExam(ctx, nil, attempt.ExamID)
	if err != nil {
		return nil, err
	}
	if !canManage(actor, exam.CreatedBy) {
		return nil, NewPermissionError(actor.UserID, responseID, "response", "view history", "exam is managed by another teacher")
	}

	audits, err := s.repo.GradeAudit().ListByResponse(ctx, nil, responseID)
	if err != nil {
		return nil, fmt.Errorf("failed to load grade history: %w", err)
	}
	return audits, nil
}

// ===== RECALCULATION =====

// Recalculate rescores persisted responses against the current answer key.
// With applyTeacherMarks the teacher mark replaces the automatic award where
// one is set. Running it twice yields the same result.
func (s *gradingService) Recalculate(ctx context.Context, actor models.Actor, attemptID uint, applyTeacherMarks bool) (result *RecalculateResult, err error) {
	ctx, op := s.log.WithOperation(ctx, "grading.recalculate", actor.UserID, attemptID)
	defer func() { op.LogResult(attemptID, err) }()

	if actor.IsStudent() {
		return nil, NewPermissionError(actor.UserID, attemptID, "attempt", "recalculate", "staff role required")
	}

	var (
		attempt *models.Attempt
		ranked  *rerankOutcome
	)
	err = s.repo.WithTransaction(ctx, func(tx *gorm.DB) error {
		var err error
		attempt, err = s.getAttempt(ctx, tx, attemptID, true)
		if err != nil {
			return err
		}
		exam, err := s.getExam(ctx, tx, attempt.ExamID)
		if err != nil {
			return err
		}
		if !canManage(actor, exam.CreatedBy) {
			return NewPermissionError(actor.UserID, attemptID, "attempt", "recalculate", "exam is managed by another teacher")
		}
		if !attempt.Status.IsTerminal() {
			return ErrAttemptNotFinished
		}

		links, err := s.getQuestions(ctx, tx, exam.ID)
		if err != nil {
			return err
		}
		responses, err := s.repo.Response().GetByAttempt(ctx, tx, attempt.ID)
		if err != nil {
			return fmt.Errorf("failed to load responses: %w", err)
		}

		scored, err := s.finaliser.score(ctx, tx, links, responses, applyTeacherMarks)
		if err != nil {
			return err
		}

		previous := attempt.TotalScore
		attempt.TotalScore = scored.TotalScore
		attempt.TotalMarks = scored.TotalMarks
		attempt.Percentage = scored.Percentage
		attempt.TeacherAdjusted = applyTeacherMarks
		if err := s.repo.Attempt().Update(ctx, tx, attempt); err != nil {
			return fmt.Errorf("failed to update attempt: %w", err)
		}

		changes, _ := json.Marshal(map[string]interface{}{
			"apply_teacher_marks": applyTeacherMarks,
			"total_marks":         scored.TotalMarks,
			"percentage":          scored.Percentage,
		})
		newScore := scored.TotalScore
		audit := &models.GradeAudit{
			EventType:    models.AuditScoreRecalculated,
			GraderID:     actor.UserID,
			GraderRole:   actor.Role,
			AttemptID:    attempt.ID,
			PreviousMark: &previous,
			NewMark:      &newScore,
			Changes:      datatypes.JSON(changes),
			CreatedAt:    s.now(),
		}
		if err := s.repo.GradeAudit().Create(ctx, tx, audit); err != nil {
			return fmt.Errorf("failed to write recalculation audit: %w", err)
		}

		ranked, err = s.finaliser.rerank(ctx, tx, exam.ID)
		if err != nil {
			return err
		}
		applyStanding(attempt, ranked.standings)

		result = &RecalculateResult{
			AttemptID:           attempt.ID,
			Score:               scored.TotalScore,
			Percentage:          scored.Percentage,
			TotalMarks:          scored.TotalMarks,
			TeacherMarksApplied: applyTeacherMarks,
			Warnings:            scored.Warnings,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, []*events.NotificationEvent{
		events.NewEvent(events.EventAttemptRecalculated, events.AttemptRecalculatedEvent{
			AttemptID:          attempt.ID,
			ExamID:             attempt.ExamID,
			Score:              attempt.TotalScore,
			Percentage:         attempt.Percentage,
			TeacherMarksFolded: applyTeacherMarks,
			RequestedBy:        actor.UserID,
		}),
	})
	s.finaliser.leaderboard.Refresh(ctx, attempt.ExamID, ranked.board)

	return result, nil
}
