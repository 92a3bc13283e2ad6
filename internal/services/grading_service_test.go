package services

import (
	"testing"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// submittedWithWrongFIB returns an attempt scored 5/10 with the FIB answer "gm".
func (f *fixture) submittedWithWrongFIB() (attemptID uint, exam *ExamSummary, mcq, fib *models.Question) {
	f.t.Helper()
	exam, mcq, fib = f.unitsExam()
	started := f.start(student, exam.ID)
	_, err := f.services.Attempt().Submit(f.ctx, student, started.AttemptID, []ResponseInput{
		answer(mcq.ID, scoring.EncodeChoices("A")),
		answer(fib.ID, scoring.EncodeText("gm")),
	})
	require.NoError(f.t, err)
	return started.AttemptID, exam, mcq, fib
}

func TestGradeResponse_RemarksVisibleInReviewOnlyToOwner(t *testing.T) {
	f := newFixture(t)
	attemptID, _, _, fib := f.submittedWithWrongFIB()
	response := f.responseFor(attemptID, fib.ID)

	graded, err := f.services.Grading().GradeResponse(f.ctx, teacher, response.ID, &GradeRequest{
		TeacherMark: ptr(0.5),
		Remarks:     "Close, but the symbol is g.",
	})
	require.NoError(t, err)
	assert.Equal(t, "graded", graded.Status)

	review, err := f.services.Grading().Review(f.ctx, student, attemptID)
	require.NoError(t, err)
	var item ReviewItem
	for _, it := range review.Responses {
		if it.ResponseID == response.ID {
			item = it
		}
	}
	assert.Equal(t, "Close, but the symbol is g.", item.Remarks)
	require.NotNil(t, item.TeacherMark)
	assert.Equal(t, 0.5, *item.TeacherMark)
	assert.False(t, item.Correct, "automatic result is kept")
	assert.Equal(t, "Symbol for gram?", item.QuestionText)
	assert.JSONEq(t, `{"answer":"gm"}`, string(item.Answer))

	_, err = f.services.Grading().Review(f.ctx, otherStudent, attemptID)
	assert.ErrorIs(t, err, ErrAttemptNotFound)

	attempt, err := f.repo.Attempt().GetByID(f.ctx, nil, attemptID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, attempt.TotalScore, "grading does not touch the attempt score")

	assert.Len(t, f.publisher.EventsOfType(events.EventResponseGraded), 1)
}

func TestGradeResponse_AccessRules(t *testing.T) {
	f := newFixture(t)
	attemptID, _, _, fib := f.submittedWithWrongFIB()
	response := f.responseFor(attemptID, fib.ID)
	req := &GradeRequest{TeacherMark: ptr(1.0)}

	_, err := f.services.Grading().GradeResponse(f.ctx, student, response.ID, req)
	assert.True(t, IsForbidden(err))

	_, err = f.services.Grading().GradeResponse(f.ctx, otherTeacher, response.ID, req)
	assert.True(t, IsForbidden(err))

	_, err = f.services.Grading().GradeResponse(f.ctx, admin, response.ID, req)
	assert.NoError(t, err)

	_, err = f.services.Grading().GradeResponse(f.ctx, teacher, 9999, req)
	assert.ErrorIs(t, err, ErrResponseNotFound)

	_, err = f.services.Grading().GradeResponse(f.ctx, teacher, response.ID, &GradeRequest{TeacherMark: ptr(-1.0)})
	assert.True(t, IsValidation(err))

	_, err = f.services.Grading().GradeResponse(f.ctx, teacher, response.ID, &GradeRequest{})
	assert.True(t, IsValidation(err))
}

func TestGradeResponse_RequiresTerminalAttempt(t *testing.T) {
	f := newFixture(t)
	exam, mcq, _ := f.unitsExam()
	started := f.start(student, exam.ID)
	_, err := f.services.Attempt().SaveProgress(f.ctx, student, started.AttemptID, []ResponseInput{
		answer(mcq.ID, scoring.EncodeChoices("B")),
	})
	require.NoError(t, err)

	response := f.responseFor(started.AttemptID, mcq.ID)
	_, err = f.services.Grading().GradeResponse(f.ctx, teacher, response.ID, &GradeRequest{TeacherMark: ptr(1.0)})
	assert.ErrorIs(t, err, ErrAttemptNotFinished)
}

func TestGradeHistory_RecordsEveryChange(t *testing.T) {
	f := newFixture(t)
	attemptID, _, _, fib := f.submittedWithWrongFIB()
	response := f.responseFor(attemptID, fib.ID)

	_, err := f.services.Grading().GradeResponse(f.ctx, teacher, response.ID, &GradeRequest{TeacherMark: ptr(2.0), Remarks: "first"})
	require.NoError(t, err)
	_, err = f.services.Grading().GradeResponse(f.ctx, teacher, response.ID, &GradeRequest{TeacherMark: ptr(4.0), Remarks: "second"})
	require.NoError(t, err)

	history, err := f.services.Grading().GradeHistory(f.ctx, teacher, response.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)

	assert.Equal(t, models.AuditGradeUpdated, history[0].EventType)
	assert.Nil(t, history[0].PreviousMark)
	assert.Equal(t, 2.0, *history[0].NewMark)
	assert.Equal(t, 2.0, *history[1].PreviousMark)
	assert.Equal(t, "first", history[1].PreviousFeedback)
	assert.Equal(t, "second", history[1].NewFeedback)

	_, err = f.services.Grading().GradeHistory(f.ctx, student, response.ID)
	assert.True(t, IsForbidden(err))
}

func TestFlagResponse(t *testing.T) {
	f := newFixture(t)
	attemptID, _, mcq, _ := f.submittedWithWrongFIB()
	response := f.responseFor(attemptID, mcq.ID)

	require.NoError(t, f.services.Grading().FlagResponse(f.ctx, student, response.ID, true))
	assert.True(t, f.responseFor(attemptID, mcq.ID).FlaggedForReview)

	require.NoError(t, f.services.Grading().FlagResponse(f.ctx, teacher, response.ID, false))
	assert.False(t, f.responseFor(attemptID, mcq.ID).FlaggedForReview)

	assert.ErrorIs(t, f.services.Grading().FlagResponse(f.ctx, otherStudent, response.ID, true), ErrResponseNotFound)
	assert.True(t, IsForbidden(f.services.Grading().FlagResponse(f.ctx, otherTeacher, response.ID, true)))
}

func TestRecalculate_FoldsTeacherMarksAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	attemptID, _, _, fib := f.submittedWithWrongFIB()
	response := f.responseFor(attemptID, fib.ID)

	_, err := f.services.Grading().GradeResponse(f.ctx, teacher, response.ID, &GradeRequest{TeacherMark: ptr(4.0)})
	require.NoError(t, err)

	plain, err := f.services.Grading().Recalculate(f.ctx, teacher, attemptID, false)
	require.NoError(t, err)
	assert.Equal(t, 5.0, plain.Score)

	folded, err := f.services.Grading().Recalculate(f.ctx, teacher, attemptID, true)
	require.NoError(t, err)
	assert.Equal(t, 9.0, folded.Score)
	assert.Equal(t, 90.0, folded.Percentage)

	again, err := f.services.Grading().Recalculate(f.ctx, teacher, attemptID, true)
	require.NoError(t, err)
	assert.Equal(t, folded, again)

	stored, err := f.repo.Attempt().GetByID(f.ctx, nil, attemptID)
	require.NoError(t, err)
	assert.True(t, stored.TeacherAdjusted)
	assert.False(t, f.responseFor(attemptID, fib.ID).Correct)

	audits, err := f.repo.GradeAudit().ListByAttempt(f.ctx, nil, attemptID)
	require.NoError(t, err)
	recalcs := 0
	for _, a := range audits {
		if a.EventType == models.AuditScoreRecalculated {
			recalcs++
		}
	}
	assert.Equal(t, 3, recalcs)

	_, err = f.services.Grading().Recalculate(f.ctx, student, attemptID, true)
	assert.True(t, IsForbidden(err))
	_, err = f.services.Grading().Recalculate(f.ctx, otherTeacher, attemptID, true)
	assert.True(t, IsForbidden(err))
}

func TestCatalogueChangesDoNotRescoreUntilRecalculated(t *testing.T) {
	f := newFixture(t)
	attemptID, exam, mcq, fib := f.submittedWithWrongFIB()

	_, err := f.services.Exam().ReorderQuestions(f.ctx, teacher, exam.ID, []uint{fib.ID, mcq.ID})
	require.NoError(t, err)
	_, err = f.services.Exam().RemoveQuestion(f.ctx, teacher, exam.ID, fib.ID)
	require.NoError(t, err)

	stored, err := f.repo.Attempt().GetByID(f.ctx, nil, attemptID)
	require.NoError(t, err)
	assert.Equal(t, 5.0, stored.TotalScore)
	assert.Equal(t, 50.0, stored.Percentage)

	result, err := f.services.Grading().Recalculate(f.ctx, admin, attemptID, false)
	require.NoError(t, err)
	assert.Equal(t, 5.0, result.Score)
	assert.Equal(t, 5.0, result.TotalMarks)
	assert.Equal(t, 100.0, result.Percentage)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, fib.ID, result.Warnings[0].QuestionID)
}
