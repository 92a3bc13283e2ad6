package services

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/repositories"
	"github.com/SAP-F-2025/exam-service/internal/scoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestStart_ReturnsQuestionsWithoutKeys(t *testing.T) {
	f := newFixture(t)
	exam, mcq, fib := f.unitsExam()

	started := f.start(student, exam.ID)

	assert.False(t, started.Resumed)
	assert.Equal(t, models.AttemptInProgress, started.Status)
	assert.Equal(t, f.clock.now.Add(600*time.Second), started.ExpiresAt)
	require.Len(t, started.Questions, 2)
	assert.Equal(t, mcq.ID, started.Questions[0].QuestionID)
	assert.Equal(t, fib.ID, started.Questions[1].QuestionID)
	assert.Equal(t, "gram", started.Questions[0].Choices["A"])
	assert.Empty(t, started.Questions[1].Choices)

	raw, err := json.Marshal(started)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "correct_answers")

	assert.Len(t, f.publisher.EventsOfType(events.EventAttemptStarted), 1)
}

func TestStart_MalformedChoicesFail(t *testing.T) {
	f := newFixture(t)
	exam, mcq, _ := f.unitsExam()

	mcq.Choices = datatypes.JSON(`["gram","litre"]`)
	require.NoError(t, f.repo.Question().Update(f.ctx, nil, mcq))

	_, err := f.services.Attempt().Start(f.ctx, student, exam.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed choices")
	assert.False(t, IsNotFound(err))
}

func TestStart_ReturnsExistingInProgressAttempt(t *testing.T) {
	f := newFixture(t)
	exam, _, _ := f.unitsExam()

	first := f.start(student, exam.ID)
	f.clock.Advance(time.Minute)
	second := f.start(student, exam.ID)

	assert.Equal(t, first.AttemptID, second.AttemptID)
	assert.True(t, second.Resumed)
	assert.Equal(t, first.StartedAt, second.StartedAt)
	assert.Len(t, f.publisher.EventsOfType(events.EventAttemptStarted), 1)

	other := f.start(otherStudent, exam.ID)
	assert.NotEqual(t, first.AttemptID, other.AttemptID)
}

func TestStart_HiddenAndInactiveExamsAreNotFound(t *testing.T) {
	f := newFixture(t)
	q := f.mcq("A", 1)

	staffOnly, err := f.services.Exam().CreateExam(f.ctx, teacher, &CreateExamRequest{
		Title:           "Staff",
		DurationSeconds: 60,
		Visibility:      models.VisibilityStaff,
		Questions:       []ExamQuestionInput{{QuestionID: q.ID}},
	})
	require.NoError(t, err)

	_, err = f.services.Attempt().Start(f.ctx, student, staffOnly.ID)
	assert.ErrorIs(t, err, ErrExamNotFound)

	_, err = f.services.Attempt().Start(f.ctx, teacher, staffOnly.ID)
	assert.NoError(t, err)

	exam, err := f.repo.Exam().GetByID(f.ctx, nil, staffOnly.ID)
	require.NoError(t, err)
	exam.IsActive = false
	require.NoError(t, f.repo.Exam().Update(f.ctx, nil, exam))

	_, err = f.services.Attempt().Start(f.ctx, admin, staffOnly.ID)
	assert.ErrorIs(t, err, ErrExamNotFound)

	_, err = f.services.Attempt().Start(f.ctx, student, 999)
	assert.True(t, IsNotFound(err))
}

func TestStart_ShuffleIsStablePerAttempt(t *testing.T) {
	f := newFixture(t)
	var inputs []ExamQuestionInput
	for i := 0; i < 8; i++ {
		inputs = append(inputs, ExamQuestionInput{QuestionID: f.mcq("A", 1).ID})
	}
	exam, err := f.services.Exam().CreateExam(f.ctx, teacher, &CreateExamRequest{
		Title:            "Shuffled",
		DurationSeconds:  600,
		ShuffleQuestions: true,
		Questions:        inputs,
	})
	require.NoError(t, err)

	started := f.start(student, exam.ID)
	resumed, err := f.services.Attempt().Resume(f.ctx, student, started.AttemptID)
	require.NoError(t, err)

	assert.Equal(t, started.Questions, resumed.Questions)
	for i, q := range started.Questions {
		assert.Equal(t, i+1, q.Order)
	}
}

func TestSubmit_AllCorrectWithinTime(t *testing.T) {
	f := newFixture(t)
	exam, mcq, fib := f.unitsExam()
	started := f.start(student, exam.ID)

	f.clock.Advance(5 * time.Minute)
	result, err := f.services.Attempt().Submit(f.ctx, student, started.AttemptID, correctAnswers(mcq, fib))
	require.NoError(t, err)

	assert.Equal(t, 10.0, result.Score)
	assert.Equal(t, 100.0, result.Percentage)
	assert.Equal(t, models.AttemptSubmitted, result.Status)
	require.NotNil(t, result.Rank)
	assert.Equal(t, 1, *result.Rank)
	assert.Empty(t, result.Warnings)

	stored, err := f.repo.Attempt().GetByID(f.ctx, nil, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 300, stored.DurationSeconds)
	assert.Equal(t, 10.0, stored.TotalMarks)
	assert.True(t, f.responseFor(started.AttemptID, fib.ID).Correct)

	submitted := f.publisher.EventsOfType(events.EventAttemptSubmitted)
	require.Len(t, submitted, 1)
	assert.False(t, submitted[0].Data.(events.AttemptSubmittedEvent).Swept)
}

func TestSubmit_AfterDurationIsTimedOutButScored(t *testing.T) {
	f := newFixture(t)
	exam, mcq, fib := f.unitsExam()
	started := f.start(student, exam.ID)

	f.clock.Advance(700 * time.Second)
	result, err := f.services.Attempt().Submit(f.ctx, student, started.AttemptID, correctAnswers(mcq, fib))
	require.NoError(t, err)

	assert.Equal(t, models.AttemptTimedOut, result.Status)
	assert.Equal(t, 10.0, result.Score)
	assert.Equal(t, 100.0, result.Percentage)
}

func TestSubmit_SecondSubmitReturnsStoredResult(t *testing.T) {
	f := newFixture(t)
	exam, mcq, fib := f.unitsExam()
	started := f.start(student, exam.ID)

	first, err := f.services.Attempt().Submit(f.ctx, student, started.AttemptID, []ResponseInput{
		answer(mcq.ID, scoring.EncodeChoices("A")),
		answer(fib.ID, scoring.EncodeText("kg")),
	})
	require.NoError(t, err)
	before, err := f.repo.Attempt().GetByID(f.ctx, nil, started.AttemptID)
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	second, err := f.services.Attempt().Submit(f.ctx, student, started.AttemptID, correctAnswers(mcq, fib))
	require.NoError(t, err)

	assert.True(t, second.AlreadyFinished)
	assert.Equal(t, first.Score, second.Score)
	assert.Equal(t, 5.0, second.Score)
	assert.Equal(t, first.Percentage, second.Percentage)

	after, err := f.repo.Attempt().GetByID(f.ctx, nil, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, before.FinishedAt, after.FinishedAt)
	assert.Equal(t, before.TotalScore, after.TotalScore)
	assert.Equal(t, `{"answer":"kg"}`, string(f.responseFor(started.AttemptID, fib.ID).AnswerPayload))
	assert.Len(t, f.publisher.EventsOfType(events.EventAttemptSubmitted), 1)
}

func TestSubmit_UnknownQuestionLeavesNoPartialState(t *testing.T) {
	f := newFixture(t)
	exam, mcq, _ := f.unitsExam()
	started := f.start(student, exam.ID)

	_, err := f.services.Attempt().Submit(f.ctx, student, started.AttemptID, []ResponseInput{
		answer(mcq.ID, scoring.EncodeChoices("A")),
		answer(4242, scoring.EncodeChoices("A")),
	})
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	responses, err := f.repo.Response().GetByAttempt(f.ctx, nil, started.AttemptID)
	require.NoError(t, err)
	assert.Empty(t, responses)

	stored, err := f.repo.Attempt().GetByID(f.ctx, nil, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptInProgress, stored.Status)
}

func TestSubmit_MalformedPayloadScoresWithWarning(t *testing.T) {
	f := newFixture(t)
	exam, mcq, fib := f.unitsExam()
	started := f.start(student, exam.ID)

	result, err := f.services.Attempt().Submit(f.ctx, student, started.AttemptID, []ResponseInput{
		answer(mcq.ID, []byte(`42`)),
		answer(fib.ID, scoring.EncodeText("g")),
	})
	require.NoError(t, err)

	assert.Equal(t, 5.0, result.Score)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, mcq.ID, result.Warnings[0].QuestionID)
}

func TestSubmit_UnansweredQuestionsGetBlankResponses(t *testing.T) {
	f := newFixture(t)
	exam, mcq, fib := f.unitsExam()
	started := f.start(student, exam.ID)

	result, err := f.services.Attempt().Submit(f.ctx, student, started.AttemptID, []ResponseInput{
		answer(mcq.ID, scoring.EncodeChoices("A")),
	})
	require.NoError(t, err)
	assert.Equal(t, 50.0, result.Percentage)

	blank := f.responseFor(started.AttemptID, fib.ID)
	assert.False(t, blank.Correct)
	assert.Empty(t, blank.AnswerPayload)
}

func TestSubmit_LastWriteWinsOverAutosave(t *testing.T) {
	f := newFixture(t)
	exam, mcq, fib := f.unitsExam()
	started := f.start(student, exam.ID)

	_, err := f.services.Attempt().SaveProgress(f.ctx, student, started.AttemptID, []ResponseInput{
		answer(mcq.ID, scoring.EncodeChoices("B")),
	})
	require.NoError(t, err)

	result, err := f.services.Attempt().Submit(f.ctx, student, started.AttemptID, []ResponseInput{
		answer(mcq.ID, scoring.EncodeChoices("C")),
		answer(mcq.ID, scoring.EncodeChoices("A")),
		answer(fib.ID, scoring.EncodeText("g")),
	})
	require.NoError(t, err)
	assert.Equal(t, 10.0, result.Score)
}

func TestSubmit_OtherUsersAttemptIsNotFound(t *testing.T) {
	f := newFixture(t)
	exam, mcq, fib := f.unitsExam()
	started := f.start(student, exam.ID)

	_, err := f.services.Attempt().Submit(f.ctx, otherStudent, started.AttemptID, correctAnswers(mcq, fib))
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestSubmit_RanksAcrossAttempts(t *testing.T) {
	f := newFixture(t)
	exam, mcq, fib := f.unitsExam()

	low := f.start(student, exam.ID)
	high := f.start(otherStudent, exam.ID)

	_, err := f.services.Attempt().Submit(f.ctx, student, low.AttemptID, []ResponseInput{
		answer(mcq.ID, scoring.EncodeChoices("A")),
	})
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	result, err := f.services.Attempt().Submit(f.ctx, otherStudent, high.AttemptID, correctAnswers(mcq, fib))
	require.NoError(t, err)

	assert.Equal(t, 1, *result.Rank)
	assert.Equal(t, 50.0, *result.Percentile)

	lowStored, err := f.repo.Attempt().GetByID(f.ctx, nil, low.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 2, *lowStored.Rank)
	assert.Equal(t, 0.0, *lowStored.Percentile)
}

func TestSaveProgress_RejectsAfterDeadlineAndFinalises(t *testing.T) {
	f := newFixture(t)
	exam, mcq, fib := f.unitsExam()
	started := f.start(student, exam.ID)

	saved, err := f.services.Attempt().SaveProgress(f.ctx, student, started.AttemptID, correctAnswers(mcq, fib))
	require.NoError(t, err)
	assert.Equal(t, 2, saved.Saved)
	assert.Equal(t, 600, saved.RemainingSeconds)

	f.clock.Advance(11 * time.Minute)
	_, err = f.services.Attempt().SaveProgress(f.ctx, student, started.AttemptID, []ResponseInput{
		answer(mcq.ID, scoring.EncodeChoices("B")),
	})
	assert.ErrorIs(t, err, ErrAttemptTimeExpired)

	stored, err := f.repo.Attempt().GetByID(f.ctx, nil, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptTimedOut, stored.Status)
	assert.Equal(t, 10.0, stored.TotalScore, "answers saved before the deadline are scored")

	_, err = f.services.Attempt().SaveProgress(f.ctx, student, started.AttemptID, nil)
	assert.ErrorIs(t, err, ErrAttemptNotActive)
}

func TestResume_ReturnsSavedStateAndFinalisesWhenExpired(t *testing.T) {
	f := newFixture(t)
	exam, mcq, _ := f.unitsExam()
	started := f.start(student, exam.ID)

	flagged := answer(mcq.ID, scoring.EncodeChoices("A"))
	flagged.FlaggedForReview = true
	flagged.TimeSpentSeconds = 42
	_, err := f.services.Attempt().SaveProgress(f.ctx, student, started.AttemptID, []ResponseInput{flagged})
	require.NoError(t, err)

	f.clock.Advance(100 * time.Second)
	resumed, err := f.services.Attempt().Resume(f.ctx, student, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptInProgress, resumed.Status)
	assert.Equal(t, 500, resumed.RemainingSeconds)
	assert.Equal(t, 100, resumed.TimeSpentSeconds)
	require.Len(t, resumed.Responses, 1)
	assert.True(t, resumed.Responses[0].FlaggedForReview)
	assert.Equal(t, 42, resumed.Responses[0].TimeSpentSeconds)
	assert.Nil(t, resumed.Result)

	f.clock.Advance(time.Hour)
	expired, err := f.services.Attempt().Resume(f.ctx, student, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptTimedOut, expired.Status)
	assert.Zero(t, expired.RemainingSeconds)
	require.NotNil(t, expired.Result)
	assert.Equal(t, 5.0, expired.Result.Score)

	_, err = f.services.Attempt().Resume(f.ctx, otherStudent, started.AttemptID)
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}

func TestSweepExpired_FinalisesOnlyOverrunAttempts(t *testing.T) {
	f := newFixture(t)
	exam, mcq, _ := f.unitsExam()

	overrun := f.start(student, exam.ID)
	_, err := f.services.Attempt().SaveProgress(f.ctx, student, overrun.AttemptID, []ResponseInput{
		answer(mcq.ID, scoring.EncodeChoices("A")),
	})
	require.NoError(t, err)

	f.clock.Advance(9 * time.Minute)
	fresh := f.start(otherStudent, exam.ID)

	result, err := f.services.Attempt().SweepExpired(f.ctx, f.clock.now.Add(2*time.Minute), 100)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Finalised)
	assert.Equal(t, []uint{overrun.AttemptID}, result.AttemptIDs)

	stored, err := f.repo.Attempt().GetByID(f.ctx, nil, overrun.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptTimedOut, stored.Status)
	assert.Equal(t, 5.0, stored.TotalScore)

	pending, err := f.repo.Attempt().GetByID(f.ctx, nil, fresh.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptInProgress, pending.Status)

	swept := f.publisher.EventsOfType(events.EventAttemptSubmitted)
	require.Len(t, swept, 1)
	assert.True(t, swept[0].Data.(events.AttemptSubmittedEvent).Swept)

	again, err := f.services.Attempt().SweepExpired(f.ctx, f.clock.now.Add(2*time.Minute), 100)
	require.NoError(t, err)
	assert.Zero(t, again.Finalised)
}

func TestSubmit_ConcurrentSubmitsFinaliseOnce(t *testing.T) {
	f := newFixture(t)
	exam, mcq, fib := f.unitsExam()
	started := f.start(student, exam.ID)
	f.clock.Advance(time.Minute)

	const callers = 8
	results := make([]*SubmitResult, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.services.Attempt().Submit(f.ctx, student, started.AttemptID, []ResponseInput{
				answer(mcq.ID, scoring.EncodeChoices("A")),
				answer(fib.ID, scoring.EncodeText("kg")),
			})
		}(i)
	}
	wg.Wait()

	fresh := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		if !results[i].AlreadyFinished {
			fresh++
		}
		assert.Equal(t, 5.0, results[i].Score)
		assert.Equal(t, 50.0, results[i].Percentage)
		assert.Equal(t, models.AttemptSubmitted, results[i].Status)
	}
	assert.Equal(t, 1, fresh)
	assert.Len(t, f.publisher.EventsOfType(events.EventAttemptSubmitted), 1)

	stored, err := f.repo.Attempt().GetByID(f.ctx, nil, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptSubmitted, stored.Status)
	assert.Equal(t, 5.0, stored.TotalScore)
}

func TestSweepExpired_UntimedAttemptsDoNotBlockBatch(t *testing.T) {
	f := newFixture(t)

	untimed := &models.Exam{Title: "Practice", IsActive: true, Visibility: models.VisibilityPublic}
	require.NoError(t, f.repo.Exam().Create(f.ctx, nil, untimed))
	f.start(student, untimed.ID)
	f.start(otherStudent, untimed.ID)

	exam, _, _ := f.unitsExam()
	late := f.start(models.Actor{UserID: "student-3", Role: models.RoleStudent}, exam.ID)
	f.clock.Advance(11 * time.Minute)

	result, err := f.services.Attempt().SweepExpired(f.ctx, f.clock.now, 2)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Finalised)
	assert.Equal(t, []uint{late.AttemptID}, result.AttemptIDs)

	stored, err := f.repo.Attempt().GetByID(f.ctx, nil, late.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, models.AttemptTimedOut, stored.Status)

	open, err := f.repo.Attempt().ListByExam(f.ctx, nil, untimed.ID, repositories.AttemptFilters{
		Status: []models.AttemptStatus{models.AttemptInProgress},
	})
	require.NoError(t, err)
	assert.Len(t, open, 2)
}
