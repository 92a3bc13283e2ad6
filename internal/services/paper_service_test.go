package services

import (
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoQuestionPaper is a 10 minute paper: 2 marks (key B) then 3 marks (key C).
func (f *fixture) twoQuestionPaper() (paperID uint, first, second uint) {
	f.t.Helper()
	paper, err := f.services.Paper().CreatePaper(f.ctx, teacher, &CreatePaperRequest{
		Title:           "Quick check",
		DurationMinutes: 10,
		Questions: []PaperQuestionInput{
			{Text: "2+2?", Options: map[string]string{"A": "3", "B": "4"}, CorrectOption: "B", Marks: 2},
			{Text: "Capital of France?", Options: map[string]string{"A": "Rome", "B": "Madrid", "C": "Paris"}, CorrectOption: "C", Marks: 3},
		},
	})
	require.NoError(f.t, err)
	return paper.ID, paper.Questions[0].ID, paper.Questions[1].ID
}

func TestCreatePaper_RejectsUnknownCorrectOption(t *testing.T) {
	f := newFixture(t)

	_, err := f.services.Paper().CreatePaper(f.ctx, teacher, &CreatePaperRequest{
		Title:           "Broken",
		DurationMinutes: 5,
		Questions: []PaperQuestionInput{
			{Text: "?", Options: map[string]string{"A": "x", "B": "y"}, CorrectOption: "Z", Marks: 1},
		},
	})
	assert.True(t, IsValidation(err))

	_, err = f.services.Paper().CreatePaper(f.ctx, student, &CreatePaperRequest{})
	assert.True(t, IsForbidden(err))
}

func TestStartPaper_ReturnsExistingAttempt(t *testing.T) {
	f := newFixture(t)
	paperID, first, _ := f.twoQuestionPaper()

	started, err := f.services.Paper().StartPaper(f.ctx, student, paperID)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Now().Add(10*time.Minute), started.Deadline)
	require.Len(t, started.Questions, 2)
	assert.Equal(t, first, started.Questions[0].QuestionID)
	assert.Equal(t, "4", started.Questions[0].Options["B"])

	f.clock.Advance(time.Minute)
	again, err := f.services.Paper().StartPaper(f.ctx, student, paperID)
	require.NoError(t, err)
	assert.Equal(t, started.AttemptID, again.AttemptID)
	assert.Equal(t, started.StartedAt, again.StartedAt)

	_, err = f.services.Paper().StartPaper(f.ctx, student, 999)
	assert.ErrorIs(t, err, ErrPaperNotFound)
}

func TestFinalSubmit_ScoresAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	paperID, first, second := f.twoQuestionPaper()
	started, err := f.services.Paper().StartPaper(f.ctx, student, paperID)
	require.NoError(t, err)

	save := func(questionID uint, option string) error {
		return f.services.Paper().SavePaperAnswer(f.ctx, student, started.AttemptID, &SavePaperAnswerRequest{QuestionID: questionID, SelectedOption: option})
	}
	require.NoError(t, save(first, "A"))
	require.NoError(t, save(first, " b "))
	require.NoError(t, save(second, "A"))
	assert.True(t, IsValidation(save(999, "A")))
	assert.ErrorIs(t, f.services.Paper().SavePaperAnswer(f.ctx, otherStudent, started.AttemptID,
		&SavePaperAnswerRequest{QuestionID: first, SelectedOption: "B"}), ErrAttemptNotFound)

	result, err := f.services.Paper().FinalSubmit(f.ctx, student, started.AttemptID)
	require.NoError(t, err)
	assert.True(t, result.Submitted)
	assert.False(t, result.AutoSubmitted)
	assert.Equal(t, 2.0, *result.Score)
	assert.Equal(t, 5.0, *result.MaxScore)
	for _, a := range result.Answers {
		assert.True(t, a.Submitted)
	}

	again, err := f.services.Paper().FinalSubmit(f.ctx, student, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, result.SubmittedAt, again.SubmittedAt)
	assert.Len(t, f.publisher.EventsOfType(events.EventPaperSubmitted), 1)

	assert.ErrorIs(t, save(second, "C"), ErrAttemptNotActive)
}

func TestSavePaperAnswer_AfterDeadline(t *testing.T) {
	f := newFixture(t)
	paperID, first, _ := f.twoQuestionPaper()
	started, err := f.services.Paper().StartPaper(f.ctx, student, paperID)
	require.NoError(t, err)

	f.clock.Advance(11 * time.Minute)
	err = f.services.Paper().SavePaperAnswer(f.ctx, student, started.AttemptID, &SavePaperAnswerRequest{QuestionID: first, SelectedOption: "B"})
	assert.ErrorIs(t, err, ErrAttemptTimeExpired)

	result, err := f.services.Paper().FinalSubmit(f.ctx, student, started.AttemptID)
	require.NoError(t, err)
	assert.True(t, result.AutoSubmitted)
	assert.Equal(t, 0.0, *result.Score)
}

func TestEvaluate_OverwritesScore(t *testing.T) {
	f := newFixture(t)
	paperID, first, _ := f.twoQuestionPaper()
	started, err := f.services.Paper().StartPaper(f.ctx, student, paperID)
	require.NoError(t, err)
	require.NoError(t, f.services.Paper().SavePaperAnswer(f.ctx, student, started.AttemptID,
		&SavePaperAnswerRequest{QuestionID: first, SelectedOption: "B"}))

	_, err = f.services.Paper().Evaluate(f.ctx, teacher, started.AttemptID, &EvaluateRequest{Marks: ptr(4.0)})
	assert.ErrorIs(t, err, ErrAttemptNotFinished)

	_, err = f.services.Paper().FinalSubmit(f.ctx, student, started.AttemptID)
	require.NoError(t, err)

	_, err = f.services.Paper().Evaluate(f.ctx, teacher, started.AttemptID, &EvaluateRequest{Marks: ptr(6.0)})
	assert.True(t, IsValidation(err))

	_, err = f.services.Paper().Evaluate(f.ctx, student, started.AttemptID, &EvaluateRequest{Marks: ptr(4.0)})
	assert.True(t, IsForbidden(err))
	_, err = f.services.Paper().Evaluate(f.ctx, otherTeacher, started.AttemptID, &EvaluateRequest{Marks: ptr(4.0)})
	assert.True(t, IsForbidden(err))

	_, err = f.services.Paper().Evaluate(f.ctx, teacher, started.AttemptID, &EvaluateRequest{Marks: ptr(4.0), Feedback: "Good"})
	require.NoError(t, err)
	result, err := f.services.Paper().Evaluate(f.ctx, teacher, started.AttemptID, &EvaluateRequest{Marks: ptr(4.5), Feedback: "Better"})
	require.NoError(t, err)

	assert.Equal(t, 4.5, *result.Score)
	assert.Equal(t, 5.0, *result.MaxScore)
	require.NotNil(t, result.Evaluation)
	assert.Equal(t, "Better", result.Evaluation.Feedback)
	assert.False(t, result.Evaluation.IsPending())

	owner, err := f.services.Paper().GetPaperResult(f.ctx, student, started.AttemptID)
	require.NoError(t, err)
	assert.Equal(t, 4.5, *owner.Score)

	_, err = f.services.Paper().GetPaperResult(f.ctx, otherStudent, started.AttemptID)
	assert.ErrorIs(t, err, ErrAttemptNotFound)
	_, err = f.services.Paper().GetPaperResult(f.ctx, otherTeacher, started.AttemptID)
	assert.ErrorIs(t, err, ErrAttemptNotFound)
}
