package validator

import (
	"testing"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

type roleRequest struct {
	Role       string `json:"role" validate:"required,user_role"`
	Visibility string `json:"visibility" validate:"omitempty,exam_visibility"`
	Type       string `json:"type" validate:"omitempty,question_type"`
}

func TestValidateStruct_CustomTags(t *testing.T) {
	v := New()

	assert.NoError(t, v.ValidateStruct(roleRequest{Role: "TEACHER", Visibility: "staff", Type: "MULTI"}))

	err := v.ValidateStruct(roleRequest{Role: "proctor", Visibility: "secret", Type: "essay"})
	require.Error(t, err)

	errs, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, errs, 3)
	assert.Equal(t, "role", errs[0].Field)
	assert.Equal(t, "user_role", errs[0].Rule)
	assert.Equal(t, "visibility", errs[1].Field)
	assert.Equal(t, "type", errs[2].Field)
}

func TestValidateQuestion(t *testing.T) {
	v := NewQuestionValidator()

	tests := []struct {
		name     string
		question models.Question
		wantErr  bool
	}{
		{
			name: "valid MCQ",
			question: models.Question{
				Type: models.QuestionMCQ, Statement: "2+2?", Marks: 1,
				Choices:        datatypes.JSON(`{"A":"3","B":"4"}`),
				CorrectAnswers: datatypes.JSON(`["B"]`),
			},
		},
		{
			name: "MCQ with malformed choices",
			question: models.Question{
				Type: models.QuestionMCQ, Statement: "2+2?", Marks: 1,
				Choices:        datatypes.JSON(`["3","4"]`),
				CorrectAnswers: datatypes.JSON(`["B"]`),
			},
			wantErr: true,
		},
		{
			name: "MCQ with two keys",
			question: models.Question{
				Type: models.QuestionMCQ, Statement: "2+2?", Marks: 1,
				Choices:        datatypes.JSON(`{"A":"3","B":"4"}`),
				CorrectAnswers: datatypes.JSON(`["A","B"]`),
			},
			wantErr: true,
		},
		{
			name: "MULTI key outside choices",
			question: models.Question{
				Type: models.QuestionMulti, Statement: "primes", Marks: 2,
				Choices:        datatypes.JSON(`{"A":"2","B":"3","C":"4"}`),
				CorrectAnswers: datatypes.JSON(`["A","D"]`),
			},
			wantErr: true,
		},
		{
			name: "valid FIB without choices",
			question: models.Question{
				Type: models.QuestionFIB, Statement: "Capital of France", Marks: 1,
				CorrectAnswers: datatypes.JSON(`["Paris"]`),
			},
		},
		{
			name: "FIB without accepted answers",
			question: models.Question{
				Type: models.QuestionFIB, Statement: "Capital of France", Marks: 1,
			},
			wantErr: true,
		},
		{
			name: "zero marks",
			question: models.Question{
				Type: models.QuestionFIB, Statement: "x", Marks: 0,
				CorrectAnswers: datatypes.JSON(`["x"]`),
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateQuestion(&tt.question)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
