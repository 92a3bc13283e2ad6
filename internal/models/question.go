package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type QuestionType string

const (
	QuestionMCQ   QuestionType = "MCQ"   // single choice
	QuestionMulti QuestionType = "MULTI" // multiple choice, exact set
	QuestionFIB   QuestionType = "FIB"   // fill in the blank
)

type DifficultyLevel string

const (
	DifficultyEasy   DifficultyLevel = "easy"
	DifficultyMedium DifficultyLevel = "medium"
	DifficultyHard   DifficultyLevel = "hard"
)

// Question is the answer-key store entry. Choices maps choice key to text,
// CorrectAnswers holds keys for MCQ/MULTI and accepted spellings for FIB.
type Question struct {
	ID                   uint            `json:"id" gorm:"primaryKey"`
	Topic                string          `json:"topic" gorm:"size:200;index"`
	Type                 QuestionType    `json:"type" gorm:"not null;size:10" validate:"required,question_type"`
	Statement            string          `json:"statement" gorm:"not null;type:text" validate:"required"`
	Choices              datatypes.JSON  `json:"choices" gorm:"type:jsonb"`
	CorrectAnswers       datatypes.JSON  `json:"correct_answers,omitempty" gorm:"type:jsonb"`
	Marks                float64         `json:"marks" gorm:"not null;default:1" validate:"gt=0"`
	EstimatedTimeSeconds int             `json:"estimated_time_seconds" gorm:"default:60"`
	Difficulty           DifficultyLevel `json:"difficulty" gorm:"size:10;default:medium"`
	Tags                 datatypes.JSON  `json:"tags" gorm:"type:jsonb"`
	IsActive             bool            `json:"is_active" gorm:"default:true"`

	CreatedBy *string        `json:"created_by" gorm:"size:255;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
}

func (Question) TableName() string {
	return "questions"
}

// ChoiceMap decodes Choices into option key -> text.
func (q *Question) ChoiceMap() (map[string]string, error) {
	choices := map[string]string{}
	if len(q.Choices) == 0 {
		return choices, nil
	}
	if err := json.Unmarshal(q.Choices, &choices); err != nil {
		return nil, fmt.Errorf("question %d has malformed choices: %w", q.ID, err)
	}
	return choices, nil
}

// AnswerKey decodes CorrectAnswers. A single JSON string is accepted as a
// one element key.
func (q *Question) AnswerKey() []string {
	if len(q.CorrectAnswers) == 0 {
		return nil
	}
	var keys []string
	if err := json.Unmarshal(q.CorrectAnswers, &keys); err == nil {
		return keys
	}
	var single string
	if err := json.Unmarshal(q.CorrectAnswers, &single); err == nil && strings.TrimSpace(single) != "" {
		return []string{single}
	}
	return nil
}

// IsChoiceType reports whether answers are choice keys rather than free text.
func (t QuestionType) IsChoiceType() bool {
	return t == QuestionMCQ || t == QuestionMulti
}

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMCQ, QuestionMulti, QuestionFIB:
		return true
	}
	return false
}
