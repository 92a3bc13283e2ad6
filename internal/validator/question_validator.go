package validator

import (
	"fmt"
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

const maxChoices = 10

// QuestionValidator checks that a question's answer key is consistent with
// its type and choices.
type QuestionValidator struct{}

// NewQuestionValidator creates a new question validator
func NewQuestionValidator() *QuestionValidator {
	return &QuestionValidator{}
}

// ValidateQuestion validates a complete question object
func (v *QuestionValidator) ValidateQuestion(question *models.Question) error {
	var errs ValidationErrors

	if strings.TrimSpace(question.Statement) == "" {
		errs = errs.Add("statement", "is required", nil)
	}
	if question.Marks <= 0 {
		errs = errs.Add("marks", "must be greater than 0", question.Marks)
	}

	switch question.Type {
	case models.QuestionMCQ:
		errs = append(errs, v.validateChoiceKey(question, true)...)
	case models.QuestionMulti:
		errs = append(errs, v.validateChoiceKey(question, false)...)
	case models.QuestionFIB:
		errs = append(errs, v.validateFillBlankKey(question)...)
	default:
		errs = errs.Add("type", fmt.Sprintf("unsupported question type: %s", question.Type), question.Type)
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func (v *QuestionValidator) validateChoiceKey(question *models.Question, single bool) ValidationErrors {
	var errs ValidationErrors

	choices, err := question.ChoiceMap()
	if err != nil {
		return errs.Add("choices", "must be an object of option key to text", string(question.Choices))
	}
	if len(choices) < 2 {
		errs = errs.Add("choices", "must have at least 2 options", len(choices))
	}
	if len(choices) > maxChoices {
		errs = errs.Add("choices", fmt.Sprintf("cannot have more than %d options", maxChoices), len(choices))
	}
	for key, text := range choices {
		if strings.TrimSpace(text) == "" {
			errs = errs.Add("choices", fmt.Sprintf("option '%s' text cannot be empty", key), key)
		}
	}

	key := question.AnswerKey()
	switch {
	case len(key) == 0:
		errs = errs.Add("correct_answers", "must have at least 1 correct answer", nil)
	case single && len(key) != 1:
		errs = errs.Add("correct_answers", "MCQ must have exactly 1 correct answer", key)
	}

	seen := make(map[string]bool, len(key))
	for _, k := range key {
		if _, ok := choices[k]; !ok {
			errs = errs.Add("correct_answers", fmt.Sprintf("correct answer '%s' does not match any option", k), k)
		}
		if seen[k] {
			errs = errs.Add("correct_answers", fmt.Sprintf("correct answer '%s' is duplicated", k), k)
		}
		seen[k] = true
	}
	return errs
}

func (v *QuestionValidator) validateFillBlankKey(question *models.Question) ValidationErrors {
	var errs ValidationErrors

	key := question.AnswerKey()
	if len(key) == 0 {
		errs = errs.Add("correct_answers", "must have at least 1 accepted answer", nil)
	}
	for i, answer := range key {
		if strings.TrimSpace(answer) == "" {
			errs = errs.Add("correct_answers", fmt.Sprintf("accepted answer %d cannot be empty", i+1), answer)
		}
	}
	return errs
}
