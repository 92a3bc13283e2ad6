// Package scoring grades objective responses against an exam's answer key.
// It holds no state and performs no I/O.
package scoring

import (
	"math"
	"strings"

	"github.com/SAP-F-2025/exam-service/internal/models"
)

// Key is the answer-key entry for one question as linked to an exam.
type Key struct {
	QuestionID uint
	Type       models.QuestionType
	Correct    []string
	Marks      float64
}

// Input is one persisted or submitted response.
type Input struct {
	QuestionID  uint
	Payload     []byte
	TeacherMark *float64
}

// Outcome is the grading result for one response.
type Outcome struct {
	QuestionID uint
	Answered   bool
	Correct    bool
	Awarded    float64
	Warning    string
}

// Warning is attached to a result when a response could not be graded
// normally. The response is still scored (as incorrect).
type Warning struct {
	QuestionID uint   `json:"question_id"`
	Message    string `json:"message"`
}

type Result struct {
	Outcomes   []Outcome
	TotalScore float64
	TotalMarks float64
	Percentage float64
	Warnings   []Warning
}

type Options struct {
	// ApplyTeacherMarks replaces the automatic award with the teacher mark
	// wherever one is set, capped at the question marks.
	ApplyTeacherMarks bool
}

// KeysFromExam builds the answer key from the exam's current question links.
// Links without a loaded question are skipped.
func KeysFromExam(links []*models.ExamQuestion) []Key {
	keys := make([]Key, 0, len(links))
	for _, link := range links {
		if link == nil || link.Question == nil {
			continue
		}
		keys = append(keys, Key{
			QuestionID: link.QuestionID,
			Type:       link.Question.Type,
			Correct:    link.Question.AnswerKey(),
			Marks:      link.EffectiveMarks(),
		})
	}
	return keys
}

// TotalMarks sums the marks of every key.
func TotalMarks(keys []Key) float64 {
	var total float64
	for _, k := range keys {
		total += k.Marks
	}
	return Round(total)
}

// Score grades every input against keys. Inputs for questions absent from
// keys score zero and carry a warning.
func Score(keys []Key, inputs []Input, opts Options) Result {
	byQuestion := make(map[uint]Key, len(keys))
	for _, k := range keys {
		byQuestion[k.QuestionID] = k
	}

	result := Result{
		Outcomes:   make([]Outcome, 0, len(inputs)),
		TotalMarks: TotalMarks(keys),
	}

	var total float64
	for _, in := range inputs {
		key, ok := byQuestion[in.QuestionID]
		if !ok {
			out := Outcome{QuestionID: in.QuestionID, Warning: "question is no longer part of the exam"}
			result.Outcomes = append(result.Outcomes, out)
			result.Warnings = append(result.Warnings, Warning{QuestionID: in.QuestionID, Message: out.Warning})
			continue
		}

		out := Grade(key, in.Payload)
		if opts.ApplyTeacherMarks && in.TeacherMark != nil {
			out.Awarded = math.Min(math.Max(*in.TeacherMark, 0), key.Marks)
		}
		out.Awarded = Round(out.Awarded)
		total += out.Awarded

		if out.Warning != "" {
			result.Warnings = append(result.Warnings, Warning{QuestionID: in.QuestionID, Message: out.Warning})
		}
		result.Outcomes = append(result.Outcomes, out)
	}

	result.TotalScore = Round(total)
	result.Percentage = Percentage(result.TotalScore, result.TotalMarks)
	return result
}

// Grade checks a single payload. Malformed payloads are incorrect with a
// warning; empty payloads are simply unanswered.
func Grade(key Key, payload []byte) Outcome {
	out := Outcome{QuestionID: key.QuestionID}

	answer, err := DecodeAnswer(payload)
	if err != nil {
		out.Warning = err.Error()
		return out
	}
	if answer.Empty() {
		return out
	}
	out.Answered = true

	var correct bool
	switch key.Type {
	case models.QuestionMCQ:
		correct, out.Warning = checkSingleChoice(key.Correct, answer.Keys)
	case models.QuestionMulti:
		correct = checkMultiChoice(key.Correct, answer.Keys)
	case models.QuestionFIB:
		correct, out.Warning = checkFillBlank(key.Correct, answer.Keys)
	default:
		out.Warning = "unsupported question type " + string(key.Type)
	}

	out.Correct = correct
	if correct {
		out.Awarded = key.Marks
	}
	return out
}

func checkSingleChoice(correct, submitted []string) (bool, string) {
	if len(submitted) != 1 {
		return false, "single choice question expects exactly one key"
	}
	if len(correct) != 1 {
		return false, "answer key must hold exactly one key"
	}
	return submitted[0] == correct[0], ""
}

func checkMultiChoice(correct, submitted []string) bool {
	want := toSet(correct)
	got := toSet(submitted)
	if len(want) != len(got) {
		return false
	}
	for k := range got {
		if _, ok := want[k]; !ok {
			return false
		}
	}
	return true
}

func checkFillBlank(accepted, submitted []string) (bool, string) {
	if len(submitted) != 1 {
		return false, "fill in the blank question expects a single text answer"
	}
	given := strings.TrimSpace(submitted[0])
	for _, a := range accepted {
		if strings.EqualFold(given, strings.TrimSpace(a)) {
			return true, ""
		}
	}
	return false, ""
}

func toSet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set
}

// Percentage is 100*score/total, or 0 when total is 0.
func Percentage(score, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return Round(100 * score / total)
}

// Round rounds to two decimal places.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}
