package services

import (
	"encoding/json"
	"time"

	"github.com/SAP-F-2025/exam-service/internal/models"
	"github.com/SAP-F-2025/exam-service/internal/scoring"
)

// ===== ATTEMPT REQUESTS / RESULTS =====

// ResponseInput is one answer sent by the student. Answer accepts
// {"answers":[...]}, {"answer":"..."}, a bare string or a bare array.
type ResponseInput struct {
	QuestionID       uint            `json:"question_id" validate:"required"`
	Answer           json.RawMessage `json:"answer"`
	TimeSpentSeconds int             `json:"time_spent_seconds" validate:"min=0"`
	FlaggedForReview bool            `json:"flagged_for_review"`
}

// QuestionView is a question as shown to the student, without its answer key.
type QuestionView struct {
	QuestionID           uint                `json:"question_id"`
	Order                int                 `json:"order"`
	Type                 models.QuestionType `json:"type"`
	Statement            string              `json:"statement"`
	Choices              map[string]string   `json:"choices,omitempty"`
	Marks                float64             `json:"marks"`
	EstimatedTimeSeconds int                 `json:"estimated_time_seconds"`
}

type StartAttemptResult struct {
	AttemptID uint                 `json:"attempt_id"`
	ExamID    uint                 `json:"exam_id"`
	Status    models.AttemptStatus `json:"status"`
	StartedAt time.Time            `json:"started_at"`
	ExpiresAt time.Time            `json:"expires_at"`
	// Resumed is true when an existing in-progress attempt was returned.
	Resumed   bool           `json:"resumed"`
	Questions []QuestionView `json:"questions"`
}

type SubmitResult struct {
	AttemptID  uint                 `json:"attempt_id"`
	Score      float64              `json:"score"`
	Percentage float64              `json:"percentage"`
	Status     models.AttemptStatus `json:"status"`
	TotalMarks float64              `json:"total_marks"`
	Rank       *int                 `json:"rank,omitempty"`
	Percentile *float64             `json:"percentile,omitempty"`
	FinishedAt *time.Time           `json:"finished_at,omitempty"`
	// AlreadyFinished marks a repeated submit answered from the stored result.
	AlreadyFinished bool              `json:"already_finished,omitempty"`
	Warnings        []scoring.Warning `json:"warnings,omitempty"`
}

type SavedResponse struct {
	QuestionID       uint            `json:"question_id"`
	Answer           json.RawMessage `json:"answer,omitempty"`
	TimeSpentSeconds int             `json:"time_spent_seconds"`
	FlaggedForReview bool            `json:"flagged_for_review"`
}

type ResumeResult struct {
	AttemptID        uint                 `json:"attempt_id"`
	Status           models.AttemptStatus `json:"status"`
	StartedAt        time.Time            `json:"started_at"`
	ExpiresAt        time.Time            `json:"expires_at"`
	RemainingSeconds int                  `json:"remaining_seconds"`
	TimeSpentSeconds int                  `json:"time_spent_seconds"`
	Questions        []QuestionView       `json:"questions"`
	Responses        []SavedResponse      `json:"responses"`
	// Result is set once the attempt is terminal.
	Result *SubmitResult `json:"result,omitempty"`
}

type SaveProgressResult struct {
	AttemptID        uint `json:"attempt_id"`
	Saved            int  `json:"saved"`
	RemainingSeconds int  `json:"remaining_seconds"`
}

type SweepResult struct {
	Finalised  int    `json:"finalised"`
	AttemptIDs []uint `json:"attempt_ids"`
}

// ===== GRADING REQUESTS / RESULTS =====

type GradeRequest struct {
	TeacherMark *float64 `json:"teacher_mark" validate:"required,gte=0"`
	Remarks     string   `json:"remarks" validate:"max=5000"`
}

type GradeResult struct {
	Status      string   `json:"status"`
	ResponseID  uint     `json:"response_id"`
	TeacherMark *float64 `json:"teacher_mark"`
}

type ReviewItem struct {
	ResponseID       uint                `json:"response_id"`
	QuestionID       uint                `json:"question_id"`
	QuestionType     models.QuestionType `json:"question_type,omitempty"`
	QuestionText     string              `json:"question_text"`
	Answer           json.RawMessage     `json:"answer"`
	Correct          bool                `json:"correct"`
	MarksAwarded     float64             `json:"marks_awarded"`
	TeacherMark      *float64            `json:"teacher_mark"`
	Remarks          string              `json:"remarks"`
	FlaggedForReview bool                `json:"flagged_for_review"`
}

type ReviewResult struct {
	AttemptID  uint                 `json:"attempt_id"`
	ExamID     uint                 `json:"exam_id"`
	UserID     string               `json:"user_id"`
	Status     models.AttemptStatus `json:"status"`
	Score      float64              `json:"score"`
	Percentage float64              `json:"percentage"`
	Rank       *int                 `json:"rank,omitempty"`
	Percentile *float64             `json:"percentile,omitempty"`
	Responses  []ReviewItem         `json:"responses"`
}

type RecalculateResult struct {
	AttemptID           uint              `json:"attempt_id"`
	Score               float64           `json:"score"`
	Percentage          float64           `json:"percentage"`
	TotalMarks          float64           `json:"total_marks"`
	TeacherMarksApplied bool              `json:"teacher_marks_applied"`
	Warnings            []scoring.Warning `json:"warnings,omitempty"`
}

// ===== CATALOGUE REQUESTS =====

type ExamQuestionInput struct {
	QuestionID    uint     `json:"question_id" validate:"required"`
	MarksOverride *float64 `json:"marks_override" validate:"omitempty,gte=0"`
}

type CreateExamRequest struct {
	Title            string                `json:"title" validate:"required,min=1,max=200"`
	Topic            string                `json:"topic" validate:"max=200"`
	DurationSeconds  int                   `json:"duration_seconds" validate:"required,min=1"`
	PassingMarks     float64               `json:"passing_marks" validate:"min=0"`
	ShuffleQuestions bool                  `json:"shuffle_questions"`
	Visibility       models.ExamVisibility `json:"visibility" validate:"omitempty,exam_visibility"`
	Questions        []ExamQuestionInput   `json:"questions" validate:"dive"`
}

type ExamQuestionOrder struct {
	QuestionID uint `json:"question_id"`
	Order      int  `json:"order"`
}

type ExamSummary struct {
	ID         uint                  `json:"id"`
	Title      string                `json:"title"`
	Visibility models.ExamVisibility `json:"visibility"`
	TotalMarks float64               `json:"total_marks"`
	Questions  []ExamQuestionOrder   `json:"questions"`
}

// ===== PAPER REQUESTS / RESULTS =====

type PaperQuestionInput struct {
	Text          string            `json:"text" validate:"required"`
	Options       map[string]string `json:"options" validate:"required,min=2"`
	CorrectOption string            `json:"correct_option" validate:"required"`
	Marks         float64           `json:"marks" validate:"gt=0"`
}

type CreatePaperRequest struct {
	Title           string               `json:"title" validate:"required,min=1,max=200"`
	DurationMinutes int                  `json:"duration_minutes" validate:"required,min=1"`
	Questions       []PaperQuestionInput `json:"questions" validate:"required,min=1,dive"`
}

type PaperQuestionView struct {
	QuestionID uint              `json:"question_id"`
	Order      int               `json:"order"`
	Text       string            `json:"text"`
	Options    map[string]string `json:"options"`
	Marks      float64           `json:"marks"`
}

type PaperStartResult struct {
	AttemptID uint                `json:"attempt_id"`
	PaperID   uint                `json:"paper_id"`
	StartedAt time.Time           `json:"started_at"`
	Deadline  time.Time           `json:"deadline"`
	Submitted bool                `json:"submitted"`
	Questions []PaperQuestionView `json:"questions"`
}

type SavePaperAnswerRequest struct {
	QuestionID     uint   `json:"question_id" validate:"required"`
	SelectedOption string `json:"selected_option" validate:"max=50"`
}

type EvaluateRequest struct {
	Marks    *float64 `json:"marks" validate:"required,gte=0"`
	Feedback string   `json:"feedback" validate:"max=5000"`
}

type PaperResult struct {
	AttemptID     uint                 `json:"attempt_id"`
	PaperID       uint                 `json:"paper_id"`
	UserID        string               `json:"user_id"`
	Submitted     bool                 `json:"submitted"`
	SubmittedAt   *time.Time           `json:"submitted_at,omitempty"`
	AutoSubmitted bool                 `json:"auto_submitted"`
	Score         *float64             `json:"score"`
	MaxScore      *float64             `json:"max_score"`
	Answers       []models.PaperAnswer `json:"answers"`
	Evaluation    *models.Evaluation   `json:"evaluation,omitempty"`
}
