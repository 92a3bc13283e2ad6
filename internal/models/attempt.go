package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
	AttemptTimedOut   AttemptStatus = "timed_out"
)

// IsTerminal reports whether no further automatic mutation is allowed.
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptSubmitted || s == AttemptTimedOut
}

type Attempt struct {
	ID              uint          `json:"id" gorm:"primaryKey"`
	UserID          string        `json:"user_id" gorm:"not null;size:255;index:idx_attempt_user_exam"`
	ExamID          uint          `json:"exam_id" gorm:"not null;index:idx_attempt_user_exam;index"`
	Status          AttemptStatus `json:"status" gorm:"not null;size:20;default:in_progress;index"`
	StartedAt       time.Time     `json:"started_at" gorm:"not null"`
	FinishedAt      *time.Time    `json:"finished_at"`
	TotalScore      float64       `json:"total_score" gorm:"not null;default:0"`
	Percentage      float64       `json:"percentage" gorm:"not null;default:0"`
	TotalMarks      float64       `json:"total_marks" gorm:"not null;default:0"`
	Rank            *int          `json:"rank"`
	Percentile      *float64      `json:"percentile"`
	DurationSeconds int           `json:"duration_seconds" gorm:"default:0"`
	TeacherAdjusted bool          `json:"teacher_adjusted" gorm:"default:false"`

	Metadata datatypes.JSON `json:"metadata,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Relations
	Exam      *Exam      `json:"exam,omitempty" gorm:"foreignKey:ExamID"`
	Responses []Response `json:"responses,omitempty" gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE"`
}

func (Attempt) TableName() string {
	return "attempts"
}

// Elapsed is measured against FinishedAt for terminal attempts.
func (a *Attempt) Elapsed(now time.Time) time.Duration {
	if a.FinishedAt != nil {
		return a.FinishedAt.Sub(a.StartedAt)
	}
	return now.Sub(a.StartedAt)
}

type Response struct {
	ID               uint           `json:"id" gorm:"primaryKey"`
	AttemptID        uint           `json:"attempt_id" gorm:"not null;uniqueIndex:idx_response_attempt_question"`
	QuestionID       uint           `json:"question_id" gorm:"not null;uniqueIndex:idx_response_attempt_question;index"`
	AnswerPayload    datatypes.JSON `json:"answer_payload" gorm:"type:jsonb"`
	Correct          bool           `json:"correct" gorm:"default:false"`
	MarksAwarded     float64        `json:"marks_awarded" gorm:"default:0"`
	TimeSpentSeconds int            `json:"time_spent_seconds" gorm:"default:0"`

	// Teacher overlay
	TeacherMark      *float64   `json:"teacher_mark"`
	TeacherFeedback  string     `json:"teacher_feedback" gorm:"type:text"`
	GradedBy         *string    `json:"graded_by" gorm:"size:255"`
	GradedAt         *time.Time `json:"graded_at"`
	FlaggedForReview bool       `json:"flagged_for_review" gorm:"default:false"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (Response) TableName() string {
	return "responses"
}

// Wire shapes of AnswerPayload.

type ChoiceAnswer struct {
	Answers []string `json:"answers"`
}

type TextAnswer struct {
	Answer string `json:"answer"`
}
