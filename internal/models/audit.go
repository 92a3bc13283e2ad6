package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditEventType string

const (
	AuditGradeUpdated      AuditEventType = "grade_updated"
	AuditScoreRecalculated AuditEventType = "score_recalculated"
)

// GradeAudit records each manual change to a response grade or attempt score.
type GradeAudit struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	EventType AuditEventType `json:"event_type" gorm:"not null;size:30;index"`

	// Actor information
	GraderID   string   `json:"grader_id" gorm:"not null;size:255;index"`
	GraderRole UserRole `json:"grader_role" gorm:"not null;size:20"`

	// Target information
	AttemptID  uint  `json:"attempt_id" gorm:"not null;index"`
	ResponseID *uint `json:"response_id" gorm:"index"`

	PreviousMark     *float64 `json:"previous_mark"`
	NewMark          *float64 `json:"new_mark"`
	PreviousFeedback string   `json:"previous_feedback" gorm:"type:text"`
	NewFeedback      string   `json:"new_feedback" gorm:"type:text"`

	Changes datatypes.JSON `json:"changes,omitempty" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

func (GradeAudit) TableName() string {
	return "grade_audits"
}

// AllModels lists every table for AutoMigrate.
func AllModels() []interface{} {
	return []interface{}{
		&Question{},
		&Exam{},
		&ExamQuestion{},
		&Attempt{},
		&Response{},
		&GradeAudit{},
		&QuestionPaper{},
		&PaperQuestion{},
		&PaperAttempt{},
		&PaperAnswer{},
		&Evaluation{},
	}
}
