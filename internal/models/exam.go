package models

import (
	"time"

	"gorm.io/gorm"
)

type ExamVisibility string

const (
	VisibilityPublic ExamVisibility = "public"
	VisibilityStaff  ExamVisibility = "staff"
	VisibilityHidden ExamVisibility = "hidden"
)

type Exam struct {
	ID               uint           `json:"id" gorm:"primaryKey"`
	Title            string         `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Topic            string         `json:"topic" gorm:"size:200;index"`
	DurationSeconds  int            `json:"duration_seconds" gorm:"not null;default:600" validate:"min=0"`
	TotalMarks       float64        `json:"total_marks" gorm:"not null;default:0"`
	PassingMarks     float64        `json:"passing_marks" gorm:"not null;default:0" validate:"min=0"`
	ShuffleQuestions bool           `json:"shuffle_questions" gorm:"default:false"`
	Visibility       ExamVisibility `json:"visibility" gorm:"size:10;default:public;index" validate:"omitempty,exam_visibility"`
	IsActive         bool           `json:"is_active" gorm:"default:true;index"`

	// Metadata
	CreatedBy *string        `json:"created_by" gorm:"size:255;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []ExamQuestion `json:"questions,omitempty" gorm:"foreignKey:ExamID"`
}

func (Exam) TableName() string {
	return "exams"
}

// ExamQuestion fixes a question's position and weight within an exam.
type ExamQuestion struct {
	ID            uint     `json:"id" gorm:"primaryKey"`
	ExamID        uint     `json:"exam_id" gorm:"not null;uniqueIndex:idx_exam_question"`
	QuestionID    uint     `json:"question_id" gorm:"not null;uniqueIndex:idx_exam_question;index"`
	Order         int      `json:"order" gorm:"not null;default:1"`
	MarksOverride *float64 `json:"marks_override" validate:"omitempty,gte=0"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Question *Question `json:"question,omitempty" gorm:"foreignKey:QuestionID"`
}

func (ExamQuestion) TableName() string {
	return "exam_questions"
}

// EffectiveMarks is the per-exam override when set, the question marks otherwise.
func (eq *ExamQuestion) EffectiveMarks() float64 {
	if eq.MarksOverride != nil {
		return *eq.MarksOverride
	}
	if eq.Question != nil {
		return eq.Question.Marks
	}
	return 0
}

// VisibleTo reports whether a caller with the given role may see the exam.
func (e *Exam) VisibleTo(role UserRole) bool {
	switch role {
	case RoleAdmin:
		return true
	case RoleTeacher:
		return e.Visibility == VisibilityPublic || e.Visibility == VisibilityStaff || e.Visibility == ""
	default:
		return e.Visibility == VisibilityPublic || e.Visibility == ""
	}
}

// Deadline is started + duration budget.
func (e *Exam) Deadline(started time.Time) time.Time {
	return started.Add(time.Duration(e.DurationSeconds) * time.Second)
}
