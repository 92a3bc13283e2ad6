package models

import (
	"time"

	"gorm.io/datatypes"
)

type QuestionPaper struct {
	ID              uint      `json:"id" gorm:"primaryKey"`
	Title           string    `json:"title" gorm:"not null;size:200"`
	DurationMinutes int       `json:"duration_minutes" gorm:"not null;default:30"`
	IsActive        bool      `json:"is_active" gorm:"default:true"`
	CreatedBy       *string   `json:"created_by" gorm:"size:255;index"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`

	Questions []PaperQuestion `json:"questions,omitempty" gorm:"foreignKey:PaperID"`
}

func (QuestionPaper) TableName() string {
	return "question_papers"
}

// TotalMarks sums every question on the paper.
func (p *QuestionPaper) TotalMarks() float64 {
	var total float64
	for _, q := range p.Questions {
		total += q.Marks
	}
	return total
}

type PaperQuestion struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	PaperID       uint           `json:"paper_id" gorm:"not null;index"`
	Text          string         `json:"text" gorm:"not null;type:text"`
	Options       datatypes.JSON `json:"options" gorm:"type:jsonb"`
	CorrectOption string         `json:"correct_option,omitempty" gorm:"size:50"`
	Marks         float64        `json:"marks" gorm:"not null;default:1"`
	Order         int            `json:"order" gorm:"default:1"`
}

func (PaperQuestion) TableName() string {
	return "paper_questions"
}

type PaperAttempt struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	PaperID       uint       `json:"paper_id" gorm:"not null;uniqueIndex:idx_paper_attempt_user"`
	UserID        string     `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_paper_attempt_user"`
	StartedAt     time.Time  `json:"started_at" gorm:"not null"`
	Submitted     bool       `json:"submitted" gorm:"default:false"`
	SubmittedAt   *time.Time `json:"submitted_at"`
	AutoSubmitted bool       `json:"auto_submitted" gorm:"default:false"`
	Score         *float64   `json:"score"`
	MaxScore      *float64   `json:"max_score"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Paper      *QuestionPaper `json:"paper,omitempty" gorm:"foreignKey:PaperID"`
	Answers    []PaperAnswer  `json:"answers,omitempty" gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE"`
	Evaluation *Evaluation    `json:"evaluation,omitempty" gorm:"foreignKey:AttemptID"`
}

func (PaperAttempt) TableName() string {
	return "paper_attempts"
}

// Deadline is started_at + paper.duration_minutes.
func (a *PaperAttempt) Deadline(paper *QuestionPaper) time.Time {
	return a.StartedAt.Add(time.Duration(paper.DurationMinutes) * time.Minute)
}

// IsOpen reports whether answers may still be saved.
func (a *PaperAttempt) IsOpen(paper *QuestionPaper, now time.Time) bool {
	return !a.Submitted && now.Before(a.Deadline(paper))
}

type PaperAnswer struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	AttemptID      uint      `json:"attempt_id" gorm:"not null;uniqueIndex:idx_paper_answer"`
	QuestionID     uint      `json:"question_id" gorm:"not null;uniqueIndex:idx_paper_answer"`
	SelectedOption string    `json:"selected_option" gorm:"size:50"`
	Submitted      bool      `json:"submitted" gorm:"default:false"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (PaperAnswer) TableName() string {
	return "paper_answers"
}

// Evaluation holds teacher-entered marks. Nil EvaluatedAt means pending.
type Evaluation struct {
	ID          uint       `json:"id" gorm:"primaryKey"`
	AttemptID   uint       `json:"attempt_id" gorm:"not null;uniqueIndex"`
	EvaluatorID *string    `json:"evaluator_id" gorm:"size:255"`
	Marks       float64    `json:"marks"`
	MaxMarks    float64    `json:"max_marks"`
	Feedback    string     `json:"feedback" gorm:"type:text"`
	EvaluatedAt *time.Time `json:"evaluated_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Evaluation) TableName() string {
	return "evaluations"
}

// IsPending reports whether the evaluation has not been completed.
func (e *Evaluation) IsPending() bool {
	return e.EvaluatedAt == nil
}
