package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	eventSource  = "exam-service"
	eventVersion = "1.0"
)

// EventType represents the domain events emitted after commit
type EventType string

const (
	// Attempt events
	EventAttemptStarted      EventType = "attempt.started"
	EventAttemptSubmitted    EventType = "attempt.submitted"
	EventAttemptRecalculated EventType = "attempt.recalculated"

	// Grading events
	EventResponseGraded EventType = "response.graded"

	// Paper events
	EventPaperSubmitted EventType = "paper.submitted"
	EventPaperEvaluated EventType = "paper.evaluated"
)

// NotificationEvent is the envelope for every published event
type NotificationEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// Attempt event payloads

type AttemptStartedEvent struct {
	AttemptID uint      `json:"attempt_id"`
	ExamID    uint      `json:"exam_id"`
	UserID    string    `json:"user_id"`
	StartedAt time.Time `json:"started_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type AttemptSubmittedEvent struct {
	AttemptID  uint      `json:"attempt_id"`
	ExamID     uint      `json:"exam_id"`
	UserID     string    `json:"user_id"`
	Status     string    `json:"status"`
	Score      float64   `json:"score"`
	Percentage float64   `json:"percentage"`
	FinishedAt time.Time `json:"finished_at"`
	// Swept is true when the attempt was finalised by the expiry sweep.
	Swept bool `json:"swept,omitempty"`
}

type AttemptRecalculatedEvent struct {
	AttemptID          uint    `json:"attempt_id"`
	ExamID             uint    `json:"exam_id"`
	Score              float64 `json:"score"`
	Percentage         float64 `json:"percentage"`
	TeacherMarksFolded bool    `json:"teacher_marks_folded"`
	RequestedBy        string  `json:"requested_by"`
}

// Grading event payloads

type ResponseGradedEvent struct {
	ResponseID  uint     `json:"response_id"`
	AttemptID   uint     `json:"attempt_id"`
	QuestionID  uint     `json:"question_id"`
	StudentID   string   `json:"student_id"`
	GraderID    string   `json:"grader_id"`
	TeacherMark *float64 `json:"teacher_mark"`
}

// Paper event payloads

type PaperSubmittedEvent struct {
	AttemptID     uint    `json:"attempt_id"`
	PaperID       uint    `json:"paper_id"`
	UserID        string  `json:"user_id"`
	Score         float64 `json:"score"`
	MaxScore      float64 `json:"max_score"`
	AutoSubmitted bool    `json:"auto_submitted"`
}

type PaperEvaluatedEvent struct {
	AttemptID   uint    `json:"attempt_id"`
	PaperID     uint    `json:"paper_id"`
	UserID      string  `json:"user_id"`
	EvaluatorID string  `json:"evaluator_id"`
	Marks       float64 `json:"marks"`
	MaxMarks    float64 `json:"max_marks"`
}

// NewEvent wraps data in an envelope with a fresh id.
func NewEvent(eventType EventType, data interface{}) *NotificationEvent {
	return &NotificationEvent{
		ID:        GenerateEventID(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

// GenerateEventID returns a random UUID string
func GenerateEventID() string {
	return uuid.NewString()
}
