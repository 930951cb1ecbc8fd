package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventAttemptCompleted EventType = "attempt.completed"
)

// Event is the envelope published to the progress/notification collaborators.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Data      interface{} `json:"data"`
}

// AttemptCompletedEvent is emitted after a successful finalize so course
// progress and quota systems can react. Delivery is fire-and-forget.
type AttemptCompletedEvent struct {
	AttemptID    string    `json:"attempt_id"`
	UserID       uint      `json:"user_id"`
	AssessmentID uint      `json:"assessment_id"`
	ScorePercent int       `json:"score_percent"`
	Passed       bool      `json:"passed"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

func NewAttemptCompletedEvent(attemptID string, userID, assessmentID uint, scorePercent int, passed bool, submittedAt time.Time) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      EventAttemptCompleted,
		Timestamp: time.Now(),
		Source:    "assessment-engine",
		Version:   "1.0",
		Data: AttemptCompletedEvent{
			AttemptID:    attemptID,
			UserID:       userID,
			AssessmentID: assessmentID,
			ScorePercent: scorePercent,
			Passed:       passed,
			SubmittedAt:  submittedAt,
		},
	}
}
