package types

import "time"

// EventType names a domain event published to the message broker.
type EventType string

const (
	EventSessionCreated   EventType = "session.created"
	EventSessionPaid      EventType = "session.paid"
	EventSessionCompleted EventType = "session.completed"
	EventReviewCreated    EventType = "review.created"
)

// Event is the broker payload for a domain event.
type Event struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	TutorID    string    `json:"tutorId"`
	StudentID  string    `json:"studentId"`
	SessionID  string    `json:"sessionId,omitempty"`
	ReviewID   string    `json:"reviewId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}
