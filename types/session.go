package types

import "time"

// SessionStatus is the lifecycle state of a booked session.
// Transitions only move forward: pending -> paid -> completed.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionPaid      SessionStatus = "paid"
	SessionCompleted SessionStatus = "completed"
)

// Session is a booking made by a student against a tutor profile.
type Session struct {
	// ID is the unique identifier of the session.
	ID string `json:"id" db:"id"`

	// TutorID identifies the tutor delivering the session.
	TutorID string `json:"tutorId" db:"tutor_id"`

	// StudentID identifies the student who booked the session.
	StudentID string `json:"studentId" db:"student_id"`

	// ProfileID identifies the profile the session was booked against.
	ProfileID string `json:"profileId" db:"profile_id"`

	// DateTime is the scheduled start as provided by the student.
	DateTime string `json:"dateTime" db:"date_time"`

	// Duration is the length of the session in whole hours.
	Duration int `json:"duration" db:"duration"`

	// Price is PricePerHour x Duration, fixed at booking time.
	Price int64 `json:"price" db:"price"`

	// Status is the lifecycle state of the session.
	Status SessionStatus `json:"status" db:"status"`

	// Paid is set once the payment step has succeeded.
	Paid bool `json:"paid" db:"paid"`

	// Completed is set once the tutor has confirmed delivery.
	Completed bool `json:"completed" db:"completed"`

	// CreatedAt is the timestamp when the session was booked.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent status change.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// HasParticipant reports whether the user is the session's student or tutor.
func (s Session) HasParticipant(userID string) bool {
	return s.StudentID == userID || s.TutorID == userID
}

// SessionDetail is a session enriched with display names and the booked subject.
type SessionDetail struct {
	Session
	TutorName   string `json:"tutorName"`
	StudentName string `json:"studentName"`
	Subject     string `json:"subject"`
}

// PaymentResult is returned by the payment endpoint.
type PaymentResult struct {
	Message   string  `json:"message"`
	Reference string  `json:"reference,omitempty"`
	Session   Session `json:"session"`
}
