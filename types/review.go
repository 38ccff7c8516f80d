package types

import "time"

// Review is a student's rating of a completed session. Reviews are immutable
// and there is at most one per session.
type Review struct {
	ID        string    `json:"id" db:"id"`
	TutorID   string    `json:"tutorId" db:"tutor_id"`
	StudentID string    `json:"studentId" db:"student_id"`
	SessionID string    `json:"sessionId" db:"session_id"`
	Rating    int       `json:"rating" db:"rating"`
	Comment   string    `json:"comment" db:"comment"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// ReviewDetail is a review enriched with the student's display name.
type ReviewDetail struct {
	Review
	StudentName string `json:"studentName"`
}

// RatingFunc derives a tutor's aggregate rating and review count from the
// tutor's full review set.
type RatingFunc func(reviews []Review) (rating float64, count int)
