package services

import (
	"context"

	"github.com/tutorhub/apiserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// ProfileRepository defines persistence operations for tutor profiles.
type ProfileRepository interface {
	Count(ctx context.Context, filter types.ProfileFilter) (int, error)
	Search(ctx context.Context, filter types.ProfileFilter, offset, limit int) ([]types.TutorProfile, error)
	Get(ctx context.Context, id string) (types.TutorProfile, error)
	GetByIDs(ctx context.Context, ids []string) (map[string]types.TutorProfile, error)
	ListByTutor(ctx context.Context, tutorID string) ([]types.TutorProfile, error)
	Create(ctx context.Context, profile types.TutorProfile) (types.TutorProfile, error)
	Update(ctx context.Context, profile types.TutorProfile) (types.TutorProfile, error)
	SetTutorRating(ctx context.Context, tutorID string, rating float64, count int) error
	Delete(ctx context.Context, id string) error
}

// SessionRepository defines persistence operations for booked sessions.
type SessionRepository interface {
	Get(ctx context.Context, id string) (types.Session, error)
	ListByParticipant(ctx context.Context, userID string) ([]types.Session, error)
	ListByStudent(ctx context.Context, studentID string) ([]types.Session, error)
	ListByTutor(ctx context.Context, tutorID string) ([]types.Session, error)
	List(ctx context.Context) ([]types.Session, error)
	CountOpenByProfile(ctx context.Context, profileID string) (int, error)
	Create(ctx context.Context, session types.Session) (types.Session, error)
	UpdateStatus(ctx context.Context, session types.Session) (types.Session, error)
}

// ReviewRepository defines persistence operations for reviews.
type ReviewRepository interface {
	GetBySession(ctx context.Context, sessionID string) (types.Review, error)
	ListByTutor(ctx context.Context, tutorID string) ([]types.Review, error)
	List(ctx context.Context) ([]types.Review, error)
	// CreateRated stores the review and, in the same unit of work, writes the
	// aggregate that rate derives from the tutor's reviews onto every profile the
	// tutor owns. Neither write survives if the other fails.
	CreateRated(ctx context.Context, review types.Review, rate types.RatingFunc) (types.Review, error)
}

func displayNames(ctx context.Context, users UserRepository, ids []string) (map[string]string, error) {
	found, err := users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(found))
	for id, user := range found {
		names[id] = user.Name
	}
	return names, nil
}
