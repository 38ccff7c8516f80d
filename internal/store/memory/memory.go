package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/tutorhub/apiserver/internal/store"
	"github.com/tutorhub/apiserver/types"
)

// Store holds the four marketplace collections in memory.
type Store struct {
	Users    *UserRepository
	Profiles *ProfileRepository
	Sessions *SessionRepository
	Reviews  *ReviewRepository
}

func New() *Store {
	profiles := &ProfileRepository{c: newCollection(func(p types.TutorProfile) string { return p.ID })}
	return &Store{
		Users:    &UserRepository{c: newCollection(func(u types.User) string { return u.ID })},
		Profiles: profiles,
		Sessions: &SessionRepository{c: newCollection(func(s types.Session) string { return s.ID })},
		Reviews: &ReviewRepository{
			c:       newCollection(func(r types.Review) string { return r.ID }),
			ratings: profiles,
		},
	}
}

func now() time.Time {
	return time.Now().UTC()
}

type UserRepository struct {
	c *collection[types.User]
}

func (r *UserRepository) GetByID(_ context.Context, id string) (types.User, error) {
	return r.c.get(id)
}

func (r *UserRepository) GetByEmail(_ context.Context, email string) (types.User, error) {
	user, ok := r.c.find(func(u types.User) bool { return u.Email == email })
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *UserRepository) GetByIDs(_ context.Context, ids []string) (map[string]types.User, error) {
	users := make(map[string]types.User, len(ids))
	for _, user := range r.c.filter(func(u types.User) bool { return slices.Contains(ids, u.ID) }) {
		users[user.ID] = user
	}
	return users, nil
}

func (r *UserRepository) List(_ context.Context) ([]types.User, error) {
	return r.c.filter(nil), nil
}

func (r *UserRepository) Create(_ context.Context, user types.User) (types.User, error) {
	user.CreatedAt = now()
	user.UpdatedAt = user.CreatedAt
	err := r.c.insert(user, func(existing types.User) bool { return existing.Email == user.Email })
	if err != nil {
		return types.User{}, err
	}
	return user, nil
}

type ProfileRepository struct {
	c *collection[types.TutorProfile]
}

func (r *ProfileRepository) Count(_ context.Context, filter types.ProfileFilter) (int, error) {
	return len(r.c.filter(filter.Matches)), nil
}

func (r *ProfileRepository) Search(_ context.Context, filter types.ProfileFilter, offset, limit int) ([]types.TutorProfile, error) {
	matched := r.c.filter(filter.Matches)
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matched) {
		return []types.TutorProfile{}, nil
	}
	end := min(offset+limit, len(matched))
	return cloneProfiles(matched[offset:end]), nil
}

func (r *ProfileRepository) Get(_ context.Context, id string) (types.TutorProfile, error) {
	profile, err := r.c.get(id)
	if err != nil {
		return types.TutorProfile{}, err
	}
	return cloneProfile(profile), nil
}

func (r *ProfileRepository) GetByIDs(_ context.Context, ids []string) (map[string]types.TutorProfile, error) {
	profiles := make(map[string]types.TutorProfile, len(ids))
	for _, p := range r.c.filter(func(p types.TutorProfile) bool { return slices.Contains(ids, p.ID) }) {
		profiles[p.ID] = cloneProfile(p)
	}
	return profiles, nil
}

func (r *ProfileRepository) ListByTutor(_ context.Context, tutorID string) ([]types.TutorProfile, error) {
	return cloneProfiles(r.c.filter(func(p types.TutorProfile) bool { return p.TutorID == tutorID })), nil
}

func (r *ProfileRepository) Create(_ context.Context, profile types.TutorProfile) (types.TutorProfile, error) {
	profile = cloneProfile(profile)
	profile.CreatedAt = now()
	profile.UpdatedAt = profile.CreatedAt
	err := r.c.insert(profile, func(existing types.TutorProfile) bool {
		return existing.TutorID == profile.TutorID && types.SameSubject(existing.Subject, profile.Subject)
	})
	if err != nil {
		return types.TutorProfile{}, err
	}
	return cloneProfile(profile), nil
}

func (r *ProfileRepository) Update(_ context.Context, profile types.TutorProfile) (types.TutorProfile, error) {
	_, clash := r.c.find(func(existing types.TutorProfile) bool {
		return existing.ID != profile.ID && existing.TutorID == profile.TutorID &&
			types.SameSubject(existing.Subject, profile.Subject)
	})
	if clash {
		return types.TutorProfile{}, store.ErrConflict
	}
	updated, err := r.c.update(profile.ID, func(p *types.TutorProfile) error {
		p.Subject = profile.Subject
		p.Bio = profile.Bio
		p.Location = profile.Location
		p.PricePerHour = profile.PricePerHour
		p.AvailableTimes = slices.Clone(profile.AvailableTimes)
		p.UpdatedAt = now()
		return nil
	})
	if err != nil {
		return types.TutorProfile{}, err
	}
	return cloneProfile(updated), nil
}

func (r *ProfileRepository) SetTutorRating(_ context.Context, tutorID string, rating float64, count int) error {
	r.c.updateWhere(
		func(p types.TutorProfile) bool { return p.TutorID == tutorID },
		func(p *types.TutorProfile) {
			p.Rating = rating
			p.RatingCount = count
			p.UpdatedAt = now()
		},
	)
	return nil
}

func (r *ProfileRepository) Delete(_ context.Context, id string) error {
	return r.c.delete(id)
}

func cloneProfile(p types.TutorProfile) types.TutorProfile {
	p.AvailableTimes = slices.Clone(p.AvailableTimes)
	if p.AvailableTimes == nil {
		p.AvailableTimes = []types.TimeSlot{}
	}
	return p
}

func cloneProfiles(in []types.TutorProfile) []types.TutorProfile {
	out := make([]types.TutorProfile, 0, len(in))
	for _, p := range in {
		out = append(out, cloneProfile(p))
	}
	return out
}

type SessionRepository struct {
	c *collection[types.Session]
}

func (r *SessionRepository) Get(_ context.Context, id string) (types.Session, error) {
	return r.c.get(id)
}

func (r *SessionRepository) ListByParticipant(_ context.Context, userID string) ([]types.Session, error) {
	return r.c.filter(func(s types.Session) bool { return s.HasParticipant(userID) }), nil
}

func (r *SessionRepository) ListByStudent(_ context.Context, studentID string) ([]types.Session, error) {
	return r.c.filter(func(s types.Session) bool { return s.StudentID == studentID }), nil
}

func (r *SessionRepository) ListByTutor(_ context.Context, tutorID string) ([]types.Session, error) {
	return r.c.filter(func(s types.Session) bool { return s.TutorID == tutorID }), nil
}

func (r *SessionRepository) List(_ context.Context) ([]types.Session, error) {
	return r.c.filter(nil), nil
}

func (r *SessionRepository) CountOpenByProfile(_ context.Context, profileID string) (int, error) {
	open := r.c.filter(func(s types.Session) bool { return s.ProfileID == profileID && !s.Completed })
	return len(open), nil
}

func (r *SessionRepository) Create(_ context.Context, session types.Session) (types.Session, error) {
	session.CreatedAt = now()
	session.UpdatedAt = session.CreatedAt
	if err := r.c.insert(session, nil); err != nil {
		return types.Session{}, err
	}
	return session, nil
}

func (r *SessionRepository) UpdateStatus(_ context.Context, session types.Session) (types.Session, error) {
	return r.c.update(session.ID, func(s *types.Session) error {
		s.Status = session.Status
		s.Paid = session.Paid
		s.Completed = session.Completed
		s.UpdatedAt = now()
		return nil
	})
}

// ratingWriter is the profile-side half of CreateRated.
type ratingWriter interface {
	SetTutorRating(ctx context.Context, tutorID string, rating float64, count int) error
}

type ReviewRepository struct {
	c       *collection[types.Review]
	ratings ratingWriter
	// rateMu serializes CreateRated so aggregates never interleave.
	rateMu sync.Mutex
}

func (r *ReviewRepository) GetBySession(_ context.Context, sessionID string) (types.Review, error) {
	review, ok := r.c.find(func(rv types.Review) bool { return rv.SessionID == sessionID })
	if !ok {
		return types.Review{}, store.ErrNotFound
	}
	return review, nil
}

func (r *ReviewRepository) ListByTutor(_ context.Context, tutorID string) ([]types.Review, error) {
	return r.c.filter(func(rv types.Review) bool { return rv.TutorID == tutorID }), nil
}

func (r *ReviewRepository) List(_ context.Context) ([]types.Review, error) {
	return r.c.filter(nil), nil
}

func (r *ReviewRepository) Create(_ context.Context, review types.Review) (types.Review, error) {
	review.CreatedAt = now()
	err := r.c.insert(review, func(existing types.Review) bool { return existing.SessionID == review.SessionID })
	if err != nil {
		return types.Review{}, err
	}
	return review, nil
}

// CreateRated inserts the review, then writes the aggregate produced by rate
// onto the tutor's profiles. The review is removed again if that write fails.
func (r *ReviewRepository) CreateRated(ctx context.Context, review types.Review, rate types.RatingFunc) (types.Review, error) {
	r.rateMu.Lock()
	defer r.rateMu.Unlock()

	created, err := r.Create(ctx, review)
	if err != nil {
		return types.Review{}, err
	}
	rating, count := rate(r.c.filter(func(rv types.Review) bool { return rv.TutorID == review.TutorID }))
	if err := r.ratings.SetTutorRating(ctx, review.TutorID, rating, count); err != nil {
		_ = r.c.delete(created.ID)
		return types.Review{}, err
	}
	return created, nil
}
