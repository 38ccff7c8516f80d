package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tutorhub/apiserver/internal/store/memory"
	"github.com/tutorhub/apiserver/types"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	store    *memory.Store
	events   *recordingPublisher
	users    *UserService
	profiles *ProfileService
	sessions *SessionService
	reviews  *ReviewService
	stats    *StatsService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithPayments(t, nil)
}

func newFixtureWithPayments(t *testing.T, payments PaymentProvider) *fixture {
	t.Helper()
	mem := memory.New()
	events := &recordingPublisher{}
	return &fixture{
		store:    mem,
		events:   events,
		users:    NewUserService(mem.Users).WithHashCost(bcrypt.MinCost),
		profiles: NewProfileService(mem.Profiles, mem.Sessions, mem.Reviews, mem.Users, nil),
		sessions: NewSessionService(mem.Sessions, mem.Profiles, mem.Users, payments, events, nil),
		reviews:  NewReviewService(mem.Reviews, mem.Sessions, mem.Profiles, mem.Users, events, nil),
		stats:    NewStatsService(mem.Sessions, mem.Profiles, mem.Reviews),
	}
}

func (f *fixture) register(t *testing.T, name string, role types.Role) types.Identity {
	t.Helper()
	user, err := f.users.Register(context.Background(), RegisterInput{
		Name:     name,
		Email:    name + "@example.com",
		Password: "secret",
		Role:     role,
	})
	require.NoError(t, err)
	return types.Identity{ID: user.ID, Role: user.Role, Name: user.Name}
}

func (f *fixture) profile(t *testing.T, tutor types.Identity, subject string, price int64) types.TutorProfile {
	t.Helper()
	profile, err := f.profiles.Create(context.Background(), tutor, CreateProfileInput{
		Subject:      subject,
		PricePerHour: price,
	})
	require.NoError(t, err)
	return profile
}

func (f *fixture) book(t *testing.T, student types.Identity, profile types.TutorProfile, duration int) types.Session {
	t.Helper()
	session, err := f.sessions.Create(context.Background(), student, CreateSessionInput{
		TutorID:   profile.TutorID,
		ProfileID: profile.ID,
		DateTime:  "2026-11-02T09:00:00Z",
		Duration:  duration,
	})
	require.NoError(t, err)
	return session
}

// deliver books, pays and completes a session.
func (f *fixture) deliver(t *testing.T, student types.Identity, profile types.TutorProfile) types.Session {
	t.Helper()
	ctx := context.Background()
	session := f.book(t, student, profile, 1)
	_, err := f.sessions.Pay(ctx, student.ID, session.ID)
	require.NoError(t, err)
	session, err = f.sessions.Complete(ctx, profile.TutorID, session.ID)
	require.NoError(t, err)
	return session
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []types.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event types.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) eventTypes() []types.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]types.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type failingPayments struct {
	calls int
}

func (p *failingPayments) Charge(context.Context, types.Session) (string, error) {
	p.calls++
	return "", errors.New("card declined")
}

type countingPayments struct {
	calls int
}

func (p *countingPayments) Charge(context.Context, types.Session) (string, error) {
	p.calls++
	return "ref", nil
}
