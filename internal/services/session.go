package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/tutorhub/apiserver/types"
)

// CreateSessionInput carries a booking request. ProfileID is optional; when it
// does not resolve, the tutor's first profile is used.
type CreateSessionInput struct {
	TutorID   string
	ProfileID string
	DateTime  string
	Duration  int
}

// SessionService is the booking ledger: it prices sessions and drives the
// pending -> paid -> completed state machine.
type SessionService struct {
	sessions SessionRepository
	profiles ProfileRepository
	users    UserRepository
	payments PaymentProvider
	events   eventSink
	logger   *slog.Logger
}

func NewSessionService(
	sessions SessionRepository,
	profiles ProfileRepository,
	users UserRepository,
	payments PaymentProvider,
	publisher EventPublisher,
	logger *slog.Logger,
) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	if payments == nil {
		payments = MockPaymentProvider{}
	}
	return &SessionService{
		sessions: sessions,
		profiles: profiles,
		users:    users,
		payments: payments,
		events:   newEventSink(publisher, logger),
		logger:   logger,
	}
}

func (s *SessionService) Create(ctx context.Context, caller types.Identity, input CreateSessionInput) (types.Session, error) {
	if caller.Role != types.RoleStudent {
		return types.Session{}, forbidden("only students can book sessions")
	}

	input.TutorID = strings.TrimSpace(input.TutorID)
	input.DateTime = strings.TrimSpace(input.DateTime)
	if input.TutorID == "" || input.DateTime == "" {
		return types.Session{}, validationError("missing fields")
	}
	if input.Duration <= 0 {
		return types.Session{}, validationError("duration must be a positive number of hours")
	}

	profile, err := s.resolveProfile(ctx, input.ProfileID, input.TutorID)
	if err != nil {
		return types.Session{}, err
	}

	session, err := s.sessions.Create(ctx, types.Session{
		ID:        uuid.NewString(),
		TutorID:   profile.TutorID,
		StudentID: caller.ID,
		ProfileID: profile.ID,
		DateTime:  input.DateTime,
		Duration:  input.Duration,
		Price:     profile.PricePerHour * int64(input.Duration),
		Status:    types.SessionPending,
	})
	if err != nil {
		return types.Session{}, fmt.Errorf("create session: %w", err)
	}

	sessionsBookedTotal.Inc()
	s.logger.InfoContext(ctx, "session booked",
		slog.String("session_id", session.ID),
		slog.String("profile_id", session.ProfileID),
		slog.Int64("price", session.Price),
	)
	s.events.emit(ctx, types.EventSessionCreated, session, "")
	return session, nil
}

func (s *SessionService) resolveProfile(ctx context.Context, profileID, tutorID string) (types.TutorProfile, error) {
	if profileID = strings.TrimSpace(profileID); profileID != "" {
		profile, err := s.profiles.Get(ctx, profileID)
		if err == nil {
			return profile, nil
		}
		if !isStoreNotFound(err) {
			return types.TutorProfile{}, fmt.Errorf("load profile: %w", err)
		}
	}

	owned, err := s.profiles.ListByTutor(ctx, tutorID)
	if err != nil {
		return types.TutorProfile{}, fmt.Errorf("list tutor profiles: %w", err)
	}
	if len(owned) == 0 {
		return types.TutorProfile{}, notFound("tutor profile not found")
	}
	return owned[0], nil
}

// Pay runs the payment step for the session's student. Paying a session that
// is already paid or completed is a no-op and does not charge again.
func (s *SessionService) Pay(ctx context.Context, callerID, sessionID string) (types.PaymentResult, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return types.PaymentResult{}, notFoundOr(err, "session")
	}
	if session.StudentID != callerID {
		return types.PaymentResult{}, forbidden("only the student can pay for this session")
	}
	if session.Paid {
		return types.PaymentResult{Message: "Session already paid", Session: session}, nil
	}

	reference, err := s.payments.Charge(ctx, session)
	if err != nil {
		paymentsTotal.WithLabelValues("failed").Inc()
		s.logger.WarnContext(ctx, "payment failed",
			slog.String("session_id", session.ID),
			slog.Any("error", err),
		)
		return types.PaymentResult{}, &Error{Kind: ErrPaymentFailed, Message: "payment failed"}
	}

	session.Paid = true
	session.Status = types.SessionPaid
	session, err = s.sessions.UpdateStatus(ctx, session)
	if err != nil {
		return types.PaymentResult{}, notFoundOr(err, "session")
	}

	paymentsTotal.WithLabelValues("succeeded").Inc()
	s.logger.InfoContext(ctx, "session paid",
		slog.String("session_id", session.ID),
		slog.String("reference", reference),
	)
	s.events.emit(ctx, types.EventSessionPaid, session, "")
	return types.PaymentResult{
		Message:   "Payment successful (mock)",
		Reference: reference,
		Session:   session,
	}, nil
}

// Complete marks a paid session as delivered. Only the session's tutor may do so.
func (s *SessionService) Complete(ctx context.Context, callerID, sessionID string) (types.Session, error) {
	session, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		return types.Session{}, notFoundOr(err, "session")
	}
	if session.TutorID != callerID {
		return types.Session{}, forbidden("only the tutor can complete this session")
	}
	if session.Completed {
		return session, nil
	}
	if !session.Paid {
		return types.Session{}, newError(ErrInvalidState, "session must be paid before it can be completed")
	}

	session.Completed = true
	session.Status = types.SessionCompleted
	session, err = s.sessions.UpdateStatus(ctx, session)
	if err != nil {
		return types.Session{}, notFoundOr(err, "session")
	}

	sessionsCompletedTotal.Inc()
	s.logger.InfoContext(ctx, "session completed", slog.String("session_id", session.ID))
	s.events.emit(ctx, types.EventSessionCompleted, session, "")
	return session, nil
}

// ListMine returns the sessions where the caller is the student or the tutor.
func (s *SessionService) ListMine(ctx context.Context, callerID string) ([]types.Session, error) {
	return s.sessions.ListByParticipant(ctx, callerID)
}

// ListMineDetailed is ListMine enriched with display names and the booked subject.
func (s *SessionService) ListMineDetailed(ctx context.Context, callerID string) ([]types.SessionDetail, error) {
	sessions, err := s.sessions.ListByParticipant(ctx, callerID)
	if err != nil {
		return nil, err
	}

	var userIDs, profileIDs []string
	for _, session := range sessions {
		userIDs = append(userIDs, session.TutorID, session.StudentID)
		profileIDs = append(profileIDs, session.ProfileID)
	}
	names, err := displayNames(ctx, s.users, uniqueIDs(userIDs))
	if err != nil {
		return nil, fmt.Errorf("resolve names: %w", err)
	}
	profiles, err := s.profiles.GetByIDs(ctx, uniqueIDs(profileIDs))
	if err != nil {
		return nil, fmt.Errorf("resolve profiles: %w", err)
	}

	details := make([]types.SessionDetail, 0, len(sessions))
	for _, session := range sessions {
		subject := placeholderUnknown
		if profile, ok := profiles[session.ProfileID]; ok {
			subject = profile.Subject
		}
		details = append(details, types.SessionDetail{
			Session:     session,
			TutorName:   nameOr(names, session.TutorID, placeholderUnknown),
			StudentName: nameOr(names, session.StudentID, placeholderUnknown),
			Subject:     subject,
		})
	}
	return details, nil
}

func (s *SessionService) List(ctx context.Context) ([]types.Session, error) {
	return s.sessions.List(ctx)
}
