package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tutorhub/apiserver/types"
)

// EventPublisher delivers domain events to interested consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event types.Event) error
}

// eventSink publishes events best-effort: a failed publish is logged and
// never fails the operation that produced the event.
type eventSink struct {
	publisher EventPublisher
	logger    *slog.Logger
}

func newEventSink(publisher EventPublisher, logger *slog.Logger) eventSink {
	if logger == nil {
		logger = slog.Default()
	}
	return eventSink{publisher: publisher, logger: logger}
}

func (s eventSink) emit(ctx context.Context, eventType types.EventType, session types.Session, reviewID string) {
	if s.publisher == nil {
		return
	}
	event := types.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		TutorID:    session.TutorID,
		StudentID:  session.StudentID,
		SessionID:  session.ID,
		ReviewID:   reviewID,
		OccurredAt: time.Now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "publish event failed",
			slog.String("event", string(eventType)),
			slog.String("session_id", session.ID),
			slog.Any("error", err),
		)
	}
}
