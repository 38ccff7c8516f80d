package events

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/tutorhub/apiserver/internal/mq"
	"github.com/tutorhub/apiserver/internal/services"
	"github.com/tutorhub/apiserver/types"
)

// Subscriber is the subset of mq.MQ used by the worker.
type Subscriber interface {
	Subscribe(ctx context.Context, channel string, handler mq.Handler) error
}

// RatingRecomputer rebuilds a tutor's aggregate rating.
type RatingRecomputer interface {
	RecomputeTutorRating(ctx context.Context, tutorID string) (services.TutorRating, error)
}

// Worker re-runs rating aggregation for every review.created event. The
// request path writes the rating together with the review; the worker keeps
// replicas and restored snapshots converging on the full review set.
type Worker struct {
	subscriber Subscriber
	ratings    RatingRecomputer
	logger     *slog.Logger
}

func NewWorker(subscriber Subscriber, ratings RatingRecomputer, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{subscriber: subscriber, ratings: ratings, logger: logger}
}

// Run blocks until ctx is cancelled or the subscription fails.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.InfoContext(ctx, "worker subscribed", slog.String("channel", string(types.EventReviewCreated)))
	err := w.subscriber.Subscribe(ctx, string(types.EventReviewCreated), w.HandleReviewCreated)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// HandleReviewCreated is the mq.Handler for review.created. Malformed
// messages are acknowledged and logged so they are not redelivered forever.
func (w *Worker) HandleReviewCreated(ctx context.Context, msg mq.Message) error {
	event, err := Decode(msg.Data)
	if err != nil {
		w.logger.WarnContext(ctx, "discarding malformed event",
			slog.String("message_id", msg.ID),
			slog.Any("error", err),
		)
		return nil
	}
	if event.Type != types.EventReviewCreated || strings.TrimSpace(event.TutorID) == "" {
		w.logger.WarnContext(ctx, "discarding unexpected event",
			slog.String("message_id", msg.ID),
			slog.String("event", string(event.Type)),
		)
		return nil
	}

	rating, err := w.ratings.RecomputeTutorRating(ctx, event.TutorID)
	if err != nil {
		w.logger.ErrorContext(ctx, "rating recompute failed",
			slog.String("tutor_id", event.TutorID),
			slog.Any("error", err),
		)
		return err
	}
	w.logger.InfoContext(ctx, "rating recomputed",
		slog.String("tutor_id", rating.TutorID),
		slog.Float64("rating", rating.Rating),
		slog.Int("count", rating.Count),
	)
	return nil
}
