package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/tutorhub/apiserver/internal/store"
	"github.com/tutorhub/apiserver/types"
)

// CreateReviewInput carries a student's review of a completed session.
type CreateReviewInput struct {
	SessionID string
	Rating    int
	Comment   string
}

// TutorRating is the aggregate written onto every profile of a tutor.
type TutorRating struct {
	TutorID string  `json:"tutorId"`
	Rating  float64 `json:"rating"`
	Count   int     `json:"ratingCount"`
}

// ReviewService is the review ledger. Each new review recomputes the tutor's
// rating from the full review set in the same write.
type ReviewService struct {
	reviews  ReviewRepository
	sessions SessionRepository
	profiles ProfileRepository
	users    UserRepository
	events   eventSink
	logger   *slog.Logger
}

func NewReviewService(
	reviews ReviewRepository,
	sessions SessionRepository,
	profiles ProfileRepository,
	users UserRepository,
	publisher EventPublisher,
	logger *slog.Logger,
) *ReviewService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewService{
		reviews:  reviews,
		sessions: sessions,
		profiles: profiles,
		users:    users,
		events:   newEventSink(publisher, logger),
		logger:   logger,
	}
}

func (s *ReviewService) Create(ctx context.Context, callerID string, input CreateReviewInput) (types.Review, error) {
	if input.Rating < 1 || input.Rating > 5 {
		return types.Review{}, validationError("rating must be an integer between 1 and 5")
	}

	session, err := s.sessions.Get(ctx, strings.TrimSpace(input.SessionID))
	if err != nil {
		return types.Review{}, notFoundOr(err, "session")
	}
	if session.StudentID != callerID {
		return types.Review{}, forbidden("only the student of this session can review it")
	}
	if !session.Completed {
		return types.Review{}, newError(ErrInvalidState, "session not completed")
	}

	if _, err := s.reviews.GetBySession(ctx, session.ID); err == nil {
		return types.Review{}, newError(ErrConflict, "session already reviewed")
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.Review{}, fmt.Errorf("check existing review: %w", err)
	}

	var rating TutorRating
	review, err := s.reviews.CreateRated(ctx, types.Review{
		ID:        uuid.NewString(),
		TutorID:   session.TutorID,
		StudentID: callerID,
		SessionID: session.ID,
		Rating:    input.Rating,
		Comment:   strings.TrimSpace(input.Comment),
	}, func(reviews []types.Review) (float64, int) {
		rating = tutorRating(session.TutorID, reviews)
		return rating.Rating, rating.Count
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.Review{}, newError(ErrConflict, "session already reviewed")
		}
		return types.Review{}, fmt.Errorf("create review: %w", err)
	}
	reviewsCreatedTotal.Inc()
	s.logger.InfoContext(ctx, "tutor rating updated",
		slog.String("tutor_id", rating.TutorID),
		slog.Float64("rating", rating.Rating),
		slog.Int("count", rating.Count),
	)

	s.events.emit(ctx, types.EventReviewCreated, session, review.ID)
	return review, nil
}

// RecomputeTutorRating rebuilds the tutor's rating from the full review set
// and stores it on every profile the tutor owns.
func (s *ReviewService) RecomputeTutorRating(ctx context.Context, tutorID string) (TutorRating, error) {
	reviews, err := s.reviews.ListByTutor(ctx, tutorID)
	if err != nil {
		return TutorRating{}, fmt.Errorf("list reviews: %w", err)
	}

	rating := tutorRating(tutorID, reviews)
	if err := s.profiles.SetTutorRating(ctx, tutorID, rating.Rating, rating.Count); err != nil {
		return TutorRating{}, fmt.Errorf("store rating: %w", err)
	}

	s.logger.InfoContext(ctx, "tutor rating updated",
		slog.String("tutor_id", tutorID),
		slog.Float64("rating", rating.Rating),
		slog.Int("count", rating.Count),
	)
	return rating, nil
}

func (s *ReviewService) ListByTutor(ctx context.Context, tutorID string) ([]types.ReviewDetail, error) {
	reviews, err := s.reviews.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, err
	}
	return enrichReviews(ctx, s.users, reviews)
}

func (s *ReviewService) List(ctx context.Context) ([]types.Review, error) {
	return s.reviews.List(ctx)
}

func enrichReviews(ctx context.Context, users UserRepository, reviews []types.Review) ([]types.ReviewDetail, error) {
	studentIDs := make([]string, 0, len(reviews))
	for _, review := range reviews {
		studentIDs = append(studentIDs, review.StudentID)
	}
	names, err := displayNames(ctx, users, uniqueIDs(studentIDs))
	if err != nil {
		return nil, fmt.Errorf("resolve student names: %w", err)
	}

	details := make([]types.ReviewDetail, 0, len(reviews))
	for _, review := range reviews {
		details = append(details, types.ReviewDetail{
			Review:      review,
			StudentName: nameOr(names, review.StudentID, placeholderAnonymous),
		})
	}
	return details, nil
}

// tutorRating is the mean of reviews rounded to two decimals, or zero when
// the tutor has none.
func tutorRating(tutorID string, reviews []types.Review) TutorRating {
	rating := TutorRating{TutorID: tutorID, Count: len(reviews)}
	if len(reviews) > 0 {
		rating.Rating = roundTo(meanRating(reviews), 2)
	}
	return rating
}

func meanRating(reviews []types.Review) float64 {
	if len(reviews) == 0 {
		return 0
	}
	sum := 0
	for _, review := range reviews {
		sum += review.Rating
	}
	return float64(sum) / float64(len(reviews))
}

func roundTo(value float64, decimals int) float64 {
	scale := math.Pow10(decimals)
	return math.Round(value*scale) / scale
}
