package services

import (
	"context"
	"fmt"
	"strconv"

	"github.com/tutorhub/apiserver/types"
)

// StatsService computes the dashboard projection fresh on every call.
type StatsService struct {
	sessions SessionRepository
	profiles ProfileRepository
	reviews  ReviewRepository
}

func NewStatsService(sessions SessionRepository, profiles ProfileRepository, reviews ReviewRepository) *StatsService {
	return &StatsService{sessions: sessions, profiles: profiles, reviews: reviews}
}

func (s *StatsService) ForCaller(ctx context.Context, caller types.Identity) (types.Stats, error) {
	if caller.Role == types.RoleStudent {
		return s.studentStats(ctx, caller.ID)
	}
	return s.tutorStats(ctx, caller.ID)
}

func (s *StatsService) studentStats(ctx context.Context, studentID string) (types.Stats, error) {
	sessions, err := s.sessions.ListByStudent(ctx, studentID)
	if err != nil {
		return types.Stats{}, fmt.Errorf("list sessions: %w", err)
	}
	completed, paidTotal := sessionTotals(sessions)
	return types.Stats{
		Role:          types.RoleStudent,
		TotalSessions: len(sessions),
		Completed:     completed,
		TotalSpent:    &paidTotal,
	}, nil
}

func (s *StatsService) tutorStats(ctx context.Context, tutorID string) (types.Stats, error) {
	sessions, err := s.sessions.ListByTutor(ctx, tutorID)
	if err != nil {
		return types.Stats{}, fmt.Errorf("list sessions: %w", err)
	}
	profiles, err := s.profiles.ListByTutor(ctx, tutorID)
	if err != nil {
		return types.Stats{}, fmt.Errorf("list profiles: %w", err)
	}
	reviews, err := s.reviews.ListByTutor(ctx, tutorID)
	if err != nil {
		return types.Stats{}, fmt.Errorf("list reviews: %w", err)
	}

	completed, paidTotal := sessionTotals(sessions)
	totalProfiles := len(profiles)
	totalReviews := len(reviews)
	avg := "0"
	if totalReviews > 0 {
		avg = strconv.FormatFloat(roundTo(meanRating(reviews), 1), 'f', 1, 64)
	}

	return types.Stats{
		Role:          types.RoleTutor,
		TotalSessions: len(sessions),
		Completed:     completed,
		TotalEarned:   &paidTotal,
		TotalProfiles: &totalProfiles,
		AvgRating:     avg,
		TotalReviews:  &totalReviews,
	}, nil
}

// sessionTotals counts completed sessions and sums the price of paid ones.
func sessionTotals(sessions []types.Session) (completed int, paidTotal int64) {
	for _, session := range sessions {
		if session.Completed {
			completed++
		}
		if session.Paid {
			paidTotal += session.Price
		}
	}
	return completed, paidTotal
}
