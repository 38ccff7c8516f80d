package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/tutorhub/apiserver/internal/store"
	"github.com/tutorhub/apiserver/types"
)

// CreateProfileInput carries the fields of a new tutor profile.
type CreateProfileInput struct {
	Subject        string
	Bio            string
	Location       string
	PricePerHour   int64
	AvailableTimes []types.TimeSlot
}

// PatchProfileInput lists the owner-editable fields. Nil fields are retained.
type PatchProfileInput struct {
	Subject        *string
	Bio            *string
	Location       *string
	PricePerHour   *int64
	AvailableTimes []types.TimeSlot
}

// BlockingSessions is the payload of the conflict returned when a profile
// still has sessions that are not completed.
type BlockingSessions struct {
	Count int `json:"blockingSessions"`
}

// ProfileService owns tutor profiles: creation with per-subject uniqueness,
// search, detail, owner patches and guarded deletion.
type ProfileService struct {
	profiles ProfileRepository
	sessions SessionRepository
	reviews  ReviewRepository
	users    UserRepository
	logger   *slog.Logger
}

func NewProfileService(
	profiles ProfileRepository,
	sessions SessionRepository,
	reviews ReviewRepository,
	users UserRepository,
	logger *slog.Logger,
) *ProfileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{
		profiles: profiles,
		sessions: sessions,
		reviews:  reviews,
		users:    users,
		logger:   logger,
	}
}

func (s *ProfileService) Create(ctx context.Context, caller types.Identity, input CreateProfileInput) (types.TutorProfile, error) {
	if caller.Role != types.RoleTutor {
		return types.TutorProfile{}, forbidden("only tutors can create profiles")
	}

	input.Subject = strings.TrimSpace(input.Subject)
	if input.Subject == "" {
		return types.TutorProfile{}, validationError("subject is required")
	}
	if input.PricePerHour <= 0 {
		return types.TutorProfile{}, validationError("pricePerHour must be a positive number")
	}
	if err := validateTimeSlots(input.AvailableTimes); err != nil {
		return types.TutorProfile{}, err
	}

	existing, err := s.findBySubject(ctx, caller.ID, input.Subject, "")
	if err != nil {
		return types.TutorProfile{}, err
	}
	if existing != nil {
		return types.TutorProfile{}, newError(ErrConflict, "you already have a profile for this subject").WithDetails(*existing)
	}

	// A tutor's rating is shared by all of their profiles, so a new profile
	// starts from the existing aggregate (zero for a tutor without reviews).
	reviews, err := s.reviews.ListByTutor(ctx, caller.ID)
	if err != nil {
		return types.TutorProfile{}, fmt.Errorf("load tutor reviews: %w", err)
	}
	rating := tutorRating(caller.ID, reviews)

	profile, err := s.profiles.Create(ctx, types.TutorProfile{
		ID:             uuid.NewString(),
		TutorID:        caller.ID,
		Subject:        input.Subject,
		Bio:            strings.TrimSpace(input.Bio),
		Location:       strings.TrimSpace(input.Location),
		PricePerHour:   input.PricePerHour,
		AvailableTimes: dedupeSlots(input.AvailableTimes),
		Rating:         rating.Rating,
		RatingCount:    rating.Count,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.TutorProfile{}, newError(ErrConflict, "you already have a profile for this subject")
		}
		return types.TutorProfile{}, fmt.Errorf("create profile: %w", err)
	}

	profilesCreatedTotal.Inc()
	s.logger.InfoContext(ctx, "profile created",
		slog.String("profile_id", profile.ID),
		slog.String("tutor_id", profile.TutorID),
		slog.String("subject", profile.Subject),
	)
	return profile, nil
}

// List returns one page of profiles matching filter, joined with tutor names.
func (s *ProfileService) List(ctx context.Context, filter types.ProfileFilter, page, limit int) (types.ProfilePage, error) {
	total, err := s.profiles.Count(ctx, filter)
	if err != nil {
		return types.ProfilePage{}, fmt.Errorf("count profiles: %w", err)
	}

	pagination, offset := paginate(total, page, limit)
	profiles, err := s.profiles.Search(ctx, filter, offset, pagination.Limit)
	if err != nil {
		return types.ProfilePage{}, fmt.Errorf("search profiles: %w", err)
	}

	tutorIDs := make([]string, 0, len(profiles))
	for _, p := range profiles {
		tutorIDs = append(tutorIDs, p.TutorID)
	}
	names, err := displayNames(ctx, s.users, uniqueIDs(tutorIDs))
	if err != nil {
		return types.ProfilePage{}, fmt.Errorf("resolve tutor names: %w", err)
	}

	listings := make([]types.ProfileListing, 0, len(profiles))
	for _, p := range profiles {
		listings = append(listings, types.ProfileListing{
			TutorProfile: p,
			TutorName:    nameOr(names, p.TutorID, placeholderTutor),
		})
	}
	return types.ProfilePage{Tutors: listings, Pagination: pagination}, nil
}

func (s *ProfileService) ListMine(ctx context.Context, tutorID string) ([]types.TutorProfile, error) {
	return s.profiles.ListByTutor(ctx, tutorID)
}

// Detail returns the profile with its tutor's name and email and every review of the tutor.
func (s *ProfileService) Detail(ctx context.Context, profileID string) (types.ProfileDetail, error) {
	profile, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return types.ProfileDetail{}, notFoundOr(err, "profile")
	}

	detail := types.ProfileDetail{
		TutorProfile: profile,
		TutorName:    placeholderUnknown,
	}
	tutor, err := s.users.GetByID(ctx, profile.TutorID)
	switch {
	case err == nil:
		detail.TutorName = tutor.Name
		detail.TutorEmail = tutor.Email
	case !errors.Is(err, store.ErrNotFound):
		return types.ProfileDetail{}, fmt.Errorf("load tutor: %w", err)
	}

	reviews, err := s.reviews.ListByTutor(ctx, profile.TutorID)
	if err != nil {
		return types.ProfileDetail{}, fmt.Errorf("list reviews: %w", err)
	}
	detail.Reviews, err = enrichReviews(ctx, s.users, reviews)
	if err != nil {
		return types.ProfileDetail{}, err
	}
	return detail, nil
}

// Patch applies an owner-only partial update.
func (s *ProfileService) Patch(ctx context.Context, callerID, profileID string, input PatchProfileInput) (types.TutorProfile, error) {
	profile, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return types.TutorProfile{}, notFoundOr(err, "profile")
	}
	if profile.TutorID != callerID {
		return types.TutorProfile{}, forbidden("not the owner of this profile")
	}

	if input.Subject != nil {
		subject := strings.TrimSpace(*input.Subject)
		if subject == "" {
			return types.TutorProfile{}, validationError("subject is required")
		}
		if !types.SameSubject(subject, profile.Subject) {
			existing, err := s.findBySubject(ctx, callerID, subject, profile.ID)
			if err != nil {
				return types.TutorProfile{}, err
			}
			if existing != nil {
				return types.TutorProfile{}, newError(ErrConflict, "you already have a profile for this subject").WithDetails(*existing)
			}
		}
		profile.Subject = subject
	}
	if input.Bio != nil {
		profile.Bio = *input.Bio
	}
	if input.Location != nil {
		profile.Location = *input.Location
	}
	if input.PricePerHour != nil {
		if *input.PricePerHour <= 0 {
			return types.TutorProfile{}, validationError("pricePerHour must be a positive number")
		}
		profile.PricePerHour = *input.PricePerHour
	}
	if input.AvailableTimes != nil {
		if err := validateTimeSlots(input.AvailableTimes); err != nil {
			return types.TutorProfile{}, err
		}
		profile.AvailableTimes = dedupeSlots(input.AvailableTimes)
	}

	updated, err := s.profiles.Update(ctx, profile)
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.TutorProfile{}, newError(ErrConflict, "you already have a profile for this subject")
		}
		return types.TutorProfile{}, notFoundOr(err, "profile")
	}
	return updated, nil
}

// Delete removes a profile owned by callerID once none of its sessions are pending completion.
func (s *ProfileService) Delete(ctx context.Context, callerID, profileID string) (types.TutorProfile, error) {
	profile, err := s.profiles.Get(ctx, profileID)
	if err != nil {
		return types.TutorProfile{}, notFoundOr(err, "profile")
	}
	if profile.TutorID != callerID {
		return types.TutorProfile{}, forbidden("you are not allowed to delete this profile")
	}

	open, err := s.sessions.CountOpenByProfile(ctx, profileID)
	if err != nil {
		return types.TutorProfile{}, fmt.Errorf("count open sessions: %w", err)
	}
	if open > 0 {
		return types.TutorProfile{}, newError(ErrConflict,
			"cannot delete profile: %d session(s) not completed yet", open,
		).WithDetails(BlockingSessions{Count: open})
	}

	if err := s.profiles.Delete(ctx, profileID); err != nil {
		return types.TutorProfile{}, notFoundOr(err, "profile")
	}

	s.logger.InfoContext(ctx, "profile deleted",
		slog.String("profile_id", profile.ID),
		slog.String("tutor_id", profile.TutorID),
	)
	return profile, nil
}

// findBySubject returns the tutor's profile for subject, ignoring excludeID.
func (s *ProfileService) findBySubject(ctx context.Context, tutorID, subject, excludeID string) (*types.TutorProfile, error) {
	owned, err := s.profiles.ListByTutor(ctx, tutorID)
	if err != nil {
		return nil, fmt.Errorf("list tutor profiles: %w", err)
	}
	for i := range owned {
		if owned[i].ID != excludeID && types.SameSubject(owned[i].Subject, subject) {
			return &owned[i], nil
		}
	}
	return nil, nil
}

func validateTimeSlots(slots []types.TimeSlot) error {
	for _, slot := range slots {
		if !slot.Valid() {
			return validationError("unknown time slot %q", slot)
		}
	}
	return nil
}

func dedupeSlots(slots []types.TimeSlot) []types.TimeSlot {
	out := make([]types.TimeSlot, 0, len(slots))
	for _, slot := range slots {
		if !slices.Contains(out, slot) {
			out = append(out, slot)
		}
	}
	return out
}
