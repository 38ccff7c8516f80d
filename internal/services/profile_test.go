package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tutorhub/apiserver/types"
)

func TestProfileService_CreateEnforcesSubjectUniqueness(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tutor := f.register(t, "tina", types.RoleTutor)
	other := f.register(t, "tom", types.RoleTutor)

	first := f.profile(t, tutor, "Math", 100)

	_, err := f.profiles.Create(ctx, tutor, CreateProfileInput{Subject: "  mAtH ", PricePerHour: 50})
	require.ErrorIs(t, err, ErrConflict)
	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	existing, ok := svcErr.Details.(types.TutorProfile)
	require.True(t, ok)
	assert.Equal(t, first.ID, existing.ID)

	// Another tutor may teach the same subject.
	f.profile(t, other, "math", 90)
	// The same tutor may teach another subject.
	f.profile(t, tutor, "Physics", 120)

	owned, err := f.profiles.ListMine(ctx, tutor.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 2)
}

func TestProfileService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tutor := f.register(t, "tina", types.RoleTutor)
	student := f.register(t, "sam", types.RoleStudent)

	tests := []struct {
		name   string
		caller types.Identity
		input  CreateProfileInput
		kind   error
	}{
		{"student caller", student, CreateProfileInput{Subject: "Math", PricePerHour: 1}, ErrForbidden},
		{"blank subject", tutor, CreateProfileInput{Subject: "  ", PricePerHour: 1}, ErrValidation},
		{"zero price", tutor, CreateProfileInput{Subject: "Math"}, ErrValidation},
		{"negative price", tutor, CreateProfileInput{Subject: "Math", PricePerHour: -5}, ErrValidation},
		{"unknown slot", tutor, CreateProfileInput{Subject: "Math", PricePerHour: 1, AvailableTimes: []types.TimeSlot{"midnight"}}, ErrValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.profiles.Create(ctx, tt.caller, tt.input)
			assert.ErrorIs(t, err, tt.kind)
		})
	}
}

func TestProfileService_ListPaginatesAndFilters(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < 13; i++ {
		tutor := f.register(t, fmt.Sprintf("tutor%02d", i), types.RoleTutor)
		_, err := f.profiles.Create(ctx, tutor, CreateProfileInput{
			Subject:        "Math",
			Location:       "Hanoi",
			PricePerHour:   int64(100 + i),
			AvailableTimes: []types.TimeSlot{types.TimeSlotMorning},
		})
		require.NoError(t, err)
	}
	evening := f.register(t, "evening", types.RoleTutor)
	_, err := f.profiles.Create(ctx, evening, CreateProfileInput{
		Subject:        "English",
		Location:       "Da Nang",
		PricePerHour:   300,
		AvailableTimes: []types.TimeSlot{types.TimeSlotEvening},
	})
	require.NoError(t, err)

	math := types.ProfileFilter{Subject: "mat"}

	page, err := f.profiles.List(ctx, math, 1, 6)
	require.NoError(t, err)
	assert.Equal(t, 13, page.Pagination.Total)
	assert.Equal(t, 3, page.Pagination.TotalPages)
	assert.Len(t, page.Tutors, 6)
	assert.Equal(t, "tutor00", page.Tutors[0].TutorName)

	page, err = f.profiles.List(ctx, math, 0, 6)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Pagination.CurrentPage)

	page, err = f.profiles.List(ctx, math, 99, 6)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Pagination.CurrentPage)
	assert.Len(t, page.Tutors, 1)
	assert.False(t, page.Pagination.HasNext)

	minPrice, maxPrice := int64(105), int64(107)
	page, err = f.profiles.List(ctx, types.ProfileFilter{MinPrice: &minPrice, MaxPrice: &maxPrice}, 1, 6)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Pagination.Total)

	page, err = f.profiles.List(ctx, types.ProfileFilter{TimeSlot: types.TimeSlotEvening, Location: "nang"}, 1, 6)
	require.NoError(t, err)
	require.Len(t, page.Tutors, 1)
	assert.Equal(t, "English", page.Tutors[0].Subject)

	minRating := 4.0
	page, err = f.profiles.List(ctx, types.ProfileFilter{MinRating: &minRating}, 1, 6)
	require.NoError(t, err)
	assert.Zero(t, page.Pagination.Total)
	assert.Empty(t, page.Tutors)
}

func TestProfileService_DetailIncludesReviews(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tutor := f.register(t, "tina", types.RoleTutor)
	student := f.register(t, "sam", types.RoleStudent)
	profile := f.profile(t, tutor, "Math", 100)

	session := f.deliver(t, student, profile)
	_, err := f.reviews.Create(ctx, student.ID, CreateReviewInput{SessionID: session.ID, Rating: 4, Comment: "good"})
	require.NoError(t, err)

	detail, err := f.profiles.Detail(ctx, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, "tina", detail.TutorName)
	assert.Equal(t, "tina@example.com", detail.TutorEmail)
	require.Len(t, detail.Reviews, 1)
	assert.Equal(t, "sam", detail.Reviews[0].StudentName)
	assert.Equal(t, 4.0, detail.Rating)

	_, err = f.profiles.Detail(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfileService_Patch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tutor := f.register(t, "tina", types.RoleTutor)
	intruder := f.register(t, "ivan", types.RoleTutor)
	math := f.profile(t, tutor, "Math", 100)
	f.profile(t, tutor, "Physics", 100)

	price := int64(150)
	bio := "ten years of olympiad coaching"
	updated, err := f.profiles.Patch(ctx, tutor.ID, math.ID, PatchProfileInput{
		PricePerHour:   &price,
		Bio:            &bio,
		AvailableTimes: []types.TimeSlot{types.TimeSlotWeekend, types.TimeSlotWeekend},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(150), updated.PricePerHour)
	assert.Equal(t, bio, updated.Bio)
	assert.Equal(t, []types.TimeSlot{types.TimeSlotWeekend}, updated.AvailableTimes)
	assert.Equal(t, "Math", updated.Subject)

	physics := "physics"
	_, err = f.profiles.Patch(ctx, tutor.ID, math.ID, PatchProfileInput{Subject: &physics})
	assert.ErrorIs(t, err, ErrConflict)

	sameSubject := "MATH"
	updated, err = f.profiles.Patch(ctx, tutor.ID, math.ID, PatchProfileInput{Subject: &sameSubject})
	require.NoError(t, err)
	assert.Equal(t, "MATH", updated.Subject)

	_, err = f.profiles.Patch(ctx, intruder.ID, math.ID, PatchProfileInput{Bio: &bio})
	assert.ErrorIs(t, err, ErrForbidden)

	zero := int64(0)
	_, err = f.profiles.Patch(ctx, tutor.ID, math.ID, PatchProfileInput{PricePerHour: &zero})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.profiles.Patch(ctx, tutor.ID, "missing", PatchProfileInput{Bio: &bio})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfileService_DeleteGuardsOpenSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tutor := f.register(t, "tina", types.RoleTutor)
	intruder := f.register(t, "ivan", types.RoleTutor)
	student := f.register(t, "sam", types.RoleStudent)
	profile := f.profile(t, tutor, "Math", 100)

	_, err := f.profiles.Delete(ctx, tutor.ID, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.profiles.Delete(ctx, intruder.ID, profile.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	pending := f.book(t, student, profile, 1)
	f.book(t, student, profile, 2)

	_, err = f.profiles.Delete(ctx, tutor.ID, profile.ID)
	require.ErrorIs(t, err, ErrConflict)
	var svcErr *Error
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, BlockingSessions{Count: 2}, svcErr.Details)

	// Paying does not unblock deletion; only completion does.
	_, err = f.sessions.Pay(ctx, student.ID, pending.ID)
	require.NoError(t, err)
	_, err = f.sessions.Complete(ctx, tutor.ID, pending.ID)
	require.NoError(t, err)

	_, err = f.profiles.Delete(ctx, tutor.ID, profile.ID)
	require.ErrorIs(t, err, ErrConflict)
	require.ErrorAs(t, err, &svcErr)
	assert.Equal(t, BlockingSessions{Count: 1}, svcErr.Details)
}

func TestProfileService_DeleteWithOnlyCompletedSessions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tutor := f.register(t, "tina", types.RoleTutor)
	student := f.register(t, "sam", types.RoleStudent)
	profile := f.profile(t, tutor, "Math", 100)
	f.deliver(t, student, profile)

	deleted, err := f.profiles.Delete(ctx, tutor.ID, profile.ID)
	require.NoError(t, err)
	assert.Equal(t, profile.ID, deleted.ID)

	_, err = f.profiles.Detail(ctx, profile.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfileService_CreateInheritsTutorRating(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	tutor := f.register(t, "tina", types.RoleTutor)
	student := f.register(t, "sam", types.RoleStudent)
	physics := f.profile(t, tutor, "Physics", 100)

	for _, rating := range []int{5, 3} {
		session := f.deliver(t, student, physics)
		_, err := f.reviews.Create(ctx, student.ID, CreateReviewInput{SessionID: session.ID, Rating: rating})
		require.NoError(t, err)
	}

	chemistry := f.profile(t, tutor, "Chemistry", 90)
	assert.Equal(t, 4.0, chemistry.Rating)
	assert.Equal(t, 2, chemistry.RatingCount)

	newcomer := f.register(t, "nora", types.RoleTutor)
	fresh := f.profile(t, newcomer, "Chemistry", 90)
	assert.Zero(t, fresh.Rating)
	assert.Zero(t, fresh.RatingCount)
}
