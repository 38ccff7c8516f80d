package types

import (
	"strings"
	"time"
)

// TimeSlot is a coarse availability window advertised by a tutor.
type TimeSlot string

const (
	TimeSlotMorning   TimeSlot = "morning"
	TimeSlotAfternoon TimeSlot = "afternoon"
	TimeSlotEvening   TimeSlot = "evening"
	TimeSlotWeekend   TimeSlot = "weekend"
)

// Valid reports whether the slot is one of the known availability windows.
func (t TimeSlot) Valid() bool {
	switch t {
	case TimeSlotMorning, TimeSlotAfternoon, TimeSlotEvening, TimeSlotWeekend:
		return true
	default:
		return false
	}
}

// TutorProfile is a tutor's offering for a single subject.
// A tutor may own several profiles, but at most one per subject
// (compared case-insensitively).
type TutorProfile struct {
	// ID is the unique identifier of the profile.
	ID string `json:"id" db:"id"`

	// TutorID identifies the owning tutor.
	TutorID string `json:"tutorId" db:"tutor_id"`

	// Subject is the taught subject, e.g. "Math".
	Subject string `json:"subject" db:"subject"`

	// Bio is a free-form introduction written by the tutor.
	Bio string `json:"bio" db:"bio"`

	// Location is a free-form place or area where lessons happen.
	Location string `json:"location" db:"location"`

	// PricePerHour is the hourly price in thousands of the local currency ("k").
	PricePerHour int64 `json:"pricePerHour" db:"price_per_hour"`

	// AvailableTimes is the set of time slots the tutor offers.
	AvailableTimes []TimeSlot `json:"availableTimes" db:"available_times"`

	// Rating is the tutor's average review score rounded to two decimals.
	// It is shared by every profile of the same tutor.
	Rating float64 `json:"rating" db:"rating"`

	// RatingCount is the number of reviews the rating is computed from.
	RatingCount int `json:"ratingCount" db:"rating_count"`

	// CreatedAt is the timestamp at which the profile was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the profile.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// HasTimeSlot reports whether the profile advertises the given slot.
func (p TutorProfile) HasTimeSlot(slot TimeSlot) bool {
	for _, t := range p.AvailableTimes {
		if t == slot {
			return true
		}
	}
	return false
}

// SameSubject compares subjects the way the uniqueness rule does.
func SameSubject(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// ProfileFilter holds the optional, AND-combined search criteria for profiles.
// Zero values mean "no constraint".
type ProfileFilter struct {
	Subject   string
	Location  string
	MinPrice  *int64
	MaxPrice  *int64
	TimeSlot  TimeSlot
	MinRating *float64
}

// Matches applies the filter to a single profile.
func (f ProfileFilter) Matches(p TutorProfile) bool {
	if f.Subject != "" && !containsFold(p.Subject, f.Subject) {
		return false
	}
	if f.Location != "" && !containsFold(p.Location, f.Location) {
		return false
	}
	if f.MinPrice != nil && p.PricePerHour < *f.MinPrice {
		return false
	}
	if f.MaxPrice != nil && p.PricePerHour > *f.MaxPrice {
		return false
	}
	if f.TimeSlot != "" && !p.HasTimeSlot(f.TimeSlot) {
		return false
	}
	if f.MinRating != nil && p.Rating < *f.MinRating {
		return false
	}
	return true
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// ProfileListing is a profile joined with its tutor's display name.
type ProfileListing struct {
	TutorProfile
	TutorName string `json:"tutorName"`
}

// Pagination describes the page returned by a list query.
type Pagination struct {
	Total       int  `json:"total"`
	TotalPages  int  `json:"totalPages"`
	CurrentPage int  `json:"currentPage"`
	Limit       int  `json:"limit"`
	HasNext     bool `json:"hasNext"`
	HasPrev     bool `json:"hasPrev"`
}

// ProfilePage is one page of profile search results.
type ProfilePage struct {
	Tutors     []ProfileListing `json:"tutors"`
	Pagination Pagination       `json:"pagination"`
}

// ProfileDetail is a profile with its tutor's contact data and every review of the tutor.
type ProfileDetail struct {
	TutorProfile
	TutorName  string         `json:"tutorName"`
	TutorEmail string         `json:"tutorEmail"`
	Reviews    []ReviewDetail `json:"reviews"`
}
