package types

// Stats is the dashboard projection for the caller. Student fields and tutor
// fields are mutually exclusive; Role tells which set is populated.
type Stats struct {
	Role          Role   `json:"role"`
	TotalSessions int    `json:"totalSessions"`
	Completed     int    `json:"completed"`
	TotalSpent    *int64 `json:"totalSpent,omitempty"`
	TotalEarned   *int64 `json:"totalEarned,omitempty"`
	TotalProfiles *int   `json:"totalProfiles,omitempty"`
	AvgRating     string `json:"avgRating,omitempty"`
	TotalReviews  *int   `json:"totalReviews,omitempty"`
}
