package types

import "time"

// Role is the fixed marketplace role chosen at registration.
type Role string

const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
)

// Valid reports whether the role is one of the supported marketplace roles.
func (r Role) Valid() bool {
	return r == RoleStudent || r == RoleTutor
}

// User represents an account in the marketplace.
// A user is either a student or a tutor for the whole lifetime of the account.
type User struct {
	// ID is the unique identifier of the user.
	ID string `json:"id" db:"id"`

	// Name is the user's display name shown on profiles, sessions and reviews.
	Name string `json:"name" db:"name"`

	// Email is the user's login address. It is unique across accounts.
	Email string `json:"email" db:"email"`

	// Role is either "student" or "tutor" and never changes.
	Role Role `json:"role" db:"role"`

	// PasswordHash stores the bcrypt hash of the user's password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// CreatedAt is the timestamp when the user account was created.
	CreatedAt time.Time `json:"createdAt" db:"created_at"`

	// UpdatedAt is the timestamp of the most recent update to the user account.
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Identity is the authenticated caller produced by the identity middleware.
type Identity struct {
	ID   string
	Role Role
	Name string
}
