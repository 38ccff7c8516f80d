package store

import (
	"context"
	"database/sql"
)

// Repositories groups the Postgres-backed collections.
type Repositories struct {
	Users    *UserRepository
	Profiles *ProfileRepository
	Sessions *SessionRepository
	Reviews  *ReviewRepository
}

func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Users:    NewUserRepository(db),
		Profiles: NewProfileRepository(db),
		Sessions: NewSessionRepository(db),
		Reviews:  NewReviewRepository(db),
	}
}

// execer and queryer are satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}
