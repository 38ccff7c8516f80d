package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/tutorhub/apiserver/types"
)

// SessionRepository handles persistence for booked sessions.
type SessionRepository struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

const sessionColumns = `id, tutor_id, student_id, profile_id, date_time, duration, price, status, paid, completed, created_at, updated_at`

func (r *SessionRepository) Get(ctx context.Context, id string) (types.Session, error) {
	if !validID(id) {
		return types.Session{}, ErrNotFound
	}
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`
	return scanSession(r.db.QueryRowContext(ctx, query, id))
}

// ListByParticipant returns sessions where the user is the student or the tutor.
func (r *SessionRepository) ListByParticipant(ctx context.Context, userID string) ([]types.Session, error) {
	if !validID(userID) {
		return []types.Session{}, nil
	}
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE student_id = $1 OR tutor_id = $1 ORDER BY created_at, id`
	return r.querySessions(ctx, query, userID)
}

func (r *SessionRepository) ListByStudent(ctx context.Context, studentID string) ([]types.Session, error) {
	if !validID(studentID) {
		return []types.Session{}, nil
	}
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE student_id = $1 ORDER BY created_at, id`
	return r.querySessions(ctx, query, studentID)
}

func (r *SessionRepository) ListByTutor(ctx context.Context, tutorID string) ([]types.Session, error) {
	if !validID(tutorID) {
		return []types.Session{}, nil
	}
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE tutor_id = $1 ORDER BY created_at, id`
	return r.querySessions(ctx, query, tutorID)
}

func (r *SessionRepository) List(ctx context.Context) ([]types.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY created_at, id`
	return r.querySessions(ctx, query)
}

// CountOpenByProfile counts sessions booked against the profile that are not completed yet.
func (r *SessionRepository) CountOpenByProfile(ctx context.Context, profileID string) (int, error) {
	if !validID(profileID) {
		return 0, nil
	}
	const query = `SELECT COUNT(1) FROM sessions WHERE profile_id = $1 AND completed = FALSE`
	var count int
	if err := r.db.QueryRowContext(ctx, query, profileID).Scan(&count); err != nil {
		return 0, translateError(err)
	}
	return count, nil
}

func (r *SessionRepository) Create(ctx context.Context, session types.Session) (types.Session, error) {
	now := time.Now().UTC()
	session.CreatedAt = now
	session.UpdatedAt = now

	const query = `
		INSERT INTO sessions (id, tutor_id, student_id, profile_id, date_time, duration, price, status, paid, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		session.ID,
		session.TutorID,
		session.StudentID,
		session.ProfileID,
		session.DateTime,
		session.Duration,
		session.Price,
		session.Status,
		session.Paid,
		session.Completed,
		session.CreatedAt,
		session.UpdatedAt,
	); err != nil {
		return types.Session{}, translateError(err)
	}
	return session, nil
}

// UpdateStatus persists the status flags of a session. Price and participants never change.
func (r *SessionRepository) UpdateStatus(ctx context.Context, session types.Session) (types.Session, error) {
	if !validID(session.ID) {
		return types.Session{}, ErrNotFound
	}
	session.UpdatedAt = time.Now().UTC()

	const query = `
		UPDATE sessions
		SET status = $1,
			paid = $2,
			completed = $3,
			updated_at = $4
		WHERE id = $5`
	result, err := r.db.ExecContext(
		ctx,
		query,
		session.Status,
		session.Paid,
		session.Completed,
		session.UpdatedAt,
		session.ID,
	)
	if err != nil {
		return types.Session{}, translateError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Session{}, err
	}
	if affected == 0 {
		return types.Session{}, ErrNotFound
	}
	return session, nil
}

func (r *SessionRepository) querySessions(ctx context.Context, query string, args ...any) ([]types.Session, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	sessions := []types.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sessions, nil
}

func scanSession(row rowScanner) (types.Session, error) {
	var session types.Session
	err := row.Scan(
		&session.ID,
		&session.TutorID,
		&session.StudentID,
		&session.ProfileID,
		&session.DateTime,
		&session.Duration,
		&session.Price,
		&session.Status,
		&session.Paid,
		&session.Completed,
		&session.CreatedAt,
		&session.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Session{}, ErrNotFound
		}
		return types.Session{}, translateError(err)
	}
	return session, nil
}
