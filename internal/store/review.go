package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tutorhub/apiserver/types"
)

// ReviewRepository handles persistence for reviews. Reviews are insert-only.
type ReviewRepository struct {
	db *sql.DB
}

func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

const reviewColumns = `id, tutor_id, student_id, session_id, rating, comment, created_at`

func (r *ReviewRepository) GetBySession(ctx context.Context, sessionID string) (types.Review, error) {
	if !validID(sessionID) {
		return types.Review{}, ErrNotFound
	}
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE session_id = $1`
	return scanReview(r.db.QueryRowContext(ctx, query, sessionID))
}

func (r *ReviewRepository) ListByTutor(ctx context.Context, tutorID string) ([]types.Review, error) {
	if !validID(tutorID) {
		return []types.Review{}, nil
	}
	return listReviewsByTutor(ctx, r.db, tutorID)
}

func (r *ReviewRepository) List(ctx context.Context) ([]types.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews ORDER BY created_at, id`
	return queryReviews(ctx, r.db, query)
}

// CreateRated inserts the review and writes the aggregate produced by rate
// onto every profile of the tutor in one transaction. The tutor's profile
// rows are locked first so concurrent reviews of one tutor aggregate in turn.
func (r *ReviewRepository) CreateRated(ctx context.Context, review types.Review, rate types.RatingFunc) (types.Review, error) {
	review.CreatedAt = time.Now().UTC()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return types.Review{}, err
	}
	defer tx.Rollback()

	const lock = `SELECT id FROM tutor_profiles WHERE tutor_id = $1 FOR UPDATE`
	if _, err := tx.ExecContext(ctx, lock, review.TutorID); err != nil {
		return types.Review{}, translateError(err)
	}

	const insert = `
		INSERT INTO reviews (id, tutor_id, student_id, session_id, rating, comment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(
		ctx,
		insert,
		review.ID,
		review.TutorID,
		review.StudentID,
		review.SessionID,
		review.Rating,
		review.Comment,
		review.CreatedAt,
	); err != nil {
		return types.Review{}, translateError(err)
	}

	reviews, err := listReviewsByTutor(ctx, tx, review.TutorID)
	if err != nil {
		return types.Review{}, err
	}
	rating, count := rate(reviews)
	if err := setTutorRating(ctx, tx, review.TutorID, rating, count); err != nil {
		return types.Review{}, fmt.Errorf("store rating: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return types.Review{}, err
	}
	return review, nil
}

func listReviewsByTutor(ctx context.Context, db queryer, tutorID string) ([]types.Review, error) {
	query := `SELECT ` + reviewColumns + ` FROM reviews WHERE tutor_id = $1 ORDER BY created_at, id`
	return queryReviews(ctx, db, query, tutorID)
}

func queryReviews(ctx context.Context, db queryer, query string, args ...any) ([]types.Review, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	reviews := []types.Review{}
	for rows.Next() {
		review, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return reviews, nil
}

func scanReview(row rowScanner) (types.Review, error) {
	var review types.Review
	err := row.Scan(
		&review.ID,
		&review.TutorID,
		&review.StudentID,
		&review.SessionID,
		&review.Rating,
		&review.Comment,
		&review.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Review{}, ErrNotFound
		}
		return types.Review{}, translateError(err)
	}
	return review, nil
}
