package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/tutorhub/apiserver/types"
)

// ProfileRepository handles persistence for tutor profiles.
type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `id, tutor_id, subject, bio, location, price_per_hour, available_times, rating, rating_count, created_at, updated_at`

func (r *ProfileRepository) Count(ctx context.Context, filter types.ProfileFilter) (int, error) {
	where, args := profileWhere(filter)
	query := `SELECT COUNT(1) FROM tutor_profiles` + where
	var total int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *ProfileRepository) Search(ctx context.Context, filter types.ProfileFilter, offset, limit int) ([]types.TutorProfile, error) {
	if offset < 0 {
		offset = 0
	}
	if limit < 1 {
		limit = 20
	}

	where, args := profileWhere(filter)
	query := fmt.Sprintf(
		`SELECT %s FROM tutor_profiles%s ORDER BY created_at, id OFFSET $%d LIMIT $%d`,
		profileColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, offset, limit)
	return r.queryProfiles(ctx, query, args...)
}

func (r *ProfileRepository) Get(ctx context.Context, id string) (types.TutorProfile, error) {
	if !validID(id) {
		return types.TutorProfile{}, ErrNotFound
	}
	query := `SELECT ` + profileColumns + ` FROM tutor_profiles WHERE id = $1`
	return scanProfile(r.db.QueryRowContext(ctx, query, id))
}

// GetByIDs returns the profiles that exist among ids, keyed by id.
func (r *ProfileRepository) GetByIDs(ctx context.Context, ids []string) (map[string]types.TutorProfile, error) {
	profiles := make(map[string]types.TutorProfile, len(ids))
	if len(ids) == 0 {
		return profiles, nil
	}
	query := `SELECT ` + profileColumns + ` FROM tutor_profiles WHERE id::text = ANY($1)`
	list, err := r.queryProfiles(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	for _, profile := range list {
		profiles[profile.ID] = profile
	}
	return profiles, nil
}

func (r *ProfileRepository) ListByTutor(ctx context.Context, tutorID string) ([]types.TutorProfile, error) {
	if !validID(tutorID) {
		return []types.TutorProfile{}, nil
	}
	query := `SELECT ` + profileColumns + ` FROM tutor_profiles WHERE tutor_id = $1 ORDER BY created_at, id`
	return r.queryProfiles(ctx, query, tutorID)
}

func (r *ProfileRepository) Create(ctx context.Context, profile types.TutorProfile) (types.TutorProfile, error) {
	now := time.Now().UTC()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	timesJSON, err := json.Marshal(nonNilSlots(profile.AvailableTimes))
	if err != nil {
		return types.TutorProfile{}, err
	}

	const query = `
		INSERT INTO tutor_profiles (id, tutor_id, subject, bio, location, price_per_hour, available_times, rating, rating_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		profile.ID,
		profile.TutorID,
		profile.Subject,
		profile.Bio,
		profile.Location,
		profile.PricePerHour,
		string(timesJSON),
		profile.Rating,
		profile.RatingCount,
		profile.CreatedAt,
		profile.UpdatedAt,
	); err != nil {
		return types.TutorProfile{}, translateError(err)
	}
	return profile, nil
}

// Update overwrites the owner-editable fields of a profile. Rating columns are
// only written through SetTutorRating.
func (r *ProfileRepository) Update(ctx context.Context, profile types.TutorProfile) (types.TutorProfile, error) {
	if !validID(profile.ID) {
		return types.TutorProfile{}, ErrNotFound
	}
	profile.UpdatedAt = time.Now().UTC()

	timesJSON, err := json.Marshal(nonNilSlots(profile.AvailableTimes))
	if err != nil {
		return types.TutorProfile{}, err
	}

	const query = `
		UPDATE tutor_profiles
		SET subject = $1,
			bio = $2,
			location = $3,
			price_per_hour = $4,
			available_times = $5,
			updated_at = $6
		WHERE id = $7`
	result, err := r.db.ExecContext(
		ctx,
		query,
		profile.Subject,
		profile.Bio,
		profile.Location,
		profile.PricePerHour,
		string(timesJSON),
		profile.UpdatedAt,
		profile.ID,
	)
	if err != nil {
		return types.TutorProfile{}, translateError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.TutorProfile{}, err
	}
	if affected == 0 {
		return types.TutorProfile{}, ErrNotFound
	}
	return profile, nil
}

// SetTutorRating writes the aggregate rating onto every profile owned by the tutor.
func (r *ProfileRepository) SetTutorRating(ctx context.Context, tutorID string, rating float64, count int) error {
	if !validID(tutorID) {
		return nil
	}
	return setTutorRating(ctx, r.db, tutorID, rating, count)
}

func setTutorRating(ctx context.Context, db execer, tutorID string, rating float64, count int) error {
	const query = `
		UPDATE tutor_profiles
		SET rating = $1,
			rating_count = $2,
			updated_at = $3
		WHERE tutor_id = $4`
	_, err := db.ExecContext(ctx, query, rating, count, time.Now().UTC(), tutorID)
	return translateError(err)
}

func (r *ProfileRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	const query = `DELETE FROM tutor_profiles WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return translateError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProfileRepository) queryProfiles(ctx context.Context, query string, args ...any) ([]types.TutorProfile, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateError(err)
	}
	defer rows.Close()

	profiles := []types.TutorProfile{}
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, profile)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return profiles, nil
}

func profileWhere(filter types.ProfileFilter) (string, []any) {
	var clauses []string
	var args []any
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.Subject != "" {
		add(`POSITION(LOWER($%d) IN LOWER(subject)) > 0`, filter.Subject)
	}
	if filter.Location != "" {
		add(`POSITION(LOWER($%d) IN LOWER(location)) > 0`, filter.Location)
	}
	if filter.MinPrice != nil {
		add(`price_per_hour >= $%d`, *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		add(`price_per_hour <= $%d`, *filter.MaxPrice)
	}
	if filter.TimeSlot != "" {
		add(`available_times @> jsonb_build_array($%d::text)`, string(filter.TimeSlot))
	}
	if filter.MinRating != nil {
		add(`rating >= $%d`, *filter.MinRating)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanProfile(row rowScanner) (types.TutorProfile, error) {
	var profile types.TutorProfile
	var timesJSON []byte
	err := row.Scan(
		&profile.ID,
		&profile.TutorID,
		&profile.Subject,
		&profile.Bio,
		&profile.Location,
		&profile.PricePerHour,
		&timesJSON,
		&profile.Rating,
		&profile.RatingCount,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.TutorProfile{}, ErrNotFound
		}
		return types.TutorProfile{}, translateError(err)
	}

	if err := json.Unmarshal(timesJSON, &profile.AvailableTimes); err != nil {
		return types.TutorProfile{}, fmt.Errorf("decode available_times of profile %s: %w", profile.ID, err)
	}
	profile.AvailableTimes = nonNilSlots(profile.AvailableTimes)
	return profile, nil
}

func nonNilSlots(slots []types.TimeSlot) []types.TimeSlot {
	if slots == nil {
		return []types.TimeSlot{}
	}
	return slots
}
