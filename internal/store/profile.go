package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bluecarbon-mrv/portal/types"
)

// ProfileRepository handles persistence for profiles.
type ProfileRepository struct {
	db DBTX
}

func NewProfileRepository(db DBTX) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (types.Profile, error) {
	const query = `
		SELECT user_id, role, full_name, created_at, updated_at
		FROM profiles
		WHERE user_id = $1`
	var profile types.Profile
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&profile.UserID,
		&profile.Role,
		&profile.FullName,
		&profile.CreatedAt,
		&profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Profile{}, ErrNotFound
		}
		return types.Profile{}, err
	}
	return profile, nil
}

// Create provisions a profile. Profiles are created out-of-band, by the
// account administration command, never by the sign-in flow.
func (r *ProfileRepository) Create(ctx context.Context, profile types.Profile) (types.Profile, error) {
	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	const query = `
		INSERT INTO profiles (user_id, role, full_name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		profile.UserID,
		profile.Role,
		profile.FullName,
		profile.CreatedAt,
		profile.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return types.Profile{}, ErrAlreadyExists
		}
		return types.Profile{}, err
	}
	return profile, nil
}
