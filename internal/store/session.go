package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/bluecarbon-mrv/portal/types"
)

// SessionRepository handles persistence for sign-in sessions.
type SessionRepository struct {
	db DBTX
}

func NewSessionRepository(db DBTX) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Get(ctx context.Context, id string) (types.SessionRecord, error) {
	const query = `
		SELECT id, user_id, created_at, expires_at, revoked_at, onboarding_dismissed
		FROM sessions
		WHERE id = $1`
	var session types.SessionRecord
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&session.ID,
		&session.UserID,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.RevokedAt,
		&session.OnboardingDismissed,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.SessionRecord{}, ErrNotFound
		}
		return types.SessionRecord{}, err
	}
	return session, nil
}

func (r *SessionRepository) Create(ctx context.Context, session types.SessionRecord) error {
	const query = `
		INSERT INTO sessions (id, user_id, created_at, expires_at, onboarding_dismissed)
		VALUES ($1, $2, $3, $4, $5)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		session.ID,
		session.UserID,
		session.CreatedAt,
		session.ExpiresAt,
		session.OnboardingDismissed,
	)
	return err
}

// Revoke marks the session as signed out. Revoking an already revoked or
// unknown session is not an error.
func (r *SessionRepository) Revoke(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE sessions SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, id, at)
	return err
}

// RevokeAllForUser signs every live session of userID out.
func (r *SessionRepository) RevokeAllForUser(ctx context.Context, userID string, at time.Time) error {
	const query = `UPDATE sessions SET revoked_at = $2 WHERE user_id = $1 AND revoked_at IS NULL`
	_, err := r.db.ExecContext(ctx, query, userID, at)
	return err
}

func (r *SessionRepository) MarkOnboardingDismissed(ctx context.Context, id string) error {
	const query = `UPDATE sessions SET onboarding_dismissed = TRUE WHERE id = $1 AND revoked_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
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
