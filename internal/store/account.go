package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/bluecarbon-mrv/portal/types"
	"github.com/google/uuid"
)

// AccountRepository handles persistence for auth provider accounts.
type AccountRepository struct {
	db DBTX
}

func NewAccountRepository(db DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

func (r *AccountRepository) GetByID(ctx context.Context, id string) (types.Account, error) {
	const query = `
		SELECT id, email, password_hash, created_at, updated_at
		FROM identities
		WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

// GetByEmail looks an account up by its normalised (lower-case) email.
func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (types.Account, error) {
	const query = `
		SELECT id, email, password_hash, created_at, updated_at
		FROM identities
		WHERE email = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, query, normalizeEmail(email)))
}

func (r *AccountRepository) Create(ctx context.Context, account types.Account) (types.Account, error) {
	if account.ID == "" {
		account.ID = uuid.NewString()
	}
	now := time.Now()
	account.CreatedAt = now
	account.UpdatedAt = now
	account.Email = normalizeEmail(account.Email)

	const query = `
		INSERT INTO identities (id, email, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.CreatedAt,
		account.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return types.Account{}, ErrAlreadyExists
		}
		return types.Account{}, err
	}
	return account, nil
}

// UpdatePassword replaces the stored hash of an account.
func (r *AccountRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	const query = `UPDATE identities SET password_hash = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, passwordHash, at)
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

func (r *AccountRepository) scanOne(row *sql.Row) (types.Account, error) {
	var account types.Account
	err := row.Scan(
		&account.ID,
		&account.Email,
		&account.PasswordHash,
		&account.CreatedAt,
		&account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Account{}, ErrNotFound
		}
		return types.Account{}, err
	}
	return account, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
