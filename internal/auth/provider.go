package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bluecarbon-mrv/portal/config"
	"github.com/bluecarbon-mrv/portal/internal/mq"
	"github.com/bluecarbon-mrv/portal/internal/store"
	"github.com/bluecarbon-mrv/portal/types"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultSessionTTL = 24 * time.Hour
	defaultResetTTL   = time.Hour

	// MinPasswordLength applies to every password the provider stores.
	MinPasswordLength = 8
)

var (
	// ErrInvalidCredentials is returned when the email is unknown or the
	// password does not match. The text is shown to users as is.
	ErrInvalidCredentials = errors.New("Invalid login credentials")

	// ErrInvalidResetToken covers malformed, expired, foreign and already
	// used reset tokens.
	ErrInvalidResetToken = errors.New("This password reset link is invalid or has expired")

	ErrWeakPassword = fmt.Errorf("password must be at least %d characters", MinPasswordLength)
)

// AccountRepository reads stored credentials.
type AccountRepository interface {
	GetByID(ctx context.Context, id string) (types.Account, error)
	GetByEmail(ctx context.Context, email string) (types.Account, error)
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
}

// SessionRepository persists sign-in sessions.
type SessionRepository interface {
	Get(ctx context.Context, id string) (types.SessionRecord, error)
	Create(ctx context.Context, session types.SessionRecord) error
	Revoke(ctx context.Context, id string, at time.Time) error
	RevokeAllForUser(ctx context.Context, userID string, at time.Time) error
	MarkOnboardingDismissed(ctx context.Context, id string) error
}

// EventPublisher delivers password reset requests to the mailer.
type EventPublisher interface {
	PublishJSON(ctx context.Context, event string, v any) error
}

// PasswordResetEvent is the payload of an auth.password_reset event.
type PasswordResetEvent struct {
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	Token      string    `json:"token"`
	RedirectTo string    `json:"redirect_to"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Provider issues and verifies sessions for password sign-in.
type Provider struct {
	accounts   AccountRepository
	sessions   SessionRepository
	events     EventPublisher
	secret     []byte
	sessionTTL time.Duration
	resetTTL   time.Duration
	now        func() time.Time
}

// NewProvider constructs a Provider. A JWT secret is required.
func NewProvider(accounts AccountRepository, sessions SessionRepository, events EventPublisher, cfg config.AuthConfig) (*Provider, error) {
	if strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	sessionTTL := cfg.SessionTTL
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	resetTTL := cfg.ResetTTL
	if resetTTL <= 0 {
		resetTTL = defaultResetTTL
	}
	return &Provider{
		accounts:   accounts,
		sessions:   sessions,
		events:     events,
		secret:     []byte(cfg.JWTSecret),
		sessionTTL: sessionTTL,
		resetTTL:   resetTTL,
		now:        time.Now,
	}, nil
}

// GetSession returns the live session behind token. Malformed, expired,
// revoked and unknown tokens all yield a nil session without error.
func (p *Provider) GetSession(ctx context.Context, token string) (*types.Session, error) {
	claims, err := parseToken(token, p.secret, purposeSession)
	if err != nil {
		return nil, nil
	}

	record, err := p.sessions.Get(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load session: %w", err)
	}
	if record.UserID != claims.Subject || !record.Active(p.now()) {
		return nil, nil
	}

	account, err := p.accounts.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load account: %w", err)
	}

	return &types.Session{
		ID:                  record.ID,
		Token:               token,
		Identity:            account.Identity,
		ExpiresAt:           record.ExpiresAt,
		OnboardingDismissed: record.OnboardingDismissed,
	}, nil
}

// SignInWithPassword verifies the credentials and opens a new session.
func (p *Provider) SignInWithPassword(ctx context.Context, email, password string) (*types.Session, error) {
	account, err := p.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("load account: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := p.now()
	record := types.SessionRecord{
		ID:        uuid.NewString(),
		UserID:    account.ID,
		CreatedAt: now,
		ExpiresAt: now.Add(p.sessionTTL),
	}
	if err := p.sessions.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	token, err := issueToken(p.secret, purposeSession, record.ID, account.ID, now, record.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("sign session: %w", err)
	}

	return &types.Session{
		ID:        record.ID,
		Token:     token,
		Identity:  account.Identity,
		ExpiresAt: record.ExpiresAt,
	}, nil
}

// SignOut revokes the session behind token. Signing out an invalid or
// already revoked token succeeds.
func (p *Provider) SignOut(ctx context.Context, token string) error {
	claims, err := parseToken(token, p.secret, purposeSession)
	if err != nil {
		return nil
	}
	if err := p.sessions.Revoke(ctx, claims.ID, p.now()); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

// ResetPasswordForEmail publishes a password reset request for email.
// Unknown addresses are accepted silently so callers cannot probe accounts.
func (p *Provider) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	account, err := p.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load account: %w", err)
	}

	now := p.now()
	expiresAt := now.Add(p.resetTTL)
	token, err := issueResetToken(p.secret, uuid.NewString(), account.ID, passwordStamp(account.PasswordHash), now, expiresAt)
	if err != nil {
		return fmt.Errorf("sign reset token: %w", err)
	}

	return p.events.PublishJSON(ctx, mq.EventPasswordResetIssued, PasswordResetEvent{
		UserID:     account.ID,
		Email:      account.Email,
		Token:      token,
		RedirectTo: redirectTo,
		ExpiresAt:  expiresAt,
	})
}

// ConfirmPasswordReset sets a new password for the subject of a reset token
// and ends every session of that identity. A token works once: the new hash
// no longer matches its stamp.
func (p *Provider) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if len(newPassword) < MinPasswordLength {
		return ErrWeakPassword
	}
	claims, err := parseToken(token, p.secret, purposePasswordReset)
	if err != nil {
		return ErrInvalidResetToken
	}

	account, err := p.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidResetToken
		}
		return fmt.Errorf("load account: %w", err)
	}
	if claims.Stamp == "" || claims.Stamp != passwordStamp(account.PasswordHash) {
		return ErrInvalidResetToken
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := p.now()
	if err := p.sessions.RevokeAllForUser(ctx, account.ID, now); err != nil {
		return fmt.Errorf("revoke sessions: %w", err)
	}
	if err := p.accounts.UpdatePassword(ctx, account.ID, hash, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// DismissOnboarding records on the session that NGO onboarding is done.
func (p *Provider) DismissOnboarding(ctx context.Context, sessionID string) error {
	return p.sessions.MarkOnboardingDismissed(ctx, sessionID)
}

// HashPassword returns the bcrypt hash stored for a new account.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}
