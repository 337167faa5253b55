package types

import "time"

// Identity is the authenticated subject issued by the auth provider,
// independent of any application role.
type Identity struct {
	// ID is the opaque subject identifier (a UUID string).
	ID string `json:"id" db:"id"`

	// Email is the address the identity signs in with.
	Email string `json:"email" db:"email"`
}

// Account is the auth provider's stored credential record for an identity.
type Account struct {
	Identity

	// PasswordHash stores the bcrypt hash of the password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Session is a live sign-in of an identity.
type Session struct {
	// ID identifies the session row and is carried as the token's jti claim.
	ID string `json:"id" db:"id"`

	// Token is the signed bearer token handed to the client. It is only
	// populated on sign-in.
	Token string `json:"token,omitempty" db:"-"`

	// Identity is the signed-in subject.
	Identity Identity `json:"identity" db:"-"`

	// ExpiresAt is the moment the session stops being valid.
	ExpiresAt time.Time `json:"expires_at" db:"expires_at"`

	// OnboardingDismissed records that NGO onboarding was skipped or
	// completed during this session, so it is not offered again.
	OnboardingDismissed bool `json:"onboarding_dismissed" db:"onboarding_dismissed"`
}

// SessionRecord is the stored form of a session.
type SessionRecord struct {
	ID                  string     `db:"id"`
	UserID              string     `db:"user_id"`
	CreatedAt           time.Time  `db:"created_at"`
	ExpiresAt           time.Time  `db:"expires_at"`
	RevokedAt           *time.Time `db:"revoked_at"`
	OnboardingDismissed bool       `db:"onboarding_dismissed"`
}

// Active reports whether the session is neither revoked nor expired at now.
func (s SessionRecord) Active(now time.Time) bool {
	return s.RevokedAt == nil && now.Before(s.ExpiresAt)
}
