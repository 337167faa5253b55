package services

import (
	"context"
	"errors"

	"github.com/bluecarbon-mrv/portal/internal/store"
	"github.com/bluecarbon-mrv/portal/types"
)

// AuthProvider is the identity service sessions come from.
type AuthProvider interface {
	GetSession(ctx context.Context, token string) (*types.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*types.Session, error)
	SignOut(ctx context.Context, token string) error
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	DismissOnboarding(ctx context.Context, sessionID string) error
}

// ProfileRepository reads the role binding of an identity.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID string) (types.Profile, error)
}

// ResolvedSession is a live session together with its profile. Profile is
// nil when none has been provisioned; that means the role is unknown.
type ResolvedSession struct {
	Session *types.Session
	Profile *types.Profile
}

// Identity returns the signed-in identity.
func (r *ResolvedSession) Identity() types.Identity {
	return r.Session.Identity
}

// SessionResolver looks up the identity and profile behind a session token.
type SessionResolver struct {
	auth     AuthProvider
	profiles ProfileRepository
}

func NewSessionResolver(auth AuthProvider, profiles ProfileRepository) *SessionResolver {
	return &SessionResolver{auth: auth, profiles: profiles}
}

// ResolveSession returns nil when token carries no live session. Results are
// never cached.
func (r *SessionResolver) ResolveSession(ctx context.Context, token string) (*ResolvedSession, error) {
	session, err := r.auth.GetSession(ctx, token)
	if err != nil {
		return nil, &AuthError{Kind: NetworkError, Err: err}
	}
	if session == nil {
		return nil, nil
	}

	resolved := &ResolvedSession{Session: session}
	profile, err := r.profiles.GetByUserID(ctx, session.Identity.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return resolved, nil
		}
		return nil, &AuthError{Kind: NetworkError, Err: err}
	}
	resolved.Profile = &profile
	return resolved, nil
}
