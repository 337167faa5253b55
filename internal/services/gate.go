package services

import (
	"context"
	"errors"
	"strings"

	"github.com/bluecarbon-mrv/portal/internal/auth"
	"github.com/bluecarbon-mrv/portal/types"
	"go.uber.org/zap"
)

// OnboardingPath is where a field worker is sent to register an NGO.
const OnboardingPath = "/field-worker/onboarding"

// Decision is the outcome of a portal access check.
type Decision int

const (
	Allow Decision = iota
	DenyUnauthenticated
	DenyWrongRole
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case DenyUnauthenticated:
		return "deny_unauthenticated"
	case DenyWrongRole:
		return "deny_wrong_role"
	default:
		return "unknown"
	}
}

// Portal is one role-specific entry point of the site.
type Portal struct {
	Name string

	// Role is required to use the portal. Empty admits any signed-in identity.
	Role types.Role

	HomePath  string
	LoginPath string

	// ResetPath is where a password reset mail sends the user back to.
	ResetPath string

	// Audience names the portal's users in denial messages.
	Audience string
}

var (
	FieldWorkerPortal = Portal{
		Name:      "field-worker",
		Role:      types.RoleFieldWorker,
		HomePath:  "/field-worker",
		LoginPath: "/field-worker-login",
		ResetPath: "/field-worker",
		Audience:  "field worker",
	}
	BuyerPortal = Portal{
		Name:      "buyer",
		Role:      types.RoleBuyer,
		HomePath:  "/buyer",
		LoginPath: "/buyer-login",
		ResetPath: "/buyer",
		Audience:  "buyer",
	}
	GenericPortal = Portal{
		Name:      "generic",
		HomePath:  "/dashboard",
		LoginPath: "/login",
		ResetPath: "/reset-password",
		Audience:  "portal",
	}
)

// PortalByName looks up a portal; the empty name selects GenericPortal.
func PortalByName(name string) (Portal, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", GenericPortal.Name:
		return GenericPortal, true
	case FieldWorkerPortal.Name:
		return FieldWorkerPortal, true
	case BuyerPortal.Name:
		return BuyerPortal, true
	default:
		return Portal{}, false
	}
}

// Authorize decides whether resolved may use a portal requiring
// requiredRole. It has no side effects.
func Authorize(resolved *ResolvedSession, requiredRole types.Role) Decision {
	if resolved == nil || resolved.Session == nil {
		return DenyUnauthenticated
	}
	if requiredRole == "" {
		return Allow
	}
	if resolved.Profile == nil || resolved.Profile.Role != requiredRole {
		return DenyWrongRole
	}
	return Allow
}

// SignInForm is the credential form of every login page.
type SignInForm struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (f SignInForm) RequiredFields() []RequiredField {
	return []RequiredField{
		Field("email", f.Email),
		Field("password", f.Password),
	}
}

// SignInResult is a successful authoritative sign-in.
type SignInResult struct {
	Session    *types.Session
	Profile    *types.Profile
	Onboarding OnboardingState

	// Redirect is the path the client should go to next.
	Redirect string
}

// Gate applies portal role checks around the auth provider.
type Gate struct {
	auth          AuthProvider
	resolver      *SessionResolver
	onboarding    *Onboarding
	publicBaseURL string
	logger        *zap.Logger
}

func NewGate(auth AuthProvider, resolver *SessionResolver, onboarding *Onboarding, publicBaseURL string, logger *zap.Logger) *Gate {
	return &Gate{
		auth:          auth,
		resolver:      resolver,
		onboarding:    onboarding,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
	}
}

// Resolver exposes the session resolver used by the gate.
func (g *Gate) Resolver() *SessionResolver {
	return g.resolver
}

// Enforce resolves token and requires it to be allowed into portal. A
// session with the wrong role is signed out before the error is returned.
func (g *Gate) Enforce(ctx context.Context, token string, portal Portal) (*ResolvedSession, error) {
	resolved, err := g.resolver.ResolveSession(ctx, token)
	if err != nil {
		return nil, err
	}

	switch Authorize(resolved, portal.Role) {
	case DenyUnauthenticated:
		return nil, &AuthorizationError{Kind: Unauthenticated, Portal: portal}
	case DenyWrongRole:
		g.forceSignOut(ctx, token, resolved, portal)
		return nil, &AuthorizationError{Kind: WrongRole, Portal: portal}
	}
	return resolved, nil
}

// CheckEntry runs on a login page visit. It returns the portal home when the
// visitor is already allowed in, and "" otherwise. It never signs out.
func (g *Gate) CheckEntry(ctx context.Context, token string, portal Portal) string {
	if strings.TrimSpace(token) == "" {
		return ""
	}
	resolved, err := g.resolver.ResolveSession(ctx, token)
	if err != nil {
		g.logger.Warn("entry check failed", zap.String("portal", portal.Name), zap.Error(err))
		return ""
	}
	if Authorize(resolved, portal.Role) == Allow {
		return portal.HomePath
	}
	return ""
}

// SignIn validates form, signs in and checks the role for portal. Field
// workers are routed through onboarding.
func (g *Gate) SignIn(ctx context.Context, form SignInForm, portal Portal) (*SignInResult, error) {
	form.Email = strings.TrimSpace(form.Email)
	if err := ValidateRequiredFields(form.RequiredFields()...); err != nil {
		return nil, err
	}
	if !ValidateEmail(form.Email) {
		return nil, &ValidationError{Kind: InvalidEmail, Fields: []string{"email"}}
	}

	session, err := g.auth.SignInWithPassword(ctx, form.Email, form.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, &AuthError{Kind: InvalidCredentials, Err: err}
		}
		g.logger.Error("sign in failed", zap.String("portal", portal.Name), zap.Error(err))
		return nil, &AuthError{Kind: NetworkError, Err: err}
	}

	resolved, err := g.resolver.ResolveSession(ctx, session.Token)
	if err != nil || resolved == nil {
		g.logger.Error("resolve fresh session failed", zap.String("portal", portal.Name), zap.Error(err))
		g.forceSignOut(ctx, session.Token, nil, portal)
		if err == nil {
			err = errors.New("fresh session not found")
		}
		return nil, &AuthError{Kind: NetworkError, Err: err}
	}

	if Authorize(resolved, portal.Role) != Allow {
		g.forceSignOut(ctx, session.Token, resolved, portal)
		return nil, &AuthorizationError{Kind: WrongRole, Portal: portal}
	}

	result := &SignInResult{
		Session:    session,
		Profile:    resolved.Profile,
		Onboarding: OnboardingProceed,
		Redirect:   portal.HomePath,
	}
	if portal.Role == types.RoleFieldWorker {
		result.Onboarding = g.onboarding.State(ctx, resolved)
		if result.Onboarding == OnboardingPresentForm {
			result.Redirect = OnboardingPath
		}
	}
	return result, nil
}

// SignOut ends the session behind token.
func (g *Gate) SignOut(ctx context.Context, token string) error {
	if err := g.auth.SignOut(ctx, token); err != nil {
		g.logger.Error("sign out failed", zap.Error(err))
		return &AuthError{Kind: NetworkError, Err: err}
	}
	return nil
}

// ResetPassword requests a reset mail that links back to portal's reset page.
func (g *Gate) ResetPassword(ctx context.Context, email string, portal Portal) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return &ValidationError{Kind: MissingFields, Fields: []string{"email"}}
	}
	if !ValidateEmail(email) {
		return &ValidationError{Kind: InvalidEmail, Fields: []string{"email"}}
	}
	if err := g.auth.ResetPasswordForEmail(ctx, email, g.publicBaseURL+portal.ResetPath); err != nil {
		g.logger.Error("password reset failed", zap.String("portal", portal.Name), zap.Error(err))
		return &AuthError{Kind: NetworkError, Err: err}
	}
	return nil
}

// PasswordResetForm completes a reset with the token from the reset mail.
type PasswordResetForm struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (f PasswordResetForm) RequiredFields() []RequiredField {
	return []RequiredField{
		Field("token", f.Token),
		Field("password", f.Password),
	}
}

// ConfirmPasswordReset sets the new password. Every session of the identity
// ends, so the user signs in again with it.
func (g *Gate) ConfirmPasswordReset(ctx context.Context, form PasswordResetForm) error {
	if err := ValidateRequiredFields(form.RequiredFields()...); err != nil {
		return err
	}
	if len(form.Password) < auth.MinPasswordLength {
		return &ValidationError{Kind: InvalidValue, Fields: []string{"password"}}
	}

	err := g.auth.ConfirmPasswordReset(ctx, strings.TrimSpace(form.Token), form.Password)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, auth.ErrInvalidResetToken):
		return &AuthError{Kind: InvalidResetToken, Err: err}
	case errors.Is(err, auth.ErrWeakPassword):
		return &ValidationError{Kind: InvalidValue, Fields: []string{"password"}}
	default:
		g.logger.Error("password reset confirmation failed", zap.Error(err))
		return &AuthError{Kind: NetworkError, Err: err}
	}
}

func (g *Gate) forceSignOut(ctx context.Context, token string, resolved *ResolvedSession, portal Portal) {
	fields := []zap.Field{zap.String("portal", portal.Name)}
	if resolved != nil {
		fields = append(fields, zap.String("user_id", resolved.Identity().ID))
	}
	if err := g.auth.SignOut(ctx, token); err != nil {
		g.logger.Error("forced sign out failed", append(fields, zap.Error(err))...)
		return
	}
	g.logger.Info("session signed out", fields...)
}
