package services

import (
	"context"

	"go.uber.org/zap"
)

// OnboardingState is a step of the first-login NGO registration flow.
type OnboardingState int

const (
	// OnboardingSignedIn is the state right after a fresh field worker sign-in.
	OnboardingSignedIn OnboardingState = iota
	// OnboardingPresentForm asks the field worker to register an NGO.
	OnboardingPresentForm
	// OnboardingProceed sends the field worker to the portal. It is terminal.
	OnboardingProceed
)

func (s OnboardingState) String() string {
	switch s {
	case OnboardingSignedIn:
		return "signed_in"
	case OnboardingPresentForm:
		return "present_form"
	case OnboardingProceed:
		return "proceed"
	default:
		return "unknown"
	}
}

// NGOChecker answers whether a field worker already registered an NGO.
type NGOChecker interface {
	ExistsForFieldWorker(ctx context.Context, fieldWorkerID string) (bool, error)
}

// Onboarding decides whether a field worker must be offered NGO registration.
type Onboarding struct {
	ngos   NGOChecker
	auth   AuthProvider
	logger *zap.Logger
}

func NewOnboarding(ngos NGOChecker, auth AuthProvider, logger *zap.Logger) *Onboarding {
	return &Onboarding{ngos: ngos, auth: auth, logger: logger}
}

// State returns where the flow stands for resolved. A failed existence check
// proceeds to the portal.
func (o *Onboarding) State(ctx context.Context, resolved *ResolvedSession) OnboardingState {
	if resolved == nil || resolved.Session == nil {
		return OnboardingSignedIn
	}
	if resolved.Session.OnboardingDismissed {
		return OnboardingProceed
	}

	exists, err := o.ngos.ExistsForFieldWorker(ctx, resolved.Identity().ID)
	if err != nil {
		o.logger.Warn("ngo existence check failed, skipping onboarding",
			zap.String("user_id", resolved.Identity().ID),
			zap.Error(err),
		)
		return OnboardingProceed
	}
	if exists {
		return OnboardingProceed
	}
	return OnboardingPresentForm
}

// Dismiss moves the session to OnboardingProceed. It is called for both a
// skipped form and a completed registration.
func (o *Onboarding) Dismiss(ctx context.Context, resolved *ResolvedSession) (OnboardingState, error) {
	if resolved.Session.OnboardingDismissed {
		return OnboardingProceed, nil
	}
	if err := o.auth.DismissOnboarding(ctx, resolved.Session.ID); err != nil {
		return OnboardingPresentForm, err
	}
	resolved.Session.OnboardingDismissed = true
	return OnboardingProceed, nil
}
