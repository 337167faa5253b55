package services

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationKind classifies a rejected input.
type ValidationKind string

const (
	MissingFields   ValidationKind = "missing_fields"
	InvalidEmail    ValidationKind = "invalid_email"
	InvalidValue    ValidationKind = "invalid_value"
	UnsupportedType ValidationKind = "unsupported_type"
	TooLarge        ValidationKind = "too_large"
)

// ValidationError reports input the user can correct. Nothing was written
// when it is returned.
type ValidationError struct {
	Kind ValidationKind

	// Fields lists every offending form key, in declared order.
	Fields []string

	// Slot names the attachment slot for file errors.
	Slot string

	// Policy is the file policy that rejected the attachment.
	Policy FilePolicy
}

func (e *ValidationError) Error() string {
	switch {
	case len(e.Fields) > 0:
		return fmt.Sprintf("validation failed (%s): %s", e.Kind, strings.Join(e.Fields, ", "))
	case e.Slot != "":
		return fmt.Sprintf("validation failed (%s): slot %s", e.Kind, e.Slot)
	default:
		return fmt.Sprintf("validation failed (%s)", e.Kind)
	}
}

// Message returns the text shown to the user.
func (e *ValidationError) Message() string {
	switch e.Kind {
	case MissingFields:
		if e.Slot != "" {
			return fmt.Sprintf("Please attach the %s file.", e.Slot)
		}
		return "Please fill in all required fields."
	case InvalidEmail:
		return "Please enter a valid email address."
	case InvalidValue:
		return fmt.Sprintf("Please check the value of %s.", strings.Join(e.Fields, ", "))
	case UnsupportedType:
		return fmt.Sprintf("Invalid file type. Please upload %s files only.", e.Policy.Label)
	case TooLarge:
		return fmt.Sprintf("File too large. Please upload files smaller than %dMB.", e.Policy.MaxSizeBytes>>20)
	default:
		return "Invalid input."
	}
}

// AuthErrorKind classifies a failed sign-in.
type AuthErrorKind string

const (
	InvalidCredentials AuthErrorKind = "invalid_credentials"
	InvalidResetToken  AuthErrorKind = "invalid_reset_token"
	NetworkError       AuthErrorKind = "network_error"
)

// AuthError reports a sign-in the provider refused or could not process.
// The existing session, if any, is left untouched.
type AuthError struct {
	Kind AuthErrorKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Message returns the provider's text for rejected credentials or reset
// tokens and a generic retry hint for everything else.
func (e *AuthError) Message() string {
	if e.Kind != NetworkError && e.Err != nil {
		return e.Err.Error()
	}
	return "Network error. Please try again."
}

// AuthorizationKind classifies a denied portal access.
type AuthorizationKind string

const (
	Unauthenticated AuthorizationKind = "unauthenticated"
	WrongRole       AuthorizationKind = "wrong_role"
)

// AuthorizationError reports a session that may not use a portal. For
// WrongRole the session has already been signed out.
type AuthorizationError struct {
	Kind   AuthorizationKind
	Portal Portal
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s for portal %s", e.Kind, e.Portal.Name)
}

func (e *AuthorizationError) Message() string {
	if e.Kind == WrongRole {
		return fmt.Sprintf("This account is not authorized for %s access", e.Portal.Audience)
	}
	return "Please sign in to continue."
}

// SubmitErrorKind classifies a failed step of a submission.
type SubmitErrorKind string

const (
	UploadFailed  SubmitErrorKind = "upload_failed"
	PersistFailed SubmitErrorKind = "persist_failed"
)

// SubmitError reports a failed upload (per slot, non-fatal) or a failed
// record insert (fatal). Uploaded objects are never rolled back.
type SubmitError struct {
	Kind SubmitErrorKind
	Slot string
	Err  error
}

func (e *SubmitError) Error() string {
	if e.Slot != "" {
		return fmt.Sprintf("%s (%s): %v", e.Kind, e.Slot, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *SubmitError) Unwrap() error {
	return e.Err
}

func (e *SubmitError) Message() string {
	if e.Kind == UploadFailed {
		return fmt.Sprintf("The %s file could not be uploaded.", e.Slot)
	}
	return "Failed to save your submission. Please try again."
}

// UserMessage returns the short message for err that is safe to show to a
// user. Errors outside the taxonomy get a generic message.
func UserMessage(err error) string {
	var m interface{ Message() string }
	if errors.As(err, &m) {
		return m.Message()
	}
	return "Something went wrong. Please try again."
}
