package errors

import (
	"errors"
	"fmt"
)

// AuthError represents an error reported by the identity provider,
// normalized to a provider error code plus the provider's message text.
type AuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// Provider error codes, as reported by the identity toolkit API.
const (
	CodeEmailExists     = "EMAIL_EXISTS"
	CodeInvalidPassword = "INVALID_PASSWORD"
	CodeEmailNotFound   = "EMAIL_NOT_FOUND"
	CodeWeakPassword    = "WEAK_PASSWORD"
	CodeInvalidEmail    = "INVALID_EMAIL"
	CodeTooManyAttempts = "TOO_MANY_ATTEMPTS_TRY_LATER"
	CodeNetworkFailed   = "NETWORK_REQUEST_FAILED"
)

// NewAuthError creates an AuthError for the given provider code.
func NewAuthError(code, description string) *AuthError {
	return &AuthError{Code: code, Description: description}
}

// NewNetworkError wraps a transport failure as an AuthError so callers can
// treat it like any other provider code.
func NewNetworkError(err error) *AuthError {
	desc := ""
	if err != nil {
		desc = err.Error()
	}
	return &AuthError{Code: CodeNetworkFailed, Description: desc}
}

// AsAuthError extracts an *AuthError from an error chain.
func AsAuthError(err error) (*AuthError, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}

var (
	// ErrNotAuthenticated is returned by operations that require an
	// active provider-side principal.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInFlight is returned when a submission is rejected because a
	// previous one has not completed yet.
	ErrInFlight = errors.New("submission already in flight")
)
