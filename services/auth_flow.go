package services

import (
	"context"
	"net/mail"
	"sync/atomic"

	"go.pilab.hu/onenote/domain"
	apperrors "go.pilab.hu/onenote/errors"
	"go.pilab.hu/onenote/internal/idp"
	"go.pilab.hu/onenote/log"
	"go.pilab.hu/onenote/session"
)

// Mode selects between account creation and sign-in.
type Mode string

const (
	ModeSignup Mode = "signup"
	ModeLogin  Mode = "login"
)

// SubmitRequest carries the auth form fields. Name is only consulted in
// signup mode and falls back to the local part of the email.
type SubmitRequest struct {
	Mode     Mode
	Name     string
	Email    string
	Password string
}

// AuthFlow performs sign-up and sign-in against the identity provider and
// finalizes the local session on success. A flow instance rejects
// concurrent submissions; the in-flight flag is cleared exactly once per
// submission, on every exit path.
type AuthFlow struct {
	provider idp.Provider
	store    *session.Store
	logger   log.Logger

	busy atomic.Bool
}

// NewAuthFlow creates an AuthFlow.
func NewAuthFlow(provider idp.Provider, store *session.Store, logger log.Logger) *AuthFlow {
	return &AuthFlow{provider: provider, store: store, logger: logger}
}

// Busy reports whether a submission is currently in flight.
func (f *AuthFlow) Busy() bool {
	return f.busy.Load()
}

// Submit validates the form, performs the provider call for the requested
// mode, and publishes the resulting session. Failures come back as
// errors; ErrorMessage turns them into the user-facing text.
func (f *AuthFlow) Submit(ctx context.Context, req SubmitRequest) (*domain.Session, error) {
	if !f.busy.CompareAndSwap(false, true) {
		return nil, apperrors.ErrInFlight
	}
	defer f.busy.Store(false)

	if err := validate(req); err != nil {
		return nil, err
	}

	var (
		principal *domain.Principal
		err       error
	)
	switch req.Mode {
	case ModeSignup:
		principal, err = f.signup(ctx, req)
	default:
		principal, err = f.provider.SignIn(ctx, req.Email, req.Password)
	}
	if err != nil {
		f.logger.Warn(ctx, "authentication failed",
			map[string]interface{}{"mode": string(req.Mode), "error": err.Error()})
		return nil, err
	}

	sess := &domain.Session{
		Email:       principal.Email,
		DisplayName: principal.DisplayName,
		UserID:      principal.UserID,
	}
	if sess.Email == "" {
		sess.Email = req.Email
	}
	if sess.DisplayName == "" {
		sess.DisplayName = domain.LocalPart(req.Email)
	}
	// The provider notification may already have seeded the counter;
	// keep it rather than resetting to zero.
	if cur := f.store.Current(); cur != nil && cur.UserID == sess.UserID {
		sess.NoteCount = cur.NoteCount
	}

	f.store.SetSession(sess)

	return sess, nil
}

// signup creates the account and immediately sets the display name, using
// the provided name or the local part of the email.
func (f *AuthFlow) signup(ctx context.Context, req SubmitRequest) (*domain.Principal, error) {
	principal, err := f.provider.CreateAccount(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}

	name := req.Name
	if name == "" {
		name = domain.LocalPart(req.Email)
	}
	if err := f.provider.UpdateDisplayName(ctx, principal, name); err != nil {
		return nil, err
	}
	principal.DisplayName = name

	return principal, nil
}

// validate reproduces the form-level checks: the email must parse as an
// address and the password must be at least six characters. Violations
// are reported with the matching provider codes so ErrorMessage covers
// both local and provider failures uniformly.
func validate(req SubmitRequest) error {
	if req.Email == "" {
		return apperrors.NewAuthError(apperrors.CodeInvalidEmail, "email is required")
	}
	if addr, err := mail.ParseAddress(req.Email); err != nil || addr.Address != req.Email {
		return apperrors.NewAuthError(apperrors.CodeInvalidEmail, "malformed email address")
	}
	if len(req.Password) < 6 {
		return apperrors.NewAuthError(apperrors.CodeWeakPassword, "password too short")
	}
	return nil
}

// genericAuthMessage is shown for provider failures with no usable text.
const genericAuthMessage = "An error occurred during authentication"

// authMessages maps provider error codes to the fixed user-facing texts.
var authMessages = map[string]string{
	apperrors.CodeEmailExists:     "This email is already registered. Please try logging in instead.",
	apperrors.CodeInvalidPassword: "Incorrect password. Please try again.",
	apperrors.CodeEmailNotFound:   "No account found with this email. Please sign up first.",
	apperrors.CodeWeakPassword:    "Password should be at least 6 characters long.",
	apperrors.CodeInvalidEmail:    "Please enter a valid email address.",
	apperrors.CodeTooManyAttempts: "Too many attempts. Please try again later.",
	apperrors.CodeNetworkFailed:   "Network error. Please check your connection.",
}

// ErrorMessage translates a Submit error into the text shown on the auth
// form. Unknown provider codes fall back to the provider's own message,
// then to a generic string.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if ae, ok := apperrors.AsAuthError(err); ok {
		if msg, ok := authMessages[ae.Code]; ok {
			return msg
		}
		if ae.Description != "" {
			return ae.Description
		}
		return genericAuthMessage
	}
	return genericAuthMessage
}
