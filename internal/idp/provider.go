package idp

import (
	"context"

	"go.pilab.hu/onenote/domain"
)

// Provider is the identity provider the application delegates all
// credential handling to. Implementations own the current principal and
// notify listeners on every authentication-state change.
//
// Listener contract: after Start, every registered listener is invoked at
// least once (with the restored principal, or nil when signed out), and
// again on every subsequent sign-in, sign-out, or profile change. A
// listener registered after the initial resolution is invoked immediately
// with the current state. Dispatch is serialized.
type Provider interface {
	// CreateAccount registers a new user with the provider and signs
	// them in.
	CreateAccount(ctx context.Context, email, password string) (*domain.Principal, error)

	// SignIn authenticates an existing user.
	SignIn(ctx context.Context, email, password string) (*domain.Principal, error)

	// SignOut discards the current principal and any persisted
	// credentials.
	SignOut(ctx context.Context) error

	// UpdateDisplayName asks the provider to change the principal's
	// display name. The principal must be the current one.
	UpdateDisplayName(ctx context.Context, principal *domain.Principal, name string) error

	// CurrentPrincipal returns the signed-in principal, or nil.
	CurrentPrincipal() *domain.Principal

	// AuthStateChanges registers a listener for authentication-state
	// changes and returns an unsubscribe handle.
	AuthStateChanges(listener func(*domain.Principal)) (unsubscribe func())

	// Start restores any persisted sign-in and delivers the initial
	// notification. It must be called once, after the interested
	// listeners have subscribed.
	Start(ctx context.Context)
}
