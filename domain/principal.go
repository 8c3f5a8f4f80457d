package domain

import "time"

// Principal is the identity provider's representation of an authenticated
// user, together with the credentials the provider handed back. It is the
// raw material sessions are built from.
type Principal struct {
	UserID      string
	Email       string
	DisplayName string

	// Provider credentials. The refresh token is persisted through the
	// token store so a sign-in can be restored after a restart.
	IDToken      string
	RefreshToken string
	ExpiresAt    time.Time
}
