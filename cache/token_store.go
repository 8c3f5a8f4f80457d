package cache

import (
	"context"
	"errors"
	"time"
)

// ErrTokenNotFound is returned by Get when no entry exists for the key.
var ErrTokenNotFound = errors.New("token not found")

// TokenEntry is a persisted provider credential. The refresh token is the
// valuable part: it lets the identity provider client restore a sign-in
// after a process restart.
type TokenEntry struct {
	ID           string    `redis:"id"`
	UserID       string    `redis:"userId"`
	RefreshToken string    `redis:"refreshToken"`
	IDToken      string    `redis:"idToken"`
	ExpiresAt    time.Time `redis:"expiresAt"`
	CreatedAt    time.Time `redis:"createdAt"`
	LastUsedAt   time.Time `redis:"lastUsedAt"`
}

// TokenStore persists provider token entries keyed by entry ID.
type TokenStore interface {
	Set(ctx context.Context, entry *TokenEntry) error
	Get(ctx context.Context, id string) (*TokenEntry, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
