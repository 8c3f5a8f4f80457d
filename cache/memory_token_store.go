package cache

import (
	"context"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryTokenStore implements TokenStore using ttlcache. Entries expire
// with the process; it is the default when no Redis address is configured.
type MemoryTokenStore struct {
	cache *ttlcache.Cache[string, *TokenEntry]
	ttl   time.Duration
}

// NewMemoryTokenStore creates a new in-memory token store. Entries live
// for the given TTL unless an entry carries its own expiry.
func NewMemoryTokenStore(ttl time.Duration) *MemoryTokenStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *TokenEntry](ttl),
		ttlcache.WithDisableTouchOnHit[string, *TokenEntry](),
	)

	go cache.Start()

	return &MemoryTokenStore{cache: cache, ttl: ttl}
}

// Set implements TokenStore.Set.
func (s *MemoryTokenStore) Set(_ context.Context, entry *TokenEntry) error {
	ttl := s.ttl
	if !entry.ExpiresAt.IsZero() {
		ttl = time.Until(entry.ExpiresAt)
	}
	s.cache.Set(entry.ID, entry, ttl)
	return nil
}

// Get implements TokenStore.Get.
func (s *MemoryTokenStore) Get(_ context.Context, id string) (*TokenEntry, error) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, ErrTokenNotFound
	}

	entry := item.Value()
	entry.LastUsedAt = time.Now()

	return entry, nil
}

// Delete removes an entry from the cache.
func (s *MemoryTokenStore) Delete(_ context.Context, id string) error {
	s.cache.Delete(id)
	return nil
}

// Close stops the cleanup goroutine.
func (s *MemoryTokenStore) Close() error {
	s.cache.Stop()
	return nil
}
