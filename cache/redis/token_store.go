package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"go.pilab.hu/onenote/cache"
)

// TokenStore implements cache.TokenStore using Redis. It is the store of
// choice when a sign-in should survive process restarts.
type TokenStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewTokenStore creates a new [TokenStore] instance.
func NewTokenStore(client *redis.Client, prefix string, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, prefix: prefix, ttl: ttl}
}

func (r *TokenStore) redisKey(id string) string {
	return fmt.Sprintf("%s:token:%s", r.prefix, id)
}

// Set stores a token entry as a Redis hash with an expiry.
func (r *TokenStore) Set(ctx context.Context, entry *cache.TokenEntry) error {
	key := r.redisKey(entry.ID)
	now := time.Now()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}

	fields := map[string]interface{}{
		"id":            entry.ID,
		"user_id":       entry.UserID,
		"refresh_token": entry.RefreshToken,
		"id_token":      entry.IDToken,
		"expires_at":    entry.ExpiresAt.Unix(),
		"created_at":    entry.CreatedAt.Unix(),
		"last_used_at":  now.Unix(),
	}

	if _, err := r.client.HSet(ctx, key, fields).Result(); err != nil {
		return fmt.Errorf("failed to set token in redis: %w", err)
	}

	expiry := r.ttl
	if !entry.ExpiresAt.IsZero() {
		expiry = time.Until(entry.ExpiresAt)
	}
	if _, err := r.client.Expire(ctx, key, expiry).Result(); err != nil {
		return fmt.Errorf("failed to set expiry for token in redis: %w", err)
	}

	return nil
}

// Get retrieves a token entry from Redis.
func (r *TokenStore) Get(ctx context.Context, id string) (*cache.TokenEntry, error) {
	key := r.redisKey(id)

	res, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read token from redis: %w", err)
	}
	if len(res) == 0 {
		return nil, cache.ErrTokenNotFound
	}

	entry := &cache.TokenEntry{
		ID:           res["id"],
		UserID:       res["user_id"],
		RefreshToken: res["refresh_token"],
		IDToken:      res["id_token"],
	}
	entry.ExpiresAt = unixField(res, "expires_at")
	entry.CreatedAt = unixField(res, "created_at")
	entry.LastUsedAt = unixField(res, "last_used_at")

	// Update LastUsedAt; a failure here must not fail the Get.
	_, _ = r.client.HSet(ctx, key, "last_used_at", time.Now().Unix()).Result()

	return entry, nil
}

// Delete removes a token entry from Redis.
func (r *TokenStore) Delete(ctx context.Context, id string) error {
	if _, err := r.client.Del(ctx, r.redisKey(id)).Result(); err != nil {
		return fmt.Errorf("failed to delete token from redis: %w", err)
	}
	return nil
}

// Close closes the underlying Redis client.
func (r *TokenStore) Close() error {
	return r.client.Close()
}

func unixField(res map[string]string, field string) time.Time {
	sec, err := strconv.ParseInt(res[field], 10, 64)
	if err != nil {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

var _ cache.TokenStore = (*TokenStore)(nil)
