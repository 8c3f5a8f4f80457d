package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "https://identitytoolkit.googleapis.com/v1", cfg.IdPBaseURL)
	assert.Equal(t, "https://securetoken.googleapis.com/v1", cfg.IdPTokenURL)
	assert.Equal(t, "http://localhost:5000", cfg.NotesAPIURL)
	assert.Empty(t, cfg.MongoURI)
	assert.Empty(t, cfg.RedisAddr)
	assert.Equal(t, "onenote", cfg.TokenCachePrefix)
	assert.Equal(t, 30*24*time.Hour, cfg.TokenCacheTTL)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("IDP_API_KEY", "test-key")
	t.Setenv("TOKEN_CACHE_TTL", "1h")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, "test-key", cfg.IdPAPIKey)
	assert.Equal(t, time.Hour, cfg.TokenCacheTTL)
}
