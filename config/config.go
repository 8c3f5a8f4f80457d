package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// AppConfig holds all configuration for the application. Tags use
// mapstructure for viper unmarshalling; every key can also be supplied as
// an environment variable.
type AppConfig struct {
	HTTPPort string `mapstructure:"HTTP_PORT"`

	// Identity provider endpoints. IdPAPIKey is appended as the `key`
	// query parameter to every provider request.
	IdPBaseURL  string `mapstructure:"IDP_BASE_URL"`
	IdPTokenURL string `mapstructure:"IDP_TOKEN_URL"`
	IdPAPIKey   string `mapstructure:"IDP_API_KEY"`

	// Base URL of the note-generation backend.
	NotesAPIURL string `mapstructure:"NOTES_API_URL"`

	// Optional MongoDB note archive. Left empty, notes are archived in
	// memory only.
	MongoURI    string `mapstructure:"MONGO_URI"`
	MongoDBName string `mapstructure:"MONGO_DB_NAME"`

	// Optional Redis token store. Left empty, provider tokens live in an
	// in-memory TTL cache and a sign-in does not survive a restart.
	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	TokenCachePrefix string        `mapstructure:"TOKEN_CACHE_PREFIX"`
	TokenCacheTTL    time.Duration `mapstructure:"TOKEN_CACHE_TTL"`

	LogLevel        string `mapstructure:"LOG_LEVEL"`
	LogPretty       bool   `mapstructure:"LOG_PRETTY"`
	OtelServiceName string `mapstructure:"OTEL_SERVICE_NAME"`
}

// LoadConfig reads configuration from file, environment variables, and
// defaults, in that order of increasing precedence for env vars.
func LoadConfig() (*AppConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/onenote/")
	v.AddConfigPath("$HOME/.onenote")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("IDP_BASE_URL", "https://identitytoolkit.googleapis.com/v1")
	v.SetDefault("IDP_TOKEN_URL", "https://securetoken.googleapis.com/v1")
	v.SetDefault("IDP_API_KEY", "")
	v.SetDefault("NOTES_API_URL", "http://localhost:5000")
	v.SetDefault("MONGO_URI", "")
	v.SetDefault("MONGO_DB_NAME", "onenote")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("TOKEN_CACHE_PREFIX", "onenote")
	v.SetDefault("TOKEN_CACHE_TTL", 30*24*time.Hour)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("OTEL_SERVICE_NAME", "onenote-web")

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine, we run on defaults and env.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}
