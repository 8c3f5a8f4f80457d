package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	webapi "go.pilab.hu/onenote/api/echo"
	"go.pilab.hu/onenote/cache"
	redistore "go.pilab.hu/onenote/cache/redis"
	"go.pilab.hu/onenote/config"
	"go.pilab.hu/onenote/domain"
	"go.pilab.hu/onenote/internal/idp"
	"go.pilab.hu/onenote/internal/notesapi"
	"go.pilab.hu/onenote/internal/server"
	"go.pilab.hu/onenote/internal/storage"
	"go.pilab.hu/onenote/log"
	"go.pilab.hu/onenote/mongodb"
	"go.pilab.hu/onenote/services"
	"go.pilab.hu/onenote/session"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		bootLogger := zerolog.New(os.Stderr).With().Timestamp().Logger()
		bootLogger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logLevel, parseErr := zerolog.ParseLevel(cfg.LogLevel)
	if parseErr != nil {
		logLevel = zerolog.InfoLevel
	}
	appLogger := log.NewZerologAdapter(logLevel, cfg.LogPretty)

	ctx := context.Background()
	appLogger.Info(ctx, "Starting onenote web server", map[string]interface{}{
		"http_port":     cfg.HTTPPort,
		"idp_base_url":  cfg.IdPBaseURL,
		"notes_api_url": cfg.NotesAPIURL,
		"mongo_enabled": cfg.MongoURI != "",
		"redis_enabled": cfg.RedisAddr != "",
	})

	// Token store: Redis keeps a sign-in across restarts, the TTL cache
	// is the in-process fallback.
	var tokenStore cache.TokenStore
	if cfg.RedisAddr != "" {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			appLogger.Fatal(ctx, "Failed to connect to Redis", err)
		}
		tokenStore = redistore.NewTokenStore(rdb, cfg.TokenCachePrefix, cfg.TokenCacheTTL)
	} else {
		tokenStore = cache.NewMemoryTokenStore(cfg.TokenCacheTTL)
	}
	defer tokenStore.Close()

	// Note archive: MongoDB when configured, in-memory otherwise.
	var noteRepo domain.NoteRepository
	if cfg.MongoURI != "" {
		if err := mongodb.InitMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName); err != nil {
			appLogger.Fatal(ctx, "Failed to initialize MongoDB connection", err)
		}
		repo, err := mongodb.NewNoteRepository(ctx, mongodb.GetDB())
		if err != nil {
			appLogger.Fatal(ctx, "Failed to initialize note repository", err)
		}
		noteRepo = repo
	} else {
		noteRepo = storage.NewMemoryNoteRepository()
	}

	provider := idp.NewIdentityToolkitProvider(
		cfg.IdPBaseURL, cfg.IdPTokenURL, cfg.IdPAPIKey, tokenStore, appLogger)

	store := session.NewStore(provider, noteRepo, appLogger)

	// The store subscribes before the provider starts resolving, so no
	// protected route can mistake "still resolving" for signed-out.
	unsubscribe := store.Subscribe(ctx)
	defer unsubscribe()
	provider.Start(ctx)

	flow := services.NewAuthFlow(provider, store, appLogger)
	notesClient := notesapi.NewClient(cfg.NotesAPIURL)

	api := webapi.NewWebAPI(store, flow, provider, noteRepo, notesClient, appLogger)
	httpServer := server.NewHTTPServer(cfg, appLogger, api)

	go func() {
		appLogger.Info(ctx, "HTTP server listening", map[string]interface{}{"port": cfg.HTTPPort})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal(ctx, "Failed to start HTTP server", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	appLogger.Info(ctx, "Shutting down", map[string]interface{}{"signal": sig.String()})

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(shutdownCtx, "HTTP server shutdown error", err)
	}

	if cfg.MongoURI != "" {
		mongodb.CloseMongoDB(shutdownCtx)
	}

	appLogger.Info(shutdownCtx, "Server gracefully stopped")
}
