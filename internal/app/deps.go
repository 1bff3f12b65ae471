package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/skillswap/backend/internal/auth"
	"github.com/skillswap/backend/internal/config"
	"github.com/skillswap/backend/internal/db"
	"github.com/skillswap/backend/internal/directory"
	"github.com/skillswap/backend/internal/handlers"
	"github.com/skillswap/backend/internal/middleware"
	"github.com/skillswap/backend/internal/notify"
	"github.com/skillswap/backend/internal/profiles"
	"github.com/skillswap/backend/internal/realtime"
	"github.com/skillswap/backend/internal/repositories"
	"github.com/skillswap/backend/internal/storage"
	"github.com/skillswap/backend/internal/swaps"
)

const (
	notifySendTimeout = 15 * time.Second
	limiterTTL        = 10 * time.Minute
)

// memoryDatabaseURL selects the in-process store instead of PostgreSQL.
const memoryDatabaseURL = "memory://"

// stores bundles the repositories one storage backend provides.
type stores struct {
	users    repositories.UserRepository
	profiles repositories.ProfileRepository
	requests repositories.RequestRepository
	sessions auth.SessionStore
	ping     func(ctx context.Context) error
	close    func()
}

func postgresStores(pool db.Pool) stores {
	return stores{
		users:    repositories.NewPostgresUserRepository(pool),
		profiles: repositories.NewPostgresProfileRepository(pool),
		requests: repositories.NewPostgresRequestRepository(pool),
		sessions: repositories.NewPostgresSessionStore(pool),
		ping:     pool.Ping,
		close:    pool.Close,
	}
}

func memoryStores() stores {
	store := repositories.NewMemoryStore()
	return stores{
		users:    store.Users(),
		profiles: store.Profiles(),
		requests: store.Requests(),
		sessions: auth.NewInMemorySessionStore(),
		ping:     func(context.Context) error { return nil },
		close:    func() {},
	}
}

// openStores connects to PostgreSQL, or keeps everything in memory when the
// database URL is memory://. Memory mode is refused in production.
func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	if strings.TrimSpace(cfg.DatabaseURL) != memoryDatabaseURL {
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return stores{}, err
		}
		return postgresStores(pool), nil
	}
	if cfg.IsProduction() {
		return stores{}, errors.New("the in-memory store cannot be used in production")
	}
	slog.Warn("using the in-memory store; data is lost on restart")
	return memoryStores(), nil
}

// buildDependencies wires together concrete implementations used by the HTTP
// handlers. The returned cleanup drains the notification queue and closes the
// change feed connection.
func buildDependencies(ctx context.Context, st stores, cfg config.Config) (handlers.Dependencies, func(context.Context) error, error) {
	logger := slog.Default()

	feed, closeFeed, err := buildFeed(ctx, cfg)
	if err != nil {
		return handlers.Dependencies{}, nil, err
	}

	uploader, err := buildUploader(ctx, cfg)
	if err != nil {
		closeFeed()
		return handlers.Dependencies{}, nil, err
	}

	var sender notify.Sender = notify.LogSender{}
	if key := strings.TrimSpace(cfg.Mail.SendGridAPIKey); key != "" {
		sender = notify.NewSendGridSender(key, cfg.Mail.FromEmail)
	}
	dispatcher := notify.NewDispatcher(sender, cfg.SiteURL)
	queue := notify.NewQueue(dispatcher, notify.QueueConfig{
		QueueSize:   cfg.Notify.QueueSize,
		Workers:     cfg.Notify.Workers,
		SendTimeout: notifySendTimeout,
	}, logger)

	sessions := auth.NewManager(cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL,
		auth.NewTokenSigner(cfg.Auth.JWTSecret), st.sessions)
	sessions.Users = st.users

	deps := handlers.Dependencies{
		Users:          st.users,
		Sessions:       sessions,
		Authenticator:  sessions,
		AuthLimiter:    middleware.NewIPRateLimiter(cfg.Auth.RateRequests, cfg.Auth.RateWindow, cfg.Auth.RateBurst, limiterTTL),
		NotifyLimiter:  middleware.NewIPRateLimiter(cfg.Notify.RateRequests, time.Minute, cfg.Notify.RateBurst, limiterTTL),
		Profiles:       profiles.NewService(st.profiles, uploader, feed),
		Directory:      directory.New(st.profiles),
		Requests:       swaps.NewLedger(st.requests, st.profiles, queue, feed),
		Notifications:  dispatcher,
		Feed:           feed,
		HealthCheck:    st.ping,
		AllowedOrigins: cfg.AllowedOrigins,
	}

	cleanup := func(ctx context.Context) error {
		err := queue.Shutdown(ctx)
		closeFeed()
		return err
	}
	return deps, cleanup, nil
}

func buildFeed(ctx context.Context, cfg config.Config) (realtime.Feed, func(), error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return realtime.NewMemoryFeed(), func() {}, nil
	}
	rdb, err := realtime.Connect(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return realtime.NewRedisFeed(rdb), func() {
		if err := rdb.Close(); err != nil {
			slog.Warn("close redis client", "error", err)
		}
	}, nil
}

func buildUploader(ctx context.Context, cfg config.Config) (profiles.Uploader, error) {
	if strings.TrimSpace(cfg.ObjectStore.Bucket) == "" {
		if cfg.IsProduction() {
			return nil, errors.New("SKILLSWAP_S3_BUCKET is required in production")
		}
		slog.Warn("no object store bucket configured; profile pictures are kept in memory")
		return storage.NewMemoryStorage(cfg.SiteURL + "/uploads"), nil
	}
	return storage.NewS3Storage(ctx, cfg.ObjectStore)
}
