// Package app assembles the gateway from configuration: stores, token scheme,
// services, audit pipeline and HTTP router.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/sync/errgroup"

	"github.com/99minutos/upload-gateway/internal/api"
	"github.com/99minutos/upload-gateway/internal/api/handler"
	"github.com/99minutos/upload-gateway/internal/api/metrics"
	"github.com/99minutos/upload-gateway/internal/core/domain"
	"github.com/99minutos/upload-gateway/internal/core/ports"
	"github.com/99minutos/upload-gateway/internal/core/service"
	"github.com/99minutos/upload-gateway/internal/infrastructure/db/memory"
	mongodb "github.com/99minutos/upload-gateway/internal/infrastructure/db/mongo"
	redisdb "github.com/99minutos/upload-gateway/internal/infrastructure/db/redis"
	"github.com/99minutos/upload-gateway/internal/infrastructure/queue"
	"github.com/99minutos/upload-gateway/internal/infrastructure/storage"
	"github.com/99minutos/upload-gateway/internal/pkg/config"
)

const shutdownTimeout = 10 * time.Second

// App is a fully wired gateway.
type App struct {
	cfg *config.Config
	log zerolog.Logger

	Auth     *service.AuthService
	Sessions *service.SessionService
	Files    ports.FileService

	registry     *prometheus.Registry
	router       *echo.Echo
	dispatcher   *queue.Dispatcher
	memTokens    *memory.TokenStore
	healthChecks map[string]handler.Check

	mongoClient *mongo.Client
	redisClient *redis.Client
}

// New connects to the configured backends and builds every component.
// Call Close when done, even if Run is never called.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{
		cfg:          cfg,
		log:          log,
		registry:     prometheus.NewRegistry(),
		healthChecks: map[string]handler.Check{},
	}

	var db *mongo.Database
	if cfg.UsesMongo() {
		client, database, err := mongodb.Connect(ctx, mongodb.Config{URI: cfg.Mongo.URI, Database: cfg.Mongo.Database})
		if err != nil {
			return nil, err
		}
		a.mongoClient, db = client, database
		a.healthChecks["mongodb"] = handler.MongoCheck(db)
	}
	if cfg.UsesRedis() {
		rdb, err := redisdb.Connect(ctx, redisdb.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		a.redisClient = rdb
		a.healthChecks["redis"] = handler.RedisCheck(rdb)
	}

	// --- Audit ---
	var auditRepo ports.AuditRepository = queue.NewLogRepository(log)
	if db != nil {
		auditRepo = mongodb.NewAuditRepository(db)
	}
	a.dispatcher = queue.NewDispatcher(0, auditRepo, log)

	// --- Credentials ---
	var users ports.UserRepository
	var indexers []mongodb.Indexer
	switch cfg.UserStore {
	case "mongo":
		repo := mongodb.NewUserRepository(db)
		users, indexers = repo, append(indexers, repo)
	default:
		users = memory.NewUserRepository()
	}

	clients, err := memory.NewClientRepository(cfg.Auth.OAuthClients, cfg.Auth.BcryptCost)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	// --- Tokens ---
	var scheme ports.TokenScheme
	switch cfg.Auth.TokenScheme {
	case "jwt":
		jwtScheme, err := service.NewJWTScheme(cfg.Auth.JWTSecret, time.Now)
		if err != nil {
			a.Close(ctx)
			return nil, err
		}
		scheme = jwtScheme
	default:
		var store ports.TokenStore
		switch cfg.Auth.TokenStore {
		case "redis":
			store = redisdb.NewTokenStore(a.redisClient)
		case "mongo":
			repo := mongodb.NewTokenRepository(db)
			store, indexers = repo, append(indexers, repo)
		default:
			a.memTokens = memory.NewTokenStore()
			store = a.memTokens
		}
		scheme = service.NewOpaqueScheme(store, time.Now)
	}

	if len(indexers) > 0 {
		if err := mongodb.EnsureIndexes(ctx, indexers...); err != nil {
			a.Close(ctx)
			return nil, err
		}
	}

	a.Auth, err = service.NewAuthService(users, clients, scheme, service.AuthOptions{
		TokenTTL:   cfg.Auth.TokenTTL,
		BcryptCost: cfg.Auth.BcryptCost,
		Audit:      a.dispatcher,
		Logger:     log,
	})
	if err != nil {
		a.Close(ctx)
		return nil, err
	}

	// --- Sessions ---
	if cfg.Session.Enabled {
		var store ports.SessionStore
		if cfg.Session.Store == "redis" {
			store = redisdb.NewSessionStore(a.redisClient, cfg.Session.IdleTimeout)
		} else {
			store = memory.NewSessionStore(cfg.Session.IdleTimeout, 0)
		}
		a.Sessions = service.NewSessionService(store, time.Now)
	}

	// --- Files ---
	objects, err := newObjectStorage(ctx, cfg)
	if err != nil {
		a.Close(ctx)
		return nil, err
	}
	var idem ports.IdempotencyStore
	if a.redisClient != nil {
		idem = redisdb.NewIdempotencyStore(a.redisClient)
	}
	a.Files = service.NewFileService(objects, idem, a.dispatcher, cfg.Storage.MaxUploadBytes, log)

	log.Info().
		Str("token_scheme", scheme.Name()).
		Str("user_store", cfg.UserStore).
		Str("storage", objects.Name()).
		Bool("sessions", a.Sessions != nil).
		Bool("oauth_clients", clients.Enabled()).
		Msg("gateway assembled")

	return a, nil
}

func newObjectStorage(ctx context.Context, cfg *config.Config) (ports.ObjectStorage, error) {
	if cfg.Storage.Backend == "s3" {
		s3cfg := cfg.Storage.S3
		return storage.NewS3Storage(ctx, storage.S3Config{
			Bucket:       s3cfg.Bucket,
			Region:       s3cfg.Region,
			Endpoint:     s3cfg.Endpoint,
			AccessKey:    s3cfg.AccessKey,
			SecretKey:    s3cfg.SecretKey,
			UsePathStyle: s3cfg.UsePathStyle,
			Prefix:       cfg.Storage.Prefix,
			PresignTTL:   s3cfg.PresignTTL,
			CreateBucket: s3cfg.CreateBucket,
		})
	}
	return storage.NewLocalStorage(cfg.Storage.LocalDir, cfg.PublicBaseURL)
}

// SeedUsers creates every SEED_USERS account that does not exist yet.
func (a *App) SeedUsers(ctx context.Context) error {
	for _, entry := range a.cfg.SeedUsers {
		su, err := config.ParseSeedUser(entry)
		if err != nil {
			return err
		}
		_, err = a.Auth.CreateUser(ctx, su.Username, su.Password, su.Role)
		switch {
		case errors.Is(err, domain.ErrUserExists):
			a.log.Debug().Str("username", su.Username).Msg("seed user already present")
		case err != nil:
			return fmt.Errorf("seed user %q: %w", su.Username, err)
		default:
			a.log.Info().Str("username", su.Username).Str("role", su.Role).Msg("seed user created")
		}
	}
	return nil
}

// Router returns the HTTP handler for this App, building it on first use.
func (a *App) Router() *echo.Echo {
	if a.router != nil {
		return a.router
	}
	a.router = api.NewRouter(api.Deps{
		Auth:           a.Auth,
		Sessions:       a.sessions(),
		Files:          a.Files,
		TokenScheme:    a.cfg.Auth.TokenScheme,
		CookieName:     a.cfg.Session.CookieName,
		SecureCookie:   a.cfg.Session.Secure,
		MaxUploadBytes: a.cfg.Storage.MaxUploadBytes,
		HealthChecks:   a.healthChecks,
		Logger:         a.log,
		Registry:       a.registry,
	})
	return a.router
}

// sessions avoids handing the router a typed nil interface.
func (a *App) sessions() ports.SessionService {
	if a.Sessions == nil {
		return nil
	}
	return a.Sessions
}

// Run serves HTTP, drains audit events and sweeps expired tokens until ctx is
// cancelled, then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	e := a.Router()
	srv := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           e,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var sweeper *cron.Cron
	if a.memTokens != nil && a.cfg.Auth.SweepSchedule != "" {
		sweeper = cron.New()
		if _, err := sweeper.AddFunc(a.cfg.Auth.SweepSchedule, a.sweepTokens); err != nil {
			return fmt.Errorf("token sweep schedule: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	a.dispatcher.Start(ctx)

	if sweeper != nil {
		sweeper.Start()
		g.Go(func() error {
			<-gctx.Done()
			<-sweeper.Stop().Done()
			return nil
		})
	}

	g.Go(func() error {
		a.log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		a.log.Info().Msg("shutting down http server")
		err := srv.Shutdown(shutdownCtx)
		// Handlers still in flight during Shutdown may record audit events.
		a.dispatcher.Close()
		return err
	})

	return g.Wait()
}

func (a *App) sweepTokens() {
	n := a.memTokens.PurgeExpired(time.Now())
	if n > 0 {
		metrics.TokensPurgedTotal.Add(float64(n))
		a.log.Debug().Int("purged", n).Msg("expired tokens removed")
	}
}

// Close flushes pending audit events and releases database connections.
func (a *App) Close(ctx context.Context) {
	a.dispatcher.Close()
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn().Err(err).Msg("redis close failed")
		}
	}
	if a.mongoClient != nil {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := a.mongoClient.Disconnect(ctx); err != nil {
			a.log.Warn().Err(err).Msg("mongo disconnect failed")
		}
	}
}
