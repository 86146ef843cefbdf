package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/abtime"

	"github.com/linkrelay/panel/internal/api"
	"github.com/linkrelay/panel/internal/api/session"
	"github.com/linkrelay/panel/internal/core/ports"
	"github.com/linkrelay/panel/internal/core/service"
	mongostore "github.com/linkrelay/panel/internal/infrastructure/db/mongo"
	"github.com/linkrelay/panel/internal/infrastructure/db/postgres"
	redisstore "github.com/linkrelay/panel/internal/infrastructure/db/redis"
	"github.com/linkrelay/panel/internal/infrastructure/http/handlers"
	"github.com/linkrelay/panel/internal/infrastructure/queue"
	"github.com/linkrelay/panel/internal/infrastructure/ratelimit"
	jwtsession "github.com/linkrelay/panel/internal/infrastructure/session"
	"github.com/linkrelay/panel/internal/pkg/config"
	"github.com/linkrelay/panel/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// stores bundles the repositories of the selected backend.
type stores struct {
	actors ports.ActorRepository
	status ports.StatusRepository
	audit  ports.AuditRepository
	checks map[string]handlers.Check
	close  func()
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("load config")
	}

	log := logger.Init(logger.Options{Level: cfg.LogLevel, Pretty: cfg.LogPretty, Service: "panel"})

	secret, err := cfg.JWTSecretOrFallback(log)
	if err != nil {
		log.Fatal().Err(err).Msg("refusing to start")
	}
	clock := abtime.NewRealTime()
	codec, err := jwtsession.NewJWTCodec(secret, clock)
	if err != nil {
		log.Fatal().Err(err).Msg("session codec")
	}

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("open store")
	}
	defer st.close()
	log.Info().Str("driver", cfg.StoreDriver).Msg("store connected")

	limiter, err := openLimiter(ctx, cfg, clock, st.checks)
	if err != nil {
		log.Fatal().Err(err).Str("backend", cfg.RateLimit.Backend).Msg("open rate limiter")
	}

	// Workers outlive the signal context so they can drain queued events.
	workerCtx, stopWorkers := context.WithCancel(context.Background())
	dispatcher := queue.NewDispatcher(cfg.Audit.Workers, st.audit, log)
	dispatcher.Start(workerCtx)

	hasher := service.NewBcryptHasher(service.DefaultBcryptCost)
	authSvc := service.NewAuthService(st.actors, hasher, limiter, dispatcher, clock, log)
	identitySvc := service.NewIdentityService(st.actors)
	impersonationSvc := service.NewImpersonationService(st.actors, dispatcher, clock, log)
	accountSvc := service.NewAccountService(st.actors, st.status, hasher, dispatcher, clock, log)

	if cfg.Bootstrap.Username != "" && cfg.Bootstrap.Password != "" {
		admin, err := accountSvc.EnsureAdmin(ctx, cfg.Bootstrap.Username, cfg.Bootstrap.Password)
		if err != nil {
			log.Fatal().Err(err).Msg("bootstrap admin")
		}
		log.Info().Int64("admin_id", admin.ID).Str("username", admin.Username).Msg("bootstrap admin ready")
	}

	proxies, err := cfg.TrustedProxyNets()
	if err != nil {
		log.Fatal().Err(err).Msg("trusted proxies")
	}

	e := api.NewRouter(api.Deps{
		Auth:           authSvc,
		Identity:       identitySvc,
		Impersonation:  impersonationSvc,
		Accounts:       accountSvc,
		Sessions:       session.NewStore(codec, cfg.IsProduction()),
		Readiness:      st.checks,
		TrustedProxies: proxies,
		StaticDir:      cfg.StaticDir,
		Log:            log,
	})

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("http server listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}

	stopWorkers()
	dispatcher.Wait()
	log.Info().Msg("stopped")
}

func openStores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, db, err := mongostore.Connect(ctx, mongostore.Config{
			URI:             cfg.Mongo.URI,
			Database:        cfg.Mongo.Database,
			AppName:         "panel",
			MaxPoolSize:     cfg.Mongo.MaxPoolSize,
			SelectorTimeout: cfg.Mongo.ServerSelectionTimeout,
		})
		if err != nil {
			return nil, err
		}
		actors := mongostore.NewActorRepository(db)
		if err := actors.EnsureIndexes(ctx); err != nil {
			_ = client.Disconnect(context.Background())
			return nil, err
		}
		return &stores{
			actors: actors,
			status: mongostore.NewStatusRepository(db),
			audit:  mongostore.NewAuditRepository(db),
			checks: map[string]handlers.Check{
				"mongo": func(ctx context.Context) error { return client.Ping(ctx, nil) },
			},
			close: func() { _ = client.Disconnect(context.Background()) },
		}, nil
	default:
		db, err := postgres.Connect(ctx, postgres.Config{DSN: cfg.Postgres.DSN, Logger: logger.NewGormLogger(log)})
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			return nil, err
		}
		return &stores{
			actors: postgres.NewActorRepository(db),
			status: postgres.NewStatusRepository(db),
			audit:  postgres.NewAuditRepository(db),
			checks: map[string]handlers.Check{
				"postgres": func(ctx context.Context) error { return postgres.Ping(ctx, db) },
			},
			close: func() {
				if sqlDB, err := db.DB(); err == nil {
					_ = sqlDB.Close()
				}
			},
		}, nil
	}
}

// openLimiter registers a redis readiness check when the shared backend is
// selected. The memory store gets a background sweeper bound to ctx.
func openLimiter(ctx context.Context, cfg *config.Config, clock abtime.AbstractTime, checks map[string]handlers.Check) (ports.RateLimiter, error) {
	policy := cfg.ThrottlePolicy()
	if cfg.RateLimit.Backend == config.RateLimitRedis {
		client, err := redisstore.Connect(ctx, redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		return redisstore.NewRateLimiter(client, policy, clock), nil
	}
	mem := ratelimit.NewMemory(policy, clock)
	go mem.Run(ctx)
	return mem, nil
}
