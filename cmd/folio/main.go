package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/folio/pkg/api"
	"github.com/platinummonkey/folio/pkg/audit"
	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/blob"
	"github.com/platinummonkey/folio/pkg/config"
	"github.com/platinummonkey/folio/pkg/database"
	"github.com/platinummonkey/folio/pkg/middleware"
	"github.com/platinummonkey/folio/pkg/observability"
	"github.com/platinummonkey/folio/pkg/users"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "folio: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.LogLevel(), os.Stdout).WithField("service", "folio")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	otel, err := observability.InitOTel(ctx, cfg.OTel(), logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := observability.ShutdownOTel(shutdownCtx, otel); err != nil {
			logger.WithError(err).Warn("failed to shut down OpenTelemetry")
		}
	}()

	db, err := database.Open(ctx, database.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := database.Migrate(ctx, db, database.Postgres)
	if err != nil {
		return err
	}
	logger.WithField("versions", applied).Info("database migrations applied")

	if cfg.Auth.AdminUsername != "" {
		created, err := users.NewStore(db).EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword)
		if err != nil {
			return err
		}
		if created {
			logger.WithField("username", cfg.Auth.AdminUsername).Info("seeded super admin account")
		}
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)
	observability.RegisterDBStats(registry, db)

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = database.NewRedisClient(ctx, database.RedisConfig{
			URL:        cfg.Redis.URL,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			MaxRetries: cfg.Redis.MaxRetries,
			PoolSize:   cfg.Redis.PoolSize,
		})
		if err != nil {
			return err
		}
		defer redisClient.Close()
	}

	store, err := blob.New(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	blobs := blob.WithMetrics(store, metrics)

	auditLogger, auditStore, err := buildAudit(db, cfg.Audit, logger)
	if err != nil {
		return err
	}
	defer auditLogger.Close()

	server := api.NewServer(api.Deps{
		DB:             db,
		Tokens:         auth.NewTokenManager(cfg.Auth.TokenSecret, cfg.Auth.TokenTTL),
		Blobs:          blobs,
		Logger:         logger,
		Metrics:        metrics,
		Audit:          auditLogger,
		AuditStore:     auditStore,
		LoginLimiter:   loginLimiter(ctx, cfg.Auth, redisClient),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		SecureCookie:   cfg.Auth.SecureCookie,
		ResolverSize:   cfg.Auth.ResolverSize,
		ResolverTTL:    cfg.Auth.ResolverTTL,
	})

	health := observability.NewHealthChecker(db, redisClient, version)
	health.AddChecker("blob_store", blobs)
	healthMux := http.NewServeMux()
	observability.RegisterHealthRoutes(healthMux, health)
	if cfg.Observability.MetricsEnabled {
		observability.RegisterMetricsEndpoint(healthMux, registry)
	}

	scheduler := cron.New()
	if auditStore != nil {
		job := audit.NewRetentionJob(auditStore, audit.RetentionPolicy{RetentionDays: cfg.Audit.RetentionDays}, logger, metrics.AuditRowsPurgedTotal)
		if _, err := job.Schedule(scheduler, cfg.Audit.RetentionSchedule); err != nil {
			return err
		}
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	apiServer := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	healthServer := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.HealthPort),
		Handler: healthMux,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return serve(apiServer, logger.WithField("server", "api")) })
	g.Go(func() error { return serve(healthServer, logger.WithField("server", "health")) })
	if path := os.Getenv(config.ConfigFileEnv); path != "" {
		g.Go(func() error {
			return config.Watch(gctx, path, func(next *config.Config) {
				logger.SetLevel(next.LogLevel())
				logger.WithField("log_level", next.LogLevel().String()).Info("configuration reloaded")
			}, func(err error) {
				logger.WithError(err).Warn("ignoring invalid configuration reload")
			})
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return errors.Join(apiServer.Shutdown(shutdownCtx), healthServer.Shutdown(shutdownCtx))
	})

	return g.Wait()
}

func serve(srv *http.Server, logger *observability.Logger) error {
	logger.Infof("listening on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s: %w", srv.Addr, err)
	}
	return nil
}

// buildAudit fans events out to the log stream and, when enabled, the
// audit_logs table. The returned store is nil without the table.
func buildAudit(db *sql.DB, cfg config.AuditConfig, logger *observability.Logger) (*audit.MultiLogger, audit.Store, error) {
	stream := audit.NewLogrusLogger(logger.WithField("component", "audit"))
	if !cfg.DatabaseEnabled {
		return audit.NewMultiLogger(stream), nil, nil
	}

	dbLogger, err := audit.NewDBLogger(db)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise audit table: %w", err)
	}
	return audit.NewMultiLogger(stream, dbLogger), dbLogger, nil
}

func loginLimiter(ctx context.Context, cfg config.AuthConfig, redisClient *redis.Client) middleware.Limiter {
	limits := &middleware.RateLimitConfig{
		RequestsPerWindow: cfg.LoginRateLimit,
		WindowDuration:    cfg.LoginWindow,
	}
	if redisClient != nil {
		return middleware.NewDistributedRateLimiter(redisClient, limits, "folio:ratelimit")
	}
	limiter := middleware.NewRateLimiter(limits)
	limiter.StartCleanup(ctx)
	return limiter
}
