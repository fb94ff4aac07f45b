package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/quentinv/tenantguard/internal/api"
	"github.com/quentinv/tenantguard/internal/audit"
	"github.com/quentinv/tenantguard/internal/auth"
	"github.com/quentinv/tenantguard/internal/cache"
	"github.com/quentinv/tenantguard/internal/config"
	"github.com/quentinv/tenantguard/internal/database"
	"github.com/quentinv/tenantguard/internal/observability"
	"github.com/quentinv/tenantguard/internal/queue"
	"github.com/quentinv/tenantguard/internal/ratelimit"
	"github.com/quentinv/tenantguard/internal/tenant"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.RunMigrations(ctx, db, cfg.Database.MigrationsPath); err != nil {
		slog.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	redisUp := rdb.Ping(ctx).Err() == nil
	if !redisUp {
		slog.Warn("redis unavailable, using in-process session and counter stores", "addr", cfg.Redis.Addr)
	}

	// Sessions and rate counters live in redis so multiple API processes
	// share one view. Without redis both fall back to single-process
	// stores; correct, but not clusterable.
	var sessions auth.SessionStore
	var counters ratelimit.CounterStore
	if redisUp {
		sessions = auth.NewRedisSessionStore(rdb, cfg.Session.IdleTimeout)
		counters = ratelimit.NewRedisStore(cache.NewCache(rdb))
	} else {
		sessions = auth.NewMemorySessionStore(cfg.Session.IdleTimeout)
		mem := ratelimit.NewMemoryStore()
		go func() {
			for range time.Tick(5 * time.Minute) {
				mem.Sweep(time.Minute)
			}
		}()
		counters = mem
	}

	limiter, err := ratelimit.New(counters,
		ratelimit.QuotasPerMinute(cfg.RateLimit.Auth, cfg.RateLimit.Mutate, cfg.RateLimit.Export, cfg.RateLimit.Default),
		cfg.RateLimit.ExemptIPs)
	if err != nil {
		slog.Error("rate limiter setup failed", "error", err)
		os.Exit(1)
	}

	auditSvc := audit.NewService(db)
	queueClient := queue.NewClient(cfg.Redis)
	defer queueClient.Close()
	recorder := queue.NewRecorder(queueClient, auditSvc)

	dir := tenant.NewService(db)
	creds := auth.NewCredentialStore(db)
	apiKeys := auth.NewAPIKeys(db, cfg.Security.APIKeySecret)

	builder := auth.NewBuilder(sessions, dir, apiKeys, recorder,
		cfg.Security.StoreTimeout, cfg.Security.SuperadminEnabled)
	authMW := auth.NewMiddleware(builder, cfg.Session.CookieName)
	authSvc := auth.NewService(creds, sessions, dir, recorder)

	router := api.NewRouter(cfg, api.Deps{
		DB:       db,
		Redis:    rdb,
		Limiter:  limiter,
		Metrics:  observability.New(),
		AuthSvc:  authSvc,
		AuthMW:   authMW,
		APIKeys:  apiKeys,
		AuditSvc: auditSvc,
		Recorder: recorder,
	})
	handler := router.Setup()

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("starting API server", "addr", cfg.Addr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced shutdown", "error", err)
	}
	slog.Info("server stopped")
}
