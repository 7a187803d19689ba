package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/pscheid92/stockpulse/internal/adapter/httpserver"
	"github.com/pscheid92/stockpulse/internal/adapter/metrics"
	"github.com/pscheid92/stockpulse/internal/adapter/narrator"
	"github.com/pscheid92/stockpulse/internal/adapter/postgres"
	"github.com/pscheid92/stockpulse/internal/adapter/redis"
	"github.com/pscheid92/stockpulse/internal/adapter/telegram"
	"github.com/pscheid92/stockpulse/internal/adapter/xlsx"
	"github.com/pscheid92/stockpulse/internal/app"
	"github.com/pscheid92/stockpulse/internal/domain"
	"github.com/pscheid92/stockpulse/internal/platform/breaker"
	"github.com/pscheid92/stockpulse/internal/platform/config"
	"github.com/pscheid92/stockpulse/internal/platform/logging"
	"github.com/pscheid92/stockpulse/internal/platform/version"
)

const (
	startupTimeout        = 10 * time.Second
	cacheEvictionInterval = time.Minute
	digestRunTimeout      = 5 * time.Minute
	// digestLockTTL outlives a run so a slow instance cannot claim the slot twice.
	digestLockTTL = 10 * time.Minute
)

func setupConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		// Use log before slog is initialized
		log.Fatalf("Failed to load config: %v", err)
	}
	return cfg
}

func setupDB(cfg *config.Config, dbMetrics *metrics.DBMetrics) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, dbMetrics)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}

	if err := postgres.RunMigrationsWithLock(ctx, db); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}

	return db
}

func setupRedis(cfg *config.Config, reg prometheus.Registerer, breakerMetrics *metrics.BreakerMetrics) *goredis.Client {
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	defer cancel()

	cb := breaker.New("redis", breaker.DefaultSettings, breakerMetrics)
	client, err := redis.NewClient(ctx, cfg.RedisURL,
		redis.NewMetricsHook(metrics.NewRedisMetrics(reg)),
		redis.NewCircuitBreakerHook(cb),
	)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	return client
}

func setupNarrator(cfg *config.Config, breakerMetrics *metrics.BreakerMetrics) domain.Narrator {
	if !cfg.NarratorEnabled() {
		slog.Info("Forecast narration disabled (NARRATOR_API_KEY not set)")
		return nil
	}
	cb := breaker.New("narrator", breaker.DefaultSettings, breakerMetrics)
	return narrator.New(narrator.Config{
		BaseURL: cfg.NarratorBaseURL,
		APIKey:  cfg.NarratorAPIKey,
		Model:   cfg.NarratorModel,
		Timeout: cfg.NarratorTimeout,
	}, cb)
}

func setupNotifier(cfg *config.Config) domain.Notifier {
	if !cfg.DigestEnabled() {
		slog.Info("Telegram digest disabled (TELEGRAM_BOT_TOKEN not set)")
		return nil
	}
	notifier, err := telegram.NewNotifier(cfg.TelegramBotToken)
	if err != nil {
		slog.Error("Failed to create Telegram notifier", "error", err)
		os.Exit(1)
	}
	slog.Info("Telegram digest enabled", "bot", notifier.Username(), "schedule", cfg.DigestCron)
	return notifier
}

func runGracefulShutdown(cfg *config.Config, srv *httpserver.Server, scheduler *app.DigestScheduler, cancelBackground context.CancelFunc) <-chan struct{} {
	done := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}

		if scheduler != nil {
			scheduler.Stop(shutdownCtx)
		}
		cancelBackground()

		close(done)
	}()

	return done
}

func main() {
	clock := clockwork.NewRealClock()

	cfg := setupConfig()

	// Initialize structured logging
	logging.InitLogger(cfg.LogLevel, cfg.LogFormat)
	info := version.Get()
	slog.Info("Application starting", "env", cfg.AppEnv, "port", cfg.Port, "version", info.Version, "commit", info.Commit)

	reg := metrics.NewRegistry()
	breakerMetrics := metrics.NewBreakerMetrics(reg)

	pool := setupDB(cfg, metrics.NewDBMetrics(reg))
	defer pool.Close()

	redisClient := setupRedis(cfg, reg, breakerMetrics)
	defer func() { _ = redisClient.Close() }()

	backgroundCtx, cancelBackground := context.WithCancel(context.Background())
	defer cancelBackground()

	forecastCache := redis.NewForecastCacheRepo(redisClient, cfg.ForecastCacheTTL, metrics.NewCacheMetrics(reg))
	stopEviction := forecastCache.StartEvictionTimer(cacheEvictionInterval)
	defer stopEviction()
	go redis.NewForecastInvalidationSubscriber(redisClient, forecastCache).Start(backgroundCtx)

	notifier := setupNotifier(cfg)

	appSvc := app.NewService(app.Repositories{
		Users:      postgres.NewUserRepo(pool),
		Categories: postgres.NewCategoryRepo(pool),
		Materials:  postgres.NewMaterialRepo(pool),
		Usage:      postgres.NewUsageRepo(pool),
	}, app.Options{
		Cache:    forecastCache,
		Narrator: setupNarrator(cfg, breakerMetrics),
		Notifier: notifier,
		Exporter: xlsx.Exporter{},
		Metrics:  metrics.NewInventoryMetrics(reg),
	}, clock)

	var scheduler *app.DigestScheduler
	if notifier != nil {
		var err error
		scheduler, err = app.NewDigestScheduler(cfg.DigestCron, appSvc, redis.NewJobLock(redisClient, digestLockTTL), clock, digestRunTimeout)
		if err != nil {
			slog.Error("Failed to create digest scheduler", "error", err)
			os.Exit(1)
		}
		scheduler.Start(backgroundCtx)
	}

	srv, err := httpserver.NewServer(cfg, appSvc, clock, httpserver.Options{
		HealthChecks: []httpserver.HealthCheck{
			{Name: "postgres", Check: pool.Ping},
			{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		},
		MetricsHandler: metrics.Handler(reg),
		HTTPMetrics:    metrics.NewHTTPMetrics(reg),
	})
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}

	done := runGracefulShutdown(cfg, srv, scheduler, cancelBackground)

	if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	<-done
}
