package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/therealutkarshpriyadarshi/watchswap/internal/access"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/cache"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/config"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/database"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/exchange"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/logging"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/metrics"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/middleware"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/moderation"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/monitoring"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/notify"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/queue"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/scheduler"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/session"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/settings"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/storage"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/tracing"
)

// Store is everything the API process needs from persistence
type Store interface {
	exchange.Store
	settings.Store
	monitoring.TaskSource
}

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize tracing
	_, tracerCloser, err := tracing.InitTracer(cfg.Tracing)
	if err != nil {
		logger.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer tracerCloser.Close()

	// Initialize store
	store, closeStore, err := openStore(ctx, cfg.Database, logger)
	if err != nil {
		logger.Fatalf("Failed to open store: %v", err)
	}
	defer closeStore()

	// Settings mirror
	settingsSvc := settings.NewService(store, cfg.Exchange.DefaultSubPrice, logger)
	if err := settingsSvc.Init(ctx); err != nil {
		logger.Fatalf("Failed to load settings: %v", err)
	}

	// Redis backs drafts and upload quotas
	var drafts *session.Manager
	var window middleware.WindowCounter
	var cachePing Pinger
	redisCache, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.WithError(err).Warn("Redis unavailable, drafts and upload quotas disabled")
	} else {
		defer redisCache.Close()
		drafts = session.NewManager(redisCache, cfg.Redis.DraftTTL)
		window = redisCache
		cachePing = redisCache
	}

	// Object storage for thumbnails and proofs
	var media exchange.Media
	var uploader MediaUploader
	stor, err := storage.New(cfg.Storage, logger)
	if err != nil {
		logger.WithError(err).Warn("Object storage unavailable, uploads disabled")
	} else {
		media = stor
		uploader = stor
	}

	// Notifications: proof_submitted goes straight to the gateway, the rest
	// through the outbox
	var publisher notify.Publisher
	var depths monitoring.QueueProvider
	q, err := queue.New(cfg.Queue, logger)
	if err != nil {
		logger.WithError(err).Warn("Queue unavailable, delivering notifications directly")
	} else {
		defer q.Close()
		publisher = q
		depths = q
	}
	notifier := notify.NewRouter(notify.NewGateway(cfg.Gateway), publisher, logger)

	// Review timers and the exchange
	timers := scheduler.NewReviewTimers(cfg.Exchange.NotificationTimeout, logger)
	gate := access.NewGate(
		access.StatusGuard(),
		access.SubscriptionGuard(settingsSvc, time.Duration(cfg.Exchange.TrialPeriodDays)*24*time.Hour),
	)
	svc := exchange.NewService(exchange.Dependencies{
		Store:    store,
		Timers:   timers,
		Notifier: notifier,
		Gate:     gate,
		Settings: settingsSvc,
		Scanner:  moderation.NewScanner(cfg.Moderation.Denylist),
		Media:    media,
		Logger:   logger,
	}, exchange.ConfigFrom(cfg))
	timers.SetCallback(svc.AutoApprove)

	if _, err := svc.RearmPendingReviews(ctx); err != nil {
		logger.Fatalf("Failed to re-arm review timers: %v", err)
	}

	// Backlog monitor, which also resolves reviews whose timers were lost
	monitor := monitoring.NewMonitor(store, depths, cfg.Exchange.ReviewTimeout, cfg.Exchange.SweepGrace, svc.AutoApprove, logger)
	go monitor.Start(ctx, cfg.Exchange.SweepInterval)

	// Metrics server
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	go limiter.Cleanup(ctx, 10*time.Minute)

	api := &API{
		exchange:       svc,
		settings:       settingsSvc,
		drafts:         drafts,
		media:          uploader,
		monitor:        monitor,
		cache:          cachePing,
		limiter:        limiter,
		window:         window,
		jwtSecret:      cfg.Auth.JWTSecret,
		uploadsPerHour: cfg.Server.UploadsPerHour,
		logger:         logger,
	}

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      setupRouter(api),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Error("Metrics server forced to shutdown")
		}
	}
	cancel()
	timers.Stop()

	logger.Info("Server stopped")
}

// openStore connects to the configured store. Postgres is migrated before
// use; the memory driver starts empty.
func openStore(ctx context.Context, cfg config.DatabaseConfig, logger *logging.Logger) (Store, func(), error) {
	if cfg.Driver == "memory" {
		logger.Warn("Using in-memory store, data is lost on restart")
		return database.NewMemoryStore(), func() {}, nil
	}

	db, err := database.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.Info("Database migrations applied")
	return database.NewRepository(db), db.Close, nil
}
