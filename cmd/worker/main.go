package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/therealutkarshpriyadarshi/watchswap/internal/config"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/logging"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/metrics"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/notify"
	"github.com/therealutkarshpriyadarshi/watchswap/internal/queue"
	"github.com/therealutkarshpriyadarshi/watchswap/pkg/models"
)

// prefetch bounds how many notifications are in flight at once
const prefetch = 10

func main() {
	replay := flag.Bool("replay-dead-letters", false, "move dead-lettered notifications back to the outbox instead of delivering")
	flag.Parse()

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
	logger = logger.WithComponent("worker")

	// Initialize queue
	q, err := queue.New(cfg.Queue, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	if *replay {
		// Each dead letter gets a fresh attempt budget
		err = q.ConsumeDLQ(ctx, func(n *models.Notification, reason string) error {
			logger.WithUserID(n.UserID).WithFields(map[string]interface{}{
				"notification_id": n.ID,
				"kind":            n.Kind,
				"reason":          reason,
			}).Info("Replaying dead-lettered notification")
			return q.RetryFromDLQ(ctx, n)
		})
		if err != nil {
			logger.Fatalf("Failed to consume dead letters: %v", err)
		}
	} else {
		handler := notify.DeliveryHandler(notify.NewGateway(cfg.Gateway), logger)
		if err := q.Consume(ctx, prefetch, handler); err != nil {
			logger.Fatalf("Failed to consume notifications: %v", err)
		}
	}

	logger.Info("Worker started, waiting for notifications...")

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down worker gracefully...")
	cancel()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Metrics server forced to shutdown")
		}
	}
	logger.Info("Worker stopped")
}
