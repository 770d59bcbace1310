package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/couchcryptid/mesh-distance-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/mesh-distance-service/internal/adapter/kafka"
	"github.com/couchcryptid/mesh-distance-service/internal/adapter/sensorhub"
	"github.com/couchcryptid/mesh-distance-service/internal/config"
	"github.com/couchcryptid/mesh-distance-service/internal/display"
	"github.com/couchcryptid/mesh-distance-service/internal/domain"
	"github.com/couchcryptid/mesh-distance-service/internal/node"
	"github.com/couchcryptid/mesh-distance-service/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	// Sensor source (feature-flagged via SENSORHUB_ENABLED / SENSORHUB_URL).
	var fetcher sensorhub.Fetcher
	if cfg.SensorHubEnabled {
		fetcher = sensorhub.NewClient(cfg.SensorHubURL, cfg.SensorHubTimeout, metrics, logger)
		logger.Info("sensor hub enabled", "url", cfg.SensorHubURL, "timeout", cfg.SensorHubTimeout)
	} else {
		fetcher = sensorhub.DefaultStatic()
		logger.Info("sensor hub disabled, using static readings")
	}
	sensors := sensorhub.NewCachedSensors(fetcher, cfg.SensorCacheTTL, nil)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transport := kafkaadapter.NewTransport(reader, writer)

	screen := display.NewLogger(logger)
	est := domain.NewEstimator(domain.SelfState{Name: cfg.NodeName, Address: cfg.NodeAddress}, domain.MaxNodes, nil)
	n := node.New(est, transport, sensors, screen, logger, metrics, node.Options{
		PublishInterval: cfg.PublishInterval,
		SensorInterval:  cfg.SensorInterval,
		TTL:             cfg.DefaultTTL,
	})

	srv := httpadapter.NewServer(cfg.HTTPAddr, n, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start node loop.
	go func() {
		if err := n.Run(ctx); err != nil {
			logger.Error("node error", "error", err)
		}
	}()

	go refreshScreens(ctx, n, screen, cfg.PublishInterval)

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := transport.Close(); err != nil {
		logger.Error("kafka transport close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// refreshScreens redraws the node and statistics screens periodically.
func refreshScreens(ctx context.Context, n *node.Node, screen *display.Logger, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			snap := n.Snapshot()
			screen.ShowScreen("nodes", display.NodeScreen(snap))
			screen.ShowScreen("statistics", display.StatisticsScreen(snap))
		}
	}
}
