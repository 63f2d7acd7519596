package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/arcade-progress/internal/config"
	"github.com/arcade-progress/internal/handler"
	"github.com/arcade-progress/internal/kafka"
	"github.com/arcade-progress/internal/metrics"
	"github.com/arcade-progress/internal/service"
	"github.com/arcade-progress/internal/websocket"
	"github.com/arcade-progress/internal/worker"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, cfgErr := config.Load(*configPath)
	if cfgErr != nil {
		var err error
		if cfg, err = config.FromEnv(); err != nil {
			cfg = config.DefaultConfig()
		}
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.SlogLevel(),
	}))
	slog.SetDefault(logger)
	if cfgErr != nil {
		logger.Warn("failed to load config file, using environment and defaults", "error", cfgErr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := metrics.New()

	be, err := openBackend(ctx, cfg, rec, logger)
	if err != nil {
		logger.Error("failed to open storage backend", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}
	defer be.Close()

	wsHub := websocket.NewHub(logger)
	wsHub.SetMetrics(rec)
	go wsHub.Run()
	logger.Info("WebSocket hub initialized")

	progressService := service.NewProgressService(be.store, &cfg.Limits, logger)
	progressService.SetMetrics(rec)
	progressService.SetNotifier(wsHub)
	if be.leaderboard != nil {
		progressService.SetLeaderboard(be.leaderboard)
	} else {
		logger.Info("global leaderboards disabled for this backend", "backend", cfg.Storage.Backend)
	}

	var broadcaster *worker.LeaderboardBroadcaster
	if cfg.Broadcast.Enabled && be.leaderboard != nil {
		broadcaster = worker.NewLeaderboardBroadcaster(be.leaderboard, wsHub, &cfg.Broadcast, logger)
		broadcaster.SetMetrics(rec)
		if err := broadcaster.Start(ctx); err != nil {
			logger.Error("failed to start leaderboard broadcaster", "error", err)
			os.Exit(1)
		}
	}

	var kafkaConsumer *kafka.Consumer
	if cfg.Kafka.Enabled {
		logger.Info("initializing Kafka consumer",
			"brokers", cfg.Kafka.Brokers,
			"topic", cfg.Kafka.Topic,
		)
		kafkaConsumer, err = kafka.NewConsumer(&cfg.Kafka, progressService, logger)
		if err != nil {
			logger.Warn("failed to create Kafka consumer, continuing without Kafka", "error", err)
		} else {
			kafkaConsumer.SetMetrics(rec)
			if err := kafkaConsumer.Start(); err != nil {
				logger.Warn("failed to start Kafka consumer, continuing without Kafka", "error", err)
				kafkaConsumer = nil
			} else {
				logger.Info("Kafka consumer started successfully")
			}
		}
	}

	httpHandler := handler.NewHandler(progressService, wsHub, rec, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      httpHandler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("starting HTTP server", "port", cfg.Server.Port, "backend", cfg.Storage.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server", "error", err)
	}

	if kafkaConsumer != nil {
		if err := kafkaConsumer.Stop(); err != nil {
			logger.Error("failed to stop Kafka consumer", "error", err)
		}
	}

	if broadcaster != nil {
		if err := broadcaster.Stop(); err != nil {
			logger.Error("failed to stop leaderboard broadcaster", "error", err)
		}
	}

	wsHub.Stop()

	logger.Info("server stopped")
}
