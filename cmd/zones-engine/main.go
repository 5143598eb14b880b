package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miradorstack/mirador-zones/internal/api"
	"github.com/miradorstack/mirador-zones/internal/cache"
	"github.com/miradorstack/mirador-zones/internal/config"
	"github.com/miradorstack/mirador-zones/internal/engine"
	"github.com/miradorstack/mirador-zones/internal/metrics"
	"github.com/miradorstack/mirador-zones/internal/models"
	"github.com/miradorstack/mirador-zones/internal/patterns"
	"github.com/miradorstack/mirador-zones/internal/repo"
	"github.com/miradorstack/mirador-zones/internal/services"
	"github.com/miradorstack/mirador-zones/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	logger.Info("starting mirador-zones",
		slog.String("http_address", cfg.Server.HTTPAddress),
		slog.String("grpc_address", cfg.Server.GRPCAddress),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}

	var cacheProvider cache.Provider = cache.NewMemoryProvider()
	if cfg.Cache.Enabled {
		provider, err := cache.NewRedisProvider(cache.RedisConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("redis cache unavailable, using in-process cache", slog.Any("error", err))
		} else {
			cacheProvider = provider
		}
	}
	defer cacheProvider.Close()

	fileStore := repo.NewFileStore(cfg.Dataset.Path, cfg.Dataset.Columns, logger)
	store := repo.NewCachedStore(fileStore, cacheProvider, cfg.Cache.DatasetTTL, logger)
	miner := patterns.NewMiner(logger, store)
	pipeline := engine.NewPipeline(logger, cfg.IngestOptions(), store, miner)

	zoneService := services.NewZoneService(logger, pipeline, store, store, miner, services.Options{
		TerminalZone:      cfg.Analysis.TerminalZone,
		ScenarioSeparator: cfg.Analysis.ScenarioSeparator,
		DefaultMinDays:    cfg.Analysis.DefaultMinDays,
		MaxMinDays:        cfg.Analysis.MaxMinDays,
	})

	if cfg.Dataset.LoadOnStart {
		restoreCtx, cancelRestore := context.WithTimeout(context.Background(), 30*time.Second)
		if _, err := zoneService.Restore(restoreCtx); err != nil {
			if errors.Is(err, models.ErrNoDataset) {
				logger.Info("no persisted dataset to restore", slog.String("path", cfg.Dataset.Path))
			} else {
				logger.Warn("dataset restore failed", slog.Any("error", err))
			}
		}
		cancelRestore()
	}

	server, err := api.NewServer(cfg.Server, api.NewGRPCService(logger, zoneService, cfg.Analysis.ScenarioSeparator))
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}

	router := api.NewRouter(zoneService, api.RouterOptions{
		Columns:        cfg.Dataset.Columns,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		Logger:         logger,
	})
	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddress,
		Handler:           handlers.CombinedLoggingHandler(os.Stdout, router),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	go func() {
		logger.Info("http server listening", slog.String("address", cfg.Server.HTTPAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server exited", slog.Any("error", err))
			stop()
		}
	}()

	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warn("http server shutdown", slog.Any("error", err))
	}
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	logger.Info("mirador-zones stopped", slog.Duration("upload_p95", zoneService.LatencyP95()))
}
