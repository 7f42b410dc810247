package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/forcing-engine/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/forcing-engine/internal/adapter/kafka"
	"github.com/couchcryptid/forcing-engine/internal/config"
	"github.com/couchcryptid/forcing-engine/internal/observability"
	"github.com/couchcryptid/forcing-engine/internal/pipeline"
	"github.com/couchcryptid/forcing-engine/internal/tool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	params, err := config.LoadParams(cfg.ForcingConfigPath)
	if err != nil {
		logger.Error("failed to load parameter file", "path", cfg.ForcingConfigPath, "error", err)
		os.Exit(1)
	}
	forcing, err := config.LoadForcing(params, os.LookupEnv)
	if err != nil {
		logger.Error("invalid parameter file", "path", cfg.ForcingConfigPath, "error", err)
		os.Exit(1)
	}
	logger.Info("forcing configuration loaded",
		"products", len(forcing.Products),
		"layering", forcing.Layering.Enabled,
		"max_concurrent", forcing.MaxConcurrent,
	)

	runner := tool.NewExecRunner(forcing.Env, forcing.ToolTimeout, logger, metrics)
	orch := pipeline.NewOrchestrator(forcing, runner, logger, metrics,
		pipeline.WithWorkers(cfg.Workers),
		pipeline.WithLayering(forcing.Layering.Enabled),
	)

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)

	p := pipeline.New(reader, orch, writer, logger, metrics, cfg.BatchSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}

	logger.Info("shutdown complete", "stats", p.Stats())
}
