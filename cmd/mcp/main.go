package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/grounded-rag/internal/adapters/mcp"
	"github.com/kirillkom/grounded-rag/internal/bootstrap"
	"github.com/kirillkom/grounded-rag/internal/config"
	"github.com/kirillkom/grounded-rag/internal/observability/logging"
)

// stdout carries MCP JSON-RPC, so every log line goes to stderr.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(os.Stderr, "mcp", "info").Error("config_error", "error", err)
		os.Exit(1)
	}
	logger := logging.New(os.Stderr, "mcp", cfg.LogLevel).With("replica_id", cfg.ReplicaID)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, "mcp", logger)
	if err != nil {
		logger.Error("bootstrap_error", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Warmup(ctx, false); err != nil {
		logger.Error("warmup_error", "error", err)
		os.Exit(1)
	}
	go func() {
		if err := app.RunConsumers(ctx, false); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("consumer_error", "error", err)
		}
	}()

	server, err := mcpadapter.NewServer(app.Query, logger)
	if err != nil {
		logger.Error("mcp_init_error", "error", err)
		os.Exit(1)
	}
	logger.Info("mcp_serving_stdio", "model", cfg.CompletionModel())
	if err := server.ServeStdio(); err != nil {
		logger.Error("mcp_server_error", "error", err)
		os.Exit(1)
	}
}
