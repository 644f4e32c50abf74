package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/grounded-rag/internal/bootstrap"
	"github.com/kirillkom/grounded-rag/internal/config"
	"github.com/kirillkom/grounded-rag/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewJSONLogger("ingest", "info").Error("config_error", "error", err)
		os.Exit(1)
	}
	logger := logging.NewJSONLogger("ingest", cfg.LogLevel).With("replica_id", cfg.ReplicaID)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	open := func(ctx context.Context) (corpusTool, func(), error) {
		app, err := bootstrap.New(ctx, cfg, "ingest", logger)
		if err != nil {
			return nil, nil, err
		}
		return appTool{app: app}, app.Close, nil
	}

	if err := newRootCmd(open, cfg.DocumentsPath).ExecuteContext(ctx); err != nil {
		logger.Error("ingest_failed", "error", err)
		os.Exit(1)
	}
}

type appTool struct {
	app *bootstrap.App
}

func (t appTool) IngestDirectory(ctx context.Context, dir string) (int, int, error) {
	return t.app.Process.IngestDirectory(ctx, dir)
}

func (t appTool) Rebuild(ctx context.Context) error {
	return t.app.Corpus.Rebuild(ctx)
}

func (t appTool) Clear(ctx context.Context) error {
	return t.app.Corpus.Clear(ctx)
}
