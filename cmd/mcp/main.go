package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/assetiq/assetiq/internal/adapters/mcp"
	"github.com/assetiq/assetiq/internal/bootstrap"
	"github.com/assetiq/assetiq/internal/config"
	"github.com/assetiq/assetiq/internal/observability/logging"
)

const serviceName = "mcp"

func main() {
	cfg := config.Load()
	// stdout carries the MCP protocol; logs must stay on stderr.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.ListenRecordChanges(ctx, serviceName); err != nil {
		slog.Error("record_change_subscribe_failed", "error", err)
		os.Exit(1)
	}

	srv := mcpadapter.NewServer(app.AnswerUC)
	slog.Info("mcp_serving_stdio")
	if err := srv.ServeStdio(ctx); err != nil {
		slog.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
