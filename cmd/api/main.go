package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/assetiq/assetiq/internal/adapters/http"
	"github.com/assetiq/assetiq/internal/bootstrap"
	"github.com/assetiq/assetiq/internal/config"
	"github.com/assetiq/assetiq/internal/observability/logging"
)

const serviceName = "api"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := httpadapter.ValidateOpenAPIDocument(ctx); err != nil {
		slog.Error("openapi_document_invalid", "error", err)
		os.Exit(1)
	}

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

	var synth httpadapter.AnswerSynthesizer
	if app.Generator != nil {
		synth = app.Generator
	}
	router := httpadapter.NewRouter(
		app.AnswerUC,
		synth,
		app.Table,
		app.Storage,
		app.Queue,
		app.HTTPMetrics,
		serviceName,
		cfg.RateLimitRPS,
		cfg.RateLimitBurst,
	)

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("api_shutdown_failed", "error", err)
	}
}
