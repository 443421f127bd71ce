package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/assetiq/assetiq/internal/bootstrap"
	"github.com/assetiq/assetiq/internal/config"
	"github.com/assetiq/assetiq/internal/infrastructure/ingest"
	"github.com/assetiq/assetiq/internal/observability/logging"
	"github.com/assetiq/assetiq/internal/observability/metrics"
)

const serviceName = "worker"

func main() {
	cfg := config.Load()
	slog.SetDefault(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName)
	if err != nil {
		slog.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:    ":" + cfg.WorkerMetricsPort,
		Handler: workerMetrics.Handler(),
	}
	go func() {
		slog.Info("worker_metrics_listening", "port", cfg.WorkerMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker_metrics_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	proc := &processor{app: app, metrics: workerMetrics}

	err = app.Queue.SubscribeDocumentIngested(ctx, func(handlerCtx context.Context, documentID string) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, 5*time.Minute)
		defer cancel()
		return proc.process(processCtx, documentID)
	})
	if err != nil {
		slog.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
	slog.Info("worker_subscribed", "subject", "documents.ingested")

	<-ctx.Done()
	slog.Info("worker_shutting_down")
}

type processor struct {
	app     *bootstrap.App
	metrics *metrics.WorkerMetrics
}

// process ingests one stored document identified by its storage key. The
// extension picks the reader: .xlsx is an asset register, .pdf a reference
// document.
func (p *processor) process(ctx context.Context, key string) (err error) {
	kind := strings.TrimPrefix(strings.ToLower(filepath.Ext(key)), ".")
	start := time.Now()
	p.metrics.StartIngest()
	defer func() {
		p.metrics.FinishIngest(serviceName, kind, time.Since(start), err)
	}()

	slog.Info("ingest_started", "key", key, "kind", kind)

	var unitCount int
	switch kind {
	case "xlsx":
		unitCount, err = p.ingestWorkbook(ctx, key)
	case "pdf":
		unitCount, err = p.ingestPDF(ctx, key)
	default:
		err = fmt.Errorf("unsupported document type %q", kind)
	}
	if err != nil {
		slog.Error("ingest_failed", "key", key, "error", err)
		return err
	}

	p.metrics.AddUnitsIndexed(serviceName, kind, unitCount)

	// Queries must see the new data: flush caches and reload term stats.
	if err := p.app.Queue.PublishRecordsChanged(ctx, key); err != nil {
		slog.Warn("records_changed_publish_failed", "key", key, "error", err)
	}

	slog.Info("ingest_finished", "key", key, "units", unitCount, "duration_ms", time.Since(start).Milliseconds())
	return nil
}

func (p *processor) ingestWorkbook(ctx context.Context, key string) (int, error) {
	rc, err := p.app.Storage.Open(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("open stored workbook: %w", err)
	}
	defer rc.Close()

	records, err := ingest.ReadWorkbook(rc)
	if err != nil {
		return 0, fmt.Errorf("read workbook: %w", err)
	}
	if err := p.app.Pipeline.IngestRecords(ctx, records); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (p *processor) ingestPDF(ctx context.Context, key string) (int, error) {
	// The PDF reader needs random access; spool the object to a temp file.
	rc, err := p.app.Storage.Open(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("open stored document: %w", err)
	}
	defer rc.Close()

	tmp, err := os.CreateTemp("", "assetiq-ingest-*.pdf")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, rc); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("spool document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}

	segments, err := ingest.ReadPDF(tmp.Name())
	if err != nil {
		return 0, fmt.Errorf("read pdf: %w", err)
	}
	if err := p.app.Pipeline.IngestDocument(ctx, key, segments); err != nil {
		return 0, err
	}
	return len(segments), nil
}
