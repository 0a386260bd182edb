// Command signalscoped is the SignalScope scoring service.
// It serves the signal ingestion and scoring API, the signal webhook
// endpoint, Prometheus metrics and a health check.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/signalscope/signalscope/internal/api"
	"github.com/signalscope/signalscope/internal/ingestion"
	"github.com/signalscope/signalscope/internal/metrics"
	"github.com/signalscope/signalscope/internal/platform"
	"github.com/signalscope/signalscope/internal/store"
	"github.com/signalscope/signalscope/internal/webhook"
	"github.com/signalscope/signalscope/pkg/config"
	"github.com/signalscope/signalscope/pkg/logging"
	"github.com/signalscope/signalscope/pkg/scoring"
)

func main() {
	settings, err := platform.LoadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load settings: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(settings.LogLevel, settings.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck

	if err := run(settings, log); err != nil {
		log.Fatal("signalscoped exited", zap.Error(err))
	}
}

func run(settings platform.Settings, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := platform.OpenDatabase(ctx, settings.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := platform.AutoMigrate(db, log); err != nil {
		return err
	}

	storage, closeStorage, err := openStorage(ctx, settings)
	if err != nil {
		return err
	}
	defer closeStorage()

	wc, err := config.LoadWeightConfig(settings.ScoringConfig)
	if err != nil {
		return fmt.Errorf("load scoring config: %w", err)
	}
	engine, err := scoring.NewEngine(wc)
	if err != nil {
		return err
	}

	// Initialize services
	rec := metrics.New()
	st := store.New(db)
	cache := api.NewRecordCache(settings.RecordCacheSize)
	svc := ingestion.NewService(st, storage, engine, log.Named("ingestion"),
		ingestion.WithConcurrency(settings.BatchConcurrency),
		ingestion.WithMetrics(rec),
		ingestion.WithOnScored(cache.Evict))

	// Set up HTTP routes
	mux := http.NewServeMux()
	api.NewHandler(st, svc, cache, rec, log.Named("api")).
		RegisterRoutes(mux, api.APIKeyAuth(settings.APIKey))

	if settings.WebhookSecret != "" {
		wh := webhook.NewHandler([]byte(settings.WebhookSecret), st, svc, rec, log.Named("webhook"))
		wh.OnChange = cache.Invalidate
		mux.Handle("POST /v1/webhooks/signals", wh)
	} else {
		log.Warn("webhook_secret not set; webhook endpoint disabled")
	}
	mux.Handle("GET /metrics", rec.Handler())
	mux.HandleFunc("GET /healthz", healthHandler(db))

	srv := &http.Server{
		Addr:    settings.Addr,
		Handler: api.CORS(api.Instrument(rec, log.Named("http"))(mux)),
	}

	if settings.RescoreInterval > 0 {
		go svc.RescoreEvery(ctx, settings.RescoreInterval)
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting signalscoped",
			zap.String("addr", settings.Addr),
			zap.String("storage", settings.StorageBackend),
			zap.Duration("rescore_interval", settings.RescoreInterval))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("timeout", settings.ShutdownTimeout))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), settings.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openStorage builds the record archive for the configured backend. The
// returned func releases backend resources.
func openStorage(ctx context.Context, settings platform.Settings) (ingestion.StorageClient, func(), error) {
	noop := func() {}
	switch settings.StorageBackend {
	case platform.StorageS3:
		s, err := ingestion.NewS3Storage(ctx, ingestion.S3Config{
			Bucket:    settings.S3Bucket,
			Region:    settings.S3Region,
			Endpoint:  settings.S3Endpoint,
			AccessKey: settings.S3AccessKey,
			SecretKey: settings.S3SecretKey,
		})
		return s, noop, err
	case platform.StorageGCS:
		s, err := ingestion.NewGCSStorage(ctx, settings.GCSBucket)
		if err != nil {
			return nil, noop, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return ingestion.NewLocalStorage(settings.LocalStoragePath), noop, nil
	}
}

func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := db.PingContext(r.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "database unreachable"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
