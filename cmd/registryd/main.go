// Command registryd serves the person registry API: entity reads, the match
// write endpoint, storage inspection, and person-record transfer jobs.
package main

import (
	"context"
	"expvar"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"linkreview/internal/api"
	"linkreview/internal/blob"
	"linkreview/internal/observability"
	"linkreview/internal/registry"
	"linkreview/internal/transfer"
)

const (
	envAddr     = "LINKREVIEW_ADDR"
	envSeedPath = "LINKREVIEW_SEED_PATH"
)

func main() {
	ctx := context.Background()
	logger := observability.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	persist, err := registry.OpenPersistentStore()
	if err != nil {
		logger.Error("open persistence", "error", err)
		os.Exit(1)
	}
	blobs, err := blob.Open(ctx)
	if err != nil {
		logger.Error("open blob storage", "error", err)
		os.Exit(1)
	}

	promReg := prometheus.NewRegistry()
	promRec, err := observability.NewPrometheusMetricsRecorder("", promReg)
	if err != nil {
		logger.Error("register metrics", "error", err)
		os.Exit(1)
	}
	metrics := observability.MultiMetrics{
		promRec,
		observability.NewExpvarMetricsRecorder("linkreview_registry"),
	}

	store := registry.NewStore(persist,
		registry.WithStoreLogger(logger),
		registry.WithStoreMetrics(metrics),
	)
	if seedPath := os.Getenv(envSeedPath); seedPath != "" {
		if err := store.SeedFromFile(ctx, seedPath); err != nil {
			logger.Error("seed registry", "path", seedPath, "error", err)
			os.Exit(1)
		}
	}
	transfers := transfer.NewService(store, blobs, logger)
	handler := api.NewHandler(store, blobs, transfers, logger)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/", handler)
	mux.Handle("/metrics", promhttp.HandlerFor(promReg, promhttp.HandlerOpts{}))
	mux.Handle("/debug/vars", expvar.Handler())

	addr := os.Getenv(envAddr)
	if addr == "" {
		addr = ":8080"
	}
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("registry listening", "addr", addr, "blob_driver", blobs.Driver())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
