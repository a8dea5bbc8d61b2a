package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/L4Nci/verejne-zakazky/internal/config"
	"github.com/L4Nci/verejne-zakazky/internal/domain"
	"github.com/L4Nci/verejne-zakazky/internal/httpserver"
	"github.com/L4Nci/verejne-zakazky/internal/ingest"
	"github.com/L4Nci/verejne-zakazky/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	db, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseDSN, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if err := db.InitSchema(context.Background()); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	logger.Info("connected to database", "driver", cfg.DatabaseDriver)

	svc := domain.NewQueryService(db, logger, cfg.PageSize)
	hub := httpserver.NewHub(logger)

	// Set up graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// Start the background ingestion loop
	if cfg.IngestEnabled {
		fetcher := ingest.NewFetcher(cfg.HTTPTimeout, logger)
		sources := []ingest.Source{
			ingest.NewNENSource(cfg.NENBaseURL, fetcher, logger),
		}
		runner := ingest.NewRunner(sources, db, cfg.IngestInterval, logger)
		runner.OnBatch = func(sourceID string, stats domain.UpsertStats) {
			if stats.Inserted == 0 && stats.Updated == 0 {
				return
			}
			hub.Broadcast(httpserver.UpdateEvent{
				Type:     "tenders_updated",
				Source:   sourceID,
				Inserted: stats.Inserted,
				Updated:  stats.Updated,
			})
		}
		go runner.Run(ctx)
	}

	// Start the HTTP server
	server := httpserver.NewServer(cfg, svc, hub, logger)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server exited with error", "error", err)
		}
	}()

	logger.Info("server started", "port", cfg.Port, "ingest_enabled", cfg.IngestEnabled)

	// Wait for shutdown signal
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig)
	cancel()

	if err := server.Shutdown(context.Background()); err != nil {
		logger.Error("error shutting down http server", "error", err)
	}

	return nil
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
