package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

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
	var (
		driver  string
		dsn     string
		baseURL string
		timeout time.Duration
		verbose bool
	)

	flag.StringVar(&driver, "driver", envOrDefault("DATABASE_DRIVER", "sqlite"), "database driver (sqlite or postgres)")
	flag.StringVar(&dsn, "dsn", envOrDefault("DATABASE_DSN", "file:tenders.db?_pragma=journal_mode(WAL)"), "database connection string")
	flag.StringVar(&baseURL, "nen-url", envOrDefault("NEN_BASE_URL", "https://nen.nipez.cz"), "NEN deployment root URL")
	flag.DurationVar(&timeout, "timeout", 30*time.Second, "outbound HTTP request timeout")
	flag.BoolVar(&verbose, "v", false, "verbose logging")
	flag.Parse()

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	ctx := context.Background()

	db, err := store.Open(driver, dsn, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}

	fetcher := ingest.NewFetcher(timeout, logger)
	source := ingest.NewNENSource(baseURL, fetcher, logger)

	fmt.Printf("Fetching tenders from %s...\n", baseURL)
	tenders, err := source.Fetch(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Fetched %d tenders\n", len(tenders))

	stats, err := db.UpsertTenders(ctx, tenders)
	if err != nil {
		return err
	}
	fmt.Printf("Done: %d inserted, %d updated, %d unchanged\n", stats.Inserted, stats.Updated, stats.Unchanged)

	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
