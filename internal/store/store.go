// Package store persists tenders in a relational backend. The same
// repository serves PostgreSQL (the hosted deployment) and the pure-Go
// sqlite driver (local runs and tests); query text is written with `?`
// bind points and rebound per driver.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Supported driver names for Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store implements domain.TenderSource and domain.TenderWriter over SQL.
type Store struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// Open connects to the database, verifies the connection and returns a new
// Store. The caller should call Close when done.
func Open(driver, dsn string, logger *slog.Logger) (*Store, error) {
	switch driver {
	case DriverSQLite, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if driver == DriverSQLite {
		// A single writer keeps modernc sqlite away from SQLITE_BUSY under
		// concurrent ingest and query load.
		db.SetMaxOpenConns(1)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS tenders (
		hash_id          TEXT PRIMARY KEY,
		source_id        TEXT NOT NULL,
		external_id      TEXT NOT NULL,
		title            TEXT NOT NULL,
		title_sort       TEXT NOT NULL DEFAULT '',
		buyer            TEXT,
		buyer_sort       TEXT NOT NULL DEFAULT '',
		description      TEXT,
		desc_sort        TEXT NOT NULL DEFAULT '',
		procedure_type   TEXT,
		country          TEXT NOT NULL DEFAULT '',
		region           TEXT,
		estimated_price  DOUBLE PRECISION,
		currency         TEXT,
		status           TEXT,
		deadline         TEXT,
		publication_date TEXT NOT NULL DEFAULT '',
		notice_url       TEXT,
		cpv_codes        TEXT NOT NULL DEFAULT '[]',
		attachments      TEXT NOT NULL DEFAULT '[]',
		content_hash     TEXT NOT NULL DEFAULT '',
		created_at       TEXT NOT NULL,
		updated_at       TEXT NOT NULL,
		UNIQUE (source_id, external_id)
	)`,
	`CREATE TABLE IF NOT EXISTS tender_cpv (
		hash_id  TEXT NOT NULL,
		position INTEGER NOT NULL,
		code     TEXT NOT NULL,
		PRIMARY KEY (hash_id, position)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_tenders_external_id ON tenders (external_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tenders_created_at ON tenders (created_at, external_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tenders_deadline ON tenders (deadline, external_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tenders_price ON tenders (estimated_price, external_id)`,
	`CREATE INDEX IF NOT EXISTS idx_tender_cpv_code ON tender_cpv (code)`,
}

// InitSchema creates the tables and indexes when missing. Times are stored
// as sortable UTC text (RFC 3339 timestamps, YYYY-MM-DD dates) so keyset
// comparisons behave identically on both drivers; title_sort, buyer_sort
// and desc_sort hold the Go-lower-cased forms so SQL ordering and matching
// agree byte-for-byte with the in-memory filter routine.
func (s *Store) InitSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	s.logger.Debug("schema ready")
	return nil
}
