package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/L4Nci/verejne-zakazky/internal/domain"
)

// UpsertTenders writes one ingested batch in a single transaction. Rows are
// keyed by (source_id, external_id): missing rows are inserted, rows whose
// content hash matches are left untouched, changed rows are rewritten with
// a fresh updated_at and a recomputed hash_id.
func (s *Store) UpsertTenders(ctx context.Context, tenders []domain.Tender) (domain.UpsertStats, error) {
	var stats domain.UpsertStats

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Truncate(time.Second)

	for i := range tenders {
		t := tenders[i]
		if err := t.Normalize(); err != nil {
			s.logger.Warn("skipping invalid tender", "source", t.SourceID, "error", err)
			continue
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.UpdatedAt.Before(t.CreatedAt) {
			t.UpdatedAt = t.CreatedAt
		}
		hash := contentHash(&t)

		var existing struct {
			HashID      string `db:"hash_id"`
			ContentHash string `db:"content_hash"`
			CreatedAt   string `db:"created_at"`
		}
		query := tx.Rebind(`SELECT hash_id, content_hash, created_at
			FROM tenders WHERE source_id = ? AND external_id = ?`)
		err := tx.GetContext(ctx, &existing, query, t.SourceID, t.ExternalID)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			if err := insertTender(ctx, tx, &t, hash); err != nil {
				return stats, err
			}
			stats.Inserted++

		case err != nil:
			return stats, fmt.Errorf("lookup tender %s/%s: %w", t.SourceID, t.ExternalID, err)

		case existing.ContentHash == hash:
			stats.Unchanged++

		default:
			// Keep the original created_at; the record content changed so
			// the dedup key may change with it.
			if created, perr := time.Parse(time.RFC3339, existing.CreatedAt); perr == nil {
				t.CreatedAt = created.UTC()
			}
			t.UpdatedAt = now
			t.HashID = t.ComputeHashID()
			if err := updateTender(ctx, tx, &t, hash, existing.HashID); err != nil {
				return stats, err
			}
			stats.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("commit transaction: %w", err)
	}
	return stats, nil
}

func insertTender(ctx context.Context, tx *sqlx.Tx, t *domain.Tender, hash string) error {
	query := tx.Rebind(`INSERT INTO tenders (
		hash_id, source_id, external_id, title, title_sort, buyer, buyer_sort,
		description, desc_sort, procedure_type, country, region,
		estimated_price, currency, status, deadline, publication_date,
		notice_url, cpv_codes, attachments, content_hash, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	args, err := tenderArgs(t, hash)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert tender %s/%s: %w", t.SourceID, t.ExternalID, err)
	}
	return replaceCPV(ctx, tx, "", t.HashID, t.CPVCodes)
}

func updateTender(ctx context.Context, tx *sqlx.Tx, t *domain.Tender, hash, oldHashID string) error {
	query := tx.Rebind(`UPDATE tenders SET
		hash_id = ?, title = ?, title_sort = ?, buyer = ?, buyer_sort = ?,
		description = ?, desc_sort = ?, procedure_type = ?, country = ?,
		region = ?, estimated_price = ?, currency = ?, status = ?,
		deadline = ?, publication_date = ?, notice_url = ?, cpv_codes = ?,
		attachments = ?, content_hash = ?, created_at = ?, updated_at = ?
		WHERE source_id = ? AND external_id = ?`)

	args, err := tenderArgs(t, hash)
	if err != nil {
		return err
	}
	// tenderArgs yields the insert column order; drop the leading
	// source/external ids and re-append them as the WHERE values.
	hashID, sourceID, externalID := args[0], args[1], args[2]
	updateArgs := append([]any{hashID}, args[3:]...)
	updateArgs = append(updateArgs, sourceID, externalID)

	if _, err := tx.ExecContext(ctx, query, updateArgs...); err != nil {
		return fmt.Errorf("update tender %s/%s: %w", t.SourceID, t.ExternalID, err)
	}
	return replaceCPV(ctx, tx, oldHashID, t.HashID, t.CPVCodes)
}

func tenderArgs(t *domain.Tender, hash string) ([]any, error) {
	cpv, err := json.Marshal(t.CPVCodes)
	if err != nil {
		return nil, fmt.Errorf("marshal cpv codes: %w", err)
	}
	attachments, err := json.Marshal(t.Attachments)
	if err != nil {
		return nil, fmt.Errorf("marshal attachments: %w", err)
	}

	var deadline any
	if t.Deadline != nil {
		deadline = t.Deadline.UTC().Format("2006-01-02")
	}
	var price any
	if t.EstimatedPrice != nil {
		price = *t.EstimatedPrice
	}
	publication := ""
	if !t.PublicationDate.IsZero() {
		publication = t.PublicationDate.UTC().Format(time.RFC3339)
	}

	return []any{
		t.HashID, t.SourceID, t.ExternalID,
		t.Title, strings.ToLower(t.Title),
		nullable(t.Buyer), strings.ToLower(t.Buyer),
		nullable(t.Description), strings.ToLower(t.Description),
		nullable(t.ProcedureType), t.Country, nullable(t.Region),
		price, nullable(t.Currency), nullable(t.Status),
		deadline, publication, nullable(t.NoticeURL),
		string(cpv), string(attachments), hash,
		t.CreatedAt.UTC().Format(time.RFC3339),
		t.UpdatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func replaceCPV(ctx context.Context, tx *sqlx.Tx, oldHashID, hashID string, codes []string) error {
	if oldHashID != "" {
		del := tx.Rebind("DELETE FROM tender_cpv WHERE hash_id = ?")
		if _, err := tx.ExecContext(ctx, del, oldHashID); err != nil {
			return fmt.Errorf("clear cpv rows: %w", err)
		}
	}
	ins := tx.Rebind("INSERT INTO tender_cpv (hash_id, position, code) VALUES (?, ?, ?)")
	for i, code := range codes {
		if _, err := tx.ExecContext(ctx, ins, hashID, i, strings.TrimSpace(code)); err != nil {
			return fmt.Errorf("insert cpv row: %w", err)
		}
	}
	return nil
}

// contentHash fingerprints the mutable record content so re-ingesting an
// unchanged notice touches nothing.
func contentHash(t *domain.Tender) string {
	deadline := ""
	if t.Deadline != nil {
		deadline = t.Deadline.UTC().Format("2006-01-02")
	}
	price := ""
	if t.EstimatedPrice != nil {
		price = fmt.Sprintf("%g", *t.EstimatedPrice)
	}
	attachments, _ := json.Marshal(t.Attachments)

	parts := []string{
		t.Title, t.Buyer, t.Description, t.ProcedureType,
		t.Country, t.Region, price, t.Currency, t.Status,
		deadline, t.NoticeURL,
		strings.Join(t.CPVCodes, ","), string(attachments),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}
