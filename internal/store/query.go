package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/L4Nci/verejne-zakazky/internal/domain"
)

const tenderColumns = `hash_id, source_id, external_id, title, buyer, description,
	procedure_type, country, region, estimated_price, currency, status,
	deadline, publication_date, notice_url, cpv_codes, attachments,
	created_at, updated_at`

type tenderRow struct {
	HashID          string          `db:"hash_id"`
	SourceID        string          `db:"source_id"`
	ExternalID      string          `db:"external_id"`
	Title           string          `db:"title"`
	Buyer           sql.NullString  `db:"buyer"`
	Description     sql.NullString  `db:"description"`
	ProcedureType   sql.NullString  `db:"procedure_type"`
	Country         string          `db:"country"`
	Region          sql.NullString  `db:"region"`
	EstimatedPrice  sql.NullFloat64 `db:"estimated_price"`
	Currency        sql.NullString  `db:"currency"`
	Status          sql.NullString  `db:"status"`
	Deadline        sql.NullString  `db:"deadline"`
	PublicationDate string          `db:"publication_date"`
	NoticeURL       sql.NullString  `db:"notice_url"`
	CPVCodes        string          `db:"cpv_codes"`
	Attachments     string          `db:"attachments"`
	CreatedAt       string          `db:"created_at"`
	UpdatedAt       string          `db:"updated_at"`
}

func (r *tenderRow) toDomain() (domain.Tender, error) {
	t := domain.Tender{
		HashID:        r.HashID,
		SourceID:      r.SourceID,
		ExternalID:    r.ExternalID,
		Title:         r.Title,
		Buyer:         r.Buyer.String,
		Description:   r.Description.String,
		ProcedureType: r.ProcedureType.String,
		Country:       r.Country,
		Region:        r.Region.String,
		Currency:      r.Currency.String,
		Status:        r.Status.String,
		NoticeURL:     r.NoticeURL.String,
	}

	if r.EstimatedPrice.Valid {
		v := r.EstimatedPrice.Float64
		t.EstimatedPrice = &v
	}
	if r.Deadline.Valid && r.Deadline.String != "" {
		d, err := time.Parse("2006-01-02", r.Deadline.String)
		if err != nil {
			return t, fmt.Errorf("row %s: bad deadline %q: %w", r.ExternalID, r.Deadline.String, err)
		}
		d = d.UTC()
		t.Deadline = &d
	}
	if r.PublicationDate != "" {
		p, err := time.Parse(time.RFC3339, r.PublicationDate)
		if err != nil {
			return t, fmt.Errorf("row %s: bad publication date %q: %w", r.ExternalID, r.PublicationDate, err)
		}
		t.PublicationDate = p.UTC()
	}

	created, err := time.Parse(time.RFC3339, r.CreatedAt)
	if err != nil {
		return t, fmt.Errorf("row %s: bad created_at %q: %w", r.ExternalID, r.CreatedAt, err)
	}
	t.CreatedAt = created.UTC()
	updated, err := time.Parse(time.RFC3339, r.UpdatedAt)
	if err != nil {
		return t, fmt.Errorf("row %s: bad updated_at %q: %w", r.ExternalID, r.UpdatedAt, err)
	}
	t.UpdatedAt = updated.UTC()

	if err := json.Unmarshal([]byte(r.CPVCodes), &t.CPVCodes); err != nil {
		return t, fmt.Errorf("row %s: bad cpv codes: %w", r.ExternalID, err)
	}
	if err := json.Unmarshal([]byte(r.Attachments), &t.Attachments); err != nil {
		return t, fmt.Errorf("row %s: bad attachments: %w", r.ExternalID, err)
	}
	if t.CPVCodes == nil {
		t.CPVCodes = []string{}
	}
	if t.Attachments == nil {
		t.Attachments = []domain.Attachment{}
	}
	return t, nil
}

// Capabilities: every filter predicate is pushed down, including CPV prefix
// matching via the tender_cpv side table.
func (s *Store) Capabilities() domain.SourceCapabilities {
	return domain.SourceCapabilities{CPVPrefix: true}
}

// FetchPage runs one keyset-paginated page query.
func (s *Store) FetchPage(ctx context.Context, q domain.QuerySpec) (domain.Page, error) {
	where, args := buildPredicates(q.Filters)
	if q.Cursor != nil {
		cond, condArgs := cursorCondition(q.Sort, q.Cursor)
		where = append(where, cond)
		args = append(args, condArgs...)
	}

	base := "FROM tenders"
	if len(where) > 0 {
		base += " WHERE " + strings.Join(where, " AND ")
	}

	query := "SELECT " + tenderColumns + " " + base +
		" ORDER BY " + orderBy(q.Sort) + " LIMIT ?"
	pageArgs := append(append([]any{}, args...), q.Limit)

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), pageArgs...)
	if err != nil {
		return domain.Page{}, fmt.Errorf("query tenders: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Tender, 0, q.Limit)
	for rows.Next() {
		var r tenderRow
		if err := rows.StructScan(&r); err != nil {
			return domain.Page{}, fmt.Errorf("scan tender: %w", err)
		}
		t, err := r.toDomain()
		if err != nil {
			return domain.Page{}, err
		}
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return domain.Page{}, fmt.Errorf("iterate tenders: %w", err)
	}

	page := domain.Page{Items: items}
	if len(items) == q.Limit && q.Limit > 0 {
		page.NextCursor = domain.EncodeCursor(&items[len(items)-1], q.Sort)
	}

	if q.WithTotal {
		var total int
		countQuery := s.db.Rebind("SELECT COUNT(*) " + base)
		if err := s.db.GetContext(ctx, &total, countQuery, args...); err != nil {
			return domain.Page{}, fmt.Errorf("count tenders: %w", err)
		}
		page.Total = total
		page.TotalKnown = true
	}

	return page, nil
}

// GetByExternalID fetches one tender or domain.ErrNotFound. When the same
// external id exists under several sources the lowest source id wins, so
// lookups stay deterministic.
func (s *Store) GetByExternalID(ctx context.Context, externalID string) (*domain.Tender, error) {
	var r tenderRow
	query := s.db.Rebind("SELECT " + tenderColumns +
		" FROM tenders WHERE external_id = ? ORDER BY source_id LIMIT 1")
	err := s.db.GetContext(ctx, &r, query, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get tender %s: %w", externalID, err)
	}
	t, err := r.toDomain()
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// buildPredicates renders a normalized FilterSet as SQL, one clause per
// predicate, in the same composition order the in-memory routine applies.
func buildPredicates(f domain.FilterSet) ([]string, []any) {
	var where []string
	var args []any

	if q := strings.TrimSpace(f.Query); q != "" {
		pattern := "%" + escapeLike(strings.ToLower(q)) + "%"
		where = append(where,
			`(title_sort LIKE ? ESCAPE '\' OR buyer_sort LIKE ? ESCAPE '\' OR desc_sort LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	if len(f.Statuses) > 0 {
		where = append(where, inClause("LOWER(TRIM(COALESCE(status,'')))", len(f.Statuses)))
		for _, v := range f.Statuses {
			args = append(args, v)
		}
	}
	if len(f.Regions) > 0 {
		where = append(where, inClause("LOWER(TRIM(COALESCE(region,'')))", len(f.Regions)))
		for _, v := range f.Regions {
			args = append(args, v)
		}
	}

	if len(f.CPVPrefixes) > 0 {
		var likes []string
		for _, p := range f.CPVPrefixes {
			likes = append(likes, `c.code LIKE ? ESCAPE '\'`)
			args = append(args, escapeLike(p)+"%")
		}
		where = append(where,
			"EXISTS (SELECT 1 FROM tender_cpv c WHERE c.hash_id = tenders.hash_id AND ("+
				strings.Join(likes, " OR ")+"))")
	}

	if f.PriceMin != nil || f.PriceMax != nil {
		where = append(where, "estimated_price IS NOT NULL")
		if f.PriceMin != nil {
			where = append(where, "estimated_price >= ?")
			args = append(args, *f.PriceMin)
		}
		if f.PriceMax != nil {
			where = append(where, "estimated_price <= ?")
			args = append(args, *f.PriceMax)
		}
	}

	if f.DeadlineFrom != nil || f.DeadlineTo != nil {
		where = append(where, "deadline IS NOT NULL")
		if f.DeadlineFrom != nil {
			where = append(where, "deadline >= ?")
			args = append(args, f.DeadlineFrom.UTC().Format("2006-01-02"))
		}
		if f.DeadlineTo != nil {
			where = append(where, "deadline <= ?")
			args = append(args, f.DeadlineTo.UTC().Format("2006-01-02"))
		}
	}

	return where, args
}

func sortColumn(field domain.SortField) string {
	switch field {
	case domain.SortByDeadline:
		return "deadline"
	case domain.SortByPrice:
		return "estimated_price"
	case domain.SortByTitle:
		return "title_sort"
	default:
		return "created_at"
	}
}

// nullRankExpr ranks rows so that null sort keys land last, except deadline
// ascending where they land first.
func nullRankExpr(sort domain.SortSpec) string {
	col := sortColumn(sort.Field)
	nullRank, valueRank := 1, 0
	if sort.NullsFirst() {
		nullRank, valueRank = 0, 1
	}
	return fmt.Sprintf("CASE WHEN %s IS NULL THEN %d ELSE %d END", col, nullRank, valueRank)
}

func orderBy(sort domain.SortSpec) string {
	dir := "ASC"
	if sort.Direction == domain.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf("%s ASC, %s %s, external_id ASC",
		nullRankExpr(sort), sortColumn(sort.Field), dir)
}

// cursorCondition renders "strictly after the cursor row" for the active
// sort, mirroring SortSpec.After: first by null rank, then by the sort key
// in sort direction, then by external id ascending.
func cursorCondition(sort domain.SortSpec, c *domain.Cursor) (string, []any) {
	rank := nullRankExpr(sort)
	cursorRank := 0
	if c.Null != sort.NullsFirst() {
		cursorRank = 1
	}

	if c.Null {
		return fmt.Sprintf("(%s > ? OR (%s = ? AND external_id > ?))", rank, rank),
			[]any{cursorRank, cursorRank, c.ExternalID}
	}

	col := sortColumn(sort.Field)
	cmp := ">"
	if sort.Direction == domain.Desc {
		cmp = "<"
	}

	var value any = c.Value
	if sort.Field == domain.SortByPrice {
		value, _ = strconv.ParseFloat(c.Value, 64)
	}

	cond := fmt.Sprintf("(%s > ? OR (%s = ? AND (%s %s ? OR (%s = ? AND external_id > ?))))",
		rank, rank, col, cmp, col)
	return cond, []any{cursorRank, cursorRank, value, value, c.ExternalID}
}

func inClause(expr string, n int) string {
	return expr + " IN (?" + strings.Repeat(",?", n-1) + ")"
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
