package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

const (
	// DefaultPageSize is used when a request does not state one.
	DefaultPageSize = 20
	maxPageSize     = 100
)

// PageRequest describes one fetchPage call as it arrives from a caller:
// unnormalized filters, an optional sort, an opaque cursor string and an
// optional page size.
type PageRequest struct {
	Filters  FilterSet
	Sort     SortSpec
	Cursor   string
	PageSize int

	// WithTotal asks for the exact match count. Call sites skip it on
	// continuation pages for performance.
	WithTotal bool
}

// QueryService translates a (filter-set, sort-spec, cursor) tuple into a
// request against a tender source and returns one page, deterministically.
// It owns predicate normalization, cursor handling and the client-side
// fallback for predicates the source cannot evaluate natively. It performs
// no retries and has no side effects.
type QueryService struct {
	source   TenderSource
	logger   *slog.Logger
	pageSize int
}

// NewQueryService creates a query service over the given source.
// defaultPageSize <= 0 falls back to DefaultPageSize.
func NewQueryService(source TenderSource, logger *slog.Logger, defaultPageSize int) *QueryService {
	if defaultPageSize <= 0 {
		defaultPageSize = DefaultPageSize
	}
	return &QueryService{
		source:   source,
		logger:   logger,
		pageSize: defaultPageSize,
	}
}

// FetchPage executes one page fetch. Transport and backend errors come back
// as *QueryFailedError; a cursor that does not parse against the active
// sort comes back as ErrInvalidCursor.
func (s *QueryService) FetchPage(ctx context.Context, req PageRequest) (Page, error) {
	filters := req.Filters.Normalized()

	sortSpec := req.Sort
	if !sortSpec.Valid() {
		sortSpec = DefaultSort()
	}

	limit := req.PageSize
	if limit <= 0 {
		limit = s.pageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var cursor *Cursor
	if req.Cursor != "" {
		var err error
		cursor, err = DecodeCursor(req.Cursor, sortSpec)
		if err != nil {
			return Page{}, err
		}
	}

	spec := QuerySpec{
		Filters:   filters,
		Sort:      sortSpec,
		Cursor:    cursor,
		Limit:     limit,
		WithTotal: req.WithTotal,
	}

	// Predicates the source cannot evaluate are stripped from the pushed
	// filter; the full shared routine then re-filters the fetched page.
	// Re-applying already-pushed predicates is idempotent, so the composed
	// result is identical either way.
	fallback := false
	if len(filters.CPVPrefixes) > 0 && !s.source.Capabilities().CPVPrefix {
		spec.Filters.CPVPrefixes = nil
		fallback = true
	}

	page, err := s.source.FetchPage(ctx, spec)
	if err != nil {
		if errors.Is(err, ErrInvalidCursor) {
			return Page{}, err
		}
		return Page{}, queryFailed("fetch page", err)
	}

	if fallback {
		fetched := len(page.Items)
		page.Items = ApplyFilters(page.Items, filters, sortSpec)
		// The source counted and cursored the reduced predicate; the total
		// no longer describes the composed one.
		page.Total = 0
		page.TotalKnown = false
		s.logger.Debug("applied client-side filter fallback",
			"fetched", fetched,
			"kept", len(page.Items),
			"cpv_prefixes", len(filters.CPVPrefixes),
		)
	}

	return page, nil
}

// GetTender fetches exactly one tender by its external id, or ErrNotFound.
func (s *QueryService) GetTender(ctx context.Context, externalID string) (*Tender, error) {
	if externalID == "" {
		return nil, fmt.Errorf("%w: empty external id", ErrNotFound)
	}
	t, err := s.source.GetByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, queryFailed("get tender", err)
	}
	return t, nil
}
