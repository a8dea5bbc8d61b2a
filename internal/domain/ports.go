package domain

import "context"

// QuerySpec is one fully-resolved page request against a tender source.
// Filters are already normalized and the cursor already validated against
// the sort by the time a source sees it.
type QuerySpec struct {
	Filters   FilterSet
	Sort      SortSpec
	Cursor    *Cursor // nil means first page
	Limit     int
	WithTotal bool
}

// SourceCapabilities reports which predicates a source evaluates natively.
// The query service pushes down what it can and re-applies the shared
// filter routine on top of the fetched page for the rest.
type SourceCapabilities struct {
	// CPVPrefix is false for backends without array/prefix support.
	CPVPrefix bool
}

// TenderSource is the read side of a tabular tender store: predicate
// composition, ordering with null control, a row limit and an optional
// exact match count. Implementations must order results exactly as
// SortSpec.Less does.
type TenderSource interface {
	// FetchPage returns one page for the spec. Pagination is keyset-based;
	// the returned NextCursor is set when the page came back full.
	FetchPage(ctx context.Context, q QuerySpec) (Page, error)

	// GetByExternalID fetches exactly one tender or ErrNotFound.
	GetByExternalID(ctx context.Context, externalID string) (*Tender, error)

	Capabilities() SourceCapabilities
}

// UpsertStats summarizes one ingested batch.
type UpsertStats struct {
	Inserted  int
	Updated   int
	Unchanged int
}

// TenderWriter is the ingest side of a store. Batches are keyed by
// (source, external id); unchanged content is left untouched.
type TenderWriter interface {
	UpsertTenders(ctx context.Context, tenders []Tender) (UpsertStats, error)
}
