package ingest

import (
	"context"

	"github.com/L4Nci/verejne-zakazky/internal/domain"
)

// Source produces normalized tenders from one external procurement system.
// Implementations own fetching and field normalization; the runner owns
// scheduling and persistence.
type Source interface {
	// ID is the stable source tag written into every tender (e.g. "nen").
	ID() string

	// Fetch returns the current batch of notices. Records come back
	// normalized; the writer deduplicates them.
	Fetch(ctx context.Context) ([]domain.Tender, error)
}
