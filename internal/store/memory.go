package store

import (
	"context"
	"sync"

	"github.com/L4Nci/verejne-zakazky/internal/domain"
)

// MemorySource is an in-memory TenderSource built directly on the shared
// filter/sort routine. It backs tests (including the SQL equivalence
// tests) and small deployments that do not want a database file. The
// capability set is configurable so the query service's client-side
// fallback path can be exercised.
type MemorySource struct {
	mu      sync.RWMutex
	tenders []domain.Tender
	caps    domain.SourceCapabilities
}

// NewMemorySource creates a source over the given tenders with full
// pushdown capabilities.
func NewMemorySource(tenders ...domain.Tender) *MemorySource {
	m := &MemorySource{caps: domain.SourceCapabilities{CPVPrefix: true}}
	m.tenders = append(m.tenders, tenders...)
	return m
}

// SetCapabilities overrides the advertised capability set.
func (m *MemorySource) SetCapabilities(caps domain.SourceCapabilities) {
	m.mu.Lock()
	m.caps = caps
	m.mu.Unlock()
}

func (m *MemorySource) Capabilities() domain.SourceCapabilities {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.caps
}

// FetchPage filters and orders the whole data set with the shared routine,
// then resumes after the cursor row.
func (m *MemorySource) FetchPage(ctx context.Context, q domain.QuerySpec) (domain.Page, error) {
	if err := ctx.Err(); err != nil {
		return domain.Page{}, err
	}

	m.mu.RLock()
	all := make([]domain.Tender, len(m.tenders))
	copy(all, m.tenders)
	caps := m.caps
	m.mu.RUnlock()

	filters := q.Filters
	if !caps.CPVPrefix {
		// A source without prefix support never sees the predicate; the
		// query service strips it before pushing the spec down. Stripping
		// again here keeps direct callers honest.
		filters.CPVPrefixes = nil
	}

	matched := domain.ApplyFilters(all, filters, q.Sort)

	start := 0
	if q.Cursor != nil {
		for start < len(matched) && !q.Sort.After(&matched[start], q.Cursor) {
			start++
		}
	}

	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	items := matched[start:end]

	page := domain.Page{Items: append([]domain.Tender{}, items...)}
	if len(items) == q.Limit && q.Limit > 0 {
		page.NextCursor = domain.EncodeCursor(&items[len(items)-1], q.Sort)
	}
	if q.WithTotal {
		page.Total = len(matched) - start
		page.TotalKnown = true
	}
	return page, nil
}

// GetByExternalID fetches one tender or domain.ErrNotFound, preferring the
// lowest source id on duplicate external ids.
func (m *MemorySource) GetByExternalID(ctx context.Context, externalID string) (*domain.Tender, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var found *domain.Tender
	for i := range m.tenders {
		t := &m.tenders[i]
		if t.ExternalID != externalID {
			continue
		}
		if found == nil || t.SourceID < found.SourceID {
			found = t
		}
	}
	if found == nil {
		return nil, domain.ErrNotFound
	}
	out := *found
	return &out, nil
}

// UpsertTenders implements domain.TenderWriter by replacing rows keyed by
// (source, external id).
func (m *MemorySource) UpsertTenders(ctx context.Context, tenders []domain.Tender) (domain.UpsertStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.UpsertStats{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var stats domain.UpsertStats
	for i := range tenders {
		t := tenders[i]
		if err := t.Normalize(); err != nil {
			continue
		}
		replaced := false
		for j := range m.tenders {
			if m.tenders[j].SourceID == t.SourceID && m.tenders[j].ExternalID == t.ExternalID {
				if m.tenders[j].HashID == t.HashID {
					stats.Unchanged++
				} else {
					m.tenders[j] = t
					stats.Updated++
				}
				replaced = true
				break
			}
		}
		if !replaced {
			m.tenders = append(m.tenders, t)
			stats.Inserted++
		}
	}
	return stats, nil
}
