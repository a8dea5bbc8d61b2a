package domain_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/L4Nci/verejne-zakazky/internal/domain"
	"github.com/L4Nci/verejne-zakazky/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// silniceFixture builds 45 road tenders plus noise, enough to page through
// with a size of 20 three times.
func silniceFixture() []domain.Tender {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	items := make([]domain.Tender, 0, 60)
	for i := 0; i < 45; i++ {
		items = append(items, domain.Tender{
			SourceID:   "nen",
			ExternalID: fmt.Sprintf("N006/26/V%05d", i),
			Title:      fmt.Sprintf("Oprava silnice %d", i),
			Country:    "CZ",
			Status:     "open",
			CreatedAt:  base.Add(time.Duration(i) * time.Hour),
			UpdatedAt:  base.Add(time.Duration(i) * time.Hour),
		})
	}
	for i := 0; i < 15; i++ {
		items = append(items, domain.Tender{
			SourceID:   "nen",
			ExternalID: fmt.Sprintf("N006/26/X%05d", i),
			Title:      fmt.Sprintf("Dodávka plynu %d", i),
			Country:    "CZ",
			Status:     "open",
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
			UpdatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	return items
}

func collectAll(t *testing.T, svc *domain.QueryService, req domain.PageRequest) []domain.Tender {
	t.Helper()
	var out []domain.Tender
	for {
		page, err := svc.FetchPage(context.Background(), req)
		require.NoError(t, err)
		out = append(out, page.Items...)
		if !page.HasMore() {
			return out
		}
		req.Cursor = page.NextCursor
		req.WithTotal = false
	}
}

func TestFetchPagePaginationIsCompleteAndDisjoint(t *testing.T) {
	svc := domain.NewQueryService(store.NewMemorySource(silniceFixture()...), discardLogger(), 20)

	req := domain.PageRequest{
		Filters:   domain.FilterSet{Query: "silnice"},
		WithTotal: true,
	}

	first, err := svc.FetchPage(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, first.Items, 20)
	require.True(t, first.TotalKnown)
	require.Equal(t, 45, first.Total)
	require.True(t, first.HasMore())

	all := collectAll(t, svc, req)
	require.Len(t, all, 45)

	seen := make(map[string]bool, len(all))
	for _, tn := range all {
		require.False(t, seen[tn.ExternalID], "duplicate %s", tn.ExternalID)
		seen[tn.ExternalID] = true
		require.Contains(t, tn.Title, "silnice")
	}

	// Newest first: created_at strictly descends across page boundaries.
	for i := 1; i < len(all); i++ {
		require.False(t, all[i].CreatedAt.After(all[i-1].CreatedAt))
	}
}

func TestFetchPageExactMultipleEndsWithEmptyPage(t *testing.T) {
	// 40 matching rows and a page size of 20: the second page comes back
	// full with a cursor, the third is empty.
	fixture := silniceFixture()[:40]
	svc := domain.NewQueryService(store.NewMemorySource(fixture...), discardLogger(), 20)

	req := domain.PageRequest{Filters: domain.FilterSet{Query: "silnice"}}
	first, err := svc.FetchPage(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, first.Items, 20)
	require.True(t, first.HasMore())

	req.Cursor = first.NextCursor
	second, err := svc.FetchPage(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, second.Items, 20)
	require.True(t, second.HasMore())

	req.Cursor = second.NextCursor
	third, err := svc.FetchPage(context.Background(), req)
	require.NoError(t, err)
	require.Empty(t, third.Items)
	require.False(t, third.HasMore())
}

func TestFetchPageIsDeterministic(t *testing.T) {
	svc := domain.NewQueryService(store.NewMemorySource(silniceFixture()...), discardLogger(), 20)
	req := domain.PageRequest{
		Filters: domain.FilterSet{Query: "silnice"},
		Sort:    domain.SortSpec{Field: domain.SortByTitle, Direction: domain.Asc},
	}

	first, err := svc.FetchPage(context.Background(), req)
	require.NoError(t, err)
	again, err := svc.FetchPage(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, first, again)
}

func TestFetchPageRejectsForeignCursor(t *testing.T) {
	svc := domain.NewQueryService(store.NewMemorySource(silniceFixture()...), discardLogger(), 20)

	page, err := svc.FetchPage(context.Background(), domain.PageRequest{
		Sort: domain.SortSpec{Field: domain.SortByTitle, Direction: domain.Asc},
	})
	require.NoError(t, err)
	require.NotEmpty(t, page.NextCursor)

	// The same token against a different sort is invalid, not reinterpreted.
	_, err = svc.FetchPage(context.Background(), domain.PageRequest{
		Sort:   domain.SortSpec{Field: domain.SortByPrice, Direction: domain.Asc},
		Cursor: page.NextCursor,
	})
	require.ErrorIs(t, err, domain.ErrInvalidCursor)

	_, err = svc.FetchPage(context.Background(), domain.PageRequest{Cursor: "!!not-a-cursor!!"})
	require.ErrorIs(t, err, domain.ErrInvalidCursor)
}

func TestFetchPageFallbackMatchesNativePushdown(t *testing.T) {
	fixture := silniceFixture()
	for i := range fixture {
		if i%3 == 0 {
			fixture[i].CPVCodes = []string{"45233142-6"}
		}
	}

	native := store.NewMemorySource(fixture...)
	limited := store.NewMemorySource(fixture...)
	limited.SetCapabilities(domain.SourceCapabilities{CPVPrefix: false})

	req := domain.PageRequest{
		Filters:  domain.FilterSet{CPVPrefixes: []string{"4523"}},
		PageSize: 100,
	}

	want, err := domain.NewQueryService(native, discardLogger(), 20).FetchPage(context.Background(), req)
	require.NoError(t, err)
	got, err := domain.NewQueryService(limited, discardLogger(), 20).FetchPage(context.Background(), req)
	require.NoError(t, err)

	// Client-side re-filtering produces the identical item sequence.
	require.Equal(t, want.Items, got.Items)
	// The source counted the reduced predicate, so the total is withheld.
	require.False(t, got.TotalKnown)
}

type failingSource struct {
	*store.MemorySource
	err error
}

func (f *failingSource) FetchPage(ctx context.Context, q domain.QuerySpec) (domain.Page, error) {
	if f.err != nil {
		return domain.Page{}, f.err
	}
	return f.MemorySource.FetchPage(ctx, q)
}

func (f *failingSource) GetByExternalID(ctx context.Context, id string) (*domain.Tender, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.MemorySource.GetByExternalID(ctx, id)
}

func TestFetchPageWrapsSourceErrors(t *testing.T) {
	src := &failingSource{MemorySource: store.NewMemorySource(), err: errors.New("connection refused")}
	svc := domain.NewQueryService(src, discardLogger(), 20)

	_, err := svc.FetchPage(context.Background(), domain.PageRequest{})
	var qerr *domain.QueryFailedError
	require.ErrorAs(t, err, &qerr)
	require.ErrorContains(t, qerr, "connection refused")
}

func TestGetTender(t *testing.T) {
	fixture := silniceFixture()
	svc := domain.NewQueryService(store.NewMemorySource(fixture...), discardLogger(), 20)

	tn, err := svc.GetTender(context.Background(), fixture[7].ExternalID)
	require.NoError(t, err)
	require.Equal(t, fixture[7].Title, tn.Title)

	_, err = svc.GetTender(context.Background(), "N000/00/V99999")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetTender(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
