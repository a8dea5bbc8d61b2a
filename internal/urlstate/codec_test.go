package urlstate

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/L4Nci/verejne-zakazky/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestEncodeOmitsUnconstrained(t *testing.T) {
	require.Empty(t, EncodeString(domain.FilterSet{}, domain.DefaultSort()))

	v := Encode(domain.FilterSet{Query: "silnice"}, domain.DefaultSort())
	require.Equal(t, "silnice", v.Get("q"))
	require.False(t, v.Has("status"))
	require.False(t, v.Has("sort"), "default sort is never emitted")
}

func TestRoundTrip(t *testing.T) {
	from := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	filters := domain.FilterSet{
		Query:        "oprava mostu",
		Statuses:     []string{"open", "awarded"},
		Regions:      []string{"praha", "jihomoravský kraj"},
		CPVPrefixes:  []string{"4523", "713"},
		PriceMin:     ptr(100000.0),
		PriceMax:     ptr(5000000.5),
		DeadlineFrom: &from,
		DeadlineTo:   &to,
	}
	sortSpec := domain.SortSpec{Field: domain.SortByDeadline, Direction: domain.Asc}

	encoded := Encode(filters, sortSpec)
	gotFilters, gotSort, err := Decode(encoded)
	require.NoError(t, err)
	require.True(t, filters.Equal(gotFilters))
	require.Equal(t, sortSpec, gotSort)

	// Encoding the decoded state reproduces the same string.
	require.Equal(t, encoded.Encode(), EncodeString(gotFilters, gotSort))
}

func TestDecodeListsAndCase(t *testing.T) {
	v, err := url.ParseQuery("status=Open,%20AWARDED&region=Praha&cpv=4523,,713")
	require.NoError(t, err)

	filters, _, err := Decode(v)
	require.NoError(t, err)
	require.Equal(t, []string{"awarded", "open"}, filters.Statuses)
	require.Equal(t, []string{"praha"}, filters.Regions)
	require.Equal(t, []string{"4523", "713"}, filters.CPVPrefixes)
}

func TestDecodeSortTokens(t *testing.T) {
	cases := map[string]domain.SortSpec{
		"newest":       {Field: domain.SortByCreatedAt, Direction: domain.Desc},
		"oldest":       {Field: domain.SortByCreatedAt, Direction: domain.Asc},
		"deadlineAsc":  {Field: domain.SortByDeadline, Direction: domain.Asc},
		"deadlineDesc": {Field: domain.SortByDeadline, Direction: domain.Desc},
		"budgetAsc":    {Field: domain.SortByPrice, Direction: domain.Asc},
		"budgetDesc":   {Field: domain.SortByPrice, Direction: domain.Desc},
		"titleAsc":     {Field: domain.SortByTitle, Direction: domain.Asc},
		"titleDesc":    {Field: domain.SortByTitle, Direction: domain.Desc},
	}
	for token, want := range cases {
		_, got, err := Decode(url.Values{"sort": {token}})
		require.NoError(t, err)
		require.Equal(t, want, got, "token %s", token)
	}

	// A hand-edited unknown token falls back to the default sort.
	_, got, err := Decode(url.Values{"sort": {"cheapestMaybe"}})
	require.NoError(t, err)
	require.Equal(t, domain.DefaultSort(), got)
}

func TestDecodeRejectsMalformedBounds(t *testing.T) {
	for _, raw := range []string{
		"bmin=abc",
		"bmax=1e",
		"dfrom=31.12.2026",
		"dto=2026-13-01",
	} {
		v, err := url.ParseQuery(raw)
		require.NoError(t, err)
		_, _, err = Decode(v)
		require.Error(t, err, raw)
	}
}
