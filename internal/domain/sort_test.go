package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSortSpecValid(t *testing.T) {
	require.True(t, DefaultSort().Valid())
	require.True(t, SortSpec{Field: SortByTitle, Direction: Asc}.Valid())
	require.False(t, SortSpec{}.Valid())
	require.False(t, SortSpec{Field: "buyer", Direction: Asc}.Valid())
	require.False(t, SortSpec{Field: SortByTitle, Direction: "up"}.Valid())
}

func TestSortTendersByCreatedAt(t *testing.T) {
	old := testTender("A", "Starší")
	old.CreatedAt = time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	mid := testTender("B", "Prostřední")
	mid.CreatedAt = time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	newest := testTender("C", "Nejnovější")
	newest.CreatedAt = time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

	items := []Tender{mid, newest, old}
	SortTenders(items, DefaultSort())
	require.Equal(t, []string{"C", "B", "A"}, externalIDs(items))

	SortTenders(items, SortSpec{Field: SortByCreatedAt, Direction: Asc})
	require.Equal(t, []string{"A", "B", "C"}, externalIDs(items))
}

func TestSortTendersNullsLast(t *testing.T) {
	priced := testTender("A", "S cenou")
	priced.EstimatedPrice = ptr(100000.0)
	pricier := testTender("B", "Dražší")
	pricier.EstimatedPrice = ptr(900000.0)
	unpriced := testTender("C", "Bez ceny")

	items := []Tender{unpriced, pricier, priced}
	SortTenders(items, SortSpec{Field: SortByPrice, Direction: Asc})
	require.Equal(t, []string{"A", "B", "C"}, externalIDs(items))

	// Nulls stay last when the direction flips.
	SortTenders(items, SortSpec{Field: SortByPrice, Direction: Desc})
	require.Equal(t, []string{"B", "A", "C"}, externalIDs(items))
}

func TestSortTendersDeadlineNullAsymmetry(t *testing.T) {
	soon := testTender("A", "Brzy")
	soon.Deadline = ptr(date(2026, 9, 10))
	later := testTender("B", "Později")
	later.Deadline = ptr(date(2026, 12, 1))
	open := testTender("C", "Bez termínu")

	// Deadline ascending puts missing deadlines first.
	items := []Tender{later, soon, open}
	SortTenders(items, SortSpec{Field: SortByDeadline, Direction: Asc})
	require.Equal(t, []string{"C", "A", "B"}, externalIDs(items))

	// Descending follows the usual nulls-last rule.
	SortTenders(items, SortSpec{Field: SortByDeadline, Direction: Desc})
	require.Equal(t, []string{"B", "A", "C"}, externalIDs(items))
}

func TestSortTendersTitleCaseInsensitive(t *testing.T) {
	a := testTender("1", "dodávka plynu")
	b := testTender("2", "Oprava mostu")
	c := testTender("3", "ZŠ Kolín, přístavba")

	items := []Tender{c, b, a}
	SortTenders(items, SortSpec{Field: SortByTitle, Direction: Asc})
	require.Equal(t, []string{"1", "2", "3"}, externalIDs(items))
}

func TestSortTendersTieBreakByExternalID(t *testing.T) {
	a := testTender("N2", "Stejný titul")
	b := testTender("N1", "Stejný titul")
	c := testTender("N3", "Stejný titul")

	for _, spec := range []SortSpec{
		{Field: SortByTitle, Direction: Asc},
		{Field: SortByTitle, Direction: Desc},
		{Field: SortByCreatedAt, Direction: Desc},
	} {
		items := []Tender{a, b, c}
		SortTenders(items, spec)
		require.Equal(t, []string{"N1", "N2", "N3"}, externalIDs(items), "spec %v", spec)
	}
}

func TestAfterResumesExactlyPastCursor(t *testing.T) {
	prices := map[string]*float64{
		"A": ptr(1000.0),
		"B": ptr(2000.0),
		"C": ptr(2000.0), // tie with B, external id decides
		"D": ptr(5000.0),
		"E": nil,
		"F": nil,
	}
	items := make([]Tender, 0, len(prices))
	for _, id := range []string{"A", "B", "C", "D", "E", "F"} {
		tn := testTender(id, "Titul "+id)
		tn.EstimatedPrice = prices[id]
		items = append(items, tn)
	}
	spec := SortSpec{Field: SortByPrice, Direction: Asc}
	SortTenders(items, spec)

	// For every row, After selects exactly the rows ordered behind it.
	for i := range items {
		token := EncodeCursor(&items[i], spec)
		c, err := DecodeCursor(token, spec)
		require.NoError(t, err)
		for j := range items {
			require.Equal(t, j > i, spec.After(&items[j], c),
				"cursor at %s, probe %s", items[i].ExternalID, items[j].ExternalID)
		}
	}
}
