package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// SortField names a sortable tender attribute.
type SortField string

const (
	SortByCreatedAt SortField = "createdAt"
	SortByDeadline  SortField = "deadline"
	SortByPrice     SortField = "estimatedPrice"
	SortByTitle     SortField = "title"
)

// SortDirection is the sort order.
type SortDirection string

const (
	Asc  SortDirection = "asc"
	Desc SortDirection = "desc"
)

// SortSpec is the single active sort: exactly one field and a direction.
// Rows always carry external id ascending as a deterministic tie-break so
// cursors stay stable on equal sort keys.
type SortSpec struct {
	Field     SortField     `json:"field"`
	Direction SortDirection `json:"direction"`
}

// DefaultSort orders newest first.
func DefaultSort() SortSpec {
	return SortSpec{Field: SortByCreatedAt, Direction: Desc}
}

// Valid reports whether the spec names a known field and direction.
func (s SortSpec) Valid() bool {
	switch s.Field {
	case SortByCreatedAt, SortByDeadline, SortByPrice, SortByTitle:
	default:
		return false
	}
	return s.Direction == Asc || s.Direction == Desc
}

// NullsFirst reports where null sort keys go. Nulls sort last regardless of
// direction, except deadline ascending where they sort first, matching the
// "most urgent first" listings tenders are published in.
func (s SortSpec) NullsFirst() bool {
	return s.Field == SortByDeadline && s.Direction == Asc
}

// Key returns the serialized sort key of a tender: a null flag plus a value
// whose encoding orders the same way the field does. Title keys are
// lower-cased so in-memory ordering matches the stored sort column.
func (s SortSpec) Key(t *Tender) (value string, null bool) {
	switch s.Field {
	case SortByDeadline:
		if t.Deadline == nil {
			return "", true
		}
		return t.Deadline.UTC().Format("2006-01-02"), false
	case SortByPrice:
		if t.EstimatedPrice == nil {
			return "", true
		}
		return strconv.FormatFloat(*t.EstimatedPrice, 'f', -1, 64), false
	case SortByTitle:
		return strings.ToLower(t.Title), false
	default:
		return t.CreatedAt.UTC().Format(time.RFC3339), false
	}
}

// compareKeys compares two serialized non-null sort keys of the same field,
// ascending. Price keys compare numerically, everything else compares as
// the (already sortable) string encoding.
func compareKeys(field SortField, a, b string) int {
	if field == SortByPrice {
		av, _ := strconv.ParseFloat(a, 64)
		bv, _ := strconv.ParseFloat(b, 64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

func nullRank(null, nullsFirst bool) int {
	if null == nullsFirst {
		return 0
	}
	return 1
}

// Less reports whether a orders strictly before b under the spec.
func (s SortSpec) Less(a, b *Tender) bool {
	av, an := s.Key(a)
	bv, bn := s.Key(b)

	ar, br := nullRank(an, s.NullsFirst()), nullRank(bn, s.NullsFirst())
	if ar != br {
		return ar < br
	}
	if an && bn {
		return a.ExternalID < b.ExternalID
	}
	if c := compareKeys(s.Field, av, bv); c != 0 {
		if s.Direction == Asc {
			return c < 0
		}
		return c > 0
	}
	return a.ExternalID < b.ExternalID
}

// After reports whether t sorts strictly after the row a cursor was taken
// from. The in-memory source uses it to resume pagination; the SQL source
// expresses the same predicate in its WHERE clause.
func (s SortSpec) After(t *Tender, c *Cursor) bool {
	tv, tn := s.Key(t)

	tr, cr := nullRank(tn, s.NullsFirst()), nullRank(c.Null, s.NullsFirst())
	if tr != cr {
		return tr > cr
	}
	if tn && c.Null {
		return t.ExternalID > c.ExternalID
	}
	if cmp := compareKeys(s.Field, tv, c.Value); cmp != 0 {
		if s.Direction == Asc {
			return cmp > 0
		}
		return cmp < 0
	}
	return t.ExternalID > c.ExternalID
}

// SortTenders orders items in place under the spec.
func SortTenders(items []Tender, s SortSpec) {
	sort.SliceStable(items, func(i, j int) bool {
		return s.Less(&items[i], &items[j])
	})
}
