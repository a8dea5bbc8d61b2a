package domain

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// FilterSet is the complete set of user constraints narrowing a listing.
// Empty fields mean "no constraint". A normalized FilterSet is structurally
// comparable and usable as a query key.
type FilterSet struct {
	// Query is matched case-insensitively as a substring of title, buyer
	// or description.
	Query string

	// Statuses and Regions are membership filters over the normalized
	// (lower-cased, trimmed) forms.
	Statuses []string
	Regions  []string

	// CPVPrefixes match when ANY of a tender's CPV codes starts with ANY
	// of the prefixes. Prefix match, not set overlap.
	CPVPrefixes []string

	PriceMin *float64
	PriceMax *float64

	// Deadline bounds are inclusive on both ends, date granularity.
	DeadlineFrom *time.Time
	DeadlineTo   *time.Time
}

func normalizeSet(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

// Normalized returns the canonical form: trimmed query, lower-cased
// deduplicated sorted sets, empty sets as nil. Field order never matters
// for equality of normalized sets.
func (f FilterSet) Normalized() FilterSet {
	out := f
	out.Query = strings.TrimSpace(f.Query)
	out.Statuses = normalizeSet(f.Statuses)
	out.Regions = normalizeSet(f.Regions)
	out.CPVPrefixes = normalizeSet(f.CPVPrefixes)
	if f.DeadlineFrom != nil {
		d := f.DeadlineFrom.UTC().Truncate(24 * time.Hour)
		out.DeadlineFrom = &d
	}
	if f.DeadlineTo != nil {
		d := f.DeadlineTo.UTC().Truncate(24 * time.Hour)
		out.DeadlineTo = &d
	}
	return out
}

// IsZero reports whether no constraint is set.
func (f FilterSet) IsZero() bool {
	return f.Query == "" &&
		len(f.Statuses) == 0 && len(f.Regions) == 0 && len(f.CPVPrefixes) == 0 &&
		f.PriceMin == nil && f.PriceMax == nil &&
		f.DeadlineFrom == nil && f.DeadlineTo == nil
}

// Key returns a canonical string for the normalized filter set, suitable
// for cache and session keying.
func (f FilterSet) Key() string {
	n := f.Normalized()
	var b strings.Builder
	b.WriteString("q=")
	b.WriteString(strings.ToLower(n.Query))
	b.WriteString(";st=")
	b.WriteString(strings.Join(n.Statuses, ","))
	b.WriteString(";rg=")
	b.WriteString(strings.Join(n.Regions, ","))
	b.WriteString(";cpv=")
	b.WriteString(strings.Join(n.CPVPrefixes, ","))
	b.WriteString(";pmin=")
	b.WriteString(formatBound(n.PriceMin))
	b.WriteString(";pmax=")
	b.WriteString(formatBound(n.PriceMax))
	b.WriteString(";dfrom=")
	b.WriteString(formatDateBound(n.DeadlineFrom))
	b.WriteString(";dto=")
	b.WriteString(formatDateBound(n.DeadlineTo))
	return b.String()
}

func formatBound(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatDateBound(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format("2006-01-02")
}

// Equal reports structural equality of the normalized forms.
func (f FilterSet) Equal(other FilterSet) bool {
	return f.Key() == other.Key()
}

// Matches applies the full predicate to one tender. The composition order
// is fixed (text, membership, CPV prefix, price range, deadline range) and
// identical no matter whether a predicate runs here or at the data source.
func (f FilterSet) Matches(t *Tender) bool {
	if q := strings.TrimSpace(f.Query); q != "" {
		q = strings.ToLower(q)
		if !strings.Contains(strings.ToLower(t.Title), q) &&
			!strings.Contains(strings.ToLower(t.Buyer), q) &&
			!strings.Contains(strings.ToLower(t.Description), q) {
			return false
		}
	}

	if len(f.Statuses) > 0 && !containsFold(f.Statuses, t.Status) {
		return false
	}
	if len(f.Regions) > 0 && !containsFold(f.Regions, t.Region) {
		return false
	}

	if len(f.CPVPrefixes) > 0 && !anyPrefixMatch(t.CPVCodes, f.CPVPrefixes) {
		return false
	}

	if f.PriceMin != nil || f.PriceMax != nil {
		// A tender without a price never satisfies a price bound.
		if t.EstimatedPrice == nil {
			return false
		}
		if f.PriceMin != nil && *t.EstimatedPrice < *f.PriceMin {
			return false
		}
		if f.PriceMax != nil && *t.EstimatedPrice > *f.PriceMax {
			return false
		}
	}

	if f.DeadlineFrom != nil || f.DeadlineTo != nil {
		if t.Deadline == nil {
			return false
		}
		d := t.Deadline.UTC().Truncate(24 * time.Hour)
		if f.DeadlineFrom != nil && d.Before(f.DeadlineFrom.UTC().Truncate(24*time.Hour)) {
			return false
		}
		if f.DeadlineTo != nil && d.After(f.DeadlineTo.UTC().Truncate(24*time.Hour)) {
			return false
		}
	}

	return true
}

func containsFold(set []string, value string) bool {
	value = strings.ToLower(strings.TrimSpace(value))
	for _, s := range set {
		if strings.ToLower(strings.TrimSpace(s)) == value {
			return true
		}
	}
	return false
}

func anyPrefixMatch(codes, prefixes []string) bool {
	for _, code := range codes {
		code = strings.TrimSpace(code)
		for _, p := range prefixes {
			if p != "" && strings.HasPrefix(code, p) {
				return true
			}
		}
	}
	return false
}

// ApplyFilters is the one shared filter/sort routine: it applies the
// identical predicate and ordering semantics as a data source pushdown,
// in memory. Server-pushed and client-applied filtering must produce the
// same results for the same inputs, so every call site uses this routine
// rather than reimplementing it.
func ApplyFilters(items []Tender, f FilterSet, s SortSpec) []Tender {
	nf := f.Normalized()
	if !s.Valid() {
		s = DefaultSort()
	}
	out := make([]Tender, 0, len(items))
	for i := range items {
		if nf.Matches(&items[i]) {
			out = append(out, items[i])
		}
	}
	SortTenders(out, s)
	return out
}
