// Package urlstate round-trips FilterSet and SortSpec through the flat
// key-value query-string encoding the listing UI carries in its address
// bar. Absence of a key means "unconstrained"; keys are never emitted
// empty-but-present.
package urlstate

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/L4Nci/verejne-zakazky/internal/domain"
)

const (
	keyQuery        = "q"
	keyStatus       = "status"
	keyRegion       = "region"
	keyCPV          = "cpv"
	keyPriceMin     = "bmin"
	keyPriceMax     = "bmax"
	keyDeadlineFrom = "dfrom"
	keyDeadlineTo   = "dto"
	keySort         = "sort"

	dateLayout = "2006-01-02"
)

// Sort tokens: one combined field+direction token per spec field.
const (
	SortNewest       = "newest"
	SortOldest       = "oldest"
	SortDeadlineAsc  = "deadlineAsc"
	SortDeadlineDesc = "deadlineDesc"
	SortBudgetAsc    = "budgetAsc"
	SortBudgetDesc   = "budgetDesc"
	SortTitleAsc     = "titleAsc"
	SortTitleDesc    = "titleDesc"
)

var sortTokens = map[string]domain.SortSpec{
	SortNewest:       {Field: domain.SortByCreatedAt, Direction: domain.Desc},
	SortOldest:       {Field: domain.SortByCreatedAt, Direction: domain.Asc},
	SortDeadlineAsc:  {Field: domain.SortByDeadline, Direction: domain.Asc},
	SortDeadlineDesc: {Field: domain.SortByDeadline, Direction: domain.Desc},
	SortBudgetAsc:    {Field: domain.SortByPrice, Direction: domain.Asc},
	SortBudgetDesc:   {Field: domain.SortByPrice, Direction: domain.Desc},
	SortTitleAsc:     {Field: domain.SortByTitle, Direction: domain.Asc},
	SortTitleDesc:    {Field: domain.SortByTitle, Direction: domain.Desc},
}

// Encode serializes a filter set and sort into URL values. Unconstrained
// fields are omitted entirely, as is the default sort.
func Encode(filters domain.FilterSet, sortSpec domain.SortSpec) url.Values {
	f := filters.Normalized()
	v := url.Values{}

	if f.Query != "" {
		v.Set(keyQuery, f.Query)
	}
	setList(v, keyStatus, f.Statuses)
	setList(v, keyRegion, f.Regions)
	setList(v, keyCPV, f.CPVPrefixes)
	if f.PriceMin != nil {
		v.Set(keyPriceMin, strconv.FormatFloat(*f.PriceMin, 'f', -1, 64))
	}
	if f.PriceMax != nil {
		v.Set(keyPriceMax, strconv.FormatFloat(*f.PriceMax, 'f', -1, 64))
	}
	if f.DeadlineFrom != nil {
		v.Set(keyDeadlineFrom, f.DeadlineFrom.UTC().Format(dateLayout))
	}
	if f.DeadlineTo != nil {
		v.Set(keyDeadlineTo, f.DeadlineTo.UTC().Format(dateLayout))
	}

	if token, ok := sortToken(sortSpec); ok && token != SortNewest {
		v.Set(keySort, token)
	}
	return v
}

// EncodeString is Encode rendered as a query string.
func EncodeString(filters domain.FilterSet, sortSpec domain.SortSpec) string {
	return Encode(filters, sortSpec).Encode()
}

// Decode parses URL values back into a normalized filter set and sort.
// Malformed numeric or date bounds are an error; an unknown sort token
// falls back to the default sort, matching how the UI always recovered
// from a hand-edited address bar.
func Decode(v url.Values) (domain.FilterSet, domain.SortSpec, error) {
	var f domain.FilterSet
	f.Query = strings.TrimSpace(v.Get(keyQuery))
	f.Statuses = splitList(v.Get(keyStatus))
	f.Regions = splitList(v.Get(keyRegion))
	f.CPVPrefixes = splitList(v.Get(keyCPV))

	var err error
	if f.PriceMin, err = parseBound(v.Get(keyPriceMin)); err != nil {
		return domain.FilterSet{}, domain.SortSpec{}, fmt.Errorf("parse %s: %w", keyPriceMin, err)
	}
	if f.PriceMax, err = parseBound(v.Get(keyPriceMax)); err != nil {
		return domain.FilterSet{}, domain.SortSpec{}, fmt.Errorf("parse %s: %w", keyPriceMax, err)
	}
	if f.DeadlineFrom, err = parseDate(v.Get(keyDeadlineFrom)); err != nil {
		return domain.FilterSet{}, domain.SortSpec{}, fmt.Errorf("parse %s: %w", keyDeadlineFrom, err)
	}
	if f.DeadlineTo, err = parseDate(v.Get(keyDeadlineTo)); err != nil {
		return domain.FilterSet{}, domain.SortSpec{}, fmt.Errorf("parse %s: %w", keyDeadlineTo, err)
	}

	sortSpec := domain.DefaultSort()
	if token := v.Get(keySort); token != "" {
		if s, ok := sortTokens[token]; ok {
			sortSpec = s
		}
	}

	return f.Normalized(), sortSpec, nil
}

func sortToken(s domain.SortSpec) (string, bool) {
	for token, spec := range sortTokens {
		if spec == s {
			return token, true
		}
	}
	return "", false
}

func setList(v url.Values, key string, values []string) {
	if len(values) > 0 {
		v.Set(key, strings.Join(values, ","))
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseBound(raw string) (*float64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, fmt.Errorf("bad number %q", raw)
	}
	return &v, nil
}

func parseDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, fmt.Errorf("bad date %q", raw)
	}
	t = t.UTC()
	return &t, nil
}
