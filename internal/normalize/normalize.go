// Package normalize cleans up the raw values Czech procurement sources
// publish: spaced decimal numbers, currency words, status labels and
// several date formats.
package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const nbsp = " "

var (
	czkPattern = regexp.MustCompile(`(?i)\b(CZK|Kč|koruna\s*česká)\b`)
	eurPattern = regexp.MustCompile(`(?i)(\bEUR\b|€|\beuro\b)`)
	numPattern = regexp.MustCompile(`([\d .` + nbsp + `]+)([,.]\d{1,2})?`)
	wsPattern  = regexp.MustCompile(`\s+`)
)

// ParseDecimal extracts a decimal number from text like "400 000,00" or
// "1 234.5". Thousands may be separated by spaces, non-breaking spaces or
// dots; the decimal separator is a comma or a dot with at most two digits.
func ParseDecimal(text string) (float64, bool) {
	if text == "" {
		return 0, false
	}
	t := strings.TrimSpace(strings.ReplaceAll(text, nbsp, " "))
	m := numPattern.FindStringSubmatch(t)
	if m == nil {
		return 0, false
	}
	intPart := strings.NewReplacer(" ", "", ".", "", nbsp, "").Replace(m[1])
	frac := strings.ReplaceAll(m[2], ",", ".")
	v, err := strconv.ParseFloat(intPart+frac, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// DetectCurrency recognizes CZK and EUR mentions; anything else is "".
func DetectCurrency(text string) string {
	if text == "" {
		return ""
	}
	if czkPattern.MatchString(text) {
		return "CZK"
	}
	if eurPattern.MatchString(text) {
		return "EUR"
	}
	return ""
}

// Money normalizes a monetary value and its ISO currency from free text.
// Returns a nil price when no number is found.
func Money(valueText, currencyText string) (*float64, string) {
	currency := DetectCurrency(valueText + " " + currencyText)
	v, ok := ParseDecimal(valueText)
	if !ok {
		return nil, currency
	}
	return &v, currency
}

// statusMap translates the NEN state vocabulary into the controlled one.
var statusMap = map[string]string{
	"Neukončen":        "open",
	"Neukončeno":       "open",
	"Ukončení plnění":  "completed",
	"Zadané":           "awarded",
	"Zadán":            "awarded",
	"Zrušené":          "cancelled",
	"Zrušeno":          "cancelled",
	"Ukončen":          "closed",
}

// Status returns the normalized status plus the original label so nothing
// is lost. Unknown labels normalize to their lower-cased trimmed form.
func Status(raw string) (normalized, original string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	if norm, ok := statusMap[raw]; ok {
		return norm, raw
	}
	return strings.ToLower(raw), raw
}

var dateLayouts = []string{
	"2. 1. 2006 15:04",
	"2.1.2006 15:04",
	"2. 1. 2006",
	"2.1.2006",
	"2006-01-02",
}

// Date parses the date formats NEN uses, with or without a time of day.
func Date(text string) (time.Time, bool) {
	if text == "" {
		return time.Time{}, false
	}
	t := CollapseWhitespace(text)
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, t); err == nil {
			return parsed.UTC(), true
		}
	}
	return time.Time{}, false
}

// CollapseWhitespace squeezes runs of whitespace to single spaces and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(wsPattern.ReplaceAllString(strings.ReplaceAll(s, nbsp, " "), " "))
}
