package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"400 000,00", 400000, true},
		{"1 234,5", 1234.5, true},
		{"1.234.567", 1234567, true},
		{"2500000", 2500000, true},
		{"98,76", 98.76, true},
		{"cca 1 500 000 Kč", 1500000, true},
		{"", 0, false},
		{"neuvedeno", 0, false},
	}
	for _, tc := range cases {
		got, ok := ParseDecimal(tc.in)
		require.Equal(t, tc.ok, ok, "input %q", tc.in)
		if ok {
			require.InDelta(t, tc.want, got, 0.001, "input %q", tc.in)
		}
	}
}

func TestDetectCurrency(t *testing.T) {
	require.Equal(t, "CZK", DetectCurrency("400 000 Kč"))
	require.Equal(t, "CZK", DetectCurrency("CZK"))
	require.Equal(t, "EUR", DetectCurrency("15 000 €"))
	require.Equal(t, "EUR", DetectCurrency("hodnota v EUR"))
	require.Equal(t, "", DetectCurrency("400 000"))
	require.Equal(t, "", DetectCurrency(""))
}

func TestMoney(t *testing.T) {
	price, currency := Money("1 250 000,50 Kč", "")
	require.NotNil(t, price)
	require.InDelta(t, 1250000.50, *price, 0.001)
	require.Equal(t, "CZK", currency)

	price, currency = Money("neuvedeno", "EUR")
	require.Nil(t, price)
	require.Equal(t, "EUR", currency)
}

func TestStatus(t *testing.T) {
	cases := map[string]string{
		"Neukončen":       "open",
		"Neukončeno":      "open",
		"Ukončení plnění": "completed",
		"Zadané":          "awarded",
		"Zadán":           "awarded",
		"Zrušené":         "cancelled",
		"Zrušeno":         "cancelled",
		"Ukončen":         "closed",
	}
	for raw, want := range cases {
		norm, orig := Status(raw)
		require.Equal(t, want, norm, raw)
		require.Equal(t, raw, orig)
	}

	norm, orig := Status("  Probíhá hodnocení  ")
	require.Equal(t, "probíhá hodnocení", norm)
	require.Equal(t, "Probíhá hodnocení", orig)

	norm, orig = Status("")
	require.Empty(t, norm)
	require.Empty(t, orig)
}

func TestDate(t *testing.T) {
	cases := map[string]time.Time{
		"30. 9. 2026 10:00": time.Date(2026, 9, 30, 10, 0, 0, 0, time.UTC),
		"30.9.2026":         time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
		"2. 1. 2027":        time.Date(2027, 1, 2, 0, 0, 0, 0, time.UTC),
		"2026-09-30":        time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC),
	}
	for raw, want := range cases {
		got, ok := Date(raw)
		require.True(t, ok, raw)
		require.True(t, want.Equal(got), raw)
	}

	_, ok := Date("bez termínu")
	require.False(t, ok)
	_, ok = Date("")
	require.False(t, ok)
}

func TestCollapseWhitespace(t *testing.T) {
	require.Equal(t, "Oprava silnice II/602", CollapseWhitespace("  Oprava \n silnice\tII/602  "))
	require.Equal(t, "400 000", CollapseWhitespace("400 000"))
	require.Equal(t, "", CollapseWhitespace("   "))
}
