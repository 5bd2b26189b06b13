package dataprocessing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInvoiceDate(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected time.Time
		ok       bool
	}{
		{
			name:     "day first when first token exceeds 12",
			input:    "13/01/2011 08:26",
			expected: time.Date(2011, 1, 13, 8, 26, 0, 0, time.UTC),
			ok:       true,
		},
		{
			name:     "month first when second token exceeds 12",
			input:    "01/13/2011 08:26",
			expected: time.Date(2011, 1, 13, 8, 26, 0, 0, time.UTC),
			ok:       true,
		},
		{
			name:     "ambiguous date defaults to month first",
			input:    "02/03/2011 10:00",
			expected: time.Date(2011, 2, 3, 10, 0, 0, 0, time.UTC),
			ok:       true,
		},
		{
			name:     "slash date with seconds",
			input:    "25/12/2010 14:30:15",
			expected: time.Date(2010, 12, 25, 14, 30, 15, 0, time.UTC),
			ok:       true,
		},
		{
			name:     "iso with seconds",
			input:    "2011-06-15 09:45:30",
			expected: time.Date(2011, 6, 15, 9, 45, 30, 0, time.UTC),
			ok:       true,
		},
		{
			name:     "iso without seconds",
			input:    "2011-06-15 09:45",
			expected: time.Date(2011, 6, 15, 9, 45, 0, 0, time.UTC),
			ok:       true,
		},
		{
			name:     "iso 8601 with T separator",
			input:    "2011-06-15T09:45:30",
			expected: time.Date(2011, 6, 15, 9, 45, 30, 0, time.UTC),
			ok:       true,
		},
		{
			name:  "garbage",
			input: "not a date",
			ok:    false,
		},
		{
			name:  "empty",
			input: "",
			ok:    false,
		},
		{
			name:  "impossible slash date",
			input: "45/45/2011 10:00",
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseInvoiceDate(tt.input)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.expected.Equal(got), "expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestNormalizeCustomerID(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"17850.0", "17850"},
		{"17850", "17850"},
		{"  17850.0  ", "17850"},
		{"", ""},
		{"   ", ""},
		{"ABC.0", "ABC.0"}, // suffix only stripped for numeric ids
		{"12.50", "12.50"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeCustomerID(tt.input))
		})
	}
}

func TestParseRowAccepted(t *testing.T) {
	var stats ParseStats
	row := Row{
		"Invoice":     "536365",
		"StockCode":   "85123A",
		"Quantity":    "6",
		"InvoiceDate": "01/12/2010 08:26",
		"UnitPrice":   "2.55",
		"CustomerID":  "17850.0",
		"Country":     "United Kingdom",
	}

	line, ok := ParseRow(row, &stats)
	require.True(t, ok)

	assert.Equal(t, "536365", line.Invoice)
	assert.Equal(t, "85123A", line.StockCode)
	assert.Equal(t, 6, line.Quantity)
	assert.InDelta(t, 2.55, line.UnitPrice, 1e-9)
	assert.Equal(t, "17850", line.CustomerID)
	assert.Equal(t, "United Kingdom", line.Country)
	assert.InDelta(t, 15.30, line.Revenue(), 1e-9)

	assert.Equal(t, 1, stats.RawRowsSeen)
	assert.Equal(t, 1, stats.ParsedRows)
	assert.Equal(t, 0, stats.SkippedBadNumeric)
	assert.Equal(t, 0, stats.SkippedBadDate)
}

func TestParseRowLegacyAliases(t *testing.T) {
	var stats ParseStats
	row := Row{
		"InvoiceNo":   "536366",
		"Quantity":    "2",
		"InvoiceDate": "2010-12-01 08:28",
		"Price":       "1.85",
		"Customer ID": "13047",
	}

	line, ok := ParseRow(row, &stats)
	require.True(t, ok)
	assert.Equal(t, "536366", line.Invoice)
	assert.InDelta(t, 1.85, line.UnitPrice, 1e-9)
	assert.Equal(t, "13047", line.CustomerID)
	assert.Equal(t, UnknownCountry, line.Country)
}

func TestParseRowRejections(t *testing.T) {
	tests := []struct {
		name        string
		row         Row
		wantSeen    int
		wantNumeric int
		wantDate    int
	}{
		{
			name: "missing invoice dropped silently",
			row: Row{
				"Quantity":    "1",
				"InvoiceDate": "2010-12-01 08:28",
				"UnitPrice":   "1.00",
			},
			wantSeen: 0,
		},
		{
			name: "missing date dropped silently",
			row: Row{
				"Invoice":   "536367",
				"Quantity":  "1",
				"UnitPrice": "1.00",
			},
			wantSeen: 0,
		},
		{
			name: "bad quantity counted",
			row: Row{
				"Invoice":     "536368",
				"Quantity":    "six",
				"InvoiceDate": "2010-12-01 08:28",
				"UnitPrice":   "1.00",
			},
			wantSeen:    1,
			wantNumeric: 1,
		},
		{
			name: "bad price counted",
			row: Row{
				"Invoice":     "536369",
				"Quantity":    "1",
				"InvoiceDate": "2010-12-01 08:28",
				"UnitPrice":   "free",
			},
			wantSeen:    1,
			wantNumeric: 1,
		},
		{
			name: "bad date counted",
			row: Row{
				"Invoice":     "536370",
				"Quantity":    "1",
				"InvoiceDate": "yesterday",
				"UnitPrice":   "1.00",
			},
			wantSeen: 1,
			wantDate: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stats ParseStats
			_, ok := ParseRow(tt.row, &stats)
			assert.False(t, ok)
			assert.Equal(t, tt.wantSeen, stats.RawRowsSeen)
			assert.Equal(t, tt.wantNumeric, stats.SkippedBadNumeric)
			assert.Equal(t, tt.wantDate, stats.SkippedBadDate)
			assert.Equal(t, 0, stats.ParsedRows)
		})
	}
}

func TestParseRowNegativeValues(t *testing.T) {
	var stats ParseStats
	row := Row{
		"Invoice":     "C536371",
		"Quantity":    "-3",
		"InvoiceDate": "2010-12-01 09:00",
		"UnitPrice":   "4.25",
		"CustomerID":  "12583",
	}

	line, ok := ParseRow(row, &stats)
	require.True(t, ok)
	assert.Equal(t, -3, line.Quantity)
	assert.InDelta(t, -12.75, line.Revenue(), 1e-9)
}

func TestParseQuantityTruncatesFloats(t *testing.T) {
	qty, ok := parseQuantity("6.0")
	require.True(t, ok)
	assert.Equal(t, 6, qty)
}
