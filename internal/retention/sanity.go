package retention

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"retlab/internal/dataprocessing"
)

// sanityChecks computes the labelled diagnostics block and the
// top-countries table for the variant.
func (b *Builder) sanityChecks(data *variantData, raw dataprocessing.RawStats) ([]SanityCheck, []CountryRevenue) {
	topCountries := topCountriesByRevenue(data.countryRevenue, 5)

	values := append([]float64(nil), data.invoiceValuesPos...)
	sort.Float64s(values)
	p99 := percentile(values, 0.99)

	ratio := func(n int) float64 {
		if raw.TotalRows == 0 {
			return 0
		}
		return float64(n) / float64(raw.TotalRows)
	}

	countWithPct := func(n int) string {
		return fmt.Sprintf("%s (%s)", formatInt(n), formatPct(ratio(n)))
	}

	dateRange := "— → —"
	if raw.HasDateRange() {
		dateRange = fmt.Sprintf("%s → %s",
			raw.MinDate.Format("2006-01-02"), raw.MaxDate.Format("2006-01-02"))
	}

	countriesValue := "—"
	if len(topCountries) > 0 {
		parts := make([]string, len(topCountries))
		for i, c := range topCountries {
			parts[i] = fmt.Sprintf("%s (%s)", c.Country, formatMoney(c.Revenue))
		}
		countriesValue = strings.Join(parts, ", ")
	}

	checks := []SanityCheck{
		{
			Key: "total_rows", Label: "Total rows",
			Value: formatInt(raw.TotalRows),
			OK:    raw.TotalRows > 0,
		},
		{
			Key: "rows_after_filters", Label: "Rows after filters",
			Value: formatInt(data.rowsAfterFilters),
			OK:    data.rowsAfterFilters >= 0 && data.rowsAfterFilters <= raw.TotalRows,
		},
		{
			Key: "missing_customerid", Label: "Missing CustomerID",
			Value: countWithPct(raw.MissingCustomerRows),
			OK:    true,
		},
		{
			Key: "qty_le_0", Label: "Quantity ≤ 0",
			Value: countWithPct(raw.QtyLE0Rows),
			OK:    true,
		},
		{
			Key: "unitprice_le_0", Label: "UnitPrice ≤ 0",
			Value: countWithPct(raw.UnitPriceLE0Rows),
			OK:    true,
		},
		{
			Key: "cancellations", Label: "Cancellations (Invoice starts with C)",
			Value: countWithPct(raw.CancellationRows),
			OK:    true,
		},
		{
			Key: "duplicates", Label: "Duplicate rows (row key)",
			Value: countWithPct(raw.DuplicateRows),
			OK:    true,
		},
		{
			Key: "date_range", Label: "InvoiceDate range",
			Value: dateRange,
			OK:    raw.HasDateRange() && !raw.MinDate.After(raw.MaxDate),
		},
		{
			Key: "top_countries", Label: "Top 5 countries by revenue (net)",
			Value: countriesValue,
			OK:    true,
		},
		{
			Key: "p99_invoice_value", Label: "p99 invoice value (positive invoices)",
			Value: formatMoney(p99),
			OK:    true,
		},
	}

	return checks, topCountries
}

// topCountriesByRevenue returns the top-n countries by net revenue,
// descending, with a name tiebreak for determinism.
func topCountriesByRevenue(countryRevenue map[string]float64, n int) []CountryRevenue {
	out := make([]CountryRevenue, 0, len(countryRevenue))
	for country, revenue := range countryRevenue {
		out = append(out, CountryRevenue{Country: country, Revenue: revenue})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].Country < out[j].Country
	})
	if len(out) > n {
		out = out[:n]
	}
	for i := range out {
		out[i].Revenue = round2(out[i].Revenue)
	}
	return out
}

// percentile returns the p-th percentile of sorted values with linear
// interpolation between the surrounding order statistics.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 1 {
		return sorted[len(sorted)-1]
	}
	k := float64(len(sorted)-1) * p
	f := math.Floor(k)
	c := math.Ceil(k)
	if f == c {
		return sorted[int(k)]
	}
	return sorted[int(f)]*(c-k) + sorted[int(c)]*(k-f)
}

// formatInt renders an integer with thousands separators.
func formatInt(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}

// formatPct renders a ratio as a percentage with two decimals.
func formatPct(r float64) string {
	return fmt.Sprintf("%.2f%%", r*100)
}

// formatMoney renders an amount with thousands separators and two decimals.
func formatMoney(x float64) string {
	neg := x < 0
	if neg {
		x = -x
	}
	whole := int(x)
	frac := int(math.Round((x - float64(whole)) * 100))
	if frac == 100 {
		whole++
		frac = 0
	}
	out := fmt.Sprintf("%s.%02d", formatInt(whole), frac)
	if neg {
		out = "-" + out
	}
	return out
}
