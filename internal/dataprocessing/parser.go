package dataprocessing

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Column aliases: the dataset exists in several historical exports with
// slightly different header names for the same semantic field.
var (
	invoiceAliases   = []string{"Invoice", "InvoiceNo"}
	stockAliases     = []string{"StockCode"}
	quantityAliases  = []string{"Quantity"}
	dateAliases      = []string{"InvoiceDate"}
	unitPriceAliases = []string{"UnitPrice", "Price", "Unit Price"}
	customerAliases  = []string{"CustomerID", "Customer ID"}
	countryAliases   = []string{"Country"}
)

var (
	dateFormatsMonthFirst = []string{
		"1/2/2006 15:04",
		"1/2/2006 15:04:05",
	}
	dateFormatsDayFirst = []string{
		"2/1/2006 15:04",
		"2/1/2006 15:04:05",
	}
	dateFormatsISO = []string{
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
)

// slashDatePattern captures the first two numeric tokens of a
// slash-delimited date with a time component.
var slashDatePattern = regexp.MustCompile(`^\s*(\d{1,2})/(\d{1,2})/(\d{4})\s+\d{1,2}:\d{2}`)

// ParseRow attempts to produce a TransactionLine from one raw row.
// Rows without an invoice id or date are dropped silently; rows whose
// numeric or date fields fail to parse are counted on stats and dropped.
func ParseRow(row Row, stats *ParseStats) (TransactionLine, bool) {
	invoice := strings.TrimSpace(fieldValue(row, invoiceAliases))
	dateRaw := strings.TrimSpace(fieldValue(row, dateAliases))
	if invoice == "" || dateRaw == "" {
		return TransactionLine{}, false
	}

	stats.RawRowsSeen++

	qty, qtyOK := parseQuantity(fieldValue(row, quantityAliases))
	unitPrice, priceOK := parsePrice(fieldValue(row, unitPriceAliases))
	if !qtyOK || !priceOK {
		stats.SkippedBadNumeric++
		return TransactionLine{}, false
	}

	timestamp, dateOK := ParseInvoiceDate(dateRaw)
	if !dateOK {
		stats.SkippedBadDate++
		return TransactionLine{}, false
	}

	stats.ParsedRows++

	country := strings.TrimSpace(fieldValue(row, countryAliases))
	if country == "" {
		country = UnknownCountry
	}

	return TransactionLine{
		Invoice:    invoice,
		StockCode:  strings.TrimSpace(fieldValue(row, stockAliases)),
		Quantity:   qty,
		UnitPrice:  unitPrice,
		Timestamp:  timestamp,
		CustomerID: NormalizeCustomerID(fieldValue(row, customerAliases)),
		Country:    country,
	}, true
}

// fieldValue returns the first non-empty value among the aliased columns.
func fieldValue(row Row, aliases []string) string {
	for _, name := range aliases {
		if v, ok := row[name]; ok && strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// ParseInvoiceDate parses a raw timestamp, disambiguating day-first vs
// month-first slash dates: if the first token exceeds 12 the date is
// day-first, if the second exceeds 12 it is month-first, otherwise
// month-first formats are tried before day-first. This is a best-effort
// heuristic with no locale validation and is preserved as-is.
func ParseInvoiceDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}

	var formats []string
	if strings.Contains(s, "/") {
		preferDayFirst := false
		if m := slashDatePattern.FindStringSubmatch(s); m != nil {
			a, _ := strconv.Atoi(m[1])
			b, _ := strconv.Atoi(m[2])
			if a > 12 && b <= 12 {
				preferDayFirst = true
			}
		}
		if preferDayFirst {
			formats = append(formats, dateFormatsDayFirst...)
			formats = append(formats, dateFormatsMonthFirst...)
		} else {
			formats = append(formats, dateFormatsMonthFirst...)
			formats = append(formats, dateFormatsDayFirst...)
		}
	}
	formats = append(formats, dateFormatsISO...)

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, true
		}
	}

	// Last resort: full ISO-8601.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// parseQuantity parses a quantity, accepting float syntax truncated to an
// integer, the way spreadsheet exports render whole numbers.
func parseQuantity(raw string) (int, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return int(f), true
}

// parsePrice parses a unit price. Negative and zero prices are valid.
func parsePrice(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// NormalizeCustomerID strips the trailing ".0" artifact that spreadsheet
// exports add to numeric ids. An empty result means no customer.
func NormalizeCustomerID(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if trimmed, ok := strings.CutSuffix(s, ".0"); ok && isDigits(trimmed) {
		return trimmed
	}
	return s
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
