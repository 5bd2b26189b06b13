package dataprocessing

import (
	"time"
)

// Row is one raw input record keyed by column name.
type Row map[string]string

// TransactionLine is one parsed and validated invoice line item.
// CustomerID is empty when the source row carries no customer identifier.
type TransactionLine struct {
	Invoice    string
	StockCode  string
	Quantity   int
	UnitPrice  float64
	Timestamp  time.Time
	CustomerID string
	Country    string
}

// HasCustomer reports whether the line carries a customer identifier.
func (l TransactionLine) HasCustomer() bool {
	return l.CustomerID != ""
}

// Revenue returns the net revenue contribution of this line.
func (l TransactionLine) Revenue() float64 {
	return float64(l.Quantity) * l.UnitPrice
}

// InvoiceAggregate accumulates all lines of one invoice. It is mutated
// only during the single aggregation pass and read-only afterwards.
type InvoiceAggregate struct {
	Invoice     string
	CustomerID  string // first non-empty wins
	Country     string // first non-"Unknown" wins
	InvoiceDate time.Time
	Revenue     float64
	IsReturn    bool // sticky once set
	LineCount   int
}

// ParseStats counts row-level parse outcomes for one run. Rejected rows
// are counted, never raised; malformed rows are expected in real exports.
type ParseStats struct {
	RawRowsSeen       int // rows with invoice and date present (attempted)
	ParsedRows        int // rows successfully parsed for qty/price/date
	SkippedBadNumeric int
	SkippedBadDate    int
}

// ParseRatio returns the parsed/seen ratio, 0 when nothing was seen.
func (p ParseStats) ParseRatio() float64 {
	if p.RawRowsSeen == 0 {
		return 0
	}
	return float64(p.ParsedRows) / float64(p.RawRowsSeen)
}

// RawStats holds descriptive statistics over all accepted lines, before
// any variant filtering.
type RawStats struct {
	TotalRows           int
	MissingCustomerRows int
	QtyLE0Rows          int
	UnitPriceLE0Rows    int
	CancellationRows    int // invoice id starts with the return marker
	DuplicateRows       int
	MinDate             time.Time
	MaxDate             time.Time
}

// UpdateDateRange extends the observed date range with d.
func (r *RawStats) UpdateDateRange(d time.Time) {
	if r.MinDate.IsZero() || d.Before(r.MinDate) {
		r.MinDate = d
	}
	if r.MaxDate.IsZero() || d.After(r.MaxDate) {
		r.MaxDate = d
	}
}

// HasDateRange reports whether at least one dated row was accepted.
func (r *RawStats) HasDateRange() bool {
	return !r.MinDate.IsZero() && !r.MaxDate.IsZero()
}

// ReturnMarker is the invoice-id prefix denoting a cancellation/return.
const ReturnMarker = "C"

// UnknownCountry is the placeholder for rows without a country.
const UnknownCountry = "Unknown"
