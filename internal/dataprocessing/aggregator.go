package dataprocessing

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// AggregateResult is the output of the single aggregation pass.
type AggregateResult struct {
	Invoices map[string]*InvoiceAggregate
	Raw      RawStats
	Parse    ParseStats
}

// TotalRevenue returns the net revenue summed over all invoices.
func (r *AggregateResult) TotalRevenue() float64 {
	var total float64
	for _, inv := range r.Invoices {
		total += inv.Revenue
	}
	return total
}

// Aggregator folds transaction lines into per-invoice aggregates while
// collecting raw-dataset statistics. It is a single-writer accumulator:
// the fold must run as one ordered pass because "first non-empty wins"
// and "latest timestamp wins" tie-breaks depend on input order.
type Aggregator struct {
	logger    *slog.Logger
	invoices  map[string]*InvoiceAggregate
	seenRows  map[uint64]struct{}
	raw       RawStats
	parse     ParseStats
	finalized bool
}

// NewAggregator creates a new invoice aggregator.
func NewAggregator(logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		logger:   logger,
		invoices: make(map[string]*InvoiceAggregate),
		seenRows: make(map[uint64]struct{}),
	}
}

// ConsumeRow parses one raw row and, if accepted, folds it into the
// invoice map. Rejected rows only move counters.
func (a *Aggregator) ConsumeRow(row Row) {
	line, ok := ParseRow(row, &a.parse)
	if !ok {
		return
	}
	a.consumeLine(line)
}

// consumeLine folds one accepted line into statistics and the invoice map.
func (a *Aggregator) consumeLine(line TransactionLine) {
	a.raw.TotalRows++
	a.raw.UpdateDateRange(line.Timestamp)
	if !line.HasCustomer() {
		a.raw.MissingCustomerRows++
	}
	if line.Quantity <= 0 {
		a.raw.QtyLE0Rows++
	}
	if line.UnitPrice <= 0 {
		a.raw.UnitPriceLE0Rows++
	}
	if strings.HasPrefix(line.Invoice, ReturnMarker) {
		a.raw.CancellationRows++
	}

	// Duplicate lines are reported, not dropped: line-level duplication is
	// common in this export format and dropping would silently change
	// computed revenue. The signal is surfaced in the sanity checks.
	h := rowKeyHash(line)
	if _, dup := a.seenRows[h]; dup {
		a.raw.DuplicateRows++
	} else {
		a.seenRows[h] = struct{}{}
	}

	isReturn := strings.HasPrefix(line.Invoice, ReturnMarker) || line.Quantity < 0

	inv, exists := a.invoices[line.Invoice]
	if !exists {
		a.invoices[line.Invoice] = &InvoiceAggregate{
			Invoice:     line.Invoice,
			CustomerID:  line.CustomerID,
			Country:     line.Country,
			InvoiceDate: line.Timestamp,
			Revenue:     line.Revenue(),
			IsReturn:    isReturn,
			LineCount:   1,
		}
		return
	}

	inv.Revenue += line.Revenue()
	inv.LineCount++
	inv.IsReturn = inv.IsReturn || isReturn
	if inv.CustomerID == "" && line.CustomerID != "" {
		inv.CustomerID = line.CustomerID
	}
	if inv.Country == UnknownCountry && line.Country != UnknownCountry {
		inv.Country = line.Country
	}
	if line.Timestamp.After(inv.InvoiceDate) {
		inv.InvoiceDate = line.Timestamp
	}
}

// Result finalizes the fold and returns the aggregates. The invoice map
// must be treated as read-only by all consumers.
func (a *Aggregator) Result() *AggregateResult {
	if !a.finalized {
		a.finalized = true
		a.logger.Info("invoice aggregation complete",
			"invoices", len(a.invoices),
			"rows_seen", a.parse.RawRowsSeen,
			"rows_parsed", a.parse.ParsedRows,
			"skipped_bad_numeric", a.parse.SkippedBadNumeric,
			"skipped_bad_date", a.parse.SkippedBadDate,
			"duplicate_rows", a.raw.DuplicateRows,
		)
	}
	return &AggregateResult{
		Invoices: a.invoices,
		Raw:      a.raw,
		Parse:    a.parse,
	}
}

// rowKeyHash computes a stable 64-bit hash over the identity of a line:
// (invoice, SKU, customer, quantity, unit price). Two lines with the same
// hash are considered duplicates for reporting purposes.
func rowKeyHash(line TransactionLine) uint64 {
	key := fmt.Sprintf("%s|%s|%s|%d|%.4f",
		line.Invoice, line.StockCode, line.CustomerID, line.Quantity, line.UnitPrice)
	digest, err := blake2b.New(8, nil)
	if err != nil {
		// blake2b.New only fails on invalid sizes; 8 is valid.
		panic(err)
	}
	digest.Write([]byte(key))
	return binary.BigEndian.Uint64(digest.Sum(nil))
}
