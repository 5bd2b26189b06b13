// Package dataprocessing turns raw retail transaction exports into
// per-invoice aggregates.
//
// The package runs a single ordered pass: each raw row is parsed into a
// TransactionLine (or rejected and counted), then folded into an
// InvoiceAggregate keyed by invoice id. Merge semantics are order
// dependent on purpose: the first non-empty customer id wins, the first
// known country wins, the latest timestamp wins, and the return flag is
// sticky once set. Downstream variant computation treats the finished
// invoice map as immutable.
package dataprocessing
