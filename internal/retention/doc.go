// Package retention computes cohort retention matrices, revenue-retention
// matrices, and RFM customer segments from finalized invoice aggregates.
//
// Each of the eight configuration variants (month/week granularity ×
// include/exclude returns × include/exclude anonymous customers) is an
// independent computation over the same read-only invoice map. A variant
// first filters invoices, buckets the survivors into customer-period
// cells, assigns each customer a cohort (first active period), and then
// derives the matrices over cohort offsets up to a capped horizon.
//
// All percentage cells are clamped to [0,100] and rounded to one decimal.
// A variant whose filters eliminate all data is a hard error: a partial
// artifact set is considered worse than no output.
package retention
