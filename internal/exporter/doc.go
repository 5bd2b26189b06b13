// Package exporter assembles and writes the per-variant JSON artifacts.
//
// Each configuration variant produces one self-describing document with a
// meta header, a sanity block, both retention matrices, and the RFM
// segment tables. File names are derived from the variant slug, so a run
// over the same input is byte-for-byte reproducible apart from the
// generated_at timestamp.
package exporter
