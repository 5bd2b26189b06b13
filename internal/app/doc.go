// Package app wires the loading, aggregation, variant computation, and
// artifact export stages into a single run. The run is all-or-nothing:
// any variant failure aborts before the first artifact is written.
package app
