// Package dataprocessing implements the cancellation analysis pipeline:
// normalizing raw POS export rows into typed records, deriving the
// per-record analytic features, filtering record subsets against a
// conjunctive filter specification, and computing the aggregate tables
// that back every dashboard chart.
//
// Data flows one direction through the package:
//
//	raw rows -> ParseRows (trim, dedupe, parse timestamps)
//	         -> Derive (attached per record)
//	         -> Apply (per-interaction filtering)
//	         -> Summarizer (per-interaction aggregation)
//
// The normalized, derived dataset is immutable once built; Apply and
// the Summarizer only ever produce fresh values from it.
package dataprocessing
