// Package rules defines the fine rule table: the static mapping from
// violation categories to statutory sections and amount computation.
//
// The table is authored declaratively in an embedded CUE file
// (table.cue), validated against a closed schema and decoded once at
// process start. Amounts are decimal rupees; a category's amount is
// either a fixed figure or a pure function of one auxiliary numeric
// input (collected fare, or prior-offense count).
//
// The table is immutable after Load. All lookups and amount
// computations are pure and safe for concurrent use.
package rules
