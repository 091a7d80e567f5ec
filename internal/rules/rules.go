package rules

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Kind identifies how a rule computes its amount.
type Kind string

const (
	// KindFixed rules carry a constant amount and take no auxiliary input.
	KindFixed Kind = "fixed"
	// KindFareFloor rules charge max(floor, collected fare).
	KindFareFloor Kind = "fare_floor"
	// KindRepeatTier rules charge a higher tier when the prior-offense
	// count exceeds one.
	KindRepeatTier Kind = "repeat_tier"
)

// ErrUnknownCategory is returned when a category is not in the table.
// Callers must treat this as a validation failure, not a crash.
var ErrUnknownCategory = errors.New("unknown violation category")

// ErrMissingInput is returned when a rule requires an auxiliary input
// and none (or a non-positive one) was supplied.
var ErrMissingInput = errors.New("auxiliary input required")

// Rule is one immutable entry of the fine rule table.
type Rule struct {
	// Category is the human-readable violation category name, unique
	// within the table.
	Category string
	// Section is the statutory reference (Railways Act, 1989).
	Section string
	// Description is shown to the issuing agent.
	Description string
	// Kind selects the amount computation.
	Kind Kind

	// Fixed is the constant amount for KindFixed rules.
	Fixed decimal.Decimal
	// Floor is the minimum charge for KindFareFloor rules.
	Floor decimal.Decimal
	// FirstTier and RepeatTier are the two charges for KindRepeatTier rules.
	FirstTier  decimal.Decimal
	RepeatTier decimal.Decimal
}

// RequiresInput reports whether computing this rule's amount needs an
// auxiliary numeric input (fare, or prior-offense count).
func (r Rule) RequiresInput() bool {
	return r.Kind == KindFareFloor || r.Kind == KindRepeatTier
}

// Amount computes the fine amount in rupees.
//
// For KindFixed rules aux is ignored. For KindFareFloor rules aux is the
// collected fare and must be non-negative. For KindRepeatTier rules aux
// is the prior-offense count and must be a positive integer.
//
// The result is always strictly positive; amounts are derived here and
// never hand-entered.
func (r Rule) Amount(aux decimal.Decimal) (decimal.Decimal, error) {
	switch r.Kind {
	case KindFixed:
		return r.Fixed, nil

	case KindFareFloor:
		if aux.IsNegative() {
			return decimal.Zero, fmt.Errorf("%w: fare must be non-negative, got %s", ErrMissingInput, aux)
		}
		// max(floor, fare)
		if aux.GreaterThan(r.Floor) {
			return aux, nil
		}
		return r.Floor, nil

	case KindRepeatTier:
		if !aux.IsInteger() || !aux.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: prior-offense count must be a positive integer, got %s", ErrMissingInput, aux)
		}
		if aux.IntPart() > 1 {
			return r.RepeatTier, nil
		}
		return r.FirstTier, nil

	default:
		return decimal.Zero, fmt.Errorf("rule %q has invalid kind %q", r.Category, r.Kind)
	}
}

// Table is the immutable fine rule table, loaded once at process start.
type Table struct {
	byCategory map[string]Rule
	ordered    []Rule // declaration order from table.cue
}

// Lookup returns the rule for a category, or false if the category is
// not in the table.
func (t *Table) Lookup(category string) (Rule, bool) {
	r, ok := t.byCategory[category]
	return r, ok
}

// Rules returns all rules in declaration order.
// The returned slice is a copy; callers may not mutate the table.
func (t *Table) Rules() []Rule {
	out := make([]Rule, len(t.ordered))
	copy(out, t.ordered)
	return out
}

// Amount looks up a category and computes its amount in one step.
// Returns ErrUnknownCategory if the category is not in the table.
func (t *Table) Amount(category string, aux decimal.Decimal) (decimal.Decimal, error) {
	r, ok := t.Lookup(category)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return r.Amount(aux)
}
