package record

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/ayushhh101/challan-agent/internal/rules"
)

// ValidationError reports the first failing check for a draft.
// Checks run in a fixed order so the message is deterministic for a
// given draft.
type ValidationError struct {
	// Field names the offending draft field.
	Field string
	// Message is a human-readable reason, shown to the agent as-is.
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var (
	namePattern       = regexp.MustCompile(`^[A-Za-z ]+$`)
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9 -]+$`)
	aadhaarPattern    = regexp.MustCompile(`^[0-9]{4}$`)
	mobilePattern     = regexp.MustCompile(`^[6-9][0-9]{9}$`)
)

// Validate checks a draft's field constraints before it is queued or
// submitted. Both the offline-enqueue path and the direct-online path
// run this identical sequence; the first failing check wins.
//
// The draft must already have its amount computed (ComputeAmount);
// Validate only verifies the result is strictly positive.
func Validate(t *rules.Table, d Draft) error {
	// 1. Required free-text fields, restricted character classes.
	if d.PassengerName == "" {
		return &ValidationError{Field: "passengerName", Message: "required"}
	}
	if !namePattern.MatchString(d.PassengerName) {
		return &ValidationError{Field: "passengerName", Message: "only letters and spaces allowed"}
	}
	if d.TrainNumber == "" {
		return &ValidationError{Field: "trainNumber", Message: "required"}
	}
	if !identifierPattern.MatchString(d.TrainNumber) {
		return &ValidationError{Field: "trainNumber", Message: "only letters, digits, spaces and hyphens allowed"}
	}
	if d.CoachNumber == "" {
		return &ValidationError{Field: "coachNumber", Message: "required"}
	}
	if !identifierPattern.MatchString(d.CoachNumber) {
		return &ValidationError{Field: "coachNumber", Message: "only letters, digits, spaces and hyphens allowed"}
	}

	// 2. Optional fixed-length numeric fields.
	if d.AadhaarLast4 != "" && !aadhaarPattern.MatchString(d.AadhaarLast4) {
		return &ValidationError{Field: "aadhaarLast4", Message: "must be exactly 4 digits"}
	}
	if d.Mobile != "" && !mobilePattern.MatchString(d.Mobile) {
		return &ValidationError{Field: "mobile", Message: "must be 10 digits starting with 6-9"}
	}

	// 3. Category selected and known.
	if d.Category == "" {
		return &ValidationError{Field: "category", Message: "required"}
	}
	rule, ok := t.Lookup(d.Category)
	if !ok {
		return &ValidationError{Field: "category", Message: fmt.Sprintf("unknown category %q", d.Category)}
	}

	// 4. Auxiliary input, where the category requires one.
	switch rule.Kind {
	case rules.KindFareFloor:
		if d.FareAmount == nil || !d.FareAmount.IsPositive() {
			return &ValidationError{Field: "fareAmount", Message: "fare must be present and positive"}
		}
	case rules.KindRepeatTier:
		if d.PriorOffenses == nil || *d.PriorOffenses < 1 {
			return &ValidationError{Field: "priorOffenses", Message: "prior-offense count must be a positive integer"}
		}
	}

	// 5. Computed amount.
	if !d.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "computed amount must be positive"}
	}

	// 6. Location.
	if d.Location == "" {
		return &ValidationError{Field: "location", Message: "required"}
	}

	// 7. Payment channel.
	if d.PaymentChannel != PaymentOnline && d.PaymentChannel != PaymentOffline {
		return &ValidationError{Field: "paymentChannel", Message: "must be online or offline"}
	}

	// 8. Proof attachment caps.
	if len(d.Proofs) > MaxProofs {
		return &ValidationError{Field: "proofs", Message: fmt.Sprintf("at most %d proof files allowed", MaxProofs)}
	}
	for _, p := range d.Proofs {
		if p.Size > MaxProofSize {
			return &ValidationError{Field: "proofs", Message: fmt.Sprintf("proof %s exceeds %d bytes", p.Path, MaxProofSize)}
		}
	}

	return nil
}
