// Package record defines the draft fine record created by a field agent,
// its submission validator, and the duplicate-draft detector.
//
// A draft is client-side state only: the server assigns its own
// identifier when a draft is successfully ingested, at which point the
// local copy is deleted.
package record

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ayushhh101/challan-agent/internal/rules"
)

// PaymentChannel is how the passenger settles the fine.
type PaymentChannel string

const (
	// PaymentOnline means settlement through the payment gateway.
	PaymentOnline PaymentChannel = "online"
	// PaymentOffline means cash collected on the spot.
	PaymentOffline PaymentChannel = "offline"
)

// Proof references an evidence file captured on the device.
// The bytes stay on disk until submission; only the reference is queued.
type Proof struct {
	// Path is the on-device file path.
	Path string `json:"path"`
	// Size is the file size in bytes, captured at attach time.
	Size int64 `json:"size"`
}

// Attachment limits enforced by Validate.
const (
	MaxProofs    = 4
	MaxProofSize = 2 << 20 // 2 MiB per proof file
)

// Draft is a not-yet-server-confirmed fine record.
//
// Amount is always derived from Category (and, for fare-floor and
// repeat-tier categories, one auxiliary input) via the rule table; it is
// never hand-entered. ComputeAmount performs that derivation.
type Draft struct {
	Category      string          `json:"category"`
	PassengerName string          `json:"passengerName"`
	AadhaarLast4  string          `json:"aadhaarLast4,omitempty"`
	Mobile        string          `json:"mobile,omitempty"`
	TrainNumber   string          `json:"trainNumber"`
	CoachNumber   string          `json:"coachNumber"`
	Location      string          `json:"location"`

	// FareAmount is the auxiliary input for fare-floor categories.
	FareAmount *decimal.Decimal `json:"fareAmount,omitempty"`
	// PriorOffenses is the auxiliary input for repeat-tier categories.
	PriorOffenses *int `json:"priorOffenses,omitempty"`

	Amount         decimal.Decimal `json:"amount"`
	PaymentChannel PaymentChannel  `json:"paymentChannel"`
	Settled        bool            `json:"settled"`

	// SignatureDataURL is the captured passenger signature as a data URL.
	// Opaque to this subsystem.
	SignatureDataURL string  `json:"signatureDataUrl,omitempty"`
	Proofs           []Proof `json:"proofs,omitempty"`

	IssuedAt time.Time `json:"issuedAt"`
}

// auxInput selects the draft's auxiliary input for the given rule.
// Returns false if the rule needs an input the draft does not carry.
func (d Draft) auxInput(r rules.Rule) (decimal.Decimal, bool) {
	switch r.Kind {
	case rules.KindFareFloor:
		if d.FareAmount == nil {
			return decimal.Zero, false
		}
		return *d.FareAmount, true
	case rules.KindRepeatTier:
		if d.PriorOffenses == nil {
			return decimal.Zero, false
		}
		return decimal.NewFromInt(int64(*d.PriorOffenses)), true
	default:
		return decimal.Zero, true
	}
}

// ComputeAmount derives the draft's amount from its category and
// auxiliary input via the rule table, overwriting any previous value.
func ComputeAmount(t *rules.Table, d *Draft) error {
	r, ok := t.Lookup(d.Category)
	if !ok {
		return fmt.Errorf("%w: %q", rules.ErrUnknownCategory, d.Category)
	}
	aux, ok := d.auxInput(r)
	if !ok {
		return fmt.Errorf("%w for category %q", rules.ErrMissingInput, d.Category)
	}
	amt, err := r.Amount(aux)
	if err != nil {
		return err
	}
	d.Amount = amt
	return nil
}

// IsDuplicate reports whether two drafts represent the same intent:
// identical train number, passenger name and violation category.
//
// This is a heuristic same-intent check used only to block enqueueing an
// obviously repeated offline draft. It is never applied to
// server-confirmed records.
func IsDuplicate(candidate, existing Draft) bool {
	return candidate.TrainNumber == existing.TrainNumber &&
		candidate.PassengerName == existing.PassengerName &&
		candidate.Category == existing.Category
}
