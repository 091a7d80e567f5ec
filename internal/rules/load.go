package rules

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/shopspring/decimal"
)

//go:embed table.cue
var tableCUE string

// rawRule mirrors the #Rule schema in table.cue for decoding.
// Amounts are integral rupees in the source; they become decimals here.
type rawRule struct {
	Section     string `json:"section"`
	Description string `json:"description"`
	Kind        string `json:"kind"`
	Amount      int64  `json:"amount"`
	Floor       int64  `json:"floor"`
	First       int64  `json:"first"`
	Repeat      int64  `json:"repeat"`
}

// Load parses, validates and decodes the embedded rule table.
//
// The CUE schema enforces structure (closed rule shape, positive
// amounts, repeat tier strictly above first tier) before any Go code
// sees the values, so a malformed table fails at startup rather than
// at issuance time.
func Load() (*Table, error) {
	ctx := cuecontext.New()

	val := ctx.CompileString(tableCUE, cue.Filename("table.cue"))
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("compiling rule table: %w", err)
	}
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("validating rule table: %w", err)
	}

	rulesVal := val.LookupPath(cue.ParsePath("rules"))
	if err := rulesVal.Err(); err != nil {
		return nil, fmt.Errorf("rule table missing rules field: %w", err)
	}

	iter, err := rulesVal.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating rule table: %w", err)
	}

	t := &Table{byCategory: make(map[string]Rule)}
	for iter.Next() {
		category := iter.Selector().Unquoted()

		var raw rawRule
		if err := iter.Value().Decode(&raw); err != nil {
			return nil, fmt.Errorf("decoding rule %q: %w", category, err)
		}

		rule := Rule{
			Category:    category,
			Section:     raw.Section,
			Description: raw.Description,
			Kind:        Kind(raw.Kind),
			Fixed:       decimal.NewFromInt(raw.Amount),
			Floor:       decimal.NewFromInt(raw.Floor),
			FirstTier:   decimal.NewFromInt(raw.First),
			RepeatTier:  decimal.NewFromInt(raw.Repeat),
		}

		if _, dup := t.byCategory[category]; dup {
			return nil, fmt.Errorf("duplicate rule category %q", category)
		}
		t.byCategory[category] = rule
		t.ordered = append(t.ordered, rule)
	}

	if len(t.ordered) == 0 {
		return nil, fmt.Errorf("rule table is empty")
	}
	return t, nil
}

// MustLoad is Load for process initialization paths where a broken
// embedded table is unrecoverable.
func MustLoad() *Table {
	t, err := Load()
	if err != nil {
		panic(err)
	}
	return t
}
