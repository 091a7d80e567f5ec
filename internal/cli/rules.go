package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ayushhh101/challan-agent/internal/rules"
)

// NewRulesCommand creates the rules command.
func NewRulesCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "rules",
		Short:         "List the fine rule table",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := rules.Load()
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to load rule table", err)
			}

			out := formatter(rootOpts, cmd)
			if out.Format == "json" {
				return out.Success(rulesResponse(table))
			}

			writeRulesText(cmd.OutOrStdout(), table)
			return nil
		},
	}
}

// ruleResponse is one rule in JSON output.
type ruleResponse struct {
	Category    string `json:"category"`
	Section     string `json:"section"`
	Kind        string `json:"kind"`
	Amount      string `json:"amount,omitempty"`
	Floor       string `json:"floor,omitempty"`
	FirstTier   string `json:"firstTier,omitempty"`
	RepeatTier  string `json:"repeatTier,omitempty"`
	Description string `json:"description"`
}

func rulesResponse(table *rules.Table) []ruleResponse {
	all := table.Rules()
	resp := make([]ruleResponse, 0, len(all))
	for _, r := range all {
		entry := ruleResponse{
			Category:    r.Category,
			Section:     r.Section,
			Kind:        string(r.Kind),
			Description: r.Description,
		}
		switch r.Kind {
		case rules.KindFixed:
			entry.Amount = r.Fixed.String()
		case rules.KindFareFloor:
			entry.Floor = r.Floor.String()
		case rules.KindRepeatTier:
			entry.FirstTier = r.FirstTier.String()
			entry.RepeatTier = r.RepeatTier.String()
		}
		resp = append(resp, entry)
	}
	return resp
}

// writeRulesText renders the table for humans, in declaration order.
func writeRulesText(w io.Writer, table *rules.Table) {
	for _, r := range table.Rules() {
		fmt.Fprintf(w, "%s (Sec %s)\n", r.Category, r.Section)
		switch r.Kind {
		case rules.KindFixed:
			fmt.Fprintf(w, "  amount: %s\n", formatINR(r.Fixed))
		case rules.KindFareFloor:
			fmt.Fprintf(w, "  amount: max(%s, collected fare)\n", formatINR(r.Floor))
		case rules.KindRepeatTier:
			fmt.Fprintf(w, "  amount: %s first offense, %s thereafter\n",
				formatINR(r.FirstTier), formatINR(r.RepeatTier))
		}
		fmt.Fprintf(w, "  %s\n\n", r.Description)
	}
}
