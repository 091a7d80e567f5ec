package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ayushhh101/challan-agent/internal/agent"
	"github.com/ayushhh101/challan-agent/internal/queue"
	"github.com/ayushhh101/challan-agent/internal/record"
)

// IssueOptions holds flags for the issue command.
type IssueOptions struct {
	*RootOptions

	Category      string
	Name          string
	AadhaarLast4  string
	Mobile        string
	Train         string
	Coach         string
	Location      string
	Fare          string
	PriorOffenses int
	Payment       string
	Paid          bool
	Signature     string
	Proofs        []string
}

// NewIssueCommand creates the issue command.
func NewIssueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IssueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a challan, online or queued offline",
		Long: `Issue a fare-violation challan.

The fine amount is derived from the violation category via the rule
table; it is never entered by hand. When the server is reachable the
challan is submitted directly; otherwise it is appended to the local
durable queue and synchronized later.

Example:
  challan issue --category "Travelling without ticket" --fare 180 \
    --name "A Kumar" --train 12345 --coach S-4 --location "Pune Jn" \
    --payment offline --paid`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssue(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Category, "category", "", "violation category (see 'challan rules')")
	cmd.Flags().StringVar(&opts.Name, "name", "", "passenger name")
	cmd.Flags().StringVar(&opts.AadhaarLast4, "aadhaar-last4", "", "last 4 digits of Aadhaar (optional)")
	cmd.Flags().StringVar(&opts.Mobile, "mobile", "", "10-digit mobile number (optional)")
	cmd.Flags().StringVar(&opts.Train, "train", "", "train number")
	cmd.Flags().StringVar(&opts.Coach, "coach", "", "coach number")
	cmd.Flags().StringVar(&opts.Location, "location", "", "where the violation was recorded")
	cmd.Flags().StringVar(&opts.Fare, "fare", "", "collected fare (fare-floor categories)")
	cmd.Flags().IntVar(&opts.PriorOffenses, "prior-offenses", 0, "prior-offense count (repeat-tier categories)")
	cmd.Flags().StringVar(&opts.Payment, "payment", "", "payment channel (online|offline)")
	cmd.Flags().BoolVar(&opts.Paid, "paid", false, "fine settled on the spot")
	cmd.Flags().StringVar(&opts.Signature, "signature", "", "passenger signature as a data URL")
	cmd.Flags().StringArrayVar(&opts.Proofs, "proof", nil, "proof file to attach (repeatable)")

	return cmd
}

func runIssue(opts *IssueOptions, cmd *cobra.Command) error {
	out := formatter(opts.RootOptions, cmd)

	draft, err := buildDraft(opts)
	if err != nil {
		out.Error(ErrCodeValidation, err.Error())
		return WrapExitError(ExitFailure, "invalid challan", err)
	}

	a, err := newApp(opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	// One probe decides the path: direct submission or offline queue.
	a.watcher.Check(ctx)

	outcome, err := a.coordinator.Issue(ctx, draft)
	if err != nil {
		switch {
		case record.IsValidationError(err):
			out.Error(ErrCodeValidation, err.Error())
			return WrapExitError(ExitFailure, "invalid challan", err)
		case errors.Is(err, queue.ErrDuplicateDraft):
			out.Error(ErrCodeDuplicate, "an identical challan is already queued for this train, passenger and category")
			return WrapExitError(ExitFailure, "duplicate challan", err)
		default:
			out.Error(ErrCodeSubmit, err.Error())
			return WrapExitError(ExitFailure, "submission failed", err)
		}
	}

	return reportOutcome(out, outcome)
}

// issueResponse is the JSON payload for a successful issue.
type issueResponse struct {
	Queued   bool   `json:"queued"`
	LocalID  string `json:"localId,omitempty"`
	ServerID string `json:"serverId,omitempty"`
	Amount   string `json:"amount"`
	Category string `json:"category"`
}

func reportOutcome(out *OutputFormatter, outcome agent.IssueOutcome) error {
	resp := issueResponse{
		Queued:   outcome.Queued,
		LocalID:  outcome.LocalID,
		ServerID: outcome.ServerID,
		Amount:   outcome.Draft.Amount.String(),
		Category: outcome.Draft.Category,
	}
	if out.Format == "json" {
		return out.Success(resp)
	}

	if outcome.Queued {
		return out.Success(fmt.Sprintf(
			"Offline: challan for %s queued for sync (local id %s)",
			formatINR(outcome.Draft.Amount), outcome.LocalID))
	}
	msg := fmt.Sprintf("Challan issued for %s", formatINR(outcome.Draft.Amount))
	if outcome.ServerID != "" {
		msg += fmt.Sprintf(" (server id %s)", outcome.ServerID)
	}
	return out.Success(msg)
}

// buildDraft assembles a draft from flags: parsing only, semantic
// validation happens in the coordinator.
func buildDraft(opts *IssueOptions) (record.Draft, error) {
	d := record.Draft{
		Category:         opts.Category,
		PassengerName:    opts.Name,
		AadhaarLast4:     opts.AadhaarLast4,
		Mobile:           opts.Mobile,
		TrainNumber:      opts.Train,
		CoachNumber:      opts.Coach,
		Location:         opts.Location,
		Settled:          opts.Paid,
		SignatureDataURL: opts.Signature,
		PaymentChannel:   record.PaymentChannel(opts.Payment),
	}

	if opts.Fare != "" {
		fare, err := decimal.NewFromString(opts.Fare)
		if err != nil {
			return record.Draft{}, fmt.Errorf("invalid fare %q: %w", opts.Fare, err)
		}
		d.FareAmount = &fare
	}
	if opts.PriorOffenses > 0 {
		count := opts.PriorOffenses
		d.PriorOffenses = &count
	}

	for _, path := range opts.Proofs {
		info, err := os.Stat(path)
		if err != nil {
			return record.Draft{}, fmt.Errorf("proof %s: %w", path, err)
		}
		d.Proofs = append(d.Proofs, record.Proof{Path: path, Size: info.Size()})
	}

	return d, nil
}
