package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSyncCommand creates the sync command, the manual "sync now"
// affordance.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Drain the offline queue against the server now",
		Long: `Run one drain cycle immediately.

Each queued challan is submitted in insertion order; entries are removed
only on confirmed success. Failures are recorded in the sync failure log
(see 'challan failures') and stay queued for the next drain.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(rootOpts, cmd)
		},
	}
	return cmd
}

// syncResponse is the JSON payload for a drain report.
type syncResponse struct {
	Attempted       int `json:"attempted"`
	Submitted       int `json:"submitted"`
	Failed          int `json:"failed"`
	SkippedPoisoned int `json:"skippedPoisoned"`
}

func runSync(opts *RootOptions, cmd *cobra.Command) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	out := formatter(opts, cmd)
	ctx := cmd.Context()

	report, err := a.coordinator.Drain(ctx)
	if err != nil {
		out.Error(ErrCodeSubmit, err.Error())
		return WrapExitError(ExitCommandError, "drain failed", err)
	}

	resp := syncResponse{
		Attempted:       report.Attempted,
		Submitted:       report.Submitted,
		Failed:          report.Failed,
		SkippedPoisoned: report.SkippedPoisoned,
	}
	if out.Format == "json" {
		if err := out.Success(resp); err != nil {
			return err
		}
	} else {
		msg := fmt.Sprintf("Synced %d of %d queued challans", report.Submitted, report.Attempted)
		if report.Failed > 0 {
			msg += fmt.Sprintf(", %d failed (see 'challan failures')", report.Failed)
		}
		if report.SkippedPoisoned > 0 {
			msg += fmt.Sprintf(", %d poisoned entries skipped", report.SkippedPoisoned)
		}
		if err := out.Success(msg); err != nil {
			return err
		}
	}

	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d challans failed to sync", report.Failed))
	}
	return nil
}
