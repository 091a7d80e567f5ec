package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// NewFailuresCommand creates the failures command.
func NewFailuresCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "failures",
		Short: "Show the failure log of the most recent drain",
		Long: `Show which queued challans failed in the most recent drain attempt.

The log is best-effort and diagnostic: failed entries are still queued
and will be retried. It is overwritten on every drain and cleared when
a drain finishes without failures.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			q, err := openQueue(cfg)
			if err != nil {
				return err
			}
			defer q.Close()

			failures, err := q.ListFailures(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read failure log", err)
			}

			out := formatter(rootOpts, cmd)
			if out.Format == "json" {
				resp := make([]failureResponse, 0, len(failures))
				for _, f := range failures {
					resp = append(resp, failureResponse{
						LocalID:    f.LocalID,
						Category:   f.Draft.Category,
						Passenger:  f.Draft.PassengerName,
						Reason:     f.Reason,
						Permanent:  f.Permanent,
						RecordedAt: f.RecordedAt.Format(time.RFC3339),
					})
				}
				return out.Success(resp)
			}

			if len(failures) == 0 {
				return out.Success("No failures in the last drain")
			}
			var b strings.Builder
			fmt.Fprintf(&b, "%d failure(s) in the last drain:\n", len(failures))
			for _, f := range failures {
				kind := "transient"
				if f.Permanent {
					kind = "rejected"
				}
				fmt.Fprintf(&b, "  %s  %s  %s: %s\n", f.LocalID, f.Draft.Category, kind, f.Reason)
			}
			return out.Success(strings.TrimRight(b.String(), "\n"))
		},
	}
}

// failureResponse is one failure-log line in JSON output.
type failureResponse struct {
	LocalID    string `json:"localId"`
	Category   string `json:"category"`
	Passenger  string `json:"passenger"`
	Reason     string `json:"reason"`
	Permanent  bool   `json:"permanent"`
	RecordedAt string `json:"recordedAt"`
}
