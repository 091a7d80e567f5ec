package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ayushhh101/challan-agent/internal/queue"
)

// NewQueueCommand creates the queue command group.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and manage the offline queue",
	}
	cmd.AddCommand(newQueueListCommand(rootOpts))
	cmd.AddCommand(newQueueClearCommand(rootOpts))
	cmd.AddCommand(newQueueRequeueCommand(rootOpts))
	return cmd
}

// queueEntryResponse is one queue entry in JSON output.
type queueEntryResponse struct {
	LocalID     string `json:"localId"`
	EnqueuedAt  string `json:"enqueuedAt"`
	Category    string `json:"category"`
	Passenger   string `json:"passenger"`
	Train       string `json:"train"`
	Amount      string `json:"amount"`
	RejectCount int    `json:"rejectCount,omitempty"`
	Poisoned    bool   `json:"poisoned,omitempty"`
	LastError   string `json:"lastError,omitempty"`
}

func newQueueListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List queued challans, oldest first",
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

			entries, err := q.ListAll(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list queue", err)
			}

			out := formatter(rootOpts, cmd)
			if out.Format == "json" {
				resp := make([]queueEntryResponse, 0, len(entries))
				for _, e := range entries {
					resp = append(resp, queueEntryResponse{
						LocalID:     e.LocalID,
						EnqueuedAt:  e.EnqueuedAt.Format(time.RFC3339),
						Category:    e.Draft.Category,
						Passenger:   e.Draft.PassengerName,
						Train:       e.Draft.TrainNumber,
						Amount:      e.Draft.Amount.String(),
						RejectCount: e.RejectCount,
						Poisoned:    e.Poisoned,
						LastError:   e.LastError,
					})
				}
				return out.Success(resp)
			}

			if len(entries) == 0 {
				return out.Success("Queue is empty")
			}
			var b strings.Builder
			fmt.Fprintf(&b, "%d challan(s) pending sync:\n", len(entries))
			for _, e := range entries {
				fmt.Fprintf(&b, "  %s  %s  train %s  %s  %s",
					e.LocalID,
					e.EnqueuedAt.Format("2006-01-02 15:04"),
					e.Draft.TrainNumber,
					e.Draft.Category,
					formatINR(e.Draft.Amount),
				)
				if e.Poisoned {
					fmt.Fprintf(&b, "  [poisoned after %d rejections: %s]", e.RejectCount, e.LastError)
				} else if e.RejectCount > 0 {
					fmt.Fprintf(&b, "  [%d rejection(s): %s]", e.RejectCount, e.LastError)
				}
				b.WriteString("\n")
			}
			return out.Success(strings.TrimRight(b.String(), "\n"))
		},
	}
}

func newQueueClearCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:           "clear",
		Short:         "Delete every queued challan",
		Long:          "Delete every queued challan. Unsynced records are lost; this cannot be undone.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return NewExitError(ExitCommandError, "refusing to clear the queue without --yes")
			}
			cfg, err := loadConfig(rootOpts)
			if err != nil {
				return err
			}
			q, err := openQueue(cfg)
			if err != nil {
				return err
			}
			defer q.Close()

			total, _, err := q.Counts(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read queue", err)
			}
			if err := q.ClearAll(cmd.Context()); err != nil {
				return WrapExitError(ExitCommandError, "failed to clear queue", err)
			}
			return formatter(rootOpts, cmd).Success(fmt.Sprintf("Cleared %d queued challan(s)", total))
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion of all queued challans")
	return cmd
}

func newQueueRequeueCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "requeue <local-id>",
		Short:         "Reset a poisoned entry so the next drain retries it",
		Args:          cobra.ExactArgs(1),
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

			if err := q.Requeue(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, queue.ErrNotFound) {
					formatter(rootOpts, cmd).Error(ErrCodeNotFound, fmt.Sprintf("no queued challan with local id %s", args[0]))
					return WrapExitError(ExitFailure, "not found", err)
				}
				return WrapExitError(ExitCommandError, "failed to requeue", err)
			}
			return formatter(rootOpts, cmd).Success(fmt.Sprintf("Requeued %s for the next drain", args[0]))
		},
	}
}
