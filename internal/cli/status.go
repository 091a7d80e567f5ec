package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show connectivity and pending-queue counts",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			a.watcher.Check(ctx)

			st, err := a.coordinator.Status(ctx)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read status", err)
			}

			out := formatter(rootOpts, cmd)
			if out.Format == "json" {
				return out.Success(statusResponse{
					Online:   st.Online,
					Pending:  st.Pending,
					Poisoned: st.Poisoned,
				})
			}

			state := "offline"
			if st.Online {
				state = "online"
			}
			msg := fmt.Sprintf("Server: %s\nPending challans: %d", state, st.Pending)
			if st.Poisoned > 0 {
				msg += fmt.Sprintf(" (%d poisoned)", st.Poisoned)
			}
			return out.Success(msg)
		},
	}
}

// statusResponse is the JSON payload for status.
type statusResponse struct {
	Online   bool `json:"online"`
	Pending  int  `json:"pending"`
	Poisoned int  `json:"poisoned"`
}
