package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync agent until interrupted",
		Long: `Run the connectivity watcher and sync coordinator.

The agent probes server reachability on an interval. On each transition
to online (after a short settle delay) it drains the offline queue:
queued challans are submitted in order and removed only on confirmed
success. Interrupting mid-drain is safe; unsubmitted entries stay
queued for the next run.

Example:
  challan run --config ~/.challan/config.yaml --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(rootOpts, cmd)
		},
	}
	return cmd
}

func runAgent(opts *RootOptions, cmd *cobra.Command) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Error("error closing queue database", "error", closeErr)
		}
	}()

	// Setup signal handling for graceful shutdown
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	total, poisoned, err := a.queue.Counts(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read queue", err)
	}
	slog.Info("agent starting",
		"db", a.cfg.DBPath,
		"server", a.cfg.ServerURL,
		"pending", total,
		"poisoned", poisoned,
	)
	fmt.Fprintln(cmd.OutOrStdout(), "Agent started. Watching connectivity...")
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	watchErr := make(chan error, 1)
	go func() {
		watchErr <- a.watcher.Run(ctx)
	}()

	err = a.coordinator.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "agent error", err)
	}
	<-watchErr

	slog.Info("agent stopped gracefully")
	return nil
}
