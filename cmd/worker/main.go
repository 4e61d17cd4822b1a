package main

import (
	"fmt"
	"os"

	"psephos/internal/app/bootstrap"

	"github.com/spf13/cobra"
)

// Worker process entrypoint. `run` is the long-lived scheduler; the other
// subcommands execute one pass and exit, for cron-style deployments and
// operator use.
func main() {
	root := &cobra.Command{
		Use:           "psephos-worker",
		Short:         "Election core background worker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(runCmd(), sweepCmd(), relayCmd(), verifyChainsCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func withApp(fn func(cmd *cobra.Command, app *bootstrap.App) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		app, err := bootstrap.Build()
		if err != nil {
			return fmt.Errorf("bootstrap worker: %w", err)
		}
		defer func() {
			_ = app.Close()
		}()
		return fn(cmd, app)
	}
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the scheduler loop (sweep, mail relay, chain verification)",
		RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
			return app.Run(cmd.Context())
		}),
	}
}

func sweepCmd() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Close and tally every election past its end, once",
		RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
			report, err := app.Lifecycle.Sweeper.RunOnce(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "closed %d/%d, tallied %d/%d\n",
				report.Closed, report.ClosedDue, report.Tallied, report.TalliedDue)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would happen without changing anything")
	return cmd
}

func relayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Send one batch of pending notification mails",
		RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
			sent, err := app.Notifications.Relay.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %d messages\n", sent)
			return nil
		}),
	}
}

func verifyChainsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify-chains",
		Short: "Re-walk and re-verify every active election's ballot chains",
		RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App) error {
			verified, err := app.Ledger.Verifier.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "verified %d elections\n", verified)
			return nil
		}),
	}
}
