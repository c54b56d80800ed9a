package reconcile

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jaxspot/billing/internal/infrastructure/scheduler"
	"github.com/jaxspot/billing/internal/interfaces/cli/bootstrap"
)

var (
	env        string
	configPath string
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile <job>",
		Short: "Run one reconciliation job once",
		Long: `Run a reconciliation job immediately instead of waiting for its schedule.
Jobs: renewal, recovery, closing, stale-pending.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{scheduler.JobRenewal, scheduler.JobRecovery, scheduler.JobClosing, scheduler.JobStalePending},
		RunE:      run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	app, err := bootstrap.NewApp(ctx, env, configPath)
	if err != nil {
		return err
	}
	defer app.Close(context.Background())

	job, err := app.Container.Job(args[0])
	if err != nil {
		return err
	}

	count, err := app.Container.Scheduler().RunJob(ctx, args[0], job)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d subscription(s) changed\n", args[0], count)
	return nil
}
