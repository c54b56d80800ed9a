package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jaxspot/billing/internal/interfaces/cli/migrate"
	"github.com/jaxspot/billing/internal/interfaces/cli/reconcile"
	"github.com/jaxspot/billing/internal/interfaces/cli/server"
	"github.com/jaxspot/billing/internal/shared/version"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "billing",
		Short:   "Jaxspot billing - subscriptions backed by external payment providers",
		Long:    `Billing runs the subscription HTTP endpoints, provider callbacks and the reconciliation jobs that keep local subscriptions in sync with mPulse and Facebook.`,
		Version: version.Version,
	}

	rootCmd.AddCommand(
		server.NewCommand(),
		migrate.NewCommand(),
		reconcile.NewCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
