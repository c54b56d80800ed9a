package migrate

import (
	"fmt"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/jaxspot/billing/internal/infrastructure/database"
	"github.com/jaxspot/billing/internal/infrastructure/migration"
	"github.com/jaxspot/billing/internal/interfaces/cli/bootstrap"
	"github.com/jaxspot/billing/internal/shared/logger"
)

var (
	env        string
	configPath string
	steps      int
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tools",
		Long:  `Apply, roll back and inspect the versioned billing schema migrations.`,
	}

	cmd.PersistentFlags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")

	cmd.AddCommand(
		newUpCommand(),
		newDownCommand(),
		newStatusCommand(),
	)

	return cmd
}

func newUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Run all pending migrations",
		RunE:  runUp,
	}
}

func newDownCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Rollback migrations",
		RunE:  runDown,
	}

	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to rollback")

	return cmd
}

func newStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE:  runStatus,
	}
}

func initEnv() (*gorm.DB, logger.Interface, error) {
	cfg, log, err := bootstrap.Init(env, configPath)
	if err != nil {
		return nil, nil, err
	}
	db, err := bootstrap.OpenDatabase(cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return db, log, nil
}

func runUp(cmd *cobra.Command, args []string) error {
	db, log, err := initEnv()
	if err != nil {
		return err
	}
	defer database.Close(db)

	log.Infow("running up migrations", "environment", env)

	if err := migration.NewGooseStrategy(log).Migrate(db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	log.Infow("migrations completed successfully")
	return nil
}

func runDown(cmd *cobra.Command, args []string) error {
	db, log, err := initEnv()
	if err != nil {
		return err
	}
	defer database.Close(db)

	log.Infow("running down migrations", "environment", env, "steps", steps)

	if err := migration.NewGooseStrategy(log).MigrateDown(db, steps); err != nil {
		return fmt.Errorf("down migration failed: %w", err)
	}

	log.Infow("down migration completed successfully")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	db, log, err := initEnv()
	if err != nil {
		return err
	}
	defer database.Close(db)

	log.Infow("checking migration status", "environment", env)

	if err := migration.NewGooseStrategy(log).Status(db); err != nil {
		return fmt.Errorf("failed to get migration status: %w", err)
	}
	return nil
}
