package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jaxspot/billing/internal/infrastructure/migration"
	"github.com/jaxspot/billing/internal/interfaces/cli/bootstrap"
	"github.com/jaxspot/billing/internal/shared/version"
)

const shutdownTimeout = 30 * time.Second

var (
	env           string
	configPath    string
	autoMigrate   bool
	withScheduler bool
)

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the HTTP server and the reconciliation scheduler",
		Long:  `Start the billing HTTP server (purchase, cancellation and provider callbacks) together with the scheduled reconciliation jobs.`,
		RunE:  run,
	}

	cmd.Flags().StringVarP(&env, "env", "e", "development", "Environment (development, test, production)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ./configs/config.yaml)")
	cmd.Flags().BoolVar(&autoMigrate, "auto-migrate", false, "Apply pending migrations on startup")
	cmd.Flags().BoolVar(&withScheduler, "scheduler", true, "Run the reconciliation jobs in this process")

	return cmd
}

func run(cmd *cobra.Command, args []string) error {
	if envVar := os.Getenv("ENV"); envVar != "" {
		env = envVar
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewApp(ctx, env, configPath)
	if err != nil {
		return err
	}
	log := app.Logger
	cfg := app.Config

	log.Infow("starting server",
		"environment", env,
		"version", version.Version,
		"auto_migrate", autoMigrate,
		"scheduler", withScheduler,
	)

	if autoMigrate {
		if err := migration.NewManager(env, log).Migrate(app.Container.DB()); err != nil {
			_ = app.Close(context.Background())
			return err
		}
	}

	gin.SetMode(cfg.Server.Mode)
	gin.DefaultWriter = io.Discard

	if withScheduler {
		if err := app.Container.StartScheduler(); err != nil {
			_ = app.Close(context.Background())
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
	}

	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      app.Container.Engine(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infow("server listening", "address", srv.Addr, "mode", cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Infow("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		var errs []error
		if err := srv.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("server forced to shutdown: %w", err))
		}
		if err := app.Close(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	})

	if err := g.Wait(); err != nil {
		log.Errorw("server stopped with error", "error", err)
		return err
	}

	log.Infow("server exited gracefully")
	return nil
}
