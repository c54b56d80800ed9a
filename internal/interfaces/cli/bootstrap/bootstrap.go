// Package bootstrap holds the start-up steps shared by the CLI commands.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/jaxspot/billing/internal/infrastructure/config"
	"github.com/jaxspot/billing/internal/infrastructure/database"
	httpapi "github.com/jaxspot/billing/internal/interfaces/http"
	"github.com/jaxspot/billing/internal/shared/biztime"
	"github.com/jaxspot/billing/internal/shared/constants"
	"github.com/jaxspot/billing/internal/shared/logger"
)

// Init loads configuration and initializes the logger and business timezone.
func Init(env, configPath string) (*config.Config, logger.Interface, error) {
	cfg, err := config.Load(MapEnvToGinMode(env), configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&cfg.Logger, cfg.Server.Mode); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := biztime.Init(cfg.Scheduler.Timezone); err != nil {
		return nil, nil, fmt.Errorf("failed to initialize business timezone: %w", err)
	}

	return cfg, logger.NewLogger(), nil
}

// OpenDatabase connects to the configured database.
func OpenDatabase(cfg *config.Config, log logger.Interface) (*gorm.DB, error) {
	gdb, err := database.Open(&cfg.Database, log.Named("database"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return gdb, nil
}

// OpenRedis returns nil when Redis is not configured.
func OpenRedis(ctx context.Context, cfg *config.Config, log logger.Interface) (*redis.Client, error) {
	if !cfg.Redis.Enabled() {
		log.Infow("redis not configured, settled event deduplication disabled")
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.GetAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Infow("redis connection established", "address", cfg.Redis.GetAddr())
	return client, nil
}

// App is a fully wired application plus the resources it must release.
type App struct {
	Config    *config.Config
	Logger    logger.Interface
	DB        *gorm.DB
	Container *httpapi.Container
}

// NewApp initializes everything the server and reconcile commands need.
func NewApp(ctx context.Context, env, configPath string) (*App, error) {
	cfg, log, err := Init(env, configPath)
	if err != nil {
		return nil, err
	}

	gdb, err := OpenDatabase(cfg, log)
	if err != nil {
		return nil, err
	}

	redisClient, err := OpenRedis(ctx, cfg, log)
	if err != nil {
		_ = database.Close(gdb)
		return nil, err
	}

	container, err := httpapi.NewContainer(cfg, gdb, redisClient, log)
	if err != nil {
		if redisClient != nil {
			_ = redisClient.Close()
		}
		_ = database.Close(gdb)
		return nil, err
	}

	return &App{Config: cfg, Logger: log, DB: gdb, Container: container}, nil
}

// Close shuts the container down and closes the database.
func (a *App) Close(ctx context.Context) error {
	err := a.Container.Shutdown(ctx)
	if dbErr := database.Close(a.DB); dbErr != nil && err == nil {
		err = dbErr
	}
	a.Logger.Infow("database connection closed")
	return err
}

// MapEnvToGinMode maps a deployment environment name to a gin mode.
func MapEnvToGinMode(environment string) string {
	switch environment {
	case constants.EnvProduction, "prod", "release":
		return "release"
	case constants.EnvTest, "testing":
		return "test"
	default:
		return "debug"
	}
}
