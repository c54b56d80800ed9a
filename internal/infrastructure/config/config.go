package config

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/viper"

	sharedConfig "github.com/jaxspot/billing/internal/shared/config"
)

type Config struct {
	Server       sharedConfig.ServerConfig       `mapstructure:"server"`
	Database     sharedConfig.DatabaseConfig     `mapstructure:"database"`
	Logger       sharedConfig.LoggerConfig       `mapstructure:"logger"`
	Redis        sharedConfig.RedisConfig        `mapstructure:"redis"`
	Email        sharedConfig.EmailConfig        `mapstructure:"email"`
	Scheduler    sharedConfig.SchedulerConfig    `mapstructure:"scheduler"`
	Subscription sharedConfig.SubscriptionConfig `mapstructure:"subscription"`
	MPulse       sharedConfig.MPulseConfig       `mapstructure:"mpulse"`
	Facebook     sharedConfig.FacebookConfig     `mapstructure:"facebook"`
	Partner      sharedConfig.PartnerConfig      `mapstructure:"partner"`
}

var (
	appConfig   *Config
	appConfigMu sync.RWMutex
)

// Load loads configuration from file and environment variables.
// configPath overrides the default search paths when non-empty.
func Load(env, configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath("../configs")
		v.AddConfigPath("../../configs")
	}

	v.SetEnvPrefix("JAXSPOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Running purely from env vars and defaults is allowed.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if env != "" && env != "default" {
		v.Set("server.mode", env)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	appConfigMu.Lock()
	appConfig = &cfg
	appConfigMu.Unlock()

	return &cfg, nil
}

// Get returns the loaded configuration
func Get() *Config {
	appConfigMu.RLock()
	defer appConfigMu.RUnlock()
	return appConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.root_redirect_url", "/")
	v.SetDefault("server.session_max_age_days", 30)
	v.SetDefault("server.cookie_same_site", "Lax")
	v.SetDefault("server.trust_member_header", true)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.username", "root")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.database", "jaxspot_dev")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.conn_max_lifetime", 60)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.output_path", "stdout")

	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("email.smtp_host", "localhost")
	v.SetDefault("email.smtp_port", 1025)
	v.SetDefault("email.from_address", "noreply@jaxspot.local")
	v.SetDefault("email.from_name", "Jaxspot")

	v.SetDefault("scheduler.timezone", "Europe/Paris")
	v.SetDefault("scheduler.renewal_cron", "0 0 * * *")
	v.SetDefault("scheduler.closing_cron", "0 1 * * *")
	v.SetDefault("scheduler.stale_pending_cron", "0 2 * * *")
	v.SetDefault("scheduler.recovery_interval_minutes", 30)

	v.SetDefault("subscription.mpulse_term.days", 8)
	v.SetDefault("subscription.facebook_term.months", 4)
	v.SetDefault("subscription.pending_ttl_days", 7)
	v.SetDefault("subscription.settled_dedup_ttl_minutes", 10)
	v.SetDefault("subscription.cancel_confirm_attempts", 3)
	v.SetDefault("subscription.cancel_confirm_interval_seconds", 2)

	v.SetDefault("mpulse.gateway_url", "https://gateway.mpulse.eu/wapbilling/france/service")
	v.SetDefault("mpulse.host", "gateway.mpulse.eu")
	v.SetDefault("mpulse.timeout_seconds", 10)
	v.SetDefault("mpulse.rate_per_second", 5)
	v.SetDefault("mpulse.burst", 5)

	v.SetDefault("facebook.graph_url", "https://graph.facebook.com")
	v.SetDefault("facebook.timeout_seconds", 10)
	v.SetDefault("facebook.item_title", "Jaxspot subscription")
	v.SetDefault("facebook.item_price", 50)

	v.SetDefault("partner.timeout_seconds", 5)
}
