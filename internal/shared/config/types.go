package config

import (
	"fmt"
	"time"
)

type ServerConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Mode    string `mapstructure:"mode"`
	BaseURL string `mapstructure:"base_url"`
	// RootRedirectURL is where browsers land after a provider return callback.
	RootRedirectURL string `mapstructure:"root_redirect_url"`
	// SessionSecret signs the member session token set after an anonymous purchase.
	SessionSecret     string `mapstructure:"session_secret"`
	SessionMaxAgeDays int    `mapstructure:"session_max_age_days"`
	CookieDomain      string `mapstructure:"cookie_domain"`
	CookieSecure      bool   `mapstructure:"cookie_secure"`
	CookieSameSite    string `mapstructure:"cookie_same_site"`
	// TrustMemberHeader honours X-Member-ID. Enable it only behind a proxy
	// that strips the header from client requests.
	TrustMemberHeader bool `mapstructure:"trust_member_header"`
}

// SessionMaxAge returns the member session lifetime.
func (s *ServerConfig) SessionMaxAge() time.Duration {
	if s.SessionMaxAgeDays <= 0 {
		return 30 * 24 * time.Hour
	}
	return time.Duration(s.SessionMaxAgeDays) * 24 * time.Hour
}

func (s *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Username        string `mapstructure:"username"`
	Password        string `mapstructure:"password"`
	Database        string `mapstructure:"database"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

func (d *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.Username, d.Password, d.Host, d.Port, d.Database)
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Enabled reports whether a Redis host is configured.
func (r *RedisConfig) Enabled() bool {
	return r.Host != ""
}

type EmailConfig struct {
	SMTPHost     string `mapstructure:"smtp_host"`
	SMTPPort     int    `mapstructure:"smtp_port"`
	SMTPUser     string `mapstructure:"smtp_user"`
	SMTPPassword string `mapstructure:"smtp_password"`
	FromAddress  string `mapstructure:"from_address"`
	FromName     string `mapstructure:"from_name"`
}

// SchedulerConfig holds the cron expressions of the reconciliation jobs.
type SchedulerConfig struct {
	Timezone            string `mapstructure:"timezone"`
	RenewalCron         string `mapstructure:"renewal_cron"`
	ClosingCron         string `mapstructure:"closing_cron"`
	StalePendingCron    string `mapstructure:"stale_pending_cron"`
	RecoveryIntervalMin int    `mapstructure:"recovery_interval_minutes"`
}

func (s *SchedulerConfig) RecoveryInterval() time.Duration {
	if s.RecoveryIntervalMin <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(s.RecoveryIntervalMin) * time.Minute
}

// TermConfig describes how long one paid period lasts for a provider.
type TermConfig struct {
	Days   int `mapstructure:"days"`
	Months int `mapstructure:"months"`
}

type SubscriptionConfig struct {
	MPulseTerm      TermConfig `mapstructure:"mpulse_term"`
	FacebookTerm    TermConfig `mapstructure:"facebook_term"`
	PendingTTLDays  int        `mapstructure:"pending_ttl_days"`
	SettledDedupTTL int        `mapstructure:"settled_dedup_ttl_minutes"`
	// Cancellation is confirmed by polling the provider this many times.
	CancelConfirmAttempts    int `mapstructure:"cancel_confirm_attempts"`
	CancelConfirmIntervalSec int `mapstructure:"cancel_confirm_interval_seconds"`
}

func (s *SubscriptionConfig) CancelConfirmInterval() time.Duration {
	if s.CancelConfirmIntervalSec <= 0 {
		return 2 * time.Second
	}
	return time.Duration(s.CancelConfirmIntervalSec) * time.Second
}

func (s *SubscriptionConfig) PendingTTL() time.Duration {
	if s.PendingTTLDays <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(s.PendingTTLDays) * 24 * time.Hour
}

func (s *SubscriptionConfig) SettledDedupWindow() time.Duration {
	if s.SettledDedupTTL <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(s.SettledDedupTTL) * time.Minute
}

type MPulseConfig struct {
	GatewayURL     string  `mapstructure:"gateway_url"`
	Host           string  `mapstructure:"host"`
	Product        string  `mapstructure:"product"`
	Username       string  `mapstructure:"username"`
	Password       string  `mapstructure:"password"`
	CallbackURL    string  `mapstructure:"callback_url"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RatePerSecond  float64 `mapstructure:"rate_per_second"`
	Burst          int     `mapstructure:"burst"`
}

func (m *MPulseConfig) Timeout() time.Duration {
	if m.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(m.TimeoutSeconds) * time.Second
}

type FacebookConfig struct {
	GraphURL       string `mapstructure:"graph_url"`
	AppID          string `mapstructure:"app_id"`
	AppSecret      string `mapstructure:"app_secret"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	ResourceURL    string `mapstructure:"resource_url"`
	ItemTitle      string `mapstructure:"item_title"`
	ItemPrice      int    `mapstructure:"item_price"`
}

func (f *FacebookConfig) Timeout() time.Duration {
	if f.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// PartnerConfig points at the subscriber partner that is told about activations.
type PartnerConfig struct {
	NotifyURL      string `mapstructure:"notify_url"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}
