// Package config defines the service configuration and its validation.
package config

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Config is the root configuration. Fields come from a TOML file laid over
// Defaults() and are then overridden by POLYEDGE_* environment variables.
type Config struct {
	Mode     string `toml:"mode"`
	LogLevel string `toml:"log_level"`

	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Notify   NotifyConfig   `toml:"notify"`
	Scanner  ScannerConfig  `toml:"scanner"`
	Oracle   OracleConfig   `toml:"oracle"`
	Server   ServerConfig   `toml:"server"`
}

// RedisConfig holds Redis connection parameters. Addr may be empty in scan
// and consult modes, which then run without cache or bus.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	Prefix     string `toml:"prefix"`
}

// PostgresConfig holds connection parameters for the verdict history store.
// Either DSN or Host must be set to enable it.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// Enabled reports whether a database is configured.
func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.DSN) != "" || strings.TrimSpace(p.Host) != ""
}

// S3Config holds S3-compatible object storage parameters for the archive.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls the cold-storage archival job.
type ArchiveConfig struct {
	Enabled       bool   `toml:"enabled"`
	RetentionDays int    `toml:"retention_days"`
	Cron          string `toml:"cron"`
	BatchSize     int    `toml:"batch_size"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// ScannerConfig controls the polling cycle and its market feed.
type ScannerConfig struct {
	Interval      duration `toml:"interval"`
	MinScore      float64  `toml:"min_score"`
	TopLimit      int      `toml:"top_limit"`
	AlertScore    float64  `toml:"alert_score"`
	AlertCooldown duration `toml:"alert_cooldown"`
	// Feed is "gamma" (live, falling back to simulated) or "simulated".
	Feed       string `toml:"feed"`
	GammaHost  string `toml:"gamma_host"`
	GammaLimit int    `toml:"gamma_limit"`
	Seed       int64  `toml:"seed"` // 0 seeds from the clock
	// Gamma fetches allowed per window across all scanners sharing Redis;
	// 0 disables the shared throttle.
	GammaRateLimit  int      `toml:"gamma_rate_limit"`
	GammaRateWindow duration `toml:"gamma_rate_window"`
}

// ProviderConfig configures one judgment provider. A provider without an API
// key is not used.
type ProviderConfig struct {
	APIKey  string `toml:"api_key"`
	Model   string `toml:"model"`
	BaseURL string `toml:"base_url"`
}

// OracleConfig configures the consensus oracle and its guards.
type OracleConfig struct {
	Timeout   duration       `toml:"timeout"`
	Order     []string       `toml:"order"`
	Anthropic ProviderConfig `toml:"anthropic"`
	OpenAI    ProviderConfig `toml:"openai"`
	Gemini    ProviderConfig `toml:"gemini"`

	GuardRPS         float64  `toml:"guard_rps"`
	GuardBurst       int      `toml:"guard_burst"`
	GuardFailures    uint32   `toml:"guard_failures"`
	GuardOpenTimeout duration `toml:"guard_open_timeout"`

	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
	LockTTL    duration `toml:"lock_ttl"`
	VerdictTTL duration `toml:"verdict_ttl"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
}

// duration lets the TOML decoder read strings like "5m" or "30s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Provider names accepted in OracleConfig.Order.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// Modes.
const (
	ModeScan    = "scan"
	ModeServe   = "serve"
	ModeFull    = "full"
	ModeConsult = "consult"
)

// Defaults returns a Config populated with the values in config.example.toml.
func Defaults() Config {
	return Config{
		Mode:     ModeServe,
		LogLevel: "info",
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
			Prefix:     "polyedge",
		},
		Postgres: PostgresConfig{
			Port:          5432,
			Database:      "polyedge",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polyedge-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			RetentionDays: 30,
			Cron:          "0 3 * * *",
			BatchSize:     50000,
		},
		Notify: NotifyConfig{
			Events: []string{"edge", "verdict", "scan_failure"},
		},
		Scanner: ScannerConfig{
			Interval:        duration{60 * time.Second},
			MinScore:        7,
			TopLimit:        5,
			AlertScore:      9,
			AlertCooldown:   duration{30 * time.Minute},
			Feed:            "gamma",
			GammaHost:       "https://gamma-api.polymarket.com",
			GammaLimit:      50,
			GammaRateLimit:  2,
			GammaRateWindow: duration{time.Minute},
		},
		Oracle: OracleConfig{
			Timeout:          duration{30 * time.Second},
			Order:            []string{ProviderAnthropic, ProviderOpenAI, ProviderGemini},
			GuardRPS:         1,
			GuardBurst:       2,
			GuardFailures:    3,
			GuardOpenTimeout: duration{60 * time.Second},
			RateLimit:        6,
			RateWindow:       duration{time.Minute},
			LockTTL:          duration{90 * time.Second},
			VerdictTTL:       duration{10 * time.Minute},
		},
		Server: ServerConfig{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   120,
			RateWindow:  duration{time.Minute},
		},
	}
}

var validModes = []string{ModeScan, ModeServe, ModeFull, ModeConsult}

var validLogLevels = []string{"debug", "info", "warn", "error"}

var validFeeds = []string{"gamma", "simulated"}

// Validate checks for invalid or missing values and reports every problem
// found in one error.
func (c *Config) Validate() error {
	var errs []string
	addf := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	mode := strings.ToLower(c.Mode)
	if !slices.Contains(validModes, mode) {
		addf("unknown mode %q (valid: %s)", c.Mode, strings.Join(validModes, ", "))
	}
	if !slices.Contains(validLogLevels, strings.ToLower(c.LogLevel)) {
		addf("unknown log_level %q (valid: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	// The websocket hub and the distributed guards need redis.
	if (mode == ModeServe || mode == ModeFull) && c.Redis.Addr == "" {
		addf("redis: addr is required for mode %s", mode)
	}
	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		addf("redis: pool_size must be >= 1")
	}

	if c.Postgres.Enabled() && strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			addf("postgres: port must be 1-65535, got %d", c.Postgres.Port)
		}
		if c.Postgres.Database == "" {
			addf("postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		addf("postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		addf("postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Archive.Enabled {
		if !c.Postgres.Enabled() {
			addf("archive: postgres must be configured to archive history")
		}
		if c.S3.Bucket == "" {
			addf("s3: bucket must not be empty when archive is enabled")
		}
		if c.Archive.RetentionDays < 1 {
			addf("archive: retention_days must be >= 1")
		}
		if strings.TrimSpace(c.Archive.Cron) == "" {
			addf("archive: cron must not be empty")
		}
	}

	s := c.Scanner
	if s.Interval.Duration < time.Second {
		addf("scanner: interval must be at least 1s, got %s", s.Interval.Duration)
	}
	if s.MinScore < 0 || s.MinScore > 10 {
		addf("scanner: min_score must be within 0-10, got %g", s.MinScore)
	}
	if s.AlertScore < 0 || s.AlertScore > 10 {
		addf("scanner: alert_score must be within 0-10, got %g", s.AlertScore)
	}
	if s.TopLimit < 1 {
		addf("scanner: top_limit must be >= 1")
	}
	if !slices.Contains(validFeeds, s.Feed) {
		addf("scanner: unknown feed %q (valid: %s)", s.Feed, strings.Join(validFeeds, ", "))
	}
	if s.Feed == "gamma" && s.GammaHost == "" {
		addf("scanner: gamma_host must not be empty for the gamma feed")
	}
	if s.GammaRateLimit < 0 {
		addf("scanner: gamma_rate_limit must be >= 0")
	}
	if s.GammaRateLimit > 0 && s.GammaRateWindow.Duration <= 0 {
		addf("scanner: gamma_rate_window must be positive when gamma_rate_limit is set")
	}

	o := c.Oracle
	for _, name := range o.Order {
		if !slices.Contains([]string{ProviderAnthropic, ProviderOpenAI, ProviderGemini}, name) {
			addf("oracle: unknown provider %q in order", name)
		}
	}
	if o.Timeout.Duration <= 0 {
		addf("oracle: timeout must be positive")
	}
	if o.RateLimit < 0 {
		addf("oracle: rate_limit must be >= 0")
	}
	if mode == ModeConsult && len(c.EnabledProviders()) == 0 {
		addf("oracle: mode consult needs at least one provider api key")
	}

	if mode == ModeServe || mode == ModeFull {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			addf("server: port must be 1-65535, got %d", c.Server.Port)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// EnabledProviders returns the providers that have an API key, in the
// configured consultation order.
func (c *Config) EnabledProviders() []string {
	var out []string
	for _, name := range c.Oracle.Order {
		if p, ok := c.Oracle.Provider(name); ok && p.APIKey != "" && !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// Provider returns the settings of the named provider.
func (o OracleConfig) Provider(name string) (ProviderConfig, bool) {
	switch name {
	case ProviderAnthropic:
		return o.Anthropic, true
	case ProviderOpenAI:
		return o.OpenAI, true
	case ProviderGemini:
		return o.Gemini, true
	}
	return ProviderConfig{}, false
}
