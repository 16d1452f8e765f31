package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML file at path over the defaults, then applies .env and
// POLYEDGE_* overrides. A missing file is not an error so the service can be
// configured from the environment alone. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// .env is optional.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setStr(&cfg.Mode, "POLYEDGE_MODE")
	setStr(&cfg.LogLevel, "POLYEDGE_LOG_LEVEL")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "POLYEDGE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYEDGE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYEDGE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYEDGE_REDIS_POOL_SIZE")
	setBool(&cfg.Redis.TLSEnabled, "POLYEDGE_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.Prefix, "POLYEDGE_REDIS_PREFIX")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "POLYEDGE_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL")
	setStr(&cfg.Postgres.Host, "POLYEDGE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "POLYEDGE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "POLYEDGE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "POLYEDGE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "POLYEDGE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "POLYEDGE_POSTGRES_SSL_MODE")
	setBool(&cfg.Postgres.RunMigrations, "POLYEDGE_POSTGRES_RUN_MIGRATIONS")

	// ── S3 / archive ──
	setStr(&cfg.S3.Endpoint, "POLYEDGE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYEDGE_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYEDGE_S3_BUCKET")
	setStr(&cfg.S3.Prefix, "POLYEDGE_S3_PREFIX")
	setStr(&cfg.S3.AccessKey, "POLYEDGE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYEDGE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYEDGE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYEDGE_S3_FORCE_PATH_STYLE")
	setBool(&cfg.Archive.Enabled, "POLYEDGE_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "POLYEDGE_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Cron, "POLYEDGE_ARCHIVE_CRON")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYEDGE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYEDGE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYEDGE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYEDGE_NOTIFY_EVENTS")

	// ── Scanner ──
	setDuration(&cfg.Scanner.Interval, "POLYEDGE_SCANNER_INTERVAL")
	setFloat64(&cfg.Scanner.MinScore, "POLYEDGE_SCANNER_MIN_SCORE")
	setInt(&cfg.Scanner.TopLimit, "POLYEDGE_SCANNER_TOP_LIMIT")
	setFloat64(&cfg.Scanner.AlertScore, "POLYEDGE_SCANNER_ALERT_SCORE")
	setStr(&cfg.Scanner.Feed, "POLYEDGE_SCANNER_FEED")
	setStr(&cfg.Scanner.GammaHost, "POLYEDGE_SCANNER_GAMMA_HOST")

	// ── Oracle ──
	setDuration(&cfg.Oracle.Timeout, "POLYEDGE_ORACLE_TIMEOUT")
	setStringSlice(&cfg.Oracle.Order, "POLYEDGE_ORACLE_ORDER")
	setAIKey(&cfg.Oracle.Anthropic.APIKey, "ANTHROPIC_API_KEY")
	setAIKey(&cfg.Oracle.OpenAI.APIKey, "OPENAI_API_KEY")
	setAIKey(&cfg.Oracle.Gemini.APIKey, "GEMINI_API_KEY")
	setStr(&cfg.Oracle.Anthropic.Model, "POLYEDGE_ANTHROPIC_MODEL")
	setStr(&cfg.Oracle.OpenAI.Model, "POLYEDGE_OPENAI_MODEL")
	setStr(&cfg.Oracle.Gemini.Model, "POLYEDGE_GEMINI_MODEL")
	setInt(&cfg.Oracle.RateLimit, "POLYEDGE_ORACLE_RATE_LIMIT")
	setDuration(&cfg.Oracle.VerdictTTL, "POLYEDGE_ORACLE_VERDICT_TTL")

	// ── Server ──
	setInt(&cfg.Server.Port, "POLYEDGE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYEDGE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "POLYEDGE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "POLYEDGE_SERVER_RATE_LIMIT")
}

// setAIKey reads a provider key from POLYEDGE_<key>, falling back to the bare
// name and the REACT_APP_ / VITE_ prefixed names used by dashboard builds.
func setAIKey(dst *string, key string) {
	for _, name := range []string{"POLYEDGE_" + key, key, "REACT_APP_" + key, "VITE_" + key} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			*dst = v
			return
		}
	}
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the variable is
// present and parses.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var cleaned []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}
	if len(cleaned) > 0 {
		*dst = cleaned
	}
}
