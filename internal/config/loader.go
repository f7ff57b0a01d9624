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

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MARTELINHO_* environment variable overrides, and
// returns the final Config. A missing file is not an error: the defaults
// alone run a local single-node storefront. The returned Config has NOT been
// validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MARTELINHO_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Storage ──
	setStr(&cfg.Storage.Backend, "MARTELINHO_STORAGE_BACKEND")
	setStr(&cfg.Storage.Port, "MARTELINHO_STORAGE_PORT")
	setStr(&cfg.Storage.Dir, "MARTELINHO_STORAGE_DIR")
	setStr(&cfg.Storage.Codec, "MARTELINHO_STORAGE_CODEC")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "MARTELINHO_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "MARTELINHO_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "MARTELINHO_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "MARTELINHO_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "MARTELINHO_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "MARTELINHO_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "MARTELINHO_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "MARTELINHO_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "MARTELINHO_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "MARTELINHO_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "MARTELINHO_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MARTELINHO_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MARTELINHO_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MARTELINHO_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MARTELINHO_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MARTELINHO_REDIS_TLS_ENABLED")
	setStr(&cfg.Redis.KeyPrefix, "MARTELINHO_REDIS_KEY_PREFIX")
	setInt(&cfg.Redis.CacheTTLMinutes, "MARTELINHO_REDIS_CACHE_TTL_MINUTES")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "MARTELINHO_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MARTELINHO_S3_REGION")
	setStr(&cfg.S3.Bucket, "MARTELINHO_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MARTELINHO_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MARTELINHO_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MARTELINHO_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MARTELINHO_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.Prefix, "MARTELINHO_S3_PREFIX")

	// ── Copygen ──
	setStr(&cfg.Copygen.APIKey, "MARTELINHO_COPYGEN_API_KEY")
	setStr(&cfg.Copygen.APIKey, "GEMINI_API_KEY") // compatibility alias
	setStr(&cfg.Copygen.Model, "MARTELINHO_COPYGEN_MODEL")
	setDuration(&cfg.Copygen.Timeout, "MARTELINHO_COPYGEN_TIMEOUT")

	// ── Expiry / archive ──
	setDuration(&cfg.Expiry.Interval, "MARTELINHO_EXPIRY_INTERVAL")
	setBool(&cfg.Archive.Enabled, "MARTELINHO_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "MARTELINHO_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "MARTELINHO_ARCHIVE_RETENTION_DAYS")
	setInt(&cfg.Archive.KeepExports, "MARTELINHO_ARCHIVE_KEEP_EXPORTS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "MARTELINHO_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "MARTELINHO_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MARTELINHO_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "MARTELINHO_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "MARTELINHO_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "MARTELINHO_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MARTELINHO_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MARTELINHO_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MARTELINHO_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MARTELINHO_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "MARTELINHO_MODE")
	setStr(&cfg.LogLevel, "MARTELINHO_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
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
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
