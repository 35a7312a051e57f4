package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML file at path over Defaults and applies LPSYNC_*
// environment overrides. An empty path skips the file. The result is not
// validated; callers invoke Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// RPC
	setStr(&cfg.RPC.Endpoint, "LPSYNC_RPC_ENDPOINT")
	setStr(&cfg.RPC.WSEndpoint, "LPSYNC_RPC_WS_ENDPOINT")
	setDuration(&cfg.RPC.Timeout, "LPSYNC_RPC_TIMEOUT")
	setInt(&cfg.RPC.MaxRetries, "LPSYNC_RPC_MAX_RETRIES")
	setInt(&cfg.RPC.ChunkSize, "LPSYNC_RPC_CHUNK_SIZE")

	// Storage
	setStr(&cfg.Postgres.DSN, "LPSYNC_POSTGRES_DSN")
	setBool(&cfg.Postgres.RunMigrations, "LPSYNC_POSTGRES_RUN_MIGRATIONS")
	setStr(&cfg.Clickhouse.DSN, "LPSYNC_CLICKHOUSE_DSN")
	setBool(&cfg.Clickhouse.Enabled, "LPSYNC_CLICKHOUSE_ENABLED")
	setStr(&cfg.Redis.Addr, "LPSYNC_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "LPSYNC_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "LPSYNC_REDIS_DB")
	setDuration(&cfg.Redis.PriceTTL, "LPSYNC_REDIS_PRICE_TTL")

	// Oracle
	setStr(&cfg.Oracle.BaseURL, "LPSYNC_ORACLE_BASE_URL")
	setStr(&cfg.Oracle.Network, "LPSYNC_ORACLE_NETWORK")
	setDuration(&cfg.Oracle.Timeout, "LPSYNC_ORACLE_TIMEOUT")

	// Sync
	setStr(&cfg.Sync.Cron, "LPSYNC_SYNC_CRON")
	setStringSlice(&cfg.Sync.Wallets, "LPSYNC_SYNC_WALLETS")
	setDuration(&cfg.Sync.CycleInterval, "LPSYNC_SYNC_CYCLE_INTERVAL")
	setInt(&cfg.Sync.Workers, "LPSYNC_SYNC_WORKERS")
	setStringSlice(&cfg.Sync.Protocols, "LPSYNC_SYNC_PROTOCOLS")

	// Ingest
	setStringSlice(&cfg.Ingest.Programs, "LPSYNC_INGEST_PROGRAMS")
	setInt(&cfg.Ingest.Workers, "LPSYNC_INGEST_WORKERS")

	setStr(&cfg.Metrics.Addr, "LPSYNC_METRICS_ADDR")
	setStr(&cfg.LogLevel, "LPSYNC_LOG_LEVEL")
	setStr(&cfg.LogEncoding, "LPSYNC_LOG_ENCODING")
}

// Each helper only mutates the target when the variable is set and parses.

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

func setDuration(dst *Duration, key string) {
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
