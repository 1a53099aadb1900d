package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies VEILBET_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known VEILBET_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "VEILBET_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "VEILBET_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "VEILBET_WALLET_KEY_PASSWORD")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "VEILBET_CHAIN_RPC_URL")
	setInt64(&cfg.Chain.ChainID, "VEILBET_CHAIN_ID")
	setStr(&cfg.Chain.ContractAddress, "VEILBET_CHAIN_CONTRACT_ADDRESS")
	setUint64(&cfg.Chain.GasLimit, "VEILBET_CHAIN_GAS_LIMIT")

	// ── Cofhe ──
	setStr(&cfg.Cofhe.RelayerURL, "VEILBET_COFHE_RELAYER_URL")
	setDuration(&cfg.Cofhe.PermitTTL, "VEILBET_COFHE_PERMIT_TTL")

	// ── Hint store ──
	setStr(&cfg.HintStore.BaseURL, "VEILBET_HINT_STORE_BASE_URL")
	setStr(&cfg.HintStore.ApiKey, "VEILBET_HINT_STORE_API_KEY")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "VEILBET_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "VEILBET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "VEILBET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "VEILBET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "VEILBET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "VEILBET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "VEILBET_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "VEILBET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "VEILBET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "VEILBET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "VEILBET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "VEILBET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "VEILBET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "VEILBET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "VEILBET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "VEILBET_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "VEILBET_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "VEILBET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "VEILBET_S3_REGION")
	setStr(&cfg.S3.Bucket, "VEILBET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "VEILBET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "VEILBET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "VEILBET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "VEILBET_S3_FORCE_PATH_STYLE")

	// ── Feed ──
	setBool(&cfg.Feed.Enabled, "VEILBET_FEED_ENABLED")
	setStr(&cfg.Feed.WsURL, "VEILBET_FEED_WS_URL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "VEILBET_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "VEILBET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "VEILBET_SERVER_CORS_ORIGINS")

	// ── Top-level ──
	setStr(&cfg.Mode, "VEILBET_MODE")
	setStr(&cfg.LogLevel, "VEILBET_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
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
