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

// EnvPrefix prefixes every environment override.
const EnvPrefix = "EPOCHKEEPER_"

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies EPOCHKEEPER_* environment variable overrides, and
// returns the final Config. A missing file is not an error so env-only
// deployments work. The returned Config has NOT been validated; the caller
// should invoke Config.Validate() after Load.
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

// applyEnvOverrides reads well-known EPOCHKEEPER_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, EnvPrefix+"CHAIN_RPC_URL")
	setStr(&cfg.Chain.APIKey, EnvPrefix+"CHAIN_API_KEY")
	setInt64(&cfg.Chain.ChainID, EnvPrefix+"CHAIN_CHAIN_ID")
	setInt(&cfg.Chain.Confirmations, EnvPrefix+"CHAIN_CONFIRMATIONS")
	setInt(&cfg.Chain.BlockTimeSample, EnvPrefix+"CHAIN_BLOCK_TIME_SAMPLE")

	// ── Wallet ──
	setStr(&cfg.Wallet.Address, EnvPrefix+"WALLET_ADDRESS")
	setStr(&cfg.Wallet.PrivateKey, EnvPrefix+"WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, EnvPrefix+"WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeystoreDir, EnvPrefix+"WALLET_KEYSTORE_DIR")
	setStr(&cfg.Wallet.KeyPassword, EnvPrefix+"WALLET_KEY_PASSWORD")

	// ── Contracts ──
	setStr(&cfg.Contracts.Staking, EnvPrefix+"CONTRACTS_STAKING")
	setStr(&cfg.Contracts.StakedToken, EnvPrefix+"CONTRACTS_STAKED_TOKEN")
	setStr(&cfg.Contracts.RedeemHelper, EnvPrefix+"CONTRACTS_REDEEM_HELPER")
	setStr(&cfg.Contracts.TokenSymbol, EnvPrefix+"CONTRACTS_TOKEN_SYMBOL")
	setStr(&cfg.Contracts.StakedSymbol, EnvPrefix+"CONTRACTS_STAKED_SYMBOL")
	setInt(&cfg.Contracts.Decimals, EnvPrefix+"CONTRACTS_DECIMALS")

	// ── Engine ──
	setDuration(&cfg.Engine.PollInterval, EnvPrefix+"ENGINE_POLL_INTERVAL")
	setInt64(&cfg.Engine.TriggerWindow, EnvPrefix+"ENGINE_TRIGGER_WINDOW")
	setDuration(&cfg.Engine.RetryDelay, EnvPrefix+"ENGINE_RETRY_DELAY")
	setInt(&cfg.Engine.MaxBonds, EnvPrefix+"ENGINE_MAX_BONDS")
	setStringSlice(&cfg.Engine.SupplementalBonds, EnvPrefix+"ENGINE_SUPPLEMENTAL_BONDS")
	setBool(&cfg.Engine.AutoStake, EnvPrefix+"ENGINE_AUTO_STAKE")

	// ── Ledger ──
	setStr(&cfg.Ledger.Backend, EnvPrefix+"LEDGER_BACKEND")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, EnvPrefix+"POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, EnvPrefix+"POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, EnvPrefix+"POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, EnvPrefix+"POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, EnvPrefix+"POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, EnvPrefix+"POSTGRES_USER")
	setStr(&cfg.Postgres.Password, EnvPrefix+"POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, EnvPrefix+"POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, EnvPrefix+"POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, EnvPrefix+"POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, EnvPrefix+"POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, EnvPrefix+"REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, EnvPrefix+"REDIS_ADDR")
	setStr(&cfg.Redis.Password, EnvPrefix+"REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, EnvPrefix+"REDIS_DB")
	setInt(&cfg.Redis.PoolSize, EnvPrefix+"REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, EnvPrefix+"REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, EnvPrefix+"REDIS_TLS_ENABLED")
	setBool(&cfg.Redis.RedeemLock, EnvPrefix+"REDIS_REDEEM_LOCK")
	setBool(&cfg.Redis.PublishStatus, EnvPrefix+"REDIS_PUBLISH_STATUS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, EnvPrefix+"S3_ENABLED")
	setStr(&cfg.S3.Endpoint, EnvPrefix+"S3_ENDPOINT")
	setStr(&cfg.S3.Region, EnvPrefix+"S3_REGION")
	setStr(&cfg.S3.Bucket, EnvPrefix+"S3_BUCKET")
	setStr(&cfg.S3.Prefix, EnvPrefix+"S3_PREFIX")
	setStr(&cfg.S3.AccessKey, EnvPrefix+"S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, EnvPrefix+"S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, EnvPrefix+"S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, EnvPrefix+"S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, EnvPrefix+"SERVER_ENABLED")
	setInt(&cfg.Server.Port, EnvPrefix+"SERVER_PORT")
	setStr(&cfg.Server.APIKey, EnvPrefix+"SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, EnvPrefix+"SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, EnvPrefix+"NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, EnvPrefix+"NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, EnvPrefix+"NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, EnvPrefix+"NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, EnvPrefix+"MODE")
	setStr(&cfg.LogLevel, EnvPrefix+"LOG_LEVEL")
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
