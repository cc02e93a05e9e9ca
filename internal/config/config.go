// Package config defines the top-level configuration for the epoch keeper
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// CommunityAPIKey is the shared key used when chain.api_key is empty. It is
// heavily rate limited.
const CommunityAPIKey = "demo"

// APIKeyPlaceholder is substituted with the API key in chain.rpc_url.
const APIKeyPlaceholder = "{api_key}"

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by EPOCHKEEPER_* environment variables.
type Config struct {
	Chain     ChainConfig     `toml:"chain"`
	Wallet    WalletConfig    `toml:"wallet"`
	Contracts ContractsConfig `toml:"contracts"`
	Engine    EngineConfig    `toml:"engine"`
	Ledger    LedgerConfig    `toml:"ledger"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// ChainConfig holds the JSON-RPC endpoint and confirmation parameters.
type ChainConfig struct {
	RPCURL          string `toml:"rpc_url"`
	APIKey          string `toml:"api_key"`
	ChainID         int64  `toml:"chain_id"`
	Confirmations   int    `toml:"confirmations"`
	BlockTimeSample int    `toml:"block_time_sample"`
}

// Endpoint returns RPCURL with the API key substituted, falling back to the
// community key.
func (c ChainConfig) Endpoint() string {
	key := c.APIKey
	if key == "" {
		key = CommunityAPIKey
	}
	return strings.ReplaceAll(c.RPCURL, APIKeyPlaceholder, key)
}

// UsesCommunityKey reports whether the endpoint falls back to the shared key.
func (c ChainConfig) UsesCommunityKey() bool {
	return c.APIKey == "" && strings.Contains(c.RPCURL, APIKeyPlaceholder)
}

// WalletConfig holds the account and its key sources.
type WalletConfig struct {
	Address          string `toml:"address"`
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeystoreDir      string `toml:"keystore_dir"`
	KeyPassword      string `toml:"key_password"`
}

// ContractsConfig holds the fixed contract addresses and token metadata.
type ContractsConfig struct {
	Staking      string `toml:"staking"`
	StakedToken  string `toml:"staked_token"`
	RedeemHelper string `toml:"redeem_helper"`
	TokenSymbol  string `toml:"token_symbol"`
	StakedSymbol string `toml:"staked_symbol"`
	Decimals     int    `toml:"decimals"`
}

// EngineConfig holds the scheduling and trigger parameters.
type EngineConfig struct {
	PollInterval      duration `toml:"poll_interval"`
	TriggerWindow     int64    `toml:"trigger_window"`
	RetryDelay        duration `toml:"retry_delay"`
	MaxBonds          int      `toml:"max_bonds"`
	SupplementalBonds []string `toml:"supplemental_bonds"`
	AutoStake         bool     `toml:"auto_stake"`
}

// LedgerConfig selects where handled epochs are remembered.
type LedgerConfig struct {
	// Backend is one of memory, postgres, redis.
	Backend string `toml:"backend"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	// RedeemLock guards each epoch's redeem with a distributed lock.
	RedeemLock bool `toml:"redeem_lock"`
	// PublishStatus publishes every tick status on the status channel.
	PublishStatus bool `toml:"publish_status"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP status server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"` // empty disables auth on /api/status and /api/ledger
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:          "https://eth-mainnet.g.alchemy.com/v2/" + APIKeyPlaceholder,
			ChainID:         1,
			Confirmations:   2,
			BlockTimeSample: 1000,
		},
		Contracts: ContractsConfig{
			TokenSymbol:  "OHM",
			StakedSymbol: "sOHM",
			Decimals:     9,
		},
		Engine: EngineConfig{
			PollInterval:  duration{time.Minute},
			TriggerWindow: 300,
			RetryDelay:    duration{2 * time.Second},
			MaxBonds:      20,
			AutoStake:     true,
		},
		Ledger: LedgerConfig{
			Backend: "memory",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  4,
			PoolMinConns:  1,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   10,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "epochkeeper",
			Prefix:         "reports",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled: false,
			Port:    8000,
		},
		Notify: NotifyConfig{
			Events: []string{"redeem_success", "redeem_partial", "redeem_failed"},
		},
		Mode:     "run",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"run":     true,
	"monitor": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLedgerBackends = map[string]bool{
	"memory":   true,
	"postgres": true,
	"redis":    true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: run, monitor)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Wallet
	if c.Wallet.Address == "" {
		errs = append(errs, "wallet: address must be set")
	} else if !common.IsHexAddress(c.Wallet.Address) {
		errs = append(errs, fmt.Sprintf("wallet: address %q is not a hex address", c.Wallet.Address))
	}
	if strings.EqualFold(c.Mode, "run") && c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" && c.Wallet.KeystoreDir == "" {
		errs = append(errs, "wallet: one of private_key, encrypted_key_path or keystore_dir must be set for mode run")
	}

	// Chain
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.ChainID < 0 {
		errs = append(errs, "chain: chain_id must not be negative")
	}
	if c.Chain.Confirmations < 1 {
		errs = append(errs, "chain: confirmations must be >= 1")
	}
	if c.Chain.BlockTimeSample < 1 {
		errs = append(errs, "chain: block_time_sample must be >= 1")
	}

	// Contracts
	for _, ct := range []struct{ name, addr string }{
		{"staking", c.Contracts.Staking},
		{"staked_token", c.Contracts.StakedToken},
		{"redeem_helper", c.Contracts.RedeemHelper},
	} {
		if !common.IsHexAddress(ct.addr) {
			errs = append(errs, fmt.Sprintf("contracts: %s must be a hex address, got %q", ct.name, ct.addr))
		}
	}
	if c.Contracts.Decimals < 0 || c.Contracts.Decimals > 36 {
		errs = append(errs, fmt.Sprintf("contracts: decimals must be 0-36, got %d", c.Contracts.Decimals))
	}

	// Engine
	if c.Engine.PollInterval.Duration < time.Second {
		errs = append(errs, "engine: poll_interval must be >= 1s")
	}
	if c.Engine.TriggerWindow < 0 {
		errs = append(errs, "engine: trigger_window must not be negative")
	}
	if c.Engine.RetryDelay.Duration <= 0 {
		errs = append(errs, "engine: retry_delay must be > 0")
	}
	if c.Engine.MaxBonds < 0 {
		errs = append(errs, "engine: max_bonds must not be negative")
	}
	for _, b := range c.Engine.SupplementalBonds {
		if !common.IsHexAddress(b) {
			errs = append(errs, fmt.Sprintf("engine: supplemental bond %q is not a hex address", b))
		}
	}

	// Ledger
	backend := strings.ToLower(c.Ledger.Backend)
	if !validLedgerBackends[backend] {
		errs = append(errs, fmt.Sprintf("ledger: unknown backend %q (valid: memory, postgres, redis)", c.Ledger.Backend))
	}
	if backend == "postgres" && !c.Postgres.Enabled {
		errs = append(errs, "ledger: backend postgres requires postgres.enabled")
	}
	if backend == "redis" && !c.Redis.Enabled {
		errs = append(errs, "ledger: backend redis requires redis.enabled")
	}

	// Postgres
	if c.Postgres.Enabled {
		if strings.TrimSpace(c.Postgres.DSN) == "" {
			if c.Postgres.Host == "" {
				errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
			}
			if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
				errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
			}
			if c.Postgres.Database == "" {
				errs = append(errs, "postgres: database must not be empty")
			}
		}
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Warnings returns non-fatal notices about degraded credentials. They are
// logged once at startup and change nothing at runtime.
func (c *Config) Warnings() []string {
	var out []string
	if c.Wallet.KeyPassword == "" {
		out = append(out, "wallet: key_password is empty; the key store is not password protected")
	}
	if c.Chain.UsesCommunityKey() {
		out = append(out, "chain: api_key is empty; using the shared community key, expect rate limiting")
	}
	return out
}
