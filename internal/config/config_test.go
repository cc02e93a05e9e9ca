package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
mode = "monitor"

[chain]
rpc_url = "https://rpc.example.org/{api_key}"
api_key = "k3y"
chain_id = 43114

[wallet]
address = "0x00000000000000000000000000000000000000aa"

[contracts]
staking = "0x0000000000000000000000000000000000000001"
staked_token = "0x0000000000000000000000000000000000000002"
redeem_helper = "0x0000000000000000000000000000000000000003"

[engine]
poll_interval = "30s"
supplemental_bonds = ["0x0000000000000000000000000000000000000b01"]
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func validConfig() Config {
	cfg := Defaults()
	cfg.Wallet.Address = "0x00000000000000000000000000000000000000aa"
	cfg.Wallet.PrivateKey = "0x01"
	cfg.Wallet.KeyPassword = "pw"
	cfg.Chain.APIKey = "k3y"
	cfg.Contracts.Staking = "0x0000000000000000000000000000000000000001"
	cfg.Contracts.StakedToken = "0x0000000000000000000000000000000000000002"
	cfg.Contracts.RedeemHelper = "0x0000000000000000000000000000000000000003"
	return cfg
}

func TestLoad_FileOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "monitor", cfg.Mode)
	assert.Equal(t, int64(43114), cfg.Chain.ChainID)
	assert.Equal(t, 30*time.Second, cfg.Engine.PollInterval.Duration)
	assert.Equal(t, 2*time.Second, cfg.Engine.RetryDelay.Duration)
	assert.Equal(t, int64(300), cfg.Engine.TriggerWindow)
	assert.Equal(t, 2, cfg.Chain.Confirmations)
	assert.Len(t, cfg.Engine.SupplementalBonds, 1)
	assert.Equal(t, "https://rpc.example.org/k3y", cfg.Chain.Endpoint())
	require.NoError(t, cfg.Validate())
}

func TestLoad_ExampleMatchesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config.example.toml"))
	require.NoError(t, err)

	def := Defaults()
	assert.Equal(t, def.Chain, cfg.Chain)
	assert.Equal(t, def.Ledger, cfg.Ledger)
	assert.Equal(t, def.Postgres, cfg.Postgres)
	assert.Equal(t, def.Redis, cfg.Redis)
	assert.Equal(t, def.S3, cfg.S3)
	assert.Equal(t, def.Notify, cfg.Notify)
	assert.Equal(t, def.Engine.PollInterval, cfg.Engine.PollInterval)
	assert.Equal(t, def.Engine.TriggerWindow, cfg.Engine.TriggerWindow)
	assert.Equal(t, def.Contracts.Decimals, cfg.Contracts.Decimals)
	assert.Equal(t, def.Server.Port, cfg.Server.Port)
	assert.False(t, cfg.Server.Enabled)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "run", cfg.Mode)
	assert.Equal(t, "memory", cfg.Ledger.Backend)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("EPOCHKEEPER_WALLET_ADDRESS", "0x00000000000000000000000000000000000000bb")
	t.Setenv("EPOCHKEEPER_ENGINE_TRIGGER_WINDOW", "120")
	t.Setenv("EPOCHKEEPER_ENGINE_POLL_INTERVAL", "2m")
	t.Setenv("EPOCHKEEPER_ENGINE_SUPPLEMENTAL_BONDS", " 0x0000000000000000000000000000000000000b02 , ,0x0000000000000000000000000000000000000b03")
	t.Setenv("EPOCHKEEPER_REDIS_ENABLED", "true")
	t.Setenv("EPOCHKEEPER_CHAIN_CHAIN_ID", "not-a-number")

	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "0x00000000000000000000000000000000000000bb", cfg.Wallet.Address)
	assert.Equal(t, int64(120), cfg.Engine.TriggerWindow)
	assert.Equal(t, 2*time.Minute, cfg.Engine.PollInterval.Duration)
	assert.Equal(t, []string{
		"0x0000000000000000000000000000000000000b02",
		"0x0000000000000000000000000000000000000b03",
	}, cfg.Engine.SupplementalBonds)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, int64(43114), cfg.Chain.ChainID)
}

func TestValidate_MissingAddressIsFatal(t *testing.T) {
	cfg := validConfig()
	cfg.Wallet.Address = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet: address must be set")
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "trade"
	cfg.Contracts.Staking = "nope"
	cfg.Ledger.Backend = "postgres"
	cfg.Engine.SupplementalBonds = []string{"0x12"}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{
		`unknown mode "trade"`,
		"contracts: staking must be a hex address",
		"ledger: backend postgres requires postgres.enabled",
		`supplemental bond "0x12"`,
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestValidate_RunModeNeedsKeySource(t *testing.T) {
	cfg := validConfig()
	cfg.Wallet.PrivateKey = ""
	require.Error(t, cfg.Validate())

	cfg.Mode = "monitor"
	require.NoError(t, cfg.Validate())

	cfg.Mode = "run"
	cfg.Wallet.KeystoreDir = "/var/lib/epochkeeper/keystore"
	require.NoError(t, cfg.Validate())
}

func TestValidate_RunModeKeySourceIgnoresCase(t *testing.T) {
	cfg := validConfig()
	cfg.Wallet.PrivateKey = ""
	cfg.Mode = "RUN"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be set for mode run")
}

func TestWarnings(t *testing.T) {
	cfg := validConfig()
	assert.Empty(t, cfg.Warnings())

	cfg.Wallet.KeyPassword = ""
	cfg.Chain.APIKey = ""
	warnings := cfg.Warnings()
	require.Len(t, warnings, 2)
	assert.Contains(t, warnings[0], "key_password")
	assert.Contains(t, warnings[1], "community key")
	assert.Equal(t, "https://eth-mainnet.g.alchemy.com/v2/demo", cfg.Chain.Endpoint())

	cfg.Chain.RPCURL = "http://localhost:8545"
	assert.Len(t, cfg.Warnings(), 1)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Password = "secret"
	cfg.Notify.Events = []string{"redeem_success"}

	out := RedactedConfig(&cfg)

	assert.Equal(t, "***", out.Wallet.PrivateKey)
	assert.Equal(t, "***", out.Wallet.KeyPassword)
	assert.Equal(t, "***", out.Chain.APIKey)
	assert.Equal(t, "***", out.Postgres.Password)
	assert.Empty(t, out.Redis.Password)
	assert.Equal(t, cfg.Wallet.Address, out.Wallet.Address)

	out.Notify.Events[0] = "changed"
	assert.Equal(t, "redeem_success", cfg.Notify.Events[0])
	assert.Equal(t, "0x01", cfg.Wallet.PrivateKey)
}
