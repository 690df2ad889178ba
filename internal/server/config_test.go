package server

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "poollottery.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.hcl"))
	require.NoError(t, err)
	assert.Equal(t, "localhost:8080", cfg.ListenAddress())
	assert.Equal(t, "0.01 ether", cfg.Lottery.EntryFee)
	assert.Equal(t, "poollottery.db", cfg.Storage.Path)
	assert.Equal(t, "deploy-log.txt", cfg.Storage.DeployLog)
	assert.Equal(t, AuthModeSignature, cfg.Auth.Mode)
	assert.Equal(t, 5*time.Minute, cfg.AuthSkew())
	require.NoError(t, cfg.Validate())

	_, err = cfg.ManagerAddress()
	assert.Error(t, err)
}

func TestLoadConfigFull(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
server {
  address   = "0.0.0.0"
  port      = 9090
  log_level = "debug"
}

lottery {
  manager   = "0x1000000000000000000000000000000000000001"
  entry_fee = "5 gwei"
}

storage {
  path = "/tmp/pool.db"
}

entropy {
  seed = 42
}

auth {
  mode     = "none"
  max_skew = "30s"
}

account "alice" {
  address = "0x2000000000000000000000000000000000000002"
  balance = "1 ether"
}

account "vault" {
  address      = "0x3000000000000000000000000000000000000003"
  reject_funds = true
}
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0.0.0.0:9090", cfg.ListenAddress())
	assert.Equal(t, "debug", cfg.Server.LogLevel)
	assert.Equal(t, int64(42), cfg.Entropy.Seed)
	assert.Equal(t, "/tmp/pool.db", cfg.Storage.Path)
	assert.Equal(t, "deploy-log.txt", cfg.Storage.DeployLog)
	assert.Equal(t, 30*time.Second, cfg.AuthSkew())

	manager, err := cfg.ManagerAddress()
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x1000000000000000000000000000000000000001"), manager)

	fee, err := cfg.EntryFeeWei()
	require.NoError(t, err)
	assert.Zero(t, fee.Cmp(big.NewInt(5_000_000_000)))

	require.Len(t, cfg.Accounts, 2)
	assert.Equal(t, "0", cfg.Accounts[1].Balance)
	assert.True(t, cfg.Accounts[1].RejectFunds)

	acct, ok := cfg.Account("alice")
	require.True(t, ok)
	assert.Equal(t, "1 ether", acct.Balance)
	acct, ok = cfg.Account("0x3000000000000000000000000000000000000003")
	require.True(t, ok)
	assert.Equal(t, "vault", acct.Name)
	_, ok = cfg.Account("mallory")
	assert.False(t, ok)
}

func TestLoadConfigParseError(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig(writeConfig(t, `server { port = `))
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, `lottery { colour = "red" }`))
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port too low", func(c *Config) { c.Server.Port = -1 }},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }},
		{"bad manager", func(c *Config) { c.Lottery.Manager = "alice" }},
		{"zero fee", func(c *Config) { c.Lottery.EntryFee = "0" }},
		{"bad fee", func(c *Config) { c.Lottery.EntryFee = "a few" }},
		{"bad auth mode", func(c *Config) { c.Auth.Mode = "password" }},
		{"http without url", func(c *Config) { c.Auth.Mode = AuthModeHTTP }},
		{"bad skew", func(c *Config) { c.Auth.MaxSkew = "soon" }},
		{"negative skew", func(c *Config) { c.Auth.MaxSkew = "-1m" }},
		{"bad account address", func(c *Config) {
			c.Accounts = []AccountConfig{{Name: "a", Address: "nope", Balance: "0"}}
		}},
		{"duplicate account", func(c *Config) {
			c.Accounts = []AccountConfig{
				{Name: "a", Address: "0x2000000000000000000000000000000000000002", Balance: "0"},
				{Name: "b", Address: "0x2000000000000000000000000000000000000002", Balance: "0"},
			}
		}},
		{"bad balance", func(c *Config) {
			c.Accounts = []AccountConfig{{Name: "a", Address: "0x2000000000000000000000000000000000000002", Balance: "-3"}}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
