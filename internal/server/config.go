package server

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/lox/poollottery/internal/lottery"
)

// Auth modes.
const (
	AuthModeSignature = "signature"
	AuthModeHTTP      = "http"
	AuthModeNone      = "none"
)

// Config is the complete poollottery configuration.
type Config struct {
	Server   *ServerSettings  `hcl:"server,block"`
	Lottery  *LotterySettings `hcl:"lottery,block"`
	Storage  *StorageSettings `hcl:"storage,block"`
	Entropy  *EntropySettings `hcl:"entropy,block"`
	Auth     *AuthSettings    `hcl:"auth,block"`
	Accounts []AccountConfig  `hcl:"account,block"`
}

// ServerSettings contains listener and logging configuration
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
}

// LotterySettings fixes the pool created by deploy.
type LotterySettings struct {
	Manager  string `hcl:"manager,optional"`
	EntryFee string `hcl:"entry_fee,optional"`
}

// StorageSettings locates the database and the deployment log.
type StorageSettings struct {
	Path      string `hcl:"path,optional"`
	DeployLog string `hcl:"deploy_log,optional"`
}

// EntropySettings seeds the simulated block producer. Zero means a seed
// taken from the clock.
type EntropySettings struct {
	Seed int64 `hcl:"seed,optional"`
}

// AuthSettings selects how connections prove their address.
type AuthSettings struct {
	Mode        string `hcl:"mode,optional"`
	MaxSkew     string `hcl:"max_skew,optional"`
	URL         string `hcl:"url,optional"`
	AdminSecret string `hcl:"admin_secret,optional"`
}

// AccountConfig is a genesis account credited at deploy time.
type AccountConfig struct {
	Name        string `hcl:"name,label"`
	Address     string `hcl:"address"`
	Balance     string `hcl:"balance,optional"`
	RejectFunds bool   `hcl:"reject_funds,optional"`
}

// DefaultConfig returns the configuration used when no file exists
func DefaultConfig() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// LoadConfig loads configuration from an HCL file. A missing file yields
// the defaults.
func LoadConfig(filename string) (*Config, error) {
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var config Config
	diags = gohcl.DecodeBody(file.Body, nil, &config)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	config.applyDefaults()
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Server == nil {
		c.Server = &ServerSettings{}
	}
	if c.Server.Address == "" {
		c.Server.Address = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}

	if c.Lottery == nil {
		c.Lottery = &LotterySettings{}
	}
	if c.Lottery.EntryFee == "" {
		c.Lottery.EntryFee = "0.01 ether"
	}

	if c.Storage == nil {
		c.Storage = &StorageSettings{}
	}
	if c.Storage.Path == "" {
		c.Storage.Path = "poollottery.db"
	}
	if c.Storage.DeployLog == "" {
		c.Storage.DeployLog = "deploy-log.txt"
	}

	if c.Entropy == nil {
		c.Entropy = &EntropySettings{}
	}

	if c.Auth == nil {
		c.Auth = &AuthSettings{}
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = AuthModeSignature
	}
	if c.Auth.MaxSkew == "" {
		c.Auth.MaxSkew = "5m"
	}

	for i := range c.Accounts {
		if c.Accounts[i].Balance == "" {
			c.Accounts[i].Balance = "0"
		}
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Lottery.Manager != "" && !common.IsHexAddress(c.Lottery.Manager) {
		return fmt.Errorf("lottery: invalid manager address %q", c.Lottery.Manager)
	}
	fee, err := lottery.ParseAmount(c.Lottery.EntryFee)
	if err != nil {
		return fmt.Errorf("lottery: entry_fee: %w", err)
	}
	if fee.Sign() <= 0 {
		return fmt.Errorf("lottery: entry fee must be positive")
	}

	switch c.Auth.Mode {
	case AuthModeSignature, AuthModeNone:
	case AuthModeHTTP:
		if c.Auth.URL == "" {
			return fmt.Errorf("auth: url is required for mode %q", AuthModeHTTP)
		}
	default:
		return fmt.Errorf("auth: invalid mode %q", c.Auth.Mode)
	}
	skew, err := time.ParseDuration(c.Auth.MaxSkew)
	if err != nil {
		return fmt.Errorf("auth: max_skew: %w", err)
	}
	if skew <= 0 {
		return fmt.Errorf("auth: max_skew must be positive")
	}

	seen := make(map[common.Address]string, len(c.Accounts))
	for _, acct := range c.Accounts {
		if !common.IsHexAddress(acct.Address) {
			return fmt.Errorf("account %s: invalid address %q", acct.Name, acct.Address)
		}
		addr := common.HexToAddress(acct.Address)
		if other, ok := seen[addr]; ok {
			return fmt.Errorf("account %s: address already used by account %s", acct.Name, other)
		}
		seen[addr] = acct.Name
		if _, err := lottery.ParseAmount(acct.Balance); err != nil {
			return fmt.Errorf("account %s: balance: %w", acct.Name, err)
		}
	}

	return nil
}

// ListenAddress returns the host:port the server binds to
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// ManagerAddress returns the configured manager.
func (c *Config) ManagerAddress() (common.Address, error) {
	if c.Lottery.Manager == "" {
		return common.Address{}, errors.New("lottery: manager is not configured")
	}
	if !common.IsHexAddress(c.Lottery.Manager) {
		return common.Address{}, fmt.Errorf("lottery: invalid manager address %q", c.Lottery.Manager)
	}
	return common.HexToAddress(c.Lottery.Manager), nil
}

// EntryFeeWei returns the configured entry fee in wei.
func (c *Config) EntryFeeWei() (*big.Int, error) {
	return lottery.ParseAmount(c.Lottery.EntryFee)
}

// AuthSkew returns the accepted signature age.
func (c *Config) AuthSkew() time.Duration {
	d, err := time.ParseDuration(c.Auth.MaxSkew)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

// Account returns the account with the given name or address.
func (c *Config) Account(nameOrAddress string) (*AccountConfig, bool) {
	for i := range c.Accounts {
		acct := &c.Accounts[i]
		if acct.Name == nameOrAddress || strings.EqualFold(acct.Address, nameOrAddress) {
			return acct, true
		}
	}
	return nil, false
}
