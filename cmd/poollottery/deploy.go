package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"

	"github.com/lox/poollottery/cmd/poollottery/shared"
	"github.com/lox/poollottery/internal/fileutil"
	"github.com/lox/poollottery/internal/ledger"
	"github.com/lox/poollottery/internal/lottery"
	"github.com/lox/poollottery/internal/server"
	"github.com/lox/poollottery/internal/store"
)

// DeployCmd creates the pool once
type DeployCmd struct {
	ConfigFlags
	Manager  string `short:"m" help:"Manager address (overrides config)"`
	EntryFee string `short:"f" help:"Entry fee, e.g. '0.01 ether' (overrides config)"`
	Log      string `help:"Deployment log file (overrides config)"`
	Debug    bool   `help:"Enable debug logging"`
}

func (c *DeployCmd) Run() error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	if c.Manager != "" {
		cfg.Lottery.Manager = c.Manager
	}
	if c.EntryFee != "" {
		cfg.Lottery.EntryFee = c.EntryFee
	}
	if c.Log != "" {
		cfg.Storage.DeployLog = c.Log
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := shared.SetupLogger(shared.DebugLevel(c.Debug, cfg.Server.LogLevel))

	snapshot, err := deploy(cfg, logger, time.Now())
	if err != nil {
		return err
	}

	fmt.Printf("Pool address: %s\n", snapshot.Address.Hex())
	fmt.Printf("Manager:      %s\n", snapshot.Manager.Hex())
	fmt.Printf("Entry fee:    %s\n", lottery.FormatAmount(snapshot.EntryFee))
	return nil
}

// deploy writes the genesis pool and balances to the store and appends a
// record to the deployment log.
func deploy(cfg *server.Config, logger *log.Logger, now time.Time) (*lottery.Snapshot, error) {
	manager, err := cfg.ManagerAddress()
	if err != nil {
		return nil, err
	}
	fee, err := cfg.EntryFeeWei()
	if err != nil {
		return nil, err
	}

	l := ledger.New()
	for _, acct := range cfg.Accounts {
		bal, err := lottery.ParseAmount(acct.Balance)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", acct.Name, err)
		}
		if err := l.Credit(common.HexToAddress(acct.Address), bal); err != nil {
			return nil, fmt.Errorf("account %s: %w", acct.Name, err)
		}
	}

	pool, err := lottery.New(lottery.Config{Manager: manager, EntryFee: fee}, l)
	if err != nil {
		return nil, err
	}
	snapshot := pool.Snapshot()

	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	if err := st.Deploy(snapshot, l.Accounts()); err != nil {
		return nil, err
	}
	logger.Info("Deployed pool",
		"pool", snapshot.Address.Hex(),
		"manager", manager.Hex(),
		"entryFee", lottery.FormatAmount(fee),
		"accounts", len(cfg.Accounts),
		"db", st.Path())

	record, err := deployRecord(snapshot, now)
	if err != nil {
		return nil, err
	}
	if err := fileutil.AppendFileAtomic(cfg.Storage.DeployLog, record, 0o644); err != nil {
		return nil, fmt.Errorf("write deploy log: %w", err)
	}
	logger.Debug("Wrote deploy log", "path", cfg.Storage.DeployLog)
	return snapshot, nil
}

func deployRecord(s *lottery.Snapshot, now time.Time) ([]byte, error) {
	iface, err := json.Marshal(server.Interface())
	if err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Deployed: %s\n", now.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Pool address: %s\n", s.Address.Hex())
	fmt.Fprintf(&b, "Manager: %s\n", s.Manager.Hex())
	fmt.Fprintf(&b, "Entry fee: %s (%s wei)\n", lottery.FormatAmount(s.EntryFee), s.EntryFee.String())
	fmt.Fprintf(&b, "Interface: %s\n", iface)
	return []byte(b.String()), nil
}
