package main

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"

	"github.com/lox/poollottery/internal/ledger"
	"github.com/lox/poollottery/internal/lottery"
	"github.com/lox/poollottery/internal/server"
	"github.com/lox/poollottery/internal/store"
)

// ConfigFlags locate and override the HCL configuration.
type ConfigFlags struct {
	Config string `short:"c" default:"poollottery.hcl" help:"Path to HCL configuration file"`
	DB     string `help:"Database path (overrides config)"`
}

func (f ConfigFlags) load() (*server.Config, error) {
	cfg, err := server.LoadConfig(f.Config)
	if err != nil {
		return nil, err
	}
	if f.DB != "" {
		cfg.Storage.Path = f.DB
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openPool restores the deployed pool and its ledger from the store.
// Commits go back to the same store, which the caller must close.
func openPool(cfg *server.Config, logger *log.Logger) (*lottery.Pool, *store.Store, error) {
	st, err := store.Open(cfg.Storage.Path)
	if err != nil {
		return nil, nil, err
	}

	state, balances, err := st.Load()
	if err != nil {
		_ = st.Close()
		if errors.Is(err, store.ErrNotDeployed) {
			return nil, nil, fmt.Errorf("%w: run `poollottery deploy` first", err)
		}
		return nil, nil, err
	}

	l := ledger.New()
	for addr, bal := range balances {
		if err := l.Credit(addr, bal); err != nil {
			_ = st.Close()
			return nil, nil, fmt.Errorf("restore balance of %s: %w", addr.Hex(), err)
		}
	}
	for _, acct := range cfg.Accounts {
		if acct.RejectFunds {
			l.SetRejectFunds(common.HexToAddress(acct.Address), true)
		}
	}

	pool, err := lottery.Restore(state, l, lottery.WithJournal(st), lottery.WithLogger(logger))
	if err != nil {
		_ = st.Close()
		return nil, nil, fmt.Errorf("restore pool: %w", err)
	}
	return pool, st, nil
}
