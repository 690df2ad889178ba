package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/sync/errgroup"

	"github.com/lox/poollottery/cmd/poollottery/shared"
	"github.com/lox/poollottery/internal/entropy"
	"github.com/lox/poollottery/internal/ledger"
	"github.com/lox/poollottery/internal/lottery"
	"github.com/lox/poollottery/internal/randutil"
	"github.com/lox/poollottery/internal/statistics"
)

// SimulateCmd plays rounds against an in-memory pool
type SimulateCmd struct {
	Players  int    `short:"n" default:"8" help:"Number of simulated accounts"`
	Entries  int    `short:"e" default:"1" help:"Entries per account per round"`
	Rounds   int    `short:"r" default:"10" help:"Rounds to play"`
	EntryFee string `short:"f" default:"0.01 ether" help:"Entry fee"`
	Seed     int64  `help:"Entropy seed (0 for random). A fixed seed also joins accounts in order, so the whole run repeats."`
	Debug    bool   `help:"Enable debug logging"`
}

type simulationOptions struct {
	Players  int
	Entries  int
	Rounds   int
	EntryFee *big.Int
	Seed     int64
	Clock    quartz.Clock
}

type simulationReport struct {
	Seed     int64
	Manager  common.Address
	Rounds   []*lottery.RoundResult
	Stats    *statistics.Statistics
	Balances map[common.Address]*big.Int
}

func (c *SimulateCmd) Run() error {
	logger := shared.SetupLogger(shared.DebugLevel(c.Debug, "info"))

	fee, err := lottery.ParseAmount(c.EntryFee)
	if err != nil {
		return fmt.Errorf("entry fee: %w", err)
	}

	ctx := shared.SetupSignalHandler(logger)
	report, err := runSimulation(ctx, simulationOptions{
		Players:  c.Players,
		Entries:  c.Entries,
		Rounds:   c.Rounds,
		EntryFee: fee,
		Seed:     c.Seed,
		Clock:    quartz.NewReal(),
	}, logger)
	if err != nil {
		return err
	}

	stats := report.Stats
	fmt.Printf("Seed %d, %d rounds, manager %s\n", report.Seed, len(report.Rounds), report.Manager.Hex())
	for _, addr := range stats.Accounts() {
		fmt.Printf("%s  wins %-3d expected %6.2f  balance %s\n",
			addr.Hex(), stats.Wins(addr), stats.Expected(addr), lottery.FormatAmount(report.Balances[addr]))
	}
	fmt.Printf("Chi-square %.3f with %d degrees of freedom\n", stats.ChiSquare(), stats.DegreesOfFreedom())
	lo, hi := stats.ConfidenceInterval95()
	fmt.Printf("Entries per round %.2f ± %.2f (95%% CI %.2f to %.2f)\n", stats.MeanEntries(), stats.StdDev(), lo, hi)
	return nil
}

// simulatedAccount derives a stable address for account i.
func simulatedAccount(i int) common.Address {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(i))
	return common.BytesToAddress(crypto.Keccak256([]byte("poollottery-sim"), b[:]))
}

// runSimulation plays rounds of concurrent joins followed by a draw and
// audits the pool after every step.
func runSimulation(ctx context.Context, opts simulationOptions, logger *log.Logger) (*simulationReport, error) {
	if opts.Players < 1 {
		return nil, fmt.Errorf("players must be positive")
	}
	if opts.Entries < 1 {
		return nil, fmt.Errorf("entries must be positive")
	}
	if opts.EntryFee == nil || opts.EntryFee.Sign() <= 0 {
		return nil, fmt.Errorf("entry fee must be positive")
	}

	seed, configured := randutil.Resolve(opts.Seed, opts.Clock)
	logger.Debug("Simulation seed", "seed", seed, "configured", configured)

	manager := simulatedAccount(0)
	players := make([]common.Address, opts.Players)
	need := new(big.Int).Mul(opts.EntryFee, big.NewInt(int64(opts.Entries*opts.Rounds)))

	l := ledger.New()
	for i := range players {
		players[i] = simulatedAccount(i + 1)
		if err := l.Credit(players[i], need); err != nil {
			return nil, err
		}
	}

	pool, err := lottery.New(lottery.Config{Manager: manager, EntryFee: opts.EntryFee}, l, lottery.WithLogger(logger))
	if err != nil {
		return nil, err
	}
	chain := entropy.NewChain(opts.Clock, seed)

	report := &simulationReport{
		Seed:     seed,
		Manager:  manager,
		Stats:    statistics.New(),
		Balances: make(map[common.Address]*big.Int),
	}

	join := func(ctx context.Context, player common.Address) error {
		for e := 0; e < opts.Entries; e++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := pool.Join(player, opts.EntryFee); err != nil {
				return fmt.Errorf("join %s: %w", player.Hex(), err)
			}
		}
		return nil
	}

	for round := 0; round < opts.Rounds; round++ {
		// The draw hashes the registry, so a seeded run needs a fixed join
		// order to repeat.
		if configured {
			for _, player := range players {
				if err := join(ctx, player); err != nil {
					return nil, err
				}
			}
		} else {
			g, gctx := errgroup.WithContext(ctx)
			for _, player := range players {
				g.Go(func() error { return join(gctx, player) })
			}
			if err := g.Wait(); err != nil {
				return nil, err
			}
		}
		if err := pool.Audit(); err != nil {
			return nil, fmt.Errorf("round %d after joins: %w", round+1, err)
		}

		entries := pool.Players()
		block := chain.NextBlock()
		result, err := pool.PickWinner(manager, block.Seed())
		if err != nil {
			return nil, err
		}
		if err := pool.Audit(); err != nil {
			return nil, fmt.Errorf("round %d after payout: %w", round+1, err)
		}
		report.Rounds = append(report.Rounds, result)
		report.Stats.Add(entries, result.Winner)
	}

	for _, player := range players {
		report.Balances[player] = l.Balance(player)
	}
	return report, nil
}
