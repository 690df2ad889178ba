package main

import (
	"context"
	"math/big"
	"testing"

	"github.com/coder/quartz"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunSimulationConservesValue(t *testing.T) {
	fee := big.NewInt(10_000_000_000_000_000)
	opts := simulationOptions{
		Players:  5,
		Entries:  2,
		Rounds:   4,
		EntryFee: fee,
		Seed:     42,
		Clock:    quartz.NewMock(t),
	}

	report, err := runSimulation(context.Background(), opts, testLogger())
	require.NoError(t, err)

	assert.Equal(t, int64(42), report.Seed)
	require.Len(t, report.Rounds, 4)

	stats := report.Stats
	assert.Equal(t, 4, stats.Rounds)
	assert.Len(t, stats.Accounts(), 5)
	wins := 0
	for _, addr := range stats.Accounts() {
		wins += stats.Wins(addr)
		assert.InDelta(t, 0.8, stats.Expected(addr), 1e-9)
	}
	assert.Equal(t, 4, wins)
	assert.InDelta(t, 10.0, stats.MeanEntries(), 1e-9)
	assert.Zero(t, stats.StdDev())
	lo, hi := stats.ConfidenceInterval95()
	assert.InDelta(t, 10.0, lo, 1e-9)
	assert.InDelta(t, 10.0, hi, 1e-9)

	entryPot := new(big.Int).Mul(fee, big.NewInt(10))
	for i, r := range report.Rounds {
		assert.Equal(t, uint64(i+1), r.Round)
		assert.Equal(t, 10, r.Entries)
		assert.Zero(t, r.Payout.Cmp(entryPot))
	}

	total := new(big.Int)
	for _, bal := range report.Balances {
		total.Add(total, bal)
	}
	start := new(big.Int).Mul(fee, big.NewInt(int64(opts.Players*opts.Entries*opts.Rounds)))
	assert.Zero(t, total.Cmp(start))
}

func TestRunSimulationRepeatsWithSeed(t *testing.T) {
	run := func() []common.Address {
		report, err := runSimulation(context.Background(), simulationOptions{
			Players:  6,
			Entries:  3,
			Rounds:   8,
			EntryFee: big.NewInt(1_000),
			Seed:     7,
			Clock:    quartz.NewMock(t),
		}, testLogger())
		require.NoError(t, err)

		winners := make([]common.Address, len(report.Rounds))
		for i, r := range report.Rounds {
			winners[i] = r.Winner
		}
		return winners
	}

	assert.Equal(t, run(), run())
}

func TestRunSimulationConcurrentWithoutSeed(t *testing.T) {
	report, err := runSimulation(context.Background(), simulationOptions{
		Players:  6,
		Entries:  3,
		Rounds:   3,
		EntryFee: big.NewInt(1_000),
		Clock:    quartz.NewMock(t),
	}, testLogger())
	require.NoError(t, err)
	assert.Len(t, report.Rounds, 3)
	assert.Equal(t, 3, report.Stats.Rounds)
}

func TestRunSimulationRejectsBadOptions(t *testing.T) {
	fee := big.NewInt(1)
	clock := quartz.NewMock(t)

	for name, opts := range map[string]simulationOptions{
		"no players": {Players: 0, Entries: 1, Rounds: 1, EntryFee: fee, Clock: clock},
		"no entries": {Players: 1, Entries: 0, Rounds: 1, EntryFee: fee, Clock: clock},
		"zero fee":   {Players: 1, Entries: 1, Rounds: 1, EntryFee: big.NewInt(0), Clock: clock},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := runSimulation(context.Background(), opts, testLogger())
			require.Error(t, err)
		})
	}
}

func TestRunSimulationStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runSimulation(ctx, simulationOptions{
		Players:  3,
		Entries:  1,
		Rounds:   2,
		EntryFee: big.NewInt(1),
		Seed:     1,
		Clock:    quartz.NewMock(t),
	}, testLogger())
	require.ErrorIs(t, err, context.Canceled)
}

func TestSimulatedAccountsAreDistinct(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		addr := simulatedAccount(i).Hex()
		require.False(t, seen[addr], addr)
		seen[addr] = true
	}
}
