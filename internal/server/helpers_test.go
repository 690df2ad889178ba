package server

import (
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/lox/poollottery/internal/entropy"
	"github.com/lox/poollottery/internal/ledger"
	"github.com/lox/poollottery/internal/lottery"
	"github.com/lox/poollottery/internal/metrics"
)

var (
	testManager = common.HexToAddress("0x1000000000000000000000000000000000000001")
	testAlice   = common.HexToAddress("0x2000000000000000000000000000000000000002")
	testBob     = common.HexToAddress("0x3000000000000000000000000000000000000003")
	testFee     = big.NewInt(10_000_000_000_000_000)
)

// testLogger creates a logger that discards output for tests
func testLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}

type fixture struct {
	ledger  *ledger.Ledger
	pool    *lottery.Pool
	service *LotteryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	l := ledger.New()
	for _, addr := range []common.Address{testManager, testAlice, testBob} {
		require.NoError(t, l.Credit(addr, big.NewInt(1_000_000_000_000_000_000)))
	}

	pool, err := lottery.New(lottery.Config{Manager: testManager, EntryFee: testFee}, l)
	require.NoError(t, err)

	source := entropy.Fixed(entropy.Block{
		Number:     7,
		Timestamp:  time.Unix(1_520_000_000, 0),
		Difficulty: big.NewInt(131072),
	})

	return &fixture{
		ledger:  l,
		pool:    pool,
		service: NewLotteryService(pool, source, metrics.New(), testLogger()),
	}
}
