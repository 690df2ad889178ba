package server

import (
	"fmt"
	"math/big"

	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"

	"github.com/lox/poollottery/internal/entropy"
	"github.com/lox/poollottery/internal/lottery"
	"github.com/lox/poollottery/internal/metrics"
	"github.com/lox/poollottery/internal/roundid"
)

// LotteryService exposes a Pool to connections. It supplies the block a
// round closes in, records metrics and names rounds.
type LotteryService struct {
	pool    *lottery.Pool
	source  entropy.Source
	metrics *metrics.Collector
	ids     roundid.Generator
	logger  *log.Logger
}

// NewLotteryService creates a service for pool. Blocks for pickWinner are
// taken from source.
func NewLotteryService(pool *lottery.Pool, source entropy.Source, m *metrics.Collector, logger *log.Logger) *LotteryService {
	s := &LotteryService{
		pool:    pool,
		source:  source,
		metrics: m,
		logger:  logger.WithPrefix("lottery"),
	}
	s.metrics.SetRound(len(pool.Players()), pool.Balance())
	return s
}

// Metrics returns the service's collector.
func (s *LotteryService) Metrics() *metrics.Collector {
	return s.metrics
}

// Join enters contributor into the current round with amount.
func (s *LotteryService) Join(contributor common.Address, amount string) (*JoinedData, error) {
	wei, err := lottery.ParseAmount(amount)
	if err != nil {
		s.metrics.Rejected(CodeInvalidContribution)
		return nil, fmt.Errorf("%w: %v", lottery.ErrInvalidContribution, err)
	}
	entry, err := s.pool.Enter(contributor, wei)
	if err != nil {
		s.metrics.Rejected(ErrorCode(err))
		s.logger.Debug("Join rejected", "player", contributor.Hex(), "amount", wei, "error", err)
		return nil, err
	}
	s.metrics.Joined(entry.Entries, entry.PoolBalance)

	return &JoinedData{
		Player:      entry.Player,
		Entries:     entry.Entries,
		PoolBalance: entry.PoolBalance.String(),
	}, nil
}

// PickWinner closes the current round on behalf of caller.
func (s *LotteryService) PickWinner(caller common.Address) (*RoundClosedData, error) {
	block := s.source.NextBlock()

	result, err := s.pool.PickWinner(caller, block.Seed())
	if err != nil {
		s.metrics.Rejected(ErrorCode(err))
		s.logger.Debug("Pick winner rejected", "caller", caller.Hex(), "error", err)
		return nil, err
	}
	s.metrics.RoundClosed(result.Payout)

	id, err := s.ids.Generate()
	if err != nil {
		// The round is closed either way.
		s.logger.Warn("Failed to generate round id", "error", err)
	}

	s.logger.Info("Winner paid",
		"round_id", id,
		"block", block.Number,
		"winner", result.Winner.Hex(),
		"payout", lottery.FormatAmount(result.Payout))

	return &RoundClosedData{
		RoundID: id,
		Round:   result.Round,
		Winner:  result.Winner,
		Index:   result.Index,
		Entries: result.Entries,
		Payout:  result.Payout.String(),
		Block:   block.Number,
	}, nil
}

// Players returns the current registry in join order.
func (s *LotteryService) Players() []common.Address {
	return s.pool.Players()
}

// Manager returns the pool manager.
func (s *LotteryService) Manager() common.Address {
	return s.pool.Manager()
}

// LastWinner returns the most recent winner or the zero address.
func (s *LotteryService) LastWinner() common.Address {
	return s.pool.LastWinner()
}

// State returns a consistent view of the pool.
func (s *LotteryService) State() StateData {
	snap := s.pool.Snapshot()
	return StateData{
		Address:     snap.Address,
		Manager:     snap.Manager,
		EntryFee:    snap.EntryFee.String(),
		Players:     snap.Players,
		PoolBalance: snap.PoolBalance().String(),
		LastWinner:  snap.LastWinner,
		Round:       snap.Round,
	}
}

// EscrowBalance returns the balance of the pool escrow account.
func (s *LotteryService) EscrowBalance() *big.Int {
	return s.pool.Balance()
}
