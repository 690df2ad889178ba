package lottery

import (
	"fmt"
	"io"
	"math/big"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/lox/poollottery/internal/ledger"
)

// Ledger is the value-transfer runtime a Pool keeps its escrow on.
type Ledger interface {
	Balance(addr Identity) *big.Int
	Update(fn func(tx *ledger.Tx) error) error
}

// Journal persists pool state together with the balances changed by the
// same operation. Commit runs inside the ledger transaction; an error
// aborts the whole operation.
type Journal interface {
	Commit(state *Snapshot, balances map[Identity]*big.Int) error
}

// Config fixes a pool's identity at creation.
type Config struct {
	Manager  Identity
	EntryFee *big.Int
	// Address of the escrow account. Derived from Manager when zero.
	Address Identity
}

// RoundResult describes a closed round.
type RoundResult struct {
	Round   uint64
	Winner  Identity
	Index   int
	Entries int
	Payout  *big.Int
}

// Pool is the lottery state machine. It is safe for concurrent use.
type Pool struct {
	mu sync.Mutex

	address    Identity
	manager    Identity
	entryFee   *big.Int
	players    []Identity
	lastWinner Identity
	round      uint64

	ledger  Ledger
	journal Journal
	logger  *log.Logger
}

// Option configures a Pool.
type Option func(*Pool)

// WithJournal persists every committed operation.
func WithJournal(j Journal) Option {
	return func(p *Pool) { p.journal = j }
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(p *Pool) { p.logger = logger.WithPrefix("pool") }
}

// New creates a pool with an empty registry. The escrow account must not
// hold any funds yet.
func New(cfg Config, l Ledger, opts ...Option) (*Pool, error) {
	p, err := newPool(cfg, l, opts)
	if err != nil {
		return nil, err
	}
	if err := p.audit(); err != nil {
		return nil, err
	}
	return p, nil
}

// Restore rebuilds a pool from a snapshot. The ledger must already hold the
// escrow balance the snapshot implies.
func Restore(s *Snapshot, l Ledger, opts ...Option) (*Pool, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil snapshot", ErrInvalidConfig)
	}
	p, err := newPool(Config{Manager: s.Manager, EntryFee: s.EntryFee, Address: s.Address}, l, opts)
	if err != nil {
		return nil, err
	}
	p.players = append([]Identity(nil), s.Players...)
	p.lastWinner = s.LastWinner
	p.round = s.Round
	if err := p.audit(); err != nil {
		return nil, err
	}
	return p, nil
}

func newPool(cfg Config, l Ledger, opts []Option) (*Pool, error) {
	if cfg.Manager == None {
		return nil, fmt.Errorf("%w: manager is required", ErrInvalidConfig)
	}
	if cfg.EntryFee == nil || cfg.EntryFee.Sign() <= 0 {
		return nil, fmt.Errorf("%w: entry fee must be positive", ErrInvalidConfig)
	}
	addr := cfg.Address
	if addr == None {
		addr = EscrowAddress(cfg.Manager)
	}
	if addr == cfg.Manager {
		return nil, fmt.Errorf("%w: escrow address equals manager", ErrInvalidConfig)
	}

	p := &Pool{
		address:  addr,
		manager:  cfg.Manager,
		entryFee: new(big.Int).Set(cfg.EntryFee),
		ledger:   l,
		logger:   log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Entry describes the registry right after a successful join.
type Entry struct {
	Player      Identity
	Entries     int
	PoolBalance *big.Int
}

// Join adds contributor to the current round. amount must equal the entry
// fee exactly; it is moved from contributor to the escrow account.
func (p *Pool) Join(contributor Identity, amount *big.Int) error {
	_, err := p.Enter(contributor, amount)
	return err
}

// Enter is Join, reporting the registry size and escrow balance the entry
// produced. Concurrent joins cannot leak into the result.
func (p *Pool) Enter(contributor Identity, amount *big.Int) (*Entry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.validateEntry(contributor, amount); err != nil {
		return nil, err
	}

	players := make([]Identity, len(p.players), len(p.players)+1)
	copy(players, p.players)
	players = append(players, contributor)

	err := p.ledger.Update(func(tx *ledger.Tx) error {
		if err := tx.Transfer(contributor, p.address, p.entryFee); err != nil {
			return err
		}
		return p.commit(tx, players, p.lastWinner, p.round)
	})
	if err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}

	p.players = players
	p.logger.Debug("Player joined", "player", contributor.Hex(), "entries", len(players))
	return &Entry{
		Player:      contributor,
		Entries:     len(players),
		PoolBalance: new(big.Int).Mul(p.entryFee, big.NewInt(int64(len(players)))),
	}, nil
}

// PickWinner closes the current round: it selects a winner from seed, pays
// the whole escrow balance to them, records them as the last winner and
// clears the registry. Only the manager may call it.
func (p *Pool) PickWinner(caller Identity, seed Seed) (*RoundResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.requireManager(caller); err != nil {
		return nil, err
	}
	if len(p.players) == 0 {
		return nil, ErrNoParticipants
	}

	idx, err := SelectWinner(p.players, seed)
	if err != nil {
		return nil, err
	}
	winner := p.players[idx]
	round := p.round + 1

	var payout *big.Int
	err = p.ledger.Update(func(tx *ledger.Tx) error {
		payout = tx.Balance(p.address)
		if err := p.payout(tx, winner, payout); err != nil {
			return err
		}
		return p.commit(tx, nil, winner, round)
	})
	if err != nil {
		return nil, fmt.Errorf("pick winner: %w", err)
	}

	result := &RoundResult{
		Round:   round,
		Winner:  winner,
		Index:   idx,
		Entries: len(p.players),
		Payout:  payout,
	}

	p.lastWinner = winner
	p.players = nil
	p.round = round

	p.logger.Info("Round closed",
		"round", result.Round,
		"winner", winner.Hex(),
		"index", idx,
		"entries", result.Entries,
		"payout", FormatAmount(payout))
	return result, nil
}

// Players returns the current registry in join order. It is never nil.
func (p *Pool) Players() []Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Identity, len(p.players))
	copy(out, p.players)
	return out
}

// Manager returns the identity allowed to close rounds.
func (p *Pool) Manager() Identity {
	return p.manager
}

// LastWinner returns the most recent winner, or None before the first
// completed round.
func (p *Pool) LastWinner() Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastWinner
}

// EntryFee returns a copy of the fixed ante.
func (p *Pool) EntryFee() *big.Int {
	return new(big.Int).Set(p.entryFee)
}

// Address returns the escrow account.
func (p *Pool) Address() Identity {
	return p.address
}

// Balance returns the escrow balance.
func (p *Pool) Balance() *big.Int {
	return p.ledger.Balance(p.address)
}

// Snapshot returns a consistent copy of the pool state.
func (p *Pool) Snapshot() *Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked(p.players, p.lastWinner, p.round)
}

// Audit checks that the escrow balance equals entries times the entry fee.
func (p *Pool) Audit() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.audit()
}

func (p *Pool) validateEntry(contributor Identity, amount *big.Int) error {
	if amount == nil || amount.Cmp(p.entryFee) != 0 {
		return fmt.Errorf("%w: got %s wei, want %s wei", ErrInvalidContribution, amountString(amount), p.entryFee)
	}
	if contributor == p.address {
		return fmt.Errorf("%w: escrow account cannot join", ErrInvalidContribution)
	}
	return nil
}

func (p *Pool) requireManager(caller Identity) error {
	if caller != p.manager {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller.Hex())
	}
	return nil
}

func (p *Pool) payout(tx *ledger.Tx, recipient Identity, amount *big.Int) error {
	if err := tx.Transfer(p.address, recipient, amount); err != nil {
		return fmt.Errorf("%w: %w", ErrTransferRejected, err)
	}
	return nil
}

func (p *Pool) commit(tx *ledger.Tx, players []Identity, lastWinner Identity, round uint64) error {
	if p.journal == nil {
		return nil
	}
	if err := p.journal.Commit(p.snapshotLocked(players, lastWinner, round), tx.Touched()); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	return nil
}

func (p *Pool) snapshotLocked(players []Identity, lastWinner Identity, round uint64) *Snapshot {
	return &Snapshot{
		Address:    p.address,
		Manager:    p.manager,
		EntryFee:   new(big.Int).Set(p.entryFee),
		Players:    append([]Identity{}, players...),
		LastWinner: lastWinner,
		Round:      round,
	}
}

func (p *Pool) audit() error {
	want := new(big.Int).Mul(p.entryFee, big.NewInt(int64(len(p.players))))
	if got := p.ledger.Balance(p.address); got.Cmp(want) != 0 {
		return fmt.Errorf("%w: escrow %s holds %s wei, want %s wei for %d entries",
			ErrCorruptState, p.address.Hex(), got, want, len(p.players))
	}
	return nil
}

func amountString(v *big.Int) string {
	if v == nil {
		return "<nil>"
	}
	return v.String()
}
