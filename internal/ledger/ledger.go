// Package ledger is an in-memory account ledger with all-or-nothing value
// transfers. It stands in for the execution runtime a pool is hosted by.
package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrInsufficientFunds indicates the sender cannot cover the transfer.
	ErrInsufficientFunds = errors.New("ledger: insufficient funds")

	// ErrTransferRejected indicates the recipient refuses incoming value.
	ErrTransferRejected = errors.New("ledger: recipient rejects incoming funds")

	// ErrInvalidAmount indicates a nil or negative amount.
	ErrInvalidAmount = errors.New("ledger: invalid amount")
)

// Ledger tracks account balances in wei.
type Ledger struct {
	mu       sync.RWMutex
	balances map[common.Address]*big.Int
	rejects  map[common.Address]bool
}

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		balances: make(map[common.Address]*big.Int),
		rejects:  make(map[common.Address]bool),
	}
}

// Credit mints amount into addr. It is used for genesis allocations and
// when restoring balances from storage.
func (l *Ledger) Credit(addr common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[addr] = new(big.Int).Add(l.balanceLocked(addr), amount)
	return nil
}

// SetRejectFunds marks addr as an account that refuses incoming transfers.
func (l *Ledger) SetRejectFunds(addr common.Address, reject bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if reject {
		l.rejects[addr] = true
	} else {
		delete(l.rejects, addr)
	}
}

// Balance returns a copy of the balance held by addr.
func (l *Ledger) Balance(addr common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return new(big.Int).Set(l.balanceLocked(addr))
}

// Accounts returns a copy of every known balance.
func (l *Ledger) Accounts() map[common.Address]*big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make(map[common.Address]*big.Int, len(l.balances))
	for addr, bal := range l.balances {
		out[addr] = new(big.Int).Set(bal)
	}
	return out
}

// Update runs fn as a single transaction. Transfers made through tx are
// applied only when fn returns nil; otherwise the ledger is left untouched.
// Transactions are serialized.
func (l *Ledger) Update(fn func(tx *Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &Tx{ledger: l, staged: make(map[common.Address]*big.Int)}
	if err := fn(tx); err != nil {
		return err
	}
	for addr, bal := range tx.staged {
		l.balances[addr] = bal
	}
	return nil
}

func (l *Ledger) balanceLocked(addr common.Address) *big.Int {
	if bal, ok := l.balances[addr]; ok {
		return bal
	}
	return new(big.Int)
}

// Tx stages transfers for Ledger.Update. It must not be used after the
// callback returns.
type Tx struct {
	ledger *Ledger
	staged map[common.Address]*big.Int
}

// Balance returns addr's balance including transfers staged so far.
func (tx *Tx) Balance(addr common.Address) *big.Int {
	if bal, ok := tx.staged[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return new(big.Int).Set(tx.ledger.balanceLocked(addr))
}

// Transfer moves amount from one account to another.
func (tx *Tx) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if tx.ledger.rejects[to] {
		return fmt.Errorf("%w: %s", ErrTransferRejected, to.Hex())
	}

	fromBal := tx.Balance(from)
	if fromBal.Cmp(amount) < 0 {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientFunds, from.Hex(), fromBal, amount)
	}
	if from == to {
		return nil
	}

	tx.staged[from] = fromBal.Sub(fromBal, amount)
	tx.staged[to] = new(big.Int).Add(tx.Balance(to), amount)
	return nil
}

// Touched returns the staged balance of every account a transfer touched.
func (tx *Tx) Touched() map[common.Address]*big.Int {
	out := make(map[common.Address]*big.Int, len(tx.staged))
	for addr, bal := range tx.staged {
		out[addr] = new(big.Int).Set(bal)
	}
	return out
}
