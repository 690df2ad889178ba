// Package entropy supplies the block metadata a round is closed with.
//
// The seed derived from a block is weak: the party producing blocks picks
// the timestamp and difficulty, and with them the winner.
package entropy

import (
	"encoding/binary"
	"math/big"
	rand "math/rand/v2"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lox/poollottery/internal/lottery"
	"github.com/lox/poollottery/internal/randutil"
)

// Block is the host metadata visible to a pickWinner call.
type Block struct {
	Number     uint64
	Timestamp  time.Time
	Difficulty *big.Int
}

// Seed hashes the block metadata into a selection seed.
func (b Block) Seed() lottery.Seed {
	var num, ts [8]byte
	binary.BigEndian.PutUint64(num[:], b.Number)
	binary.BigEndian.PutUint64(ts[:], uint64(b.Timestamp.Unix()))

	difficulty := new(big.Int)
	if b.Difficulty != nil {
		difficulty = b.Difficulty
	}
	return crypto.Keccak256Hash(common.BigToHash(difficulty).Bytes(), ts[:], num[:])
}

// Source produces the block the next round closes in.
type Source interface {
	NextBlock() Block
}

// Chain is a simulated block producer: numbers increase by one, timestamps
// come from the clock and difficulty from a seeded stream.
type Chain struct {
	mu     sync.Mutex
	clock  quartz.Clock
	rng    *rand.Rand
	number uint64
}

// NewChain creates a chain whose difficulty stream is derived from seed.
func NewChain(clock quartz.Clock, seed int64) *Chain {
	return &Chain{
		clock: clock,
		rng:   randutil.New(seed),
	}
}

// NextBlock implements Source.
func (c *Chain) NextBlock() Block {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.number++
	return Block{
		Number:     c.number,
		Timestamp:  c.clock.Now("entropy", "block"),
		Difficulty: new(big.Int).SetUint64(c.rng.Uint64()),
	}
}

// Height returns the number of the last produced block.
func (c *Chain) Height() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.number
}

// Fixed always yields the same block.
type Fixed Block

// NextBlock implements Source.
func (f Fixed) NextBlock() Block {
	return Block(f)
}
