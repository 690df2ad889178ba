package lottery

import "math/big"

// Snapshot is the persisted form of a Pool.
type Snapshot struct {
	Address    Identity
	Manager    Identity
	EntryFee   *big.Int
	Players    []Identity
	LastWinner Identity
	Round      uint64
}

// PoolBalance is the escrow balance the snapshot implies.
func (s *Snapshot) PoolBalance() *big.Int {
	return new(big.Int).Mul(s.EntryFee, big.NewInt(int64(len(s.Players))))
}
