package lottery

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SelectWinner derives the index of the winning entry from seed.
//
// The value hashed is seed, the entry count and the packed registry, so the
// same seed over a different registry yields an unrelated index. The draw is
// only as unpredictable as seed: a block producer that controls the seed
// controls the winner.
func SelectWinner(players []Identity, seed Seed) (int, error) {
	if len(players) == 0 {
		return 0, ErrNoParticipants
	}

	var count [8]byte
	binary.BigEndian.PutUint64(count[:], uint64(len(players)))

	packed := make([]byte, 0, len(players)*common.AddressLength)
	for _, p := range players {
		packed = append(packed, p.Bytes()...)
	}

	n := new(big.Int).SetBytes(crypto.Keccak256(seed.Bytes(), count[:], packed))
	n.Mod(n, big.NewInt(int64(len(players))))
	return int(n.Int64()), nil
}
