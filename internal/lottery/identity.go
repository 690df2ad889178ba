package lottery

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Identity is an account address on the host ledger.
type Identity = common.Address

// Seed is the host-supplied entropy a round is closed with.
type Seed = common.Hash

// None is the identity LastWinner reports before the first completed round.
var None Identity

// EscrowAddress derives the address of the account that holds a pool's
// funds, the same way a contract created by manager as its first
// transaction would be addressed.
func EscrowAddress(manager Identity) Identity {
	return crypto.CreateAddress(manager, 0)
}
