// Package lottery implements the pooled-stake lottery state machine.
//
// Participants join a round by contributing exactly the entry fee to the
// pool's escrow account. The manager closes the round with PickWinner, which
// selects one participant from a host-supplied entropy seed, pays the whole
// escrow balance to that participant, records them as the last winner and
// clears the registry for the next round.
//
// Every public operation on a Pool is serialized by a single mutex and runs
// inside one ledger transaction. Pool state is committed only after the
// ledger transaction (and the optional Journal write) succeeds, so a failed
// operation leaves players, balances and the last winner untouched.
//
// Winner selection is deliberately simple: keccak256 over the seed and the
// current registry, reduced modulo the number of entries. Seeds derived from
// block metadata can be influenced by whoever produces the block, so the
// draw is not fair against a block producer.
package lottery
