package lottery

import "errors"

var (
	// ErrInvalidContribution is returned by Join when the amount is not
	// exactly the entry fee.
	ErrInvalidContribution = errors.New("lottery: contribution must equal the entry fee")

	// ErrUnauthorized is returned when a manager-only operation is called by
	// anyone else.
	ErrUnauthorized = errors.New("lottery: caller is not the manager")

	// ErrNoParticipants is returned when a round is closed with nobody in it.
	ErrNoParticipants = errors.New("lottery: no participants in the current round")

	// ErrTransferRejected is returned when the payout transfer is refused by
	// the recipient or the ledger.
	ErrTransferRejected = errors.New("lottery: payout transfer rejected")

	// ErrInvalidConfig is returned by New and Restore for unusable settings.
	ErrInvalidConfig = errors.New("lottery: invalid pool configuration")

	// ErrCorruptState is returned when the escrow balance does not match the
	// registry.
	ErrCorruptState = errors.New("lottery: escrow balance does not match registry")
)
