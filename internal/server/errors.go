package server

import (
	"errors"
	"fmt"

	"github.com/lox/poollottery/internal/auth"
	"github.com/lox/poollottery/internal/ledger"
	"github.com/lox/poollottery/internal/lottery"
)

// Error codes carried in ErrorData.Code.
const (
	CodeInvalidContribution = "invalid_contribution"
	CodeUnauthorized        = "unauthorized"
	CodeNoParticipants      = "no_participants"
	CodeTransferRejected    = "transfer_rejected"
	CodeInsufficientFunds   = "insufficient_funds"
	CodeNotAuthenticated    = "not_authenticated"
	CodeInvalidCredentials  = "invalid_credentials"
	CodeAuthUnavailable     = "auth_unavailable"
	CodeInvalidMessage      = "invalid_message"
	CodeUnknownMessageType  = "unknown_message_type"
	CodeInternal            = "internal"
)

var (
	// ErrNotAuthenticated is returned for operations that need an identity
	// on a connection that has not authenticated.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrInvalidMessage is returned for payloads that cannot be decoded.
	ErrInvalidMessage = errors.New("invalid message")

	// ErrRemote wraps error codes with no local sentinel.
	ErrRemote = errors.New("server error")
)

// ErrorCode maps err to the code sent to clients.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, lottery.ErrInvalidContribution):
		return CodeInvalidContribution
	case errors.Is(err, lottery.ErrUnauthorized):
		return CodeUnauthorized
	case errors.Is(err, lottery.ErrNoParticipants):
		return CodeNoParticipants
	case errors.Is(err, lottery.ErrTransferRejected), errors.Is(err, ledger.ErrTransferRejected):
		return CodeTransferRejected
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return CodeInsufficientFunds
	case errors.Is(err, ErrNotAuthenticated):
		return CodeNotAuthenticated
	case errors.Is(err, auth.ErrInvalidCredentials):
		return CodeInvalidCredentials
	case errors.Is(err, auth.ErrUnavailable):
		return CodeAuthUnavailable
	case errors.Is(err, ErrInvalidMessage):
		return CodeInvalidMessage
	default:
		return CodeInternal
	}
}

// ErrorFromData turns an error message received from the server back into
// an error matching the original sentinel.
func ErrorFromData(data ErrorData) error {
	var sentinel error
	switch data.Code {
	case CodeInvalidContribution:
		sentinel = lottery.ErrInvalidContribution
	case CodeUnauthorized:
		sentinel = lottery.ErrUnauthorized
	case CodeNoParticipants:
		sentinel = lottery.ErrNoParticipants
	case CodeTransferRejected:
		sentinel = lottery.ErrTransferRejected
	case CodeInsufficientFunds:
		sentinel = ledger.ErrInsufficientFunds
	case CodeNotAuthenticated:
		sentinel = ErrNotAuthenticated
	case CodeInvalidCredentials:
		sentinel = auth.ErrInvalidCredentials
	case CodeAuthUnavailable:
		sentinel = auth.ErrUnavailable
	case CodeInvalidMessage:
		sentinel = ErrInvalidMessage
	default:
		return fmt.Errorf("%w: %s: %s", ErrRemote, data.Code, data.Message)
	}
	return fmt.Errorf("%w: %s", sentinel, data.Message)
}
