package server

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lox/poollottery/internal/auth"
	"github.com/lox/poollottery/internal/ledger"
	"github.com/lox/poollottery/internal/lottery"
)

func TestErrorCodeRoundTrip(t *testing.T) {
	t.Parallel()

	sentinels := []error{
		lottery.ErrInvalidContribution,
		lottery.ErrUnauthorized,
		lottery.ErrNoParticipants,
		lottery.ErrTransferRejected,
		ledger.ErrInsufficientFunds,
		ErrNotAuthenticated,
		auth.ErrInvalidCredentials,
		auth.ErrUnavailable,
		ErrInvalidMessage,
	}

	for _, sentinel := range sentinels {
		t.Run(sentinel.Error(), func(t *testing.T) {
			wrapped := fmt.Errorf("context: %w", sentinel)
			code := ErrorCode(wrapped)
			assert.NotEqual(t, CodeInternal, code)

			back := ErrorFromData(ErrorData{Code: code, Message: wrapped.Error()})
			assert.ErrorIs(t, back, sentinel)
		})
	}
}

func TestErrorCodeUnknown(t *testing.T) {
	t.Parallel()

	assert.Equal(t, CodeInternal, ErrorCode(errors.New("disk on fire")))

	err := ErrorFromData(ErrorData{Code: "something_new", Message: "details"})
	assert.ErrorIs(t, err, ErrRemote)
	assert.Contains(t, err.Error(), "something_new")
}

func TestTransferRejectedKeepsLedgerCause(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := f.service.Join(testAlice, "0.01 ether")
	assert.NoError(t, err)
	f.ledger.SetRejectFunds(testAlice, true)

	_, err = f.service.PickWinner(testManager)
	assert.Equal(t, CodeTransferRejected, ErrorCode(err))
	assert.ErrorIs(t, err, ledger.ErrTransferRejected)
}
