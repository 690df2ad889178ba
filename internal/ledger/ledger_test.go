package ledger

import (
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = common.HexToAddress("0xa1")
	bob   = common.HexToAddress("0xb0")
)

func funded(t *testing.T) *Ledger {
	t.Helper()
	l := New()
	require.NoError(t, l.Credit(alice, big.NewInt(100)))
	return l
}

func TestCredit(t *testing.T) {
	t.Parallel()
	l := New()
	assert.Zero(t, l.Balance(alice).Sign())

	require.NoError(t, l.Credit(alice, big.NewInt(5)))
	require.NoError(t, l.Credit(alice, big.NewInt(7)))
	assert.Equal(t, int64(12), l.Balance(alice).Int64())

	assert.ErrorIs(t, l.Credit(alice, nil), ErrInvalidAmount)
	assert.ErrorIs(t, l.Credit(alice, big.NewInt(-1)), ErrInvalidAmount)
}

func TestBalanceReturnsCopy(t *testing.T) {
	t.Parallel()
	l := funded(t)
	bal := l.Balance(alice)
	bal.SetInt64(0)
	assert.Equal(t, int64(100), l.Balance(alice).Int64())

	accounts := l.Accounts()
	accounts[alice].SetInt64(1)
	assert.Equal(t, int64(100), l.Balance(alice).Int64())
}

func TestUpdateCommitsOnSuccess(t *testing.T) {
	t.Parallel()
	l := funded(t)

	err := l.Update(func(tx *Tx) error {
		if err := tx.Transfer(alice, bob, big.NewInt(30)); err != nil {
			return err
		}
		assert.Equal(t, int64(70), tx.Balance(alice).Int64())
		assert.Equal(t, int64(30), tx.Balance(bob).Int64())
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, int64(70), l.Balance(alice).Int64())
	assert.Equal(t, int64(30), l.Balance(bob).Int64())
}

func TestUpdateRollsBackOnError(t *testing.T) {
	t.Parallel()
	l := funded(t)
	boom := errors.New("boom")

	err := l.Update(func(tx *Tx) error {
		require.NoError(t, tx.Transfer(alice, bob, big.NewInt(30)))
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.Equal(t, int64(100), l.Balance(alice).Int64())
	assert.Zero(t, l.Balance(bob).Sign())
}

func TestTransferErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		from   common.Address
		to     common.Address
		amount *big.Int
		reject bool
		want   error
	}{
		{name: "insufficient", from: alice, to: bob, amount: big.NewInt(101), want: ErrInsufficientFunds},
		{name: "empty sender", from: bob, to: alice, amount: big.NewInt(1), want: ErrInsufficientFunds},
		{name: "nil amount", from: alice, to: bob, amount: nil, want: ErrInvalidAmount},
		{name: "negative", from: alice, to: bob, amount: big.NewInt(-3), want: ErrInvalidAmount},
		{name: "rejecting recipient", from: alice, to: bob, amount: big.NewInt(1), reject: true, want: ErrTransferRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			l := funded(t)
			l.SetRejectFunds(bob, tt.reject)

			err := l.Update(func(tx *Tx) error {
				return tx.Transfer(tt.from, tt.to, tt.amount)
			})
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, int64(100), l.Balance(alice).Int64())
			assert.Zero(t, l.Balance(bob).Sign())
		})
	}
}

func TestSetRejectFundsToggle(t *testing.T) {
	t.Parallel()
	l := funded(t)

	l.SetRejectFunds(bob, true)
	l.SetRejectFunds(bob, false)

	require.NoError(t, l.Update(func(tx *Tx) error {
		return tx.Transfer(alice, bob, big.NewInt(1))
	}))
	assert.Equal(t, int64(1), l.Balance(bob).Int64())
}

func TestTransferToSelfAndZero(t *testing.T) {
	t.Parallel()
	l := funded(t)

	require.NoError(t, l.Update(func(tx *Tx) error {
		if err := tx.Transfer(alice, alice, big.NewInt(50)); err != nil {
			return err
		}
		if err := tx.Transfer(alice, bob, new(big.Int)); err != nil {
			return err
		}
		return nil
	}))
	assert.Equal(t, int64(100), l.Balance(alice).Int64())
	assert.Zero(t, l.Balance(bob).Sign())
}

func TestTouched(t *testing.T) {
	t.Parallel()
	l := funded(t)

	require.NoError(t, l.Update(func(tx *Tx) error {
		assert.Empty(t, tx.Touched())
		if err := tx.Transfer(alice, bob, big.NewInt(10)); err != nil {
			return err
		}
		touched := tx.Touched()
		assert.Len(t, touched, 2)
		assert.Equal(t, int64(90), touched[alice].Int64())
		assert.Equal(t, int64(10), touched[bob].Int64())
		return nil
	}))
}

func TestConcurrentTransfersConserveSupply(t *testing.T) {
	t.Parallel()
	l := New()
	require.NoError(t, l.Credit(alice, big.NewInt(1000)))
	require.NoError(t, l.Credit(bob, big.NewInt(1000)))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = l.Update(func(tx *Tx) error { return tx.Transfer(alice, bob, big.NewInt(7)) })
		}()
		go func() {
			defer wg.Done()
			_ = l.Update(func(tx *Tx) error { return tx.Transfer(bob, alice, big.NewInt(3)) })
		}()
	}
	wg.Wait()

	total := new(big.Int).Add(l.Balance(alice), l.Balance(bob))
	assert.Equal(t, int64(2000), total.Int64())
	assert.Equal(t, int64(1000-50*7+50*3), l.Balance(alice).Int64())
}
