package tui

import (
	"errors"
	"io"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/poollottery/internal/server"
)

var (
	manager = common.HexToAddress("0x1000000000000000000000000000000000000001")
	alice   = common.HexToAddress("0x2000000000000000000000000000000000000002")
	bob     = common.HexToAddress("0x3000000000000000000000000000000000000003")
	escrow  = common.HexToAddress("0x4000000000000000000000000000000000000004")
)

func testModel(fetch Fetcher) *Model {
	DisableColor()
	m := NewModel(fetch, log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel}))
	m.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return m
}

func state() server.StateData {
	return server.StateData{
		Address:     escrow,
		Manager:     manager,
		EntryFee:    "10000000000000000",
		Players:     []common.Address{alice},
		PoolBalance: "10000000000000000",
	}
}

func TestViewBeforeLoad(t *testing.T) {
	m := testModel(nil)
	assert.Contains(t, m.View(), "Loading pool state")

	m.Update(ErrMsg{Err: errors.New("connection refused")})
	assert.Contains(t, m.View(), "connection refused")
	assert.Contains(t, m.View(), "retry")
}

func TestStateRendersHeader(t *testing.T) {
	m := testModel(nil)
	m.Update(StateMsg{State: state()})

	view := m.View()
	assert.Contains(t, view, escrow.Hex())
	assert.Contains(t, view, manager.Hex())
	assert.Contains(t, view, alice.Hex())
	assert.Contains(t, view, "0.01 ether")
	assert.Contains(t, view, "none")
}

func TestPlayerJoinedAppends(t *testing.T) {
	m := testModel(nil)
	m.Update(StateMsg{State: state()})
	m.Update(PlayerJoinedMsg{Joined: server.JoinedData{Player: bob, Entries: 2, PoolBalance: "20000000000000000"}})

	require.NotNil(t, m.State())
	assert.Equal(t, []common.Address{alice, bob}, m.State().Players)
	assert.Equal(t, "20000000000000000", m.State().PoolBalance)
	require.Len(t, m.Log(), 1)
	assert.Contains(t, m.Log()[0], "03:04:05")
	assert.Contains(t, m.Log()[0], bob.Hex()+" joined")
	assert.Contains(t, m.View(), "0.02 ether")
}

func TestRoundClosedClearsPlayers(t *testing.T) {
	m := testModel(nil)
	m.Update(StateMsg{State: state()})
	m.Update(RoundClosedMsg{Round: server.RoundClosedData{
		Round:   1,
		Winner:  alice,
		Entries: 1,
		Payout:  "10000000000000000",
	}})

	s := m.State()
	require.NotNil(t, s)
	assert.Empty(t, s.Players)
	assert.Equal(t, "0", s.PoolBalance)
	assert.Equal(t, alice, s.LastWinner)
	assert.Equal(t, uint64(1), s.Round)
	require.Len(t, m.Log(), 1)
	assert.Contains(t, m.Log()[0], "Round 1 won by "+alice.Hex())
}

func TestEventsBeforeStateOnlyLog(t *testing.T) {
	m := testModel(nil)
	m.Update(PlayerJoinedMsg{Joined: server.JoinedData{Player: bob, Entries: 1, PoolBalance: "1"}})

	assert.Nil(t, m.State())
	assert.Len(t, m.Log(), 1)
}

func TestLogIsBounded(t *testing.T) {
	m := testModel(nil)
	for i := 0; i < maxLogEntries+25; i++ {
		m.Update(ErrMsg{Err: errors.New("boom")})
	}
	assert.Len(t, m.Log(), maxLogEntries)
}

func TestRefreshKeyFetches(t *testing.T) {
	calls := 0
	m := testModel(func() (*server.StateData, error) {
		calls++
		s := state()
		return &s, nil
	})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, 1, calls)
	require.IsType(t, StateMsg{}, msg)

	m.Update(msg)
	assert.Equal(t, manager, m.State().Manager)
}

func TestRefreshFailureBecomesErrMsg(t *testing.T) {
	m := testModel(func() (*server.StateData, error) {
		return nil, errors.New("offline")
	})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	require.NotNil(t, cmd)
	msg, ok := cmd().(ErrMsg)
	require.True(t, ok)
	assert.EqualError(t, msg.Err, "offline")
}

func TestQuit(t *testing.T) {
	m := testModel(nil)
	m.Update(StateMsg{State: state()})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Empty(t, m.View())
}

func TestWindowResize(t *testing.T) {
	m := testModel(nil)
	m.Update(StateMsg{State: state()})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	assert.Equal(t, 116, m.events.Width)
	assert.GreaterOrEqual(t, m.events.Height, 3)
}
