// Package tui renders a live dashboard of a pool.
package tui

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/ethereum/go-ethereum/common"

	"github.com/lox/poollottery/internal/lottery"
	"github.com/lox/poollottery/internal/server"
)

// StateMsg replaces the displayed pool state.
type StateMsg struct {
	State server.StateData
}

// PlayerJoinedMsg reports a new entry.
type PlayerJoinedMsg struct {
	Joined server.JoinedData
}

// RoundClosedMsg reports a paid round.
type RoundClosedMsg struct {
	Round server.RoundClosedData
}

// ErrMsg reports a failure talking to the server.
type ErrMsg struct {
	Err error
}

// Fetcher loads the current pool state. It runs outside the update loop.
type Fetcher func() (*server.StateData, error)

const maxLogEntries = 200

// Model is the Bubble Tea model for the watch dashboard
type Model struct {
	logger  *log.Logger
	fetch   Fetcher
	now     func() time.Time
	spinner spinner.Model
	players table.Model
	events  viewport.Model

	state    *server.StateData
	log      []string
	lastErr  error
	width    int
	height   int
	quitting bool
}

// NewModel creates a dashboard. fetch is used for the initial load and for
// manual refreshes and may be nil.
func NewModel(fetch Fetcher, logger *log.Logger) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = PoolStyle

	players := table.New(
		table.WithColumns([]table.Column{
			{Title: "#", Width: 4},
			{Title: "Player", Width: 42},
		}),
		table.WithHeight(10),
	)

	return &Model{
		logger:  logger.WithPrefix("tui"),
		fetch:   fetch,
		now:     time.Now,
		spinner: s,
		players: players,
		events:  viewport.New(60, 8),
	}
}

// Init starts the spinner and the initial load
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refresh())
}

func (m *Model) refresh() tea.Cmd {
	if m.fetch == nil {
		return nil
	}
	fetch := m.fetch
	return func() tea.Msg {
		state, err := fetch()
		if err != nil {
			return ErrMsg{Err: err}
		}
		return StateMsg{State: *state}
	}
}

// Update handles messages in the dashboard
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, m.refresh()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.events.Width = max(msg.Width-4, 10)
		m.events.Height = max(msg.Height-lipgloss.Height(m.renderHeader())-18, 3)

	case StateMsg:
		state := msg.State
		m.state = &state
		m.lastErr = nil
		m.syncPlayers()

	case PlayerJoinedMsg:
		m.addLog(fmt.Sprintf("%s joined (%d entries, pool %s)",
			msg.Joined.Player.Hex(), msg.Joined.Entries, formatWei(msg.Joined.PoolBalance)))
		if m.state != nil {
			m.state.Players = append(m.state.Players, msg.Joined.Player)
			m.state.PoolBalance = msg.Joined.PoolBalance
			m.syncPlayers()
		}

	case RoundClosedMsg:
		r := msg.Round
		m.addLog(SuccessStyle.Render(fmt.Sprintf("Round %d won by %s: %s from %d entries",
			r.Round, r.Winner.Hex(), formatWei(r.Payout), r.Entries)))
		if m.state != nil {
			m.state.Players = []common.Address{}
			m.state.PoolBalance = "0"
			m.state.LastWinner = r.Winner
			m.state.Round = r.Round
			m.syncPlayers()
		}

	case ErrMsg:
		m.lastErr = msg.Err
		m.logger.Debug("Dashboard error", "error", msg.Err)
		m.addLog(ErrorStyle.Render("error: " + msg.Err.Error()))

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.events, cmd = m.events.Update(msg)
	return m, cmd
}

// View renders the dashboard
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	if m.state == nil {
		if m.lastErr != nil {
			return ErrorStyle.Render("error: "+m.lastErr.Error()) + "\n" + InfoStyle.Render("r: retry  q: quit") + "\n"
		}
		return m.spinner.View() + " Loading pool state..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(PaneStyle.Render(m.players.View()))
	b.WriteString("\n")
	b.WriteString(PaneStyle.Render(m.events.View()))
	b.WriteString("\n")
	b.WriteString(InfoStyle.Render("r: refresh  q: quit"))
	return b.String()
}

func (m *Model) renderHeader() string {
	if m.state == nil {
		return ""
	}
	s := m.state
	lastWinner := "none"
	if s.LastWinner != lottery.None {
		lastWinner = s.LastWinner.Hex()
	}

	rows := []string{
		HeaderStyle.Render("Pool " + s.Address.Hex()),
		field("Manager", s.Manager.Hex()),
		field("Entry fee", formatWei(s.EntryFee)),
		field("Entries", fmt.Sprintf("%d", len(s.Players))),
		LabelStyle.Render(fmt.Sprintf("%-12s", "Pool")) + PoolStyle.Render(formatWei(s.PoolBalance)),
		field("Rounds", fmt.Sprintf("%d", s.Round)),
		field("Last winner", lastWinner),
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func field(label, value string) string {
	return LabelStyle.Render(fmt.Sprintf("%-12s", label)) + ValueStyle.Render(value)
}

func (m *Model) syncPlayers() {
	rows := make([]table.Row, len(m.state.Players))
	for i, p := range m.state.Players {
		rows[i] = table.Row{fmt.Sprintf("%d", i+1), p.Hex()}
	}
	m.players.SetRows(rows)
}

func (m *Model) addLog(entry string) {
	stamp := InfoStyle.Render(m.now().Format("15:04:05"))
	m.log = append(m.log, stamp+" "+entry)
	if len(m.log) > maxLogEntries {
		m.log = m.log[len(m.log)-maxLogEntries:]
	}
	m.events.SetContent(strings.Join(m.log, "\n"))
	m.events.GotoBottom()
}

// Log returns the event log entries.
func (m *Model) Log() []string {
	return append([]string(nil), m.log...)
}

// State returns the displayed state, or nil before the first load.
func (m *Model) State() *server.StateData {
	return m.state
}

func formatWei(s string) string {
	wei, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return s
	}
	return lottery.FormatAmount(wei)
}
