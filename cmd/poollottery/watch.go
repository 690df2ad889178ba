package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lox/poollottery/internal/server"
	"github.com/lox/poollottery/internal/tui"
)

// WatchCmd runs the live dashboard
type WatchCmd struct {
	ClientFlags
	NoColor bool `help:"Disable colour output"`
}

func (c *WatchCmd) Run() error {
	if c.NoColor {
		tui.DisableColor()
	}

	ctx := context.Background()
	cl, logger, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer cl.Close()

	model := tui.NewModel(func() (*server.StateData, error) {
		return cl.State(ctx)
	}, logger)
	p := tea.NewProgram(model, tea.WithAltScreen())

	cl.AddEventHandler(server.MessageTypePlayerJoined, func(msg *server.Message) {
		var data server.JoinedData
		if err := msg.Decode(&data); err != nil {
			p.Send(tui.ErrMsg{Err: fmt.Errorf("decode %s: %w", msg.Type, err)})
			return
		}
		p.Send(tui.PlayerJoinedMsg{Joined: data})
	})
	cl.AddEventHandler(server.MessageTypeRoundClosed, func(msg *server.Message) {
		var data server.RoundClosedData
		if err := msg.Decode(&data); err != nil {
			p.Send(tui.ErrMsg{Err: fmt.Errorf("decode %s: %w", msg.Type, err)})
			return
		}
		p.Send(tui.RoundClosedMsg{Round: data})
	})

	_, err = p.Run()
	return err
}
