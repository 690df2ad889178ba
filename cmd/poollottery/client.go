package main

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/lox/poollottery/cmd/poollottery/shared"
	"github.com/lox/poollottery/internal/auth"
	"github.com/lox/poollottery/internal/client"
	"github.com/lox/poollottery/internal/lottery"
)

// ClientFlags connect a command to a running server
type ClientFlags struct {
	Server  string        `short:"s" default:"http://localhost:8080" help:"Server URL"`
	Timeout time.Duration `default:"10s" help:"Request timeout"`
	Debug   bool          `help:"Enable debug logging"`
	JSON    bool          `help:"Print replies as JSON"`
}

// AccountFlags identify the account a mutating command acts for
type AccountFlags struct {
	KeyFile string `short:"k" type:"existingfile" help:"File holding a hex secp256k1 private key"`
	Key     string `env:"POOLLOTTERY_KEY" help:"Hex secp256k1 private key"`
	Address string `help:"Claimed address when the server does not check signatures"`
	Token   string `env:"POOLLOTTERY_TOKEN" help:"Token for servers using an HTTP auth callback"`
}

func (f ClientFlags) connect(ctx context.Context) (*client.Client, *log.Logger, error) {
	logger := shared.SetupLogger(shared.DebugLevel(f.Debug, "warn"))
	c := client.NewClient(f.Server, logger, client.WithTimeout(f.Timeout))
	if err := c.Connect(ctx); err != nil {
		return nil, nil, err
	}
	return c, logger, nil
}

func (f ClientFlags) print(v interface{}, text string) error {
	if f.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Println(text)
	return nil
}

func (f AccountFlags) privateKey() (*ecdsa.PrivateKey, error) {
	switch {
	case f.KeyFile != "":
		return crypto.LoadECDSA(f.KeyFile)
	case f.Key != "":
		return crypto.HexToECDSA(strings.TrimPrefix(f.Key, "0x"))
	default:
		return nil, nil
	}
}

func (f AccountFlags) credentials(pool common.Address) (auth.Credentials, error) {
	key, err := f.privateKey()
	if err != nil {
		return auth.Credentials{}, fmt.Errorf("load key: %w", err)
	}
	if key != nil {
		creds, err := auth.Sign(key, pool, quartz.NewReal())
		if err != nil {
			return auth.Credentials{}, err
		}
		creds.Token = f.Token
		return creds, nil
	}

	if f.Address == "" && f.Token == "" {
		return auth.Credentials{}, errors.New("an account is required: pass --key-file, --key, --address or --token")
	}
	var creds auth.Credentials
	if f.Address != "" {
		if !common.IsHexAddress(f.Address) {
			return auth.Credentials{}, fmt.Errorf("invalid address %q", f.Address)
		}
		creds.Address = common.HexToAddress(f.Address)
	}
	creds.Token = f.Token
	return creds, nil
}

// login authenticates c. Signatures are bound to the pool the server
// reports, so the state is fetched first.
func (f AccountFlags) login(ctx context.Context, c *client.Client) (common.Address, error) {
	state, err := c.State(ctx)
	if err != nil {
		return common.Address{}, err
	}
	creds, err := f.credentials(state.Address)
	if err != nil {
		return common.Address{}, err
	}
	resp, err := c.Authenticate(ctx, creds)
	if err != nil {
		return common.Address{}, fmt.Errorf("authenticate: %w", err)
	}
	return resp.Address, nil
}

// JoinCmd enters the current round
type JoinCmd struct {
	ClientFlags
	AccountFlags
	Amount string `arg:"" optional:"" help:"Contribution, e.g. '0.01 ether'. Defaults to the entry fee."`
}

func (c *JoinCmd) Run() error {
	ctx := context.Background()
	cl, logger, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer cl.Close()

	addr, err := c.login(ctx, cl)
	if err != nil {
		return err
	}

	amount := c.Amount
	if amount == "" {
		state, err := cl.State(ctx)
		if err != nil {
			return err
		}
		amount = state.EntryFee
	}
	logger.Debug("Joining", "account", addr.Hex(), "amount", amount)

	joined, err := cl.Join(ctx, amount)
	if err != nil {
		return err
	}
	return c.print(joined, fmt.Sprintf("Joined as %s: %d entries, pool %s",
		joined.Player.Hex(), joined.Entries, formatWei(joined.PoolBalance)))
}

// PickWinnerCmd closes the current round
type PickWinnerCmd struct {
	ClientFlags
	AccountFlags
}

func (c *PickWinnerCmd) Run() error {
	ctx := context.Background()
	cl, _, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer cl.Close()

	if _, err := c.login(ctx, cl); err != nil {
		return err
	}

	round, err := cl.PickWinner(ctx)
	if err != nil {
		return err
	}
	return c.print(round, fmt.Sprintf("Round %d (%s): %s won %s from %d entries at block %d",
		round.Round, round.RoundID, round.Winner.Hex(), formatWei(round.Payout), round.Entries, round.Block))
}

// PlayersCmd lists the current entries
type PlayersCmd struct {
	ClientFlags
}

func (c *PlayersCmd) Run() error {
	ctx := context.Background()
	cl, _, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer cl.Close()

	players, err := cl.Players(ctx)
	if err != nil {
		return err
	}
	lines := make([]string, len(players))
	for i, p := range players {
		lines[i] = fmt.Sprintf("%3d  %s", i+1, p.Hex())
	}
	if len(lines) == 0 {
		lines = append(lines, "No players")
	}
	return c.print(players, strings.Join(lines, "\n"))
}

// ManagerCmd shows the manager
type ManagerCmd struct {
	ClientFlags
}

func (c *ManagerCmd) Run() error {
	ctx := context.Background()
	cl, _, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer cl.Close()

	manager, err := cl.Manager(ctx)
	if err != nil {
		return err
	}
	return c.print(manager, manager.Hex())
}

// LastWinnerCmd shows the most recent winner
type LastWinnerCmd struct {
	ClientFlags
}

func (c *LastWinnerCmd) Run() error {
	ctx := context.Background()
	cl, _, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer cl.Close()

	winner, err := cl.LastWinner(ctx)
	if err != nil {
		return err
	}
	return c.print(winner, winner.Hex())
}

// StateCmd shows the whole pool
type StateCmd struct {
	ClientFlags
}

func (c *StateCmd) Run() error {
	ctx := context.Background()
	cl, _, err := c.connect(ctx)
	if err != nil {
		return err
	}
	defer cl.Close()

	s, err := cl.State(ctx)
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Pool address: %s\nManager:      %s\nEntry fee:    %s\nPlayers:      %d\nPool balance: %s\nLast winner:  %s\nRounds:       %d",
		s.Address.Hex(), s.Manager.Hex(), formatWei(s.EntryFee), len(s.Players),
		formatWei(s.PoolBalance), s.LastWinner.Hex(), s.Round)
	return c.print(s, text)
}

func formatWei(s string) string {
	wei, err := lottery.ParseAmount(s)
	if err != nil {
		return s
	}
	return lottery.FormatAmount(wei)
}
