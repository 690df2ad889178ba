package main

import (
	"github.com/alecthomas/kong"
)

// version is set by ldflags during build
var version = "dev"

type CLI struct {
	Version    kong.VersionFlag `short:"v" help:"Show version"`
	Server     ServerCmd        `cmd:"" help:"Run the pool server"`
	Deploy     DeployCmd        `cmd:"" help:"Create the pool and credit configured accounts"`
	Join       JoinCmd          `cmd:"" help:"Enter the current round"`
	PickWinner PickWinnerCmd    `cmd:"pick-winner" help:"Close the round and pay the winner (manager only)"`
	Players    PlayersCmd       `cmd:"" help:"List the current entries"`
	Manager    ManagerCmd       `cmd:"" help:"Show the pool manager"`
	LastWinner LastWinnerCmd    `cmd:"last-winner" help:"Show the most recent winner"`
	State      StateCmd         `cmd:"" help:"Show the full pool state"`
	Watch      WatchCmd         `cmd:"" help:"Live dashboard of the pool"`
	Simulate   SimulateCmd      `cmd:"" help:"Run in-process rounds with concurrent joiners"`
	Keygen     KeygenCmd        `cmd:"" help:"Generate a development account key"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("poollottery"),
		kong.Description("Pooled-stake lottery server and client"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
		kong.Vars{
			"version": version,
		},
	)
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
