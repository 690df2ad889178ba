package main

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/lox/poollottery/cmd/poollottery/shared"
	"github.com/lox/poollottery/internal/auth"
	"github.com/lox/poollottery/internal/entropy"
	"github.com/lox/poollottery/internal/metrics"
	"github.com/lox/poollottery/internal/randutil"
	"github.com/lox/poollottery/internal/server"
)

// ServerCmd serves a deployed pool over WebSocket
type ServerCmd struct {
	ConfigFlags
	Addr     string `short:"a" help:"Server address to bind to (overrides config)"`
	Port     int    `short:"p" help:"Port to bind to (overrides config)"`
	LogLevel string `short:"l" help:"Log level (overrides config)"`
	Debug    bool   `help:"Enable debug logging"`
	Seed     *int64 `help:"Deterministic entropy seed (overrides config)"`
}

func (c *ServerCmd) Run() error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	if c.Addr != "" {
		cfg.Server.Address = c.Addr
	}
	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}
	if c.LogLevel != "" {
		cfg.Server.LogLevel = c.LogLevel
	}
	if c.Seed != nil {
		cfg.Entropy.Seed = *c.Seed
	}

	logger := shared.SetupLogger(shared.DebugLevel(c.Debug, cfg.Server.LogLevel))

	pool, st, err := openPool(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	clock := quartz.NewReal()
	seed, configured := randutil.Resolve(cfg.Entropy.Seed, clock)
	if configured {
		logger.Info("Using deterministic entropy seed", "seed", seed)
	} else {
		logger.Info("Using random entropy seed", "seed", seed)
	}
	chain := entropy.NewChain(clock, seed)

	var validator auth.Validator
	switch cfg.Auth.Mode {
	case server.AuthModeHTTP:
		validator = auth.NewHTTPValidator(cfg.Auth.URL, cfg.Auth.AdminSecret)
	case server.AuthModeNone:
		logger.Warn("Authentication disabled, connections act for any address they claim")
		validator = auth.NewNoopValidator()
	default:
		validator = auth.NewSignatureValidator(clock, cfg.AuthSkew(), pool.Address())
	}

	service := server.NewLotteryService(pool, chain, metrics.New(), logger)
	srv := server.NewServer(cfg.ListenAddress(), service, validator, logger)

	logger.Info("Starting poollottery server",
		"addr", cfg.ListenAddress(),
		"pool", pool.Address().Hex(),
		"manager", pool.Manager().Hex(),
		"entryFee", pool.EntryFee().String(),
		"players", len(pool.Players()),
		"auth", cfg.Auth.Mode,
		"db", st.Path())

	ctx := shared.SetupSignalHandler(logger)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
