package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/tilsley/mdcombine/apps/mdcombine/internal/combine"
	"github.com/tilsley/mdcombine/apps/mdcombine/internal/combine/adapters"
	"github.com/tilsley/mdcombine/apps/mdcombine/internal/combine/store"
	"github.com/tilsley/mdcombine/apps/mdcombine/internal/platform/config"
	"github.com/tilsley/mdcombine/apps/mdcombine/internal/platform/github"
	"github.com/tilsley/mdcombine/pkg/logging"
)

// app is the wired application graph shared by every subcommand.
type app struct {
	cfg *config.Config
	log *slog.Logger
	svc *combine.Service

	closers []func() error
}

// appFactory builds the app for a running command.
type appFactory func(cmd *cobra.Command, log *slog.Logger) (*app, error)

// Close releases the browser and Redis connections, logging failures.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("shutdown step failed", "error", err)
		}
	}
}

// defaultApp loads configuration and wires the real adapters.
func defaultApp(cmd *cobra.Command, log *slog.Logger) (*app, error) {
	file, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(file)
	if err != nil {
		return nil, err
	}
	return wire(cmd.Context(), cfg, log)
}

func wire(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	// --- Adapters ---

	gh := github.NewTokenClient(cfg.GitHub.Token, cfg.GitHub.APIURL, cfg.GitHub.HTTPTimeout)
	client := adapters.NewGitHubClient(gh, cfg.GitHub.RetryAttempts, cfg.GitHub.RetryDelay, log)
	pdf := adapters.NewRodPDFConverter(cfg.Export.ChromeBin, log)
	a.closers = append(a.closers, pdf.Close)

	// --- Artifact locking ---

	var locker combine.Locker = store.NewLocalLocker()
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = rdb.Close()
			a.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		a.closers = append(a.closers, rdb.Close)
		locker = store.NewRedisLocker(rdb, cfg.Redis.LockTTL, log)
		log.Info("using redis artifact locks", "addr", cfg.Redis.Addr)
	}

	a.svc = combine.NewService(combine.Deps{
		Client:      client,
		Renderer:    adapters.NewGoldmarkRenderer(),
		PDF:         pdf,
		Artifacts:   store.NewFSArtifactStore(cfg.Export.OutputDir),
		Locker:      locker,
		Log:         log,
		Concurrency: cfg.GitHub.Concurrency,
	})
	return a, nil
}

// cliLogger keeps log lines on stderr so command output stays pipeable.
func cliLogger() *slog.Logger {
	format := os.Getenv("LOG_FORMAT")
	if format == "" {
		format = "text"
	}
	return logging.NewWithWriter(os.Stderr, format, os.Getenv("LOG_LEVEL"))
}
