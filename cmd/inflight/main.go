package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/inflight/internal/config"
	"git.home.luguber.info/inful/inflight/internal/daemon"
	ierrors "git.home.luguber.info/inful/inflight/internal/errors"
	"git.home.luguber.info/inful/inflight/internal/snapshot"
)

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"inflight.yaml"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	Serve struct {
	} `cmd:"" help:"Run the inflight agent: expose counters over HTTP and persist periodic snapshots"`

	Init struct {
		Force bool `help:"Overwrite existing configuration file"`
	} `cmd:"" help:"Initialize a new configuration file"`

	Snapshots struct {
		Counter string `short:"n" help:"Counter name to query (all counters in range when empty)"`
		Since   string `help:"Start of the time range as a Go duration before now" default:"24h"`
	} `cmd:"" help:"Print stored counter snapshots as JSON"`
}

func main() {
	ctx := kong.Parse(&CLI)

	// Set up logging
	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	adapter := ierrors.NewCLIErrorAdapter(CLI.Verbose, logger)

	// Execute command
	var err error
	switch ctx.Command() {
	case "serve":
		err = runServe(CLI.Config)
	case "init":
		err = runInit(CLI.Config, CLI.Init.Force)
	case "snapshots":
		err = runSnapshots(CLI.Config, CLI.Snapshots.Counter, CLI.Snapshots.Since)
	}

	if err != nil {
		os.Exit(adapter.Report(err))
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Create main context for the agent
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	d, err := daemon.NewWithConfigFile(cfg, configPath)
	if err != nil {
		return err
	}

	// Start daemon in a goroutine
	errChan := make(chan error, 1)
	go func() {
		errChan <- d.Start(ctx)
	}()

	slog.Info("Agent started, waiting for shutdown signal...")

	// Wait for either error or shutdown signal
	select {
	case err := <-errChan:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		slog.Info("Shutdown signal received, stopping agent...")
	}

	// Stop daemon gracefully
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := d.Stop(stopCtx); err != nil {
		return err
	}

	slog.Info("Agent stopped successfully")
	return nil
}

func runInit(configPath string, force bool) error {
	slog.Info("Initializing configuration", "path", configPath, "force", force)
	return config.Init(configPath, force)
}

func runSnapshots(configPath, counter, since string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if !cfg.Snapshot.Enabled {
		return ierrors.New(ierrors.CategoryConfig, ierrors.SeverityError, "snapshot persistence is disabled in configuration")
	}

	lookback, err := time.ParseDuration(since)
	if err != nil {
		return ierrors.ValidationFailed("since", "must be a valid duration")
	}

	store, err := snapshot.NewSQLiteStore(cfg.Snapshot.Store)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Warn("Failed to close snapshot store", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var snaps []snapshot.Snapshot
	if counter != "" {
		snaps, err = store.ByCounter(ctx, counter)
	} else {
		snaps, err = store.Range(ctx, time.Now().Add(-lookback), time.Now())
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snaps)
}
