// ABOUTME: Entry point for the spacegate credential and delegation service
// ABOUTME: Wires the store, auth services, and background sweeps together

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spacegate/spacegate/internal/config"
	"github.com/spacegate/spacegate/internal/delegation"
	"github.com/spacegate/spacegate/internal/didauth"
	"github.com/spacegate/spacegate/internal/logging"
	"github.com/spacegate/spacegate/internal/session"
	"github.com/spacegate/spacegate/internal/store"
	"github.com/spacegate/spacegate/internal/sweeper"
)

// Version is set by goreleaser at build time.
var version = "dev"

// getConfigPath returns the path to the spacegate config file.
// Priority: SPACEGATE_CONFIG env var > XDG_CONFIG_HOME/spacegate/config.yaml > ~/.config/spacegate/config.yaml
func getConfigPath() string {
	if envPath := os.Getenv("SPACEGATE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "spacegate", "config.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: spacegate <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve      Start the credential and delegation service")
		fmt.Println("  version    Print the version")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		if err := runServe(); err != nil {
			slog.Error("fatal", "error", err)
			os.Exit(1)
		}
	case "version":
		fmt.Println(version)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	logger.Info("starting spacegate", "version", version)

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer db.Close()

	sessions := session.NewManager(db)
	auth := didauth.New(db)
	defer auth.Close()
	ledger := delegation.NewLedger(db)

	sweeps := sweeper.New(
		sweeper.Task{
			Name:     "expired-sessions",
			Interval: cfg.Sweeps.SessionInterval,
			Run:      sessions.SweepExpired,
		},
		sweeper.Task{
			Name:     "expired-delegations",
			Interval: cfg.Sweeps.DelegationInterval,
			Run:      ledger.SweepExpired,
		},
		sweeper.Task{
			Name:     "stale-challenges",
			Interval: cfg.Sweeps.ChallengeInterval,
			Run:      auth.SweepStale,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("spacegate ready", "database", cfg.Database.Path)
	sweeps.Run(ctx)

	logger.Info("shutting down")
	return nil
}
