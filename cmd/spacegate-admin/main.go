// ABOUTME: Operator CLI for inspecting and revoking spacegate records
// ABOUTME: Works directly against the SQLite store named in the config file

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"

	"github.com/spacegate/spacegate/internal/config"
	"github.com/spacegate/spacegate/internal/delegation"
	"github.com/spacegate/spacegate/internal/didauth"
	"github.com/spacegate/spacegate/internal/logging"
	"github.com/spacegate/spacegate/internal/session"
	"github.com/spacegate/spacegate/internal/store"
	"github.com/spacegate/spacegate/internal/sweeper"
)

func printUsage() {
	yellow := color.New(color.FgYellow)

	fmt.Println("Usage: spacegate-admin <command> [args]")
	fmt.Println()
	yellow.Println("Commands:")
	fmt.Println("  delegations <user-did>              List active delegations for a user")
	fmt.Println("  space <space-did>                   List active delegations into a space, by user")
	fmt.Println("  revoke <user-did> <space-did> <cid> Revoke a single delegation")
	fmt.Println("  spaces <admin-email>                List spaces owned by an admin")
	fmt.Println("  revoke-sessions <email>             Deactivate every session for an account")
	fmt.Println("  token <session-id>                  Mint a session token for a verified session")
	fmt.Println("  sweep                               Run all expiry sweeps once")
	fmt.Println()
	yellow.Println("Environment:")
	fmt.Println("  SPACEGATE_CONFIG   Config file path (default: ~/.config/spacegate/config.yaml)")
	fmt.Println()
}

// getConfigPath mirrors the server binary's config resolution.
func getConfigPath() string {
	if envPath := os.Getenv("SPACEGATE_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "config.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "spacegate", "config.yaml")
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	// Keep store chatter out of CLI output
	logging.Setup("error", "text")

	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx := context.Background()

	switch os.Args[1] {
	case "delegations":
		err = cmdDelegations(ctx, db, os.Args[2:])
	case "space":
		err = cmdSpace(ctx, db, os.Args[2:])
	case "revoke":
		err = cmdRevoke(ctx, db, os.Args[2:])
	case "spaces":
		err = cmdSpaces(ctx, db, os.Args[2:])
	case "revoke-sessions":
		err = cmdRevokeSessions(ctx, db, os.Args[2:])
	case "token":
		err = cmdToken(ctx, db, cfg, os.Args[2:])
	case "sweep":
		err = cmdSweep(ctx, db)
	default:
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		color.Red("Error: %v\n", err)
		os.Exit(1)
	}
}

func cmdDelegations(ctx context.Context, db *store.SQLiteStore, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: spacegate-admin delegations <user-did>")
	}

	ledger := delegation.NewLedger(db)
	active, err := ledger.ActiveForUser(ctx, args[0])
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	cyan.Printf("Active delegations for %s\n", args[0])
	if len(active) == 0 {
		fmt.Println("  (none)")
		return nil
	}

	for _, d := range active {
		expiry := "never"
		if d.ExpiresAt != nil {
			expiry = d.ExpiresAt.Local().Format(time.RFC3339)
		}
		by := "-"
		if d.CreatedBy != nil {
			by = *d.CreatedBy
		}
		fmt.Printf("  %s  space=%s  expires=%s  by=%s\n", d.CID, d.SpaceDID, expiry, by)
	}
	return nil
}

func cmdSpace(ctx context.Context, db *store.SQLiteStore, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: spacegate-admin space <space-did>")
	}

	ledger := delegation.NewLedger(db)
	grouped, err := ledger.ForSpace(ctx, args[0])
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	cyan.Printf("Active delegations into %s\n", args[0])
	if len(grouped) == 0 {
		fmt.Println("  (none)")
		return nil
	}

	for userDID, grants := range grouped {
		fmt.Printf("  %s\n", userDID)
		for _, d := range grants {
			fmt.Printf("    %s  created=%s\n", d.CID, d.CreatedAt.Local().Format(time.RFC3339))
		}
	}
	return nil
}

func cmdRevoke(ctx context.Context, db *store.SQLiteStore, args []string) error {
	if len(args) != 3 {
		return fmt.Errorf("usage: spacegate-admin revoke <user-did> <space-did> <cid>")
	}

	ledger := delegation.NewLedger(db)
	revoked, err := ledger.Revoke(ctx, args[0], args[1], args[2])
	if err != nil {
		return err
	}

	if revoked {
		color.Green("Revoked %s\n", args[2])
	} else {
		color.Yellow("No matching delegation found\n")
	}
	return nil
}

func cmdSpaces(ctx context.Context, db *store.SQLiteStore, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: spacegate-admin spaces <admin-email>")
	}

	spaces, err := db.ListAdminSpaces(ctx, args[0])
	if err != nil {
		return err
	}

	cyan := color.New(color.FgCyan)
	cyan.Printf("Spaces owned by %s\n", args[0])
	if len(spaces) == 0 {
		fmt.Println("  (none)")
		return nil
	}

	for _, sp := range spaces {
		fmt.Printf("  %-20s %s\n", sp.SpaceName, sp.SpaceDID)
	}
	return nil
}

func cmdRevokeSessions(ctx context.Context, db *store.SQLiteStore, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: spacegate-admin revoke-sessions <email>")
	}

	sessions := session.NewManager(db)
	count, err := sessions.DeactivateAll(ctx, args[0])
	if err != nil {
		return err
	}

	color.Green("Deactivated %d session(s) for %s\n", count, args[0])
	return nil
}

func cmdToken(ctx context.Context, db *store.SQLiteStore, cfg *config.Config, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: spacegate-admin token <session-id>")
	}

	sessions := session.NewManager(db)
	sess, err := sessions.Get(ctx, args[0])
	if err != nil {
		return err
	}
	if sess == nil {
		return fmt.Errorf("session not found or no longer active")
	}

	issuer := session.NewTokenIssuer([]byte(cfg.Auth.TokenSecret))
	token, err := issuer.Issue(sess)
	if err != nil {
		return err
	}

	fmt.Println(token)
	return nil
}

func cmdSweep(ctx context.Context, db *store.SQLiteStore) error {
	sessions := session.NewManager(db)
	ledger := delegation.NewLedger(db)
	auth := didauth.New(db)
	defer auth.Close()

	sweeps := sweeper.New(
		sweeper.Task{Name: "expired-sessions", Interval: time.Hour, Run: sessions.SweepExpired},
		sweeper.Task{Name: "expired-delegations", Interval: time.Hour, Run: ledger.SweepExpired},
		sweeper.Task{Name: "stale-challenges", Interval: time.Hour, Run: auth.SweepStale},
	)

	total := sweeps.RunAll(ctx)
	color.Green("Swept %d record(s)\n", total)
	return nil
}
