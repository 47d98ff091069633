package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"
	"github.com/thirukguru/aws-fleetscan/service/storage"
	"github.com/thirukguru/aws-fleetscan/shared/fleettable"
)

func runStorageCommand(cmd string, args []string) error {
	switch cmd {
	case "db":
		return runDBCommand(args)
	case "history":
		return runHistoryCommand(args)
	default:
		return fmt.Errorf("unsupported command: %s", cmd)
	}
}

func runDBCommand(args []string) error {
	fs := pflag.NewFlagSet("db", pflag.ContinueOnError)
	dbPath := fs.String("db-path", "", "SQLite database path")
	olderThan := fs.Int("older-than", 90, "Purge snapshots older than N days")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return fmt.Errorf("usage: aws-fleetscan db purge [--db-path ...] [--older-than N]")
	}

	store, err := storage.NewService(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	switch sub := rest[0]; sub {
	case "purge":
		count, err := store.PurgeOlderThan(context.Background(), *olderThan)
		if err != nil {
			return err
		}
		fmt.Printf("Purged %d snapshots\n", count)
		return nil
	default:
		return fmt.Errorf("unsupported db command: %s", sub)
	}
}

func runHistoryCommand(args []string) error {
	fs := pflag.NewFlagSet("history", pflag.ContinueOnError)
	dbPath := fs.String("db-path", "", "SQLite database path")
	accountID := fs.String("account-id", "", "Show daily trend for one account")
	days := fs.Int("days", 30, "Trailing window in days")
	limit := fs.Int("limit", 20, "Number of snapshots to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store, err := storage.NewService(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if *accountID != "" {
		points, err := store.GetAccountTrends(*accountID, *days)
		if err != nil {
			return err
		}
		if len(points) == 0 {
			fmt.Printf("No stored history for account %s\n", *accountID)
			return nil
		}
		for _, p := range points {
			fmt.Printf("%s\t%.1f\t%d findings\n", p.Date, p.Score, p.Findings)
		}
		return nil
	}

	snapshots, err := store.GetRecentSnapshots(*limit)
	if err != nil {
		return err
	}
	fleettable.RenderRecentSnapshots(snapshots)
	return nil
}
