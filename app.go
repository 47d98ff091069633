// Package main is the entry point for the aws-fleetscan application.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/thirukguru/aws-fleetscan/model"
	"github.com/thirukguru/aws-fleetscan/service/flag"
	"github.com/thirukguru/aws-fleetscan/service/storage"
	"github.com/thirukguru/aws-fleetscan/shared/fleettable"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "db", "history":
			return runStorageCommand(os.Args[1], os.Args[2:])
		}
	}

	flagService := flag.NewService()
	flags, err := flagService.GetParsedFlags()
	if err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	if flags.Version {
		info := model.VersionInfo{Version: version, Commit: commit, Date: date}
		fmt.Printf("aws-fleetscan %s (commit %s, built %s)\n", info.Version, info.Commit, info.Date)
		return nil
	}

	logger := newLogger()

	var storageService storage.Service
	if flags.Store || flags.Trends {
		storageService, err = storage.NewService(flags.DBPath)
		if err != nil {
			return fmt.Errorf("failed to initialize storage: %w", err)
		}
		defer storageService.Close()
	}

	if flags.Trends {
		points, err := storageService.GetTrends(flags.TrendDays)
		if err != nil {
			return fmt.Errorf("failed to load trends: %w", err)
		}
		fleettable.RenderTrendTable(points)

		snapshots, err := storageService.GetRecentSnapshots(10)
		if err != nil {
			return fmt.Errorf("failed to load recent snapshots: %w", err)
		}
		fleettable.RenderRecentSnapshots(snapshots)
		return nil
	}

	return runFleetScan(flags, logger, storageService)
}

func newLogger() zerolog.Logger {
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	return zerolog.New(writer).With().Timestamp().Logger().Level(zerolog.InfoLevel)
}
