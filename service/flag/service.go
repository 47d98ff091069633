package flag

import (
	"github.com/spf13/pflag"
	"github.com/thirukguru/aws-fleetscan/model"
)

// NewService creates a new flag service.
func NewService() Service {
	return &service{}
}

// GetParsedFlags parses and returns the command-line flags.
func (s *service) GetParsedFlags() (model.Flags, error) {
	accounts := pflag.StringP("accounts", "a", "accounts.json", "Path to the account registry file")
	environment := pflag.StringP("environment", "e", "", "Only scan accounts in this environment")
	businessUnit := pflag.String("business-unit", "", "Only scan accounts in this business unit")
	concurrency := pflag.IntP("concurrency", "c", 10, "Maximum accounts scanned in parallel")
	output := pflag.StringP("output", "o", "table", "Output format (table or json)")
	store := pflag.Bool("store", false, "Persist scan scores in local SQLite database")
	dbPath := pflag.String("db-path", "", "Custom SQLite database path (default ~/.aws-fleetscan/history.db)")
	trends := pflag.Bool("trends", false, "Show historical score trends from stored scans")
	trendDays := pflag.Int("trend-days", 30, "Number of days for trend analysis")
	recommendations := pflag.Int("recommendations", 10, "Maximum remediation recommendations to show")
	version := pflag.BoolP("version", "v", false, "Show version information")

	pflag.Parse()

	flags := model.Flags{
		AccountsPath:    *accounts,
		Environment:     *environment,
		BusinessUnit:    *businessUnit,
		Concurrency:     *concurrency,
		Output:          *output,
		Store:           *store,
		DBPath:          *dbPath,
		Trends:          *trends,
		TrendDays:       *trendDays,
		Recommendations: *recommendations,
		Version:         *version,
	}

	return flags, nil
}
