package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"
	"github.com/thirukguru/aws-fleetscan/model"
	"github.com/thirukguru/aws-fleetscan/plugin/ec2scan"
	"github.com/thirukguru/aws-fleetscan/plugin/iamscan"
	"github.com/thirukguru/aws-fleetscan/plugin/lambdascan"
	"github.com/thirukguru/aws-fleetscan/plugin/rdsscan"
	"github.com/thirukguru/aws-fleetscan/plugin/s3scan"
	"github.com/thirukguru/aws-fleetscan/service/assume"
	awsconfig "github.com/thirukguru/aws-fleetscan/service/aws_config"
	"github.com/thirukguru/aws-fleetscan/service/credcache"
	"github.com/thirukguru/aws-fleetscan/service/dashboard"
	"github.com/thirukguru/aws-fleetscan/service/orchestrator"
	"github.com/thirukguru/aws-fleetscan/service/registry"
	"github.com/thirukguru/aws-fleetscan/service/scanner"
	"github.com/thirukguru/aws-fleetscan/service/score"
	"github.com/thirukguru/aws-fleetscan/service/storage"
	"github.com/thirukguru/aws-fleetscan/shared/fleettable"
	"github.com/thirukguru/aws-fleetscan/shared/spinner"
)

func runFleetScan(flags model.Flags, logger zerolog.Logger, storageService storage.Service) error {
	ctx := context.Background()

	registryService := registry.NewService()
	if err := loadAccounts(flags.AccountsPath, registryService, logger); err != nil {
		return err
	}

	cfgService := awsconfig.NewService()
	baseCfg, err := cfgService.GetAWSCfg(ctx, "", "")
	if err != nil {
		return fmt.Errorf("failed to load AWS config: %w", err)
	}

	cache := credcache.NewService()
	assumeService := assume.NewService(sts.NewFromConfig(baseCfg), cache, baseCfg.Region, logger)

	plugins := []scanner.Plugin{
		iamscan.New(),
		s3scan.New(),
		ec2scan.New(),
		rdsscan.New(),
		lambdascan.New(),
	}

	orchestratorService := orchestrator.NewService(
		registryService,
		plugins,
		orchestrator.NewSessionBuilder(assumeService),
		orchestrator.NewIdentityVerifier(),
		flags.Concurrency,
		logger,
	)

	if flags.Output != "json" {
		spinner.StartSpinner()
	}
	results := orchestratorService.ScanAll(ctx, orchestrator.Filter{
		Environment:  flags.Environment,
		BusinessUnit: flags.BusinessUnit,
	})
	if flags.Output != "json" {
		spinner.StopSpinner()
	}

	dashboardService := dashboard.NewService(score.NewService(), storageService, logger)
	dashboardService.RecordScanResults(ctx, results)

	if flags.Output == "json" {
		return writeJSON(results, dashboardService.ExportSummary(results))
	}

	fleettable.RenderScanResults(results)
	payload := dashboardService.ExportSummary(results)
	fleettable.RenderSummary(payload.Summary)
	fleettable.RenderHeatMap(payload.HeatMap)
	fleettable.RenderRecommendations(dashboardService.GetRecommendations(results, flags.Recommendations))
	return nil
}

// loadAccounts reads the account registry file and registers each entry.
// Invalid entries are skipped with a warning so one bad record does not
// block the fleet.
func loadAccounts(path string, registryService registry.Service, logger zerolog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read accounts file %s: %w", path, err)
	}

	var accounts []model.Account
	if err := json.Unmarshal(data, &accounts); err != nil {
		return fmt.Errorf("failed to parse accounts file %s: %w", path, err)
	}

	registered := 0
	for _, account := range accounts {
		if err := registryService.Add(account); err != nil {
			logger.Warn().Err(err).Str("account_id", account.AccountID).Msg("skipping invalid account entry")
			continue
		}
		registered++
	}
	if registered == 0 {
		return fmt.Errorf("no valid accounts in %s", path)
	}

	logger.Info().Int("accounts", registered).Str("file", path).Msg("account registry loaded")
	return nil
}

func writeJSON(results []model.AccountScanResult, payload dashboard.Payload) error {
	out := struct {
		Results   []model.AccountScanResult `json:"results"`
		Dashboard dashboard.Payload         `json:"dashboard"`
	}{Results: results, Dashboard: payload}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}
