// Package orchestrator coordinates concurrent security scans across the
// registered account fleet.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/thirukguru/aws-fleetscan/model"
	"github.com/thirukguru/aws-fleetscan/service/registry"
	"github.com/thirukguru/aws-fleetscan/service/scanner"
	"golang.org/x/sync/errgroup"
)

// NewService creates a new scan orchestrator. A concurrency of zero or
// less falls back to DefaultConcurrency.
func NewService(
	reg registry.Service,
	plugins []scanner.Plugin,
	sessions SessionBuilder,
	verifier IdentityVerifier,
	concurrency int,
	logger zerolog.Logger,
) Service {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &service{
		registry:    reg,
		plugins:     plugins,
		sessions:    sessions,
		verifier:    verifier,
		logger:      logger.With().Str("component", "orchestrator").Logger(),
		concurrency: concurrency,
	}
}

func (s *service) ScanAll(ctx context.Context, filter Filter) []model.AccountScanResult {
	passID := uuid.NewString()
	logger := s.logger.With().Str("pass_id", passID).Logger()

	accounts := s.eligibleAccounts(filter)
	logger.Info().Int("accounts", len(accounts)).Int("plugins", len(s.plugins)).Msg("starting fleet scan")

	var (
		mu      sync.Mutex
		results []model.AccountScanResult
	)
	sem := make(chan struct{}, s.concurrency)
	g, gctx := errgroup.WithContext(ctx)

ACCOUNTS:
	for _, account := range accounts {
		select {
		case sem <- struct{}{}: // acquire a slot; blocks at the ceiling
		case <-gctx.Done():
			break ACCOUNTS
		}

		g.Go(func() error {
			defer func() { <-sem }()

			result := s.scanAccount(gctx, logger, account)
			result.PassID = passID

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(results, func(i, j int) bool {
		return results[i].AccountID < results[j].AccountID
	})
	logger.Info().Int("results", len(results)).Msg("fleet scan finished")
	return results
}

// eligibleAccounts selects active and pending accounts matching the
// filter. Errored and disconnected accounts sit out until an operator
// intervenes.
func (s *service) eligibleAccounts(filter Filter) []model.Account {
	listed := s.registry.List(registry.Filter{
		Environment:  filter.Environment,
		BusinessUnit: filter.BusinessUnit,
	})
	accounts := listed[:0:0]
	for _, account := range listed {
		if account.Status == model.StatusActive || account.Status == model.StatusPending {
			accounts = append(accounts, account)
		}
	}
	return accounts
}

func (s *service) scanAccount(ctx context.Context, logger zerolog.Logger, account model.Account) model.AccountScanResult {
	started := time.Now().UTC()
	accountLogger := logger.With().Str("account_id", account.AccountID).Logger()

	result := model.AccountScanResult{
		AccountID:   account.AccountID,
		AccountName: account.Name,
		Environment: account.Environment,
		StartedAt:   started,
	}

	fail := func(reason string, err error) model.AccountScanResult {
		accountLogger.Error().Err(err).Msg(reason)
		result.Error = reason + ": " + err.Error()
		result.Duration = time.Since(started)
		// A cancelled pass says nothing about the account itself.
		if ctx.Err() == nil {
			s.markStatus(account.AccountID, model.StatusError, result.Error)
		}
		return result
	}

	cfg, err := s.sessions.Build(ctx, account)
	if err != nil {
		return fail("session acquisition failed", err)
	}

	providerAccount, callerARN, err := s.verifier.Verify(ctx, cfg)
	if err != nil {
		return fail("session verification failed", err)
	}
	if providerAccount != account.AccountID {
		accountLogger.Warn().
			Str("resolved_account", providerAccount).
			Msg("session resolves to a different account than registered")
	}

	sess := scanner.Session{Config: cfg, Account: account, CallerARN: callerARN}
	result.Findings, result.PluginsRun = s.runPlugins(ctx, accountLogger, sess)
	result.Duration = time.Since(started)

	if err := ctx.Err(); err != nil {
		accountLogger.Warn().Msg("account scan cancelled")
		result.Findings = nil
		result.Error = "scan cancelled: " + err.Error()
		return result
	}

	s.markStatus(account.AccountID, model.StatusActive, "")
	accountLogger.Info().
		Int("findings", len(result.Findings)).
		Dur("duration", result.Duration).
		Msg("account scan complete")
	return result
}

// runPlugins executes every configured plugin concurrently against one
// session. A plugin failure is logged and degrades the result; it never
// fails the account.
func (s *service) runPlugins(ctx context.Context, logger zerolog.Logger, sess scanner.Session) ([]model.Finding, []string) {
	var (
		mu       sync.Mutex
		findings []model.Finding
		ran      []string
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, plugin := range s.plugins {
		g.Go(func() error {
			pluginFindings, err := plugin.Scan(gctx, sess)
			if err != nil {
				logger.Warn().Str("plugin", plugin.Name()).Err(err).Msg("plugin failed")
				mu.Lock()
				ran = append(ran, plugin.Name())
				mu.Unlock()
				return nil
			}
			for i := range pluginFindings {
				pluginFindings[i].AccountID = sess.Account.AccountID
				pluginFindings[i].AccountName = sess.Account.Name
				pluginFindings[i].Environment = sess.Account.Environment
			}
			mu.Lock()
			findings = append(findings, pluginFindings...)
			ran = append(ran, plugin.Name())
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(ran)
	return findings, ran
}

func (s *service) markStatus(accountID string, status model.AccountStatus, errorMessage string) {
	if err := s.registry.UpdateStatus(accountID, status, errorMessage); err != nil {
		s.logger.Warn().Str("account_id", accountID).Err(err).Msg("failed to update registry status")
	}
}

func (s *service) AggregateResults(results []model.AccountScanResult) model.Summary {
	summary := model.Summary{
		FindingsBySeverity: make(map[string]int),
		FindingsByAccount:  make(map[string]int),
		FindingsByFamily:   make(map[string]int),
	}

	for _, result := range results {
		if result.Failed() {
			summary.FailedAccounts++
			continue
		}
		summary.SucceededAccounts++
		summary.FindingsByAccount[result.AccountID] += len(result.Findings)
		for _, finding := range result.Findings {
			summary.TotalFindings++
			summary.FindingsBySeverity[model.NormalizeSeverity(finding.Severity)]++
			summary.FindingsByFamily[finding.ScannerFamily()]++
		}
		if finished := result.StartedAt.Add(result.Duration); finished.After(summary.ScannedAt) {
			summary.ScannedAt = finished
		}
	}
	return summary
}
