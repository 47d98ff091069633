package orchestrator

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thirukguru/aws-fleetscan/model"
	"github.com/thirukguru/aws-fleetscan/service/registry"
	"github.com/thirukguru/aws-fleetscan/service/scanner"
)

type fakeBuilder struct {
	failFor map[string]error
	builds  atomic.Int32
}

func (b *fakeBuilder) Build(_ context.Context, account model.Account) (aws.Config, error) {
	b.builds.Add(1)
	if err, ok := b.failFor[account.AccountID]; ok {
		return aws.Config{}, err
	}
	return aws.Config{Region: account.PrimaryRegion()}, nil
}

type fakeVerifier struct {
	err error
}

func (v *fakeVerifier) Verify(_ context.Context, _ aws.Config) (string, string, error) {
	if v.err != nil {
		return "", "", v.err
	}
	return "", "arn:aws:sts::000000000000:assumed-role/FleetscanAudit/test", nil
}

type fakePlugin struct {
	name     string
	findings []model.Finding
	err      error
	delay    time.Duration
	calls    atomic.Int32
}

func (p *fakePlugin) Name() string { return p.name }

func (p *fakePlugin) Scan(ctx context.Context, _ scanner.Session) ([]model.Finding, error) {
	p.calls.Add(1)
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.findings, nil
}

func failedFinding(ruleID, severity string) model.Finding {
	return model.Finding{
		RuleID:     ruleID,
		ResourceID: "res-" + ruleID,
		Severity:   severity,
		Title:      ruleID,
	}
}

func fleetRegistry(t *testing.T, ids ...string) registry.Service {
	t.Helper()
	reg := registry.NewService()
	for _, id := range ids {
		err := reg.Add(model.Account{
			AccountID:  id,
			Name:       "acct-" + id,
			AuthMethod: model.AuthAssumedRole,
			RoleARN:    "arn:aws:iam::" + id + ":role/FleetscanAudit",
			Regions:    []string{"us-east-1"},
		})
		require.NoError(t, err)
	}
	return reg
}

// verifierPerAccount fails verification for specific accounts. The
// builder embeds the account id in the config region so the verifier can
// tell accounts apart.
type accountAwareBuilder struct{}

func (accountAwareBuilder) Build(_ context.Context, account model.Account) (aws.Config, error) {
	return aws.Config{Region: account.AccountID}, nil
}

type accountAwareVerifier struct {
	failFor map[string]error
}

func (v *accountAwareVerifier) Verify(_ context.Context, cfg aws.Config) (string, string, error) {
	if err, ok := v.failFor[cfg.Region]; ok {
		return "", "", err
	}
	return cfg.Region, "arn:aws:sts::" + cfg.Region + ":assumed-role/FleetscanAudit/test", nil
}

func TestScanAllIsolatesVerificationFailure(t *testing.T) {
	reg := fleetRegistry(t, "111111111111", "222222222222", "333333333333")
	plugin := &fakePlugin{name: "iam", findings: []model.Finding{failedFinding("iam_no_mfa", model.SeverityHigh)}}

	svc := NewService(
		reg,
		[]scanner.Plugin{plugin},
		accountAwareBuilder{},
		&accountAwareVerifier{failFor: map[string]error{"222222222222": errors.New("access denied")}},
		0,
		zerolog.Nop(),
	)

	results := svc.ScanAll(context.Background(), Filter{})
	require.Len(t, results, 3)

	var failed, succeeded int
	for _, result := range results {
		if result.Failed() {
			failed++
			assert.Equal(t, "222222222222", result.AccountID)
			assert.Empty(t, result.Findings, "failed account contributes zero findings")
			assert.Contains(t, result.Error, "session verification failed")
		} else {
			succeeded++
			assert.Len(t, result.Findings, 1)
		}
	}
	assert.Equal(t, 1, failed)
	assert.Equal(t, 2, succeeded)

	bad, _ := reg.Get("222222222222")
	assert.Equal(t, model.StatusError, bad.Status)
	assert.Contains(t, bad.LastError, "access denied")

	good, _ := reg.Get("111111111111")
	assert.Equal(t, model.StatusActive, good.Status)
	require.NotNil(t, good.LastScanAt)
}

func TestScanAllTagsFindings(t *testing.T) {
	reg := registry.NewService()
	require.NoError(t, reg.Add(model.Account{
		AccountID:   "123456789012",
		Name:        "payments-prod",
		Environment: "production",
		AuthMethod:  model.AuthAssumedRole,
		RoleARN:     "arn:aws:iam::123456789012:role/FleetscanAudit",
		Regions:     []string{"eu-west-1"},
	}))

	plugin := &fakePlugin{name: "s3", findings: []model.Finding{failedFinding("s3_public_bucket", model.SeverityCritical)}}
	svc := NewService(reg, []scanner.Plugin{plugin}, &fakeBuilder{}, &fakeVerifier{}, 0, zerolog.Nop())

	results := svc.ScanAll(context.Background(), Filter{})
	require.Len(t, results, 1)
	require.Len(t, results[0].Findings, 1)

	finding := results[0].Findings[0]
	assert.Equal(t, "123456789012", finding.AccountID)
	assert.Equal(t, "payments-prod", finding.AccountName)
	assert.Equal(t, "production", finding.Environment)
	assert.NotEmpty(t, results[0].PassID)
}

func TestScanAllPluginFailureDegradesNotFails(t *testing.T) {
	reg := fleetRegistry(t, "123456789012")
	healthy := &fakePlugin{name: "iam", findings: []model.Finding{failedFinding("iam_no_mfa", model.SeverityHigh)}}
	broken := &fakePlugin{name: "ec2", err: errors.New("throttled")}

	svc := NewService(reg, []scanner.Plugin{healthy, broken}, &fakeBuilder{}, &fakeVerifier{}, 0, zerolog.Nop())
	results := svc.ScanAll(context.Background(), Filter{})

	require.Len(t, results, 1)
	result := results[0]
	assert.False(t, result.Failed(), "plugin errors must not fail the account")
	assert.Len(t, result.Findings, 1)
	assert.Equal(t, []string{"ec2", "iam"}, result.PluginsRun)

	account, _ := reg.Get("123456789012")
	assert.Equal(t, model.StatusActive, account.Status)
}

func TestScanAllSkipsIneligibleAccounts(t *testing.T) {
	reg := fleetRegistry(t, "111111111111", "222222222222")
	require.NoError(t, reg.UpdateStatus("222222222222", model.StatusDisconnected, ""))

	svc := NewService(reg, nil, &fakeBuilder{}, &fakeVerifier{}, 0, zerolog.Nop())
	results := svc.ScanAll(context.Background(), Filter{})

	require.Len(t, results, 1)
	assert.Equal(t, "111111111111", results[0].AccountID)
}

func TestScanAllEnvironmentFilter(t *testing.T) {
	reg := registry.NewService()
	for _, tc := range []struct{ id, env string }{
		{"111111111111", "production"},
		{"222222222222", "staging"},
	} {
		require.NoError(t, reg.Add(model.Account{
			AccountID:   tc.id,
			Name:        "acct-" + tc.id,
			Environment: tc.env,
			AuthMethod:  model.AuthInstance,
			Regions:     []string{"us-east-1"},
		}))
	}

	svc := NewService(reg, nil, &fakeBuilder{}, &fakeVerifier{}, 0, zerolog.Nop())
	results := svc.ScanAll(context.Background(), Filter{Environment: "production"})

	require.Len(t, results, 1)
	assert.Equal(t, "111111111111", results[0].AccountID)
}

func TestScanAllCancellationKeepsCollectedResults(t *testing.T) {
	reg := fleetRegistry(t, "111111111111", "222222222222", "333333333333")
	slow := &fakePlugin{name: "slow", delay: 5 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	// Ceiling of 1 serializes accounts; cancel while the first is
	// blocked so later accounts never start.
	svc := NewService(reg, []scanner.Plugin{slow}, &fakeBuilder{}, &fakeVerifier{}, 1, zerolog.Nop())

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()
	results := svc.ScanAll(ctx, Filter{})

	assert.LessOrEqual(t, len(results), 2, "cancellation stops launching new account tasks")
	for _, result := range results {
		assert.Equal(t, "111111111111", result.AccountID)
	}
	// Cancellation must not poison registry state for unscanned accounts.
	untouched, _ := reg.Get("333333333333")
	assert.Equal(t, model.StatusPending, untouched.Status)
}

func TestScanAllRespectsConcurrencyCeiling(t *testing.T) {
	ids := []string{"111111111111", "222222222222", "333333333333", "444444444444"}
	reg := fleetRegistry(t, ids...)

	var inFlight, peak atomic.Int32
	gate := &gatePlugin{inFlight: &inFlight, peak: &peak}

	svc := NewService(reg, []scanner.Plugin{gate}, &fakeBuilder{}, &fakeVerifier{}, 2, zerolog.Nop())
	results := svc.ScanAll(context.Background(), Filter{})

	require.Len(t, results, len(ids))
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

type gatePlugin struct {
	inFlight *atomic.Int32
	peak     *atomic.Int32
}

func (p *gatePlugin) Name() string { return "gate" }

func (p *gatePlugin) Scan(_ context.Context, _ scanner.Session) ([]model.Finding, error) {
	n := p.inFlight.Add(1)
	for {
		old := p.peak.Load()
		if n <= old || p.peak.CompareAndSwap(old, n) {
			break
		}
	}
	time.Sleep(20 * time.Millisecond)
	p.inFlight.Add(-1)
	return nil, nil
}

func TestAggregateResults(t *testing.T) {
	results := []model.AccountScanResult{
		{
			AccountID: "111111111111",
			Findings: []model.Finding{
				failedFinding("iam_no_mfa", model.SeverityHigh),
				failedFinding("iam_stale_keys", model.SeverityMedium),
				failedFinding("s3_public_bucket", model.SeverityCritical),
			},
			StartedAt: time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
			Duration:  time.Minute,
		},
		{
			AccountID: "222222222222",
			Findings:  []model.Finding{failedFinding("ec2_open_ssh", "bogus")},
			StartedAt: time.Date(2026, 8, 1, 10, 2, 0, 0, time.UTC),
			Duration:  time.Minute,
		},
		{
			AccountID: "333333333333",
			Error:     "session acquisition failed: no trust",
			StartedAt: time.Date(2026, 8, 1, 10, 4, 0, 0, time.UTC),
		},
	}

	svc := NewService(registry.NewService(), nil, &fakeBuilder{}, &fakeVerifier{}, 0, zerolog.Nop())
	summary := svc.AggregateResults(results)

	assert.Equal(t, 4, summary.TotalFindings)
	assert.Equal(t, 2, summary.SucceededAccounts)
	assert.Equal(t, 1, summary.FailedAccounts)
	assert.Equal(t, 1, summary.FindingsBySeverity[model.SeverityCritical])
	assert.Equal(t, 1, summary.FindingsBySeverity[model.SeverityHigh])
	// Unknown severities count as MEDIUM.
	assert.Equal(t, 2, summary.FindingsBySeverity[model.SeverityMedium])
	assert.Equal(t, 3, summary.FindingsByAccount["111111111111"])
	assert.Equal(t, 2, summary.FindingsByFamily["iam"])
	assert.Equal(t, 1, summary.FindingsByFamily["s3"])
	assert.Equal(t, time.Date(2026, 8, 1, 10, 3, 0, 0, time.UTC), summary.ScannedAt)
}

func TestAggregateResultsIdempotent(t *testing.T) {
	results := []model.AccountScanResult{
		{
			AccountID: "111111111111",
			Findings:  []model.Finding{failedFinding("iam_no_mfa", model.SeverityHigh)},
			StartedAt: time.Now().UTC(),
			Duration:  time.Second,
		},
		{AccountID: "222222222222", Error: "failed"},
	}

	svc := NewService(registry.NewService(), nil, &fakeBuilder{}, &fakeVerifier{}, 0, zerolog.Nop())
	first := svc.AggregateResults(results)
	second := svc.AggregateResults(results)
	assert.Equal(t, first, second)
}
