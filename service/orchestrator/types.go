package orchestrator

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/rs/zerolog"
	"github.com/thirukguru/aws-fleetscan/model"
	"github.com/thirukguru/aws-fleetscan/service/registry"
	"github.com/thirukguru/aws-fleetscan/service/scanner"
)

// DefaultConcurrency bounds simultaneous account scans so a large fleet
// does not trip provider rate limits.
const DefaultConcurrency = 10

// sessionDurationSeconds is the fixed lifetime requested for per-scan
// role sessions.
const sessionDurationSeconds = 3600

// Filter narrows ScanAll to a slice of the fleet. Empty fields match
// everything.
type Filter struct {
	Environment  string
	BusinessUnit string
}

// SessionBuilder constructs a provider config for one account according
// to its auth method.
type SessionBuilder interface {
	Build(ctx context.Context, account model.Account) (aws.Config, error)
}

// IdentityVerifier resolves the caller identity behind a session. It
// returns the provider account id and caller ARN.
type IdentityVerifier interface {
	Verify(ctx context.Context, cfg aws.Config) (accountID, callerARN string, err error)
}

type service struct {
	registry    registry.Service
	plugins     []scanner.Plugin
	sessions    SessionBuilder
	verifier    IdentityVerifier
	logger      zerolog.Logger
	concurrency int
}

// Service is the interface for the scan orchestrator.
type Service interface {
	// ScanAll scans every eligible account concurrently, isolating
	// failures per account. Cancelling ctx stops launching new work;
	// results collected so far are still returned.
	ScanAll(ctx context.Context, filter Filter) []model.AccountScanResult

	// AggregateResults summarizes a result set. It is pure and
	// order-independent over its input.
	AggregateResults(results []model.AccountScanResult) model.Summary
}
