// Package scanner defines the capability contract between the scan
// orchestrator and individual rule engines.
package scanner

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/thirukguru/aws-fleetscan/model"
)

// Session is the verified, account-scoped context handed to plugins.
type Session struct {
	Config  aws.Config
	Account model.Account
	// CallerARN is the identity the session verified as.
	CallerARN string
}

// Plugin is one rule engine. The orchestrator treats plugins as opaque:
// a plugin error degrades the account's result but never aborts it.
type Plugin interface {
	// Name identifies the plugin in scan results and logs.
	Name() string
	// Scan inspects resources reachable through the session and returns
	// pass/fail findings. Implementations must honor ctx cancellation.
	Scan(ctx context.Context, sess Session) ([]model.Finding, error)
}
