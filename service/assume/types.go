package assume

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/rs/zerolog"
	"github.com/thirukguru/aws-fleetscan/model"
)

// Duration bounds accepted by the provider for a role session. Requests
// outside this range are clamped, not rejected.
const (
	MinSessionDuration = 900 * time.Second
	MaxSessionDuration = 43200 * time.Second
)

const defaultSessionName = "fleetscan"

// STSClientAPI is the interface for the AWS STS client methods used by
// the service.
type STSClientAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

// AssumeRoleInput describes one credential exchange request.
type AssumeRoleInput struct {
	RoleARN         string
	SessionName     string
	ExternalID      string
	DurationSeconds int32
	MFASerial       string
	MFAToken        string
	SessionPolicy   string
	// NoCache bypasses the credential cache for both lookup and store.
	NoCache bool
}

// ValidationIssue is one categorized problem found while validating a
// trust relationship.
type ValidationIssue struct {
	Category ErrorCategory `json:"category"`
	Detail   string        `json:"detail"`
}

// ValidationReport is the outcome of a trust-relationship check.
type ValidationReport struct {
	RoleARN       string            `json:"role_arn"`
	CallerARN     string            `json:"caller_arn,omitempty"`
	CallerAccount string            `json:"caller_account,omitempty"`
	AssumptionOK  bool              `json:"assumption_ok"`
	Issues        []ValidationIssue `json:"issues,omitempty"`
	CheckedAt     time.Time         `json:"checked_at"`
}

type service struct {
	client STSClientAPI
	cache  CredentialCache
	logger zerolog.Logger
	region string
}

// CredentialCache is the cache consulted and populated by the manager.
type CredentialCache interface {
	Get(roleARN string) (model.Credential, bool)
	Put(cred model.Credential)
	Invalidate(roleARN string)
}

// Service is the interface for the role assumption manager.
type Service interface {
	// GenerateExternalID produces a cryptographically random, URL-safe
	// token for out-of-band trust policy configuration.
	GenerateExternalID() (string, error)

	// AssumeRole exchanges the caller's identity for temporary
	// credentials on the target role. Failures are returned as
	// *ExchangeError with a stable category; no retry is attempted.
	AssumeRole(ctx context.Context, input AssumeRoleInput) (model.Credential, error)

	// GetSessionForRole returns a provider config backed by freshly
	// assumed or cached credentials for the role.
	GetSessionForRole(ctx context.Context, roleARN, externalID string, durationSeconds int32, region string) (aws.Config, error)

	// RefreshCredentials drops any cached entry and re-issues. Refresh
	// is opportunistic: it returns nil instead of an error on failure.
	RefreshCredentials(ctx context.Context, roleARN string) *model.Credential

	// ValidateTrustRelationship probes caller identity and performs a
	// non-cached, minimum-duration trial assumption.
	ValidateTrustRelationship(ctx context.Context, roleARN, expectedPrincipal string) ValidationReport
}
