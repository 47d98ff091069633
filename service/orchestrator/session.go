package orchestrator

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/thirukguru/aws-fleetscan/model"
	"github.com/thirukguru/aws-fleetscan/service/assume"
)

// NewSessionBuilder returns the default session builder. Static-key
// accounts build configs directly, assumed-role accounts go through the
// role assumption manager, and instance-identity accounts use the
// ambient credential chain.
func NewSessionBuilder(assumer assume.Service) SessionBuilder {
	return &sessionBuilder{assumer: assumer}
}

type sessionBuilder struct {
	assumer assume.Service
}

func (b *sessionBuilder) Build(ctx context.Context, account model.Account) (aws.Config, error) {
	region := account.PrimaryRegion()

	switch account.AuthMethod {
	case model.AuthAccessKeys:
		cfg, err := config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				account.AccessKeyID,
				account.SecretKey,
				"",
			)),
		)
		if err != nil {
			return aws.Config{}, fmt.Errorf("failed to build static-key config for %s: %w", account.AccountID, err)
		}
		return cfg, nil

	case model.AuthAssumedRole:
		cred, err := b.assumer.AssumeRole(ctx, assume.AssumeRoleInput{
			RoleARN:         account.RoleARN,
			SessionName:     "fleetscan-" + account.AccountID,
			ExternalID:      account.ExternalID,
			DurationSeconds: sessionDurationSeconds,
		})
		if err != nil {
			return aws.Config{}, err
		}
		cfg, err := config.LoadDefaultConfig(ctx,
			config.WithRegion(region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cred.AccessKeyID,
				cred.SecretAccessKey,
				cred.SessionToken,
			)),
		)
		if err != nil {
			return aws.Config{}, fmt.Errorf("failed to build assumed-role config for %s: %w", account.AccountID, err)
		}
		return cfg, nil

	case model.AuthInstance:
		cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
		if err != nil {
			return aws.Config{}, fmt.Errorf("failed to load ambient config for %s: %w", account.AccountID, err)
		}
		return cfg, nil

	default:
		return aws.Config{}, fmt.Errorf("account %s has unsupported auth method %q", account.AccountID, account.AuthMethod)
	}
}

// NewIdentityVerifier returns the default STS-backed identity verifier.
func NewIdentityVerifier() IdentityVerifier {
	return &stsVerifier{}
}

type stsVerifier struct{}

func (v *stsVerifier) Verify(ctx context.Context, cfg aws.Config) (string, string, error) {
	out, err := sts.NewFromConfig(cfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return "", "", fmt.Errorf("caller identity check failed: %w", err)
	}
	return aws.ToString(out.Account), aws.ToString(out.Arn), nil
}
