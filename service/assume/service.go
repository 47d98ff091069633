// Package assume issues and caches temporary cross-account credentials
// via STS role assumption.
package assume

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	ststypes "github.com/aws/aws-sdk-go-v2/service/sts/types"
	"github.com/rs/zerolog"
	"github.com/thirukguru/aws-fleetscan/model"
)

// NewService creates a new role assumption manager. The cache may be
// shared across managers; the region is the default for built sessions.
func NewService(client STSClientAPI, cache CredentialCache, region string, logger zerolog.Logger) Service {
	return &service{
		client: client,
		cache:  cache,
		logger: logger.With().Str("component", "assume").Logger(),
		region: region,
	}
}

func (s *service) GenerateExternalID() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate external id: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *service) AssumeRole(ctx context.Context, input AssumeRoleInput) (model.Credential, error) {
	if !input.NoCache {
		if cred, ok := s.cache.Get(input.RoleARN); ok {
			return cred, nil
		}
	}

	duration := clampDuration(input.DurationSeconds)
	sessionName := input.SessionName
	if sessionName == "" {
		sessionName = defaultSessionName
	}

	req := &sts.AssumeRoleInput{
		RoleArn:         aws.String(input.RoleARN),
		RoleSessionName: aws.String(sessionName),
		DurationSeconds: aws.Int32(duration),
	}
	if input.ExternalID != "" {
		req.ExternalId = aws.String(input.ExternalID)
	}
	if input.MFASerial != "" && input.MFAToken != "" {
		req.SerialNumber = aws.String(input.MFASerial)
		req.TokenCode = aws.String(input.MFAToken)
	}
	if input.SessionPolicy != "" {
		req.Policy = aws.String(input.SessionPolicy)
	}

	out, err := s.client.AssumeRole(ctx, req)
	if err != nil {
		exchErr := newExchangeError("AssumeRole", input.RoleARN, err, input.ExternalID != "")
		s.logger.Error().
			Str("role_arn", input.RoleARN).
			Str("category", string(exchErr.Category)).
			Err(err).
			Msg("role assumption failed")
		return model.Credential{}, exchErr
	}

	cred := credentialFromSTS(input.RoleARN, out.Credentials)
	if !input.NoCache {
		s.cache.Put(cred)
	}
	s.logger.Debug().
		Str("role_arn", input.RoleARN).
		Time("expiration", cred.Expiration).
		Msg("role assumed")
	return cred, nil
}

func (s *service) GetSessionForRole(ctx context.Context, roleARN, externalID string, durationSeconds int32, region string) (aws.Config, error) {
	cred, err := s.AssumeRole(ctx, AssumeRoleInput{
		RoleARN:         roleARN,
		ExternalID:      externalID,
		DurationSeconds: durationSeconds,
	})
	if err != nil {
		return aws.Config{}, err
	}
	if region == "" {
		region = s.region
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
		return aws.Config{}, fmt.Errorf("failed to build session config for %s: %w", roleARN, err)
	}
	return cfg, nil
}

func (s *service) RefreshCredentials(ctx context.Context, roleARN string) *model.Credential {
	s.cache.Invalidate(roleARN)

	cred, err := s.AssumeRole(ctx, AssumeRoleInput{RoleARN: roleARN})
	if err != nil {
		// Refresh is best-effort; the stale entry is already gone and
		// the next AssumeRole will surface the real error.
		s.logger.Warn().Str("role_arn", roleARN).Err(err).Msg("credential refresh failed")
		return nil
	}
	return &cred
}

func (s *service) ValidateTrustRelationship(ctx context.Context, roleARN, expectedPrincipal string) ValidationReport {
	report := ValidationReport{RoleARN: roleARN, CheckedAt: time.Now().UTC()}

	identity, err := s.client.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		report.Issues = append(report.Issues, ValidationIssue{
			Category: classifyExchangeError(err, false),
			Detail:   fmt.Sprintf("caller identity check failed: %v", err),
		})
		return report
	}
	report.CallerARN = aws.ToString(identity.Arn)
	report.CallerAccount = aws.ToString(identity.Account)

	if expectedPrincipal != "" && report.CallerARN != expectedPrincipal {
		report.Issues = append(report.Issues, ValidationIssue{
			Category: CategoryTrustRejected,
			Detail:   fmt.Sprintf("caller is %s, trust policy likely expects %s", report.CallerARN, expectedPrincipal),
		})
	}

	// Trial assumption at minimum duration, bypassing the cache so the
	// check exercises the live trust relationship.
	_, err = s.AssumeRole(ctx, AssumeRoleInput{
		RoleARN:         roleARN,
		SessionName:     "fleetscan-trust-check",
		DurationSeconds: int32(MinSessionDuration.Seconds()),
		NoCache:         true,
	})
	if err != nil {
		category := CategoryOther
		var exchErr *ExchangeError
		if errors.As(err, &exchErr) {
			category = exchErr.Category
		}
		report.Issues = append(report.Issues, ValidationIssue{
			Category: category,
			Detail:   fmt.Sprintf("trial assumption failed: %v", err),
		})
		return report
	}

	report.AssumptionOK = true
	return report
}

func clampDuration(seconds int32) int32 {
	min := int32(MinSessionDuration.Seconds())
	max := int32(MaxSessionDuration.Seconds())
	if seconds < min {
		return min
	}
	if seconds > max {
		return max
	}
	return seconds
}

func credentialFromSTS(roleARN string, creds *ststypes.Credentials) model.Credential {
	return model.Credential{
		AccessKeyID:     aws.ToString(creds.AccessKeyId),
		SecretAccessKey: aws.ToString(creds.SecretAccessKey),
		SessionToken:    aws.ToString(creds.SessionToken),
		Expiration:      aws.ToTime(creds.Expiration),
		RoleARN:         roleARN,
		IssuedAt:        time.Now().UTC(),
	}
}
