// Package s3scan audits S3 bucket exposure and encryption posture.
package s3scan

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/thirukguru/aws-fleetscan/model"
	"github.com/thirukguru/aws-fleetscan/service/scanner"
)

// ClientAPI is the narrow S3 surface the plugin depends on.
type ClientAPI interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	GetPublicAccessBlock(ctx context.Context, params *s3.GetPublicAccessBlockInput, optFns ...func(*s3.Options)) (*s3.GetPublicAccessBlockOutput, error)
	GetBucketEncryption(ctx context.Context, params *s3.GetBucketEncryptionInput, optFns ...func(*s3.Options)) (*s3.GetBucketEncryptionOutput, error)
	GetBucketVersioning(ctx context.Context, params *s3.GetBucketVersioningInput, optFns ...func(*s3.Options)) (*s3.GetBucketVersioningOutput, error)
}

type plugin struct {
	newClient func(cfg aws.Config) ClientAPI
}

// New creates the S3 posture plugin.
func New() scanner.Plugin {
	return &plugin{
		newClient: func(cfg aws.Config) ClientAPI { return s3.NewFromConfig(cfg) },
	}
}

func (p *plugin) Name() string { return "s3" }

func (p *plugin) Scan(ctx context.Context, sess scanner.Session) ([]model.Finding, error) {
	client := p.newClient(sess.Config)

	buckets, err := client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, fmt.Errorf("listing buckets: %w", err)
	}

	var findings []model.Finding
	for _, bucket := range buckets.Buckets {
		name := aws.ToString(bucket.Name)
		findings = append(findings,
			checkPublicAccess(ctx, client, name),
			checkEncryption(ctx, client, name),
			checkVersioning(ctx, client, name),
		)
	}
	return findings, nil
}

func checkPublicAccess(ctx context.Context, client ClientAPI, bucket string) model.Finding {
	finding := model.Finding{
		RuleID:       "s3_public_access_block",
		ResourceID:   bucket,
		ResourceName: bucket,
		Severity:     model.SeverityCritical,
		Title:        "Bucket public access block is not fully enabled",
		Remediation:  "Enable all four public access block settings on the bucket",
	}

	out, err := client.GetPublicAccessBlock(ctx, &s3.GetPublicAccessBlockInput{Bucket: aws.String(bucket)})
	if err != nil || out.PublicAccessBlockConfiguration == nil {
		// Missing configuration is treated as unblocked.
		finding.Description = "No public access block configuration found"
		return finding
	}

	cfg := out.PublicAccessBlockConfiguration
	finding.Passed = aws.ToBool(cfg.BlockPublicAcls) &&
		aws.ToBool(cfg.IgnorePublicAcls) &&
		aws.ToBool(cfg.BlockPublicPolicy) &&
		aws.ToBool(cfg.RestrictPublicBuckets)
	finding.Description = "Public access block configuration present"
	return finding
}

func checkEncryption(ctx context.Context, client ClientAPI, bucket string) model.Finding {
	finding := model.Finding{
		RuleID:       "s3_default_encryption",
		ResourceID:   bucket,
		ResourceName: bucket,
		Severity:     model.SeverityHigh,
		Title:        "Bucket has no default encryption",
		Remediation:  "Enable default encryption with SSE-S3 or SSE-KMS",
	}

	out, err := client.GetBucketEncryption(ctx, &s3.GetBucketEncryptionInput{Bucket: aws.String(bucket)})
	if err != nil || out.ServerSideEncryptionConfiguration == nil {
		finding.Description = "No server-side encryption configuration found"
		return finding
	}

	for _, rule := range out.ServerSideEncryptionConfiguration.Rules {
		if rule.ApplyServerSideEncryptionByDefault == nil {
			continue
		}
		algo := rule.ApplyServerSideEncryptionByDefault.SSEAlgorithm
		if algo == types.ServerSideEncryptionAes256 || algo == types.ServerSideEncryptionAwsKms {
			finding.Passed = true
			finding.Metadata = map[string]string{"algorithm": string(algo)}
			break
		}
	}
	return finding
}

func checkVersioning(ctx context.Context, client ClientAPI, bucket string) model.Finding {
	finding := model.Finding{
		RuleID:       "s3_versioning",
		ResourceID:   bucket,
		ResourceName: bucket,
		Severity:     model.SeverityLow,
		Title:        "Bucket versioning is disabled",
		Remediation:  "Enable versioning to protect against accidental deletion",
	}

	out, err := client.GetBucketVersioning(ctx, &s3.GetBucketVersioningInput{Bucket: aws.String(bucket)})
	if err == nil {
		finding.Passed = out.Status == types.BucketVersioningStatusEnabled
	}
	return finding
}
