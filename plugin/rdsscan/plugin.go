// Package rdsscan audits RDS instance exposure and durability settings.
package rdsscan

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rds"
	"github.com/aws/aws-sdk-go-v2/service/rds/types"
	"github.com/thirukguru/aws-fleetscan/model"
	"github.com/thirukguru/aws-fleetscan/service/scanner"
)

// minBackupRetentionDays is the floor for automated backup retention.
const minBackupRetentionDays = 7

// ClientAPI is the narrow RDS surface the plugin depends on.
type ClientAPI interface {
	DescribeDBInstances(ctx context.Context, params *rds.DescribeDBInstancesInput, optFns ...func(*rds.Options)) (*rds.DescribeDBInstancesOutput, error)
}

type plugin struct {
	newClient func(cfg aws.Config) ClientAPI
}

// New creates the RDS posture plugin.
func New() scanner.Plugin {
	return &plugin{
		newClient: func(cfg aws.Config) ClientAPI { return rds.NewFromConfig(cfg) },
	}
}

func (p *plugin) Name() string { return "rds" }

func (p *plugin) Scan(ctx context.Context, sess scanner.Session) ([]model.Finding, error) {
	client := p.newClient(sess.Config)

	var findings []model.Finding
	input := &rds.DescribeDBInstancesInput{}
	for {
		out, err := client.DescribeDBInstances(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("describing db instances: %w", err)
		}

		for _, db := range out.DBInstances {
			findings = append(findings, checkInstance(db, sess.Config.Region)...)
		}

		if out.Marker == nil {
			return findings, nil
		}
		input.Marker = out.Marker
	}
}

func checkInstance(db types.DBInstance, region string) []model.Finding {
	id := aws.ToString(db.DBInstanceIdentifier)
	retention := aws.ToInt32(db.BackupRetentionPeriod)

	return []model.Finding{
		{
			RuleID:      "rds_public_access",
			ResourceID:  id,
			Region:      region,
			Severity:    model.SeverityCritical,
			Passed:      !aws.ToBool(db.PubliclyAccessible),
			Title:       "Database instance is publicly accessible",
			Remediation: "Disable public accessibility and route access through the VPC",
		},
		{
			RuleID:      "rds_storage_encryption",
			ResourceID:  id,
			Region:      region,
			Severity:    model.SeverityHigh,
			Passed:      aws.ToBool(db.StorageEncrypted),
			Title:       "Database storage is not encrypted",
			Remediation: "Recreate the instance from an encrypted snapshot",
		},
		{
			RuleID:      "rds_backup_retention",
			ResourceID:  id,
			Region:      region,
			Severity:    model.SeverityMedium,
			Passed:      retention >= minBackupRetentionDays,
			Title:       "Automated backup retention is too short",
			Description: fmt.Sprintf("Retention is %d days", retention),
			Remediation: fmt.Sprintf("Set backup retention to at least %d days", minBackupRetentionDays),
		},
		{
			RuleID:      "rds_deletion_protection",
			ResourceID:  id,
			Region:      region,
			Severity:    model.SeverityLow,
			Passed:      aws.ToBool(db.DeletionProtection),
			Title:       "Deletion protection is disabled",
			Remediation: "Enable deletion protection on production databases",
		},
	}
}
