// Package iamscan audits IAM identity hygiene within one account.
package iamscan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/aws/smithy-go"
	"github.com/thirukguru/aws-fleetscan/model"
	"github.com/thirukguru/aws-fleetscan/service/scanner"
)

// maxKeyAgeDays is the rotation threshold for active access keys.
const maxKeyAgeDays = 90

// ClientAPI is the narrow IAM surface the plugin depends on.
type ClientAPI interface {
	ListUsers(ctx context.Context, params *iam.ListUsersInput, optFns ...func(*iam.Options)) (*iam.ListUsersOutput, error)
	ListMFADevices(ctx context.Context, params *iam.ListMFADevicesInput, optFns ...func(*iam.Options)) (*iam.ListMFADevicesOutput, error)
	ListAccessKeys(ctx context.Context, params *iam.ListAccessKeysInput, optFns ...func(*iam.Options)) (*iam.ListAccessKeysOutput, error)
	GetAccountPasswordPolicy(ctx context.Context, params *iam.GetAccountPasswordPolicyInput, optFns ...func(*iam.Options)) (*iam.GetAccountPasswordPolicyOutput, error)
}

type plugin struct {
	newClient func(cfg aws.Config) ClientAPI
	now       func() time.Time
}

// New creates the IAM hygiene plugin.
func New() scanner.Plugin {
	return &plugin{
		newClient: func(cfg aws.Config) ClientAPI { return iam.NewFromConfig(cfg) },
		now:       time.Now,
	}
}

func (p *plugin) Name() string { return "iam" }

func (p *plugin) Scan(ctx context.Context, sess scanner.Session) ([]model.Finding, error) {
	client := p.newClient(sess.Config)

	users, err := listUsers(ctx, client)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}

	var findings []model.Finding
	for _, user := range users {
		userFindings, err := p.checkUser(ctx, client, user)
		if err != nil {
			return nil, err
		}
		findings = append(findings, userFindings...)
	}

	policyFinding, err := p.checkPasswordPolicy(ctx, client)
	if err != nil {
		return nil, err
	}
	findings = append(findings, policyFinding)

	return findings, nil
}

func (p *plugin) checkUser(ctx context.Context, client ClientAPI, user types.User) ([]model.Finding, error) {
	userName := aws.ToString(user.UserName)
	userARN := aws.ToString(user.Arn)

	mfa, err := client.ListMFADevices(ctx, &iam.ListMFADevicesInput{UserName: user.UserName})
	if err != nil {
		return nil, fmt.Errorf("listing MFA devices for %s: %w", userName, err)
	}

	findings := []model.Finding{{
		RuleID:       "iam_user_no_mfa",
		ResourceID:   userARN,
		ResourceName: userName,
		Severity:     model.SeverityHigh,
		Passed:       len(mfa.MFADevices) > 0,
		Title:        "IAM user has no MFA device",
		Description:  fmt.Sprintf("User %s has %d MFA devices registered", userName, len(mfa.MFADevices)),
		Remediation:  "Register a virtual or hardware MFA device for every IAM user",
	}}

	keys, err := client.ListAccessKeys(ctx, &iam.ListAccessKeysInput{UserName: user.UserName})
	if err != nil {
		return nil, fmt.Errorf("listing access keys for %s: %w", userName, err)
	}

	for _, key := range keys.AccessKeyMetadata {
		if key.Status != types.StatusTypeActive || key.CreateDate == nil {
			continue
		}
		age := int(p.now().UTC().Sub(*key.CreateDate).Hours() / 24)
		findings = append(findings, model.Finding{
			RuleID:       "iam_stale_access_key",
			ResourceID:   aws.ToString(key.AccessKeyId),
			ResourceName: userName,
			Severity:     model.SeverityMedium,
			Passed:       age <= maxKeyAgeDays,
			Title:        "Active access key exceeds rotation age",
			Description:  fmt.Sprintf("Access key for %s is %d days old", userName, age),
			Remediation:  fmt.Sprintf("Rotate access keys older than %d days", maxKeyAgeDays),
			Metadata:     map[string]string{"age_days": fmt.Sprintf("%d", age)},
		})
	}

	return findings, nil
}

func (p *plugin) checkPasswordPolicy(ctx context.Context, client ClientAPI) (model.Finding, error) {
	finding := model.Finding{
		RuleID:      "iam_password_policy",
		ResourceID:  "account-password-policy",
		Severity:    model.SeverityMedium,
		Title:       "Account password policy is weak or missing",
		Remediation: "Set a password policy requiring length >= 14 and symbol use",
	}

	out, err := client.GetAccountPasswordPolicy(ctx, &iam.GetAccountPasswordPolicyInput{})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NoSuchEntity" {
			finding.Description = "No account password policy is configured"
			return finding, nil
		}
		return model.Finding{}, fmt.Errorf("getting password policy: %w", err)
	}

	minLength := aws.ToInt32(out.PasswordPolicy.MinimumPasswordLength)
	finding.Passed = minLength >= 14 && out.PasswordPolicy.RequireSymbols
	finding.Description = fmt.Sprintf("Password policy requires minimum length %d", minLength)
	return finding, nil
}

func listUsers(ctx context.Context, client ClientAPI) ([]types.User, error) {
	var users []types.User
	input := &iam.ListUsersInput{}
	for {
		out, err := client.ListUsers(ctx, input)
		if err != nil {
			return nil, err
		}
		users = append(users, out.Users...)
		if !out.IsTruncated {
			return users, nil
		}
		input.Marker = out.Marker
	}
}
