// Package lambdascan audits Lambda runtime age, exposed secrets, and
// public invocation policies.
package lambdascan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
	"github.com/aws/smithy-go"
	"github.com/thirukguru/aws-fleetscan/model"
	"github.com/thirukguru/aws-fleetscan/service/scanner"
)

// deprecatedRuntimes are runtimes past their AWS end-of-support date.
var deprecatedRuntimes = map[types.Runtime]struct{}{
	types.RuntimePython27:     {},
	types.RuntimePython36:     {},
	types.RuntimePython37:     {},
	types.RuntimeNodejs10x:    {},
	types.RuntimeNodejs12x:    {},
	types.RuntimeNodejs14x:    {},
	types.RuntimeRuby25:       {},
	types.RuntimeRuby27:       {},
	types.RuntimeGo1x:         {},
	types.RuntimeDotnetcore21: {},
	types.RuntimeDotnetcore31: {},
}

// secretEnvMarkers flag environment variable names that commonly carry
// credentials inline.
var secretEnvMarkers = []string{"SECRET", "PASSWORD", "PASSWD", "API_KEY", "ACCESS_KEY", "TOKEN", "PRIVATE_KEY"}

// ClientAPI is the narrow Lambda surface the plugin depends on.
type ClientAPI interface {
	ListFunctions(ctx context.Context, params *lambda.ListFunctionsInput, optFns ...func(*lambda.Options)) (*lambda.ListFunctionsOutput, error)
	GetPolicy(ctx context.Context, params *lambda.GetPolicyInput, optFns ...func(*lambda.Options)) (*lambda.GetPolicyOutput, error)
}

type plugin struct {
	newClient func(cfg aws.Config) ClientAPI
}

// New creates the Lambda posture plugin.
func New() scanner.Plugin {
	return &plugin{
		newClient: func(cfg aws.Config) ClientAPI { return lambda.NewFromConfig(cfg) },
	}
}

func (p *plugin) Name() string { return "lambda" }

func (p *plugin) Scan(ctx context.Context, sess scanner.Session) ([]model.Finding, error) {
	client := p.newClient(sess.Config)

	var findings []model.Finding
	input := &lambda.ListFunctionsInput{}
	for {
		out, err := client.ListFunctions(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("listing functions: %w", err)
		}

		for _, fn := range out.Functions {
			findings = append(findings, checkRuntime(fn, sess.Config.Region), checkEnvSecrets(fn, sess.Config.Region))

			policyFinding, err := checkResourcePolicy(ctx, client, fn, sess.Config.Region)
			if err != nil {
				return nil, err
			}
			findings = append(findings, policyFinding)
		}

		if out.NextMarker == nil {
			return findings, nil
		}
		input.Marker = out.NextMarker
	}
}

func checkRuntime(fn types.FunctionConfiguration, region string) model.Finding {
	_, deprecated := deprecatedRuntimes[fn.Runtime]
	return model.Finding{
		RuleID:       "lambda_deprecated_runtime",
		ResourceID:   aws.ToString(fn.FunctionArn),
		ResourceName: aws.ToString(fn.FunctionName),
		Region:       region,
		Severity:     model.SeverityHigh,
		Passed:       !deprecated,
		Title:        "Function uses a deprecated runtime",
		Description:  fmt.Sprintf("Runtime is %s", fn.Runtime),
		Remediation:  "Migrate the function to a supported runtime version",
	}
}

func checkEnvSecrets(fn types.FunctionConfiguration, region string) model.Finding {
	finding := model.Finding{
		RuleID:       "lambda_env_secrets",
		ResourceID:   aws.ToString(fn.FunctionArn),
		ResourceName: aws.ToString(fn.FunctionName),
		Region:       region,
		Severity:     model.SeverityCritical,
		Passed:       true,
		Title:        "Function environment carries inline secrets",
		Remediation:  "Move secrets to Secrets Manager or SSM Parameter Store",
	}

	if fn.Environment == nil {
		return finding
	}

	var flagged []string
	for name, value := range fn.Environment.Variables {
		if value == "" {
			continue
		}
		upper := strings.ToUpper(name)
		for _, marker := range secretEnvMarkers {
			if strings.Contains(upper, marker) {
				flagged = append(flagged, name)
				break
			}
		}
	}

	if len(flagged) > 0 {
		finding.Passed = false
		finding.Description = fmt.Sprintf("%d environment variables look like secrets", len(flagged))
		finding.Metadata = map[string]string{"variables": strings.Join(flagged, ",")}
	}
	return finding
}

func checkResourcePolicy(ctx context.Context, client ClientAPI, fn types.FunctionConfiguration, region string) (model.Finding, error) {
	finding := model.Finding{
		RuleID:       "lambda_public_policy",
		ResourceID:   aws.ToString(fn.FunctionArn),
		ResourceName: aws.ToString(fn.FunctionName),
		Region:       region,
		Severity:     model.SeverityCritical,
		Passed:       true,
		Title:        "Function resource policy allows public invocation",
		Remediation:  "Scope the resource policy principal to known accounts or services",
	}

	out, err := client.GetPolicy(ctx, &lambda.GetPolicyInput{FunctionName: fn.FunctionName})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ResourceNotFoundException" {
			return finding, nil
		}
		return model.Finding{}, fmt.Errorf("getting policy for %s: %w", aws.ToString(fn.FunctionName), err)
	}

	if policyAllowsPublic(aws.ToString(out.Policy)) {
		finding.Passed = false
		finding.Description = "Policy grants lambda:InvokeFunction to principal *"
	}
	return finding, nil
}

func policyAllowsPublic(policy string) bool {
	var doc struct {
		Statement []struct {
			Effect    string      `json:"Effect"`
			Principal interface{} `json:"Principal"`
		} `json:"Statement"`
	}
	if err := json.Unmarshal([]byte(policy), &doc); err != nil {
		return false
	}

	for _, stmt := range doc.Statement {
		if stmt.Effect != "Allow" {
			continue
		}
		switch principal := stmt.Principal.(type) {
		case string:
			if principal == "*" {
				return true
			}
		case map[string]interface{}:
			if v, ok := principal["AWS"].(string); ok && v == "*" {
				return true
			}
		}
	}
	return false
}
