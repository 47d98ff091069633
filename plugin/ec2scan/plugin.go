// Package ec2scan audits EC2 network exposure and instance hardening.
package ec2scan

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/thirukguru/aws-fleetscan/model"
	"github.com/thirukguru/aws-fleetscan/service/scanner"
)

const anyCIDR = "0.0.0.0/0"

// adminPorts are the remote-administration ports that must never be
// open to the internet.
var adminPorts = map[int32]string{
	22:   "SSH",
	3389: "RDP",
}

// ClientAPI is the narrow EC2 surface the plugin depends on.
type ClientAPI interface {
	DescribeSecurityGroups(ctx context.Context, params *ec2.DescribeSecurityGroupsInput, optFns ...func(*ec2.Options)) (*ec2.DescribeSecurityGroupsOutput, error)
	DescribeInstances(ctx context.Context, params *ec2.DescribeInstancesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

type plugin struct {
	newClient func(cfg aws.Config) ClientAPI
}

// New creates the EC2 exposure plugin.
func New() scanner.Plugin {
	return &plugin{
		newClient: func(cfg aws.Config) ClientAPI { return ec2.NewFromConfig(cfg) },
	}
}

func (p *plugin) Name() string { return "ec2" }

func (p *plugin) Scan(ctx context.Context, sess scanner.Session) ([]model.Finding, error) {
	client := p.newClient(sess.Config)
	region := sess.Config.Region

	findings, err := checkSecurityGroups(ctx, client, region)
	if err != nil {
		return nil, err
	}

	instanceFindings, err := checkInstances(ctx, client, region)
	if err != nil {
		return nil, err
	}
	return append(findings, instanceFindings...), nil
}

func checkSecurityGroups(ctx context.Context, client ClientAPI, region string) ([]model.Finding, error) {
	var findings []model.Finding

	input := &ec2.DescribeSecurityGroupsInput{}
	for {
		out, err := client.DescribeSecurityGroups(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("describing security groups: %w", err)
		}

		for _, group := range out.SecurityGroups {
			findings = append(findings, checkGroup(group, region))
		}

		if out.NextToken == nil {
			return findings, nil
		}
		input.NextToken = out.NextToken
	}
}

func checkGroup(group types.SecurityGroup, region string) model.Finding {
	finding := model.Finding{
		RuleID:       "ec2_open_admin_port",
		ResourceID:   aws.ToString(group.GroupId),
		ResourceName: aws.ToString(group.GroupName),
		Region:       region,
		Severity:     model.SeverityCritical,
		Passed:       true,
		Title:        "Security group opens an admin port to the internet",
		Remediation:  "Restrict SSH and RDP ingress to known CIDR ranges",
	}

	for _, rule := range group.IpPermissions {
		open := false
		for _, ipRange := range rule.IpRanges {
			if aws.ToString(ipRange.CidrIp) == anyCIDR {
				open = true
				break
			}
		}
		if !open {
			continue
		}

		from := aws.ToInt32(rule.FromPort)
		to := aws.ToInt32(rule.ToPort)
		for port, name := range adminPorts {
			if coversPort(rule, from, to, port) {
				finding.Passed = false
				finding.Description = fmt.Sprintf("%s (port %d) is reachable from %s", name, port, anyCIDR)
				if finding.Metadata == nil {
					finding.Metadata = map[string]string{}
				}
				finding.Metadata[name] = fmt.Sprintf("%d", port)
			}
		}
	}
	return finding
}

// coversPort reports whether an ingress rule includes the port. A rule
// with protocol -1 or no port bounds matches all ports.
func coversPort(rule types.IpPermission, from, to, port int32) bool {
	if aws.ToString(rule.IpProtocol) == "-1" {
		return true
	}
	if rule.FromPort == nil || rule.ToPort == nil {
		return true
	}
	return from <= port && port <= to
}

func checkInstances(ctx context.Context, client ClientAPI, region string) ([]model.Finding, error) {
	var findings []model.Finding

	input := &ec2.DescribeInstancesInput{}
	for {
		out, err := client.DescribeInstances(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("describing instances: %w", err)
		}

		for _, reservation := range out.Reservations {
			for _, instance := range reservation.Instances {
				if instance.State != nil && instance.State.Name == types.InstanceStateNameTerminated {
					continue
				}
				findings = append(findings, checkInstance(instance, region)...)
			}
		}

		if out.NextToken == nil {
			return findings, nil
		}
		input.NextToken = out.NextToken
	}
}

func checkInstance(instance types.Instance, region string) []model.Finding {
	id := aws.ToString(instance.InstanceId)

	imdsv2 := model.Finding{
		RuleID:      "ec2_imdsv2_required",
		ResourceID:  id,
		Region:      region,
		Severity:    model.SeverityHigh,
		Title:       "Instance does not enforce IMDSv2",
		Remediation: "Set HttpTokens to required in the instance metadata options",
	}
	if instance.MetadataOptions != nil {
		imdsv2.Passed = instance.MetadataOptions.HttpTokens == types.HttpTokensStateRequired
	}

	publicIP := model.Finding{
		RuleID:      "ec2_public_ip",
		ResourceID:  id,
		Region:      region,
		Severity:    model.SeverityMedium,
		Passed:      instance.PublicIpAddress == nil,
		Title:       "Instance has a public IP address",
		Remediation: "Place instances behind a load balancer or NAT and drop the public IP",
	}
	if instance.PublicIpAddress != nil {
		publicIP.Metadata = map[string]string{"public_ip": aws.ToString(instance.PublicIpAddress)}
	}

	return []model.Finding{imdsv2, publicIP}
}
