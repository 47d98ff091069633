package model

import "strings"

// Severity labels used across scanners, scoring, and storage.
const (
	SeverityCritical = "CRITICAL"
	SeverityHigh     = "HIGH"
	SeverityMedium   = "MEDIUM"
	SeverityLow      = "LOW"
)

// Finding is one scanner-reported observation about a resource. Passed
// findings record a check that held; failed findings carry the risk.
type Finding struct {
	RuleID       string            `json:"rule_id"`
	ResourceID   string            `json:"resource_id"`
	ResourceName string            `json:"resource_name,omitempty"`
	Region       string            `json:"region,omitempty"`
	Severity     string            `json:"severity"`
	Passed       bool              `json:"passed"`
	Title        string            `json:"title"`
	Description  string            `json:"description,omitempty"`
	Remediation  string            `json:"remediation,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`

	// Stamped by the orchestrator before results are stored.
	AccountID   string `json:"account_id,omitempty"`
	AccountName string `json:"account_name,omitempty"`
	Environment string `json:"environment,omitempty"`
}

// ScannerFamily derives the scanner family from the rule id prefix,
// e.g. "iam_stale_keys" -> "iam".
func (f Finding) ScannerFamily() string {
	if i := strings.Index(f.RuleID, "_"); i > 0 {
		return f.RuleID[:i]
	}
	return f.RuleID
}

// NormalizeSeverity maps unknown or missing severities to MEDIUM so a
// misbehaving scanner cannot skew scoring.
func NormalizeSeverity(s string) string {
	switch strings.ToUpper(s) {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return strings.ToUpper(s)
	default:
		return SeverityMedium
	}
}
