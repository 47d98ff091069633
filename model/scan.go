package model

import "time"

// AccountScanResult is the immutable outcome of one orchestration pass
// over one account. Error and Findings are mutually exclusive: a failed
// result carries no findings.
type AccountScanResult struct {
	// PassID ties the result to the orchestration pass that produced it.
	PassID      string        `json:"pass_id,omitempty"`
	AccountID   string        `json:"account_id"`
	AccountName string        `json:"account_name"`
	Environment string        `json:"environment,omitempty"`
	Findings    []Finding     `json:"findings"`
	Duration    time.Duration `json:"duration"`
	PluginsRun  []string      `json:"plugins_run"`
	Error       string        `json:"error,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
}

// Failed reports whether the scan ended with a top-level error.
func (r AccountScanResult) Failed() bool {
	return r.Error != ""
}

// Summary aggregates a set of account scan results. It is a pure
// projection: aggregating the same result set twice yields equal
// summaries.
type Summary struct {
	TotalFindings      int            `json:"total_findings"`
	FindingsBySeverity map[string]int `json:"findings_by_severity"`
	FindingsByAccount  map[string]int `json:"findings_by_account"`
	FindingsByFamily   map[string]int `json:"findings_by_family"`
	SucceededAccounts  int            `json:"succeeded_accounts"`
	FailedAccounts     int            `json:"failed_accounts"`
	ScannedAt          time.Time      `json:"scanned_at"`
}
