package dashboard

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/thirukguru/aws-fleetscan/model"
	"github.com/thirukguru/aws-fleetscan/service/score"
	"github.com/thirukguru/aws-fleetscan/service/storage"
)

// HistoryWindow bounds retained scan history.
const HistoryWindow = 90 * 24 * time.Hour

// HistoryEntry records the organization score at one point in time.
type HistoryEntry struct {
	Timestamp time.Time           `json:"timestamp"`
	Score     model.SecurityScore `json:"score"`
}

// TrendPoint is one sample of a trailing trend series.
type TrendPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Score     float64   `json:"score"`
}

// ScoreBand labels for the five-way account breakdown.
const (
	BandExcellent = "90+"
	BandGood      = "80-89"
	BandFair      = "70-79"
	BandPoor      = "60-69"
	BandCritical  = "<60"
)

// OrganizationSummary is the aggregate dashboard view.
type OrganizationSummary struct {
	OrgScore       model.SecurityScore  `json:"org_score"`
	AccountScores  []model.AccountScore `json:"account_scores"`
	ScoreBands     map[string]int       `json:"score_bands"`
	TopFindings    []FindingOccurrence  `json:"top_findings"`
	FailedAccounts int                  `json:"failed_accounts"`
	Trend30Days    []TrendPoint         `json:"trend_30_days"`
	Trend60Days    []TrendPoint         `json:"trend_60_days"`
	Trend90Days    []TrendPoint         `json:"trend_90_days"`
	GeneratedAt    time.Time            `json:"generated_at"`
}

// FindingOccurrence counts how often one rule fails across the fleet.
type FindingOccurrence struct {
	RuleID      string `json:"rule_id"`
	Title       string `json:"title"`
	Severity    string `json:"severity"`
	Occurrences int    `json:"occurrences"`
}

// HeatMapEntry is one account's cell in the fleet heat map.
type HeatMapEntry struct {
	AccountID   string  `json:"account_id"`
	AccountName string  `json:"account_name"`
	Environment string  `json:"environment,omitempty"`
	Score       float64 `json:"score"`
	Grade       string  `json:"grade"`
	Color       string  `json:"color"`
}

// Recommendation is one prioritized remediation suggestion.
type Recommendation struct {
	RuleID           string  `json:"rule_id"`
	Title            string  `json:"title"`
	Severity         string  `json:"severity"`
	AffectedAccounts int     `json:"affected_accounts"`
	Occurrences      int     `json:"occurrences"`
	Priority         float64 `json:"priority"`
	Remediation      string  `json:"remediation,omitempty"`
}

// Payload is the full read-model export consumed by outer surfaces.
type Payload struct {
	Summary         OrganizationSummary `json:"summary"`
	HeatMap         []HeatMapEntry      `json:"heat_map"`
	Recommendations []Recommendation    `json:"recommendations"`
}

type service struct {
	scorer score.Service
	store  storage.Service
	logger zerolog.Logger

	mu      sync.Mutex
	history []HistoryEntry
}

// Service is the interface for the security dashboard.
type Service interface {
	// RecordScanResults appends the result set's organization score to
	// history and prunes entries older than the history window.
	RecordScanResults(ctx context.Context, results []model.AccountScanResult)

	GetOrganizationSummary(results []model.AccountScanResult) OrganizationSummary

	// GetHeatMapData returns one entry per scanned account, worst
	// score first.
	GetHeatMapData(results []model.AccountScanResult) []HeatMapEntry

	// GetRecommendations groups failing findings by rule and returns
	// the top limit by priority.
	GetRecommendations(results []model.AccountScanResult, limit int) []Recommendation

	// ExportSummary bundles summary, heat map, and recommendations.
	ExportSummary(results []model.AccountScanResult) Payload

	// History returns a copy of the retained history, oldest first.
	History() []HistoryEntry
}
