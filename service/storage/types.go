package storage

import (
	"context"
	"time"

	"github.com/thirukguru/aws-fleetscan/model"
)

// Service defines persistence and trend query operations for fleet scan
// snapshots.
type Service interface {
	SaveSnapshot(ctx context.Context, input SnapshotInput) (int64, error)
	GetTrends(days int) ([]TrendPoint, error)
	GetAccountTrends(accountID string, days int) ([]AccountTrendPoint, error)
	GetRecentSnapshots(limit int) ([]SnapshotSummary, error)
	PurgeOlderThan(ctx context.Context, days int) (int64, error)
	Close() error
}

// SnapshotInput is the payload saved after one orchestration pass.
type SnapshotInput struct {
	PassID        string
	Timestamp     time.Time
	OrgScore      model.SecurityScore
	AccountScores []model.AccountScore
	FailedCount   int
}

// TrendPoint is a daily organization-level aggregate.
type TrendPoint struct {
	Date     string  `json:"date"`
	OrgScore float64 `json:"org_score"`
	Critical int     `json:"critical"`
	High     int     `json:"high"`
	Medium   int     `json:"medium"`
	Low      int     `json:"low"`
	Total    int     `json:"total"`
}

// AccountTrendPoint is a daily aggregate for one account.
type AccountTrendPoint struct {
	AccountID string  `json:"account_id"`
	Date      string  `json:"date"`
	Score     float64 `json:"score"`
	Findings  int     `json:"findings"`
}

// SnapshotSummary provides compact snapshot metadata.
type SnapshotSummary struct {
	SnapshotID    int64
	PassID        string
	TakenAt       time.Time
	OrgScore      float64
	Grade         string
	TotalFindings int
	AccountCount  int
	FailedCount   int
}
