// Package dashboard derives organization-wide views and bounded trend
// history from fleet scan results.
package dashboard

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/thirukguru/aws-fleetscan/model"
	"github.com/thirukguru/aws-fleetscan/service/score"
	"github.com/thirukguru/aws-fleetscan/service/storage"
)

// NewService creates a new dashboard. The storage service is optional;
// when nil, history lives in memory only.
func NewService(scorer score.Service, store storage.Service, logger zerolog.Logger) Service {
	return &service{
		scorer: scorer,
		store:  store,
		logger: logger.With().Str("component", "dashboard").Logger(),
	}
}

func (s *service) RecordScanResults(ctx context.Context, results []model.AccountScanResult) {
	accountScores := s.accountScores(results)
	orgScore := s.scorer.CalculateOrgScore(accountScores)
	now := time.Now().UTC()

	s.mu.Lock()
	s.history = append(s.history, HistoryEntry{Timestamp: now, Score: orgScore})
	s.pruneLocked(now)
	s.mu.Unlock()

	if s.store == nil {
		return
	}
	passID := ""
	if len(results) > 0 {
		passID = results[0].PassID
	}
	if _, err := s.store.SaveSnapshot(ctx, storage.SnapshotInput{
		PassID:        passID,
		Timestamp:     now,
		OrgScore:      orgScore,
		AccountScores: accountScores,
		FailedCount:   countFailed(results),
	}); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist scan snapshot")
	}
}

// pruneLocked drops history outside the trailing window. Callers hold
// s.mu.
func (s *service) pruneLocked(now time.Time) {
	cutoff := now.Add(-HistoryWindow)
	kept := s.history[:0]
	for _, entry := range s.history {
		if entry.Timestamp.After(cutoff) {
			kept = append(kept, entry)
		}
	}
	s.history = kept
}

func (s *service) GetOrganizationSummary(results []model.AccountScanResult) OrganizationSummary {
	accountScores := s.accountScores(results)

	summary := OrganizationSummary{
		OrgScore:       s.scorer.CalculateOrgScore(accountScores),
		AccountScores:  accountScores,
		ScoreBands:     bandCounts(accountScores),
		TopFindings:    topFindings(results, 10),
		FailedAccounts: countFailed(results),
		Trend30Days:    s.trendSeries(30),
		Trend60Days:    s.trendSeries(60),
		Trend90Days:    s.trendSeries(90),
		GeneratedAt:    time.Now().UTC(),
	}
	return summary
}

func (s *service) GetHeatMapData(results []model.AccountScanResult) []HeatMapEntry {
	entries := make([]HeatMapEntry, 0, len(results))
	for _, result := range results {
		if result.Failed() {
			continue
		}
		sc := s.scorer.CalculateScore(result.Findings)
		entries = append(entries, HeatMapEntry{
			AccountID:   result.AccountID,
			AccountName: result.AccountName,
			Environment: result.Environment,
			Score:       sc.Score,
			Grade:       sc.Grade,
			Color:       heatColor(sc.Score),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score < entries[j].Score
		}
		return entries[i].AccountID < entries[j].AccountID
	})
	return entries
}

func (s *service) GetRecommendations(results []model.AccountScanResult, limit int) []Recommendation {
	type group struct {
		rec      Recommendation
		accounts map[string]struct{}
	}
	groups := make(map[string]*group)

	for _, result := range results {
		for _, finding := range result.Findings {
			if finding.Passed {
				continue
			}
			g, ok := groups[finding.RuleID]
			if !ok {
				g = &group{
					rec: Recommendation{
						RuleID:      finding.RuleID,
						Title:       finding.Title,
						Severity:    model.NormalizeSeverity(finding.Severity),
						Remediation: finding.Remediation,
					},
					accounts: make(map[string]struct{}),
				}
				groups[finding.RuleID] = g
			}
			g.rec.Occurrences++
			g.accounts[result.AccountID] = struct{}{}
		}
	}

	recommendations := make([]Recommendation, 0, len(groups))
	for _, g := range groups {
		g.rec.AffectedAccounts = len(g.accounts)
		g.rec.Priority = score.WeightFor(g.rec.Severity)*100 +
			float64(g.rec.AffectedAccounts)*10 +
			float64(g.rec.Occurrences)
		recommendations = append(recommendations, g.rec)
	}
	sort.Slice(recommendations, func(i, j int) bool {
		if recommendations[i].Priority != recommendations[j].Priority {
			return recommendations[i].Priority > recommendations[j].Priority
		}
		return recommendations[i].RuleID < recommendations[j].RuleID
	})

	if limit > 0 && len(recommendations) > limit {
		recommendations = recommendations[:limit]
	}
	return recommendations
}

func (s *service) ExportSummary(results []model.AccountScanResult) Payload {
	return Payload{
		Summary:         s.GetOrganizationSummary(results),
		HeatMap:         s.GetHeatMapData(results),
		Recommendations: s.GetRecommendations(results, 10),
	}
}

func (s *service) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

func (s *service) accountScores(results []model.AccountScanResult) []model.AccountScore {
	scores := make([]model.AccountScore, 0, len(results))
	for _, result := range results {
		if result.Failed() {
			continue
		}
		scores = append(scores, model.AccountScore{
			AccountID:   result.AccountID,
			AccountName: result.AccountName,
			Score:       s.scorer.CalculateScore(result.Findings),
		})
	}
	sort.Slice(scores, func(i, j int) bool {
		return scores[i].AccountID < scores[j].AccountID
	})
	return scores
}

func (s *service) trendSeries(days int) []TrendPoint {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)

	s.mu.Lock()
	defer s.mu.Unlock()
	var points []TrendPoint
	for _, entry := range s.history {
		if entry.Timestamp.After(cutoff) {
			points = append(points, TrendPoint{Timestamp: entry.Timestamp, Score: entry.Score.Score})
		}
	}
	return points
}

func bandCounts(accountScores []model.AccountScore) map[string]int {
	bands := map[string]int{
		BandExcellent: 0,
		BandGood:      0,
		BandFair:      0,
		BandPoor:      0,
		BandCritical:  0,
	}
	for _, account := range accountScores {
		switch value := account.Score.Score; {
		case value >= 90:
			bands[BandExcellent]++
		case value >= 80:
			bands[BandGood]++
		case value >= 70:
			bands[BandFair]++
		case value >= 60:
			bands[BandPoor]++
		default:
			bands[BandCritical]++
		}
	}
	return bands
}

func topFindings(results []model.AccountScanResult, limit int) []FindingOccurrence {
	byRule := make(map[string]*FindingOccurrence)
	for _, result := range results {
		for _, finding := range result.Findings {
			if finding.Passed {
				continue
			}
			occ, ok := byRule[finding.RuleID]
			if !ok {
				occ = &FindingOccurrence{
					RuleID:   finding.RuleID,
					Title:    finding.Title,
					Severity: model.NormalizeSeverity(finding.Severity),
				}
				byRule[finding.RuleID] = occ
			}
			occ.Occurrences++
		}
	}

	top := make([]FindingOccurrence, 0, len(byRule))
	for _, occ := range byRule {
		top = append(top, *occ)
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].Occurrences != top[j].Occurrences {
			return top[i].Occurrences > top[j].Occurrences
		}
		return top[i].RuleID < top[j].RuleID
	})
	if len(top) > limit {
		top = top[:limit]
	}
	return top
}

func countFailed(results []model.AccountScanResult) int {
	count := 0
	for _, result := range results {
		if result.Failed() {
			count++
		}
	}
	return count
}

func heatColor(value float64) string {
	switch {
	case value >= 90:
		return "green"
	case value >= 70:
		return "yellow"
	case value >= 50:
		return "orange"
	default:
		return "red"
	}
}
