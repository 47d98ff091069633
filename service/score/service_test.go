package score

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/thirukguru/aws-fleetscan/model"
)

func failing(severity string) model.Finding {
	return model.Finding{RuleID: "test_rule", Severity: severity}
}

func passing(severity string) model.Finding {
	return model.Finding{RuleID: "test_rule", Severity: severity, Passed: true}
}

func TestCalculateScoreEmpty(t *testing.T) {
	svc := NewService()
	result := svc.CalculateScore(nil)
	assert.Equal(t, 100.0, result.Score)
	assert.Equal(t, "A", result.Grade)
	assert.Equal(t, "excellent", result.Status)
	assert.Zero(t, result.TotalFindings)
}

func TestCalculateScoreSeverityWeights(t *testing.T) {
	svc := NewService()
	result := svc.CalculateScore([]model.Finding{
		failing(model.SeverityCritical),
		failing(model.SeverityHigh),
		failing(model.SeverityHigh),
	})

	assert.Equal(t, 80.0, result.Score)
	assert.Equal(t, "B", result.Grade)
	assert.Equal(t, 1, result.CriticalCount)
	assert.Equal(t, 2, result.HighCount)
	assert.Equal(t, 3, result.TotalFindings)
}

func TestCalculateScorePassingFindingsIgnored(t *testing.T) {
	svc := NewService()
	result := svc.CalculateScore([]model.Finding{
		passing(model.SeverityCritical),
		passing(model.SeverityHigh),
		failing(model.SeverityLow),
	})

	assert.Equal(t, 99.5, result.Score)
	assert.Equal(t, 1, result.TotalFindings)
}

func TestCalculateScoreUnknownSeverityIsMedium(t *testing.T) {
	svc := NewService()
	result := svc.CalculateScore([]model.Finding{failing("weird"), failing("")})
	assert.Equal(t, 96.0, result.Score)
	assert.Equal(t, 2, result.MediumCount)
}

func TestCalculateScoreFloorsAtZero(t *testing.T) {
	svc := NewService()
	findings := make([]model.Finding, 15)
	for i := range findings {
		findings[i] = failing(model.SeverityCritical)
	}
	result := svc.CalculateScore(findings)
	assert.Equal(t, 0.0, result.Score)
	assert.Equal(t, "F", result.Grade)
	assert.Equal(t, "critical", result.Status)
}

func TestCalculateScoreMonotone(t *testing.T) {
	svc := NewService()
	var findings []model.Finding
	prev := 100.0
	for i := 0; i < 30; i++ {
		findings = append(findings, failing(model.SeverityMedium))
		current := svc.CalculateScore(findings).Score
		assert.LessOrEqual(t, current, prev)
		prev = current
	}
}

func accountScore(score float64, findings int) model.AccountScore {
	return model.AccountScore{
		Score: model.SecurityScore{Score: score, TotalFindings: findings},
	}
}

func TestCalculateOrgScoreUnweightedWhenNoFindings(t *testing.T) {
	svc := NewService()
	result := svc.CalculateOrgScore([]model.AccountScore{
		accountScore(100, 0),
		accountScore(90, 0),
	})
	assert.Equal(t, 95.0, result.Score)
}

func TestCalculateOrgScoreWeightedByFindingCount(t *testing.T) {
	svc := NewService()
	result := svc.CalculateOrgScore([]model.AccountScore{
		accountScore(90, 2),
		accountScore(60, 8),
	})
	// (90*2 + 60*8) / 10 = 66
	assert.Equal(t, 66.0, result.Score)
	assert.Equal(t, "D", result.Grade)
	assert.Equal(t, 10, result.TotalFindings)
}

func TestCalculateOrgScoreSumsSeverityCounts(t *testing.T) {
	svc := NewService()
	a := model.AccountScore{Score: model.SecurityScore{
		Score: 80, TotalFindings: 3, CriticalCount: 1, HighCount: 2,
	}}
	b := model.AccountScore{Score: model.SecurityScore{
		Score: 95, TotalFindings: 1, MediumCount: 1,
	}}

	result := svc.CalculateOrgScore([]model.AccountScore{a, b})
	assert.Equal(t, 1, result.CriticalCount)
	assert.Equal(t, 2, result.HighCount)
	assert.Equal(t, 1, result.MediumCount)
}

func TestCalculateOrgScoreEmptyFleet(t *testing.T) {
	svc := NewService()
	result := svc.CalculateOrgScore(nil)
	assert.Equal(t, 100.0, result.Score)
}
