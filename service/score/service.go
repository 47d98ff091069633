// Package score maps findings to comparable 0-100 security scores.
package score

import (
	"math"

	"github.com/thirukguru/aws-fleetscan/model"
)

// Severity weights subtracted per failing finding.
const (
	WeightCritical = 10.0
	WeightHigh     = 5.0
	WeightMedium   = 2.0
	WeightLow      = 0.5
)

// Service is the interface for the score calculator. Both operations are
// pure functions.
type Service interface {
	CalculateScore(findings []model.Finding) model.SecurityScore
	CalculateOrgScore(accountScores []model.AccountScore) model.SecurityScore
}

// NewService creates a new score calculator.
func NewService() Service {
	return &service{}
}

type service struct{}

func (s *service) CalculateScore(findings []model.Finding) model.SecurityScore {
	value := 100.0
	result := model.SecurityScore{}

	for _, finding := range findings {
		if finding.Passed {
			continue
		}
		result.TotalFindings++
		switch model.NormalizeSeverity(finding.Severity) {
		case model.SeverityCritical:
			result.CriticalCount++
			value -= WeightCritical
		case model.SeverityHigh:
			result.HighCount++
			value -= WeightHigh
		case model.SeverityMedium:
			result.MediumCount++
			value -= WeightMedium
		case model.SeverityLow:
			result.LowCount++
			value -= WeightLow
		}
	}

	result.Score = roundScore(math.Max(value, 0))
	result.Grade, result.Status = gradeFor(result.Score)
	return result
}

func (s *service) CalculateOrgScore(accountScores []model.AccountScore) model.SecurityScore {
	result := model.SecurityScore{}
	if len(accountScores) == 0 {
		result.Score = 100.0
		result.Grade, result.Status = gradeFor(result.Score)
		return result
	}

	totalFindings := 0
	for _, account := range accountScores {
		sc := account.Score
		totalFindings += sc.TotalFindings
		result.CriticalCount += sc.CriticalCount
		result.HighCount += sc.HighCount
		result.MediumCount += sc.MediumCount
		result.LowCount += sc.LowCount
	}
	result.TotalFindings = totalFindings

	var value float64
	if totalFindings == 0 {
		// A clean fleet is averaged evenly.
		for _, account := range accountScores {
			value += account.Score.Score
		}
		value /= float64(len(accountScores))
	} else {
		// Accounts with more findings count proportionally more.
		var weighted float64
		for _, account := range accountScores {
			weighted += account.Score.Score * float64(account.Score.TotalFindings)
		}
		value = weighted / float64(totalFindings)
	}

	result.Score = roundScore(value)
	result.Grade, result.Status = gradeFor(result.Score)
	return result
}

// WeightFor returns the penalty weight for a severity label, after
// normalization.
func WeightFor(severity string) float64 {
	switch model.NormalizeSeverity(severity) {
	case model.SeverityCritical:
		return WeightCritical
	case model.SeverityHigh:
		return WeightHigh
	case model.SeverityLow:
		return WeightLow
	default:
		return WeightMedium
	}
}

func roundScore(value float64) float64 {
	return math.Round(value*10) / 10
}

func gradeFor(score float64) (grade, status string) {
	switch {
	case score >= 90:
		return "A", "excellent"
	case score >= 80:
		return "B", "good"
	case score >= 70:
		return "C", "fair"
	case score >= 60:
		return "D", "poor"
	default:
		return "F", "critical"
	}
}
