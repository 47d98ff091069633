// Package fleettable renders fleet scan results as console tables.
package fleettable

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/thirukguru/aws-fleetscan/model"
	"github.com/thirukguru/aws-fleetscan/service/dashboard"
	"github.com/thirukguru/aws-fleetscan/service/storage"
)

// RenderSummary prints the organization roll-up.
func RenderSummary(summary dashboard.OrganizationSummary) {
	fmt.Println("\n🛡  Fleet Security Summary")
	fmt.Printf("   Organization score: %s (%s, %s)\n",
		scoreText(summary.OrgScore.Score), summary.OrgScore.Grade, summary.OrgScore.Status)
	fmt.Printf("   Findings: %s total", humanize.Comma(int64(summary.OrgScore.TotalFindings)))
	if summary.FailedAccounts > 0 {
		fmt.Printf("  %s", text.FgRed.Sprintf("(%d accounts failed to scan)", summary.FailedAccounts))
	}
	fmt.Println()

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Band", "Accounts"})
	for _, band := range []string{
		dashboard.BandExcellent,
		dashboard.BandGood,
		dashboard.BandFair,
		dashboard.BandPoor,
		dashboard.BandCritical,
	} {
		t.AppendRow(table.Row{band, summary.ScoreBands[band]})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(summary.TopFindings) > 0 {
		fmt.Println("\n   Most common failing checks")
		ft := table.NewWriter()
		ft.SetOutputMirror(os.Stdout)
		ft.AppendHeader(table.Row{"Rule", "Severity", "Occurrences"})
		for _, finding := range summary.TopFindings {
			ft.AppendRow(table.Row{finding.RuleID, severityText(finding.Severity), finding.Occurrences})
		}
		ft.SetStyle(table.StyleRounded)
		ft.Render()
	}
}

// RenderHeatMap prints per-account scores, worst first.
func RenderHeatMap(entries []dashboard.HeatMapEntry) {
	if len(entries) == 0 {
		return
	}

	fmt.Println("\n🗺  Account Heat Map")
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Account", "Name", "Environment", "Score", "Grade"})
	for _, entry := range entries {
		t.AppendRow(table.Row{
			entry.AccountID,
			entry.AccountName,
			entry.Environment,
			heatText(entry.Color, entry.Score),
			entry.Grade,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// RenderRecommendations prints prioritized remediation suggestions.
func RenderRecommendations(recommendations []dashboard.Recommendation) {
	if len(recommendations) == 0 {
		fmt.Println("\n✅ No failing checks across the fleet")
		return
	}

	fmt.Println("\n🔧 Recommended Remediations")
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Priority", "Rule", "Severity", "Accounts", "Occurrences", "Remediation"})
	for _, rec := range recommendations {
		t.AppendRow(table.Row{
			fmt.Sprintf("%.0f", rec.Priority),
			rec.RuleID,
			severityText(rec.Severity),
			rec.AffectedAccounts,
			rec.Occurrences,
			rec.Remediation,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// RenderScanResults prints the per-account outcome of one pass.
func RenderScanResults(results []model.AccountScanResult) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Account", "Name", "Plugins", "Findings", "Duration", "Status"})
	for _, result := range results {
		status := text.FgGreen.Sprint("ok")
		if result.Failed() {
			status = text.FgRed.Sprint(result.Error)
		}
		t.AppendRow(table.Row{
			result.AccountID,
			result.AccountName,
			len(result.PluginsRun),
			len(result.Findings),
			result.Duration.Round(time.Millisecond),
			status,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// RenderTrendTable prints stored daily score trends.
func RenderTrendTable(points []storage.TrendPoint) {
	if len(points) == 0 {
		fmt.Println("No stored trend data; run a scan with --store first")
		return
	}

	fmt.Println("\n📈 Organization Score Trend")
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Date", "Score", "Critical", "High", "Medium", "Low", "Total"})
	for _, point := range points {
		t.AppendRow(table.Row{
			point.Date,
			scoreText(point.OrgScore),
			point.Critical,
			point.High,
			point.Medium,
			point.Low,
			point.Total,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// RenderRecentSnapshots prints the most recent stored passes.
func RenderRecentSnapshots(snapshots []storage.SnapshotSummary) {
	if len(snapshots) == 0 {
		return
	}

	fmt.Println("\n🕘 Recent Scans")
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"When", "Score", "Grade", "Findings", "Accounts", "Failed"})
	for _, snapshot := range snapshots {
		t.AppendRow(table.Row{
			humanize.Time(snapshot.TakenAt),
			scoreText(snapshot.OrgScore),
			snapshot.Grade,
			snapshot.TotalFindings,
			snapshot.AccountCount,
			snapshot.FailedCount,
		})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func severityText(severity string) string {
	switch severity {
	case model.SeverityCritical:
		return text.FgRed.Sprint(severity)
	case model.SeverityHigh:
		return text.FgHiRed.Sprint(severity)
	case model.SeverityMedium:
		return text.FgYellow.Sprint(severity)
	default:
		return text.FgCyan.Sprint(severity)
	}
}

func scoreText(score float64) string {
	return heatText(colorFor(score), score)
}

func heatText(color string, score float64) string {
	formatted := fmt.Sprintf("%.1f", score)
	switch color {
	case "green":
		return text.FgGreen.Sprint(formatted)
	case "yellow":
		return text.FgYellow.Sprint(formatted)
	case "orange":
		return text.FgHiRed.Sprint(formatted)
	default:
		return text.FgRed.Sprint(formatted)
	}
}

func colorFor(score float64) string {
	switch {
	case score >= 90:
		return "green"
	case score >= 70:
		return "yellow"
	case score >= 50:
		return "orange"
	default:
		return "red"
	}
}
