// Package storage persists fleet scan snapshots in a local SQLite
// database for durable trend history.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const defaultDBPath = "~/.aws-fleetscan/history.db"

// NewService creates a SQLite-backed storage service.
func NewService(dbPath string) (Service, error) {
	resolved, err := resolvePath(dbPath)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schemaV1); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &service{db: db, dbPath: resolved}, nil
}

type service struct {
	db     *sql.DB
	dbPath string
}

func resolvePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		p = defaultDBPath
	}
	if strings.HasPrefix(p, "~/") || p == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to resolve home dir: %w", err)
		}
		if p == "~" {
			p = home
		} else {
			p = filepath.Join(home, p[2:])
		}
	}
	return filepath.Clean(p), nil
}

func (s *service) SaveSnapshot(ctx context.Context, input SnapshotInput) (int64, error) {
	if input.PassID == "" {
		return 0, errors.New("pass id is required")
	}
	if input.Timestamp.IsZero() {
		input.Timestamp = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (
			pass_id, taken_at, org_score, grade,
			critical_count, high_count, medium_count, low_count,
			total_findings, account_count, failed_count
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, input.PassID, input.Timestamp.UTC().Format(time.RFC3339), input.OrgScore.Score, input.OrgScore.Grade,
		input.OrgScore.CriticalCount, input.OrgScore.HighCount, input.OrgScore.MediumCount, input.OrgScore.LowCount,
		input.OrgScore.TotalFindings, len(input.AccountScores), input.FailedCount)
	if err != nil {
		return 0, err
	}
	snapshotID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, account := range input.AccountScores {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO account_scores (snapshot_id, account_id, account_name, score, grade, finding_count)
			VALUES (?, ?, ?, ?, ?, ?)
		`, snapshotID, account.AccountID, account.AccountName,
			account.Score.Score, account.Score.Grade, account.Score.TotalFindings)
		if err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, err
	}
	return snapshotID, nil
}

func (s *service) GetTrends(days int) ([]TrendPoint, error) {
	if days <= 0 {
		days = 30
	}
	rows, err := s.db.Query(`
		SELECT
			DATE(taken_at) AS day,
			AVG(org_score),
			MAX(critical_count),
			MAX(high_count),
			MAX(medium_count),
			MAX(low_count),
			MAX(total_findings)
		FROM snapshots
		WHERE taken_at >= DATETIME('now', ?)
		GROUP BY day
		ORDER BY day ASC
	`, fmt.Sprintf("-%d day", days))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []TrendPoint
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.Date, &p.OrgScore, &p.Critical, &p.High, &p.Medium, &p.Low, &p.Total); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *service) GetAccountTrends(accountID string, days int) ([]AccountTrendPoint, error) {
	if days <= 0 {
		days = 30
	}
	rows, err := s.db.Query(`
		SELECT
			a.account_id,
			DATE(sn.taken_at) AS day,
			AVG(a.score),
			MAX(a.finding_count)
		FROM account_scores a
		JOIN snapshots sn ON sn.snapshot_id = a.snapshot_id
		WHERE a.account_id = ? AND sn.taken_at >= DATETIME('now', ?)
		GROUP BY day
		ORDER BY day ASC
	`, accountID, fmt.Sprintf("-%d day", days))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var points []AccountTrendPoint
	for rows.Next() {
		var p AccountTrendPoint
		if err := rows.Scan(&p.AccountID, &p.Date, &p.Score, &p.Findings); err != nil {
			return nil, err
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *service) GetRecentSnapshots(limit int) ([]SnapshotSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT snapshot_id, pass_id, taken_at, org_score, grade,
			total_findings, account_count, failed_count
		FROM snapshots
		ORDER BY taken_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []SnapshotSummary
	for rows.Next() {
		var sum SnapshotSummary
		var takenAt string
		if err := rows.Scan(&sum.SnapshotID, &sum.PassID, &takenAt, &sum.OrgScore, &sum.Grade,
			&sum.TotalFindings, &sum.AccountCount, &sum.FailedCount); err != nil {
			return nil, err
		}
		if parsed, err := time.Parse(time.RFC3339, takenAt); err == nil {
			sum.TakenAt = parsed
		}
		summaries = append(summaries, sum)
	}
	return summaries, rows.Err()
}

func (s *service) PurgeOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, errors.New("days must be positive")
	}
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM snapshots WHERE taken_at < DATETIME('now', ?)
	`, fmt.Sprintf("-%d day", days))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *service) Close() error {
	return s.db.Close()
}
