package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/harborstack/channelwatch/internal/models"
	"github.com/harborstack/channelwatch/internal/utils"
)

// SeriesStore persists daily vessel counts and assembled findings in SQLite.
// Safe for concurrent use; SQLite serialises writers internally.
type SeriesStore struct {
	db *sql.DB
}

// OpenSeriesStore opens (and initialises) the database at path. Pass
// ":memory:" for an ephemeral store.
func OpenSeriesStore(path string) (*SeriesStore, error) {
	connStr := path
	if path == ":memory:" {
		// Shared cache so every pooled connection sees the same database.
		connStr = "file::memory:?cache=shared"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if path != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL mode: %w", err)
		}
	}

	s := &SeriesStore{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

func (s *SeriesStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS vessel_counts (
		channel_id TEXT NOT NULL,
		day        TEXT NOT NULL,
		count      INTEGER NOT NULL,
		PRIMARY KEY (channel_id, day)
	);
	CREATE TABLE IF NOT EXISTS findings (
		id             INTEGER PRIMARY KEY AUTOINCREMENT,
		channel_id     TEXT NOT NULL,
		reference_date TEXT NOT NULL,
		verdict        INTEGER NOT NULL,
		payload        TEXT NOT NULL,
		created_at     TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_findings_channel ON findings(channel_id, reference_date);
	`
	_, err := s.db.Exec(schema)
	return err
}

// UpsertCounts inserts or replaces daily observations for a channel.
func (s *SeriesStore) UpsertCounts(ctx context.Context, channelID string, points []models.SeriesPoint) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO vessel_counts (channel_id, day, count) VALUES (?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, channelID, p.Date.Format(time.DateOnly), p.Count); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert count: %w", err)
		}
	}
	return tx.Commit()
}

// Load returns the channel's daily counts for the trailing window ending at
// referenceDate. Missing days stay absent. Fails with ErrDataUnavailable
// when the store holds nothing for the window.
func (s *SeriesStore) Load(ctx context.Context, channelID string, referenceDate time.Time, lookbackDays int) (models.ChannelSeries, error) {
	start := utils.Day(referenceDate).AddDate(0, 0, -lookbackDays+1)

	rows, err := s.db.QueryContext(ctx,
		`SELECT day, count FROM vessel_counts
		 WHERE channel_id = ? AND day >= ? AND day <= ?
		 ORDER BY day`,
		channelID, start.Format(time.DateOnly), utils.Day(referenceDate).Format(time.DateOnly))
	if err != nil {
		return models.ChannelSeries{}, fmt.Errorf("query counts: %w", err)
	}
	defer rows.Close()

	series := models.ChannelSeries{ChannelID: channelID}
	for rows.Next() {
		var day string
		var count int
		if err := rows.Scan(&day, &count); err != nil {
			return models.ChannelSeries{}, fmt.Errorf("scan count: %w", err)
		}
		date, err := utils.ParseDay(day)
		if err != nil {
			return models.ChannelSeries{}, fmt.Errorf("stored day %q: %w", day, err)
		}
		series.Points = append(series.Points, models.SeriesPoint{Date: date, Count: count})
	}
	if err := rows.Err(); err != nil {
		return models.ChannelSeries{}, fmt.Errorf("iterate counts: %w", err)
	}

	if len(series.Points) == 0 {
		return models.ChannelSeries{}, fmt.Errorf("%w: no counts for %s in window ending %s",
			models.ErrDataUnavailable, channelID, referenceDate.Format(time.DateOnly))
	}
	return series, nil
}

// StoreFinding appends an assembled finding to the history.
func (s *SeriesStore) StoreFinding(ctx context.Context, finding models.Finding) error {
	payload, err := json.Marshal(finding)
	if err != nil {
		return fmt.Errorf("marshal finding: %w", err)
	}

	verdict := 0
	if finding.OverallVerdict {
		verdict = 1
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO findings (channel_id, reference_date, verdict, payload, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		finding.ChannelID,
		finding.ReferenceDate.Format(time.DateOnly),
		verdict,
		string(payload),
		finding.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("insert finding: %w", err)
	}
	return nil
}

// ListFindings returns stored findings matching the filters, oldest first.
func (s *SeriesStore) ListFindings(ctx context.Context, req models.ListFindingsRequest) ([]models.Finding, error) {
	query := `SELECT payload FROM findings WHERE 1=1`
	args := make([]any, 0, 4)
	if req.ChannelID != "" {
		query += ` AND channel_id = ?`
		args = append(args, req.ChannelID)
	}
	if !req.Start.IsZero() {
		query += ` AND reference_date >= ?`
		args = append(args, req.Start.Format(time.DateOnly))
	}
	if !req.End.IsZero() {
		query += ` AND reference_date <= ?`
		args = append(args, req.End.Format(time.DateOnly))
	}
	query += ` ORDER BY reference_date, id`
	if req.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, req.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}
	defer rows.Close()

	var findings []models.Finding
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan finding: %w", err)
		}
		var finding models.Finding
		if err := json.Unmarshal([]byte(payload), &finding); err != nil {
			return nil, fmt.Errorf("decode finding: %w", err)
		}
		findings = append(findings, finding)
	}
	return findings, rows.Err()
}

// Close releases the database handle.
func (s *SeriesStore) Close() error {
	return s.db.Close()
}
