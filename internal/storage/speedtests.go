package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/user/nettools/internal/model"
)

// SpeedTestStorage handles speed test persistence.
type SpeedTestStorage struct {
	db *DB
}

// NewSpeedTestStorage creates a new speed test storage handler.
func NewSpeedTestStorage(db *DB) *SpeedTestStorage {
	return &SpeedTestStorage{db: db}
}

// Append stores one speed test result.
func (s *SpeedTestStorage) Append(ctx context.Context, r *model.SpeedTestResult) error {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	result, err := s.db.ExecContext(ctx,
		`INSERT INTO speed_tests (timestamp, download_speed, upload_speed, ping,
			jitter, server_name, server_id, server_location, isp, external_ip, raw_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ts, r.DownloadMbps, r.UploadMbps, r.PingMs, r.JitterMs,
		r.ServerName, r.ServerID, r.ServerLocation, r.ISP, r.ExternalIP, r.RawData)
	if err != nil {
		return fmt.Errorf("failed to save speed test: %w", err)
	}

	r.ID, _ = result.LastInsertId()
	return nil
}

const speedTestColumns = `id, timestamp, download_speed, upload_speed, ping,
	jitter, server_name, server_id, server_location, isp, external_ip`

func scanSpeedTest(row interface{ Scan(...any) error }) (*model.SpeedTestResult, error) {
	var r model.SpeedTestResult
	err := row.Scan(&r.ID, &r.Timestamp, &r.DownloadMbps, &r.UploadMbps,
		&r.PingMs, &r.JitterMs, &r.ServerName, &r.ServerID, &r.ServerLocation,
		&r.ISP, &r.ExternalIP)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// List returns speed tests within the time range, newest first.
func (s *SpeedTestStorage) List(ctx context.Context, rangeKey string, limit int) ([]model.SpeedTestResult, error) {
	query := `SELECT ` + speedTestColumns + ` FROM speed_tests`
	var args []any

	if cutoff, ok := rangeCutoff(rangeKey, time.Now()); ok {
		query += " WHERE timestamp >= ?"
		args = append(args, cutoff)
	}
	query += " ORDER BY timestamp DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query speed tests: %w", err)
	}
	defer rows.Close()

	var results []model.SpeedTestResult
	for rows.Next() {
		r, err := scanSpeedTest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan speed test: %w", err)
		}
		results = append(results, *r)
	}

	return results, rows.Err()
}

// Latest returns the most recent speed test, or nil when none exist.
func (s *SpeedTestStorage) Latest(ctx context.Context) (*model.SpeedTestResult, error) {
	query := `SELECT ` + speedTestColumns + ` FROM speed_tests ORDER BY timestamp DESC LIMIT 1`

	r, err := scanSpeedTest(s.db.QueryRowContext(ctx, query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest speed test: %w", err)
	}
	return r, nil
}

// Stats aggregates speed tests within the time range.
func (s *SpeedTestStorage) Stats(ctx context.Context, rangeKey string) (*model.SpeedTestStats, error) {
	query := `SELECT COUNT(*),
		COALESCE(MAX(download_speed), 0), COALESCE(MAX(upload_speed), 0),
		COALESCE(MIN(ping), 0),
		COALESCE(AVG(download_speed), 0), COALESCE(AVG(upload_speed), 0),
		COALESCE(AVG(ping), 0)
	 FROM speed_tests`
	var args []any

	if cutoff, ok := rangeCutoff(rangeKey, time.Now()); ok {
		query += " WHERE timestamp >= ?"
		args = append(args, cutoff)
	}

	var stats model.SpeedTestStats
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&stats.TotalTests, &stats.BestDownload, &stats.BestUpload, &stats.BestPing,
		&stats.AvgDownload, &stats.AvgUpload, &stats.AvgPing)
	if err != nil {
		return nil, fmt.Errorf("failed to compute speed test stats: %w", err)
	}
	return &stats, nil
}

// Delete removes one speed test by ID and reports whether it existed.
func (s *SpeedTestStorage) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM speed_tests WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete speed test: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// Clear removes the entire speed test history and returns the removed count.
func (s *SpeedTestStorage) Clear(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, "DELETE FROM speed_tests")
	if err != nil {
		return 0, fmt.Errorf("failed to clear speed tests: %w", err)
	}
	n, _ := result.RowsAffected()
	return n, nil
}
