package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/user/nettools/internal/model"
)

// SnapshotStorage handles device history snapshots.
type SnapshotStorage struct {
	db *DB
}

// NewSnapshotStorage creates a new snapshot storage handler.
func NewSnapshotStorage(db *DB) *SnapshotStorage {
	return &SnapshotStorage{db: db}
}

// Append records one device count aggregate.
func (s *SnapshotStorage) Append(ctx context.Context, snap model.Snapshot) error {
	ts := snap.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO device_snapshots (timestamp, total_devices, online_devices,
			offline_devices, new_devices)
		 VALUES (?, ?, ?, ?, ?)`,
		ts, snap.TotalDevices, snap.OnlineDevices, snap.OfflineDevices, snap.NewDevices)
	if err != nil {
		return fmt.Errorf("failed to append snapshot: %w", err)
	}
	return nil
}

// List returns snapshots within the time range, oldest first.
func (s *SnapshotStorage) List(ctx context.Context, rangeKey string) ([]model.Snapshot, error) {
	query := `SELECT id, timestamp, total_devices, online_devices, offline_devices, new_devices
		FROM device_snapshots`
	var args []any

	if cutoff, ok := rangeCutoff(rangeKey, time.Now()); ok {
		query += " WHERE timestamp >= ?"
		args = append(args, cutoff)
	}
	query += " ORDER BY timestamp"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snapshots []model.Snapshot
	for rows.Next() {
		var snap model.Snapshot
		if err := rows.Scan(&snap.ID, &snap.Timestamp, &snap.TotalDevices,
			&snap.OnlineDevices, &snap.OfflineDevices, &snap.NewDevices); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snapshots = append(snapshots, snap)
	}

	return snapshots, rows.Err()
}
