package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/user/nettools/internal/model"
)

// PingStorage handles ping result persistence.
type PingStorage struct {
	db *DB
}

// NewPingStorage creates a new ping storage handler.
func NewPingStorage(db *DB) *PingStorage {
	return &PingStorage{db: db}
}

// Append stores one ping result, optionally tied to a known device.
func (s *PingStorage) Append(ctx context.Context, deviceID *int64, r *model.PingResult) error {
	var devID any
	if deviceID != nil {
		devID = *deviceID
	}
	var latency any
	if r.LatencyMs != nil {
		latency = *r.LatencyMs
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO ping_results (device_id, ip, is_reachable, latency, timestamp)
		 VALUES (?, ?, ?, ?, ?)`,
		devID, r.IP, r.Reachable, latency, time.Now())
	if err != nil {
		return fmt.Errorf("failed to save ping result: %w", err)
	}
	return nil
}
