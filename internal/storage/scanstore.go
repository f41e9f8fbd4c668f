package storage

import (
	"context"

	"github.com/user/nettools/internal/model"
)

// ScanStore bundles the device and snapshot storage behind the surface the
// reconciler needs.
type ScanStore struct {
	*DeviceStorage
	snapshots *SnapshotStorage
}

// NewScanStore creates a reconciliation store over db.
func NewScanStore(db *DB) *ScanStore {
	return &ScanStore{
		DeviceStorage: NewDeviceStorage(db),
		snapshots:     NewSnapshotStorage(db),
	}
}

// AppendSnapshot records one device count aggregate.
func (s *ScanStore) AppendSnapshot(ctx context.Context, snap model.Snapshot) error {
	return s.snapshots.Append(ctx, snap)
}
