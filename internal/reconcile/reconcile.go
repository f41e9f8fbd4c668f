// Package reconcile folds the observations of one scan pass into the
// persisted device set.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/user/nettools/internal/model"
	"github.com/user/nettools/internal/util"
)

// Store is the persistence surface the reconciler needs.
type Store interface {
	// MarkAllNonManualOffline flips is_online to false for every device
	// except those with manual status.
	MarkAllNonManualOffline(ctx context.Context) error

	// UpsertDeviceByMAC inserts or updates the device identified by the
	// observation's MAC address and reports whether it was created.
	UpsertDeviceByMAC(ctx context.Context, obs model.Observation) (*model.Device, bool, error)

	// DeviceCounts aggregates the current device set.
	DeviceCounts(ctx context.Context) (*model.DeviceCounts, error)

	// AppendSnapshot records a point-in-time device count aggregate.
	AppendSnapshot(ctx context.Context, snap model.Snapshot) error
}

// Summary is the outcome of reconciling one scan batch. NewDevices carries
// the devices created by this batch so callers can notify about them.
type Summary struct {
	Found      int
	New        int
	Updated    int
	NewDevices []*model.Device
}

// ScanSummary converts the summary to its API shape.
func (s *Summary) ScanSummary() model.ScanSummary {
	return model.ScanSummary{Found: s.Found, New: s.New, Updated: s.Updated}
}

// Reconciler applies scan observations to the store. MAC address is the join
// key; observations without one are dropped.
type Reconciler struct {
	store Store
}

// New creates a reconciler backed by store.
func New(store Store) *Reconciler {
	return &Reconciler{store: store}
}

// Apply reconciles one batch of observations. Every non-manual device is
// marked offline first, so devices absent from the batch end up offline and
// devices present in it come back online through the upsert. One history
// snapshot is appended after the batch. Repeat application of the same batch
// changes nothing except last-seen timestamps.
func (r *Reconciler) Apply(ctx context.Context, observations []model.Observation) (*Summary, error) {
	if err := r.store.MarkAllNonManualOffline(ctx); err != nil {
		return nil, fmt.Errorf("marking devices offline: %w", err)
	}

	summary := &Summary{Found: len(observations)}

	for _, obs := range observations {
		if obs.MACAddress == "" {
			util.Debug().Str("ip", obs.IPAddress).Msg("skipping observation without MAC")
			continue
		}

		device, created, err := r.store.UpsertDeviceByMAC(ctx, obs)
		if err != nil {
			util.Error().Err(err).Str("mac", obs.MACAddress).Msg("upsert failed")
			continue
		}

		if created {
			summary.New++
			summary.NewDevices = append(summary.NewDevices, device)
			util.Info().
				Str("ip", device.IPAddress).
				Str("mac", device.MACAddress).
				Str("type", device.DeviceType).
				Msg("new device discovered")
		} else {
			summary.Updated++
		}
	}

	if err := r.appendSnapshot(ctx, summary.New); err != nil {
		util.Error().Err(err).Msg("could not record device snapshot")
	}

	return summary, nil
}

func (r *Reconciler) appendSnapshot(ctx context.Context, newCount int) error {
	counts, err := r.store.DeviceCounts(ctx)
	if err != nil {
		return err
	}
	return r.store.AppendSnapshot(ctx, model.Snapshot{
		Timestamp:      time.Now(),
		TotalDevices:   counts.Total,
		OnlineDevices:  counts.Online,
		OfflineDevices: counts.Offline,
		NewDevices:     newCount,
	})
}
