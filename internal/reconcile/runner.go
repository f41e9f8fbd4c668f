package reconcile

import (
	"context"
	"fmt"

	"github.com/user/nettools/internal/model"
)

// DeviceScanner discovers devices on the network.
type DeviceScanner interface {
	Scan(ctx context.Context, networkRange string) ([]model.Observation, error)
}

// Notifier announces newly discovered devices.
type Notifier interface {
	NotifyNewDevices(ctx context.Context, devices []*model.Device) bool
}

// SettingsSource supplies the network range for a scan pass.
type SettingsSource interface {
	Get(ctx context.Context) (*model.Settings, error)
}

// Runner executes one complete scan pass: discover, reconcile, notify. It is
// shared by the scheduler and the on-demand scan endpoint; the caller holds
// the scan run guard.
type Runner struct {
	scanner    DeviceScanner
	reconciler *Reconciler
	notifier   Notifier
	settings   SettingsSource
}

// NewRunner creates a scan runner.
func NewRunner(scanner DeviceScanner, reconciler *Reconciler, notifier Notifier, settings SettingsSource) *Runner {
	return &Runner{
		scanner:    scanner,
		reconciler: reconciler,
		notifier:   notifier,
		settings:   settings,
	}
}

// RunScan performs one scan pass over the configured network range.
func (r *Runner) RunScan(ctx context.Context) (*Summary, error) {
	settings, err := r.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	observations, err := r.scanner.Scan(ctx, settings.NetworkRange)
	if err != nil {
		return nil, err
	}

	summary, err := r.reconciler.Apply(ctx, observations)
	if err != nil {
		return nil, err
	}

	if r.notifier != nil && len(summary.NewDevices) > 0 {
		r.notifier.NotifyNewDevices(ctx, summary.NewDevices)
	}
	return summary, nil
}
