package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/nettools/internal/model"
)

// memStore mimics the SQLite store's upsert semantics in memory.
type memStore struct {
	devices   map[string]*model.Device
	snapshots []model.Snapshot
	nextID    int64
}

func newMemStore() *memStore {
	return &memStore{devices: make(map[string]*model.Device)}
}

func (m *memStore) MarkAllNonManualOffline(context.Context) error {
	for _, d := range m.devices {
		if d.Status != model.StatusManual {
			d.IsOnline = false
		}
	}
	return nil
}

func (m *memStore) UpsertDeviceByMAC(_ context.Context, obs model.Observation) (*model.Device, bool, error) {
	now := time.Now()

	if d, ok := m.devices[obs.MACAddress]; ok {
		d.IPAddress = obs.IPAddress
		d.IsOnline = true
		d.LastSeen = now
		d.UpdatedAt = now
		if obs.Hostname != "" {
			d.Hostname = obs.Hostname
		}
		if d.Brand == "" {
			d.Brand = obs.Brand
		}
		if d.DeviceType == "other" && obs.DeviceType != "" {
			d.DeviceType = obs.DeviceType
		}
		return d, false, nil
	}

	m.nextID++
	d := &model.Device{
		ID:         m.nextID,
		IPAddress:  obs.IPAddress,
		MACAddress: obs.MACAddress,
		Hostname:   obs.Hostname,
		Brand:      obs.Brand,
		DeviceType: obs.DeviceType,
		Status:     model.StatusNew,
		IsOnline:   true,
		FirstSeen:  now,
		LastSeen:   now,
	}
	m.devices[obs.MACAddress] = d
	return d, true, nil
}

func (m *memStore) DeviceCounts(context.Context) (*model.DeviceCounts, error) {
	counts := &model.DeviceCounts{}
	for _, d := range m.devices {
		counts.Total++
		if d.IsOnline {
			counts.Online++
		} else {
			counts.Offline++
		}
	}
	return counts, nil
}

func (m *memStore) AppendSnapshot(_ context.Context, snap model.Snapshot) error {
	m.snapshots = append(m.snapshots, snap)
	return nil
}

func TestApplyCreatesNewDevice(t *testing.T) {
	store := newMemStore()
	r := New(store)

	summary, err := r.Apply(context.Background(), []model.Observation{
		{
			IPAddress:  "192.168.1.10",
			MACAddress: "AA:BB:CC:DD:EE:01",
			Hostname:   "diskstation",
			Brand:      "Synology Incorporated",
			DeviceType: "nas",
		},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Found)
	assert.Equal(t, 1, summary.New)
	assert.Equal(t, 0, summary.Updated)
	require.Len(t, summary.NewDevices, 1)

	d := store.devices["AA:BB:CC:DD:EE:01"]
	require.NotNil(t, d)
	assert.Equal(t, "nas", d.DeviceType)
	assert.Equal(t, model.StatusNew, d.Status)
	assert.True(t, d.IsOnline)

	require.Len(t, store.snapshots, 1)
	snap := store.snapshots[0]
	assert.Equal(t, 1, snap.TotalDevices)
	assert.Equal(t, 1, snap.OnlineDevices)
	assert.Equal(t, 0, snap.OfflineDevices)
	assert.Equal(t, 1, snap.NewDevices)
}

func TestApplyIsIdempotent(t *testing.T) {
	store := newMemStore()
	r := New(store)

	obs := []model.Observation{
		{IPAddress: "192.168.1.1", MACAddress: "A4:2B:B0:C1:D2:E3", Brand: "TP-Link", DeviceType: "router"},
	}

	_, err := r.Apply(context.Background(), obs)
	require.NoError(t, err)

	summary, err := r.Apply(context.Background(), obs)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.New)
	assert.Equal(t, 1, summary.Updated)
	assert.Empty(t, summary.NewDevices)
	assert.Len(t, store.devices, 1)
}

func TestApplyMarksAbsentDevicesOffline(t *testing.T) {
	store := newMemStore()
	r := New(store)

	_, err := r.Apply(context.Background(), []model.Observation{
		{IPAddress: "192.168.1.1", MACAddress: "A4:2B:B0:C1:D2:E3"},
		{IPAddress: "192.168.1.50", MACAddress: "DE:AD:BE:EF:00:50"},
	})
	require.NoError(t, err)

	summary, err := r.Apply(context.Background(), []model.Observation{
		{IPAddress: "192.168.1.1", MACAddress: "A4:2B:B0:C1:D2:E3"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Updated)

	assert.True(t, store.devices["A4:2B:B0:C1:D2:E3"].IsOnline)
	assert.False(t, store.devices["DE:AD:BE:EF:00:50"].IsOnline)
}

func TestApplyKeepsManualDevicesOnline(t *testing.T) {
	store := newMemStore()
	store.devices["00:11:22:33:44:55"] = &model.Device{
		ID:         1,
		MACAddress: "00:11:22:33:44:55",
		Status:     model.StatusManual,
		IsOnline:   true,
	}

	r := New(store)
	_, err := r.Apply(context.Background(), nil)
	require.NoError(t, err)

	assert.True(t, store.devices["00:11:22:33:44:55"].IsOnline)
}

func TestApplyDropsObservationsWithoutMAC(t *testing.T) {
	store := newMemStore()
	r := New(store)

	summary, err := r.Apply(context.Background(), []model.Observation{
		{IPAddress: "192.168.1.5"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Found)
	assert.Equal(t, 0, summary.New)
	assert.Equal(t, 0, summary.Updated)
	assert.Empty(t, store.devices)
}

func TestApplyUpdatePreservesEnrichedFields(t *testing.T) {
	store := newMemStore()
	r := New(store)

	_, err := r.Apply(context.Background(), []model.Observation{
		{IPAddress: "192.168.1.20", MACAddress: "AA:AA:AA:00:00:01", Hostname: "printer", Brand: "HP", DeviceType: "printer"},
	})
	require.NoError(t, err)

	// A later scan with weaker data must not clobber brand or type.
	_, err = r.Apply(context.Background(), []model.Observation{
		{IPAddress: "192.168.1.99", MACAddress: "AA:AA:AA:00:00:01", DeviceType: "other"},
	})
	require.NoError(t, err)

	d := store.devices["AA:AA:AA:00:00:01"]
	assert.Equal(t, "192.168.1.99", d.IPAddress)
	assert.Equal(t, "printer", d.Hostname)
	assert.Equal(t, "HP", d.Brand)
	assert.Equal(t, "printer", d.DeviceType)
}
