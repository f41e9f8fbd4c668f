package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/user/nettools/internal/model"
)

// DeviceStorage handles device persistence.
type DeviceStorage struct {
	db *DB
}

// NewDeviceStorage creates a new device storage handler.
func NewDeviceStorage(db *DB) *DeviceStorage {
	return &DeviceStorage{db: db}
}

const deviceColumns = `id, ip_address, COALESCE(mac_address, ''), hostname, custom_name,
	description, brand, location, device_type, ip_type, status, is_online,
	first_seen, last_seen, created_at, updated_at`

func scanDevice(row interface{ Scan(...any) error }) (*model.Device, error) {
	var d model.Device
	var firstSeen, lastSeen sql.NullTime

	err := row.Scan(
		&d.ID, &d.IPAddress, &d.MACAddress, &d.Hostname, &d.CustomName,
		&d.Description, &d.Brand, &d.Location, &d.DeviceType, &d.IPType,
		&d.Status, &d.IsOnline, &firstSeen, &lastSeen, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if firstSeen.Valid {
		d.FirstSeen = firstSeen.Time
	}
	if lastSeen.Valid {
		d.LastSeen = lastSeen.Time
	}
	return &d, nil
}

// nullableMAC maps an empty MAC to NULL so the unique index does not collide
// on manually created devices without one.
func nullableMAC(mac string) any {
	if mac == "" {
		return nil
	}
	return mac
}

// List returns all devices, online first.
func (s *DeviceStorage) List(ctx context.Context) ([]model.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY is_online DESC, ip_address`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	var devices []model.Device
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}
		devices = append(devices, *d)
	}

	return devices, rows.Err()
}

// Get returns a device by ID, or nil when it does not exist.
func (s *DeviceStorage) Get(ctx context.Context, id int64) (*model.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE id = ?`

	d, err := scanDevice(s.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return d, nil
}

// GetByMAC returns a device by MAC address, or nil when it does not exist.
func (s *DeviceStorage) GetByMAC(ctx context.Context, mac string) (*model.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE mac_address = ?`

	d, err := scanDevice(s.db.QueryRowContext(ctx, query, mac))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}
	return d, nil
}

// Create stores a user-created device. Status defaults to manual.
func (s *DeviceStorage) Create(ctx context.Context, d *model.Device) error {
	if d.Status == "" {
		d.Status = model.StatusManual
	}
	if d.DeviceType == "" {
		d.DeviceType = "other"
	}
	if d.IPType == "" {
		d.IPType = model.IPTypeDHCP
	}

	now := time.Now()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO devices (ip_address, mac_address, hostname, custom_name,
			description, brand, location, device_type, ip_type, status,
			is_online, first_seen, last_seen)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.IPAddress, nullableMAC(d.MACAddress), d.Hostname, d.CustomName,
		d.Description, d.Brand, d.Location, d.DeviceType, d.IPType, d.Status,
		d.IsOnline, now, now)
	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}

	d.ID, _ = result.LastInsertId()
	d.FirstSeen = now
	d.LastSeen = now
	return nil
}

// Update rewrites the editable fields of a device.
func (s *DeviceStorage) Update(ctx context.Context, d *model.Device) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE devices SET ip_address = ?, mac_address = ?, hostname = ?,
			custom_name = ?, description = ?, brand = ?, location = ?,
			device_type = ?, ip_type = ?, status = ?,
			updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`,
		d.IPAddress, nullableMAC(d.MACAddress), d.Hostname, d.CustomName,
		d.Description, d.Brand, d.Location, d.DeviceType, d.IPType, d.Status,
		d.ID)
	if err != nil {
		return fmt.Errorf("failed to update device: %w", err)
	}
	return nil
}

// Delete removes a device and its ping history.
func (s *DeviceStorage) Delete(ctx context.Context, id int64) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM ping_results WHERE device_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete ping history: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete device: %w", err)
	}
	return nil
}

// UpsertDeviceByMAC folds one scan observation into the device identified by
// its MAC address. The IP, online flag and last-seen always update; hostname
// updates only when the observation has one; brand fills in only when empty;
// the device type upgrades only while still unclassified. Reports whether
// the device was created.
func (s *DeviceStorage) UpsertDeviceByMAC(ctx context.Context, obs model.Observation) (*model.Device, bool, error) {
	existing, err := s.GetByMAC(ctx, obs.MACAddress)
	if err != nil {
		return nil, false, err
	}

	now := time.Now()

	if existing == nil {
		deviceType := obs.DeviceType
		if deviceType == "" {
			deviceType = "other"
		}

		result, err := s.db.ExecContext(ctx,
			`INSERT INTO devices (ip_address, mac_address, hostname, brand,
				device_type, status, is_online, first_seen, last_seen)
			 VALUES (?, ?, ?, ?, ?, ?, 1, ?, ?)`,
			obs.IPAddress, obs.MACAddress, obs.Hostname, obs.Brand,
			deviceType, model.StatusNew, now, now)
		if err != nil {
			return nil, false, fmt.Errorf("failed to insert device: %w", err)
		}

		id, _ := result.LastInsertId()
		created, err := s.Get(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return created, true, nil
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE devices SET
			ip_address = ?,
			is_online = 1,
			last_seen = ?,
			updated_at = CURRENT_TIMESTAMP,
			hostname = CASE WHEN ? != '' THEN ? ELSE hostname END,
			brand = CASE WHEN brand = '' THEN ? ELSE brand END,
			device_type = CASE WHEN device_type = 'other' AND ? != '' THEN ? ELSE device_type END
		 WHERE id = ?`,
		obs.IPAddress, now,
		obs.Hostname, obs.Hostname,
		obs.Brand,
		obs.DeviceType, obs.DeviceType,
		existing.ID)
	if err != nil {
		return nil, false, fmt.Errorf("failed to update device: %w", err)
	}

	updated, err := s.Get(ctx, existing.ID)
	if err != nil {
		return nil, false, err
	}
	return updated, false, nil
}

// MarkAllNonManualOffline flips every scan-managed device offline. Manual
// devices are never touched by scans.
func (s *DeviceStorage) MarkAllNonManualOffline(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE devices SET is_online = 0 WHERE status != ?", model.StatusManual)
	if err != nil {
		return fmt.Errorf("failed to mark devices offline: %w", err)
	}
	return nil
}

// DeviceCounts aggregates the current device set.
func (s *DeviceStorage) DeviceCounts(ctx context.Context) (*model.DeviceCounts, error) {
	var counts model.DeviceCounts
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
			COALESCE(SUM(is_online), 0),
			COALESCE(SUM(CASE WHEN is_online = 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		 FROM devices`, model.StatusNew).
		Scan(&counts.Total, &counts.Online, &counts.Offline, &counts.New)
	if err != nil {
		return nil, fmt.Errorf("failed to count devices: %w", err)
	}
	return &counts, nil
}

// AllKnownMACs returns every MAC address on record.
func (s *DeviceStorage) AllKnownMACs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT mac_address FROM devices WHERE mac_address IS NOT NULL")
	if err != nil {
		return nil, fmt.Errorf("failed to query MACs: %w", err)
	}
	defer rows.Close()

	var macs []string
	for rows.Next() {
		var mac string
		if err := rows.Scan(&mac); err != nil {
			return nil, err
		}
		macs = append(macs, mac)
	}
	return macs, rows.Err()
}
