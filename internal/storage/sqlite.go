// Package storage provides SQLite persistence for nettools.
package storage

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite database connection.
type DB struct {
	*sql.DB
}

// Initialize opens the database under dataDir and creates the schema.
func Initialize(dataDir string) (*DB, error) {
	return Open(filepath.Join(dataDir, "nettools.db"))
}

// Open opens the database at path and creates the schema. Tests pass
// ":memory:".
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	wrapped := &DB{DB: db}
	if err := wrapped.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	if err := wrapped.seedSettings(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to seed settings: %w", err)
	}

	return wrapped, nil
}

func (db *DB) createTables() error {
	tables := []string{
		`CREATE TABLE IF NOT EXISTS devices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			ip_address TEXT NOT NULL,
			mac_address TEXT UNIQUE,
			hostname TEXT DEFAULT '',
			custom_name TEXT DEFAULT '',
			description TEXT DEFAULT '',
			brand TEXT DEFAULT '',
			location TEXT DEFAULT '',
			device_type TEXT DEFAULT 'other',
			ip_type TEXT DEFAULT 'dhcp',
			status TEXT DEFAULT 'new',
			is_online INTEGER DEFAULT 0,
			first_seen DATETIME,
			last_seen DATETIME,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_devices_mac ON devices(mac_address)`,
		`CREATE INDEX IF NOT EXISTS idx_devices_status ON devices(status)`,
		`CREATE INDEX IF NOT EXISTS idx_devices_online ON devices(is_online)`,

		`CREATE TABLE IF NOT EXISTS device_snapshots (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			total_devices INTEGER DEFAULT 0,
			online_devices INTEGER DEFAULT 0,
			offline_devices INTEGER DEFAULT 0,
			new_devices INTEGER DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshots_timestamp ON device_snapshots(timestamp)`,

		`CREATE TABLE IF NOT EXISTS speed_tests (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			download_speed REAL,
			upload_speed REAL,
			ping REAL,
			jitter REAL,
			server_name TEXT DEFAULT '',
			server_id TEXT DEFAULT '',
			server_location TEXT DEFAULT '',
			isp TEXT DEFAULT '',
			external_ip TEXT DEFAULT '',
			raw_data TEXT DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS idx_speed_tests_timestamp ON speed_tests(timestamp)`,

		`CREATE TABLE IF NOT EXISTS ping_results (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			device_id INTEGER,
			ip TEXT NOT NULL,
			is_reachable INTEGER DEFAULT 0,
			latency REAL,
			timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (device_id) REFERENCES devices(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ping_results_timestamp ON ping_results(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_ping_results_device ON ping_results(device_id)`,

		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, table := range tables {
		if _, err := db.Exec(table); err != nil {
			return fmt.Errorf("failed to execute: %s: %w", table, err)
		}
	}

	return nil
}

var defaultSettings = map[string]string{
	"auto_speed_test":        "false",
	"speed_test_frequency":   "60",
	"speed_test_retention":   "30",
	"auto_network_scan":      "true",
	"network_scan_frequency": "15",
	"network_range":          "192.168.1.0/24",
	"notify_new_devices":     "false",
	"telegram_enabled":       "false",
	"telegram_bot_token":     "",
	"telegram_chat_id":       "",
}

func (db *DB) seedSettings() error {
	for key, value := range defaultSettings {
		if _, err := db.Exec(
			"INSERT OR IGNORE INTO settings (key, value) VALUES (?, ?)", key, value); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.DB.Close()
}

// rangeCutoff maps a time-range key to its lookback cutoff. Returns ok=false
// for "all" or an empty key, meaning no cutoff applies.
func rangeCutoff(rangeKey string, now time.Time) (time.Time, bool) {
	lookbacks := map[string]time.Duration{
		"1h":   time.Hour,
		"6h":   6 * time.Hour,
		"24h":  24 * time.Hour,
		"7d":   7 * 24 * time.Hour,
		"30d":  30 * 24 * time.Hour,
		"90d":  90 * 24 * time.Hour,
		"365d": 365 * 24 * time.Hour,
	}

	d, ok := lookbacks[rangeKey]
	if !ok {
		return time.Time{}, false
	}
	return now.Add(-d), true
}

// ValidRange reports whether rangeKey is a recognized time-range filter.
func ValidRange(rangeKey string) bool {
	if rangeKey == "" || rangeKey == "all" {
		return true
	}
	_, ok := rangeCutoff(rangeKey, time.Now())
	return ok
}
