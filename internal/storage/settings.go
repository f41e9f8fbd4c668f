package storage

import (
	"context"
	"fmt"
	"strconv"

	"github.com/user/nettools/internal/model"
)

// SettingsStorage handles the runtime settings key/value table.
type SettingsStorage struct {
	db *DB
}

// NewSettingsStorage creates a new settings storage handler.
func NewSettingsStorage(db *DB) *SettingsStorage {
	return &SettingsStorage{db: db}
}

// Get reads the settings table into its typed form. Missing keys fall back
// to the seeded defaults.
func (s *SettingsStorage) Get(ctx context.Context) (*model.Settings, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, fmt.Errorf("failed to query settings: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string, len(defaultSettings))
	for key, value := range defaultSettings {
		values[key] = value
	}
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	settings := &model.Settings{
		AutoSpeedTest:        values["auto_speed_test"] == "true",
		AutoNetworkScan:      values["auto_network_scan"] == "true",
		NetworkRange:         values["network_range"],
		NotifyNewDevices:     values["notify_new_devices"] == "true",
		TelegramEnabled:      values["telegram_enabled"] == "true",
		TelegramBotToken:     values["telegram_bot_token"],
		TelegramChatID:       values["telegram_chat_id"],
		SpeedTestFrequency:   atoiDefault(values["speed_test_frequency"], 60),
		SpeedTestRetention:   atoiDefault(values["speed_test_retention"], 30),
		NetworkScanFrequency: atoiDefault(values["network_scan_frequency"], 15),
	}
	return settings, nil
}

// Update writes the typed settings back to the key/value table.
func (s *SettingsStorage) Update(ctx context.Context, settings *model.Settings) error {
	values := map[string]string{
		"auto_speed_test":        strconv.FormatBool(settings.AutoSpeedTest),
		"speed_test_frequency":   strconv.Itoa(settings.SpeedTestFrequency),
		"speed_test_retention":   strconv.Itoa(settings.SpeedTestRetention),
		"auto_network_scan":      strconv.FormatBool(settings.AutoNetworkScan),
		"network_scan_frequency": strconv.Itoa(settings.NetworkScanFrequency),
		"network_range":          settings.NetworkRange,
		"notify_new_devices":     strconv.FormatBool(settings.NotifyNewDevices),
		"telegram_enabled":       strconv.FormatBool(settings.TelegramEnabled),
		"telegram_bot_token":     settings.TelegramBotToken,
		"telegram_chat_id":       settings.TelegramChatID,
	}

	for key, value := range values {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO settings (key, value) VALUES (?, ?)
			 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
		if err != nil {
			return fmt.Errorf("failed to update setting %s: %w", key, err)
		}
	}
	return nil
}

func atoiDefault(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
