// Package notify delivers alerts about newly discovered devices.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/user/nettools/internal/model"
	"github.com/user/nettools/internal/util"
)

const telegramAPI = "https://api.telegram.org"

// CredentialsSource supplies the Telegram settings at send time so edits
// through the settings API take effect without a restart.
type CredentialsSource interface {
	Get(ctx context.Context) (*model.Settings, error)
}

// Telegram sends alerts through the Telegram Bot API.
type Telegram struct {
	settings CredentialsSource
	client   *http.Client
	baseURL  string
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(settings CredentialsSource) *Telegram {
	return &Telegram{
		settings: settings,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: telegramAPI,
	}
}

// NotifyNewDevices sends one alert listing the given devices. Disabled or
// misconfigured notifications and delivery failures are logged, never
// propagated; a scan must not fail because an alert did.
func (t *Telegram) NotifyNewDevices(ctx context.Context, devices []*model.Device) bool {
	if len(devices) == 0 {
		return false
	}

	settings, err := t.settings.Get(ctx)
	if err != nil {
		util.Error().Err(err).Msg("could not load notification settings")
		return false
	}
	if !settings.NotifyNewDevices || !settings.TelegramEnabled {
		return false
	}
	if settings.TelegramBotToken == "" || settings.TelegramChatID == "" {
		util.Warn().Msg("telegram enabled but not configured")
		return false
	}

	msg := formatNewDevices(devices)
	if err := t.send(ctx, settings.TelegramBotToken, settings.TelegramChatID, msg); err != nil {
		util.Error().Err(err).Msg("telegram notification failed")
		return false
	}

	util.Info().Int("devices", len(devices)).Msg("telegram notification sent")
	return true
}

// TestConnection sends a test message with explicit credentials so the
// settings page can verify them before saving.
func (t *Telegram) TestConnection(ctx context.Context, botToken, chatID string) error {
	if botToken == "" || chatID == "" {
		return fmt.Errorf("bot token and chat ID are required")
	}
	return t.send(ctx, botToken, chatID,
		"✅ <b>NetTools</b>\nTelegram notifications are working.")
}

func formatNewDevices(devices []*model.Device) string {
	var buf bytes.Buffer
	if len(devices) == 1 {
		buf.WriteString("\U0001F50D <b>New device on your network</b>\n")
	} else {
		fmt.Fprintf(&buf, "\U0001F50D <b>%d new devices on your network</b>\n", len(devices))
	}

	for _, d := range devices {
		name := d.Hostname
		if name == "" {
			name = "unknown"
		}
		fmt.Fprintf(&buf, "\n<b>%s</b>\nIP: <code>%s</code>\nMAC: <code>%s</code>\n", name, d.IPAddress, d.MACAddress)
		if d.Brand != "" {
			fmt.Fprintf(&buf, "Brand: %s\n", d.Brand)
		}
		fmt.Fprintf(&buf, "Type: %s\n", d.DeviceType)
	}
	return buf.String()
}

func (t *Telegram) send(ctx context.Context, botToken, chatID, text string) error {
	payload, err := json.Marshal(map[string]string{
		"chat_id":    chatID,
		"text":       text,
		"parse_mode": "HTML",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram API returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
