package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/user/nettools/internal/notify"
	"github.com/user/nettools/internal/probes"
	"github.com/user/nettools/internal/reconcile"
	"github.com/user/nettools/internal/scheduler"
	"github.com/user/nettools/internal/storage"
	"github.com/user/nettools/internal/util"
)

// Handlers contains the HTTP handlers.
type Handlers struct {
	devices    *storage.DeviceStorage
	snapshots  *storage.SnapshotStorage
	speedTests *storage.SpeedTestStorage
	settings   *storage.SettingsStorage
	pings      *storage.PingStorage

	sched       *scheduler.Scheduler
	scanRunner  *reconcile.Runner
	speedTester *probes.SpeedTester
	tracer      *probes.Tracer
	dns         *probes.DNSLookup
	pinger      *probes.Pinger
	notifier    *notify.Telegram
}

// NewHandlers creates the handlers.
func NewHandlers(
	db *storage.DB,
	sched *scheduler.Scheduler,
	scanRunner *reconcile.Runner,
	speedTester *probes.SpeedTester,
	tracer *probes.Tracer,
	dns *probes.DNSLookup,
	pinger *probes.Pinger,
	notifier *notify.Telegram,
) *Handlers {
	return &Handlers{
		devices:     storage.NewDeviceStorage(db),
		snapshots:   storage.NewSnapshotStorage(db),
		speedTests:  storage.NewSpeedTestStorage(db),
		settings:    storage.NewSettingsStorage(db),
		pings:       storage.NewPingStorage(db),
		sched:       sched,
		scanRunner:  scanRunner,
		speedTester: speedTester,
		tracer:      tracer,
		dns:         dns,
		pinger:      pinger,
		notifier:    notifier,
	}
}

// Register wires all routes onto mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/health", get(h.Health))

	mux.HandleFunc("/api/speedtest/run", post(h.RunSpeedTest))
	mux.HandleFunc("/api/speedtest/results", h.SpeedTestResults)
	mux.HandleFunc("/api/speedtest/results/", h.DeleteSpeedTestResult)
	mux.HandleFunc("/api/speedtest/latest", get(h.LatestSpeedTest))
	mux.HandleFunc("/api/speedtest/stats", get(h.SpeedTestStats))
	mux.HandleFunc("/api/speedtest/status", get(h.SpeedTestStatus))
	mux.HandleFunc("/api/speedtest/servers", get(h.SpeedTestServers))

	mux.HandleFunc("/api/devices", h.DevicesCollection)
	mux.HandleFunc("/api/devices/scan", post(h.RunScan))
	mux.HandleFunc("/api/devices/scan/status", get(h.ScanStatus))
	mux.HandleFunc("/api/devices/history", get(h.DeviceHistory))
	mux.HandleFunc("/api/devices/", h.DeviceItem)

	mux.HandleFunc("/api/ping", post(h.Ping))
	mux.HandleFunc("/api/ping/batch", post(h.PingBatch))
	mux.HandleFunc("/api/traceroute", post(h.Traceroute))
	mux.HandleFunc("/api/nslookup", post(h.NSLookup))
	mux.HandleFunc("/api/nslookup/reverse", post(h.ReverseLookup))

	mux.HandleFunc("/api/settings", h.Settings)
	mux.HandleFunc("/api/settings/telegram/test", post(h.TestTelegram))
	mux.HandleFunc("/api/export", get(h.Export))
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Settings reads or replaces the runtime settings.
func (h *Handlers) Settings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := h.settings.Get(r.Context())
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, settings)

	case http.MethodPut:
		settings, err := h.settings.Get(r.Context())
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}

		// Decoding over the current values keeps omitted fields intact.
		if err := json.NewDecoder(r.Body).Decode(settings); err != nil {
			writeErrorMsg(w, "invalid settings payload", http.StatusBadRequest)
			return
		}

		if err := h.settings.Update(r.Context(), settings); err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}

		// Interval or enablement changes take effect immediately.
		if err := h.sched.Rebuild(r.Context()); err != nil {
			util.Error().Err(err).Msg("scheduler rebuild failed")
		}

		writeJSON(w, settings)

	default:
		methodNotAllowed(w)
	}
}

// TestTelegram sends a test notification with the supplied credentials,
// falling back to the stored ones.
func (h *Handlers) TestTelegram(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BotToken string `json:"bot_token"`
		ChatID   string `json:"chat_id"`
	}
	decodeBody(r, &req)

	if req.BotToken == "" || req.ChatID == "" {
		settings, err := h.settings.Get(r.Context())
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		if req.BotToken == "" {
			req.BotToken = settings.TelegramBotToken
		}
		if req.ChatID == "" {
			req.ChatID = settings.TelegramChatID
		}
	}

	if err := h.notifier.TestConnection(r.Context(), req.BotToken, req.ChatID); err != nil {
		writeJSONStatus(w, map[string]any{"success": false, "error": err.Error()}, http.StatusBadRequest)
		return
	}
	writeJSON(w, map[string]any{"success": true})
}

// Export dumps the full dataset as a JSON attachment.
func (h *Handlers) Export(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	devices, err := h.devices.List(ctx)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	snapshots, err := h.snapshots.List(ctx, "all")
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	speedTests, err := h.speedTests.List(ctx, "all", 0)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	settings, err := h.settings.Get(ctx)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=nettools_export.json")
	json.NewEncoder(w).Encode(map[string]any{
		"exported_at": time.Now().UTC().Format(time.RFC3339),
		"devices":     devices,
		"history":     snapshots,
		"speed_tests": speedTests,
		"settings":    settings,
	})
}

func get(h http.HandlerFunc) http.HandlerFunc {
	return allow(http.MethodGet, h)
}

func post(h http.HandlerFunc) http.HandlerFunc {
	return allow(http.MethodPost, h)
}

func allow(method string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			methodNotAllowed(w)
			return
		}
		h(w, r)
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeErrorMsg(w, "method not allowed", http.StatusMethodNotAllowed)
}

// decodeStrict decodes a required JSON body.
func decodeStrict(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// decodeBody decodes an optional JSON body; an empty body leaves the target
// zero-valued.
func decodeBody(r *http.Request, v any) {
	if r.Body == nil {
		return
	}
	_ = json.NewDecoder(r.Body).Decode(v)
}

// probeError maps probe failures to status codes: rejected input is the
// caller's fault, everything else is ours.
func probeError(w http.ResponseWriter, err error) {
	if errors.Is(err, probes.ErrValidation) {
		writeError(w, err, http.StatusBadRequest)
		return
	}
	writeError(w, err, http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeJSONStatus(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error, status int) {
	writeJSONStatus(w, map[string]string{"error": err.Error()}, status)
}

func writeErrorMsg(w http.ResponseWriter, msg string, status int) {
	writeJSONStatus(w, map[string]string{"error": msg}, status)
}
