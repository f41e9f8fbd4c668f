package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/nettools/internal/model"
	"github.com/user/nettools/internal/notify"
	"github.com/user/nettools/internal/probes"
	"github.com/user/nettools/internal/reconcile"
	"github.com/user/nettools/internal/scheduler"
	"github.com/user/nettools/internal/storage"
)

// fakeRunner serves queued tool output keyed by binary name.
type fakeRunner struct {
	mu        sync.Mutex
	responses map[string][]*probes.ExecResult
}

func (f *fakeRunner) Available(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.responses[name]
	return ok
}

func (f *fakeRunner) Run(_ context.Context, name string, _ []string, _ time.Duration) (*probes.ExecResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	queue := f.responses[name]
	if len(queue) == 0 {
		return nil, fmt.Errorf("%w: %s", probes.ErrToolUnavailable, name)
	}
	res := queue[0]
	f.responses[name] = queue[1:]
	return res, nil
}

func newTestMux(t *testing.T, responses map[string][]*probes.ExecResult) (*http.ServeMux, *storage.DB) {
	t.Helper()

	db, err := storage.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	runner := &fakeRunner{responses: responses}
	settings := storage.NewSettingsStorage(db)

	reconciler := reconcile.New(storage.NewScanStore(db))
	scanRunner := reconcile.NewRunner(probes.NewScanner(runner, "eth0"), reconciler, nil, settings)
	sched := scheduler.New(settings, func(context.Context) error { return nil }, func(context.Context) error { return nil })

	handlers := NewHandlers(
		db,
		sched,
		scanRunner,
		probes.NewSpeedTester(runner),
		probes.NewTracer(runner, 30),
		probes.NewDNSLookup(runner),
		probes.NewPinger(runner, 5, time.Second),
		notify.NewTelegram(settings),
	)

	mux := http.NewServeMux()
	handlers.Register(mux)
	return mux, db
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	mux, _ := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodGet, "/api/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

const arpScanFixture = `192.168.1.1	a4:2b:b0:c1:d2:e3	TP-Link Technologies
192.168.1.10	aa:bb:cc:dd:ee:01	Synology Incorporated
`

func TestScanEndpoint(t *testing.T) {
	mux, _ := newTestMux(t, map[string][]*probes.ExecResult{
		"arp-scan": {{Stdout: arpScanFixture}},
	})

	rec := doJSON(t, mux, http.MethodPost, "/api/devices/scan", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var summary model.ScanSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.Equal(t, 2, summary.Found)
	assert.Equal(t, 2, summary.New)
	assert.Equal(t, 0, summary.Updated)

	rec = doJSON(t, mux, http.MethodGet, "/api/devices", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var devices []model.Device
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &devices))
	require.Len(t, devices, 2)

	rec = doJSON(t, mux, http.MethodGet, "/api/devices/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var snapshots []model.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snapshots))
	require.Len(t, snapshots, 1)
	assert.Equal(t, 2, snapshots[0].TotalDevices)
}

func TestScanExhaustedReturns500(t *testing.T) {
	mux, _ := newTestMux(t, map[string][]*probes.ExecResult{})

	rec := doJSON(t, mux, http.MethodPost, "/api/devices/scan", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "scan")
}

func TestDeviceLifecycle(t *testing.T) {
	mux, _ := newTestMux(t, map[string][]*probes.ExecResult{
		"arp-scan": {{Stdout: arpScanFixture}},
	})

	rec := doJSON(t, mux, http.MethodPost, "/api/devices/scan", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/devices", nil)
	var devices []model.Device
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &devices))
	require.NotEmpty(t, devices)
	id := devices[0].ID
	assert.Equal(t, model.StatusNew, devices[0].Status)

	// Editing a discovered device confirms it.
	rec = doJSON(t, mux, http.MethodPut, fmt.Sprintf("/api/devices/%d", id),
		map[string]string{"custom_name": "Living Room Router"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated model.Device
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Living Room Router", updated.CustomName)
	assert.Equal(t, model.StatusSaved, updated.Status)

	rec = doJSON(t, mux, http.MethodDelete, fmt.Sprintf("/api/devices/%d", id), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, fmt.Sprintf("/api/devices/%d", id), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateManualDevice(t *testing.T) {
	mux, _ := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/devices",
		map[string]string{"ip_address": "192.168.1.250", "custom_name": "Printer"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var d model.Device
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, model.StatusManual, d.Status)

	rec = doJSON(t, mux, http.MethodPost, "/api/devices", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

const ooklaVersionBanner = "Speedtest by Ookla 1.2.0.84"

const ooklaRunFixture = `{"download":{"bandwidth":12500000},"upload":{"bandwidth":2500000},"ping":{"latency":12.34,"jitter":1.2},"server":{"id":1234,"name":"Big ISP","country":"US"},"isp":"Example","interface":{"externalIp":"203.0.113.7"}}`

func TestSpeedTestRunAndHistory(t *testing.T) {
	mux, _ := newTestMux(t, map[string][]*probes.ExecResult{
		"speedtest": {
			{Stdout: ooklaVersionBanner},
			{Stdout: ooklaRunFixture},
		},
	})

	rec := doJSON(t, mux, http.MethodPost, "/api/speedtest/run", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result model.SpeedTestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 100.0, result.DownloadMbps)

	rec = doJSON(t, mux, http.MethodGet, "/api/speedtest/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/speedtest/results", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var results []model.SpeedTestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	assert.Len(t, results, 1)

	rec = doJSON(t, mux, http.MethodGet, "/api/speedtest/stats?range=24h", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stats model.SpeedTestStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalTests)

	rec = doJSON(t, mux, http.MethodDelete, "/api/speedtest/results", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/speedtest/latest", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSpeedTestInvalidRange(t *testing.T) {
	mux, _ := newTestMux(t, nil)
	rec := doJSON(t, mux, http.MethodGet, "/api/speedtest/results?range=2w", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProbeValidationReturns400(t *testing.T) {
	mux, _ := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/traceroute",
		map[string]any{"target": "example.com; rm -rf /"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/ping",
		map[string]string{"ip": "10.0.0.1 && reboot"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, mux, http.MethodPost, "/api/nslookup",
		map[string]string{"domain": "example.com", "record_type": "BOGUS"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPingEndpoint(t *testing.T) {
	mux, _ := newTestMux(t, map[string][]*probes.ExecResult{
		"ping": {{Stdout: "rtt min/avg/max/mdev = 1.234/1.234/1.234/0.000 ms"}},
	})

	rec := doJSON(t, mux, http.MethodPost, "/api/ping", map[string]string{"ip": "192.168.1.1"})
	require.Equal(t, http.StatusOK, rec.Code)

	var result model.PingResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Reachable)
	require.NotNil(t, result.LatencyMs)
	assert.InDelta(t, 1.23, *result.LatencyMs, 0.001)
}

func TestSettingsRoundTripRebuildsScheduler(t *testing.T) {
	mux, _ := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodGet, "/api/settings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var settings model.Settings
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
	assert.True(t, settings.AutoNetworkScan)

	settings.AutoSpeedTest = true
	settings.SpeedTestFrequency = 30
	rec = doJSON(t, mux, http.MethodPut, "/api/settings", settings)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/speedtest/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var status scheduler.JobStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Enabled)
}

func TestExport(t *testing.T) {
	mux, _ := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodGet, "/api/export", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "nettools_export.json")

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "devices")
	assert.Contains(t, body, "settings")
	assert.Contains(t, body, "speed_tests")
}

func TestMethodNotAllowed(t *testing.T) {
	mux, _ := newTestMux(t, nil)

	rec := doJSON(t, mux, http.MethodDelete, "/api/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/api/speedtest/run", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
