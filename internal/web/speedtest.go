package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/user/nettools/internal/model"
	"github.com/user/nettools/internal/scheduler"
	"github.com/user/nettools/internal/storage"
	"github.com/user/nettools/internal/util"
)

// RunSpeedTest runs one speed test synchronously and stores the result.
func (h *Handlers) RunSpeedTest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ServerID string `json:"server_id"`
	}
	decodeBody(r, &req)

	if err := h.sched.AcquireSpeedTest(); err != nil {
		if errors.Is(err, scheduler.ErrSpeedTestInProgress) {
			writeError(w, err, http.StatusConflict)
			return
		}
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	defer h.sched.ReleaseSpeedTest()

	result, err := h.speedTester.Run(r.Context(), req.ServerID)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}

	if err := h.speedTests.Append(r.Context(), result); err != nil {
		util.Error().Err(err).Msg("could not store speed test result")
	}
	writeJSON(w, result)
}

// SpeedTestResults lists the history or clears it.
func (h *Handlers) SpeedTestResults(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		rangeKey := r.URL.Query().Get("range")
		if !storage.ValidRange(rangeKey) {
			writeErrorMsg(w, "invalid range", http.StatusBadRequest)
			return
		}

		limit := 0
		if l := r.URL.Query().Get("limit"); l != "" {
			if n, err := strconv.Atoi(l); err == nil && n > 0 {
				limit = n
			}
		}

		results, err := h.speedTests.List(r.Context(), rangeKey, limit)
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		if results == nil {
			results = []model.SpeedTestResult{}
		}
		writeJSON(w, results)

	case http.MethodDelete:
		n, err := h.speedTests.Clear(r.Context())
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"deleted": n})

	default:
		methodNotAllowed(w)
	}
}

// DeleteSpeedTestResult removes one result by ID.
func (h *Handlers) DeleteSpeedTestResult(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		methodNotAllowed(w)
		return
	}

	idStr := strings.TrimPrefix(r.URL.Path, "/api/speedtest/results/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	deleted, err := h.speedTests.Delete(r.Context(), id)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	if !deleted {
		writeErrorMsg(w, "speed test not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{"deleted": true})
}

// LatestSpeedTest returns the most recent result.
func (h *Handlers) LatestSpeedTest(w http.ResponseWriter, r *http.Request) {
	latest, err := h.speedTests.Latest(r.Context())
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	if latest == nil {
		writeErrorMsg(w, "no speed tests recorded", http.StatusNotFound)
		return
	}
	writeJSON(w, latest)
}

// SpeedTestStats aggregates the history over a time range.
func (h *Handlers) SpeedTestStats(w http.ResponseWriter, r *http.Request) {
	rangeKey := r.URL.Query().Get("range")
	if !storage.ValidRange(rangeKey) {
		writeErrorMsg(w, "invalid range", http.StatusBadRequest)
		return
	}

	stats, err := h.speedTests.Stats(r.Context(), rangeKey)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, stats)
}

// SpeedTestStatus describes the speed test job and its guard.
func (h *Handlers) SpeedTestStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.sched.SpeedTestStatus())
}

// SpeedTestServers lists nearby servers.
func (h *Handlers) SpeedTestServers(w http.ResponseWriter, r *http.Request) {
	servers, err := h.speedTester.Servers(r.Context())
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	if servers == nil {
		servers = []model.SpeedTestServer{}
	}
	writeJSON(w, servers)
}
