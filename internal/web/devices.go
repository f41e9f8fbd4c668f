package web

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/user/nettools/internal/model"
	"github.com/user/nettools/internal/scheduler"
	"github.com/user/nettools/internal/storage"
)

// DevicesCollection lists devices or creates one manually.
func (h *Handlers) DevicesCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		devices, err := h.devices.List(r.Context())
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		if devices == nil {
			devices = []model.Device{}
		}
		writeJSON(w, devices)

	case http.MethodPost:
		var d model.Device
		if err := decodeStrict(r, &d); err != nil {
			writeErrorMsg(w, "invalid device payload", http.StatusBadRequest)
			return
		}
		if d.IPAddress == "" {
			writeErrorMsg(w, "ip_address is required", http.StatusBadRequest)
			return
		}

		if err := h.devices.Create(r.Context(), &d); err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSONStatus(w, d, http.StatusCreated)

	default:
		methodNotAllowed(w)
	}
}

// deviceUpdate carries a partial device edit. Pointer fields distinguish
// "not sent" from "set to empty".
type deviceUpdate struct {
	IPAddress   *string `json:"ip_address"`
	MACAddress  *string `json:"mac_address"`
	Hostname    *string `json:"hostname"`
	CustomName  *string `json:"custom_name"`
	Description *string `json:"description"`
	Brand       *string `json:"brand"`
	Location    *string `json:"location"`
	DeviceType  *string `json:"device_type"`
	IPType      *string `json:"ip_type"`
	Status      *string `json:"status"`
}

// DeviceItem reads, edits or deletes one device by ID.
func (h *Handlers) DeviceItem(w http.ResponseWriter, r *http.Request) {
	idStr := strings.TrimPrefix(r.URL.Path, "/api/devices/")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return
	}

	ctx := r.Context()
	device, err := h.devices.Get(ctx, id)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	if device == nil {
		writeErrorMsg(w, "device not found", http.StatusNotFound)
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, device)

	case http.MethodPut:
		var upd deviceUpdate
		if err := decodeStrict(r, &upd); err != nil {
			writeErrorMsg(w, "invalid device payload", http.StatusBadRequest)
			return
		}

		applyUpdate(device, &upd)
		// An edit confirms a discovered device unless the caller picked a
		// status themselves.
		if device.Status == model.StatusNew && upd.Status == nil {
			device.Status = model.StatusSaved
		}

		if err := h.devices.Update(ctx, device); err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}

		updated, err := h.devices.Get(ctx, id)
		if err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, updated)

	case http.MethodDelete:
		if err := h.devices.Delete(ctx, id); err != nil {
			writeError(w, err, http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"deleted": true})

	default:
		methodNotAllowed(w)
	}
}

func applyUpdate(d *model.Device, upd *deviceUpdate) {
	if upd.IPAddress != nil {
		d.IPAddress = *upd.IPAddress
	}
	if upd.MACAddress != nil {
		d.MACAddress = *upd.MACAddress
	}
	if upd.Hostname != nil {
		d.Hostname = *upd.Hostname
	}
	if upd.CustomName != nil {
		d.CustomName = *upd.CustomName
	}
	if upd.Description != nil {
		d.Description = *upd.Description
	}
	if upd.Brand != nil {
		d.Brand = *upd.Brand
	}
	if upd.Location != nil {
		d.Location = *upd.Location
	}
	if upd.DeviceType != nil {
		d.DeviceType = *upd.DeviceType
	}
	if upd.IPType != nil {
		d.IPType = *upd.IPType
	}
	if upd.Status != nil {
		d.Status = *upd.Status
	}
}

// RunScan triggers one scan pass. A scan already holding the guard means
// conflict, never queueing.
func (h *Handlers) RunScan(w http.ResponseWriter, r *http.Request) {
	if err := h.sched.AcquireScan(); err != nil {
		if errors.Is(err, scheduler.ErrScanInProgress) {
			writeError(w, err, http.StatusConflict)
			return
		}
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	defer h.sched.ReleaseScan()

	summary, err := h.scanRunner.RunScan(r.Context())
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(w, summary.ScanSummary())
}

// ScanStatus describes the scan job and its guard.
func (h *Handlers) ScanStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.sched.ScanStatus())
}

// DeviceHistory lists device count snapshots over a time range.
func (h *Handlers) DeviceHistory(w http.ResponseWriter, r *http.Request) {
	rangeKey := r.URL.Query().Get("range")
	if !storage.ValidRange(rangeKey) {
		writeErrorMsg(w, "invalid range", http.StatusBadRequest)
		return
	}

	snapshots, err := h.snapshots.List(r.Context(), rangeKey)
	if err != nil {
		writeError(w, err, http.StatusInternalServerError)
		return
	}
	if snapshots == nil {
		snapshots = []model.Snapshot{}
	}
	writeJSON(w, snapshots)
}
