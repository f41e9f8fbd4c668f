package web

import (
	"net/http"

	"github.com/user/nettools/internal/util"
)

// Ping pings one host and records the outcome.
func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IP string `json:"ip"`
	}
	if err := decodeStrict(r, &req); err != nil {
		writeErrorMsg(w, "invalid ping payload", http.StatusBadRequest)
		return
	}

	result, err := h.pinger.Ping(r.Context(), req.IP)
	if err != nil {
		probeError(w, err)
		return
	}

	if err := h.pings.Append(r.Context(), nil, result); err != nil {
		util.Error().Err(err).Msg("could not store ping result")
	}
	writeJSON(w, result)
}

// PingBatch pings many hosts with bounded fan-out.
func (h *Handlers) PingBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IPs []string `json:"ips"`
	}
	if err := decodeStrict(r, &req); err != nil || len(req.IPs) == 0 {
		writeErrorMsg(w, "ips is required", http.StatusBadRequest)
		return
	}

	results := h.pinger.PingBatch(r.Context(), req.IPs)
	writeJSON(w, map[string]any{"results": results})
}

// Traceroute traces the route to a target.
func (h *Handlers) Traceroute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Target  string `json:"target"`
		MaxHops int    `json:"max_hops"`
	}
	if err := decodeStrict(r, &req); err != nil {
		writeErrorMsg(w, "invalid traceroute payload", http.StatusBadRequest)
		return
	}

	result, err := h.tracer.Trace(r.Context(), req.Target, req.MaxHops)
	if err != nil {
		probeError(w, err)
		return
	}
	writeJSON(w, result)
}

// NSLookup answers a DNS query.
func (h *Handlers) NSLookup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Domain     string `json:"domain"`
		DNSServer  string `json:"dns_server"`
		RecordType string `json:"record_type"`
	}
	if err := decodeStrict(r, &req); err != nil {
		writeErrorMsg(w, "invalid lookup payload", http.StatusBadRequest)
		return
	}

	result, err := h.dns.Lookup(r.Context(), req.Domain, req.DNSServer, req.RecordType)
	if err != nil {
		probeError(w, err)
		return
	}
	writeJSON(w, result)
}

// ReverseLookup answers a PTR query.
func (h *Handlers) ReverseLookup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IP string `json:"ip"`
	}
	if err := decodeStrict(r, &req); err != nil {
		writeErrorMsg(w, "invalid lookup payload", http.StatusBadRequest)
		return
	}

	result, err := h.dns.ReverseLookup(r.Context(), req.IP)
	if err != nil {
		probeError(w, err)
		return
	}
	writeJSON(w, result)
}
