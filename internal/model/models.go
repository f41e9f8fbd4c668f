// Package model defines core data structures for nettools.
package model

import "time"

// Device lifecycle statuses.
const (
	StatusNew    = "new"    // created by a scan, not yet confirmed by the user
	StatusSaved  = "saved"  // confirmed/edited by the user
	StatusManual = "manual" // created directly by the user
)

// IP assignment types.
const (
	IPTypeDHCP   = "dhcp"
	IPTypeStatic = "static"
)

// Device represents a persisted network device. MAC address is the
// reconciliation identity key; the IP address is informative only and may
// churn with DHCP.
type Device struct {
	ID          int64     `json:"id"`
	IPAddress   string    `json:"ip_address"`
	MACAddress  string    `json:"mac_address"`
	Hostname    string    `json:"hostname"`
	CustomName  string    `json:"custom_name"`
	Description string    `json:"description"`
	Brand       string    `json:"brand"`
	Location    string    `json:"location"`
	DeviceType  string    `json:"device_type"`
	IPType      string    `json:"ip_type"`
	Status      string    `json:"status"`
	IsOnline    bool      `json:"is_online"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Observation is one device sighting produced by a single scan pass, not yet
// reconciled with persisted state.
type Observation struct {
	IPAddress  string `json:"ip_address"`
	MACAddress string `json:"mac_address"`
	Hostname   string `json:"hostname"`
	Brand      string `json:"brand"`
	DeviceType string `json:"device_type"`
}

// Snapshot is a point-in-time aggregate of device counts, appended once per
// completed scan.
type Snapshot struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	TotalDevices   int       `json:"total_devices"`
	OnlineDevices  int       `json:"online_devices"`
	OfflineDevices int       `json:"offline_devices"`
	NewDevices     int       `json:"new_devices"`
}

// DeviceCounts holds the aggregate used to build a Snapshot.
type DeviceCounts struct {
	Total   int `json:"total"`
	Online  int `json:"online"`
	Offline int `json:"offline"`
	New     int `json:"new"`
}

// ScanSummary reports the outcome of one reconciled scan.
type ScanSummary struct {
	Found   int `json:"found"`
	New     int `json:"new_devices"`
	Updated int `json:"updated_devices"`
}

// SpeedTestResult holds one normalized speed test measurement. Download and
// upload are in Mbps regardless of which CLI produced the raw payload.
type SpeedTestResult struct {
	ID             int64     `json:"id"`
	Timestamp      time.Time `json:"timestamp"`
	DownloadMbps   float64   `json:"download_speed"`
	UploadMbps     float64   `json:"upload_speed"`
	PingMs         float64   `json:"ping"`
	JitterMs       float64   `json:"jitter"`
	ServerName     string    `json:"server_name"`
	ServerID       string    `json:"server_id"`
	ServerLocation string    `json:"server_location"`
	ISP            string    `json:"isp"`
	ExternalIP     string    `json:"external_ip"`
	RawData        string    `json:"raw_data,omitempty"`
}

// SpeedTestStats aggregates the speed test history.
type SpeedTestStats struct {
	BestDownload float64 `json:"best_download"`
	BestUpload   float64 `json:"best_upload"`
	BestPing     float64 `json:"best_ping"`
	AvgDownload  float64 `json:"avg_download"`
	AvgUpload    float64 `json:"avg_upload"`
	AvgPing      float64 `json:"avg_ping"`
	TotalTests   int     `json:"total_tests"`
}

// SpeedTestServer describes a selectable speed test server.
type SpeedTestServer struct {
	ID       string  `json:"id"`
	Sponsor  string  `json:"sponsor"`
	Name     string  `json:"name"`
	Country  string  `json:"country"`
	Distance float64 `json:"d"`
}

// TraceResult represents a complete traceroute to one target.
type TraceResult struct {
	Target     string     `json:"target"`
	ResolvedIP string     `json:"resolved_ip"`
	Hops       []TraceHop `json:"hops"`
	TotalHops  int        `json:"total_hops"`
	Completed  bool       `json:"completed"`
}

// TraceHop is a single hop. Latency statistics are computed over successful
// probes only; a fully timed-out hop has Loss=100 and no latencies.
type TraceHop struct {
	Hop        int       `json:"hop"`
	IP         string    `json:"ip"`
	Hostname   string    `json:"hostname"`
	Latencies  []float64 `json:"latencies"`
	AvgLatency *float64  `json:"avg_latency"`
	MinLatency *float64  `json:"min_latency"`
	MaxLatency *float64  `json:"max_latency"`
	Loss       float64   `json:"loss"`
	Timeout    bool      `json:"timeout"`
}

// DNSLookupResult represents the outcome of one DNS query.
type DNSLookupResult struct {
	Domain        string      `json:"domain"`
	RecordType    string      `json:"record_type"`
	DNSServer     string      `json:"dns_server"`
	Records       []DNSRecord `json:"records"`
	QueryTimeMs   *int        `json:"query_time"`
	Authoritative bool        `json:"authoritative"`
	Error         string      `json:"error,omitempty"`
}

// DNSRecord is one answer record. Priority/Weight/Port apply to MX and SRV;
// the SOA fields are populated only for SOA answers.
type DNSRecord struct {
	Name       string `json:"name"`
	TTL        *int   `json:"ttl"`
	Type       string `json:"type"`
	Value      string `json:"value"`
	Priority   *int   `json:"priority,omitempty"`
	Weight     *int   `json:"weight,omitempty"`
	Port       *int   `json:"port,omitempty"`
	PrimaryNS  string `json:"primary_ns,omitempty"`
	AdminEmail string `json:"admin_email,omitempty"`
	Serial     string `json:"serial,omitempty"`
	Refresh    string `json:"refresh,omitempty"`
	Retry      string `json:"retry,omitempty"`
	Expire     string `json:"expire,omitempty"`
	MinimumTTL string `json:"minimum_ttl,omitempty"`
}

// ReverseLookupResult is the outcome of a PTR lookup.
type ReverseLookupResult struct {
	IP       string `json:"ip"`
	Hostname string `json:"hostname"`
	Error    string `json:"error,omitempty"`
}

// PingResult is the outcome of pinging a single host.
type PingResult struct {
	IP        string   `json:"ip"`
	Reachable bool     `json:"is_reachable"`
	LatencyMs *float64 `json:"latency"`
	Name      string   `json:"name,omitempty"`
}

// Settings is the runtime configuration stored in the settings table. The
// scheduler re-reads it on every rebuild.
type Settings struct {
	AutoSpeedTest        bool   `json:"auto_speed_test"`
	SpeedTestFrequency   int    `json:"speed_test_frequency"`
	SpeedTestRetention   int    `json:"speed_test_retention"`
	AutoNetworkScan      bool   `json:"auto_network_scan"`
	NetworkScanFrequency int    `json:"network_scan_frequency"`
	NetworkRange         string `json:"network_range"`
	NotifyNewDevices     bool   `json:"notify_new_devices"`
	TelegramEnabled      bool   `json:"telegram_enabled"`
	TelegramBotToken     string `json:"telegram_bot_token"`
	TelegramChatID       string `json:"telegram_chat_id"`
}
