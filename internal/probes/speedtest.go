package probes

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/user/nettools/internal/model"
	"github.com/user/nettools/internal/util"
)

// SpeedTester measures internet throughput through the Ookla speedtest CLI
// or the Python speedtest-cli, whichever is installed. Both may be aliased
// as "speedtest", so a version probe inspects the --version banner for the
// Ookla marker before the real run.
type SpeedTester struct {
	runner Runner
}

// NewSpeedTester creates a speed test prober.
func NewSpeedTester(runner Runner) *SpeedTester {
	return &SpeedTester{runner: runner}
}

// hasOfficialCLI reports whether the "speedtest" binary is the official
// Ookla CLI rather than the Python speedtest-cli.
func (s *SpeedTester) hasOfficialCLI(ctx context.Context) bool {
	if !s.runner.Available("speedtest") {
		return false
	}

	res, err := s.runner.Run(ctx, "speedtest", []string{"--version"}, 10*time.Second)
	if err != nil {
		util.Warn().Err(err).Msg("could not check speedtest version")
		return false
	}

	banner := strings.ToLower(res.Stdout + res.Stderr)
	if strings.Contains(banner, "ookla") {
		return true
	}
	if strings.Contains(banner, "speedtest-cli") || strings.Contains(banner, "python") {
		return false
	}
	// Unknown binary, assume official and let the run decide.
	return true
}

// legacyCLI finds the command name for the Python speedtest-cli.
func (s *SpeedTester) legacyCLI() string {
	if s.runner.Available("speedtest-cli") {
		return "speedtest-cli"
	}
	return "speedtest"
}

// Run executes a speed test, optionally against a specific server. When the
// detected CLI errors at runtime the alternate CLI is tried once.
func (s *SpeedTester) Run(ctx context.Context, serverID string) (*model.SpeedTestResult, error) {
	if s.hasOfficialCLI(ctx) {
		result, err := s.runOfficial(ctx, serverID)
		if err == nil {
			return result, nil
		}
		util.Warn().Err(err).Msg("official speedtest failed, trying speedtest-cli")
		return s.runLegacy(ctx, serverID)
	}

	result, err := s.runLegacy(ctx, serverID)
	if err == nil {
		return result, nil
	}
	util.Warn().Err(err).Msg("speedtest-cli failed, trying official CLI")
	return s.runOfficial(ctx, serverID)
}

func (s *SpeedTester) runOfficial(ctx context.Context, serverID string) (*model.SpeedTestResult, error) {
	args := []string{"--format=json", "--accept-license", "--accept-gdpr"}
	if serverID != "" {
		args = append(args, "--server-id", serverID)
	}

	res, err := s.runner.Run(ctx, "speedtest", args, 120*time.Second)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("speedtest exited with %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	return ParseOoklaJSON([]byte(res.Stdout))
}

func (s *SpeedTester) runLegacy(ctx context.Context, serverID string) (*model.SpeedTestResult, error) {
	args := []string{"--json"}
	if serverID != "" {
		args = append(args, "--server", serverID)
	}

	res, err := s.runner.Run(ctx, s.legacyCLI(), args, 120*time.Second)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("speedtest-cli exited with %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	return ParseLegacyJSON([]byte(res.Stdout))
}

type ooklaPayload struct {
	Download struct {
		Bandwidth float64 `json:"bandwidth"`
	} `json:"download"`
	Upload struct {
		Bandwidth float64 `json:"bandwidth"`
	} `json:"upload"`
	Ping struct {
		Latency float64 `json:"latency"`
		Jitter  float64 `json:"jitter"`
	} `json:"ping"`
	Server struct {
		ID      int    `json:"id"`
		Name    string `json:"name"`
		Country string `json:"country"`
	} `json:"server"`
	ISP       string `json:"isp"`
	Interface struct {
		ExternalIP string `json:"externalIp"`
	} `json:"interface"`
}

// ParseOoklaJSON normalizes the official CLI payload. Ookla reports
// bandwidth in bytes per second, converted to Mbps via x8/1e6.
func ParseOoklaJSON(raw []byte) (*model.SpeedTestResult, error) {
	var p ooklaPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parsing speedtest output: %w", err)
	}

	return &model.SpeedTestResult{
		Timestamp:      time.Now(),
		DownloadMbps:   round2(p.Download.Bandwidth * 8 / 1e6),
		UploadMbps:     round2(p.Upload.Bandwidth * 8 / 1e6),
		PingMs:         round2(p.Ping.Latency),
		JitterMs:       round2(p.Ping.Jitter),
		ServerName:     p.Server.Name,
		ServerID:       strconv.Itoa(p.Server.ID),
		ServerLocation: p.Server.Name + ", " + p.Server.Country,
		ISP:            p.ISP,
		ExternalIP:     p.Interface.ExternalIP,
		RawData:        string(raw),
	}, nil
}

type legacyPayload struct {
	Download float64 `json:"download"`
	Upload   float64 `json:"upload"`
	Ping     float64 `json:"ping"`
	Server   struct {
		ID      string  `json:"id"`
		Sponsor string  `json:"sponsor"`
		Name    string  `json:"name"`
		Country string  `json:"country"`
		Latency float64 `json:"latency"`
	} `json:"server"`
	Client struct {
		ISP string `json:"isp"`
		IP  string `json:"ip"`
	} `json:"client"`
}

// ParseLegacyJSON normalizes the Python speedtest-cli payload, which
// reports bandwidth in bits per second (divide by 1e6 for Mbps).
func ParseLegacyJSON(raw []byte) (*model.SpeedTestResult, error) {
	var p legacyPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parsing speedtest-cli output: %w", err)
	}

	return &model.SpeedTestResult{
		Timestamp:      time.Now(),
		DownloadMbps:   round2(p.Download / 1e6),
		UploadMbps:     round2(p.Upload / 1e6),
		PingMs:         round2(p.Ping),
		JitterMs:       round2(p.Server.Latency),
		ServerName:     p.Server.Sponsor,
		ServerID:       p.Server.ID,
		ServerLocation: p.Server.Name + ", " + p.Server.Country,
		ISP:            p.Client.ISP,
		ExternalIP:     p.Client.IP,
		RawData:        string(raw),
	}, nil
}

// Servers lists available speed test servers sorted by distance, closest
// first, limited to the top 30.
func (s *SpeedTester) Servers(ctx context.Context) ([]model.SpeedTestServer, error) {
	if s.hasOfficialCLI(ctx) {
		servers, err := s.serversOfficial(ctx)
		if err == nil {
			return servers, nil
		}
		util.Warn().Err(err).Msg("official server list failed, trying speedtest-cli")
	}
	return s.serversLegacy(ctx)
}

func (s *SpeedTester) serversOfficial(ctx context.Context) ([]model.SpeedTestServer, error) {
	res, err := s.runner.Run(ctx, "speedtest", []string{
		"--servers", "--format=json", "--accept-license", "--accept-gdpr",
	}, 30*time.Second)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("speedtest --servers exited with %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	var payload struct {
		Servers []struct {
			ID       int     `json:"id"`
			Sponsor  string  `json:"sponsor"`
			Name     string  `json:"name"`
			Location string  `json:"location"`
			Country  string  `json:"country"`
			Distance float64 `json:"distance"`
		} `json:"servers"`
	}
	if err := json.Unmarshal([]byte(res.Stdout), &payload); err != nil {
		return nil, fmt.Errorf("parsing server list: %w", err)
	}

	servers := make([]model.SpeedTestServer, 0, len(payload.Servers))
	for _, sv := range payload.Servers {
		sponsor := sv.Sponsor
		if sponsor == "" {
			sponsor = sv.Name
		}
		name := sv.Location
		if name == "" {
			name = sv.Name
		}
		servers = append(servers, model.SpeedTestServer{
			ID:       strconv.Itoa(sv.ID),
			Sponsor:  sponsor,
			Name:     name,
			Country:  sv.Country,
			Distance: sv.Distance,
		})
	}

	return sortAndLimitServers(servers), nil
}

func (s *SpeedTester) serversLegacy(ctx context.Context) ([]model.SpeedTestServer, error) {
	res, err := s.runner.Run(ctx, s.legacyCLI(), []string{"--list"}, 30*time.Second)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, fmt.Errorf("speedtest-cli --list exited with %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}

	return sortAndLimitServers(ParseLegacyServerList(res.Stdout)), nil
}

// ParseLegacyServerList parses speedtest-cli --list lines of the form
// "ID) Sponsor (City, Country) [12.34 km]".
func ParseLegacyServerList(output string) []model.SpeedTestServer {
	var servers []model.SpeedTestServer

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "Retrieving") || strings.HasPrefix(line, "=") {
			continue
		}

		id, rest, ok := strings.Cut(line, ")")
		if !ok {
			continue
		}
		rest = strings.TrimSpace(rest)

		var distance float64
		if open := strings.LastIndex(rest, "["); open >= 0 {
			if end := strings.LastIndex(rest, "]"); end > open {
				distStr := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(rest[open+1:end]), "km"))
				distance, _ = strconv.ParseFloat(distStr, 64)
				rest = strings.TrimSpace(rest[:open])
			}
		}

		sponsor := rest
		var name, country string
		if open := strings.LastIndex(rest, "("); open >= 0 {
			if end := strings.LastIndex(rest, ")"); end > open {
				location := rest[open+1 : end]
				if city, rest2, ok := strings.Cut(location, ","); ok {
					name = strings.TrimSpace(city)
					country = strings.TrimSpace(rest2)
				} else {
					name = strings.TrimSpace(location)
				}
				sponsor = strings.TrimSpace(rest[:open])
			}
		}

		servers = append(servers, model.SpeedTestServer{
			ID:       strings.TrimSpace(id),
			Sponsor:  sponsor,
			Name:     name,
			Country:  country,
			Distance: distance,
		})
	}

	return servers
}

func sortAndLimitServers(servers []model.SpeedTestServer) []model.SpeedTestServer {
	sort.SliceStable(servers, func(i, j int) bool {
		di, dj := servers[i].Distance, servers[j].Distance
		if di <= 0 {
			di = 99999
		}
		if dj <= 0 {
			dj = 99999
		}
		return di < dj
	})
	if len(servers) > 30 {
		servers = servers[:30]
	}
	return servers
}
