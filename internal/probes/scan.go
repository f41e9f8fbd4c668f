package probes

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/user/nettools/internal/classify"
	"github.com/user/nettools/internal/model"
	"github.com/user/nettools/internal/util"
)

// ErrScanExhausted means every scan tier failed or found no devices.
var ErrScanExhausted = errors.New("all scan methods failed or returned no devices")

// Scanner discovers devices on the local subnet. Tiers are tried in order:
// arp-scan (fast, MAC+vendor), nmap ping sweep (MAC, sometimes hostname),
// and finally the system ARP cache (passive, prior traffic only). A tier
// that returns zero devices is a soft failure and the next tier is tried.
type Scanner struct {
	runner Runner
	iface  string
}

// NewScanner creates a device scanner running on the given interface.
func NewScanner(runner Runner, iface string) *Scanner {
	if iface == "" {
		iface = "eth0"
	}
	return &Scanner{runner: runner, iface: iface}
}

// Scan runs the tiered device discovery over networkRange.
func (s *Scanner) Scan(ctx context.Context, networkRange string) ([]model.Observation, error) {
	tiers := []struct {
		name string
		run  func(context.Context, string) ([]model.Observation, error)
	}{
		{"arp-scan", s.scanWithARPScan},
		{"nmap", s.scanWithNmap},
		{"arp-table", s.scanARPTable},
	}

	for _, tier := range tiers {
		obs, err := tier.run(ctx, networkRange)
		if err != nil {
			util.Warn().Str("tier", tier.name).Err(err).Msg("scan tier failed")
			continue
		}
		if len(obs) == 0 {
			util.Debug().Str("tier", tier.name).Msg("scan tier found no devices")
			continue
		}
		util.Info().Str("tier", tier.name).Int("devices", len(obs)).Msg("scan completed")
		return obs, nil
	}

	return nil, ErrScanExhausted
}

func (s *Scanner) scanWithARPScan(ctx context.Context, _ string) ([]model.Observation, error) {
	res, err := s.runner.Run(ctx, "arp-scan", []string{
		"--localnet", "--retry=2", "--timeout=1000", "--interface=" + s.iface,
	}, 60*time.Second)
	if err != nil {
		return nil, err
	}
	return ParseARPScanOutput(res.Stdout), nil
}

func (s *Scanner) scanWithNmap(ctx context.Context, networkRange string) ([]model.Observation, error) {
	res, err := s.runner.Run(ctx, "nmap", []string{
		"-sn", "-PR", networkRange, "--max-retries", "1", "--host-timeout", "5s",
	}, 120*time.Second)
	if err != nil {
		return nil, err
	}
	return ParseNmapOutput(res.Stdout), nil
}

func (s *Scanner) scanARPTable(ctx context.Context, _ string) ([]model.Observation, error) {
	res, err := s.runner.Run(ctx, "arp", []string{"-a"}, 10*time.Second)
	if err != nil {
		return nil, err
	}
	return ParseARPTableOutput(res.Stdout), nil
}

var arpScanLineRe = regexp.MustCompile(`^(\d+\.\d+\.\d+\.\d+)\s+((?:[0-9a-fA-F]{2}:){5}[0-9a-fA-F]{2})\s+(.*)$`)

// ParseARPScanOutput extracts (ip, mac, vendor) triples from arp-scan table
// output. Lines that do not match the triple format (header, footer, packet
// counts) are ignored.
func ParseARPScanOutput(output string) []model.Observation {
	var devices []model.Observation

	for _, line := range strings.Split(output, "\n") {
		m := arpScanLineRe.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}

		brand := strings.TrimSpace(m[3])
		if brand == "(Unknown)" {
			brand = ""
		}
		mac := strings.ToUpper(m[2])

		devices = append(devices, model.Observation{
			IPAddress:  m[1],
			MACAddress: mac,
			Brand:      brand,
			DeviceType: classify.Classify(brand, "", mac),
		})
	}

	return devices
}

var (
	nmapHostRe = regexp.MustCompile(`Nmap scan report for (?:(\S+) \()?(\d+\.\d+\.\d+\.\d+)\)?`)
	nmapMACRe  = regexp.MustCompile(`MAC Address: ((?:[0-9A-F]{2}:){5}[0-9A-F]{2})\s*\(?(.*?)\)?$`)
)

// ParseNmapOutput extracts devices from `nmap -sn` host reports. The MAC
// line follows its host line, so entries accumulate until the next report
// header.
func ParseNmapOutput(output string) []model.Observation {
	var devices []model.Observation
	var current *model.Observation

	for _, line := range strings.Split(output, "\n") {
		if m := nmapHostRe.FindStringSubmatch(line); m != nil {
			if current != nil && current.IPAddress != "" {
				devices = append(devices, *current)
			}
			current = &model.Observation{
				IPAddress:  m[2],
				Hostname:   m[1],
				DeviceType: classify.TypeOther,
			}
			continue
		}

		if m := nmapMACRe.FindStringSubmatch(line); m != nil && current != nil {
			current.MACAddress = m[1]
			current.Brand = strings.TrimSpace(m[2])
			current.DeviceType = classify.Classify(current.Brand, current.Hostname, current.MACAddress)
		}
	}

	if current != nil && current.IPAddress != "" {
		devices = append(devices, *current)
	}

	return devices
}

var arpTableLineRe = regexp.MustCompile(`(\S+)\s+\((\d+\.\d+\.\d+\.\d+)\)\s+at\s+((?:[0-9a-fA-F]{2}:){5}[0-9a-fA-F]{2})`)

// ParseARPTableOutput extracts devices from `arp -a` output
// ("hostname (IP) at MAC [ether] on iface"). A "?" hostname is unknown.
func ParseARPTableOutput(output string) []model.Observation {
	var devices []model.Observation

	for _, line := range strings.Split(output, "\n") {
		m := arpTableLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		hostname := m[1]
		if hostname == "?" {
			hostname = ""
		}
		mac := strings.ToUpper(m[3])

		devices = append(devices, model.Observation{
			IPAddress:  m[2],
			MACAddress: mac,
			Hostname:   hostname,
			DeviceType: classify.Classify("", hostname, mac),
		})
	}

	return devices
}
