package probes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const arpScanFixture = `Interface: eth0, type: EN10MB, MAC: aa:bb:cc:00:11:22, IPv4: 192.168.1.5
Starting arp-scan 1.9.7 with 256 hosts (https://github.com/royhills/arp-scan)
192.168.1.1	a4:2b:b0:c1:d2:e3	TP-Link Technologies
192.168.1.10	aa:bb:cc:dd:ee:01	Synology Incorporated
192.168.1.23	de:ad:be:ef:00:01	(Unknown)

4 packets received by filter, 0 packets dropped by kernel
Ending arp-scan 1.9.7: 256 hosts scanned in 1.972 seconds
`

func TestParseARPScanOutput(t *testing.T) {
	devices := ParseARPScanOutput(arpScanFixture)
	require.Len(t, devices, 3)

	assert.Equal(t, "192.168.1.1", devices[0].IPAddress)
	assert.Equal(t, "A4:2B:B0:C1:D2:E3", devices[0].MACAddress)
	assert.Equal(t, "TP-Link Technologies", devices[0].Brand)
	assert.Equal(t, "router", devices[0].DeviceType)

	assert.Equal(t, "nas", devices[1].DeviceType)

	// (Unknown) vendor marker normalizes to empty.
	assert.Equal(t, "", devices[2].Brand)
	assert.Equal(t, "other", devices[2].DeviceType)
}

const nmapFixture = `Starting Nmap 7.80 ( https://nmap.org ) at 2024-03-02 10:00 UTC
Nmap scan report for router.lan (192.168.1.1)
Host is up (0.0010s latency).
MAC Address: A4:2B:B0:C1:D2:E3 (TP-Link Technologies)
Nmap scan report for 192.168.1.42
Host is up (0.052s latency).
MAC Address: 11:22:33:44:55:66 (Espressif)
Nmap scan report for 192.168.1.5
Host is up.
Nmap done: 256 IP addresses (3 hosts up) scanned in 4.21 seconds
`

func TestParseNmapOutput(t *testing.T) {
	devices := ParseNmapOutput(nmapFixture)
	require.Len(t, devices, 3)

	assert.Equal(t, "router.lan", devices[0].Hostname)
	assert.Equal(t, "192.168.1.1", devices[0].IPAddress)
	assert.Equal(t, "A4:2B:B0:C1:D2:E3", devices[0].MACAddress)
	assert.Equal(t, "router", devices[0].DeviceType)

	assert.Equal(t, "", devices[1].Hostname)
	assert.Equal(t, "iot", devices[1].DeviceType)

	// The scanning host reports no MAC line.
	assert.Equal(t, "192.168.1.5", devices[2].IPAddress)
	assert.Equal(t, "", devices[2].MACAddress)
	assert.Equal(t, "other", devices[2].DeviceType)
}

const arpTableFixture = `router.lan (192.168.1.1) at a4:2b:b0:c1:d2:e3 [ether] on eth0
? (192.168.1.77) at de:ad:be:ef:77:77 [ether] on eth0
printer.lan (192.168.1.9) at <incomplete> on eth0
`

func TestParseARPTableOutput(t *testing.T) {
	devices := ParseARPTableOutput(arpTableFixture)
	require.Len(t, devices, 2)

	assert.Equal(t, "router.lan", devices[0].Hostname)
	assert.Equal(t, "A4:2B:B0:C1:D2:E3", devices[0].MACAddress)

	// "?" hostname is unknown.
	assert.Equal(t, "", devices[1].Hostname)
	assert.Equal(t, "192.168.1.77", devices[1].IPAddress)
}

func TestScannerFallsThroughTiers(t *testing.T) {
	// arp-scan missing, nmap finds nothing, the ARP cache still has entries.
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"nmap": stdout("Starting Nmap 7.80\nNmap done: 256 IP addresses (0 hosts up) scanned\n"),
		"arp":  stdout(arpTableFixture),
	}}

	scanner := NewScanner(runner, "eth0")
	devices, err := scanner.Scan(context.Background(), "192.168.1.0/24")
	require.NoError(t, err)
	assert.Len(t, devices, 2)
	assert.Equal(t, []string{"arp-scan", "nmap", "arp"}, runner.calls)
}

func TestScannerFirstTierWins(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"arp-scan": stdout(arpScanFixture),
	}}

	scanner := NewScanner(runner, "eth0")
	devices, err := scanner.Scan(context.Background(), "192.168.1.0/24")
	require.NoError(t, err)
	assert.Len(t, devices, 3)
	assert.Equal(t, []string{"arp-scan"}, runner.calls)
}

func TestScannerExhausted(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{}}

	scanner := NewScanner(runner, "eth0")
	_, err := scanner.Scan(context.Background(), "192.168.1.0/24")
	assert.ErrorIs(t, err, ErrScanExhausted)
}
