package probes

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pingFixture = `PING 192.168.1.1 (192.168.1.1) 56(84) bytes of data.
64 bytes from 192.168.1.1: icmp_seq=1 ttl=64 time=1.23 ms

--- 192.168.1.1 ping statistics ---
1 packets transmitted, 1 received, 0% packet loss, time 0ms
rtt min/avg/max/mdev = 1.234/1.234/1.234/0.000 ms
`

func TestParsePingLatency(t *testing.T) {
	lat := ParsePingLatency(pingFixture)
	require.NotNil(t, lat)
	assert.InDelta(t, 1.23, *lat, 0.001)

	// Without an rtt summary the per-packet time line is used.
	lat = ParsePingLatency("64 bytes from 10.0.0.1: icmp_seq=1 ttl=64 time=4.56 ms\n")
	require.NotNil(t, lat)
	assert.InDelta(t, 4.56, *lat, 0.001)

	assert.Nil(t, ParsePingLatency("Request timeout for icmp_seq 1\n"))
}

func TestPingUnreachableIsNotAnError(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"ping": {result: &ExecResult{ExitCode: 1, Stdout: "1 packets transmitted, 0 received"}},
	}}

	pinger := NewPinger(runner, 10, 0)
	result, err := pinger.Ping(context.Background(), "192.168.1.200")
	require.NoError(t, err)
	assert.False(t, result.Reachable)
	assert.Nil(t, result.LatencyMs)
}

func TestPingRejectsInvalidTarget(t *testing.T) {
	pinger := NewPinger(&fakeRunner{responses: map[string]fakeResponse{}}, 10, 0)
	_, err := pinger.Ping(context.Background(), "10.0.0.1; reboot")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestPingBatchKeepsRequestOrder(t *testing.T) {
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"ping": stdout(pingFixture),
	}}

	pinger := NewPinger(runner, 2, 0)
	ips := []string{"192.168.1.1", "192.168.1.2", "192.168.1.3"}
	results := pinger.PingBatch(context.Background(), ips)
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, ips[i], r.IP)
		assert.True(t, r.Reachable)
	}
}
