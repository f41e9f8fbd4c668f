package probes

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ooklaFixture = `{
  "type": "result",
  "download": {"bandwidth": 12500000, "bytes": 150000000, "elapsed": 12000},
  "upload": {"bandwidth": 2500000, "bytes": 30000000, "elapsed": 12000},
  "ping": {"latency": 12.34, "jitter": 1.21},
  "server": {"id": 1234, "name": "Big ISP", "country": "United States"},
  "isp": "Example Telecom",
  "interface": {"externalIp": "203.0.113.7"}
}`

func TestParseOoklaJSON(t *testing.T) {
	result, err := ParseOoklaJSON([]byte(ooklaFixture))
	require.NoError(t, err)

	// Bandwidth arrives in bytes per second.
	assert.Equal(t, 100.0, result.DownloadMbps)
	assert.Equal(t, 20.0, result.UploadMbps)
	assert.Equal(t, 12.34, result.PingMs)
	assert.Equal(t, 1.21, result.JitterMs)
	assert.Equal(t, "1234", result.ServerID)
	assert.Equal(t, "Big ISP", result.ServerName)
	assert.Equal(t, "Big ISP, United States", result.ServerLocation)
	assert.Equal(t, "Example Telecom", result.ISP)
	assert.Equal(t, "203.0.113.7", result.ExternalIP)
	assert.Equal(t, ooklaFixture, result.RawData)
}

const legacyFixture = `{
  "download": 100000000,
  "upload": 20000000,
  "ping": 15.5,
  "server": {"id": "5678", "sponsor": "Other ISP", "name": "Shelbyville", "country": "United States", "latency": 15.5},
  "client": {"isp": "Example Telecom", "ip": "203.0.113.7"}
}`

func TestParseLegacyJSON(t *testing.T) {
	result, err := ParseLegacyJSON([]byte(legacyFixture))
	require.NoError(t, err)

	// Bandwidth arrives in bits per second.
	assert.Equal(t, 100.0, result.DownloadMbps)
	assert.Equal(t, 20.0, result.UploadMbps)
	assert.Equal(t, 15.5, result.PingMs)
	assert.Equal(t, "5678", result.ServerID)
	assert.Equal(t, "Other ISP", result.ServerName)
	assert.Equal(t, "Shelbyville, United States", result.ServerLocation)
}

func TestHasOfficialCLI(t *testing.T) {
	tester := NewSpeedTester(&fakeRunner{responses: map[string]fakeResponse{
		"speedtest": stdout("Speedtest by Ookla 1.2.0.84 (ea6b6773cf) Linux/x86_64-linux-musl"),
	}})
	assert.True(t, tester.hasOfficialCLI(context.Background()))

	tester = NewSpeedTester(&fakeRunner{responses: map[string]fakeResponse{
		"speedtest": stdout("speedtest-cli 2.1.3"),
	}})
	assert.False(t, tester.hasOfficialCLI(context.Background()))

	tester = NewSpeedTester(&fakeRunner{responses: map[string]fakeResponse{}})
	assert.False(t, tester.hasOfficialCLI(context.Background()))
}

// seqRunner serves a queue of responses per binary so the same command name
// can answer a version probe and a real run differently.
type seqRunner struct {
	responses map[string][]fakeResponse
	calls     []string
}

func (f *seqRunner) Available(name string) bool {
	_, ok := f.responses[name]
	return ok
}

func (f *seqRunner) Run(_ context.Context, name string, _ []string, _ time.Duration) (*ExecResult, error) {
	f.calls = append(f.calls, name)
	queue := f.responses[name]
	if len(queue) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrToolUnavailable, name)
	}
	resp := queue[0]
	f.responses[name] = queue[1:]
	if resp.err != nil {
		return nil, resp.err
	}
	return resp.result, nil
}

func TestRunFallsBackToAlternateCLI(t *testing.T) {
	runner := &seqRunner{responses: map[string][]fakeResponse{
		"speedtest": {
			stdout("Speedtest by Ookla 1.2.0"),
			{result: &ExecResult{ExitCode: 2, Stderr: "[error] Cannot open socket"}},
		},
		"speedtest-cli": {
			stdout(legacyFixture),
		},
	}}

	tester := NewSpeedTester(runner)
	result, err := tester.Run(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"speedtest", "speedtest", "speedtest-cli"}, runner.calls)
	assert.Equal(t, 100.0, result.DownloadMbps)
}

const legacyServerListFixture = `Retrieving speedtest.net configuration...
 1234) Big ISP (Springfield, United States) [12.34 km]
 5678) Other ISP (Shelbyville, United States) [3.21 km]
 9012) Far Away Co (Reykjavik, Iceland) [2500.00 km]
`

func TestParseLegacyServerList(t *testing.T) {
	servers := ParseLegacyServerList(legacyServerListFixture)
	require.Len(t, servers, 3)

	s := servers[0]
	assert.Equal(t, "1234", s.ID)
	assert.Equal(t, "Big ISP", s.Sponsor)
	assert.Equal(t, "Springfield", s.Name)
	assert.Equal(t, "United States", s.Country)
	assert.Equal(t, 12.34, s.Distance)
}

func TestSortAndLimitServers(t *testing.T) {
	servers := ParseLegacyServerList(legacyServerListFixture)
	sorted := sortAndLimitServers(servers)
	require.Len(t, sorted, 3)

	assert.Equal(t, "5678", sorted[0].ID)
	assert.Equal(t, "1234", sorted[1].ID)
	assert.Equal(t, "9012", sorted[2].ID)
}
