package probes

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/user/nettools/internal/model"
)

// Pinger checks host reachability through the system ping binary.
type Pinger struct {
	runner      Runner
	concurrency int
	timeout     time.Duration
}

// NewPinger creates a ping prober with bounded batch concurrency.
func NewPinger(runner Runner, concurrency int, timeout time.Duration) *Pinger {
	if concurrency <= 0 {
		concurrency = 10
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &Pinger{runner: runner, concurrency: concurrency, timeout: timeout}
}

var pingTargetRe = regexp.MustCompile(`^[a-zA-Z0-9.\-:]+$`)

// Ping sends a single echo request to ip.
func (p *Pinger) Ping(ctx context.Context, ip string) (*model.PingResult, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" || !pingTargetRe.MatchString(ip) {
		return nil, fmt.Errorf("%w: invalid ping target %q", ErrValidation, ip)
	}

	waitSecs := int(p.timeout / time.Second)
	res, err := p.runner.Run(ctx, "ping", []string{
		"-c", "1", "-W", strconv.Itoa(waitSecs), ip,
	}, p.timeout+2*time.Second)
	if err != nil {
		return &model.PingResult{IP: ip}, nil
	}

	if res.ExitCode != 0 {
		return &model.PingResult{IP: ip}, nil
	}

	return &model.PingResult{
		IP:        ip,
		Reachable: true,
		LatencyMs: ParsePingLatency(res.Stdout),
	}, nil
}

// PingBatch pings multiple hosts with bounded fan-out. Results are returned
// in request order regardless of completion order.
func (p *Pinger) PingBatch(ctx context.Context, ips []string) []*model.PingResult {
	results := make([]*model.PingResult, len(ips))

	var wg sync.WaitGroup
	sem := make(chan struct{}, p.concurrency)

	for i, ip := range ips {
		wg.Add(1)
		go func(idx int, addr string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			result, err := p.Ping(ctx, addr)
			if err != nil {
				result = &model.PingResult{IP: addr}
			}
			results[idx] = result
		}(i, ip)
	}

	wg.Wait()
	return results
}

var (
	pingRTTRe  = regexp.MustCompile(`rtt min/avg/max/mdev = [\d.]+/([\d.]+)/`)
	pingTimeRe = regexp.MustCompile(`time[=<]([\d.]+)\s*ms`)
)

// ParsePingLatency extracts the average round-trip time from ping output.
// Returns nil when no latency is present.
func ParsePingLatency(output string) *float64 {
	if m := pingRTTRe.FindStringSubmatch(output); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return f64ptr(round2(v))
		}
	}
	if m := pingTimeRe.FindStringSubmatch(output); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return f64ptr(round2(v))
		}
	}
	return nil
}
