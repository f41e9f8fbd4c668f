package probes

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/user/nettools/internal/model"
	"github.com/user/nettools/internal/util"
)

// ErrValidation marks a malformed user-supplied target, rejected before any
// tool invocation.
var ErrValidation = errors.New("validation failed")

var targetRe = regexp.MustCompile(`^[a-zA-Z0-9.\-:]+$`)

// Tracer runs traceroutes with a tracepath fallback for hosts where the
// traceroute binary is absent or produces no output.
type Tracer struct {
	runner  Runner
	maxHops int
}

// NewTracer creates a traceroute prober.
func NewTracer(runner Runner, maxHops int) *Tracer {
	if maxHops <= 0 || maxHops > 64 {
		maxHops = 30
	}
	return &Tracer{runner: runner, maxHops: maxHops}
}

// Trace runs a traceroute to target and returns hop-by-hop latency data.
func (t *Tracer) Trace(ctx context.Context, target string, maxHops int) (*model.TraceResult, error) {
	target = strings.TrimSpace(target)
	if target == "" || !targetRe.MatchString(target) {
		return nil, fmt.Errorf("%w: invalid target %q", ErrValidation, target)
	}
	if maxHops <= 0 || maxHops > 64 {
		maxHops = t.maxHops
	}

	resolvedIP := resolveIPv4(target)

	hopTimeout := 5
	res, err := t.runner.Run(ctx, "traceroute", []string{
		"-n", "-m", strconv.Itoa(maxHops), "-w", strconv.Itoa(hopTimeout), "-q", "3", target,
	}, time.Duration(maxHops*hopTimeout+10)*time.Second)

	switch {
	case errors.Is(err, ErrToolUnavailable):
		util.Warn().Msg("traceroute not found, trying tracepath")
		return t.tracepath(ctx, target, resolvedIP, maxHops)
	case err != nil:
		return nil, err
	case res.Stdout == "" && res.Stderr != "":
		return t.tracepath(ctx, target, resolvedIP, maxHops)
	}

	hops := ParseTracerouteOutput(res.Stdout)
	return buildTraceResult(target, resolvedIP, hops, true), nil
}

func (t *Tracer) tracepath(ctx context.Context, target, resolvedIP string, maxHops int) (*model.TraceResult, error) {
	res, err := t.runner.Run(ctx, "tracepath", []string{
		"-n", "-m", strconv.Itoa(maxHops), target,
	}, 120*time.Second)
	if err != nil {
		if errors.Is(err, ErrToolUnavailable) {
			return nil, fmt.Errorf("neither traceroute nor tracepath is installed: %w", err)
		}
		return nil, err
	}

	hops := ParseTracepathOutput(res.Stdout)
	return buildTraceResult(target, resolvedIP, hops, false), nil
}

// buildTraceResult assembles the final result. The trace is considered
// complete when the last hop matches the resolved target IP; without a
// resolved IP the traceroute path falls back to "last hop answered".
func buildTraceResult(target, resolvedIP string, hops []model.TraceHop, lastHopFallback bool) *model.TraceResult {
	completed := false
	if len(hops) > 0 {
		last := hops[len(hops)-1]
		if resolvedIP != "" {
			completed = last.IP == resolvedIP
		} else if lastHopFallback {
			completed = !last.Timeout
		}
	}

	resolved := resolvedIP
	if resolved == "" {
		resolved = target
	}

	return &model.TraceResult{
		Target:     target,
		ResolvedIP: resolved,
		Hops:       hops,
		TotalHops:  len(hops),
		Completed:  completed,
	}
}

var (
	traceHopRe     = regexp.MustCompile(`^\s*(\d+)\s+(.+)$`)
	traceAllStarRe = regexp.MustCompile(`^[*\s]+$`)
	traceIPRe      = regexp.MustCompile(`(\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})`)
	traceLatencyRe = regexp.MustCompile(`([\d.]+)\s*ms`)
)

// ParseTracerouteOutput parses standard traceroute output:
//
//	 1  192.168.1.1  0.456 ms  0.321 ms  0.298 ms
//	 2  10.0.0.1  1.234 ms  1.456 ms  1.789 ms
//	 3  * * *
//
// A hop line of only asterisks is a full timeout (100% loss, no IP). Per-hop
// loss is timeouts over total probes; latency stats cover successful probes
// only.
func ParseTracerouteOutput(output string) []model.TraceHop {
	var hops []model.TraceHop

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(strings.ToLower(line), "traceroute") {
			continue
		}

		m := traceHopRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		hopNum, _ := strconv.Atoi(m[1])
		rest := strings.TrimSpace(m[2])

		if traceAllStarRe.MatchString(rest) {
			hops = append(hops, model.TraceHop{
				Hop:       hopNum,
				Latencies: []float64{},
				Loss:      100,
				Timeout:   true,
			})
			continue
		}

		hop := model.TraceHop{Hop: hopNum, Latencies: []float64{}}

		if ipm := traceIPRe.FindStringSubmatch(rest); ipm != nil {
			hop.IP = ipm[1]
		}
		for _, lm := range traceLatencyRe.FindAllStringSubmatch(rest, -1) {
			if v, err := strconv.ParseFloat(lm[1], 64); err == nil {
				hop.Latencies = append(hop.Latencies, v)
			}
		}

		timeouts := strings.Count(rest, "*")
		total := len(hop.Latencies) + timeouts
		if total > 0 {
			hop.Loss = round1(float64(timeouts) / float64(total) * 100)
		}
		fillLatencyStats(&hop)

		hops = append(hops, hop)
	}

	return hops
}

var (
	tracepathHopRe     = regexp.MustCompile(`^\s*(\d+)[:?]\s+(.+?)\s+([\d.]+)ms`)
	tracepathNoReplyRe = regexp.MustCompile(`^\s*(\d+)[:?]\s+no reply`)
)

// ParseTracepathOutput parses tracepath output, which emits one line per
// probe so hops accumulate across lines:
//
//	1?: [LOCALHOST]     pmtu 1500
//	1:  192.168.1.1     0.178ms
//	1:  192.168.1.1     0.156ms
//	2:  no reply
//
// A "no reply" line marks the hop as timed out only if no successful probe
// for that hop number is ever recorded.
func ParseTracepathOutput(output string) []model.TraceHop {
	byHop := make(map[int]*model.TraceHop)

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		m := tracepathHopRe.FindStringSubmatch(line)
		if m == nil {
			if nr := tracepathNoReplyRe.FindStringSubmatch(line); nr != nil {
				hopNum, _ := strconv.Atoi(nr[1])
				if _, ok := byHop[hopNum]; !ok {
					byHop[hopNum] = &model.TraceHop{
						Hop:       hopNum,
						Latencies: []float64{},
						Timeout:   true,
					}
				}
			}
			continue
		}

		hopNum, _ := strconv.Atoi(m[1])
		host := strings.TrimSpace(m[2])
		latency, _ := strconv.ParseFloat(m[3], 64)

		// LOCALHOST pmtu entries carry no hop data.
		if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
			continue
		}

		hop, ok := byHop[hopNum]
		if !ok {
			hop = &model.TraceHop{Hop: hopNum, Latencies: []float64{}}
			byHop[hopNum] = hop
		}

		if traceIPRe.MatchString(host) {
			if hop.IP == "" {
				hop.IP = host
			}
		} else if hop.Hostname == "" {
			hop.Hostname = host
		}

		hop.Latencies = append(hop.Latencies, latency)
		hop.Timeout = false
	}

	nums := make([]int, 0, len(byHop))
	for n := range byHop {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	hops := make([]model.TraceHop, 0, len(nums))
	for _, n := range nums {
		hop := byHop[n]
		fillLatencyStats(hop)
		if hop.Timeout && len(hop.Latencies) == 0 {
			hop.Loss = 100
		}
		hops = append(hops, *hop)
	}

	return hops
}

func fillLatencyStats(hop *model.TraceHop) {
	if len(hop.Latencies) == 0 {
		return
	}
	sum, min, max := 0.0, hop.Latencies[0], hop.Latencies[0]
	for _, l := range hop.Latencies {
		sum += l
		if l < min {
			min = l
		}
		if l > max {
			max = l
		}
	}
	hop.AvgLatency = f64ptr(round2(sum / float64(len(hop.Latencies))))
	hop.MinLatency = f64ptr(round2(min))
	hop.MaxLatency = f64ptr(round2(max))
}

func resolveIPv4(target string) string {
	ips, err := net.LookupIP(target)
	if err != nil {
		return ""
	}
	for _, ip := range ips {
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
	}
	if len(ips) > 0 {
		return ips[0].String()
	}
	return ""
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func f64ptr(v float64) *float64 {
	return &v
}
