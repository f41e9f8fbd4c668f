package probes

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/user/nettools/internal/model"
	"github.com/user/nettools/internal/util"
)

var (
	domainRe    = regexp.MustCompile(`^[a-zA-Z0-9.\-:_]+$`)
	dnsServerRe = regexp.MustCompile(`^[a-zA-Z0-9.\-:]+$`)
	reverseIPRe = regexp.MustCompile(`^[\d.:a-fA-F]+$`)
)

var validRecordTypes = map[string]bool{
	"A": true, "AAAA": true, "MX": true, "NS": true, "TXT": true,
	"CNAME": true, "SOA": true, "PTR": true, "SRV": true, "ANY": true,
}

// DNSLookup answers DNS queries through dig, falling back to nslookup and
// finally to direct resolution (A/AAAA only, no TTL or authority data).
type DNSLookup struct {
	runner   Runner
	resolver *net.Resolver
}

// NewDNSLookup creates a DNS lookup prober.
func NewDNSLookup(runner Runner) *DNSLookup {
	return &DNSLookup{runner: runner, resolver: net.DefaultResolver}
}

// Lookup queries recordType records for domain, optionally against a
// specific DNS server.
func (d *DNSLookup) Lookup(ctx context.Context, domain, dnsServer, recordType string) (*model.DNSLookupResult, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" || !domainRe.MatchString(domain) {
		return nil, fmt.Errorf("%w: invalid domain %q", ErrValidation, domain)
	}

	recordType = strings.ToUpper(strings.TrimSpace(recordType))
	if recordType == "" {
		recordType = "A"
	}
	if !validRecordTypes[recordType] {
		return nil, fmt.Errorf("%w: invalid record type %q", ErrValidation, recordType)
	}

	dnsServer = strings.TrimSpace(dnsServer)
	if dnsServer != "" && !dnsServerRe.MatchString(dnsServer) {
		return nil, fmt.Errorf("%w: invalid DNS server %q", ErrValidation, dnsServer)
	}

	result, err := d.lookupWithDig(ctx, domain, dnsServer, recordType)
	if errors.Is(err, ErrToolUnavailable) {
		util.Warn().Msg("dig not found, trying nslookup")
		result, err = d.lookupWithNslookup(ctx, domain, dnsServer, recordType)
	}
	if errors.Is(err, ErrToolUnavailable) {
		util.Warn().Msg("nslookup not found, using direct resolution")
		return d.lookupDirect(ctx, domain, dnsServer, recordType)
	}
	return result, err
}

func (d *DNSLookup) lookupWithDig(ctx context.Context, domain, dnsServer, recordType string) (*model.DNSLookupResult, error) {
	args := []string{}
	if dnsServer != "" {
		args = append(args, "@"+dnsServer)
	}
	args = append(args, domain, recordType, "+noall", "+answer", "+authority", "+stats", "+question")

	res, err := d.runner.Run(ctx, "dig", args, 15*time.Second)
	if err != nil {
		return nil, err
	}

	result := ParseDigOutput(res.Stdout, domain, recordType, dnsServer)

	// dig found nothing for an A query: one direct resolution attempt before
	// reporting empty.
	if len(result.Records) == 0 && recordType == "A" {
		result.Records = d.resolveDirect(ctx, domain, recordType)
		if len(result.Records) > 0 {
			result.Error = ""
		}
	}

	return result, nil
}

var (
	digQueryTimeRe = regexp.MustCompile(`Query time:\s*(\d+)\s*msec`)
	digServerRe    = regexp.MustCompile(`SERVER:\s*([^\s#]+)`)
	digAnswerRe    = regexp.MustCompile(`^(\S+)\s+(\d+)\s+IN\s+(\S+)\s+(.+)$`)
	mxValueRe      = regexp.MustCompile(`^(\d+)\s+(.+)$`)
)

// ParseDigOutput parses dig output: the Query time and SERVER stat lines,
// the authoritative-answer flag, and answer lines of the form
// "name ttl IN type value". Trailing dots are stripped from names and
// values; MX, SOA and SRV values are decomposed into their fields.
func ParseDigOutput(output, domain, recordType, dnsServer string) *model.DNSLookupResult {
	result := &model.DNSLookupResult{
		Domain:     domain,
		RecordType: recordType,
		DNSServer:  dnsServer,
	}
	if dnsServer == "" {
		result.DNSServer = "system"
	}

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)

		if m := digQueryTimeRe.FindStringSubmatch(line); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				result.QueryTimeMs = &v
			}
			continue
		}

		if m := digServerRe.FindStringSubmatch(line); m != nil {
			if dnsServer == "" {
				result.DNSServer = m[1]
			}
			continue
		}

		lower := strings.ToLower(line)
		if strings.Contains(lower, "flags") && strings.Contains(lower, "aa") {
			result.Authoritative = true
			continue
		}

		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}

		m := digAnswerRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		ttl, _ := strconv.Atoi(m[2])
		record := model.DNSRecord{
			Name:  strings.TrimSuffix(m[1], "."),
			TTL:   &ttl,
			Type:  m[3],
			Value: strings.TrimSuffix(strings.TrimSpace(m[4]), "."),
		}

		switch record.Type {
		case "MX":
			if mx := mxValueRe.FindStringSubmatch(record.Value); mx != nil {
				if prio, err := strconv.Atoi(mx[1]); err == nil {
					record.Priority = &prio
				}
				record.Value = strings.TrimSuffix(mx[2], ".")
			}
		case "SOA":
			parseSOAFields(&record)
		case "SRV":
			parseSRVFields(&record)
		}

		result.Records = append(result.Records, record)
	}

	if len(result.Records) == 0 {
		result.Error = "no records found"
	}
	return result
}

// parseSOAFields decomposes an SOA value into its 7 positional fields. The
// admin email has its first dot rewritten to @.
func parseSOAFields(record *model.DNSRecord) {
	parts := strings.Fields(record.Value)
	if len(parts) < 7 {
		return
	}
	record.PrimaryNS = strings.TrimSuffix(parts[0], ".")
	record.AdminEmail = strings.Replace(strings.TrimSuffix(parts[1], "."), ".", "@", 1)
	record.Serial = parts[2]
	record.Refresh = parts[3]
	record.Retry = parts[4]
	record.Expire = parts[5]
	record.MinimumTTL = parts[6]
}

// parseSRVFields decomposes an SRV value into priority/weight/port/target.
func parseSRVFields(record *model.DNSRecord) {
	parts := strings.Fields(record.Value)
	if len(parts) < 3 {
		return
	}
	prio, _ := strconv.Atoi(parts[0])
	weight, _ := strconv.Atoi(parts[1])
	port, _ := strconv.Atoi(parts[2])
	record.Priority = &prio
	record.Weight = &weight
	record.Port = &port
	if len(parts) > 3 {
		record.Value = strings.TrimSuffix(parts[3], ".")
	}
}

func (d *DNSLookup) lookupWithNslookup(ctx context.Context, domain, dnsServer, recordType string) (*model.DNSLookupResult, error) {
	args := []string{}
	if recordType != "A" {
		args = append(args, "-type="+recordType)
	}
	args = append(args, domain)
	if dnsServer != "" {
		args = append(args, dnsServer)
	}

	res, err := d.runner.Run(ctx, "nslookup", args, 15*time.Second)
	if err != nil {
		return nil, err
	}

	result := ParseNslookupOutput(res.Stdout+"\n"+res.Stderr, domain, recordType, dnsServer)

	if len(result.Records) == 0 && (recordType == "A" || recordType == "AAAA") {
		result.Records = d.resolveDirect(ctx, domain, recordType)
		if len(result.Records) > 0 {
			result.Error = ""
		}
	}

	return result, nil
}

var (
	nslookupServerRe = regexp.MustCompile(`^Server:\s*(.+)$`)
	nslookupAddrRe   = regexp.MustCompile(`^Address:\s*(\S+)$`)
	nslookupMXRe     = regexp.MustCompile(`(?i)^.+mail exchanger\s*=\s*(\d+)\s+(.+)$`)
	nslookupNSRe     = regexp.MustCompile(`(?i)^.+nameserver\s*=\s*(.+)$`)
	nslookupTXTRe    = regexp.MustCompile(`(?i)^.+text\s*=\s*"(.+)"$`)
)

// ParseNslookupOutput parses nslookup's cruder text output. A section
// heuristic tracks whether the answer section has been entered so the
// resolver's own Address line is not mistaken for a result. Only A, AAAA,
// MX, NS and TXT records are recognized.
func ParseNslookupOutput(output, domain, recordType, dnsServer string) *model.DNSLookupResult {
	result := &model.DNSLookupResult{
		Domain:     domain,
		RecordType: recordType,
		DNSServer:  dnsServer,
	}
	if dnsServer == "" {
		result.DNSServer = "system"
	}

	lower := strings.ToLower(output)
	result.Authoritative = strings.Contains(lower, "authoritative") &&
		!strings.Contains(lower, "non-authoritative")

	inAnswer := false
	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		line = strings.TrimSpace(line)

		if m := nslookupServerRe.FindStringSubmatch(line); m != nil && dnsServer == "" {
			result.DNSServer = strings.TrimSpace(m[1])
		}

		ll := strings.ToLower(line)
		if strings.Contains(ll, "name:") || strings.Contains(ll, "address:") {
			inAnswer = true
		}

		if m := nslookupAddrRe.FindStringSubmatch(line); m != nil && inAnswer {
			value := m[1]
			// "Address: 8.8.8.8#53" is the resolver itself, not an answer.
			if strings.Contains(value, "#") {
				continue
			}
			recType := "A"
			if strings.Contains(value, ":") {
				recType = "AAAA"
			}
			result.Records = append(result.Records, model.DNSRecord{
				Name:  domain,
				Type:  recType,
				Value: value,
			})
			continue
		}

		if m := nslookupMXRe.FindStringSubmatch(line); m != nil {
			prio, _ := strconv.Atoi(m[1])
			result.Records = append(result.Records, model.DNSRecord{
				Name:     domain,
				Type:     "MX",
				Value:    strings.TrimSuffix(strings.TrimSpace(m[2]), "."),
				Priority: &prio,
			})
			continue
		}

		if m := nslookupNSRe.FindStringSubmatch(line); m != nil {
			result.Records = append(result.Records, model.DNSRecord{
				Name:  domain,
				Type:  "NS",
				Value: strings.TrimSuffix(strings.TrimSpace(m[1]), "."),
			})
			continue
		}

		if m := nslookupTXTRe.FindStringSubmatch(line); m != nil {
			result.Records = append(result.Records, model.DNSRecord{
				Name:  domain,
				Type:  "TXT",
				Value: m[1],
			})
		}
	}

	if len(result.Records) == 0 {
		result.Error = "no records found"
	}
	return result
}

// lookupDirect is the last-resort tier: resolver library only, A/AAAA, no
// TTL or authority data.
func (d *DNSLookup) lookupDirect(ctx context.Context, domain, dnsServer, recordType string) (*model.DNSLookupResult, error) {
	if recordType != "A" && recordType != "AAAA" {
		return nil, fmt.Errorf("record type %s requires dig or nslookup", recordType)
	}

	result := &model.DNSLookupResult{
		Domain:     domain,
		RecordType: recordType,
		DNSServer:  "system",
		Records:    d.resolveDirect(ctx, domain, recordType),
	}
	if dnsServer != "" {
		result.DNSServer = dnsServer
	}
	if len(result.Records) == 0 {
		result.Error = "no records found"
	}
	return result, nil
}

func (d *DNSLookup) resolveDirect(ctx context.Context, domain, recordType string) []model.DNSRecord {
	network := "ip4"
	if recordType == "AAAA" {
		network = "ip6"
	}

	ips, err := d.resolver.LookupIP(ctx, network, domain)
	if err != nil {
		return nil
	}

	var records []model.DNSRecord
	seen := make(map[string]bool)
	for _, ip := range ips {
		v := ip.String()
		if seen[v] {
			continue
		}
		seen[v] = true
		records = append(records, model.DNSRecord{
			Name:  domain,
			Type:  recordType,
			Value: v,
		})
	}
	return records
}

// ReverseLookup performs a PTR lookup for an IP address.
func (d *DNSLookup) ReverseLookup(ctx context.Context, ip string) (*model.ReverseLookupResult, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" || !reverseIPRe.MatchString(ip) {
		return nil, fmt.Errorf("%w: invalid IP %q", ErrValidation, ip)
	}

	names, err := d.resolver.LookupAddr(ctx, ip)
	if err != nil || len(names) == 0 {
		return &model.ReverseLookupResult{IP: ip, Error: "no PTR record found"}, nil
	}

	return &model.ReverseLookupResult{
		IP:       ip,
		Hostname: strings.TrimSuffix(names[0], "."),
	}, nil
}
