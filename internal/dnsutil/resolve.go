/*
Package dnsutil resolves proxy config hostnames to IPv4 addresses using github.com/miekg/dns rather
than the stdlib resolver, so callers get direct control over which resolvers are consulted and how
long a lookup is allowed to take - both of which matter when fanning out resolution over a few
thousand candidate hosts under a tight per-run timeout.
*/
package dnsutil

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

const me = "dnsutil"

// fallbackServers is used when /etc/resolv.conf cannot be read (common inside minimal containers).
var fallbackServers = []string{"1.1.1.1:53", "1.0.0.1:53"}

// Exchanger is the subset of dns.Client used by Resolve, exposed as an interface so tests can
// supply a fake without a real network round trip.
type Exchanger interface {
	Exchange(m *dns.Msg, server string) (*dns.Msg, time.Duration, error)
}

func defaultExchanger() Exchanger {
	return &dns.Client{Timeout: time.Second * 3}
}

// Resolver resolves hostnames to IPv4 addresses over a configurable set of nameservers.
type Resolver struct {
	servers   []string
	exchanger Exchanger
}

// NewResolver constructs a Resolver from a resolv.conf-style path; an empty path means
// /etc/resolv.conf. If the path cannot be read, a small set of well-known public resolvers is used
// instead so that resolution still works inside containers that ship without /etc/resolv.conf.
func NewResolver(resolvConfPath string) *Resolver {
	r := &Resolver{exchanger: defaultExchanger()}
	if resolvConfPath == "" {
		resolvConfPath = "/etc/resolv.conf"
	}
	cc, err := dns.ClientConfigFromFile(resolvConfPath)
	if err != nil || len(cc.Servers) == 0 {
		r.servers = append([]string{}, fallbackServers...)
		return r
	}
	for _, s := range cc.Servers {
		if strings.Contains(s, ":") { // Naked ipv6 needs wrapping before a port can be appended
			s = "[" + s + "]"
		}
		r.servers = append(r.servers, s+":"+cc.Port)
	}

	return r
}

// NewResolverForTest builds a Resolver around a caller-supplied Exchanger, bypassing resolv.conf
// entirely. Exported for other packages' tests (e.g. internal/latency) that need a Resolver wired
// to a fake DNS backend without a real network round trip.
func NewResolverForTest(exchanger Exchanger) *Resolver {
	return &Resolver{exchanger: exchanger, servers: []string{"127.0.0.1:53"}}
}

// ResolveA resolves host to its IPv4 addresses. Each configured server is tried in turn until one
// answers successfully or the list is exhausted; this mirrors res_send(3) semantics in the same
// spirit as internal/bestserver.NewTraditional, without pulling in a server-selection dependency for
// what is, per run, a one-shot lookup.
func (r *Resolver) ResolveA(ctx context.Context, host string) ([]net.IP, error) {
	if host == "" {
		return nil, fmt.Errorf("%s:ResolveA: empty host", me)
	}
	if ip := net.ParseIP(host); ip != nil && ip.To4() != nil { // Already a literal IPv4 address
		return []net.IP{ip}, nil
	}

	fqdn := dns.Fqdn(host)
	q := new(dns.Msg)
	q.SetQuestion(fqdn, dns.TypeA)
	q.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		reply, _, err := r.exchanger.Exchange(q, server)
		if err != nil {
			lastErr = err
			continue
		}
		if reply.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("%s:ResolveA: %s rcode %s", me, host, dns.RcodeToString[reply.Rcode])
			continue
		}

		var ips []net.IP
		for _, rr := range reply.Answer {
			if a, ok := rr.(*dns.A); ok {
				ips = append(ips, a.A)
			}
		}
		if len(ips) == 0 {
			lastErr = fmt.Errorf("%s:ResolveA: %s had no A records", me, host)
			continue
		}

		return ips, nil
	}

	if lastErr == nil {
		lastErr = errors.New(me + ":ResolveA: no nameservers configured")
	}

	return nil, fmt.Errorf("%s:ResolveA: %s: %w", me, host, lastErr)
}
