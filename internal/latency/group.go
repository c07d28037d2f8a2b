/*
Package latency implements the Config-Grouping & Latency Engine: it resolves each proxy config's
host to IPv4 addresses, groups configs by resolved edge IP, then runs a bounded-parallel
TCP-connect + TLS-handshake pass over the unique IPs.
*/
package latency

import (
	"context"
	"fmt"
	"net/netip"
	"sync"

	"github.com/markdingo/cdnedge/internal/dnsutil"
	"github.com/markdingo/cdnedge/internal/uricodec"
)

const me = "latency"

// Endpoint identifies one candidate edge IP:port pair, the join key for grouping.
type Endpoint struct {
	IP   netip.Addr
	Port uint16
}

// Group is the join of ProxyConfig.Host -> resolved IPs: every config and every distinct
// hostname that resolved to Endpoint. The map holding Groups is built once by a single resolver
// pass and is READ-ONLY thereafter (spec §5) - GroupMap's lock/unlock/rlock/runlock wrappers
// follow internal/bestserver's baseManager discipline for that single-writer/many-reader shape.
type Group struct {
	Endpoint Endpoint
	Configs  []*uricodec.ProxyConfig
	Domains  map[string]bool
}

// GroupMap holds all Groups built from one resolver pass.
type GroupMap struct {
	mu     sync.RWMutex
	groups map[Endpoint]*Group
}

func (g *GroupMap) lock()    { g.mu.Lock() }
func (g *GroupMap) unlock()  { g.mu.Unlock() }
func (g *GroupMap) rlock()   { g.mu.RLock() }
func (g *GroupMap) runlock() { g.mu.RUnlock() }

// AddBare ensures a (possibly config-less) Group exists for ep, for input shapes that supply bare
// endpoints with no proxy configs (spec §4.2 shape 5, "clean-IP only - downstream engines receive
// bare endpoints").
func (g *GroupMap) AddBare(ep Endpoint) {
	g.lock()
	defer g.unlock()

	if _, found := g.groups[ep]; !found {
		g.groups[ep] = &Group{Endpoint: ep, Domains: make(map[string]bool)}
	}
}

// Get returns the Group for ep, or nil if no config resolved to it.
func (g *GroupMap) Get(ep Endpoint) *Group {
	g.rlock()
	defer g.runlock()

	return g.groups[ep]
}

// Endpoints returns every distinct Endpoint currently grouped.
func (g *GroupMap) Endpoints() []Endpoint {
	g.rlock()
	defer g.runlock()

	out := make([]Endpoint, 0, len(g.groups))
	for ep := range g.groups {
		out = append(out, ep)
	}

	return out
}

// Len returns the number of distinct Endpoints grouped.
func (g *GroupMap) Len() int {
	g.rlock()
	defer g.runlock()

	return len(g.groups)
}

// GroupStats summarizes one BuildGroups pass for the end-of-run summary.
type GroupStats struct {
	ConfigsIn      int
	ResolveFailures int
	UniqueEndpoints int
}

// BuildGroups resolves every config's Host via resolver and groups the results by resolved IP.
// A config with multiple resolved IPs produces one Group membership per IP, per spec §3. A
// config whose host fails to resolve is dropped and counted in GroupStats.ResolveFailures.
func BuildGroups(ctx context.Context, configs []*uricodec.ProxyConfig, resolver *dnsutil.Resolver, defaultPort uint16) (*GroupMap, GroupStats) {
	gm := &GroupMap{groups: make(map[Endpoint]*Group)}
	stats := GroupStats{ConfigsIn: len(configs)}

	for _, cfg := range configs {
		port := cfg.Port
		if port == 0 {
			port = defaultPort
		}

		ips, err := resolver.ResolveA(ctx, cfg.Host)
		if err != nil {
			stats.ResolveFailures++
			continue
		}

		for _, ip := range ips {
			addr, ok := netip.AddrFromSlice(ip.To4())
			if !ok {
				continue
			}
			ep := Endpoint{IP: addr, Port: port}

			gm.lock()
			grp, found := gm.groups[ep]
			if !found {
				grp = &Group{Endpoint: ep, Domains: make(map[string]bool)}
				gm.groups[ep] = grp
			}
			grp.Configs = append(grp.Configs, cfg)
			if cfg.Host != "" {
				grp.Domains[cfg.Host] = true
			}
			gm.unlock()
		}
	}
	stats.UniqueEndpoints = gm.Len()

	return gm, stats
}

// ErrDNSFailure names the "host did not resolve" drop reason, as a sentinel for callers that want
// to classify drop reasons. BuildGroups does not return it; it only counts each occurrence in
// GroupStats.ResolveFailures.
var ErrDNSFailure = fmt.Errorf("host did not resolve")
