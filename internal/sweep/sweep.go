/*
Package sweep implements the Clean-IP Sweep Engine: it expands the CDN's published subnets (or
an operator-supplied override) at one of four sampling densities, probes each candidate with a
bounded-parallel TLS handshake, and optionally verifies CDN ownership via a response-header
signature. Results are collected until every probe has finished and are then returned as one
sorted slice; they are not streamed to the caller while the sweep runs.
*/
package sweep

import (
	"context"
	"math/rand"
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/markdingo/cdnedge/internal/concurrencytracker"
	"github.com/markdingo/cdnedge/internal/connectiontracker"
)

// Options configures one sweep Run.
type Options struct {
	Subnets     []netip.Prefix // Defaults to DefaultSubnets() if nil
	Mode        SamplingMode
	SNI         string
	Workers     int
	Timeout     time.Duration
	RandomSeed  int64
}

// Engine runs sweeps and reports cumulative stats via Reporter.
type Engine struct {
	name        string
	concurrency concurrencytracker.Counter
	conns       *connectiontracker.Tracker

	mu      sync.Mutex
	probed  int
	alive   int
	verified int
}

// New constructs a sweep Engine. name identifies it in Reporter output (e.g. "sweep").
func New(name string) *Engine {
	return &Engine{name: name, conns: connectiontracker.New(name)}
}

// Run enumerates and probes candidates per opts, returning results as a slice with alive results
// first, each part sorted by ascending TLS handshake time (spec §4.3's output ordering). Cancelling ctx stops admitting new
// probes; in-flight probes are allowed to finish within their timeout.
func (e *Engine) Run(ctx context.Context, opts Options) []Result {
	subnets := opts.Subnets
	if subnets == nil {
		subnets = DefaultSubnets()
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = 300
	}

	rng := rand.New(rand.NewSource(opts.RandomSeed))
	ips := Enumerate(subnets, opts.Mode, rng)
	ports := opts.Mode.Ports()
	verify := opts.Mode.Verifies()

	var candidates []Endpoint
	for _, ip := range ips {
		for _, portStr := range ports {
			port := 443
			if portStr == "8443" {
				port = 8443
			}
			candidates = append(candidates, Endpoint{IP: ip, Port: port})
		}
	}

	prober := &Prober{
		SNI:         opts.SNI,
		Timeout:     opts.Timeout,
		Verify:      verify,
		Concurrency: &e.concurrency,
		Conns:       e.conns,
	}

	jobs := make(chan Endpoint)
	resultsCh := make(chan Result)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ep := range jobs {
				resultsCh <- prober.Probe(ctx, ep)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, c := range candidates {
			select {
			case <-ctx.Done():
				return
			case jobs <- c:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(resultsCh)
	}()

	var results []Result
	for r := range resultsCh {
		e.mu.Lock()
		e.probed++
		if r.Alive {
			e.alive++
		}
		if r.Verified {
			e.verified++
		}
		e.mu.Unlock()
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Alive != results[j].Alive {
			return results[i].Alive // Alive results sort ahead of dead ones
		}
		return results[i].TLSMs < results[j].TLSMs
	})

	return results
}
