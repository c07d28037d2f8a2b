package latency

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/markdingo/cdnedge/internal/concurrencytracker"
	"github.com/markdingo/cdnedge/internal/connectiontracker"
	"github.com/markdingo/cdnedge/internal/tlsutil"
)

// Result is one endpoint's latency measurement. Alive iff both TCP connect and TLS handshake
// completed within the configured timeout.
type Result struct {
	Endpoint Endpoint
	Alive    bool
	TCPMs    float64
	TLSMs    float64
	Err      error
}

// Options configures one latency pass.
type Options struct {
	Workers int
	Timeout time.Duration
	SNI     func(Endpoint) string // Per-endpoint SNI: config.sni or config.host
}

// Engine runs bounded-parallel latency passes and reports cumulative stats.
type Engine struct {
	name        string
	concurrency concurrencytracker.Counter
	conns       *connectiontracker.Tracker

	mu    sync.Mutex
	tested int
	alive  int
}

// New constructs a latency Engine.
func New(name string) *Engine {
	return &Engine{name: name, conns: connectiontracker.New(name)}
}

// Run pings every endpoint using the same bounded-worker pattern as the sweep engine (spec
// §4.4). Results are unordered; callers that need ordering should sort by Endpoint or by TLSMs
// themselves.
func (e *Engine) Run(ctx context.Context, endpoints []Endpoint, opts Options) []Result {
	workers := opts.Workers
	if workers <= 0 {
		workers = 50
	}

	jobs := make(chan Endpoint)
	resultsCh := make(chan Result)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ep := range jobs {
				resultsCh <- e.ping(ctx, ep, opts)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, ep := range endpoints {
			select {
			case <-ctx.Done():
				return
			case jobs <- ep:
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
		e.tested++
		if r.Alive {
			e.alive++
		}
		e.mu.Unlock()
		results = append(results, r)
	}

	return results
}

func (e *Engine) ping(ctx context.Context, ep Endpoint, opts Options) Result {
	e.concurrency.Add()
	defer e.concurrency.Done()

	key := ep.IP.String() + ":" + strconv.Itoa(int(ep.Port))
	e.conns.ConnState(key, time.Now(), http.StateNew)
	defer e.conns.ConnState(key, time.Now(), http.StateClosed)

	sni := ep.IP.String()
	if opts.SNI != nil {
		if s := opts.SNI(ep); s != "" {
			sni = s
		}
	}

	addr := net.JoinHostPort(ep.IP.String(), strconv.Itoa(int(ep.Port)))
	dialer := &net.Dialer{Timeout: opts.Timeout}

	tcpStart := time.Now()
	rawConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Result{Endpoint: ep, Err: err}
	}
	defer rawConn.Close()
	tcpMs := float64(time.Since(tcpStart)) / float64(time.Millisecond)

	tlsConfig := tlsutil.NewProbeTLSConfig(sni)
	tlsStart := time.Now()
	tlsConn := tls.Client(rawConn, tlsConfig)
	tlsConn.SetDeadline(time.Now().Add(opts.Timeout))
	if err := tlsConn.Handshake(); err != nil {
		return Result{Endpoint: ep, TCPMs: tcpMs, Err: err}
	}
	tlsMs := float64(time.Since(tlsStart)) / float64(time.Millisecond)

	return Result{Endpoint: ep, Alive: true, TCPMs: tcpMs, TLSMs: tlsMs}
}
