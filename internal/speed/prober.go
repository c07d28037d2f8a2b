package speed

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/net/http2"

	"github.com/markdingo/cdnedge/internal/concurrencytracker"
	"github.com/markdingo/cdnedge/internal/connectiontracker"
	"github.com/markdingo/cdnedge/internal/constants"
	"github.com/markdingo/cdnedge/internal/tlsutil"
)

// mirrorFileSizeThreshold is the spec §4.5 "HTTP 403 for files >= 25 MB" retry-via-mirror cutoff.
const mirrorFileSizeThreshold = 25 << 20

// Options configures one RunRound pass.
type Options struct {
	Workers int
	Timeout time.Duration

	DirectHost, DirectPath string
	MirrorHost, MirrorPath string

	// Admit gates a direct request against the rate-limit accountant's budget, per spec §4.6's
	// "ask before every request" rule. Mirror requests are not gated.
	Admit func(ctx context.Context) error

	// ReportRateLimit tells the accountant a direct request was 429'd, so it can start its
	// pause/failover clock (spec §4.6).
	ReportRateLimit func(retryAfter time.Duration)

	// Route reports the accountant's current route ("direct" or "mirror"). nil always starts
	// with direct. Consulted once per download so an endpoint already in failover skips the
	// wasted direct attempt.
	Route func() string

	// ReportMirrorResult feeds a mirror attempt's outcome back to the accountant for its
	// failback tracking (spec §4.6 "last three mirror requests succeeded").
	ReportMirrorResult func(success bool)
}

// Prober downloads byte ranges from the CDN speed-test endpoint (grounded on
// zhaiiker-montecarlo-ip-searcher's DownloadProber, adapted to a byte-range GET per spec §4.5)
// and reports bounded-parallel progress the same way sweep.Engine and latency.Engine do.
type Prober struct {
	name        string
	concurrency concurrencytracker.Counter
	conns       *connectiontracker.Tracker

	mu        sync.Mutex
	requested int
	completed int
}

// New constructs a Prober.
func New(name string) *Prober {
	return &Prober{name: name, conns: connectiontracker.New(name)}
}

// RunRound downloads round.Size bytes from each candidate, bounded by opts.Workers concurrent
// workers (default 10, spec §4.5 "Speed workers").
func (p *Prober) RunRound(ctx context.Context, candidates []Candidate, round Round, roundID int, opts Options) []SpeedSample {
	workers := opts.Workers
	if workers <= 0 {
		workers = 10
	}

	jobs := make(chan Candidate)
	resultsCh := make(chan SpeedSample)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				resultsCh <- p.download(ctx, c, round, roundID, opts)
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

	var samples []SpeedSample
	for s := range resultsCh {
		p.mu.Lock()
		p.requested++
		if s.Alive {
			p.completed++
		}
		p.mu.Unlock()
		samples = append(samples, s)
	}

	return samples
}

func (p *Prober) download(ctx context.Context, c Candidate, round Round, roundID int, opts Options) SpeedSample {
	p.concurrency.Add()
	defer p.concurrency.Done()

	via := "direct"
	if opts.Route != nil {
		if r := opts.Route(); r != "" {
			via = r
		}
	}

	sample := p.attempt(ctx, c, round, roundID, opts, via)
	if via == "direct" && (sample.ErrorKind == "rate_limited" || (sample.HTTPStatus == http.StatusForbidden && round.Size >= mirrorFileSizeThreshold)) {
		sample = p.attempt(ctx, c, round, roundID, opts, "mirror")
	}

	if sample.Via == "mirror" && opts.ReportMirrorResult != nil {
		opts.ReportMirrorResult(sample.Alive)
	}

	return sample
}

func (p *Prober) attempt(ctx context.Context, c Candidate, round Round, roundID int, opts Options, via string) SpeedSample {
	sample := SpeedSample{
		Endpoint:       c.Endpoint,
		RoundID:        roundID,
		BytesRequested: round.Size,
		LatencyMs:      c.LatencyMs,
		Via:            via,
	}

	host, path := opts.DirectHost, opts.DirectPath
	if via == "mirror" {
		host, path = opts.MirrorHost, opts.MirrorPath
	} else if opts.Admit != nil {
		if err := opts.Admit(ctx); err != nil {
			sample.ErrorKind = "rate_limit_budget"
			return sample
		}
	}

	key := c.Endpoint.IP.String() + ":" + fmt.Sprint(c.Endpoint.Port)
	p.conns.ConnState(key, time.Now(), http.StateNew)
	defer p.conns.ConnState(key, time.Now(), http.StateClosed)

	client := p.buildClient(c, opts.Timeout)

	url := fmt.Sprintf("https://%s%s?bytes=%d", host, path, round.Size)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		sample.ErrorKind = "request_build"
		return sample
	}
	req.Host = host
	consts := constants.Get()
	req.Header.Set(consts.RangeHeader, fmt.Sprintf("bytes=0-%d", round.Size-1))
	req.Header.Set(consts.UserAgentHeader, consts.ScanProgramName+"/"+consts.Version)
	req.Header.Set(consts.AcceptHeader, "*/*")

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		sample.ErrorKind = "dial_or_tls"
		return sample
	}
	defer resp.Body.Close()
	sample.HTTPStatus = resp.StatusCode

	if resp.StatusCode == http.StatusTooManyRequests {
		sample.ErrorKind = "rate_limited"
		if opts.ReportRateLimit != nil {
			opts.ReportRateLimit(retryAfter(resp, consts))
		}

		return sample
	}
	if resp.StatusCode == http.StatusForbidden {
		sample.ErrorKind = "forbidden"
		return sample
	}
	if resp.StatusCode >= 400 {
		sample.ErrorKind = fmt.Sprintf("http_%d", resp.StatusCode)
		return sample
	}

	buf := make([]byte, 64*1024)
	var received int64
	ttfbRecorded := false
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if !ttfbRecorded {
				sample.TTFBMs = msSince(start)
				ttfbRecorded = true
			}
			received += int64(n)
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			sample.ErrorKind = "truncated_body"
			break
		}
	}
	sample.ElapsedMs = msSince(start)
	sample.BytesReceived = received

	if received == 0 {
		if sample.ErrorKind == "" {
			sample.ErrorKind = "empty_body"
		}

		return sample
	}

	sample.ThroughputMbps = 8 * float64(received) / (sample.ElapsedMs / 1000) / 1e6
	sample.Alive = true

	return sample
}

// buildClient returns a client whose connection always targets c.Endpoint regardless of the
// request URL's host - the URL host/path select the CDN's speed-test resource, while SNI carries
// the candidate's own camouflage identity, exactly as the Clean-IP Sweep and Latency probes dial
// a specific IP while presenting an independent ServerName.
func (p *Prober) buildClient(c Candidate, timeout time.Duration) *http.Client {
	tlsConfig, _ := tlsutil.NewClientTLSConfig(true, nil, "", "")
	tlsConfig.ServerName = c.SNI

	dialAddr := net.JoinHostPort(c.Endpoint.IP.String(), strconv.Itoa(int(c.Endpoint.Port)))
	dialer := &net.Dialer{Timeout: timeout}

	transport := &http.Transport{
		TLSClientConfig: tlsConfig,
		DialContext: func(ctx context.Context, network, _ string) (net.Conn, error) {
			return dialer.DialContext(ctx, network, dialAddr)
		},
	}
	http2.ConfigureTransport(transport) //nolint:errcheck // best-effort h2 upgrade, h1 still works

	return &http.Client{Transport: transport, Timeout: timeout}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start)) / float64(time.Millisecond)
}

func retryAfter(resp *http.Response, consts constants.Constants) time.Duration {
	raw := resp.Header.Get(consts.RetryAfterHeader)
	if raw == "" {
		return consts.DefaultRetryAfter
	}
	secs, err := strconv.Atoi(raw)
	if err != nil || secs <= 0 {
		return consts.DefaultRetryAfter
	}

	return time.Duration(secs) * time.Second
}
