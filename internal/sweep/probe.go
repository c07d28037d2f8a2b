package sweep

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/markdingo/cdnedge/internal/concurrencytracker"
	"github.com/markdingo/cdnedge/internal/connectiontracker"
	"github.com/markdingo/cdnedge/internal/tlsutil"
)

// Endpoint identifies one candidate edge IP:port pair.
type Endpoint struct {
	IP   netip.Addr
	Port int
}

func (e Endpoint) String() string {
	if e.Port == 443 {
		return e.IP.String()
	}

	return fmt.Sprintf("%s:%d", e.IP.String(), e.Port)
}

// Result is one probe outcome.
type Result struct {
	Endpoint Endpoint
	Alive    bool
	Verified bool
	TLSMs    float64
	Err      error
}

// Prober dials an Endpoint, completes a TLS handshake announcing SNI, and optionally verifies
// CDN ownership via an HTTP/1.1 HEAD request over the established connection.
type Prober struct {
	SNI     string
	Timeout time.Duration
	Verify  bool

	Concurrency *concurrencytracker.Counter
	Conns       *connectiontracker.Tracker
}

// Probe performs one dial+handshake(+verify) cycle against ep.
func (p *Prober) Probe(ctx context.Context, ep Endpoint) Result {
	if p.Concurrency != nil {
		p.Concurrency.Add()
		defer p.Concurrency.Done()
	}

	key := ep.String()
	now := time.Now()
	if p.Conns != nil {
		p.Conns.ConnState(key, now, http.StateNew)
	}
	defer func() {
		if p.Conns != nil {
			p.Conns.ConnState(key, time.Now(), http.StateClosed)
		}
	}()

	dialer := &net.Dialer{Timeout: p.Timeout}
	addr := net.JoinHostPort(ep.IP.String(), strconv.Itoa(ep.Port))

	start := time.Now()
	tlsConfig := tlsutil.NewProbeTLSConfig(p.SNI)
	conn, err := tls.DialWithDialer(dialer, "tcp", addr, tlsConfig)
	if err != nil {
		return Result{Endpoint: ep, Err: fmt.Errorf("%s:Probe: %w", me, err)}
	}
	defer conn.Close()
	handshakeMs := float64(time.Since(start)) / float64(time.Millisecond)

	result := Result{Endpoint: ep, Alive: true, TLSMs: handshakeMs}
	if !p.Verify {
		return result
	}

	verified, err := verifyCDN(conn, p.SNI, p.Timeout)
	result.Verified = verified
	if err != nil {
		result.Err = fmt.Errorf("%s:Probe:verify: %w", me, err)
	}

	return result
}

// verifyCDN issues HEAD / over an already-established TLS connection and checks the response
// against SignatureTable / TraceHeader.
func verifyCDN(conn *tls.Conn, host string, timeout time.Duration) (bool, error) {
	conn.SetDeadline(time.Now().Add(timeout))

	req, err := http.NewRequest(http.MethodHead, "https://"+host+"/", nil)
	if err != nil {
		return false, err
	}
	if err := req.Write(conn); err != nil {
		return false, err
	}

	resp, err := http.ReadResponse(bufio.NewReader(conn), req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	return matchesSignature(resp.Header), nil
}

// matchesSignature reports whether header carries either a SignatureTable entry's value prefix
// or a non-empty TraceHeader - split out from verifyCDN so it can be unit tested without a real
// TLS connection.
func matchesSignature(header http.Header) bool {
	for name, prefix := range SignatureTable {
		v := header.Get(name)
		if v != "" && strings.HasPrefix(strings.ToLower(v), strings.ToLower(prefix)) {
			return true
		}
	}

	return header.Get(TraceHeader) != ""
}
