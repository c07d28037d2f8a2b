package sweep

import (
	"context"
	"net/netip"
	"testing"
	"time"
)

func mustAddr(s string) netip.Addr {
	a, err := netip.ParseAddr(s)
	if err != nil {
		panic(err)
	}
	return a
}

func TestEngineRunUnreachable(t *testing.T) {
	// 192.0.2.0/24 is TEST-NET-1 (RFC 5737) - guaranteed unreachable, so this exercises the
	// probe-failure path without any network dependency beyond a fast-failing dial.
	e := New("sweep-test")
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*2)
	defer cancel()

	results := e.Run(ctx, Options{
		Subnets: []netip.Prefix{netip.MustParsePrefix("192.0.2.0/30")},
		Mode:    ModeFull,
		SNI:     "example.invalid",
		Workers: 2,
		Timeout: time.Millisecond * 200,
	})

	if len(results) == 0 {
		t.Fatal("expected at least one result")
	}
	for _, r := range results {
		if r.Alive {
			t.Error("TEST-NET-1 address should never be reachable", r.Endpoint)
		}
	}

	report := e.Report(false)
	if report == "" {
		t.Error("expected a non-empty report")
	}
}
