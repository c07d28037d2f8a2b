package orchestrator

import (
	"net/netip"
	"testing"

	"github.com/markdingo/cdnedge/internal/latency"
	"github.com/markdingo/cdnedge/internal/sweep"
)

func TestParseDefaultPort(t *testing.T) {
	p, err := parseDefaultPort("443")
	if err != nil {
		t.Fatal(err)
	}
	if p != 443 {
		t.Errorf("expected 443, got %d", p)
	}
}

func TestAddBareEndpointsWithAndWithoutPort(t *testing.T) {
	gm, _ := latency.BuildGroups(nil, nil, nil, 443)
	addBareEndpoints(gm, []string{"104.16.1.1", "104.16.1.2:8443", "not-an-ip"}, 443)

	bare := latency.Endpoint{IP: netip.MustParseAddr("104.16.1.1"), Port: 443}
	if gm.Get(bare) == nil {
		t.Error("expected the default-port bare endpoint to be registered")
	}

	withPort := latency.Endpoint{IP: netip.MustParseAddr("104.16.1.2"), Port: 8443}
	if gm.Get(withPort) == nil {
		t.Error("expected the explicit-port bare endpoint to be registered")
	}

	if gm.Len() != 2 {
		t.Errorf("expected the unparseable entry to be skipped, got Len()=%d", gm.Len())
	}
}

func TestAddBareEndpointsIsIdempotentWithExistingGroup(t *testing.T) {
	gm, _ := latency.BuildGroups(nil, nil, nil, 443)
	ep := latency.Endpoint{IP: netip.MustParseAddr("104.16.1.1"), Port: 443}
	gm.AddBare(ep)
	addBareEndpoints(gm, []string{"104.16.1.1"}, 443)

	if gm.Len() != 1 {
		t.Errorf("expected a single Group for a repeated endpoint, got Len()=%d", gm.Len())
	}
}

func sweepResults() []sweep.Result {
	return []sweep.Result{
		{Endpoint: sweep.Endpoint{IP: netip.MustParseAddr("104.16.1.1"), Port: 443}, Alive: true, Verified: true},
		{Endpoint: sweep.Endpoint{IP: netip.MustParseAddr("104.16.1.2"), Port: 443}, Alive: true, Verified: false},
		{Endpoint: sweep.Endpoint{IP: netip.MustParseAddr("104.16.1.3"), Port: 443}, Alive: false, Verified: false},
	}
}

func TestFilterCleanIPsQuickModeAcceptsUnverifiedHandshake(t *testing.T) {
	ipPorts, alive := filterCleanIPs(sweepResults(), sweep.ModeQuick)

	if alive != 2 {
		t.Errorf("expected 2 alive endpoints, got %d", alive)
	}
	if len(ipPorts) != 2 {
		t.Errorf("quick mode has no verify step, expected both alive endpoints written, got %v", ipPorts)
	}
}

func TestFilterCleanIPsVerifyingModeRequiresVerified(t *testing.T) {
	for _, mode := range []sweep.SamplingMode{sweep.ModeNormal, sweep.ModeFull, sweep.ModeMega} {
		ipPorts, alive := filterCleanIPs(sweepResults(), mode)

		if alive != 2 {
			t.Errorf("%s: expected 2 alive endpoints, got %d", mode, alive)
		}
		if len(ipPorts) != 1 {
			t.Errorf("%s: expected only the verified endpoint written, got %v", mode, ipPorts)
		}
		if len(ipPorts) == 1 && ipPorts[0] != "104.16.1.1" {
			t.Errorf("%s: expected the verified endpoint's IP, got %v", mode, ipPorts)
		}
	}
}
