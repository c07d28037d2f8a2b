package sweep

import (
	"math/rand"
	"net/netip"
	"testing"
)

func TestCountFullBuiltinTable(t *testing.T) {
	total := CountFull(DefaultSubnets())
	if total != 1511808 {
		t.Errorf("expected 1,511,808 addresses, got %d", total)
	}
}

func TestEnumerateFullMatchesCountFull(t *testing.T) {
	// Use a small slice of the table to keep the test fast - a single /18 block.
	prefixes := []netip.Prefix{netip.MustParsePrefix("45.64.0.0/18")}
	want := CountFull(prefixes)
	got := Enumerate(prefixes, ModeFull, nil)
	if uint64(len(got)) != want {
		t.Errorf("expected %d addresses, got %d", want, len(got))
	}

	seen := make(map[netip.Addr]bool)
	for _, a := range got {
		if seen[a] {
			t.Fatalf("duplicate address %s", a)
		}
		seen[a] = true
		last := a.As4()[3]
		if last == 0 || last == 255 {
			t.Errorf("reserved /24 address leaked through: %s", a)
		}
	}
}

func TestEnumerateSlash32(t *testing.T) {
	p := netip.MustParsePrefix("9.9.9.9/32")
	got := Enumerate([]netip.Prefix{p}, ModeFull, nil)
	if len(got) != 1 || got[0].String() != "9.9.9.9" {
		t.Errorf("expected exactly 9.9.9.9, got %v", got)
	}
}

func TestEnumerateSlash31(t *testing.T) {
	p := netip.MustParsePrefix("9.9.9.8/31")
	got := Enumerate([]netip.Prefix{p}, ModeFull, nil)
	if len(got) != 2 {
		t.Errorf("expected 2 addresses for a /31, got %d", len(got))
	}
}

func TestEnumerateQuickSamplesOnePerSlash24(t *testing.T) {
	prefixes := []netip.Prefix{netip.MustParsePrefix("103.20.0.0/22")} // 4 /24 blocks
	got := Enumerate(prefixes, ModeQuick, rand.New(rand.NewSource(42)))
	if len(got) != 4 {
		t.Errorf("expected 1 sample per /24 (4 blocks), got %d", len(got))
	}
}

func TestEnumerateNormalSamplesThreePerSlash24(t *testing.T) {
	prefixes := []netip.Prefix{netip.MustParsePrefix("103.20.0.0/23")} // 2 /24 blocks
	got := Enumerate(prefixes, ModeNormal, rand.New(rand.NewSource(42)))
	if len(got) != 6 {
		t.Errorf("expected 3 samples per /24 (2 blocks = 6), got %d", len(got))
	}
}
