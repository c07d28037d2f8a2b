package constants

import (
	"testing"
)

func TestPostGet(t *testing.T) {
	if readOnlyConstants == nil {
		t.Error("Expected readOnlyConstants to be set by init() prior to me")
	}
}

// TestValues tests that at least a few of the constants have been
// initialized. Too tiresome to test them all and obviously of limited
// value.
func TestValues(t *testing.T) {
	consts := Get()
	if len(consts.ScanProgramName) == 0 {
		t.Error("consts.ScanProgramName should be set but it's zero length")
	}
	if len(consts.Version) == 0 {
		t.Error("consts.Version should be set but it's zero length")
	}

	if len(consts.HTTPSDefaultPort) == 0 {
		t.Error("consts.HTTPSDefaultPort should be set but it's zero length")
	}
	if len(consts.CDNSignatureHeader) == 0 {
		t.Error("consts.CDNSignatureHeader should be set but it's zero length")
	}

	if consts.RateBudgetCapacity == 0 {
		t.Error("consts.RateBudgetCapacity should be set but it's zero")
	}
	if consts.RateBudgetWindow == 0 {
		t.Error("consts.RateBudgetWindow should be set but it's zero")
	}
}
