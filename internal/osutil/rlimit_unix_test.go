// +build unix !windows

package osutil

import "testing"

func TestRaiseFileLimit(t *testing.T) {
	got, err := RaiseFileLimit(256)
	if err != nil {
		t.Fatal(err)
	}
	if got < 256 {
		t.Error("expected at least the requested limit (or the hard cap), got", got)
	}
}
