package sweep

import (
	"net/http"
	"testing"
)

func TestMatchesSignatureByServerHeader(t *testing.T) {
	h := http.Header{}
	h.Set("Server", SignatureTable["server"]+"-frontend")
	if !matchesSignature(h) {
		t.Error("expected server-prefix match to verify")
	}
}

func TestMatchesSignatureByTraceHeader(t *testing.T) {
	h := http.Header{}
	h.Set(TraceHeader, "abcd-DFW")
	if !matchesSignature(h) {
		t.Error("expected trace header presence alone to verify")
	}
}

func TestMatchesSignatureNone(t *testing.T) {
	h := http.Header{}
	h.Set("Server", "nginx")
	if matchesSignature(h) {
		t.Error("expected no match for an unrelated server header")
	}
}

func TestEndpointString(t *testing.T) {
	e443 := Endpoint{IP: mustAddr("1.2.3.4"), Port: 443}
	if e443.String() != "1.2.3.4" {
		t.Error("default port should not be shown", e443.String())
	}
	e8443 := Endpoint{IP: mustAddr("1.2.3.4"), Port: 8443}
	if e8443.String() != "1.2.3.4:8443" {
		t.Error("non-default port should be shown", e8443.String())
	}
}
