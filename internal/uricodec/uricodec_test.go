package uricodec

import (
	"errors"
	"testing"
)

func TestParseVLESS(t *testing.T) {
	raw := "vless://1111-2222@s.io:443?type=ws&security=tls&sni=s.io&path=%2Fws&flow=xtls-rprx-vision#myremark"
	cfg, err := Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Protocol != VLESS {
		t.Error("expected VLESS protocol")
	}
	if cfg.UUID != "1111-2222" {
		t.Error("bad uuid", cfg.UUID)
	}
	if cfg.Host != "s.io" || cfg.Port != 443 {
		t.Error("bad host/port", cfg.Host, cfg.Port)
	}
	if cfg.Transport != "ws" || cfg.Security != SecurityTLS || cfg.SNI != "s.io" {
		t.Error("bad params", cfg.Transport, cfg.Security, cfg.SNI)
	}
	if cfg.Path != "/ws" {
		t.Error("bad path", cfg.Path)
	}
	if cfg.Remark != "myremark" {
		t.Error("bad remark", cfg.Remark)
	}
}

func TestVLESSRoundTrip(t *testing.T) {
	raw := "vless://abc@1.2.3.4:443?type=tcp&security=reality&sni=cover.example&fp=chrome&pbk=pub&sid=1a#tag"
	cfg, err := Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	emitted, err := Emit(cfg)
	if err != nil {
		t.Fatal(err)
	}
	cfg2, err := Parse(emitted)
	if err != nil {
		t.Fatal("re-parse of emitted URI failed:", err)
	}
	if fieldsOnly(*cfg2) != fieldsOnly(*cfg) {
		t.Errorf("round trip mismatch:\n%+v\n%+v", cfg, cfg2)
	}
}

// fieldsOnly zeroes RawURI before comparison since RawURI legitimately differs between the
// original and the re-emitted-then-reparsed config.
func fieldsOnly(cfg ProxyConfig) ProxyConfig {
	cfg.RawURI = ""
	return cfg
}

func TestParseVMess(t *testing.T) {
	raw := "vmess://eyJ2IjoiMiIsInBzIjoidCIsImFkZCI6IjEuMi4zLjQiLCJwb3J0IjoiNDQzIiwiaWQiOiJ1dWlkIiwiYWlkIjoiMCIsIm5ldCI6IndzIiwidHlwZSI6Im5vbmUiLCJob3N0Ijoicy5pbyIsInBhdGgiOiIvIiwidGxzIjoidGxzIiwic25pIjoicy5pbyJ9"
	cfg, err := Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Transport != "ws" || cfg.Security != SecurityTLS || cfg.Host != "1.2.3.4" {
		t.Error("bad vmess parse", cfg.Transport, cfg.Security, cfg.Host)
	}
	if cfg.UUID != "uuid" || cfg.Port != 443 {
		t.Error("bad vmess id/port", cfg.UUID, cfg.Port)
	}
}

func TestVMessRoundTrip(t *testing.T) {
	raw := "vless://x@y:443" // placeholder overwritten below
	cfg, _ := Parse("vless://abc@1.2.3.4:443?type=tcp")
	cfg.Protocol = VMess
	cfg.AlterID = "0"
	cfg.VMessVersion = "2"
	cfg.VMessType = "none"

	emitted, err := Emit(cfg)
	if err != nil {
		t.Fatal(err)
	}
	cfg2, err := Parse(emitted)
	if err != nil {
		t.Fatal(err)
	}
	if cfg2.Host != cfg.Host || cfg2.Port != cfg.Port || cfg2.UUID != cfg.UUID {
		t.Error("vmess round trip lost fields", cfg2)
	}
	_ = raw
}

func TestSubstitute(t *testing.T) {
	tmpl, err := Parse("vless://u@orig.example:443?type=ws&security=tls&sni=cover.example&path=%2Fws#tag")
	if err != nil {
		t.Fatal(err)
	}
	sub := Substitute(tmpl, "104.16.1.1", 8443)
	if sub.Host != "104.16.1.1" || sub.Port != 8443 {
		t.Error("substitute did not set host/port", sub.Host, sub.Port)
	}
	if sub.SNI != tmpl.SNI || sub.Path != tmpl.Path || sub.UUID != tmpl.UUID ||
		sub.Security != tmpl.Security || sub.Transport != tmpl.Transport || sub.Remark != tmpl.Remark {
		t.Error("substitute must not touch any other field")
	}
}

func TestParseMalformed(t *testing.T) {
	cases := []string{
		"http://not-a-proxy-uri",
		"vless://missinghost",
		"vmess://not-valid-base64!!!",
	}
	for _, c := range cases {
		_, err := Parse(c)
		if err == nil {
			t.Error("expected error for", c)
			continue
		}
		if !errors.Is(err, ErrMalformedURI) {
			t.Error("expected ErrMalformedURI for", c, "got", err)
		}
	}
}

func TestDuplicateURICollapse(t *testing.T) {
	// Input loader dedups on raw_uri - this just verifies two identical raws round-trip to
	// equivalent structural configs, which is what identity collapsing depends on.
	a, err := Parse("vless://a@h:443#x")
	if err != nil {
		t.Fatal(err)
	}
	b, err := Parse("vless://a@h:443#x")
	if err != nil {
		t.Fatal(err)
	}
	if *a != *b {
		t.Error("identical raw URIs should parse identically")
	}
}
