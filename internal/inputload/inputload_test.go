package inputload

import (
	"context"
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTemplateAddresses(t *testing.T) {
	path := writeTemp(t, "addrs.txt", "1.1.1.1\n1.0.0.1:8443\n# comment\n\n8.8.8.8\n")
	template := "vless://u@X:443?type=ws&security=tls&sni=s.io#t"

	configs, ips, stats, err := Load(context.Background(), Source{Path: path, Template: template})
	if err != nil {
		t.Fatal(err)
	}
	if len(ips) != 0 {
		t.Error("expected no bare ips in template shape")
	}
	if len(configs) != 3 {
		t.Fatalf("expected 3 configs, got %d", len(configs))
	}
	if configs[0].Host != "1.1.1.1" || configs[0].Port != 443 {
		t.Error("bad first config", configs[0])
	}
	if configs[1].Host != "1.0.0.1" || configs[1].Port != 8443 {
		t.Error("bad second config", configs[1])
	}
	if configs[0].SNI != "s.io" {
		t.Error("sni not preserved from template", configs[0].SNI)
	}
	if stats.Shape != ShapeTemplateAddresses {
		t.Error("bad shape", stats.Shape)
	}
}

func TestLoadURIList(t *testing.T) {
	body := "vless://a@h:443#x\nvless://a@h:443#x\n# skip this\nnotauri\n"
	path := writeTemp(t, "uris.txt", body)

	configs, _, stats, err := Load(context.Background(), Source{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if len(configs) != 1 {
		t.Fatalf("expected dedup to 1 config, got %d", len(configs))
	}
	if stats.DuplicateLines != 1 {
		t.Error("expected 1 duplicate", stats.DuplicateLines)
	}
	if stats.MalformedLines != 1 {
		t.Error("expected 1 malformed line", stats.MalformedLines)
	}
}

func TestLoadCleanIPs(t *testing.T) {
	path := writeTemp(t, "clean.txt", "1.1.1.1\n1.1.1.1\n1.0.0.1:8443\n")
	_, ips, stats, err := Load(context.Background(), Source{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if len(ips) != 2 {
		t.Fatalf("expected 2 unique ips, got %d: %v", len(ips), ips)
	}
	if stats.Shape != ShapeCleanIPs {
		t.Error("bad shape", stats.Shape)
	}
}

func TestLoadDomainJSONNoTemplate(t *testing.T) {
	body := `{"data":[{"domain":"a.example","ipv4":"1.1.1.1"},{"domain":"b.example","ipv4":"1.0.0.1"}]}`
	path := writeTemp(t, "domains.json", body)

	_, ips, stats, err := Load(context.Background(), Source{Path: path})
	if err != nil {
		t.Fatal(err)
	}
	if len(ips) != 2 {
		t.Fatalf("expected 2 ips, got %d", len(ips))
	}
	if stats.Shape != ShapeDomainJSON {
		t.Error("bad shape", stats.Shape)
	}
}

func TestLoadDomainJSONWithTemplate(t *testing.T) {
	body := `{"data":[{"domain":"a.example","ipv4":"1.1.1.1"}]}`
	path := writeTemp(t, "domains.json", body)
	template := "vless://u@X:443?type=ws&security=tls&sni=cover.example#t"

	configs, _, _, err := Load(context.Background(), Source{Path: path, Template: template})
	if err != nil {
		t.Fatal(err)
	}
	if len(configs) != 1 {
		t.Fatalf("expected 1 config, got %d", len(configs))
	}
	if configs[0].Host != "1.1.1.1" {
		t.Error("bad host", configs[0].Host)
	}
	if configs[0].SNI != "a.example" {
		t.Error("expected domain to override sni", configs[0].SNI)
	}
}

func TestDecodeSubscriptionBodyBase64(t *testing.T) {
	plain := "vless://a@h:443#x\nvless://a@h:443#x\n"
	encoded := base64.StdEncoding.EncodeToString([]byte(plain))

	decoded := decodeSubscriptionBody([]byte(encoded))
	if string(decoded) != plain {
		t.Error("expected decoded base64 body, got", string(decoded))
	}
}

func TestDecodeSubscriptionBodyPlainText(t *testing.T) {
	plain := "vless://a@h:443#x\n"
	decoded := decodeSubscriptionBody([]byte(plain))
	if string(decoded) != plain {
		t.Error("expected plain text passthrough, got", string(decoded))
	}
}

func TestLoadNoInput(t *testing.T) {
	_, _, _, err := Load(context.Background(), Source{})
	if err == nil {
		t.Error("expected error for empty source")
	}
}
