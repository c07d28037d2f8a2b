/*
Package inputload detects and loads the five input shapes cdnedge accepts: a template plus a
raw address list, a subscription URL (plain text or base64), a domain-JSON file, a plain text
file of proxy URIs, and a clean-IP-only list consumed straight by the sweep/latency engines.
*/
package inputload

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"unicode"

	"golang.org/x/net/http2"

	"github.com/markdingo/cdnedge/internal/tlsutil"
	"github.com/markdingo/cdnedge/internal/uricodec"
)

const me = "inputload"

// Shape identifies which of the five detected input forms produced a Result.
type Shape string

const (
	ShapeTemplateAddresses Shape = "template+addresses"
	ShapeSubscription      Shape = "subscription"
	ShapeDomainJSON        Shape = "domain-json"
	ShapeURIList           Shape = "uri-list"
	ShapeCleanIPs          Shape = "clean-ips"
)

// LoadStats is returned alongside the loaded configs so the caller can print an end-of-run
// summary, per the error-handling policy of reporting skipped-line counts.
type LoadStats struct {
	Shape           Shape
	TotalLines      int
	MalformedLines  int
	DuplicateLines  int
	LoadedConfigs   int
	LoadedCleanIPs  int
}

// Source describes where input comes from. Exactly one of Path or SubscriptionURL is normally
// set; Template is optional and, when set together with Path, selects shape 1.
type Source struct {
	Path            string // Text file: address list (with Template) or URI list (without)
	SubscriptionURL string
	Template        string
	HTTPClient      *http.Client // Used only for SubscriptionURL; a default is built if nil
}

// domainRecord is one element of a domain-JSON file's "data" array.
type domainRecord struct {
	Domain string `json:"domain"`
	IPv4   string `json:"ipv4"`
}

type domainFile struct {
	Data []domainRecord `json:"data"`
}

// Load detects the input shape from src and returns the parsed configs (if any), any bare
// clean-IP candidates, and load statistics.
func Load(ctx context.Context, src Source) ([]*uricodec.ProxyConfig, []string, LoadStats, error) {
	switch {
	case src.Path != "" && src.Template != "":
		data, err := readFile(src.Path)
		if err != nil {
			return nil, nil, LoadStats{}, fmt.Errorf("%s:Load: %w", me, err)
		}
		if looksLikeDomainJSON(data) {
			return loadDomainJSON(data, src.Template)
		}
		return loadTemplateAddresses(src.Path, src.Template)

	case src.SubscriptionURL != "":
		body, err := fetchSubscription(ctx, src.SubscriptionURL, src.HTTPClient)
		if err != nil {
			return nil, nil, LoadStats{}, fmt.Errorf("%s:Load: %w", me, err)
		}
		return loadURIText(decodeSubscriptionBody(body), ShapeSubscription)

	case src.Path != "":
		data, err := readFile(src.Path)
		if err != nil {
			return nil, nil, LoadStats{}, fmt.Errorf("%s:Load: %w", me, err)
		}
		if looksLikeDomainJSON(data) {
			return loadDomainJSON(data, src.Template)
		}
		if isCleanIPList(data) {
			return loadCleanIPs(data)
		}
		return loadURIText(data, ShapeURIList)
	}

	return nil, nil, LoadStats{}, fmt.Errorf("%s:Load: %w: no input source supplied", me, ErrNoInput)
}

// ErrNoInput is returned when a Source has none of Path or SubscriptionURL set.
var ErrNoInput = fmt.Errorf("no input supplied")

//////////////////////////////////////////////////////////////////////
// Shape 1: template + address list
//////////////////////////////////////////////////////////////////////

func loadTemplateAddresses(path, template string) ([]*uricodec.ProxyConfig, []string, LoadStats, error) {
	tmpl, err := uricodec.Parse(template)
	if err != nil {
		return nil, nil, LoadStats{}, fmt.Errorf("%s:loadTemplateAddresses: %w", me, err)
	}

	data, err := readFile(path)
	if err != nil {
		return nil, nil, LoadStats{}, fmt.Errorf("%s:loadTemplateAddresses: %w", me, err)
	}

	stats := LoadStats{Shape: ShapeTemplateAddresses}
	seen := make(map[string]bool)
	var configs []*uricodec.ProxyConfig

	for _, line := range splitLines(data) {
		stats.TotalLines++
		host, port, ok := splitHostPort(line)
		if !ok {
			stats.MalformedLines++
			continue
		}
		cfg := uricodec.Substitute(tmpl, host, port)
		key := cfg.Host + fmt.Sprint(cfg.Port)
		if seen[key] {
			stats.DuplicateLines++
			continue
		}
		seen[key] = true
		configs = append(configs, cfg)
	}
	stats.LoadedConfigs = len(configs)

	return configs, nil, stats, nil
}

//////////////////////////////////////////////////////////////////////
// Shape 2: subscription
//////////////////////////////////////////////////////////////////////

func fetchSubscription(ctx context.Context, rawURL string, client *http.Client) ([]byte, error) {
	if client == nil {
		var err error
		client, err = buildHTTPClient()
		if err != nil {
			return nil, fmt.Errorf("%s:fetchSubscription: %w", me, err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s:fetchSubscription: %w", me, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s:fetchSubscription: %w", me, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s:fetchSubscription: %s returned %s", me, rawURL, resp.Status)
	}

	return io.ReadAll(resp.Body)
}

// buildHTTPClient mirrors cmd/trustydns-proxy/main.go's client construction: a plain
// tls.Config (no CA pinning needed for subscription hosts, which are arbitrary third parties)
// wrapped in an http2-configured Transport.
func buildHTTPClient() (*http.Client, error) {
	tlsConfig, err := tlsutil.NewClientTLSConfig(true, nil, "", "")
	if err != nil {
		return nil, err
	}
	tr := &http.Transport{TLSClientConfig: tlsConfig}
	if err := http2.ConfigureTransport(tr); err != nil {
		return nil, err
	}

	return &http.Client{Transport: tr}, nil
}

// decodeSubscriptionBody attempts a padding-tolerant base64 decode of body; if the decoded bytes
// begin with a recognized scheme (after leading whitespace), that decoded text is returned,
// otherwise body is returned unmodified (plain-text shape).
func decodeSubscriptionBody(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	padded := trimmed
	if m := len(padded) % 4; m != 0 {
		padded = append(append([]byte{}, padded...), bytes.Repeat([]byte("="), 4-m)...)
	}

	decoded, err := base64.StdEncoding.DecodeString(string(padded))
	if err != nil {
		decoded, err = base64.URLEncoding.DecodeString(string(padded))
	}
	if err != nil {
		return body
	}

	check := bytes.TrimLeftFunc(decoded, unicode.IsSpace)
	if bytes.HasPrefix(check, []byte("vless://")) || bytes.HasPrefix(check, []byte("vmess://")) {
		return decoded
	}

	return body
}

//////////////////////////////////////////////////////////////////////
// Shape 3: domain JSON
//////////////////////////////////////////////////////////////////////

func looksLikeDomainJSON(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	var probe struct {
		Data json.RawMessage `json:"data"`
	}

	return json.Unmarshal(trimmed, &probe) == nil && len(probe.Data) > 0
}

func loadDomainJSON(data []byte, template string) ([]*uricodec.ProxyConfig, []string, LoadStats, error) {
	var df domainFile
	if err := json.Unmarshal(data, &df); err != nil {
		return nil, nil, LoadStats{}, fmt.Errorf("%s:loadDomainJSON: %w", me, err)
	}

	stats := LoadStats{Shape: ShapeDomainJSON, TotalLines: len(df.Data)}

	if template == "" { // No template: ipv4 values become raw clean-IP candidates
		var ips []string
		seen := make(map[string]bool)
		for _, rec := range df.Data {
			if rec.IPv4 == "" {
				stats.MalformedLines++
				continue
			}
			if seen[rec.IPv4] {
				stats.DuplicateLines++
				continue
			}
			seen[rec.IPv4] = true
			ips = append(ips, rec.IPv4)
		}
		stats.LoadedCleanIPs = len(ips)

		return nil, ips, stats, nil
	}

	tmpl, err := uricodec.Parse(template)
	if err != nil {
		return nil, nil, LoadStats{}, fmt.Errorf("%s:loadDomainJSON: %w", me, err)
	}

	var configs []*uricodec.ProxyConfig
	seen := make(map[string]bool)
	for _, rec := range df.Data {
		if rec.IPv4 == "" {
			stats.MalformedLines++
			continue
		}
		if seen[rec.IPv4] {
			stats.DuplicateLines++
			continue
		}
		seen[rec.IPv4] = true
		cfg := uricodec.Substitute(tmpl, rec.IPv4, tmpl.Port)
		if rec.Domain != "" {
			cfg.SNI = rec.Domain
			cfg.HTTPHost = rec.Domain
		}
		configs = append(configs, cfg)
	}
	stats.LoadedConfigs = len(configs)

	return configs, nil, stats, nil
}

//////////////////////////////////////////////////////////////////////
// Shape 4/5: plain URI text and clean-IP-only
//////////////////////////////////////////////////////////////////////

func loadURIText(data []byte, shape Shape) ([]*uricodec.ProxyConfig, []string, LoadStats, error) {
	stats := LoadStats{Shape: shape}
	seen := make(map[string]bool)
	var configs []*uricodec.ProxyConfig

	for _, line := range splitLines(data) {
		stats.TotalLines++
		if seen[line] {
			stats.DuplicateLines++
			continue
		}
		cfg, err := uricodec.Parse(line)
		if err != nil {
			stats.MalformedLines++
			continue
		}
		seen[line] = true
		configs = append(configs, cfg)
	}
	stats.LoadedConfigs = len(configs)

	return configs, nil, stats, nil
}

func isCleanIPList(data []byte) bool {
	for _, line := range splitLines(data) {
		if strings.HasPrefix(line, "vless://") || strings.HasPrefix(line, "vmess://") {
			return false
		}
		return true // First non-blank, non-comment line decides
	}

	return false
}

func loadCleanIPs(data []byte) ([]*uricodec.ProxyConfig, []string, LoadStats, error) {
	stats := LoadStats{Shape: ShapeCleanIPs}
	seen := make(map[string]bool)
	var ips []string

	for _, line := range splitLines(data) {
		stats.TotalLines++
		if seen[line] {
			stats.DuplicateLines++
			continue
		}
		seen[line] = true
		ips = append(ips, line)
	}
	stats.LoadedCleanIPs = len(ips)

	return nil, ips, stats, nil
}

//////////////////////////////////////////////////////////////////////
// Shared helpers
//////////////////////////////////////////////////////////////////////

func splitLines(data []byte) []string {
	var out []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}

	return out
}

func splitHostPort(line string) (string, uint16, bool) {
	host, portStr, err := splitAddr(line)
	if err != nil {
		return "", 0, false
	}
	port := uint16(443)
	if portStr != "" {
		var p int
		if _, err := fmt.Sscanf(portStr, "%d", &p); err != nil || p <= 0 || p > 65535 {
			return "", 0, false
		}
		port = uint16(p)
	}

	return host, port, true
}

func splitAddr(addr string) (host, port string, err error) {
	if idx := strings.LastIndex(addr, ":"); idx != -1 && !strings.Contains(addr[idx+1:], "]") {
		return addr[:idx], addr[idx+1:], nil
	}

	return addr, "", nil
}

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}
