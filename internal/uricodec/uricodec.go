/*
Package uricodec parses and emits the two proxy URI schemes cdnedge cares about - vless and
vmess - into a single tagged-variant ProxyConfig, and substitutes a candidate endpoint into a
template URI while preserving every other field. VLESS and VMess share enough of a behavioural
surface (parse/emit/substitute) that modelling them as distinct types with a common interface
would mean duplicating that surface twice; a single struct with a Protocol tag keeps the common
fields in one place and the protocol-specific fields alongside them.
*/
package uricodec

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const me = "uricodec"

// ErrMalformedURI is returned (wrapped) for any input that cannot be parsed as a recognized
// proxy URI.
var ErrMalformedURI = errors.New("malformed proxy URI")

// Protocol identifies which of the two supported schemes a ProxyConfig was parsed from.
type Protocol string

const (
	VLESS Protocol = "vless"
	VMess Protocol = "vmess"
)

// Security identifies the TLS posture a config announces.
type Security string

const (
	SecurityNone     Security = "none"
	SecurityTLS      Security = "tls"
	SecurityReality  Security = "reality"
)

// ProxyConfig is the parsed form of a vless:// or vmess:// URI. Fields not applicable to a given
// Protocol are left at their zero value.
type ProxyConfig struct {
	Protocol Protocol
	UUID     string
	Host     string // Literal IP or DNS name
	Port     uint16
	Transport string // tcp, ws, grpc, h2, xhttp
	Security Security
	SNI      string
	Path     string
	HTTPHost string // http_host_header
	Remark   string
	RawURI   string

	// VLESS-only fields, preserved verbatim across a round trip when present.
	Flow       string
	Fp         string
	Alpn       string
	Pbk        string
	Sid        string
	Spx        string
	HeaderType string
	ServiceName string
	Mode       string

	// VMess-only fields.
	VMessVersion string // "v"
	AlterID      string // "aid"
	VMessType    string // "type" ("none" etc, distinct from Transport's "net")
}

// Parse detects the scheme of raw and dispatches to the matching decoder.
func Parse(raw string) (*ProxyConfig, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "vless://"):
		return parseVLESS(raw)
	case strings.HasPrefix(raw, "vmess://"):
		return parseVMess(raw)
	default:
		return nil, fmt.Errorf("%s:Parse: %w: unrecognized scheme in %q", me, ErrMalformedURI, raw)
	}
}

// Emit renders cfg back into its URI form.
func Emit(cfg *ProxyConfig) (string, error) {
	switch cfg.Protocol {
	case VLESS:
		return emitVLESS(cfg), nil
	case VMess:
		return emitVMess(cfg)
	default:
		return "", fmt.Errorf("%s:Emit: %w: unknown protocol %q", me, ErrMalformedURI, cfg.Protocol)
	}
}

// Substitute returns a copy of tmpl with Host and Port replaced by host/port. sni and
// http_host_header are deliberately left untouched - they are the camouflage identity, the whole
// point of swapping the edge IP is to keep that identity intact.
func Substitute(tmpl *ProxyConfig, host string, port uint16) *ProxyConfig {
	out := *tmpl
	out.Host = host
	out.Port = port
	out.RawURI = ""

	return &out
}

//////////////////////////////////////////////////////////////////////
// VLESS
//////////////////////////////////////////////////////////////////////

// vlessParams are the query parameters that must be preserved verbatim when present.
var vlessParams = []string{
	"type", "security", "sni", "host", "path", "fp", "alpn",
	"pbk", "sid", "spx", "flow", "headerType", "serviceName", "mode",
}

func parseVLESS(raw string) (*ProxyConfig, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s:parseVLESS: %w: %v", me, ErrMalformedURI, err)
	}
	if u.User == nil || u.User.Username() == "" {
		return nil, fmt.Errorf("%s:parseVLESS: %w: missing uuid in %q", me, ErrMalformedURI, raw)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("%s:parseVLESS: %w: missing host in %q", me, ErrMalformedURI, raw)
	}

	port, err := parsePort(u.Port())
	if err != nil {
		return nil, fmt.Errorf("%s:parseVLESS: %w: %v", me, ErrMalformedURI, err)
	}

	q := u.Query()
	remark, err := url.QueryUnescape(u.Fragment)
	if err != nil {
		remark = u.Fragment
	}

	cfg := &ProxyConfig{
		Protocol:    VLESS,
		UUID:        u.User.Username(),
		Host:        u.Hostname(),
		Port:        port,
		Transport:   q.Get("type"),
		Security:    Security(q.Get("security")),
		SNI:         q.Get("sni"),
		Path:        q.Get("path"),
		HTTPHost:    q.Get("host"),
		Remark:      remark,
		RawURI:      raw,
		Flow:        q.Get("flow"),
		Fp:          q.Get("fp"),
		Alpn:        q.Get("alpn"),
		Pbk:         q.Get("pbk"),
		Sid:         q.Get("sid"),
		Spx:         q.Get("spx"),
		HeaderType:  q.Get("headerType"),
		ServiceName: q.Get("serviceName"),
		Mode:        q.Get("mode"),
	}
	if cfg.Transport == "" {
		cfg.Transport = "tcp"
	}
	if cfg.Security == "" {
		cfg.Security = SecurityNone
	}

	return cfg, nil
}

func emitVLESS(cfg *ProxyConfig) string {
	q := url.Values{}
	set := map[string]string{
		"type":        cfg.Transport,
		"security":    string(cfg.Security),
		"sni":         cfg.SNI,
		"host":        cfg.HTTPHost,
		"path":        cfg.Path,
		"fp":          cfg.Fp,
		"alpn":        cfg.Alpn,
		"pbk":         cfg.Pbk,
		"sid":         cfg.Sid,
		"spx":         cfg.Spx,
		"flow":        cfg.Flow,
		"headerType":  cfg.HeaderType,
		"serviceName": cfg.ServiceName,
		"mode":        cfg.Mode,
	}
	for _, name := range vlessParams {
		if v := set[name]; v != "" {
			q.Set(name, v)
		}
	}

	u := url.URL{
		Scheme:   "vless",
		User:     url.User(cfg.UUID),
		Host:     joinHostPort(cfg.Host, cfg.Port),
		RawQuery: q.Encode(),
		Fragment: cfg.Remark,
	}

	return u.String()
}

//////////////////////////////////////////////////////////////////////
// VMess
//////////////////////////////////////////////////////////////////////

// vmessJSON mirrors the field set of a vmess:// base64 JSON payload.
type vmessJSON struct {
	V    string `json:"v"`
	Ps   string `json:"ps"`
	Add  string `json:"add"`
	Port string `json:"port"`
	ID   string `json:"id"`
	Aid  string `json:"aid"`
	Net  string `json:"net"`
	Type string `json:"type"`
	Host string `json:"host"`
	Path string `json:"path"`
	TLS  string `json:"tls"`
	SNI  string `json:"sni"`
	Alpn string `json:"alpn"`
	Fp   string `json:"fp"`
	Scy  string `json:"scy"`
}

func parseVMess(raw string) (*ProxyConfig, error) {
	encoded := strings.TrimPrefix(raw, "vmess://")
	decoded, err := base64DecodePadded(encoded)
	if err != nil {
		return nil, fmt.Errorf("%s:parseVMess: %w: base64: %v", me, ErrMalformedURI, err)
	}

	var vj vmessJSON
	if err := json.Unmarshal(decoded, &vj); err != nil {
		return nil, fmt.Errorf("%s:parseVMess: %w: json: %v", me, ErrMalformedURI, err)
	}
	if vj.Add == "" || vj.ID == "" {
		return nil, fmt.Errorf("%s:parseVMess: %w: missing add/id in %q", me, ErrMalformedURI, raw)
	}

	portNum, _ := strconv.ParseUint(strings.TrimSpace(vj.Port), 10, 16)
	if portNum == 0 {
		portNum = 443
	}

	security := SecurityNone
	if vj.TLS == "tls" {
		security = SecurityTLS
	} else if vj.TLS == "reality" {
		security = SecurityReality
	}

	cfg := &ProxyConfig{
		Protocol:     VMess,
		UUID:         vj.ID,
		Host:         vj.Add,
		Port:         uint16(portNum),
		Transport:    vj.Net,
		Security:     security,
		SNI:          vj.SNI,
		Path:         vj.Path,
		HTTPHost:     vj.Host,
		Remark:       vj.Ps,
		RawURI:       raw,
		Alpn:         vj.Alpn,
		Fp:           vj.Fp,
		VMessVersion: vj.V,
		AlterID:      vj.Aid,
		VMessType:    vj.Type,
	}
	if cfg.Transport == "" {
		cfg.Transport = "tcp"
	}

	return cfg, nil
}

func emitVMess(cfg *ProxyConfig) (string, error) {
	tls := ""
	switch cfg.Security {
	case SecurityTLS:
		tls = "tls"
	case SecurityReality:
		tls = "reality"
	}

	vj := vmessJSON{
		V:    orDefault(cfg.VMessVersion, "2"),
		Ps:   cfg.Remark,
		Add:  cfg.Host,
		Port: strconv.Itoa(int(cfg.Port)),
		ID:   cfg.UUID,
		Aid:  orDefault(cfg.AlterID, "0"),
		Net:  cfg.Transport,
		Type: orDefault(cfg.VMessType, "none"),
		Host: cfg.HTTPHost,
		Path: cfg.Path,
		TLS:  tls,
		SNI:  cfg.SNI,
		Alpn: cfg.Alpn,
		Fp:   cfg.Fp,
	}

	raw, err := json.Marshal(vj)
	if err != nil {
		return "", fmt.Errorf("%s:emitVMess: %w", me, err)
	}

	return "vmess://" + base64.StdEncoding.EncodeToString(raw), nil
}

//////////////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////////////

func parsePort(s string) (uint16, error) {
	if s == "" {
		return 443, nil
	}
	n, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}

	return uint16(n), nil
}

func joinHostPort(host string, port uint16) string {
	if strings.Contains(host, ":") { // IPv6 literal
		return "[" + host + "]:" + strconv.Itoa(int(port))
	}

	return host + ":" + strconv.Itoa(int(port))
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}

	return v
}

// base64DecodePadded tolerates both standard and url-safe alphabets and missing padding - input
// subscriptions and vmess links are inconsistent about which flavour they use.
func base64DecodePadded(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if m := len(s) % 4; m != 0 {
		s += strings.Repeat("=", 4-m)
	}
	if decoded, err := base64.StdEncoding.DecodeString(s); err == nil {
		return decoded, nil
	}

	return base64.URLEncoding.DecodeString(s)
}
