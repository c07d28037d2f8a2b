/*
Package constants provides common values used across all cdnedge packages. Usage is to call the
global Get() function which returns the Constants by value ensuring that any modifications made
(accidental or otherwise) will not affect other modules when they call Get().

Typically usage:

    consts := constants.Get()
    fmt.Println("I am", consts.ScanProgramName, "scoring via", consts.SpeedTestHost)

The primary reason for making this a constructed struct rather than the more typical const () block
is so that it can be fed directly into templating packages for printing usage messages.
*/
package constants

import "time"

// Constants contains the system-wide constants
type Constants struct {
	ProbeProgramName string // Package related constants
	ScanProgramName  string
	Version          string
	PackageName      string
	PackageURL       string

	HTTPSDefaultPort string // HTTP related constants
	MegaModePort     string // Second port probed by mega sweep mode

	UserAgentHeader   string
	AcceptHeader      string
	ServerHeader      string
	RetryAfterHeader  string // On a 429 response
	ContentTypeHeader string
	RangeHeader       string

	CDNSignatureHeader string // Header name whose value identifies the CDN
	CDNSignaturePrefix string // Required value prefix for CDNSignatureHeader
	CDNTraceHeader     string // Alternate CDN-specific trace header, presence alone qualifies

	SpeedTestHost      string // Primary CDN speed-test endpoint
	SpeedTestPath      string
	MirrorSpeedTestHost string // Fallback CDN speed-test endpoint used under rate-limit
	MirrorSpeedTestPath string

	RateBudgetWindow   time.Duration // Rolling window for the rate-limit accountant
	RateBudgetCapacity int           // Max admitted direct requests per window
	DefaultRetryAfter  time.Duration // Used when a 429 carries no Retry-After

	HandshakeTimeout   time.Duration // TLS handshake timeout default
	DownloadTimeout    time.Duration // Download round timeout default
	DNSResolveTimeout  time.Duration // Hostname resolution timeout default
	VerifyHeadTimeout  time.Duration // Probe verification HEAD timeout default

	SweepWorkers int // Default bounded-pool size for the sweep engine
	SpeedWorkers int // Default bounded-pool size for the speed engine

	DefaultTopN int // Default count for the top-N URI export
}

var readOnlyConstants *Constants

// createReadOnlyConstants creates a read-only copy of the Constants which is copied whenever a
// caller asks for the constants set. The main reason for returning a struct is so that callers can
// inspect and/or use packages that introspect - particularly */template packages.
func createReadOnlyConstants() {
	readOnlyConstants = &Constants{
		ProbeProgramName: "cdnedge-probe",
		ScanProgramName:  "cdnedge",
		Version:          "v0.1.0",
		PackageName:      "CDN Edge-IP Quality Scanner",
		PackageURL:       "https://github.com/markdingo/cdnedge",

		HTTPSDefaultPort: "443",
		MegaModePort:     "8443",

		UserAgentHeader:   "User-Agent",
		AcceptHeader:      "Accept",
		ServerHeader:      "Server",
		RetryAfterHeader:  "Retry-After",
		ContentTypeHeader: "Content-Type",
		RangeHeader:       "Range",

		CDNSignatureHeader: "Server",
		CDNSignaturePrefix: "cloudflare",
		CDNTraceHeader:     "CF-RAY",

		SpeedTestHost:       "speed.cloudflare.com",
		SpeedTestPath:       "/__down",
		MirrorSpeedTestHost: "cf-speed-mirror.trycloudflare.com",
		MirrorSpeedTestPath: "/__down",

		RateBudgetWindow:   time.Second * 600,
		RateBudgetCapacity: 550,
		DefaultRetryAfter:  time.Second * 60,

		HandshakeTimeout:  time.Second * 5,
		DownloadTimeout:   time.Second * 30,
		DNSResolveTimeout: time.Second * 3,
		VerifyHeadTimeout: time.Second * 5,

		SweepWorkers: 300,
		SpeedWorkers: 10,

		DefaultTopN: 50,
	}
}

func init() {
	createReadOnlyConstants()
}

// Get returns a copy of the Constant struct. Return by value so internal values cannot be
// inadvertently changed by callers.
func Get() Constants {
	return *readOnlyConstants
}
