package tlsutil

import (
	"crypto/tls"
)

// NewProbeTLSConfig returns a tls.Config suitable for dialing an edge IP directly while announcing
// the supplied SNI. Probe dials never verify the certificate against the dialed address - the point
// of the probe is to observe whether *a* TLS handshake with this SNI completes, not to authenticate
// the edge as belonging to any particular name. Certificate verification of the *content* served is
// instead done one layer up by the CDN-header signature check.
func NewProbeTLSConfig(sni string) *tls.Config {
	return &tls.Config{
		ServerName:         sni,
		InsecureSkipVerify: true,
		MinVersion:         tls.VersionTLS12,
	}
}
