package sweep

import "github.com/markdingo/cdnedge/internal/constants"

// SignatureTable maps a response header name (case folded by the caller) to the value prefix
// that header must carry for a probed IP to be considered verified as a genuine CDN edge. The
// exact header/token pair is environmental (spec's Open Question), so this is exposed as a
// mutable package var rather than a constant - operators pointing cdnedge at a different CDN
// override it before calling Run.
var SignatureTable = map[string]string{
	"server": constants.Get().CDNSignaturePrefix,
}

// TraceHeader, if present in the response at all (regardless of value), also qualifies a probe
// as verified - some CDNs stamp a request-tracing header instead of (or as well as) a Server
// signature.
var TraceHeader = constants.Get().CDNTraceHeader
