package main

import "time"

// config mirrors cdnedge-probe's small flag surface, the same flat-struct convention as
// cmd/cdnedge and cmd/trustydns-dig.
type config struct {
	help    bool
	version bool

	replaceIP   string
	replacePort int
	sni         string
	timeout     time.Duration
}
