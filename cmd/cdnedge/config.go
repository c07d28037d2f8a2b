package main

import (
	"time"

	"github.com/markdingo/cdnedge/internal/flagutil"
)

// config mirrors every flag cdnedge accepts, flat by design so parseCommandLine can bind each
// field directly to a flagSet entry (the same shape cmd/trustydns-proxy's config struct uses).
type config struct {
	help    bool
	version bool
	gops    bool

	inputFile       string
	subscriptionURL string
	template        string

	mode          string // quick|normal|thorough
	roundsOverride string

	workers      int
	speedWorkers int
	timeout      time.Duration
	speedTimeout time.Duration
	skipDownload bool
	noTUI        bool

	topN          int
	outputDir     string
	outputConfigs string

	findClean bool
	cleanMode string // quick|normal|full|mega
	subnets   flagutil.StringValue // each occurrence: a file path, or a comma-separated CIDR list

	statusInterval time.Duration
	resolvConf     string

	cpuprofile, memprofile string
}
