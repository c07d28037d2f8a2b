package main

import (
	"fmt"
	"io"
	"text/template"
)

// The "flag" package is not tty aware so we've arbitrarily picked 100 columns as a conservative
// tty width for the usage output, same as cmd/trustydns-proxy.

const usageMessageTemplate = `
NAME
          {{.ScanProgramName}} -- CDN edge-IP quality scanner

SYNOPSIS
          {{.ScanProgramName}} [options]

DESCRIPTION
          {{.ScanProgramName}} discovers reachable CDN edge IPs, ranks them by TLS handshake
          latency and download throughput, and emits ready-to-use proxy URIs for the
          best-performing candidates.

          Input is one of: a plain text file of proxy URIs, a subscription URL (plain text or
          base64), a domain-JSON file, a template URI combined with a raw address list, or a
          clean-IP-only list. See INPUT SHAPES below.

          Two pipelines are available. The default "measure" pipeline resolves input configs to
          edge IPs, probes each with a TCP-connect + TLS-handshake pass (the Latency Engine),
          then runs surviving candidates through progressively larger download rounds (the
          Speed Engine) to rank them by a weighted throughput/latency/TTFB score. The
          --find-clean pipeline instead sweeps the CDN's published subnets directly, looking
          for reachable, CDN-owned IPs with no input file required.

INPUT SHAPES
          1. --template URI combined with -i/--input FILE containing one address per line: each
             address is substituted into the template to build a proxy config.
          2. --sub URL: a subscription URL returning plain text or base64-encoded proxy URIs.
          3. -i/--input FILE containing a domain-JSON document ({"data":[{"domain":...,
             "ipv4":...}, ...]}).
          4. -i/--input FILE containing one proxy URI per line.
          5. -i/--input FILE containing one clean IP or ip:port per line (no proxy configs, fed
             straight to the Latency/Speed engines).

PROGRESSIVE SPEED ROUNDS
          The Speed Engine runs candidates through a sequence of rounds, each a larger
          byte-range download with a tighter survivor cap than the last. -m/--mode selects a
          preset round table (quick: 2 small rounds; normal: 3 rounds trimming down to 20
          survivors; thorough: 3 larger rounds). --rounds overrides the preset with an explicit
          "size:cap,size:cap,..." list, where size accepts a k/m/g byte suffix and cap 0 means
          "no trim, test every survivor again".

          Fewer than 50 alive endpoints at the start of a round always bypasses that round's
          cap (the "small-set rule") so a thin input isn't needlessly pruned.

RATE-LIMIT ACCOUNTANT
          Real CDN speed-test endpoints rate-limit aggressively. {{.ScanProgramName}} tracks a
          rolling window of admitted direct requests and fails over to a mirror endpoint after a
          429 or repeated rate-limit signals, reverting to direct once the pause has elapsed and
          a run of mirror successes confirms it's safe.

OUTPUT
          -o/--output (default "results") names the directory that receives
          <timestamp>_results.csv (one row per ranked endpoint, RFC4180-like, header row),
          <timestamp>_top50.txt and <timestamp>_full_sorted.txt (proxy URIs ordered
          best-first), and, for --find-clean runs, <timestamp>_clean_ips.txt of bare ip[:port]
          candidates. Existing files are never overwritten.

OPTIONS
          [-i|--input file] [--sub url] [--template uri]
          [-m|--mode {quick|normal|thorough}] [--rounds "size:cap,..."]
          [-w|--workers N] [--speed-workers N]
          [--timeout duration] [--speed-timeout duration]   (durations carry a unit, e.g. 5s)
          [--skip-download] [--top N] [--no-tui]
          [-o|--output dir] [--output-configs file]
          [--find-clean] [--clean-mode {quick|normal|full|mega}] [--subnets file|CIDR,...]

          [--gops] [--cpu-profile file] [--mem-profile file]

          [-h|--help] [--version]

`

//////////////////////////////////////////////////////////////////////

func usage(out io.Writer) {
	tmpl, err := template.New("usage").Parse(usageMessageTemplate)
	if err != nil {
		panic(err) // We've messed up our template
	}
	err = tmpl.Execute(out, consts)
	if err != nil {
		panic(err) // We've messed up our template
	}
	flagSet.SetOutput(out)
	flagSet.PrintDefaults()
	fmt.Fprintln(out, "\nVersion:", consts.Version)
}

// parseCommandLine sets up the flags-to-config mapping and parses the supplied command line
// arguments. It starts from scratch each time to make it easier for test wrappers to use, same
// as cmd/trustydns-proxy's function of the same name.
func parseCommandLine(args []string) error {
	flagSet.BoolVar(&cfg.help, "h", false, "Print usage message to Stdout then exit(0)")
	flagSet.BoolVar(&cfg.help, "help", false, "Print usage message to Stdout then exit(0)")
	flagSet.BoolVar(&cfg.version, "version", false, "Print version and exit")

	flagSet.StringVar(&cfg.inputFile, "i", "", "Input `file` of proxy URIs, domain-JSON, addresses, or clean IPs")
	flagSet.StringVar(&cfg.inputFile, "input", "", "Input `file` of proxy URIs, domain-JSON, addresses, or clean IPs")
	flagSet.StringVar(&cfg.subscriptionURL, "sub", "", "Subscription `url` returning proxy URIs (plain or base64)")
	flagSet.StringVar(&cfg.template, "template", "", "Proxy URI `template` combined with -i's raw address list")

	flagSet.StringVar(&cfg.mode, "m", "normal", "Speed round `mode`: quick, normal, or thorough")
	flagSet.StringVar(&cfg.mode, "mode", "normal", "Speed round `mode`: quick, normal, or thorough")
	flagSet.StringVar(&cfg.roundsOverride, "rounds", "", "Explicit round `list` overriding --mode, e.g. \"1m:0,5m:50,20m:20\"")

	flagSet.IntVar(&cfg.workers, "w", 50, "Latency and sweep probe `concurrency`")
	flagSet.IntVar(&cfg.workers, "workers", 50, "Latency and sweep probe `concurrency`")
	flagSet.IntVar(&cfg.speedWorkers, "speed-workers", 10, "Speed download `concurrency`")

	flagSet.DurationVar(&cfg.timeout, "timeout", timeoutDefault, "Latency and sweep probe `timeout`")
	flagSet.DurationVar(&cfg.speedTimeout, "speed-timeout", speedTimeoutDefault, "Speed download `timeout`")
	flagSet.BoolVar(&cfg.skipDownload, "skip-download", false, "Rank by latency only, skip the Speed Engine")
	flagSet.BoolVar(&cfg.noTUI, "no-tui", false, "Disable the interactive progress display")

	flagSet.IntVar(&cfg.topN, "top", 50, "`count` of best URIs written to the top-N export")
	flagSet.StringVar(&cfg.outputDir, "o", "results", "Output `directory` for exported files")
	flagSet.StringVar(&cfg.outputDir, "output", "results", "Output `directory` for exported files")
	flagSet.StringVar(&cfg.outputConfigs, "output-configs", "", "Optional `file` to additionally write the full-sorted URI list to")

	flagSet.BoolVar(&cfg.findClean, "find-clean", false, "Run the clean-IP sweep pipeline instead of measuring input configs")
	flagSet.StringVar(&cfg.cleanMode, "clean-mode", "normal", "Sweep sampling `mode`: quick, normal, full, or mega")
	flagSet.Var(&cfg.subnets, "subnets", "Sweep `subnets`: a file path or inline \"CIDR,CIDR,...\"; repeatable (default: built-in table)")

	flagSet.DurationVar(&cfg.statusInterval, "status-interval", statusIntervalDefault, "Periodic status report `interval`")
	flagSet.StringVar(&cfg.resolvConf, "resolv-conf", "", "`path` to an alternate resolv.conf for hostname resolution")

	flagSet.BoolVar(&cfg.gops, "gops", false, "Start github.com/google/gops agent")
	flagSet.StringVar(&cfg.cpuprofile, "cpu-profile", "", "write cpu profile to `file`")
	flagSet.StringVar(&cfg.memprofile, "mem-profile", "", "write mem profile to `file`")

	return flagSet.Parse(args[1:])
}
