// discover, rank, and export the best-performing CDN edge IPs
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/netip"
	"os"
	"runtime"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/google/gops/agent"

	"github.com/markdingo/cdnedge/internal/constants"
	"github.com/markdingo/cdnedge/internal/inputload"
	"github.com/markdingo/cdnedge/internal/orchestrator"
	"github.com/markdingo/cdnedge/internal/osutil"
	"github.com/markdingo/cdnedge/internal/sweep"
)

const (
	timeoutDefault        = time.Second * 5
	speedTimeoutDefault   = time.Second * 30
	statusIntervalDefault = time.Minute * 1
)

// Program-wide variables, same shape as cmd/trustydns-proxy's.
var (
	consts = constants.Get()
	cfg    *config

	stdout io.Writer
	stderr io.Writer

	startTime                = time.Now()
	mainStarted, mainStopped bool
	stopChannel              chan os.Signal
	flagSet                  *flag.FlagSet
)

func fatal(args ...interface{}) int {
	fmt.Fprint(stderr, "Fatal: ", consts.ScanProgramName, ": ")
	fmt.Fprintln(stderr, args...)

	return 1
}

func fatalRuntime(args ...interface{}) int {
	fmt.Fprint(stderr, "Error: ", consts.ScanProgramName, ": ")
	fmt.Fprintln(stderr, args...)

	return 2
}

// mainInit resets everything such that mainExecute() can be called multiple times in one program
// execution, same rationale as cmd/trustydns-proxy's mainInit.
func mainInit(out io.Writer, err io.Writer) {
	cfg = &config{}
	stdout = out
	stderr = err
	mainStarted = false
	mainStopped = false
	stopChannel = make(chan os.Signal, 4)
	osutil.SignalNotify(stopChannel)
}

func main() {
	mainInit(os.Stdout, os.Stderr)
	os.Exit(mainExecute(os.Args))
}

func mainExecute(args []string) int {
	flagSet = flag.NewFlagSet(args[0], flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	if err := parseCommandLine(args); err != nil {
		return 1 // Error already printed by the flag package
	}
	if cfg.help {
		usage(stdout)
		return 0
	}
	if cfg.version {
		fmt.Fprintln(stdout, consts.ScanProgramName, "Version:", consts.Version)
		return 0
	}

	if cfg.gops {
		if err := agent.Listen(agent.Options{}); err != nil {
			return fatal(err)
		}
	}

	orchCfg, err := buildOrchestratorConfig()
	if err != nil {
		return fatal(err)
	}

	if len(cfg.cpuprofile) > 0 {
		f, err := os.Create(cfg.cpuprofile)
		if err != nil {
			return fatal(err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fatal(err)
		}
		defer pprof.StopCPUProfile()
	}

	var memProfileFile *os.File
	if len(cfg.memprofile) > 0 {
		memProfileFile, err = os.Create(cfg.memprofile)
		if err != nil {
			return fatal(err)
		}
		defer memProfileFile.Close()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type runOutcome struct {
		result *orchestrator.Result
		err    error
	}
	done := make(chan runOutcome, 1)

	mainStarted = true
	go func() {
		result, err := orchestrator.Run(ctx, stdout, orchCfg)
		done <- runOutcome{result: result, err: err}
	}()

	interrupted := false

Running:
	for {
		select {
		case s := <-stopChannel:
			if osutil.IsSignalUSR1(s) {
				fmt.Fprintln(stdout, "Status: pipeline running, uptime", uptime())
				continue Running
			}
			fmt.Fprintln(stdout, "\nSignal", s, "- cancelling run")
			interrupted = true
			cancel()

		case outcome := <-done:
			mainStopped = true
			if memProfileFile != nil {
				runtime.GC()
				if err := pprof.WriteHeapProfile(memProfileFile); err != nil {
					return fatalRuntime(err)
				}
			}

			if interrupted {
				fmt.Fprintln(stdout, consts.ScanProgramName, "interrupted after", uptime())
				return 130
			}
			if outcome.err != nil {
				return fatalRuntime(outcome.err)
			}

			printSummary(outcome.result)

			return 0
		}
	}
}

func uptime() string {
	return time.Since(startTime).Truncate(time.Second).String()
}

// buildOrchestratorConfig translates the flat flag-bound config into orchestrator.Config,
// validating the mutually-exclusive and enumerated options along the way.
func buildOrchestratorConfig() (orchestrator.Config, error) {
	var oc orchestrator.Config

	oc.FindClean = cfg.findClean
	oc.Workers = cfg.workers
	oc.SpeedWorkers = cfg.speedWorkers
	oc.Timeout = cfg.timeout
	oc.SpeedTimeout = cfg.speedTimeout
	oc.SkipDownload = cfg.skipDownload
	oc.TopN = cfg.topN
	oc.OutputDir = cfg.outputDir
	oc.OutputConfigs = cfg.outputConfigs
	oc.StatusEvery = cfg.statusInterval
	oc.ResolvConf = cfg.resolvConf

	if cfg.findClean {
		mode := sweep.SamplingMode(strings.ToLower(cfg.cleanMode))
		switch mode {
		case sweep.ModeQuick, sweep.ModeNormal, sweep.ModeFull, sweep.ModeMega:
		default:
			return oc, fmt.Errorf("--clean-mode %q: must be quick, normal, full, or mega", cfg.cleanMode)
		}
		oc.CleanMode = mode

		if mode == sweep.ModeFull || mode == sweep.ModeMega {
			if _, err := osutil.RaiseFileLimit(65536); err != nil {
				fmt.Fprintln(stderr, "Warning:", consts.ScanProgramName, "could not raise the open-file limit:", err)
			}
		}

		if cfg.subnets.NArg() > 0 {
			var subnets []netip.Prefix
			for _, raw := range cfg.subnets.Args() {
				parsed, err := parseSubnetsFlag(raw)
				if err != nil {
					return oc, err
				}
				subnets = append(subnets, parsed...)
			}
			oc.Subnets = subnets
		}

		return oc, nil
	}

	if cfg.inputFile == "" && cfg.subscriptionURL == "" {
		return oc, fmt.Errorf("one of -i/--input or --sub is required (or use --find-clean)")
	}
	oc.Source = inputload.Source{
		Path:            cfg.inputFile,
		SubscriptionURL: cfg.subscriptionURL,
		Template:        cfg.template,
	}

	if cfg.roundsOverride != "" {
		rounds, err := orchestrator.ParseRoundsOverride(cfg.roundsOverride)
		if err != nil {
			return oc, err
		}
		oc.Rounds = rounds
	} else {
		rounds, err := orchestrator.RoundsForMode(cfg.mode)
		if err != nil {
			return oc, err
		}
		oc.Rounds = rounds
	}

	return oc, nil
}

// parseSubnetsFlag implements --subnets FILE|"CIDR,..." (spec §6): if raw names a readable
// file, its newline-separated CIDRs are used, otherwise raw is split on commas.
func parseSubnetsFlag(raw string) ([]netip.Prefix, error) {
	if data, err := os.ReadFile(raw); err == nil {
		return sweep.ParseSubnets(strings.Split(string(data), "\n"))
	}

	return sweep.ParseSubnets(strings.Split(raw, ","))
}

func printSummary(r *orchestrator.Result) {
	if r == nil {
		return
	}
	fmt.Fprintln(stdout, consts.ScanProgramName, consts.Version, "finished after", uptime())
	if r.CleanIPsPath != "" {
		fmt.Fprintf(stdout, "Alive: %d/%d  Clean IPs: %s\n", r.AliveCount, r.TotalCount, r.CleanIPsPath)
		return
	}
	fmt.Fprintf(stdout, "Input: %d configs loaded (%d malformed, %d duplicate)\n",
		r.LoadStats.LoadedConfigs, r.LoadStats.MalformedLines, r.LoadStats.DuplicateLines)
	fmt.Fprintf(stdout, "Groups: %d unique endpoints (%d resolve failures)\n",
		r.GroupStats.UniqueEndpoints, r.GroupStats.ResolveFailures)
	fmt.Fprintf(stdout, "Ranked: %d alive endpoints\n", r.AliveCount)
	fmt.Fprintln(stdout, "Results CSV:", r.ResultsCSVPath)
	if r.Top50Path != "" {
		fmt.Fprintln(stdout, "Top-N URIs:", r.Top50Path)
	}
	if r.FullSortedPath != "" {
		fmt.Fprintln(stdout, "Full sorted URIs:", r.FullSortedPath)
	}
}
