/*
Package orchestrator wires the Sweep, Latency, Speed, and Exporter packages into the two
pipelines spec.md describes: a clean-IP sweep (`Subnets → sample → probe → verify → sorted IP
list`) and the full measure pipeline (`Input → URI parse → DNS → groups → Latency → Speed →
Score → Export`). Each engine runs to completion before the next starts (spec §5 "the
orchestrator joins one engine fully before starting the next").
*/
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/netip"
	"sort"
	"time"

	"github.com/markdingo/cdnedge/internal/constants"
	"github.com/markdingo/cdnedge/internal/dnsutil"
	"github.com/markdingo/cdnedge/internal/export"
	"github.com/markdingo/cdnedge/internal/inputload"
	"github.com/markdingo/cdnedge/internal/latency"
	"github.com/markdingo/cdnedge/internal/ratebudget"
	"github.com/markdingo/cdnedge/internal/reporter"
	"github.com/markdingo/cdnedge/internal/speed"
	"github.com/markdingo/cdnedge/internal/sweep"
	"github.com/markdingo/cdnedge/internal/uricodec"
)

const me = "orchestrator"

// Config captures every orchestrator-level pipeline parameter. cmd/cdnedge's flag parsing builds
// one of these; the orchestrator has no knowledge of flags.
type Config struct {
	// Clean-IP sweep pipeline (--find-clean)
	FindClean bool
	CleanMode sweep.SamplingMode
	Subnets   []netip.Prefix
	SweepSNI  string

	// Shared with the measure pipeline
	Source inputload.Source

	Workers       int
	SpeedWorkers  int
	Timeout       time.Duration
	SpeedTimeout  time.Duration
	SkipDownload  bool
	Rounds        []speed.Round
	TopN          int
	OutputDir     string
	OutputConfigs string // --output-configs: optional extra copy of the full-sorted URI list
	StatusEvery   time.Duration
	ResolvConf    string
}

// Result is everything the CLI needs after a pipeline run to print a summary and locate the
// written artifacts.
type Result struct {
	LoadStats  inputload.LoadStats
	GroupStats latency.GroupStats

	ResultsCSVPath    string
	Top50Path         string
	FullSortedPath    string
	CleanIPsPath      string

	AliveCount int
	TotalCount int
}

// Run dispatches to the clean-IP sweep pipeline or the full measure pipeline depending on
// cfg.FindClean.
func Run(ctx context.Context, out io.Writer, cfg Config) (*Result, error) {
	if cfg.FindClean {
		return runSweep(ctx, out, cfg)
	}

	return runMeasure(ctx, out, cfg)
}

func runSweep(ctx context.Context, out io.Writer, cfg Config) (*Result, error) {
	consts := constants.Get()
	sni := cfg.SweepSNI
	if sni == "" {
		sni = consts.SpeedTestHost
	}

	subnets := cfg.Subnets
	if len(subnets) == 0 {
		subnets = sweep.DefaultSubnets()
	}

	engine := sweep.New("sweep")
	startTime := time.Now()
	done := make(chan struct{})
	go runStatusLoop(out, startTime, cfg.StatusEvery, []reporter.Reporter{engine}, done)

	results := engine.Run(ctx, sweep.Options{
		Subnets: subnets,
		Mode:    cfg.CleanMode,
		SNI:     sni,
		Workers: cfg.Workers,
		Timeout: cfg.Timeout,
	})
	close(done)
	statusReport(out, startTime, "Final", false, []reporter.Reporter{engine})

	ipPorts, alive := filterCleanIPs(results, cfg.CleanMode)

	path, err := export.WriteCleanIPs(cfg.OutputDir, time.Now(), ipPorts)
	if err != nil {
		return nil, fmt.Errorf("%s:runSweep: %w", me, err)
	}

	return &Result{CleanIPsPath: path, AliveCount: alive, TotalCount: len(results)}, nil
}

// filterCleanIPs selects the endpoints eligible for clean_ips.txt. A "Clean IP" (Glossary)
// requires a successful TLS handshake in every mode, plus CDN-header verification in every mode
// except quick (spec §4.3's sampling table - quick has no verify step). It also returns the raw
// alive count (handshake success only) used for the summary printout.
func filterCleanIPs(results []sweep.Result, mode sweep.SamplingMode) ([]string, int) {
	var ipPorts []string
	alive := 0
	for _, r := range results {
		if !r.Alive {
			continue
		}
		alive++
		if mode.Verifies() && !r.Verified {
			continue
		}
		ipPorts = append(ipPorts, r.Endpoint.String())
	}

	return ipPorts, alive
}

func runMeasure(ctx context.Context, out io.Writer, cfg Config) (*Result, error) {
	consts := constants.Get()

	configs, cleanIPs, loadStats, err := inputload.Load(ctx, cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("%s:runMeasure: %w", me, err)
	}

	resolver := dnsutil.NewResolver(cfg.ResolvConf)
	defaultPort, _ := parseDefaultPort(consts.HTTPSDefaultPort)
	groupMap, groupStats := latency.BuildGroups(ctx, configs, resolver, defaultPort)
	addBareEndpoints(groupMap, cleanIPs, defaultPort)

	latencyEngine := latency.New("latency")
	startTime := time.Now()
	done := make(chan struct{})
	go runStatusLoop(out, startTime, cfg.StatusEvery, []reporter.Reporter{latencyEngine}, done)

	latResults := latencyEngine.Run(ctx, groupMap.Endpoints(), latency.Options{
		Workers: cfg.Workers,
		Timeout: cfg.Timeout,
		SNI: func(ep latency.Endpoint) string {
			grp := groupMap.Get(ep)
			if grp == nil || len(grp.Configs) == 0 {
				return ep.IP.String()
			}
			if grp.Configs[0].SNI != "" {
				return grp.Configs[0].SNI
			}

			return grp.Configs[0].Host
		},
	})
	close(done)
	statusReport(out, startTime, "Final", false, []reporter.Reporter{latencyEngine})

	result := &Result{LoadStats: loadStats, GroupStats: groupStats}

	if cfg.SkipDownload {
		return finishSkipDownload(cfg, result, groupMap, latResults)
	}

	return finishWithSpeed(ctx, out, cfg, result, groupMap, latResults)
}

func finishSkipDownload(cfg Config, result *Result, groupMap *latency.GroupMap, latResults []latency.Result) (*Result, error) {
	var records []export.Record
	var entries []export.URIEntry

	sort.SliceStable(latResults, func(i, j int) bool { return latResults[i].TLSMs < latResults[j].TLSMs })
	for _, r := range latResults {
		if !r.Alive {
			continue
		}
		grp := groupMap.Get(r.Endpoint)
		if grp == nil {
			continue
		}

		records = append(records, export.Record{
			IP: r.Endpoint.IP.String(), Port: r.Endpoint.Port,
			LatencyMs: r.TLSMs, Alive: true,
			NDomains: len(grp.Domains), NConfigs: len(grp.Configs),
		})

		if len(grp.Configs) > 0 {
			if uri, err := uricodec.Emit(grp.Configs[0]); err == nil {
				entries = append(entries, export.URIEntry{URI: uri})
			}
		}
	}

	sort.SliceStable(records, func(i, j int) bool { return records[i].LatencyMs < records[j].LatencyMs })

	return writeExports(cfg, result, records, entries)
}

func finishWithSpeed(ctx context.Context, out io.Writer, cfg Config, result *Result, groupMap *latency.GroupMap, latResults []latency.Result) (*Result, error) {
	consts := constants.Get()

	var candidates []speed.Candidate
	for _, r := range latResults {
		if !r.Alive {
			continue
		}
		grp := groupMap.Get(r.Endpoint)
		sni := r.Endpoint.IP.String()
		if grp != nil && len(grp.Configs) > 0 {
			if grp.Configs[0].SNI != "" {
				sni = grp.Configs[0].SNI
			} else {
				sni = grp.Configs[0].Host
			}
		}
		candidates = append(candidates, speed.Candidate{Endpoint: r.Endpoint, LatencyMs: r.TLSMs, SNI: sni})
	}

	rounds := cfg.Rounds
	if len(rounds) == 0 {
		rounds = speed.NormalRounds
	}

	accountant := ratebudget.New(consts.RateBudgetWindow, consts.RateBudgetCapacity)
	prober := speed.New("speed")

	opts := speed.Options{
		Workers:            cfg.SpeedWorkers,
		Timeout:            cfg.SpeedTimeout,
		DirectHost:         consts.SpeedTestHost,
		DirectPath:         consts.SpeedTestPath,
		MirrorHost:         consts.MirrorSpeedTestHost,
		MirrorPath:         consts.MirrorSpeedTestPath,
		Admit:              accountant.Admit,
		ReportRateLimit:    accountant.Report429,
		Route:              accountant.Route,
		ReportMirrorResult: accountant.ReportMirrorResult,
	}

	startTime := time.Now()
	done := make(chan struct{})
	go runStatusLoop(out, startTime, cfg.StatusEvery, []reporter.Reporter{prober, accountant}, done)

	funnelResults := speed.RunFunnel(ctx, prober, candidates, rounds, opts)

	close(done)
	statusReport(out, startTime, "Final", false, []reporter.Reporter{prober, accountant})

	var records []export.Record
	var entries []export.URIEntry

	for _, fr := range funnelResults {
		grp := groupMap.Get(fr.Sample.Endpoint)
		nDomains, nConfigs := 0, 0
		var uri string
		if grp != nil {
			nDomains, nConfigs = len(grp.Domains), len(grp.Configs)
			if len(grp.Configs) > 0 {
				uri, _ = uricodec.Emit(grp.Configs[0])
			}
		}

		records = append(records, export.Record{
			IP: fr.Sample.Endpoint.IP.String(), Port: fr.Sample.Endpoint.Port,
			Score: fr.Score, ThroughputMbps: fr.Sample.ThroughputMbps,
			LatencyMs: fr.Sample.LatencyMs, TTFBMs: fr.Sample.TTFBMs,
			Alive: true, NDomains: nDomains, NConfigs: nConfigs, Via: fr.Sample.Via,
		})
		if uri != "" {
			entries = append(entries, export.URIEntry{URI: uri, Score: fr.Score})
		}
	}

	return writeExports(cfg, result, records, entries)
}

func writeExports(cfg Config, result *Result, records []export.Record, entries []export.URIEntry) (*Result, error) {
	now := time.Now()

	csvPath, err := export.WriteResultsCSV(cfg.OutputDir, now, records)
	if err != nil {
		return nil, fmt.Errorf("%s:writeExports: %w", me, err)
	}
	result.ResultsCSVPath = csvPath

	if len(entries) > 0 {
		top50, err := export.WriteTopN(cfg.OutputDir, now, cfg.TopN, entries)
		if err != nil {
			return nil, fmt.Errorf("%s:writeExports: %w", me, err)
		}
		result.Top50Path = top50

		full, err := export.WriteFullSorted(cfg.OutputDir, now, entries)
		if err != nil {
			return nil, fmt.Errorf("%s:writeExports: %w", me, err)
		}
		result.FullSortedPath = full

		if cfg.OutputConfigs != "" {
			if err := export.WriteConfigsTo(cfg.OutputConfigs, entries); err != nil {
				return nil, fmt.Errorf("%s:writeExports: %w", me, err)
			}
		}
	}

	result.AliveCount = len(records)

	return result, nil
}

// addBareEndpoints registers shape-5 clean-IP-only candidates (spec §4.2) as config-less Groups
// so the Latency and Speed engines treat them uniformly with config-derived endpoints.
func addBareEndpoints(groupMap *latency.GroupMap, cleanIPs []string, defaultPort uint16) {
	for _, raw := range cleanIPs {
		host, portStr, err := net.SplitHostPort(raw)
		port := defaultPort
		if err != nil {
			host = raw
		} else if p, perr := parseDefaultPort(portStr); perr == nil {
			port = p
		}

		addr, err := netip.ParseAddr(host)
		if err != nil {
			continue
		}
		groupMap.AddBare(latency.Endpoint{IP: addr, Port: port})
	}
}

func parseDefaultPort(s string) (uint16, error) {
	var p uint16
	_, err := fmt.Sscanf(s, "%d", &p)

	return p, err
}
