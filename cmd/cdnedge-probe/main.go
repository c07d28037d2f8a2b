// dial a single candidate edge IP and report its TCP/TLS timings
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/markdingo/cdnedge/internal/constants"
	"github.com/markdingo/cdnedge/internal/dnsutil"
	"github.com/markdingo/cdnedge/internal/latency"
	"github.com/markdingo/cdnedge/internal/uricodec"
)

// Program-wide variables, same shape as cmd/trustydns-dig's.
var (
	consts = constants.Get()
	cfg    *config

	stdout io.Writer
	stderr io.Writer

	flagSet *flag.FlagSet
)

func fatal(args ...interface{}) int {
	fmt.Fprint(stderr, "Fatal: ", consts.ProbeProgramName, ": ")
	fmt.Fprintln(stderr, args...)

	return 1
}

func mainInit(out io.Writer, err io.Writer) {
	cfg = &config{}
	stdout = out
	stderr = err
}

func main() {
	mainInit(os.Stdout, os.Stderr)
	os.Exit(mainExecute(os.Args))
}

func mainExecute(args []string) int {
	flagSet = flag.NewFlagSet(args[0], flag.ContinueOnError)
	flagSet.SetOutput(stderr)
	if err := parseCommandLine(args); err != nil {
		return 1
	}
	if cfg.help {
		usage(stdout)
		return 0
	}
	if cfg.version {
		fmt.Fprintln(stdout, consts.ProbeProgramName, "Version:", consts.Version)
		return 0
	}

	if flagSet.NArg() != 1 {
		return fatal("Require exactly one proxy-URI or ip[:port] argument. Consider -h")
	}
	target := flagSet.Arg(0)

	ep, proxyCfg, err := resolveTarget(target)
	if err != nil {
		return fatal(err)
	}

	if cfg.replaceIP != "" {
		addr, err := netip.ParseAddr(cfg.replaceIP)
		if err != nil {
			return fatal("--replace-ip", err)
		}
		ep.IP = addr
	}
	if cfg.replacePort != 0 {
		ep.Port = uint16(cfg.replacePort)
	}

	sni := cfg.sni
	if sni == "" && proxyCfg != nil {
		if proxyCfg.SNI != "" {
			sni = proxyCfg.SNI
		} else {
			sni = proxyCfg.Host
		}
	}

	engine := latency.New("probe")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	results := engine.Run(ctx, []latency.Endpoint{ep}, latency.Options{
		Workers: 1,
		Timeout: cfg.timeout,
		SNI:     func(latency.Endpoint) string { return sni },
	})
	if len(results) != 1 {
		return fatal("probe produced no result")
	}
	r := results[0]

	fmt.Fprintf(stdout, "endpoint: %s:%d\n", r.Endpoint.IP, r.Endpoint.Port)
	fmt.Fprintf(stdout, "sni: %s\n", sni)
	if !r.Alive {
		fmt.Fprintf(stdout, "alive: false (%v)\n", r.Err)
		return 0
	}
	fmt.Fprintf(stdout, "alive: true  tcp_ms: %.3f  tls_ms: %.3f\n", r.TCPMs, r.TLSMs)

	if proxyCfg != nil {
		substituted := *proxyCfg
		substituted.Host = ep.IP.String()
		substituted.Port = ep.Port
		if uri, err := uricodec.Emit(&substituted); err == nil {
			fmt.Fprintln(stdout, "uri:", uri)
		}
	}

	return 0
}

// resolveTarget accepts either a raw ip[:port] or a proxy URI and returns the Endpoint to probe
// alongside the parsed ProxyConfig, if any (nil for a raw ip[:port]).
func resolveTarget(target string) (latency.Endpoint, *uricodec.ProxyConfig, error) {
	if pc, err := uricodec.Parse(target); err == nil {
		ep, err := resolveHostPort(pc.Host, pc.Port)

		return ep, pc, err
	}

	host, portStr, err := splitHostPort(target)
	if err != nil {
		return latency.Endpoint{}, nil, err
	}

	port := uint16(0)
	if portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return latency.Endpoint{}, nil, fmt.Errorf("bad port %q: %w", portStr, err)
		}
		port = uint16(p)
	}
	ep, err := resolveHostPort(host, port)

	return ep, nil, err
}

func splitHostPort(target string) (string, string, error) {
	idx := strings.LastIndex(target, ":")
	if idx < 0 {
		return target, "", nil
	}

	return target[:idx], target[idx+1:], nil
}

func resolveHostPort(host string, port uint16) (latency.Endpoint, error) {
	if port == 0 {
		def, _ := strconv.Atoi(consts.HTTPSDefaultPort)
		port = uint16(def)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		return latency.Endpoint{IP: addr, Port: port}, nil
	}

	resolver := dnsutil.NewResolver("")
	ips, err := resolver.ResolveA(context.Background(), host)
	if err != nil {
		return latency.Endpoint{}, fmt.Errorf("resolving %s: %w", host, err)
	}
	if len(ips) == 0 {
		return latency.Endpoint{}, fmt.Errorf("%s did not resolve to any address", host)
	}
	addr, ok := netip.AddrFromSlice(ips[0].To4())
	if !ok {
		return latency.Endpoint{}, fmt.Errorf("%s resolved to a non-IPv4 address", host)
	}

	return latency.Endpoint{IP: addr, Port: port}, nil
}
