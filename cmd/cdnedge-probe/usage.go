package main

import (
	"fmt"
	"io"
	"text/template"
	"time"
)

// The "flag" package is not tty aware so we've arbitrarily picked 100 columns as a conservative
// tty width for the usage output, same as cmd/cdnedge.

const usageMessageTemplate = `
NAME
          {{.ProbeProgramName}} -- one-shot edge-IP connectivity check

SYNOPSIS
          {{.ProbeProgramName}} [options] proxy-URI|ip[:port]

DESCRIPTION
          {{.ProbeProgramName}} dials a single candidate edge IP, completes a TLS handshake
          announcing its SNI, and prints the TCP-connect and handshake timings. It accepts
          either a raw ip[:port] or a full proxy URI, in which case the URI's host is resolved
          and its SNI (or, if empty, its host) is announced in the handshake. Other URI fields
          such as the path play no part in the probe.

          --replace-ip and --replace-port let you keep a proxy URI's template (SNI, path,
          transport) while dialing a different candidate IP; the printed uri: line is the
          template with the dialed IP and port substituted.

          **********
          Production Use Alert: {{.ProbeProgramName}} is a diagnostic program; its output format
          may change between releases.
          **********

OPTIONS
          [--replace-ip ip] [--replace-port port] [--sni name] [--timeout duration, e.g. 10s]
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
// arguments. It starts from scratch each time to make it easier for test wrappers to use.
func parseCommandLine(args []string) error {
	flagSet.BoolVar(&cfg.help, "h", false, "Print usage message to Stdout then exit(0)")
	flagSet.BoolVar(&cfg.help, "help", false, "Print usage message to Stdout then exit(0)")
	flagSet.BoolVar(&cfg.version, "version", false, "Print version and exit")

	flagSet.StringVar(&cfg.replaceIP, "replace-ip", "", "Dial this `ip` instead of the URI's resolved host")
	flagSet.IntVar(&cfg.replacePort, "replace-port", 0, "Dial this `port` instead of the URI's/default port")
	flagSet.StringVar(&cfg.sni, "sni", "", "Override the TLS `name` announced in the handshake")
	flagSet.DurationVar(&cfg.timeout, "timeout", time.Second*10, "Dial and handshake `timeout`")

	return flagSet.Parse(args[1:])
}
