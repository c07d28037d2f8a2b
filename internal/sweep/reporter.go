package sweep

import "fmt"

// Name implements reporter.Reporter.
func (e *Engine) Name() string {
	return e.name
}

// Report implements reporter.Reporter, summarizing probes issued so far and, optionally,
// resetting the connection tracker's counters.
func (e *Engine) Report(resetCounters bool) string {
	e.mu.Lock()
	probed, alive, verified := e.probed, e.alive, e.verified
	e.mu.Unlock()

	connLine := ""
	if e.conns != nil {
		connLine = " " + e.conns.Report(resetCounters)
	}

	return fmt.Sprintf("probed=%d alive=%d verified=%d peakConcurrency=%d%s",
		probed, alive, verified, e.concurrency.Peak(resetCounters), connLine)
}
