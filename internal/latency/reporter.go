package latency

import "fmt"

// Name implements reporter.Reporter.
func (e *Engine) Name() string {
	return e.name
}

// Report implements reporter.Reporter.
func (e *Engine) Report(resetCounters bool) string {
	e.mu.Lock()
	tested, alive := e.tested, e.alive
	e.mu.Unlock()

	connLine := ""
	if e.conns != nil {
		connLine = " " + e.conns.Report(resetCounters)
	}

	return fmt.Sprintf("tested=%d alive=%d peakConcurrency=%d%s",
		tested, alive, e.concurrency.Peak(resetCounters), connLine)
}
