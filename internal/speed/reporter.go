package speed

import "fmt"

// Name implements reporter.Reporter.
func (p *Prober) Name() string {
	return p.name
}

// Report implements reporter.Reporter.
func (p *Prober) Report(resetCounters bool) string {
	p.mu.Lock()
	requested, completed := p.requested, p.completed
	if resetCounters {
		p.requested, p.completed = 0, 0
	}
	p.mu.Unlock()

	connLine := ""
	if p.conns != nil {
		connLine = " " + p.conns.Report(resetCounters)
	}

	return fmt.Sprintf("requested=%d completed=%d peakConcurrency=%d%s",
		requested, completed, p.concurrency.Peak(resetCounters), connLine)
}
