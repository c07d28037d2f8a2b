package orchestrator

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/markdingo/cdnedge/internal/reporter"
)

// nextInterval calculates the duration to the next modulo interval, same as
// cmd/trustydns-proxy/main.go's helper of the same name: if now is 00:01:17 and interval is 30s,
// the next tick lands on 00:01:30.
func nextInterval(now time.Time, interval time.Duration) time.Duration {
	return now.Truncate(interval).Add(interval).Sub(now)
}

// statusReport prints every reporter's current stats, grounded on trustydns-proxy's
// statusReport() of the same shape.
func statusReport(out io.Writer, startTime time.Time, what string, resetCounters bool, reporters []reporter.Reporter) {
	fmt.Fprintln(out, "Status Up:", time.Since(startTime).Truncate(time.Second))
	for _, r := range reporters {
		for _, line := range strings.Split(r.Report(resetCounters), "\n") {
			if len(line) > 0 {
				fmt.Fprintf(out, "%s %s: %s\n", what, r.Name(), line)
			}
		}
	}
}

// runStatusLoop emits a status report on every interval tick until done fires, then returns. Each
// phase (sweep, latency, speed) runs this alongside its own blocking call so long-running passes
// still produce periodic progress output, the same pattern trustydns-proxy uses for its
// long-running server loop - here bounded to the lifetime of one phase instead of the whole
// process.
func runStatusLoop(out io.Writer, startTime time.Time, interval time.Duration, reporters []reporter.Reporter, done <-chan struct{}) {
	if interval <= 0 {
		<-done
		return
	}

	next := nextInterval(time.Now(), interval)
	for {
		select {
		case <-done:
			return
		case <-time.After(next):
			statusReport(out, startTime, "Status", true, reporters)
			next = nextInterval(time.Now(), interval)
		}
	}
}
