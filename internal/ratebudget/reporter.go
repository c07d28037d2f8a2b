package ratebudget

import "fmt"

// Name implements reporter.Reporter.
func (a *Accountant) Name() string {
	return me
}

// Report implements reporter.Reporter. resetCounters has no effect - the rolling window prunes
// itself continuously and there are no cumulative counters to zero.
func (a *Accountant) Report(resetCounters bool) string {
	a.mu.Lock()
	used := len(a.timestamps)
	best, _ := a.manager.Best()
	route := best.Name()
	paused := a.pausedUntil
	a.mu.Unlock()

	if !paused.IsZero() {
		return fmt.Sprintf("used=%d/%d route=%s pausedUntil=%s", used, a.capacity, route, paused.Format("15:04:05"))
	}

	return fmt.Sprintf("used=%d/%d route=%s", used, a.capacity, route)
}
