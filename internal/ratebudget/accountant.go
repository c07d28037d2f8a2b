/*
Package ratebudget implements the Rate-Limit Accountant: a fixed rolling-window admission budget
for direct requests to the CDN's speed-test endpoint, plus the mirror failover/failback state
machine that activates when the direct budget is exhausted or the endpoint starts 429'ing.
*/
package ratebudget

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/markdingo/cdnedge/internal/bestserver"
)

const me = "ratebudget"

// consecutive429Window is the spec §4.6 failover trigger: two 429s inside this window forces a
// failover even if no Retry-After has been parsed yet.
const consecutive429Window = time.Second * 30

// mirrorSuccessesForFailback is the spec §4.6 failback condition's streak length.
const mirrorSuccessesForFailback = 3

// routeServer is the bestserver.Server implementation backing the Accountant's two routes.
// manager.Best() is the actual source of truth for Route(); the Accountant's own timers
// (pausedUntil, recent429, mirrorStreak) only decide *when* to force the Manager to move.
type routeServer struct{ name string }

func (r *routeServer) Name() string { return r.name }

// Accountant enforces the rolling-window budget and the direct/mirror route state machine.
type Accountant struct {
	windowLen time.Duration
	capacity  int

	mu          sync.Mutex
	timestamps  []time.Time // circular buffer of admitted direct request times
	pausedUntil time.Time
	recent429   []time.Time
	mirrorStreak int // consecutive successful mirror requests since entering failover

	manager      bestserver.Manager
	directServer bestserver.Server
	mirrorServer bestserver.Server
}

// New constructs an Accountant with the spec §4.6 defaults (capacity 550 over a 600s window).
func New(windowLen time.Duration, capacity int) *Accountant {
	direct := &routeServer{name: "direct"}
	mirror := &routeServer{name: "mirror"}
	manager, _ := bestserver.NewTraditional(bestserver.TraditionalConfig{}, []bestserver.Server{direct, mirror})

	return &Accountant{
		windowLen:    windowLen,
		capacity:     capacity,
		manager:      manager,
		directServer: direct,
		mirrorServer: mirror,
	}
}

// Admit blocks until a direct request may be initiated, or ctx is cancelled. Callers must not
// call Admit for mirror requests - the mirror has no budget tracked by this accountant.
func (a *Accountant) Admit(ctx context.Context) error {
	for {
		wait, ok := a.tryAdmit()
		if ok {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s:Admit: %w", me, ctx.Err())
		case <-timer.C:
		}
	}
}

// tryAdmit attempts to admit a direct request immediately. It returns (0, true) on success, or a
// duration the caller should wait before trying again.
func (a *Accountant) tryAdmit() (time.Duration, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	if now.Before(a.pausedUntil) {
		return a.pausedUntil.Sub(now), false
	}

	a.prune(now)
	if len(a.timestamps) >= a.capacity {
		oldest := a.timestamps[0]
		return oldest.Add(a.windowLen).Sub(now), false
	}

	a.timestamps = append(a.timestamps, now)

	return 0, true
}

// prune drops timestamps older than the rolling window. Must be called with mu held.
func (a *Accountant) prune(now time.Time) {
	cutoff := now.Add(-a.windowLen)
	i := 0
	for i < len(a.timestamps) && a.timestamps[i].Before(cutoff) {
		i++
	}
	a.timestamps = a.timestamps[i:]
}

// Report429 records a 429 response from a direct request (spec §4.6 "On 429" and "Failover").
func (a *Accountant) Report429(retryAfter time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	if retryAfter <= 0 {
		retryAfter = time.Minute
	}
	a.pausedUntil = now.Add(retryAfter)

	a.recent429 = append(a.recent429, now)
	cutoff := now.Add(-consecutive429Window)
	pruned := a.recent429[:0]
	for _, t := range a.recent429 {
		if t.After(cutoff) {
			pruned = append(pruned, t)
		}
	}
	a.recent429 = pruned

	if now.Before(a.pausedUntil) || len(a.recent429) >= 2 {
		a.enterFailover()
	}
}

// enterFailover must be called with mu held. It forces the Manager off direct and onto mirror by
// reporting direct as failed - Traditional only moves bestIndex off whichever Server is currently
// best, so this is a no-op if mirror is already best.
func (a *Accountant) enterFailover() {
	best, _ := a.manager.Best()
	if best == a.mirrorServer {
		return
	}
	a.mirrorStreak = 0
	a.manager.Result(a.directServer, false, time.Now(), 0)
}

// ReportMirrorResult feeds one mirror attempt's outcome into the failback streak (spec §4.6
// "Failback"). Individual mirror successes/failures are not reported to the Manager directly -
// Traditional's "move off current best on any failure" rule would otherwise bounce the route back
// to direct on the first transient mirror failure instead of waiting for the full streak.
func (a *Accountant) ReportMirrorResult(success bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !success {
		a.mirrorStreak = 0
		return
	}
	a.mirrorStreak++

	if a.mirrorStreak >= mirrorSuccessesForFailback && !time.Now().Before(a.pausedUntil) {
		a.manager.Result(a.mirrorServer, false, time.Now(), 0) // force Manager off mirror, back to direct
		a.mirrorStreak = 0
	}
}

// Route reports the current route: "direct" or "mirror".
func (a *Accountant) Route() string {
	a.mu.Lock()
	defer a.mu.Unlock()

	if time.Now().Before(a.pausedUntil) {
		return "mirror"
	}

	best, _ := a.manager.Best()

	return best.Name()
}

// PausedUntil reports the time direct requests resume, or the zero Time if not currently paused.
func (a *Accountant) PausedUntil() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.pausedUntil
}
