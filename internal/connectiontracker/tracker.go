/*
Package connectiontracker tracks outbound dial lifecycles for statistical purposes. It is a generic
package that applies to any connection-like thing identified by a string key, not just HTTP
connections - the key is typically "ip:port" for a TLS probe dial.

connectiontracker presents a reporter interface so its output can be periodically logged.

Typical usage is to create one tracker per worker pool (sweep, latency, speed) and call it at the
start and end of each dial:

	ct := connectiontracker.New("sweep")
	ct.ConnState(key, time.Now(), http.StateNew)
	... dial, handshake, probe ...
	ct.ConnState(key, time.Now(), http.StateClosed)

	... time passes and probes occur
	fmt.Println(ct.Report(true))

The http.ConnState enum is reused purely as a convenient state vocabulary (New, Active, Idle,
Hijacked, Closed) already familiar from net/http; no http.Server is involved.

The key can be anything so long as it is unique per-dial. Typically that's "ip:port" plus a
monotonic counter if the same endpoint can be dialed concurrently by the same pool.
*/
package connectiontracker

import (
	"net/http"
	"sync"
	"time"
)

type connection struct {
	connStart   time.Time
	activeStart time.Time
	activeFor   time.Duration
}

type errIx int

const (
	errNoConnInMap  errIx = iota // Connection not present for state change
	errDanglingConn              // New when already active
	errUnknownState              // We must be old relative to net/http
	errArSize
)

type trackerStats struct {
	peakConns int
	connFor   time.Duration // Total connection existence time (can easily be GT elapsed)
	activeFor time.Duration // Total connection active time
	errors    [errArSize]int
}

type Tracker struct {
	name string
	mu   sync.Mutex

	connMap map[string]*connection // Indexed by dial key
	trackerStats
}

// New constructs a tracker object - in particular the map used to track each connection key.
func New(name string) *Tracker {
	t := &Tracker{name: name}
	t.connMap = make(map[string]*connection)

	return t
}

// ConnState is called when a dial transitions to a new state. The key can be anything so long as it
// is unique per-dial.
//
// ConnState checks that the new state makes sense for the connection and if it does, the connection
// is updated and true is returned. If the new state doesn't make sense, the transition and internal
// state are reconciled and false is returned. Reconciliation favours the current state over the
// previous to avoid dangling connections.
//
// ConnState does not fastidiously check that all state transitions make sense, it merely checks
// those which need to be correct for it to perform its function. This is a statistics gathering
// function after all, not a logic validation monster.
func (t *Tracker) ConnState(key string, now time.Time, state http.ConnState) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	cs, ok := t.connMap[key]
	if state == http.StateNew { // All other states must have a pre-existing connection
		cs := &connection{}
		cs.connStart = now
		t.connMap[key] = cs
		if ok { // Dangling connection? Report it
			t.errors[errDanglingConn]++
		}
		cc := len(t.connMap)
		if cc > t.peakConns {
			t.peakConns = cc
		}
		return !ok
	}

	if !ok { // If it's not a pre-existing connection then record the error and exit
		t.errors[errNoConnInMap]++
		return false
	}

	switch state {
	case http.StateActive:
		cs.activeStart = now
		return true

	case http.StateIdle:
		if !cs.activeStart.IsZero() {
			cs.activeFor += now.Sub(cs.activeStart)
			cs.activeStart = time.Time{}
		}
		return true

	case http.StateHijacked, http.StateClosed:
		t.connFor += now.Sub(cs.connStart)
		if !cs.activeStart.IsZero() { // Capture last active period
			cs.activeFor += now.Sub(cs.activeStart)
		}
		t.activeFor += cs.activeFor
		delete(t.connMap, key)
		return true
	}

	t.errors[errUnknownState]++
	return false
}
