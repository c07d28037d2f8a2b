/*
Package speed implements the Progressive Speed-Ranking Engine: a funnel of download rounds with
growing file sizes and shrinking candidate counts, each round scored by the composite in score.go
and the survivors carried into the next round.
*/
package speed

import (
	"context"
	"sort"

	"github.com/markdingo/cdnedge/internal/latency"
)

const me = "speed"

// Round specifies one funnel iteration: download Size bytes from up to Cap candidates.
type Round struct {
	Size int64
	Cap  int
}

// Preset round tables, spec §4.5.
var (
	QuickRounds = []Round{
		{Size: 1 << 20, Cap: 0},      // 1 MB, all
		{Size: 5 << 20, Cap: 0},      // 5 MB, all
	}
	NormalRounds = []Round{
		{Size: 1 << 20, Cap: 0},   // 1 MB, all
		{Size: 5 << 20, Cap: 50},  // 5 MB, 50
		{Size: 20 << 20, Cap: 20}, // 20 MB, 20
	}
	ThoroughRounds = []Round{
		{Size: 5 << 20, Cap: 0},   // 5 MB, all
		{Size: 25 << 20, Cap: 20}, // 25 MB, 20
		{Size: 50 << 20, Cap: 10}, // 50 MB, 10
	}
)

// smallSetThreshold is the spec §4.5 "small-set rule" cutoff: below this many alive endpoints,
// every round tests the full set regardless of Cap.
const smallSetThreshold = 50

// Candidate is one endpoint entering the funnel, carrying the latency-round measurement that
// feeds the composite score alongside each round's throughput/TTFB.
type Candidate struct {
	Endpoint  latency.Endpoint
	LatencyMs float64
	SNI       string
}

// SpeedSample is one endpoint's result from one round (spec §3).
type SpeedSample struct {
	Endpoint       latency.Endpoint
	RoundID        int
	BytesRequested int64
	BytesReceived  int64
	TTFBMs         float64
	ElapsedMs      float64
	ThroughputMbps float64
	LatencyMs      float64
	HTTPStatus     int
	Via            string
	ErrorKind      string
	Alive          bool
}

// FunnelResult is one endpoint's final composite after the funnel completes: the sample from the
// deepest round it reached (spec §4.5 "Final composite").
type FunnelResult struct {
	Sample SpeedSample
	Score  float64
}

// RunFunnel drives candidates through rounds in order, scoring each round and keeping only the
// top Cap survivors (or the full set if the small-set rule applies) for the next round. Each
// endpoint's FunnelResult reflects the deepest round it reached; endpoints that never completed a
// download are excluded entirely, per spec §4.5.
func RunFunnel(ctx context.Context, p *Prober, candidates []Candidate, rounds []Round, opts Options) []FunnelResult {
	deepest := make(map[latency.Endpoint]SpeedSample)
	live := candidates

	for i, round := range rounds {
		if len(live) == 0 {
			break
		}

		effective := round
		if len(live) < smallSetThreshold {
			effective.Cap = 0 // Small-set rule: Cap ignored, test everyone
		}

		samples := p.RunRound(ctx, live, effective, i, opts)

		for _, s := range samples {
			if s.Alive {
				deepest[s.Endpoint] = s // Deepest round always overwrites a shallower one
			}
		}

		survivors := rankAndTrim(samples, effective.Cap)
		live = narrowTo(live, survivors)
	}

	out := make([]FunnelResult, 0, len(deepest))
	for _, s := range deepest {
		out = append(out, FunnelResult{Sample: s})
	}

	// Score each survivor against the final candidate set it belongs to (its own deepest round).
	for i := range out {
		set := sampleSetFor(deepest, out[i].Sample.RoundID)
		out[i].Score = Score(out[i].Sample, set)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Sample.LatencyMs != b.Sample.LatencyMs {
			return a.Sample.LatencyMs < b.Sample.LatencyMs
		}

		return a.Sample.Endpoint.IP.String() < b.Sample.Endpoint.IP.String()
	})

	return out
}

// rankAndTrim sorts samples by composite Score (computed over this round's samples only, per
// spec §4.5 "Ranking between rounds") and keeps the top cap. cap==0 means keep everyone alive.
func rankAndTrim(samples []SpeedSample, cap int) []SpeedSample {
	alive := make([]SpeedSample, 0, len(samples))
	for _, s := range samples {
		if s.Alive {
			alive = append(alive, s)
		}
	}

	sort.SliceStable(alive, func(i, j int) bool {
		si, sj := Score(alive[i], alive), Score(alive[j], alive)
		if si != sj {
			return si > sj
		}
		if alive[i].LatencyMs != alive[j].LatencyMs {
			return alive[i].LatencyMs < alive[j].LatencyMs
		}

		return alive[i].Endpoint.IP.String() < alive[j].Endpoint.IP.String()
	})

	if cap <= 0 || cap >= len(alive) {
		return alive
	}

	return alive[:cap]
}

func narrowTo(candidates []Candidate, survivors []SpeedSample) []Candidate {
	keep := make(map[latency.Endpoint]bool, len(survivors))
	for _, s := range survivors {
		keep[s.Endpoint] = true
	}

	out := make([]Candidate, 0, len(survivors))
	for _, c := range candidates {
		if keep[c.Endpoint] {
			out = append(out, c)
		}
	}

	return out
}

// sampleSetFor collects every deepest-round sample that reached the same round as roundID, the
// comparison set a sample's final Score should be normalized against.
func sampleSetFor(deepest map[latency.Endpoint]SpeedSample, roundID int) []SpeedSample {
	var set []SpeedSample
	for _, s := range deepest {
		if s.RoundID == roundID {
			set = append(set, s)
		}
	}

	return set
}
