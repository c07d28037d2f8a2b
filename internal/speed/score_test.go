package speed

import "testing"

func TestScoreRankingMonotonicity(t *testing.T) {
	// Two endpoints with identical ttfb/latency, different throughput: higher throughput must
	// score strictly higher (spec §8 "Ranking monotonicity").
	a := SpeedSample{Alive: true, ThroughputMbps: 100, LatencyMs: 20, TTFBMs: 5}
	b := SpeedSample{Alive: true, ThroughputMbps: 50, LatencyMs: 20, TTFBMs: 5}
	set := []SpeedSample{a, b}

	if Score(a, set) <= Score(b, set) {
		t.Errorf("expected higher-throughput sample to score strictly higher: a=%v b=%v", Score(a, set), Score(b, set))
	}
}

func TestScoreDeadIsZero(t *testing.T) {
	dead := SpeedSample{Alive: false, ThroughputMbps: 1000}
	set := []SpeedSample{dead, {Alive: true, ThroughputMbps: 10}}
	if Score(dead, set) != 0 {
		t.Error("expected a dead sample to score exactly 0")
	}
}

func TestScoreSingleSampleNoDivideByZero(t *testing.T) {
	s := SpeedSample{Alive: true, ThroughputMbps: 42, LatencyMs: 10, TTFBMs: 2}
	got := Score(s, []SpeedSample{s})
	if got < 0 || got > 1 {
		t.Errorf("expected score in [0,1] for a degenerate single-sample set, got %v", got)
	}
}
