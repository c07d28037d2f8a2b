package speed

// Score computes the composite ranking value for one SpeedSample relative to the min/max spread
// of a candidate set (spec §3): 50% normalized throughput, 35% inverted normalized latency, 15%
// inverted normalized TTFB. norm is min-max over the current candidate set, clamped to [0,1]. A
// sample with Alive false always scores 0.
func Score(s SpeedSample, set []SpeedSample) float64 {
	if !s.Alive {
		return 0
	}

	tMin, tMax := minMaxThroughput(set)
	lMin, lMax := minMaxLatency(set)
	bMin, bMax := minMaxTTFB(set)

	return 0.50*norm(s.ThroughputMbps, tMin, tMax) +
		0.35*(1-norm(s.LatencyMs, lMin, lMax)) +
		0.15*(1-norm(s.TTFBMs, bMin, bMax))
}

// norm clamps (v-min)/(max-min) to [0,1]. When max==min every sample is identical on that
// dimension, so it contributes neither advantage nor penalty.
func norm(v, min, max float64) float64 {
	if max <= min {
		return 0.5
	}
	n := (v - min) / (max - min)
	if n < 0 {
		return 0
	}
	if n > 1 {
		return 1
	}

	return n
}

func minMaxThroughput(set []SpeedSample) (float64, float64) {
	min, max := 0.0, 0.0
	first := true
	for _, s := range set {
		if !s.Alive {
			continue
		}
		if first {
			min, max = s.ThroughputMbps, s.ThroughputMbps
			first = false
			continue
		}
		if s.ThroughputMbps < min {
			min = s.ThroughputMbps
		}
		if s.ThroughputMbps > max {
			max = s.ThroughputMbps
		}
	}

	return min, max
}

func minMaxLatency(set []SpeedSample) (float64, float64) {
	min, max := 0.0, 0.0
	first := true
	for _, s := range set {
		if !s.Alive {
			continue
		}
		if first {
			min, max = s.LatencyMs, s.LatencyMs
			first = false
			continue
		}
		if s.LatencyMs < min {
			min = s.LatencyMs
		}
		if s.LatencyMs > max {
			max = s.LatencyMs
		}
	}

	return min, max
}

func minMaxTTFB(set []SpeedSample) (float64, float64) {
	min, max := 0.0, 0.0
	first := true
	for _, s := range set {
		if !s.Alive {
			continue
		}
		if first {
			min, max = s.TTFBMs, s.TTFBMs
			first = false
			continue
		}
		if s.TTFBMs < min {
			min = s.TTFBMs
		}
		if s.TTFBMs > max {
			max = s.TTFBMs
		}
	}

	return min, max
}
