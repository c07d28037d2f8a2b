package orchestrator

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/markdingo/cdnedge/internal/speed"
)

// RoundsForMode maps a measure mode name to its preset round table (spec §4.5).
func RoundsForMode(mode string) ([]speed.Round, error) {
	switch strings.ToLower(mode) {
	case "", "normal":
		return speed.NormalRounds, nil
	case "quick":
		return speed.QuickRounds, nil
	case "thorough":
		return speed.ThoroughRounds, nil
	default:
		return nil, fmt.Errorf("%s:RoundsForMode: unknown mode %q", me, mode)
	}
}

// ParseRoundsOverride parses a `--rounds "S:K,S:K,…"` flag value, where S is a byte size (bare
// bytes, or suffixed with k/m/g, case-insensitive) and K is a candidate cap (0 meaning "all").
func ParseRoundsOverride(spec string) ([]speed.Round, error) {
	if spec == "" {
		return nil, nil
	}

	var rounds []speed.Round
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.SplitN(part, ":", 2)
		if len(fields) != 2 {
			return nil, fmt.Errorf("%s:ParseRoundsOverride: malformed round %q, want S:K", me, part)
		}

		size, err := parseByteSize(fields[0])
		if err != nil {
			return nil, fmt.Errorf("%s:ParseRoundsOverride: %w", me, err)
		}
		cap, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("%s:ParseRoundsOverride: bad cap in %q: %w", me, part, err)
		}

		rounds = append(rounds, speed.Round{Size: size, Cap: cap})
	}

	if len(rounds) == 0 {
		return nil, fmt.Errorf("%s:ParseRoundsOverride: %q produced no rounds", me, spec)
	}

	return rounds, nil
}

func parseByteSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	mult := int64(1)
	lower := strings.ToLower(s)
	switch {
	case strings.HasSuffix(lower, "g"):
		mult = 1 << 30
		s = s[:len(s)-1]
	case strings.HasSuffix(lower, "m"):
		mult = 1 << 20
		s = s[:len(s)-1]
	case strings.HasSuffix(lower, "k"):
		mult = 1 << 10
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bad byte size %q: %w", s, err)
	}

	return n * mult, nil
}
