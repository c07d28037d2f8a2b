/*
Package export writes the run's final artifacts to results/: a CSV of every scored endpoint, the
top-N and full-sorted proxy URI lists, and the clean-IP list from the sweep engine. Every filename
is timestamped and opened with os.O_EXCL so a run never clobbers a previous one (spec §4.7).
*/
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const me = "export"

const timestampLayout = "20060102-150405"

// Record is one scored endpoint's CSV row (spec §4.7 `*_results.csv`).
type Record struct {
	IP             string
	Port           uint16
	Score          float64
	ThroughputMbps float64
	LatencyMs      float64
	TTFBMs         float64
	Alive          bool
	NDomains       int
	NConfigs       int
	Via            string
}

var csvHeader = []string{
	"ip", "port", "score", "throughput_mbps", "latency_ms", "ttfb_ms", "alive", "n_domains", "n_configs", "via",
}

// WriteResultsCSV writes one row per Record to dir/<timestamp>_results.csv.
func WriteResultsCSV(dir string, now time.Time, records []Record) (string, error) {
	f, path, err := create(dir, "", "results", "csv", now)
	if err != nil {
		return "", err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("%s:WriteResultsCSV: %w", me, err)
	}
	for _, r := range records {
		row := []string{
			r.IP,
			strconv.Itoa(int(r.Port)),
			strconv.FormatFloat(r.Score, 'f', 6, 64),
			strconv.FormatFloat(r.ThroughputMbps, 'f', 3, 64),
			strconv.FormatFloat(r.LatencyMs, 'f', 3, 64),
			strconv.FormatFloat(r.TTFBMs, 'f', 3, 64),
			strconv.FormatBool(r.Alive),
			strconv.Itoa(r.NDomains),
			strconv.Itoa(r.NConfigs),
			r.Via,
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("%s:WriteResultsCSV: %w", me, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("%s:WriteResultsCSV: %w", me, err)
	}

	return path, nil
}

// URIEntry is one ranked proxy URI, best score first.
type URIEntry struct {
	URI   string
	Score float64
}

// defaultTopN is the spec §4.7 default top-N count.
const defaultTopN = 50

// WriteTopN writes the topN best-scoring URIs (default 50) to dir/<timestamp>_top50.txt. entries
// must already be sorted best-first.
func WriteTopN(dir string, now time.Time, topN int, entries []URIEntry) (string, error) {
	if topN <= 0 {
		topN = defaultTopN
	}
	if topN > len(entries) {
		topN = len(entries)
	}

	return writeURIList(dir, "top50", now, entries[:topN])
}

// WriteFullSorted writes every URI, best-to-worst, to dir/<timestamp>_full_sorted.txt.
func WriteFullSorted(dir string, now time.Time, entries []URIEntry) (string, error) {
	return writeURIList(dir, "full_sorted", now, entries)
}

func writeURIList(dir, suffix string, now time.Time, entries []URIEntry) (string, error) {
	f, path, err := create(dir, "", suffix, "txt", now)
	if err != nil {
		return "", err
	}
	defer f.Close()

	for _, e := range entries {
		if _, err := fmt.Fprintln(f, e.URI); err != nil {
			return "", fmt.Errorf("%s:writeURIList: %w", me, err)
		}
	}

	return path, nil
}

// WriteConfigsTo writes every URI, best-to-worst, to the operator-supplied path (--output-configs)
// rather than a generated results/ filename. Unlike the timestamped exports this one freely
// overwrites, since the operator named the path explicitly.
func WriteConfigsTo(path string, entries []URIEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%s:WriteConfigsTo: %w", me, err)
	}
	defer f.Close()

	for _, e := range entries {
		if _, err := fmt.Fprintln(f, e.URI); err != nil {
			return fmt.Errorf("%s:WriteConfigsTo: %w", me, err)
		}
	}

	return nil
}

// WriteCleanIPs writes the sweep engine's alive ip[:port] list to dir/<timestamp>_clean_ips.txt.
func WriteCleanIPs(dir string, now time.Time, ipPorts []string) (string, error) {
	f, path, err := create(dir, "", "clean_ips", "txt", now)
	if err != nil {
		return "", err
	}
	defer f.Close()

	for _, ip := range ipPorts {
		if _, err := fmt.Fprintln(f, ip); err != nil {
			return "", fmt.Errorf("%s:WriteCleanIPs: %w", me, err)
		}
	}

	return path, nil
}

// create opens dir/<prefix><timestamp>_<suffix>.<ext> exclusively, failing if it already exists
// so a run never overwrites a previous one's artifacts (spec §4.7 "existing files are never
// overwritten").
func create(dir, prefix, suffix, ext string, now time.Time) (*os.File, string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, "", fmt.Errorf("%s:create: %w", me, err)
	}

	name := fmt.Sprintf("%s%s_%s.%s", prefix, now.Format(timestampLayout), suffix, ext)
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, "", fmt.Errorf("%s:create: %w", me, err)
	}

	return f, path, nil
}
