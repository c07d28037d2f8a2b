package export

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteResultsCSV(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	records := []Record{
		{IP: "104.16.1.1", Port: 443, Score: 0.9, ThroughputMbps: 120.5, LatencyMs: 12.3, TTFBMs: 5.1, Alive: true, NDomains: 2, NConfigs: 3, Via: "direct"},
	}

	path, err := WriteResultsCSV(dir, now, records)
	if err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "ip,port,score") {
		t.Error("expected a header row", lines[0])
	}
	if !strings.Contains(lines[1], "104.16.1.1") {
		t.Error("expected the ip in the data row", lines[1])
	}
}

func TestWriteResultsCSVNeverOverwrites(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	if _, err := WriteResultsCSV(dir, now, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := WriteResultsCSV(dir, now, nil); err == nil {
		t.Error("expected the second write at the same timestamp to fail (O_EXCL)")
	}
}

func TestWriteTopNTruncates(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	entries := []URIEntry{{URI: "a"}, {URI: "b"}, {URI: "c"}}
	path, err := WriteTopN(dir, now, 2, entries)
	if err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 2 {
		t.Errorf("expected 2 lines, got %d", len(lines))
	}
	if filepath.Base(path) == "" {
		t.Error("expected a non-empty filename")
	}
}

func TestWriteFullSortedWritesEverything(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	entries := []URIEntry{{URI: "a"}, {URI: "b"}, {URI: "c"}}
	path, err := WriteFullSorted(dir, now, entries)
	if err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Errorf("expected 3 lines, got %d", len(lines))
	}
}

func TestWriteCleanIPs(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()

	path, err := WriteCleanIPs(dir, now, []string{"104.16.1.1", "104.16.1.2:8443"})
	if err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "104.16.1.2:8443") {
		t.Error("expected the port-suffixed entry to be written verbatim")
	}
}
