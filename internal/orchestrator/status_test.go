package orchestrator

import (
	"bytes"
	"testing"
	"time"

	"github.com/markdingo/cdnedge/internal/reporter"
)

func TestNextIntervalLandsOnModuloBoundary(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 1, 17, 0, time.UTC)
	got := nextInterval(now, time.Second*30)
	if got != time.Second*13 {
		t.Errorf("expected 13s to the next :30 boundary, got %s", got)
	}
}

type fakeReporter struct{ name, report string }

func (f fakeReporter) Name() string                 { return f.name }
func (f fakeReporter) Report(resetCounters bool) string { return f.report }

func TestStatusReportPrefixesEveryLine(t *testing.T) {
	var buf bytes.Buffer
	statusReport(&buf, time.Now().Add(-time.Minute), "Status", false,
		[]reporter.Reporter{fakeReporter{name: "speed", report: "requested=5\ncompleted=5"}})

	out := buf.String()
	if !bytes.Contains([]byte(out), []byte("Status speed: requested=5")) {
		t.Errorf("expected prefixed first line, got %q", out)
	}
	if !bytes.Contains([]byte(out), []byte("Status speed: completed=5")) {
		t.Errorf("expected prefixed second line, got %q", out)
	}
}

func TestRunStatusLoopExitsOnDone(t *testing.T) {
	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		close(done)
	}()

	runStatusLoop(&buf, time.Now(), 0, nil, done)
}
