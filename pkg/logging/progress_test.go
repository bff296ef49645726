package logging

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestProgressTracker_BasicOperations(t *testing.T) {
	pt := NewProgressTracker("scan", 10, zerolog.Nop())

	pt.RecordCompletion(100 * time.Millisecond)
	pt.RecordCompletion(150 * time.Millisecond)
	pt.RecordFailure(10 * time.Millisecond)

	completed, failed, total := pt.Progress()
	if completed != 2 || failed != 1 || total != 10 {
		t.Errorf("Progress() = (%d, %d, %d), want (2, 1, 10)", completed, failed, total)
	}
	if pct := pt.ProgressPct(); pct != 30.0 {
		t.Errorf("expected progress 30%%, got %.1f%%", pct)
	}
	if remaining := pt.Remaining(); remaining != 7 {
		t.Errorf("expected remaining=7, got %d", remaining)
	}
}

func TestProgressTracker_GrowingTotal(t *testing.T) {
	pt := NewProgressTracker("scan", 0, zerolog.Nop())
	if pct := pt.ProgressPct(); pct != 100.0 {
		t.Errorf("expected 100%% for empty total, got %.1f", pct)
	}

	pt.AddTotal(4)
	pt.RecordCompletion(time.Millisecond)
	pt.AddTotal(4)

	if pct := pt.ProgressPct(); pct != 12.5 {
		t.Errorf("expected 12.5%%, got %.2f", pct)
	}
}

func TestProgressTracker_ETA(t *testing.T) {
	pt := NewProgressTracker("scan", 10, zerolog.Nop())

	if eta := pt.ETA(1); eta != 0 {
		t.Errorf("expected zero ETA before any completion, got %v", eta)
	}

	pt.RecordCompletion(100 * time.Millisecond)
	pt.RecordCompletion(100 * time.Millisecond)

	// 8 remaining at 100ms each.
	if eta := pt.ETA(1); eta != 800*time.Millisecond {
		t.Errorf("expected ETA 800ms, got %v", eta)
	}
	// Spread across 4 workers.
	if eta := pt.ETA(4); eta != 200*time.Millisecond {
		t.Errorf("expected ETA 200ms, got %v", eta)
	}
}

func TestProgressTracker_Concurrent(t *testing.T) {
	pt := NewProgressTracker("scan", 0, zerolog.Nop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				pt.AddTotal(1)
				pt.RecordCompletion(time.Microsecond)
			}
		}()
	}
	wg.Wait()

	completed, _, total := pt.Progress()
	if completed != 800 || total != 800 {
		t.Errorf("expected 800/800, got %d/%d", completed, total)
	}
}

func TestProgressTracker_LogProgress(t *testing.T) {
	var buf bytes.Buffer
	pt := NewProgressTracker("scan", 4, zerolog.New(&buf))
	pt.RecordCompletion(50 * time.Millisecond)
	pt.RecordFailure(50 * time.Millisecond)

	pt.LogProgress(2)

	output := buf.String()
	for _, want := range []string{`"event":"progress"`, `"completed":1`, `"failed":1`, `"total":4`, `"progress_pct":50`, `"eta_ms":50`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output, got: %s", want, output)
		}
	}
}

func TestCompletionEvent_BasicFields(t *testing.T) {
	var buf bytes.Buffer
	SetPrettyMode(false)

	PhaseComplete(zerolog.New(&buf), "scan", 500*time.Millisecond).
		Str("bucket", "log-bucket").
		Int("workers", 20).
		Log("scan complete")

	output := buf.String()
	for _, want := range []string{`"event":"phase_completed"`, `"phase":"scan"`, `"duration_ms":500`, `"bucket":"log-bucket"`, `"workers":20`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output, got: %s", want, output)
		}
	}
}

func TestCompletionEvent_BytesAndCounts(t *testing.T) {
	var buf bytes.Buffer
	SetPrettyMode(true)
	defer SetPrettyMode(false)

	ObjectComplete(zerolog.New(&buf), "scan", time.Second).
		Bytes("bytes", 1073741824).
		Count("lines", 1500000).
		Throughput(1073741824).
		Log("object scanned")

	output := buf.String()
	for _, want := range []string{
		`"event":"object_completed"`,
		`"bytes":1073741824`,
		`"bytes_h":"1.00 GiB"`,
		`"lines":1500000`,
		`"lines_h":"1.50M"`,
		`"throughput_h":"1.00 GiB/s"`,
		`"duration_h":"1.00s"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output, got: %s", want, output)
		}
	}
}

func TestCompletionEvent_LogDebugRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf).Level(zerolog.InfoLevel)

	ObjectComplete(log, "scan", time.Millisecond).Str("key", "a").LogDebug("object scanned")
	if buf.Len() != 0 {
		t.Errorf("expected no output at info level, got: %s", buf.String())
	}
}
