package logging

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/eunmann/s3-log-levels/pkg/humanfmt"
	"github.com/rs/zerolog"
)

// ProgressTracker tracks per-object progress with ETA calculation. The total
// grows while listing is still running, so it is tracked atomically too.
// It is safe for concurrent use.
type ProgressTracker struct {
	total     atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	startTime time.Time
	log       zerolog.Logger
	phase     string

	// For moving average of item durations
	mu              sync.Mutex
	recentDurations []time.Duration
	maxRecent       int
}

// NewProgressTracker creates a new progress tracker.
func NewProgressTracker(phase string, total int64, log zerolog.Logger) *ProgressTracker {
	pt := &ProgressTracker{
		startTime:       time.Now(),
		log:             log,
		phase:           phase,
		recentDurations: make([]time.Duration, 0, 32),
		maxRecent:       32,
	}
	pt.total.Store(total)
	return pt
}

// AddTotal raises the expected item count by n.
func (pt *ProgressTracker) AddTotal(n int64) {
	pt.total.Add(n)
}

// RecordCompletion records that an item completed with the given duration.
func (pt *ProgressTracker) RecordCompletion(d time.Duration) {
	pt.completed.Add(1)
	pt.recordDuration(d)
}

// RecordFailure records that an item finished without contributing.
func (pt *ProgressTracker) RecordFailure(d time.Duration) {
	pt.failed.Add(1)
	pt.recordDuration(d)
}

func (pt *ProgressTracker) recordDuration(d time.Duration) {
	pt.mu.Lock()
	if len(pt.recentDurations) >= pt.maxRecent {
		pt.recentDurations = pt.recentDurations[1:]
	}
	pt.recentDurations = append(pt.recentDurations, d)
	pt.mu.Unlock()
}

// Progress returns current progress stats.
func (pt *ProgressTracker) Progress() (completed, failed, total int64) {
	return pt.completed.Load(), pt.failed.Load(), pt.total.Load()
}

// ProgressPct returns the progress percentage (0-100).
func (pt *ProgressTracker) ProgressPct() float64 {
	done := pt.completed.Load() + pt.failed.Load()
	total := pt.total.Load()
	if total == 0 {
		return 100.0
	}
	return float64(done) * 100.0 / float64(total)
}

// ETA estimates the time remaining from the moving average item duration
// divided across concurrency parallel workers.
func (pt *ProgressTracker) ETA(concurrency int) time.Duration {
	remaining := pt.Remaining()
	if remaining <= 0 {
		return 0
	}
	if concurrency < 1 {
		concurrency = 1
	}

	pt.mu.Lock()
	n := len(pt.recentDurations)
	var sum time.Duration
	for _, d := range pt.recentDurations {
		sum += d
	}
	pt.mu.Unlock()

	if n == 0 {
		return 0
	}
	avg := sum / time.Duration(n)
	return avg * time.Duration(remaining) / time.Duration(concurrency)
}

// Elapsed returns time since tracking started.
func (pt *ProgressTracker) Elapsed() time.Duration {
	return time.Since(pt.startTime)
}

// Remaining returns how many items are remaining.
func (pt *ProgressTracker) Remaining() int64 {
	return pt.total.Load() - pt.completed.Load() - pt.failed.Load()
}

// LogProgress emits a progress line at info level.
func (pt *ProgressTracker) LogProgress(concurrency int) {
	completed, failed, total := pt.Progress()
	e := pt.log.Info().
		Str("event", "progress").
		Str("phase", pt.phase).
		Int64("completed", completed).
		Int64("failed", failed).
		Int64("total", total).
		Float64("progress_pct", pt.ProgressPct())

	if eta := pt.ETA(concurrency); eta > 0 {
		e = e.Int64("eta_ms", eta.Milliseconds())
		if IsPrettyMode() {
			e = e.Str("eta_h", humanfmt.Duration(eta))
		}
	}
	e.Msg("scan progress")
}

// CompletionEvent helps build consistent completion log events.
type CompletionEvent struct {
	log     zerolog.Logger
	event   string
	phase   string
	elapsed time.Duration
	fields  map[string]interface{}
}

// NewCompletionEvent creates a new completion event builder.
func NewCompletionEvent(log zerolog.Logger, event, phase string, elapsed time.Duration) *CompletionEvent {
	return &CompletionEvent{
		log:     log,
		event:   event,
		phase:   phase,
		elapsed: elapsed,
		fields:  make(map[string]interface{}),
	}
}

// Str adds a string field.
func (ce *CompletionEvent) Str(key, val string) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Int adds an int field.
func (ce *CompletionEvent) Int(key string, val int) *CompletionEvent {
	ce.fields[key] = val
	return ce
}

// Bytes adds byte count with optional human-readable companion.
func (ce *CompletionEvent) Bytes(key string, bytes int64) *CompletionEvent {
	ce.fields[key] = bytes
	if IsPrettyMode() {
		ce.fields[key+"_h"] = humanfmt.Bytes(bytes)
	}
	return ce
}

// Count adds count with optional human-readable companion.
func (ce *CompletionEvent) Count(key string, n int64) *CompletionEvent {
	ce.fields[key] = n
	if IsPrettyMode() {
		ce.fields[key+"_h"] = humanfmt.Count(n)
	}
	return ce
}

// Throughput adds throughput fields.
func (ce *CompletionEvent) Throughput(bytes int64) *CompletionEvent {
	if ce.elapsed > 0 {
		bps := float64(bytes) / ce.elapsed.Seconds()
		ce.fields["throughput_bps"] = bps
		if IsPrettyMode() {
			ce.fields["throughput_h"] = humanfmt.Throughput(bytes, ce.elapsed)
		}
	}
	return ce
}

// Log emits the completion event at info level.
func (ce *CompletionEvent) Log(msg string) {
	ce.emit(ce.log.Info(), msg)
}

// LogDebug emits the completion event at debug level.
func (ce *CompletionEvent) LogDebug(msg string) {
	ce.emit(ce.log.Debug(), msg)
}

func (ce *CompletionEvent) emit(e *zerolog.Event, msg string) {
	e = e.Str("event", ce.event).
		Str("phase", ce.phase).
		Int64("duration_ms", ce.elapsed.Milliseconds())

	if IsPrettyMode() {
		e = e.Str("duration_h", humanfmt.Duration(ce.elapsed))
	}

	for k, v := range ce.fields {
		e = e.Interface(k, v)
	}

	e.Msg(msg)
}

// PhaseComplete starts a phase completion event.
func PhaseComplete(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "phase_completed", phase, elapsed)
}

// ObjectComplete starts a per-object completion event.
func ObjectComplete(log zerolog.Logger, phase string, elapsed time.Duration) *CompletionEvent {
	return NewCompletionEvent(log, "object_completed", phase, elapsed)
}
