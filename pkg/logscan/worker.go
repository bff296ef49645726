package logscan

import (
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/eunmann/s3-log-levels/internal/logctx"
	"github.com/eunmann/s3-log-levels/pkg/aggregate"
	"github.com/eunmann/s3-log-levels/pkg/jobqueue"
	"github.com/eunmann/s3-log-levels/pkg/levels"
	"github.com/eunmann/s3-log-levels/pkg/logging"
	"github.com/eunmann/s3-log-levels/pkg/objstore"
)

// State is what a worker is currently doing.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateScanning
	StateMerging
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateScanning:
		return "scanning"
	case StateMerging:
		return "merging"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// WorkerStats summarizes one worker after the run.
type WorkerStats struct {
	ID        int   `json:"id" yaml:"id"`
	Processed int64 `json:"processed" yaml:"processed"`
	Failed    int64 `json:"failed" yaml:"failed"`
}

// Worker pulls keys from the queue, scans each object with its own getter
// and records the outcome in the shared aggregator.
type Worker struct {
	id      int
	bucket  string
	getter  objstore.Getter
	scanner *levels.Scanner
	queue   *jobqueue.Queue
	agg     *aggregate.Aggregator
	tracker *logging.ProgressTracker

	state     atomic.Int32
	processed atomic.Int64
	failed    atomic.Int64
	// interrupted counts failures that happened after ctx was done.
	interrupted atomic.Int64
}

func newWorker(id int, bucket string, getter objstore.Getter, scanner *levels.Scanner,
	queue *jobqueue.Queue, agg *aggregate.Aggregator, tracker *logging.ProgressTracker,
) *Worker {
	return &Worker{
		id:      id,
		bucket:  bucket,
		getter:  getter,
		scanner: scanner,
		queue:   queue,
		agg:     agg,
		tracker: tracker,
	}
}

// ID returns the worker index.
func (w *Worker) ID() int { return w.id }

// State returns the current state.
func (w *Worker) State() State {
	return State(w.state.Load())
}

// Stats returns the worker's counters.
func (w *Worker) Stats() WorkerStats {
	return WorkerStats{
		ID:        w.id,
		Processed: w.processed.Load(),
		Failed:    w.failed.Load(),
	}
}

func (w *Worker) setState(s State) {
	w.state.Store(int32(s))
}

// Run processes keys until the queue is closed and drained or ctx is done.
func (w *Worker) Run(ctx context.Context) {
	ctx = logctx.WithWorker(ctx, w.id)
	log := logctx.FromContext(ctx)
	log.Debug().Msg("worker started")

	defer func() {
		w.setState(StateStopped)
		log.Debug().
			Int64("processed", w.processed.Load()).
			Int64("failed", w.failed.Load()).
			Msg("worker stopped")
	}()

	for {
		w.setState(StateIdle)
		key, ok := w.queue.Dequeue(ctx)
		if !ok {
			return
		}
		w.handle(ctx, key)
	}
}

// handle runs one job. The queue is acknowledged on every path.
func (w *Worker) handle(ctx context.Context, key string) {
	defer w.queue.MarkDone()

	ctx = logctx.WithStr(ctx, "key", key)
	log := logctx.FromContext(ctx)

	start := time.Now()
	counts, stats, err := w.processObject(ctx, key)
	elapsed := time.Since(start)

	w.setState(StateMerging)
	w.agg.Record(aggregate.ObjectResult{
		Key:      key,
		Worker:   w.id,
		Counts:   counts,
		Lines:    stats.Lines,
		Bytes:    stats.Bytes,
		Duration: elapsed,
		Err:      err,
	})

	if err != nil {
		w.failed.Add(1)
		if ctx.Err() != nil {
			w.interrupted.Add(1)
		}
		if w.tracker != nil {
			w.tracker.RecordFailure(elapsed)
		}
		log.Warn().Err(err).Msg("object skipped")
		return
	}

	w.processed.Add(1)
	if w.tracker != nil {
		w.tracker.RecordCompletion(elapsed)
	}
	logging.ObjectComplete(log, "scan", elapsed).
		Count("lines", stats.Lines).
		Bytes("bytes", stats.Bytes).
		Str("counts", counts.String()).
		LogDebug("object scanned")
}

// processObject fetches and scans one object. A panic is returned as an error.
func (w *Worker) processObject(ctx context.Context, key string) (counts levels.Counts, stats levels.ScanStats, err error) {
	defer func() {
		if r := recover(); r != nil {
			counts, stats = levels.Counts{}, levels.ScanStats{}
			err = fmt.Errorf("panic scanning %s: %v", key, r)
		}
	}()

	w.setState(StateFetching)
	body, err := w.getter.Open(ctx, w.bucket, key)
	if err != nil {
		return levels.Counts{}, levels.ScanStats{}, fmt.Errorf("open %s: %w", key, err)
	}
	defer closeQuietly(body)

	w.setState(StateScanning)
	counts, stats, err = w.scanner.Scan(key, body)
	if err != nil {
		return levels.Counts{}, levels.ScanStats{}, fmt.Errorf("scan %s: %w", key, err)
	}
	return counts, stats, nil
}

func closeQuietly(c io.Closer) {
	_ = c.Close()
}
