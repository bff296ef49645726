// Package logscan runs a level-count job over every log object under a
// bucket prefix using a fixed pool of workers fed by a bounded queue.
package logscan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/eunmann/s3-log-levels/internal/logctx"
	"github.com/eunmann/s3-log-levels/pkg/aggregate"
	"github.com/eunmann/s3-log-levels/pkg/jobqueue"
	"github.com/eunmann/s3-log-levels/pkg/levels"
	"github.com/eunmann/s3-log-levels/pkg/logging"
	"github.com/eunmann/s3-log-levels/pkg/objstore"
)

// GetterFactory builds the getter owned by one worker. It is called once
// per worker, concurrently, and must not share mutable state between calls.
type GetterFactory func(ctx context.Context, workerID int) (objstore.Getter, error)

// SharedGetter returns a factory handing the same getter to every worker.
// The getter must be safe for concurrent use.
func SharedGetter(g objstore.Getter) GetterFactory {
	return func(context.Context, int) (objstore.Getter, error) {
		return g, nil
	}
}

// Result is the outcome of one run.
type Result struct {
	RunID   string
	Bucket  string
	Prefix  string
	Workers int
	// KeysListed is the number of keys enqueued. KeysSkipped counts
	// directory markers and suffix mismatches.
	KeysListed  int64
	KeysSkipped int64
	Snapshot    aggregate.Snapshot
	Elapsed     time.Duration
	PerWorker   []WorkerStats
}

// Counts returns the final grand total.
func (r *Result) Counts() levels.Counts {
	return r.Snapshot.Counts
}

// Scanner coordinates a run: it starts the workers, lists and enqueues the
// keys, waits for every key to be acknowledged and collects the totals.
type Scanner struct {
	lister  objstore.Lister
	factory GetterFactory
	scanner *levels.Scanner
	opts    Options
	log     zerolog.Logger
}

// NewScanner validates opts and returns a Scanner. lister is used by the
// coordinator only; each worker gets its own getter from factory.
func NewScanner(lister objstore.Lister, factory GetterFactory, opts Options) (*Scanner, error) {
	if lister == nil {
		return nil, errors.New("lister is required")
	}
	if factory == nil {
		return nil, errors.New("getter factory is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	sc, err := levels.NewScanner(opts.Levels)
	if err != nil {
		return nil, fmt.Errorf("create line scanner: %w", err)
	}

	return &Scanner{
		lister:  lister,
		factory: factory,
		scanner: sc,
		opts:    opts,
		log:     logging.WithPhase("scan"),
	}, nil
}

// Options returns the validated options.
func (s *Scanner) Options() Options {
	return s.opts
}

// Scan runs the job to completion. Per-object failures are recorded in the
// result and do not fail the run; a listing failure, a worker that cannot
// build its getter, a cancelled ctx or an expired timeout do.
func (s *Scanner) Scan(ctx context.Context) (*Result, error) {
	runID := uuid.NewString()
	ctx = logctx.WithRun(ctx, s.log, runID)
	log := logctx.FromContext(ctx)

	if s.opts.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancelTimeout()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	log.Info().
		Str("bucket", s.opts.Bucket).
		Str("prefix", s.opts.Prefix).
		Int("workers", s.opts.Workers).
		Int("queue_size", s.opts.QueueSize).
		Str("compression", string(s.opts.Levels.Compression)).
		Str("encoding", string(s.opts.Levels.Encoding)).
		Msg("starting scan")

	start := time.Now()
	queue := jobqueue.New(s.opts.QueueSize)
	agg := aggregate.New(aggregate.Options{KeepObjects: s.opts.KeepObjects})
	tracker := logging.NewProgressTracker("scan", 0, log)

	// Workers start before listing so the first keys are picked up as
	// soon as they are enqueued.
	g, gctx := errgroup.WithContext(ctx)
	workers := make([]*Worker, s.opts.Workers)
	for i := range workers {
		id := i
		g.Go(func() error {
			getter, err := s.factory(gctx, id)
			if err != nil {
				return fmt.Errorf("worker %d: create getter: %w", id, err)
			}
			w := newWorker(id, s.opts.Bucket, getter, s.scanner, queue, agg, tracker)
			workers[id] = w
			w.Run(gctx)
			return nil
		})
	}

	stopProgress := s.startProgress(tracker)
	defer stopProgress()

	// abort tears the pool down and prefers the root cause reported by a
	// worker over the error seen by the coordinator.
	abort := func(err error) (*Result, error) {
		cancel()
		queue.Close()
		if werr := g.Wait(); werr != nil {
			return nil, werr
		}
		return nil, err
	}

	listed, skipped, err := s.enqueueAll(gctx, queue, tracker)
	if err != nil {
		return abort(fmt.Errorf("list s3://%s/%s: %w", s.opts.Bucket, s.opts.Prefix, err))
	}

	log.Debug().
		Int64("keys_listed", listed).
		Int64("keys_skipped", skipped).
		Msg("listing complete, waiting for workers")

	if err := queue.WaitAllDone(gctx); err != nil {
		return abort(fmt.Errorf("wait for workers: %w", err))
	}

	queue.Close()
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := interruptedErr(ctx, workers); err != nil {
		return nil, err
	}

	elapsed := time.Since(start)
	res := &Result{
		RunID:       runID,
		Bucket:      s.opts.Bucket,
		Prefix:      s.opts.Prefix,
		Workers:     s.opts.Workers,
		KeysListed:  listed,
		KeysSkipped: skipped,
		Snapshot:    agg.Snapshot(),
		Elapsed:     elapsed,
		PerWorker:   make([]WorkerStats, 0, len(workers)),
	}
	for _, w := range workers {
		if w != nil {
			res.PerWorker = append(res.PerWorker, w.Stats())
		}
	}

	snap := res.Snapshot
	if snap.ObjectsTotal() != listed {
		log.Warn().
			Int64("keys_listed", listed).
			Int64("objects_recorded", snap.ObjectsTotal()).
			Msg("recorded objects differ from listed keys")
	}

	logging.PhaseComplete(log, "scan", elapsed).
		Count("keys_listed", listed).
		Count("objects_ok", snap.ObjectsOK).
		Count("objects_failed", snap.ObjectsFailed).
		Count("lines", snap.Lines).
		Bytes("bytes", snap.Bytes).
		Throughput(snap.Bytes).
		Str("counts", snap.Counts.String()).
		Log("scan complete")

	return res, nil
}

// interruptedErr fails the run when a worker lost a key to ctx being done.
// Keys failed by an expired deadline are not real per-object failures, but
// a deadline that lands after the last key finished keeps the result.
func interruptedErr(ctx context.Context, workers []*Worker) error {
	for _, w := range workers {
		if w == nil || w.interrupted.Load() == 0 {
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = context.Canceled
		}
		return fmt.Errorf("scan aborted: %w", err)
	}
	return nil
}

// enqueueAll lists the prefix and enqueues every key that passes the filter,
// page by page, as the keys arrive.
func (s *Scanner) enqueueAll(ctx context.Context, queue *jobqueue.Queue, tracker *logging.ProgressTracker) (listed, skipped int64, err error) {
	err = s.lister.List(ctx, s.opts.Bucket, s.opts.Prefix, func(obj objstore.ObjectInfo) error {
		if !wantKey(obj.Key, s.opts.Suffix) {
			skipped++
			return nil
		}
		if err := queue.Enqueue(ctx, obj.Key); err != nil {
			return fmt.Errorf("enqueue %s: %w", obj.Key, err)
		}
		listed++
		tracker.AddTotal(1)
		return nil
	})
	return listed, skipped, err
}

// wantKey reports whether key names a log object to scan. Directory markers
// are never scanned.
func wantKey(key, suffix string) bool {
	if key == "" || strings.HasSuffix(key, "/") {
		return false
	}
	return suffix == "" || strings.HasSuffix(key, suffix)
}

// startProgress logs the tracker periodically until the returned func is called.
func (s *Scanner) startProgress(tracker *logging.ProgressTracker) func() {
	if s.opts.ProgressInterval <= 0 {
		return func() {}
	}

	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		ticker := time.NewTicker(s.opts.ProgressInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				tracker.LogProgress(s.opts.Workers)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}
