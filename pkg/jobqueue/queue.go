// Package jobqueue provides the FIFO work queue shared by the scan workers.
//
// The queue tracks outstanding jobs: every successful Enqueue must be matched
// by exactly one MarkDone once the dequeued job is fully processed. WaitAllDone
// returns when the outstanding count reaches zero. Close is the stop signal:
// once the buffer drains, every Dequeue returns ok == false, so one Close stops
// any number of consumers.
package jobqueue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Enqueue after Close.
var ErrClosed = errors.New("jobqueue: closed")

// Stats is a point-in-time view of the queue counters.
type Stats struct {
	Enqueued    int64
	Completed   int64
	Outstanding int64
}

// Queue is a bounded FIFO of object keys. It is safe for concurrent use.
type Queue struct {
	items chan string

	// mu guards closed and orders Close after in-flight Enqueue sends.
	mu     sync.RWMutex
	closed bool

	// outstanding counts enqueued keys not yet acknowledged. idle is closed
	// whenever outstanding is zero and replaced when it rises again.
	countMu     sync.Mutex
	outstanding int64
	idle        chan struct{}

	enqueued  atomic.Int64
	completed atomic.Int64
}

// New creates a queue holding up to capacity keys. A capacity <= 0 gives an
// unbuffered queue where Enqueue blocks until a consumer takes the key.
func New(capacity int) *Queue {
	if capacity < 0 {
		capacity = 0
	}
	idle := make(chan struct{})
	close(idle)
	return &Queue{
		items: make(chan string, capacity),
		idle:  idle,
	}
}

// Enqueue appends key, blocking while the queue is full. The outstanding
// count is raised before the key becomes visible to consumers.
func (q *Queue) Enqueue(ctx context.Context, key string) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return ErrClosed
	}

	q.acquire()
	select {
	case q.items <- key:
		q.enqueued.Add(1)
		return nil
	case <-ctx.Done():
		q.release()
		return ctx.Err()
	}
}

// Dequeue blocks until a key is available. ok is false when the queue has
// been closed and drained, or when ctx is done; the caller must stop.
func (q *Queue) Dequeue(ctx context.Context) (key string, ok bool) {
	// Buffered keys win over a done context.
	select {
	case key, ok = <-q.items:
		return key, ok
	default:
	}

	select {
	case key, ok = <-q.items:
		return key, ok
	case <-ctx.Done():
		return "", false
	}
}

// MarkDone acknowledges one dequeued key as fully processed. It panics if
// called more often than keys were enqueued.
func (q *Queue) MarkDone() {
	q.completed.Add(1)
	q.release()
}

// WaitAllDone blocks until the outstanding count reaches zero, or ctx is
// done. Callers that need every key covered must finish enqueueing first.
func (q *Queue) WaitAllDone(ctx context.Context) error {
	q.countMu.Lock()
	idle := q.idle
	q.countMu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) acquire() {
	q.countMu.Lock()
	if q.outstanding == 0 {
		q.idle = make(chan struct{})
	}
	q.outstanding++
	q.countMu.Unlock()
}

func (q *Queue) release() {
	q.countMu.Lock()
	defer q.countMu.Unlock()

	q.outstanding--
	switch {
	case q.outstanding < 0:
		panic("jobqueue: MarkDone without matching Enqueue")
	case q.outstanding == 0:
		close(q.idle)
	}
}

// Close stops the queue. Keys already buffered are still delivered; after
// that Dequeue reports ok == false. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.items)
}

// Len returns the number of buffered keys.
func (q *Queue) Len() int {
	return len(q.items)
}

// Stats returns the current counters.
func (q *Queue) Stats() Stats {
	q.countMu.Lock()
	outstanding := q.outstanding
	q.countMu.Unlock()

	return Stats{
		Enqueued:    q.enqueued.Load(),
		Completed:   q.completed.Load(),
		Outstanding: outstanding,
	}
}
