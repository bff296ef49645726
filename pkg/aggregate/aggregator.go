// Package aggregate holds the run-wide level tally that every scan worker
// merges into.
package aggregate

import (
	"sort"
	"sync"
	"time"

	"github.com/eunmann/s3-log-levels/pkg/levels"
)

// ObjectResult is the outcome of scanning one object.
type ObjectResult struct {
	Key      string
	Worker   int
	Counts   levels.Counts
	Lines    int64
	Bytes    int64
	Duration time.Duration
	// Err is set when the object could not be fetched or decoded. Counts
	// are ignored for failed objects.
	Err error
}

// FailedObject names an object that contributed nothing because of Err.
type FailedObject struct {
	Key   string
	Error string
}

// Snapshot is a consistent copy of the aggregator state.
type Snapshot struct {
	Counts        levels.Counts
	ObjectsOK     int64
	ObjectsFailed int64
	Lines         int64
	Bytes         int64
	Failed        []FailedObject
	// Objects is only filled when Options.KeepObjects is set.
	Objects []ObjectResult
}

// ObjectsTotal returns the number of objects recorded, failed or not.
func (s Snapshot) ObjectsTotal() int64 {
	return s.ObjectsOK + s.ObjectsFailed
}

// Options controls what the aggregator retains beyond the totals.
type Options struct {
	// KeepObjects retains every ObjectResult for per-object export.
	KeepObjects bool
}

// Aggregator is the shared tally. All methods are safe for concurrent use;
// each Merge or Record is applied atomically with respect to the others.
type Aggregator struct {
	opts Options

	mu       sync.Mutex
	counts   levels.Counts
	ok       int64
	failed   int64
	lines    int64
	bytes    int64
	failures []FailedObject
	objects  []ObjectResult
}

// New creates an empty aggregator.
func New(opts Options) *Aggregator {
	return &Aggregator{opts: opts}
}

// Merge adds a worker-local tally into the global counts.
func (a *Aggregator) Merge(local levels.Counts) {
	a.mu.Lock()
	a.counts.Merge(local)
	a.mu.Unlock()
}

// Record merges the counts of a successful object, or records a failed one
// with zero contribution.
func (a *Aggregator) Record(res ObjectResult) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if res.Err != nil {
		a.failed++
		a.failures = append(a.failures, FailedObject{Key: res.Key, Error: res.Err.Error()})
		res.Counts = levels.Counts{}
	} else {
		a.ok++
		a.counts.Merge(res.Counts)
		a.lines += res.Lines
		a.bytes += res.Bytes
	}

	if a.opts.KeepObjects {
		a.objects = append(a.objects, res)
	}
}

// Counts returns the current global counts.
func (a *Aggregator) Counts() levels.Counts {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.counts
}

// Snapshot returns a copy of the state. Failed and Objects are sorted by key.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.Lock()
	snap := Snapshot{
		Counts:        a.counts,
		ObjectsOK:     a.ok,
		ObjectsFailed: a.failed,
		Lines:         a.lines,
		Bytes:         a.bytes,
		Failed:        append([]FailedObject(nil), a.failures...),
		Objects:       append([]ObjectResult(nil), a.objects...),
	}
	a.mu.Unlock()

	sort.Slice(snap.Failed, func(i, j int) bool { return snap.Failed[i].Key < snap.Failed[j].Key })
	sort.Slice(snap.Objects, func(i, j int) bool { return snap.Objects[i].Key < snap.Objects[j].Key })
	return snap
}
