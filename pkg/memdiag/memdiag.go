// Package memdiag provides memory diagnostics for long scans.
//
// Enable periodic heap logging with S3LOG_MEM_DEBUG=1.
// Serve pprof with S3LOG_PPROF_ADDR=localhost:6060.
package memdiag

import (
	"net/http"
	"os"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	// Registers pprof handlers on DefaultServeMux for the pprof HTTP server.
	_ "net/http/pprof"

	"github.com/rs/zerolog"

	"github.com/eunmann/s3-log-levels/pkg/humanfmt"
	"github.com/eunmann/s3-log-levels/pkg/logging"
)

// Config holds configuration for memory diagnostics.
type Config struct {
	// Enabled turns on periodic heap logging.
	Enabled bool

	// PprofAddr, when set, starts a pprof HTTP server on that address.
	PprofAddr string

	// LogInterval is the interval for periodic memory logging.
	LogInterval time.Duration
}

// FromEnv reads the configuration from the environment.
func FromEnv() Config {
	return Config{
		Enabled:     os.Getenv("S3LOG_MEM_DEBUG") == "1",
		PprofAddr:   os.Getenv("S3LOG_PPROF_ADDR"),
		LogInterval: 5 * time.Second,
	}
}

// Stats is a subset of runtime.MemStats.
type Stats struct {
	HeapAlloc  uint64
	HeapInuse  uint64
	Sys        uint64
	StackInuse uint64
	NumGC      uint32
	Goroutines int
}

// Read reads current memory statistics.
func Read() Stats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return Stats{
		HeapAlloc:  m.HeapAlloc,
		HeapInuse:  m.HeapInuse,
		Sys:        m.Sys,
		StackInuse: m.StackInuse,
		NumGC:      m.NumGC,
		Goroutines: runtime.NumGoroutine(),
	}
}

// Tracker samples the heap while a run is in progress and remembers the peak.
type Tracker struct {
	config  Config
	log     zerolog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	started atomic.Bool

	mu       sync.Mutex
	phase    string
	peakHeap uint64
}

// NewTracker creates a new memory tracker.
func NewTracker(config Config) *Tracker {
	if config.LogInterval <= 0 {
		config.LogInterval = 5 * time.Second
	}
	return &Tracker{
		config: config,
		log:    logging.WithPhase("memdiag"),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
		phase:  "init",
	}
}

// Start begins periodic sampling if enabled. It is a no-op otherwise.
func (t *Tracker) Start() {
	if t.config.PprofAddr != "" {
		addr := t.config.PprofAddr
		go func() {
			t.log.Info().Str("addr", addr).Msg("starting pprof server")
			if err := http.ListenAndServe(addr, nil); err != nil { //nolint:gosec // debug endpoint
				t.log.Error().Err(err).Msg("pprof server failed")
			}
		}()
	}

	if !t.config.Enabled || !t.started.CompareAndSwap(false, true) {
		return
	}
	go t.loop()
}

// Stop stops sampling and logs a final sample.
func (t *Tracker) Stop() {
	if !t.started.Load() {
		return
	}
	close(t.stopCh)
	<-t.doneCh
}

// SetPhase labels subsequent samples.
func (t *Tracker) SetPhase(phase string) {
	t.mu.Lock()
	t.phase = phase
	t.mu.Unlock()
	t.Sample("phase_change")
}

// Sample reads the heap, updates the peak and logs at debug level when
// enabled.
func (t *Tracker) Sample(reason string) Stats {
	stats := Read()

	t.mu.Lock()
	if stats.HeapAlloc > t.peakHeap {
		t.peakHeap = stats.HeapAlloc
	}
	phase, peak := t.phase, t.peakHeap
	t.mu.Unlock()

	if t.config.Enabled {
		t.log.Debug().
			Str("reason", reason).
			Str("mem_phase", phase).
			Str("heap_alloc", humanfmt.Bytes(int64(stats.HeapAlloc))).
			Str("heap_inuse", humanfmt.Bytes(int64(stats.HeapInuse))).
			Str("sys_total", humanfmt.Bytes(int64(stats.Sys))).
			Str("peak_heap", humanfmt.Bytes(int64(peak))).
			Uint32("num_gc", stats.NumGC).
			Int("goroutines", stats.Goroutines).
			Msg("memory stats")
	}
	return stats
}

// PeakHeap returns the peak heap allocation seen.
func (t *Tracker) PeakHeap() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peakHeap
}

func (t *Tracker) loop() {
	defer close(t.doneCh)

	ticker := time.NewTicker(t.config.LogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			t.Sample("shutdown")
			return
		case <-ticker.C:
			t.Sample("periodic")
		}
	}
}
