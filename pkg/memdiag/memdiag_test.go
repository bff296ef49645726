package memdiag

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSystemMemory(t *testing.T) {
	total, ok := SystemMemory()
	assert.Positive(t, total)
	if !ok {
		assert.Equal(t, DefaultSystemMemory, total)
	}
	t.Logf("system memory: %d bytes, detected=%v", total, ok)
}

func TestEstimateFootprint(t *testing.T) {
	fp := EstimateFootprint(20, 1<<20, 0)
	assert.Equal(t, uint64(1<<20), fp.PerWorker)
	assert.Equal(t, uint64(20<<20), fp.Total)
	assert.True(t, fp.Fits, "20 MiB of line buffers fits any host")

	huge := EstimateFootprint(1<<20, 1<<30, 64<<20)
	assert.False(t, huge.Fits)

	zero := EstimateFootprint(0, -1, -1)
	assert.Zero(t, zero.Total)
}

func TestTrackerPeak(t *testing.T) {
	tr := NewTracker(Config{Enabled: true, LogInterval: 10 * time.Millisecond})
	tr.Start()
	tr.SetPhase("scan")
	buf := make([]byte, 8<<20)
	buf[len(buf)-1] = 1
	tr.Sample("test")
	tr.Stop()

	assert.Positive(t, tr.PeakHeap())
	_ = buf
}

func TestTrackerDisabledIsNoop(t *testing.T) {
	tr := NewTracker(Config{})
	tr.Start()
	tr.Stop()
	stats := tr.Sample("manual")
	assert.Positive(t, stats.Goroutines)
}
