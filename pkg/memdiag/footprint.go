package memdiag

// DefaultSystemMemory is assumed when physical memory cannot be detected.
const DefaultSystemMemory uint64 = 4 << 30

// SystemMemory returns physical memory in bytes. ok is false when the
// platform probe failed and DefaultSystemMemory is returned instead.
func SystemMemory() (total uint64, ok bool) {
	if n, ok := physicalMemory(); ok && n > 0 {
		return n, true
	}
	return DefaultSystemMemory, false
}

// Footprint is the worst-case buffer memory of a scan.
type Footprint struct {
	// PerWorker is the largest line buffer plus any download buffers one
	// worker can hold at once.
	PerWorker uint64
	Total     uint64
	System    uint64
	// Fits is false when Total exceeds half of System.
	Fits bool
}

// EstimateFootprint bounds the buffer memory of workers scanning lines of
// up to maxLineBytes. downloadBytes is the per-worker download buffer, zero
// when streaming.
func EstimateFootprint(workers, maxLineBytes int, downloadBytes int64) Footprint {
	if workers < 1 {
		workers = 1
	}
	per := uint64(max(maxLineBytes, 0)) + uint64(max(downloadBytes, 0))
	sys, _ := SystemMemory()
	total := per * uint64(workers)
	return Footprint{
		PerWorker: per,
		Total:     total,
		System:    sys,
		Fits:      total <= sys/2,
	}
}
