package benchutil

import (
	"os"
	"testing"

	"github.com/eunmann/s3-log-levels/pkg/levels"
)

// SkipIfNoLongBench skips the benchmark if S3LOG_LONG_BENCH is not set.
func SkipIfNoLongBench(b *testing.B) {
	if os.Getenv("S3LOG_LONG_BENCH") == "" {
		b.Skip("set S3LOG_LONG_BENCH=1 to run scaling benchmark")
	}
}

// Totals is the combined expectation for a set of generated objects.
type Totals struct {
	Counts  levels.Counts
	Lines   int64
	Objects int64
}

// SumWant returns the combined expected tally of objects.
func SumWant(objects []FakeObject) Totals {
	var total Totals
	for _, obj := range objects {
		total.Counts.Merge(obj.Want)
		total.Lines += int64(obj.Lines)
	}
	total.Objects = int64(len(objects))
	return total
}
