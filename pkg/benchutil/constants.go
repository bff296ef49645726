package benchutil

// BenchmarkSeed is the default seed for reproducible data generation.
const BenchmarkSeed = 42

// BenchmarkSizes are object counts for quick benchmark runs.
var BenchmarkSizes = []int{100, 1000}

// ScalingSizes are larger object counts, used with S3LOG_LONG_BENCH=1.
var ScalingSizes = []int{1000, 10000, 50000}

// WorkerCounts are the pool sizes compared by scaling benchmarks.
var WorkerCounts = []int{1, 4, 20, 64}
