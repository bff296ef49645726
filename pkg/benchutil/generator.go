// Package benchutil provides synthetic log objects for benchmarks and tests.
package benchutil

import (
	"bytes"
	"fmt"
	"math/rand"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/eunmann/s3-log-levels/pkg/levels"
	"github.com/eunmann/s3-log-levels/pkg/objstore"
)

// FakeObject is a synthetic log object together with the tally a correct
// scan must produce for it.
type FakeObject struct {
	Key   string
	Body  []byte
	Lines int
	Want  levels.Counts
}

// GeneratorConfig configures synthetic log generation.
type GeneratorConfig struct {
	// NumObjects is the number of objects to generate.
	NumObjects int
	// Prefix is prepended to every key, e.g. "logs/".
	Prefix string
	// MinLines and MaxLines bound the line count per object (inclusive).
	MinLines int
	MaxLines int
	// LevelWeights maps each level to its relative frequency. Missing
	// levels never appear. If nil, levels are uniform.
	LevelWeights map[levels.Level]float64
	// UnmarkedRatio is the share of lines carrying no level marker.
	UnmarkedRatio float64
	// DoubleMarkedRatio is the share of lines carrying two markers; only
	// the higher-priority one counts.
	DoubleMarkedRatio float64
	// GzipRatio is the share of objects stored gzip-compressed with a .gz key.
	GzipRatio float64
	// Seed for reproducible generation. 0 = use default seed.
	Seed int64
}

// DefaultConfig mirrors the classic seeding job: uniform levels, fixed
// line count, plain text.
func DefaultConfig(numObjects int) GeneratorConfig {
	return GeneratorConfig{
		NumObjects: numObjects,
		Prefix:     "logs/",
		MinLines:   100,
		MaxLines:   100,
		Seed:       BenchmarkSeed,
	}
}

// RealisticConfig skews toward INFO and DEBUG, adds unmarked noise and
// a mix of compressed objects.
func RealisticConfig(numObjects int) GeneratorConfig {
	return GeneratorConfig{
		NumObjects: numObjects,
		Prefix:     "logs/",
		MinLines:   10,
		MaxLines:   2000,
		LevelWeights: map[levels.Level]float64{
			levels.Error:   0.02,
			levels.Warning: 0.08,
			levels.Info:    0.60,
			levels.Debug:   0.30,
		},
		UnmarkedRatio:     0.05,
		DoubleMarkedRatio: 0.01,
		GzipRatio:         0.3,
		Seed:              BenchmarkSeed,
	}
}

// Generator generates synthetic log objects.
type Generator struct {
	cfg     GeneratorConfig
	rng     *rand.Rand
	weights []float64
}

// NewGenerator creates a new data generator.
func NewGenerator(cfg GeneratorConfig) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = BenchmarkSeed
	}
	if cfg.MinLines < 0 {
		cfg.MinLines = 0
	}
	if cfg.MaxLines < cfg.MinLines {
		cfg.MaxLines = cfg.MinLines
	}

	weights := make([]float64, len(levels.Levels()))
	for i, l := range levels.Levels() {
		if cfg.LevelWeights == nil {
			weights[i] = 1
		} else {
			weights[i] = cfg.LevelWeights[l]
		}
	}

	return &Generator{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(seed)),
		weights: weights,
	}
}

// Generate returns NumObjects synthetic objects with unique keys.
func (g *Generator) Generate() []FakeObject {
	objects := make([]FakeObject, g.cfg.NumObjects)
	for i := range objects {
		objects[i] = g.generateObject(i)
	}
	return objects
}

// Populate writes the generated objects into store and returns them with
// the expected grand total.
func (g *Generator) Populate(store *objstore.MemStore, bucket string) ([]FakeObject, levels.Counts) {
	objects := g.Generate()
	var total levels.Counts
	for _, obj := range objects {
		store.Put(bucket, obj.Key, obj.Body)
		total.Merge(obj.Want)
	}
	return objects, total
}

func (g *Generator) generateObject(i int) FakeObject {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i%365)
	key := fmt.Sprintf("%s%s/log_file_%06d.log", g.cfg.Prefix, day.Format("2006/01/02"), i)

	lines := g.cfg.MinLines
	if span := g.cfg.MaxLines - g.cfg.MinLines; span > 0 {
		lines += g.rng.Intn(span + 1)
	}

	var buf bytes.Buffer
	var want levels.Counts
	ts := day
	for n := 0; n < lines; n++ {
		ts = ts.Add(time.Duration(g.rng.Intn(5000)) * time.Millisecond)
		stamp := ts.Format(time.RFC3339Nano)

		r := g.rng.Float64()
		switch {
		case r < g.cfg.UnmarkedRatio:
			fmt.Fprintf(&buf, "%s continuation of previous entry id=%d\n", stamp, g.rng.Intn(1_000_000))
		case r < g.cfg.UnmarkedRatio+g.cfg.DoubleMarkedRatio:
			a, b := g.pickLevel(), g.pickLevel()
			winner := a
			if b < a {
				winner = b
			}
			want.Add(winner)
			fmt.Fprintf(&buf, "%s %s upstream reported %s\n", stamp, a.Marker(), b.Marker())
		default:
			l := g.pickLevel()
			want.Add(l)
			fmt.Fprintf(&buf, "%s %s Some log message here... req=%08x\n", stamp, l.Marker(), g.rng.Uint32())
		}
	}

	body := buf.Bytes()
	if g.cfg.GzipRatio > 0 && g.rng.Float64() < g.cfg.GzipRatio {
		key += ".gz"
		body = gzipBytes(body)
	}

	return FakeObject{Key: key, Body: body, Lines: lines, Want: want}
}

func (g *Generator) pickLevel() levels.Level {
	var sum float64
	for _, w := range g.weights {
		sum += w
	}
	if sum <= 0 {
		return levels.Info
	}

	r := g.rng.Float64() * sum
	for i, w := range g.weights {
		if r < w {
			return levels.Level(i)
		}
		r -= w
	}
	return levels.Level(len(g.weights) - 1)
}

func gzipBytes(data []byte) []byte {
	var buf bytes.Buffer
	gzw := gzip.NewWriter(&buf)
	// Writes to a bytes.Buffer cannot fail.
	_, _ = gzw.Write(data)
	_ = gzw.Close()
	return buf.Bytes()
}

// AlternatingObject builds an object whose lines alternate between the two
// given levels, starting with a.
func AlternatingObject(key string, lines int, a, b levels.Level) FakeObject {
	var buf bytes.Buffer
	var want levels.Counts
	for i := 0; i < lines; i++ {
		l := a
		if i%2 == 1 {
			l = b
		}
		want.Add(l)
		fmt.Fprintf(&buf, "%s line %d\n", l.Marker(), i)
	}
	return FakeObject{Key: key, Body: buf.Bytes(), Lines: lines, Want: want}
}
