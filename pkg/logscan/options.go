package logscan

import (
	"errors"
	"fmt"
	"time"

	"github.com/eunmann/s3-log-levels/pkg/levels"
)

const (
	// DefaultWorkers is the pool size used when Options.Workers is zero.
	DefaultWorkers = 20
	// DefaultProgressInterval is how often a progress line is logged.
	DefaultProgressInterval = 10 * time.Second
	// QueueSizeAuto sizes the job queue at twice the worker count.
	QueueSizeAuto = -1
)

// Options controls a scan run.
type Options struct {
	// Bucket to list. Required.
	Bucket string

	// Prefix restricts listing to keys starting with it.
	Prefix string

	// Suffix, when set, skips keys that do not end with it.
	Suffix string

	// Workers is the number of concurrent workers, each with its own getter.
	// Default: 20
	Workers int

	// QueueSize is the job queue capacity. Zero is an unbuffered hand-off;
	// QueueSizeAuto picks 2 * Workers.
	QueueSize int

	// Timeout bounds the whole run. Zero means no deadline.
	Timeout time.Duration

	// ProgressInterval between progress log lines. Negative disables them.
	// Default: 10s
	ProgressInterval time.Duration

	// Levels configures decompression, decoding and line limits.
	Levels levels.Options

	// KeepObjects retains every per-object result in Result.Snapshot.Objects.
	KeepObjects bool
}

// DefaultOptions returns options for the default log bucket layout.
func DefaultOptions() Options {
	return Options{
		Bucket:           "log-bucket",
		Prefix:           "logs/",
		Workers:          DefaultWorkers,
		QueueSize:        QueueSizeAuto,
		ProgressInterval: DefaultProgressInterval,
		Levels:           levels.DefaultOptions(),
	}
}

// Validate fills zero values with defaults and rejects impossible settings.
func (o *Options) Validate() error {
	if o.Bucket == "" {
		return errors.New("bucket is required")
	}
	if o.Workers < 0 {
		return fmt.Errorf("workers must be >= 1, got %d", o.Workers)
	}
	if o.Workers == 0 {
		o.Workers = DefaultWorkers
	}
	if o.QueueSize == QueueSizeAuto {
		o.QueueSize = 2 * o.Workers
	}
	if o.QueueSize < 0 {
		return fmt.Errorf("queue size must be >= 0, got %d", o.QueueSize)
	}
	if o.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %s", o.Timeout)
	}
	if o.ProgressInterval == 0 {
		o.ProgressInterval = DefaultProgressInterval
	}
	if err := o.Levels.Validate(); err != nil {
		return fmt.Errorf("levels: %w", err)
	}
	return nil
}

// WithWorkers sets the worker count.
func (o Options) WithWorkers(n int) Options {
	o.Workers = n
	return o
}

// WithQueueSize sets the job queue capacity.
func (o Options) WithQueueSize(n int) Options {
	o.QueueSize = n
	return o
}

// WithTimeout sets the run deadline.
func (o Options) WithTimeout(d time.Duration) Options {
	o.Timeout = d
	return o
}

// TestOptions returns small options suitable for testing against bucket.
func TestOptions(bucket string) Options {
	return Options{
		Bucket:           bucket,
		Prefix:           "logs/",
		Workers:          2,
		QueueSize:        4,
		ProgressInterval: -1,
		Levels:           levels.DefaultOptions(),
	}
}
