package report

import (
	"fmt"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/eunmann/s3-log-levels/pkg/aggregate"
	"github.com/eunmann/s3-log-levels/pkg/fileutil"
	"github.com/eunmann/s3-log-levels/pkg/levels"
	"github.com/eunmann/s3-log-levels/pkg/logging"
)

// ObjectRow is one per-object record in the parquet export.
type ObjectRow struct {
	Key        string `parquet:"key"`
	Worker     int32  `parquet:"worker"`
	Error      int64  `parquet:"error_count"`
	Warning    int64  `parquet:"warning_count"`
	Info       int64  `parquet:"info_count"`
	Debug      int64  `parquet:"debug_count"`
	Lines      int64  `parquet:"lines"`
	Bytes      int64  `parquet:"bytes"`
	DurationMs int64  `parquet:"duration_ms"`
	Failure    string `parquet:"failure,optional"`
}

// NewObjectRow converts a per-object result.
func NewObjectRow(o aggregate.ObjectResult) ObjectRow {
	row := ObjectRow{
		Key:        o.Key,
		Worker:     int32(o.Worker),
		Error:      o.Counts.Get(levels.Error),
		Warning:    o.Counts.Get(levels.Warning),
		Info:       o.Counts.Get(levels.Info),
		Debug:      o.Counts.Get(levels.Debug),
		Lines:      o.Lines,
		Bytes:      o.Bytes,
		DurationMs: o.Duration.Milliseconds(),
	}
	if o.Err != nil {
		row.Failure = o.Err.Error()
	}
	return row
}

// WriteObjectsParquet writes one row per object to path. The file is
// replaced atomically; leftovers of interrupted earlier writes are removed.
func WriteObjectsParquet(path string, objects []aggregate.ObjectResult) error {
	rows := make([]ObjectRow, len(objects))
	for i, o := range objects {
		rows[i] = NewObjectRow(o)
	}

	log := logging.WithPhase("report")
	if _, err := fileutil.CleanupPartial(filepath.Dir(path), filepath.Base(path)); err != nil {
		log.Debug().Err(err).Str("path", path).Msg("cleanup of partial parquet files failed")
	}
	if fileutil.Exists(path) {
		log.Debug().Str("path", path).Msg("replacing existing parquet file")
	}

	err := fileutil.WriteAtomic(path, func(tmpPath string) error {
		return parquet.WriteFile(tmpPath, rows)
	})
	if err != nil {
		return fmt.Errorf("write parquet %s: %w", path, err)
	}
	return nil
}
