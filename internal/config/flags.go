package config

import (
	"github.com/spf13/pflag"

	"github.com/eunmann/s3-log-levels/pkg/levels"
	"github.com/eunmann/s3-log-levels/pkg/logscan"
)

// RegisterFlags defines every configuration flag on fs. Defaults shown in
// help match the built-in defaults; an unset flag never overrides the
// environment or config file.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("endpoint", "", "S3-compatible endpoint URL (env S3_ENDPOINT)")
	fs.String("access-key", "", "access key (env S3_ACCESS_KEY)")
	fs.String("secret-key", "", "secret key (env S3_SECRET_KEY)")
	fs.String("region", "us-east-1", "bucket region")
	fs.Bool("path-style", false, "force path-style addressing")
	fs.Int32("page-size", 0, "keys per list page (0 = service default)")

	fs.String("bucket", "log-bucket", "bucket holding the log objects")
	fs.String("prefix", "logs/", "key prefix to scan")
	fs.String("suffix", "", "only scan keys ending with this suffix")

	fs.Int("workers", logscan.DefaultWorkers, "number of concurrent workers")
	fs.Int("queue-size", -1, "job queue capacity (-1 = 2*workers, 0 = unbuffered)")
	fs.String("fetch-mode", FetchStream, "object fetch mode: stream or download")
	fs.Duration("timeout", 0, "abort the run after this long (0 = no limit)")

	fs.String("compression", string(levels.CompressionAuto), "object compression: auto, none, gzip, zstd")
	fs.String("encoding", string(levels.EncodingUTF8), "line encoding: utf-8, latin1, windows-1252, utf-16le, utf-16be, raw")
	fs.Int("max-line-bytes", levels.DefaultMaxLineBytes, "longest accepted line in bytes")

	fs.String("format", "text", "report format: text, json, yaml")
	fs.String("objects-out", "", "write per-object results to this parquet file")
	fs.String("price-table", "", "JSON request price table for list cost estimates")

	fs.Bool("debug", false, "enable debug logging")
	fs.Bool("human-logs", false, "human-friendly console logs")
}
