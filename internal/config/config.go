// Package config loads s3log-levels settings from defaults, an optional
// config file, environment variables and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/eunmann/s3-log-levels/pkg/levels"
	"github.com/eunmann/s3-log-levels/pkg/logscan"
	"github.com/eunmann/s3-log-levels/pkg/objstore"
	"github.com/eunmann/s3-log-levels/pkg/report"
)

const (
	EnvPrefix         = "S3LOG"
	DefaultConfigName = "s3log-levels"
)

// Fetch modes.
const (
	FetchStream   = "stream"
	FetchDownload = "download"
)

// Config is the merged process configuration.
type Config struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Region    string `mapstructure:"region"`
	PathStyle bool   `mapstructure:"path_style"`
	PageSize  int32  `mapstructure:"page_size"`

	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
	Suffix string `mapstructure:"suffix"`

	Workers   int           `mapstructure:"workers"`
	QueueSize int           `mapstructure:"queue_size"`
	FetchMode string        `mapstructure:"fetch_mode"`
	Timeout   time.Duration `mapstructure:"timeout"`

	Compression  string `mapstructure:"compression"`
	Encoding     string `mapstructure:"encoding"`
	MaxLineBytes int    `mapstructure:"max_line_bytes"`

	Format     string `mapstructure:"format"`
	ObjectsOut string `mapstructure:"objects_out"`
	PriceTable string `mapstructure:"price_table"`

	Debug     bool `mapstructure:"debug"`
	HumanLogs bool `mapstructure:"human_logs"`

	// ConfigFileUsed is the file that was read, if any.
	ConfigFileUsed string `mapstructure:"-"`
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"endpoint":       "endpoint",
	"access-key":     "access_key",
	"secret-key":     "secret_key",
	"region":         "region",
	"path-style":     "path_style",
	"page-size":      "page_size",
	"bucket":         "bucket",
	"prefix":         "prefix",
	"suffix":         "suffix",
	"workers":        "workers",
	"queue-size":     "queue_size",
	"fetch-mode":     "fetch_mode",
	"timeout":        "timeout",
	"compression":    "compression",
	"encoding":       "encoding",
	"max-line-bytes": "max_line_bytes",
	"format":         "format",
	"objects-out":    "objects_out",
	"price-table":    "price_table",
	"debug":          "debug",
	"human-logs":     "human_logs",
}

// Credentials and endpoint also honour the unprefixed names used by
// S3-compatible tooling.
var extraEnv = map[string][]string{
	"endpoint":   {"S3LOG_ENDPOINT", "S3_ENDPOINT"},
	"access_key": {"S3LOG_ACCESS_KEY", "S3_ACCESS_KEY"},
	"secret_key": {"S3LOG_SECRET_KEY", "S3_SECRET_KEY"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("endpoint", "")
	v.SetDefault("access_key", "")
	v.SetDefault("secret_key", "")
	v.SetDefault("region", "us-east-1")
	v.SetDefault("path_style", false)
	v.SetDefault("page_size", 0)
	v.SetDefault("bucket", "log-bucket")
	v.SetDefault("prefix", "logs/")
	v.SetDefault("suffix", "")
	v.SetDefault("workers", logscan.DefaultWorkers)
	v.SetDefault("queue_size", logscan.QueueSizeAuto)
	v.SetDefault("fetch_mode", FetchStream)
	v.SetDefault("timeout", time.Duration(0))
	v.SetDefault("compression", string(levels.CompressionAuto))
	v.SetDefault("encoding", string(levels.EncodingUTF8))
	v.SetDefault("max_line_bytes", levels.DefaultMaxLineBytes)
	v.SetDefault("format", string(report.FormatText))
	v.SetDefault("objects_out", "")
	v.SetDefault("price_table", "")
	v.SetDefault("debug", false)
	v.SetDefault("human_logs", false)
}

// Load merges defaults, the config file, environment and flags. cfgFile may
// be empty, in which case the standard locations are searched and a missing
// file is not an error. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	var cfg Config
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName(DefaultConfigName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", DefaultConfigName))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || cfgFile != "" {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, names := range extraEnv {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return cfg, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return cfg, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	cfg.ConfigFileUsed = v.ConfigFileUsed()

	if cfg.QueueSize == logscan.QueueSizeAuto {
		cfg.QueueSize = 2 * cfg.Workers
	}
	return cfg, nil
}

// Validate rejects settings the scan cannot run with.
func (c *Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("bucket must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("queue_size must be >= 0, got %d", c.QueueSize)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must be >= 0, got %s", c.Timeout)
	}
	if c.MaxLineBytes < 0 {
		return fmt.Errorf("max_line_bytes must be >= 0, got %d", c.MaxLineBytes)
	}
	if c.PageSize < 0 || c.PageSize > 1000 {
		return fmt.Errorf("page_size must be between 0 and 1000, got %d", c.PageSize)
	}

	switch strings.ToLower(c.FetchMode) {
	case FetchStream, FetchDownload:
		c.FetchMode = strings.ToLower(c.FetchMode)
	default:
		return fmt.Errorf("unknown fetch_mode %q (want %s or %s)", c.FetchMode, FetchStream, FetchDownload)
	}

	if _, err := report.ParseFormat(c.Format); err != nil {
		return err
	}

	lv := c.LevelOptions()
	if err := lv.Validate(); err != nil {
		return err
	}
	return nil
}

// LevelOptions returns the line scanning options.
func (c *Config) LevelOptions() levels.Options {
	return levels.Options{
		Compression:  levels.Compression(c.Compression),
		Encoding:     levels.Encoding(c.Encoding),
		MaxLineBytes: c.MaxLineBytes,
	}
}

// ScanOptions returns the options for a scan run.
func (c *Config) ScanOptions() logscan.Options {
	return logscan.Options{
		Bucket:           c.Bucket,
		Prefix:           c.Prefix,
		Suffix:           c.Suffix,
		Workers:          c.Workers,
		QueueSize:        c.QueueSize,
		Timeout:          c.Timeout,
		ProgressInterval: logscan.DefaultProgressInterval,
		Levels:           c.LevelOptions(),
		KeepObjects:      c.ObjectsOut != "",
	}
}

// StoreConfig returns the object store connection settings.
func (c *Config) StoreConfig() objstore.Config {
	return objstore.Config{
		Endpoint:  c.Endpoint,
		Region:    c.Region,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		PathStyle: c.PathStyle,
		PageSize:  c.PageSize,
	}
}

// ReportFormat returns the validated report format.
func (c *Config) ReportFormat() report.Format {
	f, err := report.ParseFormat(c.Format)
	if err != nil {
		return report.FormatText
	}
	return f
}
