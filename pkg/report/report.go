// Package report renders scan results for humans and machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/eunmann/s3-log-levels/pkg/humanfmt"
	"github.com/eunmann/s3-log-levels/pkg/levels"
	"github.com/eunmann/s3-log-levels/pkg/logscan"
	"github.com/eunmann/s3-log-levels/pkg/pricing"
)

// Format selects the report encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown report format %q", s)
	}
}

// Summary is the serialized form of a scan result.
type Summary struct {
	RunID         string                `json:"run_id" yaml:"run_id"`
	Bucket        string                `json:"bucket" yaml:"bucket"`
	Prefix        string                `json:"prefix" yaml:"prefix"`
	Workers       int                   `json:"workers" yaml:"workers"`
	ElapsedMs     int64                 `json:"elapsed_ms" yaml:"elapsed_ms"`
	Counts        LevelCounts           `json:"counts" yaml:"counts"`
	KeysListed    int64                 `json:"keys_listed" yaml:"keys_listed"`
	KeysSkipped   int64                 `json:"keys_skipped" yaml:"keys_skipped"`
	ObjectsOK     int64                 `json:"objects_ok" yaml:"objects_ok"`
	ObjectsFailed int64                 `json:"objects_failed" yaml:"objects_failed"`
	Lines         int64                 `json:"lines" yaml:"lines"`
	Bytes         int64                 `json:"bytes" yaml:"bytes"`
	Failed        []Failure             `json:"failed,omitempty" yaml:"failed,omitempty"`
	PerWorker     []logscan.WorkerStats `json:"per_worker,omitempty" yaml:"per_worker,omitempty"`
}

// LevelCounts keeps the four levels in priority order when serialized.
type LevelCounts struct {
	Error   int64 `json:"ERROR" yaml:"ERROR"`
	Warning int64 `json:"WARNING" yaml:"WARNING"`
	Info    int64 `json:"INFO" yaml:"INFO"`
	Debug   int64 `json:"DEBUG" yaml:"DEBUG"`
}

// Failure is one object that contributed nothing.
type Failure struct {
	Key   string `json:"key" yaml:"key"`
	Error string `json:"error" yaml:"error"`
}

// NewLevelCounts converts a tally.
func NewLevelCounts(c levels.Counts) LevelCounts {
	return LevelCounts{
		Error:   c.Get(levels.Error),
		Warning: c.Get(levels.Warning),
		Info:    c.Get(levels.Info),
		Debug:   c.Get(levels.Debug),
	}
}

// Summarize converts a result into its serialized form.
func Summarize(res *logscan.Result) Summary {
	snap := res.Snapshot
	s := Summary{
		RunID:         res.RunID,
		Bucket:        res.Bucket,
		Prefix:        res.Prefix,
		Workers:       res.Workers,
		ElapsedMs:     res.Elapsed.Milliseconds(),
		Counts:        NewLevelCounts(snap.Counts),
		KeysListed:    res.KeysListed,
		KeysSkipped:   res.KeysSkipped,
		ObjectsOK:     snap.ObjectsOK,
		ObjectsFailed: snap.ObjectsFailed,
		Lines:         snap.Lines,
		Bytes:         snap.Bytes,
		PerWorker:     res.PerWorker,
	}
	for _, f := range snap.Failed {
		s.Failed = append(s.Failed, Failure{Key: f.Key, Error: f.Error})
	}
	return s
}

// Write renders res to w in format f.
func Write(w io.Writer, res *logscan.Result, f Format) error {
	if res == nil {
		return fmt.Errorf("nil result")
	}

	switch f {
	case FormatText, "":
		return writeText(w, res)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(Summarize(res)); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(Summarize(res)); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown report format %q", f)
	}
}

func writeText(w io.Writer, res *logscan.Result) error {
	snap := res.Snapshot

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Processing time:\t%s\n", humanfmt.Duration(res.Elapsed))
	for _, l := range levels.Levels() {
		fmt.Fprintf(tw, "%s:\t%d\n", l, snap.Counts.Get(l))
	}
	fmt.Fprintf(tw, "Objects:\t%d ok, %d failed (%s ok)\n",
		snap.ObjectsOK, snap.ObjectsFailed, humanfmt.Percent(snap.ObjectsOK, snap.ObjectsTotal()))
	fmt.Fprintf(tw, "Lines:\t%s (%s)\n", humanfmt.Count(snap.Lines), humanfmt.Rate(snap.Lines, res.Elapsed))
	fmt.Fprintf(tw, "Bytes:\t%s\n", humanfmt.Bytes(snap.Bytes))
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	if len(snap.Failed) == 0 {
		return nil
	}
	if _, err := fmt.Fprintf(w, "\nFailed objects (%d):\n", len(snap.Failed)); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	for _, f := range snap.Failed {
		if _, err := fmt.Fprintf(w, "  %s: %s\n", f.Key, f.Error); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	return nil
}

// WriteSurvey renders a listing summary with the estimated cost of scanning it.
func WriteSurvey(w io.Writer, sum *logscan.ListSummary, f Format) error {
	type survey struct {
		Bucket       string  `json:"bucket" yaml:"bucket"`
		Prefix       string  `json:"prefix" yaml:"prefix"`
		Keys         int64   `json:"keys" yaml:"keys"`
		Bytes        int64   `json:"bytes" yaml:"bytes"`
		Skipped      int64   `json:"skipped" yaml:"skipped"`
		ElapsedMs    int64   `json:"elapsed_ms" yaml:"elapsed_ms"`
		ListRequests int64   `json:"list_requests" yaml:"list_requests"`
		GetRequests  int64   `json:"get_requests" yaml:"get_requests"`
		CostUSD      float64 `json:"estimated_cost_usd" yaml:"estimated_cost_usd"`
	}
	s := survey{
		Bucket:       sum.Bucket,
		Prefix:       sum.Prefix,
		Keys:         sum.Keys,
		Bytes:        sum.Bytes,
		Skipped:      sum.Skipped,
		ElapsedMs:    sum.Elapsed.Milliseconds(),
		ListRequests: sum.Usage.ListRequests,
		GetRequests:  sum.Usage.GetRequests,
		CostUSD:      sum.Cost.TotalDollars(),
	}

	switch f {
	case FormatText, "":
		_, err := fmt.Fprintf(w, "s3://%s/%s: %s objects, %s, %d skipped (listed in %s)\n"+
			"estimated scan cost: %s (%d LIST, %d GET requests)\n",
			sum.Bucket, sum.Prefix, humanfmt.Count(sum.Keys), humanfmt.Bytes(sum.Bytes),
			sum.Skipped, humanfmt.Duration(sum.Elapsed),
			pricing.FormatCost(sum.Cost.TotalMicrodollars), sum.Usage.ListRequests, sum.Usage.GetRequests)
		return err
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(s)
	default:
		return fmt.Errorf("unknown report format %q", f)
	}
}
