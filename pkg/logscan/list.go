package logscan

import (
	"context"
	"fmt"
	"time"

	"github.com/eunmann/s3-log-levels/pkg/logging"
	"github.com/eunmann/s3-log-levels/pkg/objstore"
	"github.com/eunmann/s3-log-levels/pkg/pricing"
)

// DefaultListPageSize is the ListObjectsV2 page size assumed when pricing.
const DefaultListPageSize = 1000

// SurveyOptions selects the keys to survey and how a scan would fetch them.
type SurveyOptions struct {
	Bucket string
	Prefix string
	Suffix string
	// PageSize is the keys per LIST request. Default: 1000
	PageSize int
	// PartSize is the ranged GET size in download mode; 0 for streaming.
	PartSize int64
	// Prices used for the estimate. Default: us-east-1.
	Prices *pricing.PriceTable
}

// ListSummary describes the keys a scan would process and what fetching
// them would cost.
type ListSummary struct {
	Bucket  string
	Prefix  string
	Keys    int64
	Bytes   int64
	Skipped int64
	Elapsed time.Duration
	Usage   pricing.Usage
	Cost    pricing.CostResult
}

// Survey lists the prefix with the same filter as Scan without fetching
// any object.
func Survey(ctx context.Context, lister objstore.Lister, opts SurveyOptions) (*ListSummary, error) {
	log := logging.WithPhase("list")
	start := time.Now()

	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultListPageSize
	}
	prices := pricing.DefaultUSEast1Prices()
	if opts.Prices != nil {
		prices = *opts.Prices
	}

	sum := &ListSummary{Bucket: opts.Bucket, Prefix: opts.Prefix}
	var seen int64
	err := lister.List(ctx, opts.Bucket, opts.Prefix, func(obj objstore.ObjectInfo) error {
		seen++
		if !wantKey(obj.Key, opts.Suffix) {
			sum.Skipped++
			return nil
		}
		sum.Keys++
		sum.Bytes += obj.Size
		sum.Usage.GetRequests += pricing.GetsForObject(obj.Size, opts.PartSize)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list s3://%s/%s: %w", opts.Bucket, opts.Prefix, err)
	}
	sum.Elapsed = time.Since(start)

	sum.Usage.ListRequests = max(1, (seen+int64(pageSize)-1)/int64(pageSize))
	sum.Usage.Bytes = sum.Bytes
	sum.Cost = pricing.Estimate(sum.Usage, prices)

	logging.PhaseComplete(log, "list", sum.Elapsed).
		Count("keys", sum.Keys).
		Count("skipped", sum.Skipped).
		Bytes("bytes", sum.Bytes).
		Str("scan_cost", pricing.FormatCost(sum.Cost.TotalMicrodollars)).
		Log("listing complete")

	return sum, nil
}
