// Package pricing estimates the S3 request and transfer cost of a scan.
package pricing

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// PriceTable holds USD prices for the requests a scan issues.
type PriceTable struct {
	// ListPer1000 is the price of 1,000 LIST requests.
	ListPer1000 float64 `json:"list_per_1000"`
	// GetPer1000 is the price of 1,000 GET requests.
	GetPer1000 float64 `json:"get_per_1000"`
	// TransferPerGB is the egress price per GB. Zero when the scan runs
	// in the bucket's region.
	TransferPerGB float64 `json:"transfer_per_gb"`
}

// DefaultUSEast1Prices returns S3 Standard prices for us-east-1 with
// internet egress (as of 2025). These are approximate and should be
// updated regularly.
func DefaultUSEast1Prices() PriceTable {
	return PriceTable{
		ListPer1000:   0.005,
		GetPer1000:    0.0004,
		TransferPerGB: 0.09,
	}
}

// LoadPriceTable loads a price table from a JSON file.
func LoadPriceTable(path string) (PriceTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PriceTable{}, fmt.Errorf("read price table: %w", err)
	}

	var pt PriceTable
	if err := json.Unmarshal(data, &pt); err != nil {
		return PriceTable{}, fmt.Errorf("parse price table: %w", err)
	}
	return pt, nil
}

// Usage counts what a scan does against the bucket.
type Usage struct {
	ListRequests int64
	GetRequests  int64
	Bytes        int64
}

// CostResult is an estimate in microdollars (1 USD = 1,000,000).
type CostResult struct {
	ListMicrodollars     uint64
	GetMicrodollars      uint64
	TransferMicrodollars uint64
	TotalMicrodollars    uint64
}

// TotalDollars returns the total cost in dollars.
func (r CostResult) TotalDollars() float64 {
	return float64(r.TotalMicrodollars) / 1_000_000
}

const bytesPerGB = 1024 * 1024 * 1024

// Estimate prices u with pt.
func Estimate(u Usage, pt PriceTable) CostResult {
	var r CostResult
	r.ListMicrodollars = microdollars(float64(u.ListRequests) * pt.ListPer1000 / 1000)
	r.GetMicrodollars = microdollars(float64(u.GetRequests) * pt.GetPer1000 / 1000)
	r.TransferMicrodollars = microdollars(float64(u.Bytes) / bytesPerGB * pt.TransferPerGB)
	r.TotalMicrodollars = r.ListMicrodollars + r.GetMicrodollars + r.TransferMicrodollars
	return r
}

func microdollars(dollars float64) uint64 {
	if dollars <= 0 {
		return 0
	}
	return uint64(math.Round(dollars * 1_000_000))
}

// GetsForObject returns the GET requests needed to fetch size bytes. A
// partSize <= 0 means one streamed GET; otherwise one ranged GET per part.
func GetsForObject(size, partSize int64) int64 {
	if partSize <= 0 || size <= partSize {
		return 1
	}
	return (size + partSize - 1) / partSize
}

// FormatCost formats a cost in microdollars as a human-readable string.
func FormatCost(microdollars uint64) string {
	dollars := float64(microdollars) / 1_000_000

	switch {
	case dollars < 0.01:
		return fmt.Sprintf("$%.6f", dollars)
	case dollars < 1:
		return fmt.Sprintf("$%.4f", dollars)
	case dollars < 100:
		return fmt.Sprintf("$%.2f", dollars)
	default:
		return fmt.Sprintf("$%.0f", dollars)
	}
}
