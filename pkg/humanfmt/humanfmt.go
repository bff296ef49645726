// Package humanfmt renders byte sizes, durations, counts and rates for
// reports and pretty-mode log fields.
package humanfmt

import (
	"fmt"
	"strconv"
	"time"
)

// Binary (IEC) units for bytes.
const (
	KiB = 1024
	MiB = 1024 * KiB
	GiB = 1024 * MiB
	TiB = 1024 * GiB
)

type unit struct {
	size   float64
	suffix string
}

var (
	byteUnits  = []unit{{TiB, "TiB"}, {GiB, "GiB"}, {MiB, "MiB"}, {KiB, "KiB"}}
	countUnits = []unit{{1e9, "B"}, {1e6, "M"}, {1e3, "K"}}
)

// scale picks the largest unit not exceeding v. ok is false when v is below
// every unit.
func scale(v float64, units []unit) (float64, string, bool) {
	for _, u := range units {
		if v >= u.size {
			return v / u.size, u.suffix, true
		}
	}
	return v, "", false
}

// Bytes formats a byte count using IEC binary units, e.g. "1.23 GiB".
func Bytes(b int64) string {
	if b < 0 {
		return fmt.Sprintf("%d B", b)
	}
	if v, suffix, ok := scale(float64(b), byteUnits); ok {
		return fmt.Sprintf("%.2f %s", v, suffix)
	}
	return fmt.Sprintf("%d B", b)
}

// Duration formats d compactly.
// Examples: "1.23s", "45.6ms", "789µs", "1m30s", "2h15m".
func Duration(d time.Duration) string {
	if d < 0 {
		return d.String()
	}

	switch {
	case d >= time.Hour:
		h, m := d/time.Hour, (d%time.Hour)/time.Minute
		if m == 0 {
			return fmt.Sprintf("%dh", h)
		}
		return fmt.Sprintf("%dh%dm", h, m)
	case d >= time.Minute:
		m, s := d/time.Minute, (d%time.Minute)/time.Second
		if s == 0 {
			return fmt.Sprintf("%dm", m)
		}
		return fmt.Sprintf("%dm%ds", m, s)
	case d >= time.Second:
		return fmt.Sprintf("%.2fs", d.Seconds())
	case d >= time.Millisecond:
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	case d >= time.Microsecond:
		return fmt.Sprintf("%.1fµs", float64(d)/float64(time.Microsecond))
	default:
		return fmt.Sprintf("%dns", d.Nanoseconds())
	}
}

// Throughput formats bytes per duration, e.g. "123.40 MiB/s".
func Throughput(bytes int64, d time.Duration) string {
	if d <= 0 {
		return "∞"
	}
	bps := float64(bytes) / d.Seconds()
	if v, suffix, ok := scale(bps, byteUnits); ok {
		return fmt.Sprintf("%.2f %s/s", v, suffix)
	}
	return fmt.Sprintf("%.0f B/s", bps)
}

// Count formats n with decimal suffixes.
// Examples: "1.23M", "456.00K", "789".
func Count(n int64) string {
	if n < 0 {
		return strconv.FormatInt(n, 10)
	}
	if v, suffix, ok := scale(float64(n), countUnits); ok {
		return fmt.Sprintf("%.2f%s", v, suffix)
	}
	return strconv.FormatInt(n, 10)
}

// Rate formats items per second, e.g. "1.50K/s" lines or "12.3/s" objects.
func Rate(n int64, d time.Duration) string {
	if d <= 0 {
		return "∞"
	}
	perSec := float64(n) / d.Seconds()
	if v, suffix, ok := scale(perSec, countUnits); ok {
		return fmt.Sprintf("%.2f%s/s", v, suffix)
	}
	return fmt.Sprintf("%.1f/s", perSec)
}

// Percent formats part/total as a percentage with one decimal. A zero total
// yields "0.0%".
func Percent(part, total int64) string {
	if total <= 0 {
		return "0.0%"
	}
	return fmt.Sprintf("%.1f%%", float64(part)*100/float64(total))
}
