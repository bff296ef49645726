// Package levels classifies log lines by severity and tallies them.
package levels

import (
	"bytes"
	"fmt"
	"strings"
)

// Level is one of the four tracked severities. The numeric order is the
// classification priority: a line carrying several markers counts toward
// the lowest-numbered level only.
type Level uint8

const (
	Error Level = iota
	Warning
	Info
	Debug

	numLevels = 4
)

var (
	labels  = [numLevels]string{"ERROR", "WARNING", "INFO", "DEBUG"}
	markers = [numLevels][]byte{
		[]byte("[ERROR]"),
		[]byte("[WARNING]"),
		[]byte("[INFO]"),
		[]byte("[DEBUG]"),
	}
)

// Levels returns all levels in priority order.
func Levels() []Level {
	return []Level{Error, Warning, Info, Debug}
}

// String returns the level label, e.g. "ERROR".
func (l Level) String() string {
	if l >= numLevels {
		return fmt.Sprintf("Level(%d)", uint8(l))
	}
	return labels[l]
}

// Marker returns the bracketed token that identifies the level in a line.
func (l Level) Marker() string {
	if l >= numLevels {
		return ""
	}
	return string(markers[l])
}

// ParseLevel parses a level label, case-insensitively.
func ParseLevel(s string) (Level, error) {
	for i, label := range labels {
		if strings.EqualFold(s, label) {
			return Level(i), nil
		}
	}
	return 0, fmt.Errorf("unknown level %q", s)
}

// Classify returns the level of the first marker found in priority order.
// Lines without any marker report false and must not be counted.
func Classify(line []byte) (Level, bool) {
	for i, m := range markers {
		if bytes.Contains(line, m) {
			return Level(i), true
		}
	}
	return 0, false
}

// Counts is a tally of lines per level. The zero value is an empty tally.
type Counts [numLevels]int64

// Add increments the count for l by one.
func (c *Counts) Add(l Level) {
	c[l]++
}

// AddN increments the count for l by n.
func (c *Counts) AddN(l Level, n int64) {
	c[l] += n
}

// Merge adds every count of other into c.
func (c *Counts) Merge(other Counts) {
	for i := range c {
		c[i] += other[i]
	}
}

// Get returns the count for l.
func (c Counts) Get(l Level) int64 {
	return c[l]
}

// Total returns the number of classified lines.
func (c Counts) Total() int64 {
	var n int64
	for _, v := range c {
		n += v
	}
	return n
}

// IsZero reports whether no line has been counted.
func (c Counts) IsZero() bool {
	return c == Counts{}
}

// Map returns the counts keyed by level label.
func (c Counts) Map() map[string]int64 {
	m := make(map[string]int64, numLevels)
	for i, v := range c {
		m[labels[i]] = v
	}
	return m
}

// String renders the counts as "ERROR=1 WARNING=0 INFO=2 DEBUG=0".
func (c Counts) String() string {
	var sb strings.Builder
	for i, v := range c {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%s=%d", labels[i], v)
	}
	return sb.String()
}
