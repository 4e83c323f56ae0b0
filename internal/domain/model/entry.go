// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"strings"
	"time"
)

// TicksPerSecond is the number of 100ns run-time ticks in one second.
const TicksPerSecond = 10_000_000

// DefaultInitials is stored when a submission carries no usable initials.
const DefaultInitials = "???"

// Entry is one normalized score submission. Field names on the wire follow the
// game client's payload.
type Entry struct {
	ID           string `json:"id"`           // idempotency token and primary key
	Initials     string `json:"initials"`     // 1-3 uppercase characters
	Level        int64  `json:"level"`        // highest level reached, >= 0
	RunTimeTicks int64  `json:"runTimeTicks"` // run duration in 100ns ticks, >= 0
	Victory      bool   `json:"victory"`
	TimestampUTC string `json:"timestampUtc"` // as submitted
}

// RunTime converts RunTimeTicks to a duration.
func (e Entry) RunTime() time.Duration {
	return time.Duration(e.RunTimeTicks) * 100 * time.Nanosecond
}

// RecordedAt parses TimestampUTC, falling back to fallback when it is not a
// recognizable ISO-8601 value.
func (e Entry) RecordedAt(fallback time.Time) time.Time {
	if ts, ok := ParseTimestamp(e.TimestampUTC); ok {
		return ts
	}
	return fallback.UTC()
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses an ISO-8601 timestamp. Values without an offset are
// taken as UTC. The second result is false when no layout matches.
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatTicks renders ticks as MM:SS.mmm, or "-" when no time was recorded.
func FormatTicks(ticks int64) string {
	if ticks <= 0 {
		return "-"
	}
	ms := ticks / (TicksPerSecond / 1000)
	minutes := ms / 60_000
	seconds := (ms / 1000) % 60
	return fmt.Sprintf("%02d:%02d.%03d", minutes, seconds, ms%1000)
}
