package persistence

import (
	"math"
	"time"
)

// Node timestamps are stored as unix milliseconds in SQLite and as fractional
// unix seconds in nodes.json. The zero time maps to 0 in both encodings and
// both round-trip at millisecond precision.

func timeToUnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}

	return t.UnixMilli()
}

func unixMillisToTime(v int64) time.Time {
	if v <= 0 {
		return time.Time{}
	}

	return time.UnixMilli(v)
}

func timeToUnixSeconds(t time.Time) float64 {
	return float64(timeToUnixMillis(t)) / 1000
}

func unixSecondsToTime(v float64) time.Time {
	if v <= 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return time.Time{}
	}

	return unixMillisToTime(int64(math.Round(v * 1000)))
}
