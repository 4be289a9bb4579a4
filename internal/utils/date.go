// internal/utils/date.go
package utils

import (
	"time"
)

// HistoryStampLayout names timestamped history files.
const HistoryStampLayout = "20060102_150405"

func FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func HistoryStamp(t time.Time) string {
	return t.UTC().Format(HistoryStampLayout)
}

func ParseHistoryStamp(s string) (time.Time, error) {
	return time.ParseInLocation(HistoryStampLayout, s, time.UTC)
}

// IsOlderThan reports whether t lies more than d before now.
func IsOlderThan(t time.Time, d time.Duration, now time.Time) bool {
	return now.Sub(t) > d
}
