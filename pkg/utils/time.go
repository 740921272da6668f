package utils

import "time"

// Now returns the current time in UTC timezone
func Now() time.Time {
	return time.Now().UTC()
}

// FormatISO8601 formats a time.Time to ISO8601 format in UTC
func FormatISO8601(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// WholeDaysBetween returns the number of complete 24h periods from -> to.
// Negative spans yield 0.
func WholeDaysBetween(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	return int(to.Sub(from) / (24 * time.Hour))
}
