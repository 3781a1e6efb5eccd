// Package time formats durations for log lines and error messages.
package time

import (
	"strings"
	"time"
)

// ShortDur shortens the string representation of a time.Duration from d.String().
func ShortDur(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	s := d.String()
	if strings.HasSuffix(s, "m0s") {
		s = s[:len(s)-2]
	}
	if strings.HasSuffix(s, "h0m") {
		s = s[:len(s)-2]
	}
	return s
}

// Since is ShortDur of the time elapsed since start, rounded to milliseconds.
func Since(start time.Time) string {
	return ShortDur(time.Since(start).Round(time.Millisecond))
}
