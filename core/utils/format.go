package utils

import (
	"fmt"
	"time"
)

// FormatDuration renders a duration the way a human waits for it:
// "42s", "3m02s", "1h02m03s". Sub-second durations round up to 1s so
// "wait 0s" never appears.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := int64(d.Round(time.Second) / time.Second)
	if seconds == 0 && d > 0 {
		seconds = 1
	}
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm%02ds", seconds/60, seconds%60)
	default:
		return fmt.Sprintf("%dh%02dm%02ds", seconds/3600, (seconds%3600)/60, seconds%60)
	}
}

// Plural returns "" for a count of one and "s" otherwise.
func Plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
