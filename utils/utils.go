package utils

import (
	"fmt"
	"strconv"
)

// ParseThreshold parses and validates a similarity threshold in [0,1].
func ParseThreshold(thresholdStr string) (float64, error) {
	parsed, err := strconv.ParseFloat(thresholdStr, 64)
	if err != nil || parsed < 0 || parsed > 1 {
		return 0, fmt.Errorf("invalid threshold value '%s', expected a number in [0,1]", thresholdStr)
	}
	return parsed, nil
}

// FormatBytes renders a byte count in human-readable units.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// Truncate shortens a path for single-line display, keeping the tail.
func Truncate(s string, max int) string {
	if len(s) <= max || max < 4 {
		return s
	}
	return "..." + s[len(s)-(max-3):]
}
