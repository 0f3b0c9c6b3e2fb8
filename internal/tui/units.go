package tui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"streamcharts/internal/analysis"
)

// formatValue formats a chart value for its units
func formatValue(units string, v float64) string {
	switch {
	case strings.HasPrefix(units, "min/"):
		return formatPace(v)
	case units == "BPM", units == "Watts", units == "RPM", units == "Samples",
		units == "Threats", units == "%":
		return fmt.Sprintf("%.0f", v)
	case units == "Seconds":
		return formatDuration(v)
	default:
		return fmt.Sprintf("%.1f", v)
	}
}

// formatPace formats decimal minutes as M:SS
func formatPace(minutes float64) string {
	if minutes <= 0 {
		return analysis.NoValue
	}
	mins := math.Trunc(minutes)
	secs := math.Round((minutes - mins) * 60)
	if secs >= 60 {
		mins++
		secs -= 60
	}
	return fmt.Sprintf("%d:%02d", int64(mins), int64(secs))
}

// formatDuration formats seconds as M:SS or H:MM:SS
func formatDuration(seconds float64) string {
	total := int64(math.Round(seconds))
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// formatClock formats an epoch millisecond timestamp as local wall time
func formatClock(ms int64) string {
	return time.UnixMilli(ms).Format("15:04:05")
}
