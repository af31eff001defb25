// Package present formats values for human display.
package present

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/patrickspencer/pipewatch/internal/aggregate"
)

// NotAvailable is shown in place of an undefined value.
const NotAvailable = "N/A"

// InvalidDate is shown in place of a timestamp that cannot be parsed.
const InvalidDate = "Invalid Date"

// DisplayLayout renders times as e.g. "6/10/2024, 2:05:09 PM".
const DisplayLayout = "1/2/2006, 3:04:05 PM"

// FormatDuration renders seconds in the largest fitting unit with one
// decimal. The unit is chosen from the raw value, so 59.96 renders as
// "60.0s" rather than "1.0m".
func FormatDuration(seconds float64) string {
	switch {
	case math.IsNaN(seconds) || math.IsInf(seconds, 0):
		return NotAvailable
	case seconds < 60:
		return fmt.Sprintf("%.1fs", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%.1fm", seconds/60)
	default:
		return fmt.Sprintf("%.1fh", seconds/3600)
	}
}

// FormatOptionalDuration is FormatDuration for a value that may be undefined.
func FormatOptionalDuration(f aggregate.Float) string {
	v, ok := f.Get()
	if !ok {
		return NotAvailable
	}
	return FormatDuration(v)
}

// FormatPercent renders a one-decimal percentage, or N/A when undefined.
func FormatPercent(f aggregate.Float) string {
	v, ok := f.Get()
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return NotAvailable
	}
	return fmt.Sprintf("%.1f%%", v)
}

var inputLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// FormatTimestamp parses an ISO 8601 timestamp and renders it in local time.
func FormatTimestamp(value string) string {
	return FormatTimestampIn(value, time.Local)
}

// ParseTimestamp accepts RFC 3339 and the space-separated ISO 8601 variant,
// with or without an offset. Timestamps without an offset are taken as UTC.
func ParseTimestamp(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	var firstErr error
	for _, layout := range inputLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}

// FormatTimestampIn parses an ISO 8601 timestamp and renders it in loc.
// Anything unparseable renders as InvalidDate.
func FormatTimestampIn(value string, loc *time.Location) string {
	t, err := ParseTimestamp(value)
	if err != nil {
		return InvalidDate
	}
	return FormatTime(t, loc)
}

// FormatTime renders t in loc, or InvalidDate for the zero time.
func FormatTime(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return InvalidDate
	}
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(DisplayLayout)
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

// Escape replaces the five HTML-significant characters with entities.
func Escape(s string) string {
	return htmlEscaper.Replace(s)
}

// EscapeForDisplay is Escape for an optional string; nil yields "".
func EscapeForDisplay(s *string) string {
	if s == nil {
		return ""
	}
	return Escape(*s)
}
