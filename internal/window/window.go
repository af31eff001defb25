// Package window restricts record sets to a trailing period ending at a
// reference instant.
package window

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/patrickspencer/pipewatch/internal/errors"
	"github.com/patrickspencer/pipewatch/internal/store"
)

// Unit is the granularity of a window length.
type Unit int

const (
	Days Unit = iota
	Hours
)

// String returns the unit's query-parameter name.
func (u Unit) String() string {
	switch u {
	case Days:
		return "days"
	case Hours:
		return "hours"
	}
	return "unknown"
}

// Duration is the length of one unit.
func (u Unit) Duration() time.Duration {
	if u == Hours {
		return time.Hour
	}
	return 24 * time.Hour
}

// ParseUnit accepts "days" or "hours", case-insensitively.
func ParseUnit(s string) (Unit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "days", "day", "d":
		return Days, nil
	case "hours", "hour", "h":
		return Hours, nil
	}
	return 0, errors.InvalidParameterf("unknown window unit %q", s)
}

// Window is a trailing period. A record belongs to it when its timestamp is
// at or after Since.
type Window struct {
	Unit  Unit
	Count int
	Since time.Time
}

// MaxCount is the longest window of unit whose length fits in a time.Duration.
func (u Unit) MaxCount() int {
	return int(math.MaxInt64 / int64(u.Duration()))
}

// ParseCount reads a positive decimal count such as a ?days= value. Only
// digits are accepted, so signs are rejected and leading zeros are not.
// An empty raw yields def.
func ParseCount(name, raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	for _, c := range raw {
		if c < '0' || c > '9' {
			return 0, errors.InvalidParameterf("%s must be a positive integer, got %q", name, raw)
		}
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.InvalidParameterf("%s must be a positive integer, got %q", name, raw)
	}
	return n, nil
}

// New builds the window of count units ending at ref. count must be
// between 1 and unit.MaxCount().
func New(unit Unit, count int, ref time.Time) (Window, error) {
	if count <= 0 {
		return Window{}, errors.InvalidParameterf("%s must be a positive integer, got %d", unit, count)
	}
	if unit != Days && unit != Hours {
		return Window{}, errors.InvalidParameterf("unknown window unit %d", int(unit))
	}
	if limit := unit.MaxCount(); count > limit {
		return Window{}, errors.InvalidParameterf("%s must be at most %d, got %d", unit, limit, count)
	}
	return Window{
		Unit:  unit,
		Count: count,
		Since: ref.Add(-time.Duration(count) * unit.Duration()),
	}, nil
}

// Contains reports whether t falls inside the window. The bound is inclusive.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Since)
}

// Executions returns the executions whose start time is in the window,
// preserving input order. The input slice is not modified.
func (w Window) Executions(in []store.Execution) []store.Execution {
	out := make([]store.Execution, 0, len(in))
	for _, e := range in {
		if w.Contains(e.StartTime) {
			out = append(out, e)
		}
	}
	return out
}

// QualityMetrics returns the metrics measured in the window.
func (w Window) QualityMetrics(in []store.QualityMetric) []store.QualityMetric {
	out := make([]store.QualityMetric, 0, len(in))
	for _, m := range in {
		if w.Contains(m.MeasuredAt) {
			out = append(out, m)
		}
	}
	return out
}

// SystemSamples returns the samples taken in the window.
func (w Window) SystemSamples(in []store.SystemSample) []store.SystemSample {
	out := make([]store.SystemSample, 0, len(in))
	for _, s := range in {
		if w.Contains(s.Timestamp) {
			out = append(out, s)
		}
	}
	return out
}
