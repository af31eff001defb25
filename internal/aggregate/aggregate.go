// Package aggregate rolls execution, quality and system records up into
// summary statistics.
//
// Every function is pure: it reads its input slice and returns fresh values.
// Inputs are never reordered or modified, so the same input always yields the
// same output. Percentages are rounded to one decimal when produced; means
// are left at full precision.
package aggregate

import (
	"sort"
	"time"

	"github.com/patrickspencer/pipewatch/internal/store"
)

// GlobalSummary rolls up every execution in scope.
type GlobalSummary struct {
	TotalExecutions    int   `json:"total_executions"`
	SuccessCount       int   `json:"success_count"`
	FailedCount        int   `json:"failed_count"`
	RunningCount       int   `json:"running_count"`
	SuccessRate        Float `json:"success_rate"`
	AvgDurationSeconds Float `json:"avg_duration_seconds"`
	PipelineCount      int   `json:"pipeline_count"`
}

// counter accumulates the per-status counts and duration mean of a group.
type counter struct {
	total, success, failed, running int
	durSum                          float64
	durN                            int
}

func (c *counter) add(e store.Execution) {
	c.total++
	switch e.Status {
	case store.StatusSuccess:
		c.success++
	case store.StatusFailed:
		c.failed++
	case store.StatusRunning:
		c.running++
	}
	// Executions without an end time have no duration and do not count
	// towards the mean.
	if d, ok := e.Duration(); ok {
		c.durSum += d
		c.durN++
	}
}

// Global summarizes executions.
func Global(executions []store.Execution) GlobalSummary {
	var c counter
	names := make(map[string]struct{})
	for _, e := range executions {
		c.add(e)
		names[e.PipelineName] = struct{}{}
	}
	return GlobalSummary{
		TotalExecutions:    c.total,
		SuccessCount:       c.success,
		FailedCount:        c.failed,
		RunningCount:       c.running,
		SuccessRate:        percent(c.success, c.total),
		AvgDurationSeconds: mean(c.durSum, c.durN),
		PipelineCount:      len(names),
	}
}

// PipelineRow summarizes one pipeline.
type PipelineRow struct {
	Name                string       `json:"name"`
	LatestStatus        store.Status `json:"latest_status"`
	LatestExecutionTime time.Time    `json:"latest_execution_time"`
	TotalRuns           int          `json:"total_runs"`
	SuccessCount        int          `json:"success_count"`
	SuccessRate         Float        `json:"success_rate"`
	AvgDurationSeconds  Float        `json:"avg_duration_seconds"`
}

// PerPipeline returns one row per distinct pipeline name, sorted by name.
//
// The latest status comes from the execution with the greatest start time.
// When several share it, the one appearing last in the input wins.
func PerPipeline(executions []store.Execution) []PipelineRow {
	type group struct {
		counter
		latest store.Execution
	}
	groups := make(map[string]*group)
	for _, e := range executions {
		g, ok := groups[e.PipelineName]
		if !ok {
			g = &group{latest: e}
			groups[e.PipelineName] = g
		}
		g.add(e)
		if !e.StartTime.Before(g.latest.StartTime) {
			g.latest = e
		}
	}

	rows := make([]PipelineRow, 0, len(groups))
	for name, g := range groups {
		rows = append(rows, PipelineRow{
			Name:                name,
			LatestStatus:        g.latest.Status,
			LatestExecutionTime: g.latest.StartTime,
			TotalRuns:           g.total,
			SuccessCount:        g.success,
			SuccessRate:         percent(g.success, g.total),
			AvgDurationSeconds:  mean(g.durSum, g.durN),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Name < rows[j].Name })
	return rows
}

// QualityRow summarizes one quality dimension.
type QualityRow struct {
	MetricName store.QualityDimension `json:"metric_name"`
	Count      int                    `json:"count"`
	AvgValue   Float                  `json:"avg_value"`
	PassRate   Float                  `json:"pass_rate"`
}

// Quality groups metrics by dimension. Rows are sorted by metric name.
func Quality(metrics []store.QualityMetric) []QualityRow {
	type group struct {
		n, passed int
		sum       float64
	}
	groups := make(map[store.QualityDimension]*group)
	for _, m := range metrics {
		g, ok := groups[m.MetricName]
		if !ok {
			g = &group{}
			groups[m.MetricName] = g
		}
		g.n++
		g.sum += m.Value
		if m.Passed() {
			g.passed++
		}
	}

	rows := make([]QualityRow, 0, len(groups))
	for name, g := range groups {
		rows = append(rows, QualityRow{
			MetricName: name,
			Count:      g.n,
			AvgValue:   mean(g.sum, g.n),
			PassRate:   percent(g.passed, g.n),
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].MetricName < rows[j].MetricName })
	return rows
}

// Point is one system sample in a series.
type Point struct {
	Timestamp time.Time `json:"timestamp"`
	Value     float64   `json:"value"`
	Unit      string    `json:"unit"`
}

// SystemSeries holds one ascending series per sample type.
type SystemSeries struct {
	CPU    []Point `json:"cpu"`
	Memory []Point `json:"memory"`
	Disk   []Point `json:"disk"`
}

// System partitions samples by type in ascending timestamp order. Samples
// with equal timestamps keep their input order. No downsampling is done.
func System(samples []store.SystemSample) SystemSeries {
	sorted := make([]store.SystemSample, len(samples))
	copy(sorted, samples)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	out := SystemSeries{CPU: []Point{}, Memory: []Point{}, Disk: []Point{}}
	for _, s := range sorted {
		p := Point{Timestamp: s.Timestamp, Value: s.Value, Unit: store.PercentUnit}
		switch s.Type {
		case store.SampleCPU:
			out.CPU = append(out.CPU, p)
		case store.SampleMemory:
			out.Memory = append(out.Memory, p)
		case store.SampleDisk:
			out.Disk = append(out.Disk, p)
		}
	}
	return out
}

// Latest returns the newest point of each non-empty series, keyed by type.
func (s SystemSeries) Latest() map[store.SampleType]Point {
	out := make(map[store.SampleType]Point, 3)
	for typ, series := range map[store.SampleType][]Point{
		store.SampleCPU:    s.CPU,
		store.SampleMemory: s.Memory,
		store.SampleDisk:   s.Disk,
	} {
		if n := len(series); n > 0 {
			out[typ] = series[n-1]
		}
	}
	return out
}
