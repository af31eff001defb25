package promexport

import (
	"bytes"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickspencer/pipewatch/internal/aggregate"
	"github.com/patrickspencer/pipewatch/internal/store"
)

func sample() Snapshot {
	at := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	return Snapshot{
		WindowDays: 7,
		Global: aggregate.GlobalSummary{
			TotalExecutions: 4, SuccessCount: 2, FailedCount: 1, RunningCount: 1, PipelineCount: 2,
		},
		Pipelines: []aggregate.PipelineRow{
			{Name: "etl", LatestStatus: store.StatusFailed, LatestExecutionTime: at, TotalRuns: 3,
				SuccessRate: aggregate.Some(66.7), AvgDurationSeconds: aggregate.Some(15)},
			{Name: "load", LatestStatus: store.StatusRunning, LatestExecutionTime: at, TotalRuns: 1,
				SuccessRate: aggregate.Some(0)},
		},
		System: aggregate.SystemSeries{
			CPU: []aggregate.Point{{Timestamp: at, Value: 10}, {Timestamp: at.Add(time.Minute), Value: 12.5}},
		},
	}
}

func parse(t *testing.T, text string) map[string]*dto.MetricFamily {
	t.Helper()
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(strings.NewReader(text))
	require.NoError(t, err)
	return mfs
}

func valueFor(mf *dto.MetricFamily, label, value string) (float64, bool) {
	for _, m := range mf.GetMetric() {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == label && lp.GetValue() == value {
				return m.GetGauge().GetValue(), true
			}
		}
	}
	return 0, false
}

func TestWriteExposesPerPipelineSeries(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sample()))
	mfs := parse(t, buf.String())

	runs := mfs["pipewatch_pipeline_runs"]
	require.NotNil(t, runs)
	v, ok := valueFor(runs, "pipeline", "etl")
	require.True(t, ok)
	assert.Equal(t, 3.0, v)

	rate := mfs["pipewatch_pipeline_success_rate_percent"]
	require.NotNil(t, rate)
	v, ok = valueFor(rate, "pipeline", "load")
	require.True(t, ok)
	assert.Equal(t, 0.0, v, "a defined zero rate is exported")

	avg := mfs["pipewatch_pipeline_avg_duration_seconds"]
	require.NotNil(t, avg)
	_, ok = valueFor(avg, "pipeline", "load")
	assert.False(t, ok, "undefined averages are omitted")

	usage := mfs["pipewatch_system_usage_percent"]
	require.NotNil(t, usage)
	v, ok = valueFor(usage, "type", "cpu")
	require.True(t, ok)
	assert.Equal(t, 12.5, v)

	executions := mfs["pipewatch_executions"]
	require.NotNil(t, executions)
	v, _ = valueFor(executions, "status", "running")
	assert.Equal(t, 1.0, v)
}

func TestFamiliesEmptySnapshot(t *testing.T) {
	mfs := Families(Snapshot{WindowDays: 7})
	names := make([]string, 0, len(mfs))
	for _, mf := range mfs {
		names = append(names, mf.GetName())
	}
	assert.Equal(t, []string{"pipewatch_window_days", "pipewatch_executions", "pipewatch_pipelines"}, names)
}
