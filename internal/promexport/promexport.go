// Package promexport renders dashboard summaries in the Prometheus text
// exposition format.
package promexport

import (
	"io"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/patrickspencer/pipewatch/internal/aggregate"
	"github.com/patrickspencer/pipewatch/internal/store"
)

// ContentType is the response Content-Type for Write output.
var ContentType = string(expfmt.NewFormat(expfmt.TypeTextPlain))

// Snapshot is the data one scrape exposes.
type Snapshot struct {
	WindowDays int
	Global     aggregate.GlobalSummary
	Pipelines  []aggregate.PipelineRow
	System     aggregate.SystemSeries
}

func gauge(name, help string) *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(name),
		Help: proto.String(help),
		Type: dto.MetricType_GAUGE.Enum(),
	}
}

func addSample(mf *dto.MetricFamily, v float64, labels ...string) {
	m := &dto.Metric{Gauge: &dto.Gauge{Value: proto.Float64(v)}}
	for i := 0; i+1 < len(labels); i += 2 {
		m.Label = append(m.Label, &dto.LabelPair{
			Name:  proto.String(labels[i]),
			Value: proto.String(labels[i+1]),
		})
	}
	mf.Metric = append(mf.Metric, m)
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// Families converts s into metric families. Undefined rates and averages are
// omitted rather than exported as 0.
func Families(s Snapshot) []*dto.MetricFamily {
	window := gauge("pipewatch_window_days", "Length of the trailing window the pipeline metrics cover.")
	addSample(window, float64(s.WindowDays))

	executions := gauge("pipewatch_executions", "Executions started in the window, by status.")
	addSample(executions, float64(s.Global.SuccessCount), "status", string(store.StatusSuccess))
	addSample(executions, float64(s.Global.FailedCount), "status", string(store.StatusFailed))
	addSample(executions, float64(s.Global.RunningCount), "status", string(store.StatusRunning))

	pipelines := gauge("pipewatch_pipelines", "Distinct pipelines that ran in the window.")
	addSample(pipelines, float64(s.Global.PipelineCount))

	runs := gauge("pipewatch_pipeline_runs", "Executions per pipeline in the window.")
	successRate := gauge("pipewatch_pipeline_success_rate_percent", "Share of a pipeline's executions that succeeded.")
	avgDuration := gauge("pipewatch_pipeline_avg_duration_seconds", "Mean duration of a pipeline's finished executions.")
	lastRun := gauge("pipewatch_pipeline_last_run_timestamp_seconds", "Start time of a pipeline's latest execution.")
	for _, row := range s.Pipelines {
		addSample(runs, float64(row.TotalRuns), "pipeline", row.Name)
		if v, ok := row.SuccessRate.Get(); ok {
			addSample(successRate, v, "pipeline", row.Name)
		}
		if v, ok := row.AvgDurationSeconds.Get(); ok {
			addSample(avgDuration, v, "pipeline", row.Name)
		}
		addSample(lastRun, unixSeconds(row.LatestExecutionTime), "pipeline", row.Name, "status", string(row.LatestStatus))
	}

	usage := gauge("pipewatch_system_usage_percent", "Latest sampled resource utilisation.")
	latest := s.System.Latest()
	types := make([]string, 0, len(latest))
	for typ := range latest {
		types = append(types, string(typ))
	}
	sort.Strings(types)
	for _, typ := range types {
		addSample(usage, latest[store.SampleType(typ)].Value, "type", typ)
	}

	out := make([]*dto.MetricFamily, 0, 8)
	for _, mf := range []*dto.MetricFamily{window, executions, pipelines, runs, successRate, avgDuration, lastRun, usage} {
		if len(mf.Metric) > 0 {
			out = append(out, mf)
		}
	}
	return out
}

// Write renders s to w in text format.
func Write(w io.Writer, s Snapshot) error {
	for _, mf := range Families(s) {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}
