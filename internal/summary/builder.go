// Package summary answers the dashboard's read queries by combining the
// record store, a trailing window and the aggregators.
package summary

import (
	"context"
	"sort"
	"time"

	"github.com/patrickspencer/pipewatch/internal/aggregate"
	"github.com/patrickspencer/pipewatch/internal/errors"
	"github.com/patrickspencer/pipewatch/internal/store"
	"github.com/patrickspencer/pipewatch/internal/window"
)

// DefaultDetailLimit is the detail list length used when the caller has no
// limit of its own.
const DefaultDetailLimit = 10

// Builder computes summaries on demand. It holds no state between calls.
type Builder struct {
	store store.Reader
	now   func() time.Time
}

// NewBuilder returns a Builder reading from r.
func NewBuilder(r store.Reader) *Builder {
	return &Builder{store: r, now: time.Now}
}

// WithClock returns a copy of b that uses now as the window reference.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	cp := *b
	cp.now = now
	return &cp
}

// ExecutionRow is one execution in a pipeline's detail list.
type ExecutionRow struct {
	ID               string          `json:"id"`
	Status           store.Status    `json:"status"`
	StartTime        time.Time       `json:"start_time"`
	EndTime          *time.Time      `json:"end_time"`
	DurationSeconds  aggregate.Float `json:"duration_seconds"`
	RecordsProcessed *int64          `json:"records_processed"`
	ErrorMessage     *string         `json:"error_message"`
}

func newExecutionRow(e store.Execution) ExecutionRow {
	row := ExecutionRow{
		ID:               e.ID,
		Status:           e.Status,
		StartTime:        e.StartTime,
		EndTime:          e.EndTime,
		RecordsProcessed: e.RecordsProcessed,
	}
	if d, ok := e.Duration(); ok {
		row.DurationSeconds = aggregate.Some(d)
	}
	if e.ErrorMessage != "" {
		msg := e.ErrorMessage
		row.ErrorMessage = &msg
	}
	return row
}

func (b *Builder) executions(ctx context.Context, name string, days int) ([]store.Execution, error) {
	w, err := window.New(window.Days, days, b.now())
	if err != nil {
		return nil, err
	}
	execs, err := b.store.ListExecutions(ctx, store.ExecutionQuery{PipelineName: name, Since: w.Since})
	if err != nil {
		return nil, errors.StoreUnavailable(err, "list executions")
	}
	return w.Executions(execs), nil
}

// GlobalSummary rolls up every execution started in the last days days.
func (b *Builder) GlobalSummary(ctx context.Context, days int) (aggregate.GlobalSummary, error) {
	execs, err := b.executions(ctx, "", days)
	if err != nil {
		return aggregate.GlobalSummary{}, err
	}
	return aggregate.Global(execs), nil
}

// PipelineTable returns one row per pipeline that ran in the last days days.
func (b *Builder) PipelineTable(ctx context.Context, days int) ([]aggregate.PipelineRow, error) {
	execs, err := b.executions(ctx, "", days)
	if err != nil {
		return nil, err
	}
	return aggregate.PerPipeline(execs), nil
}

// PipelineDetail returns at most limit executions of the named pipeline from
// the last days days, newest first. An unknown pipeline yields an empty list.
func (b *Builder) PipelineDetail(ctx context.Context, name string, limit, days int) ([]ExecutionRow, error) {
	if limit <= 0 {
		return nil, errors.InvalidParameterf("limit must be a positive integer, got %d", limit)
	}
	if name == "" {
		return nil, errors.InvalidParameterf("pipeline name cannot be empty")
	}
	execs, err := b.executions(ctx, name, days)
	if err != nil {
		return nil, err
	}

	// Store order is ascending with insertion order on ties; reversing keeps
	// the later-recorded execution first among equal start times.
	sort.SliceStable(execs, func(i, j int) bool { return execs[i].StartTime.Before(execs[j].StartTime) })
	rows := make([]ExecutionRow, 0, min(limit, len(execs)))
	for i := len(execs) - 1; i >= 0 && len(rows) < limit; i-- {
		rows = append(rows, newExecutionRow(execs[i]))
	}
	return rows, nil
}

// PipelineQuality summarizes the named pipeline's quality metrics from the
// last days days, one row per dimension.
func (b *Builder) PipelineQuality(ctx context.Context, name string, days int) ([]aggregate.QualityRow, error) {
	if name == "" {
		return nil, errors.InvalidParameterf("pipeline name cannot be empty")
	}
	w, err := window.New(window.Days, days, b.now())
	if err != nil {
		return nil, err
	}
	metrics, err := b.store.ListQualityMetrics(ctx, store.QualityQuery{PipelineName: name, Since: w.Since})
	if err != nil {
		return nil, errors.StoreUnavailable(err, "list quality metrics")
	}
	return aggregate.Quality(w.QualityMetrics(metrics)), nil
}

// SystemMetrics returns the resource series sampled in the last hours hours.
func (b *Builder) SystemMetrics(ctx context.Context, hours int) (aggregate.SystemSeries, error) {
	w, err := window.New(window.Hours, hours, b.now())
	if err != nil {
		return aggregate.SystemSeries{}, err
	}
	samples, err := b.store.ListSystemSamples(ctx, w.Since)
	if err != nil {
		return aggregate.SystemSeries{}, errors.StoreUnavailable(err, "list system samples")
	}
	return aggregate.System(w.SystemSamples(samples)), nil
}

// Ping reports whether the underlying store answers queries.
func (b *Builder) Ping(ctx context.Context) error {
	return errors.StoreUnavailable(b.store.Ping(ctx), "ping store")
}
