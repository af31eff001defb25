package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickspencer/pipewatch/internal/errors"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "pipewatch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func ptrTime(t time.Time) *time.Time { return &t }
func ptrInt(v int64) *int64          { return &v }

func TestRecordAndListExecutions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	running := &Execution{PipelineName: "etl", Status: StatusRunning, StartTime: base.Add(2 * time.Hour)}
	done := &Execution{
		PipelineName:     "  etl  ",
		Status:           StatusSuccess,
		StartTime:        base,
		EndTime:          ptrTime(base.Add(90 * time.Second)),
		RecordsProcessed: ptrInt(0),
	}
	failed := &Execution{
		PipelineName: "load",
		Status:       StatusFailed,
		StartTime:    base.Add(time.Hour),
		EndTime:      ptrTime(base.Add(time.Hour + 5*time.Second)),
		ErrorMessage: "Connection timeout error",
	}
	for _, e := range []*Execution{running, done, failed} {
		require.NoError(t, st.RecordExecution(ctx, e))
		assert.NotEmpty(t, e.ID)
	}

	all, err := st.ListExecutions(ctx, ExecutionQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{done.ID, failed.ID, running.ID}, []string{all[0].ID, all[1].ID, all[2].ID})

	got := all[0]
	assert.Equal(t, "etl", got.PipelineName)
	require.NotNil(t, got.RecordsProcessed)
	assert.Equal(t, int64(0), *got.RecordsProcessed, "reported zero must survive as zero")
	d, ok := got.Duration()
	assert.True(t, ok)
	assert.InDelta(t, 90.0, d, 1e-9)

	assert.Nil(t, all[2].EndTime)
	assert.Nil(t, all[2].RecordsProcessed, "unreported count must stay nil")
	assert.Equal(t, "Connection timeout error", all[1].ErrorMessage)

	etl, err := st.ListExecutions(ctx, ExecutionQuery{PipelineName: "etl", Since: base.Add(30 * time.Minute)})
	require.NoError(t, err)
	require.Len(t, etl, 1)
	assert.Equal(t, running.ID, etl[0].ID)
}

func TestListExecutionsSinceIsInclusive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	at := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, st.RecordExecution(ctx, &Execution{PipelineName: "p", Status: StatusRunning, StartTime: at}))
	require.NoError(t, st.RecordExecution(ctx, &Execution{PipelineName: "p", Status: StatusRunning, StartTime: at.Add(-time.Nanosecond)}))

	got, err := st.ListExecutions(ctx, ExecutionQuery{Since: at})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].StartTime.Equal(at))
}

func TestListExecutionsOrdersFractionalSecondsChronologically(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	whole := time.Date(2024, 5, 1, 0, 0, 1, 0, time.UTC)
	fraction := time.Date(2024, 5, 1, 0, 0, 0, 500_000_000, time.UTC)
	require.NoError(t, st.RecordExecution(ctx, &Execution{PipelineName: "p", Status: StatusRunning, StartTime: whole}))
	require.NoError(t, st.RecordExecution(ctx, &Execution{PipelineName: "p", Status: StatusRunning, StartTime: fraction}))

	got, err := st.ListExecutions(ctx, ExecutionQuery{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.True(t, got[0].StartTime.Equal(fraction))
	assert.True(t, got[1].StartTime.Equal(whole))
}

func TestRecordExecutionRejectsInvalid(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)
	start := time.Now().UTC()

	cases := map[string]*Execution{
		"empty name":  {PipelineName: "   ", Status: StatusSuccess, StartTime: start},
		"bad status":  {PipelineName: "p", Status: "done", StartTime: start},
		"no start":    {PipelineName: "p", Status: StatusSuccess},
		"end < start": {PipelineName: "p", Status: StatusSuccess, StartTime: start, EndTime: ptrTime(start.Add(-time.Second))},
		"neg records": {PipelineName: "p", Status: StatusSuccess, StartTime: start, RecordsProcessed: ptrInt(-1)},
		"err on succ": {PipelineName: "p", Status: StatusSuccess, StartTime: start, ErrorMessage: "boom"},
	}
	for name, e := range cases {
		err := st.RecordExecution(context.Background(), e)
		assert.Truef(t, errors.Is(err, errors.ErrInvalidParameter), "%s: got %v", name, err)
	}
}

func TestQualityAndSystemRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, st.RecordQualityMetric(ctx, &QualityMetric{
		PipelineName: "etl", MetricName: Completeness, Value: 0.97, Threshold: 0.95, MeasuredAt: now,
	}))
	require.NoError(t, st.RecordQualityMetric(ctx, &QualityMetric{
		PipelineName: "other", MetricName: Accuracy, Value: 0.5, Threshold: 0.95, MeasuredAt: now,
	}))
	err := st.RecordQualityMetric(ctx, &QualityMetric{
		PipelineName: "etl", MetricName: "freshness", Value: 0.5, Threshold: 0.5, MeasuredAt: now,
	})
	assert.True(t, errors.Is(err, errors.ErrInvalidParameter))

	metrics, err := st.ListQualityMetrics(ctx, QualityQuery{PipelineName: "etl"})
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, Completeness, metrics[0].MetricName)
	assert.True(t, metrics[0].Passed())

	samples := []SystemSample{
		{Type: SampleMemory, Value: 40, Timestamp: now.Add(time.Minute)},
		{Type: SampleCPU, Value: 12.5, Timestamp: now},
		{Type: SampleDisk, Value: 70, Timestamp: now.Add(-time.Hour)},
	}
	require.NoError(t, st.RecordSystemSamples(ctx, samples))

	got, err := st.ListSystemSamples(ctx, now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, SampleCPU, got[0].Type)
	assert.Equal(t, SampleMemory, got[1].Type)

	require.NoError(t, st.Ping(ctx))
}

func TestRecordSystemSamplesValidatesWholeBatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)
	now := time.Now().UTC()

	err := st.RecordSystemSamples(ctx, []SystemSample{
		{Type: SampleCPU, Value: 10, Timestamp: now},
		{Type: SampleCPU, Value: 140, Timestamp: now},
	})
	require.Error(t, err)

	got, err := st.ListSystemSamples(ctx, now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestQueryFailureIsStoreUnavailable(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	st := newSQLiteStore(db)

	mock.ExpectQuery("FROM pipeline_executions").WillReturnError(sql.ErrConnDone)
	_, err = st.ListExecutions(context.Background(), ExecutionQuery{})
	assert.True(t, errors.Is(err, errors.ErrStoreUnavailable), "got %v", err)

	mock.ExpectQuery("FROM system_metrics").WillReturnError(sql.ErrConnDone)
	_, err = st.ListSystemSamples(context.Background(), time.Now())
	assert.True(t, errors.Is(err, errors.ErrStoreUnavailable), "got %v", err)

	mock.ExpectQuery("SELECT 1 FROM pipeline_executions").WillReturnError(sql.ErrConnDone)
	assert.True(t, errors.Is(st.Ping(context.Background()), errors.ErrStoreUnavailable))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMalformedRowIsStoreUnavailable(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	st := newSQLiteStore(db)

	rows := sqlmock.NewRows([]string{
		"id", "pipeline_name", "status", "start_time", "end_time",
		"records_processed", "error_message", "created_at",
	}).AddRow("01H", "etl", "success", "not-a-time", nil, nil, nil, "2024-01-01T00:00:00.000000000Z")
	mock.ExpectQuery("FROM pipeline_executions").WillReturnRows(rows)

	_, err = st.ListExecutions(context.Background(), ExecutionQuery{})
	assert.True(t, errors.Is(err, errors.ErrStoreUnavailable), "got %v", err)
}

func TestNewIDIsMonotonic(t *testing.T) {
	t.Parallel()

	prev := NewID()
	for i := 0; i < 1000; i++ {
		next := NewID()
		require.Greater(t, next, prev)
		prev = next
	}
}

func TestOpenFailuresAreClassified(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	_, err := NewSQLiteStore(filepath.Join(t.TempDir(), "missing", "nested", "pipewatch.db"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrStoreUnavailable), err.Error())

	_, err = Open(ctx, "mysql", "")
	assert.True(t, errors.Is(err, errors.ErrInvalidParameter))

	_, err = Open(ctx, DriverPostgres, "://not a url")
	assert.True(t, errors.Is(err, errors.ErrInvalidParameter))
}
