package collector

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patrickspencer/pipewatch/internal/errors"
	"github.com/patrickspencer/pipewatch/internal/realtime"
	"github.com/patrickspencer/pipewatch/internal/store"
	"github.com/patrickspencer/pipewatch/internal/testutil"
)

type fakeSampler struct {
	cpu, mem, disk float64
	cpuErr         error
}

func (f fakeSampler) CPUPercent(context.Context) (float64, error)    { return f.cpu, f.cpuErr }
func (f fakeSampler) MemoryPercent(context.Context) (float64, error) { return f.mem, nil }
func (f fakeSampler) DiskPercent(context.Context) (float64, error)   { return f.disk, nil }

var fixed = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func newRecorder(st store.Writer, b *realtime.Broker) *Recorder {
	r := NewRecorder(st, b)
	r.now = func() time.Time { return fixed }
	return r
}

func TestRecordExecutionPublishes(t *testing.T) {
	st := testutil.NewMockStore()
	b := realtime.NewBroker()
	events, cancel := b.Subscribe()
	defer cancel()

	e := &store.Execution{PipelineName: " etl ", Status: store.StatusSuccess, StartTime: fixed}
	require.NoError(t, newRecorder(st, b).RecordExecution(context.Background(), e))

	require.Len(t, st.Executions, 1)
	assert.Equal(t, "etl", st.Executions[0].PipelineName)
	evt := <-events
	assert.Equal(t, realtime.ExecutionRecorded, evt.Type)
	assert.Equal(t, "etl", evt.PipelineName)
	assert.Equal(t, e.ID, evt.ExecutionID)
}

func TestRecordExecutionInvalidDoesNotPublish(t *testing.T) {
	st := testutil.NewMockStore()
	b := realtime.NewBroker()
	events, cancel := b.Subscribe()
	defer cancel()

	err := newRecorder(st, b).RecordExecution(context.Background(), &store.Execution{PipelineName: "", Status: store.StatusSuccess, StartTime: fixed})
	assert.True(t, errors.Is(err, errors.ErrInvalidParameter))
	assert.Empty(t, st.Executions)
	assert.Len(t, events, 0)
}

func TestRecordQualityMetricDefaultsMeasuredAt(t *testing.T) {
	st := testutil.NewMockStore()
	m := &store.QualityMetric{PipelineName: "etl", MetricName: store.Accuracy, Value: 0.9, Threshold: store.DefaultThreshold}
	require.NoError(t, newRecorder(st, nil).RecordQualityMetric(context.Background(), m))

	require.Len(t, st.Quality, 1)
	assert.Equal(t, fixed, st.Quality[0].MeasuredAt)
	assert.False(t, st.Quality[0].Passed())
}

func TestCollectSystemMetrics(t *testing.T) {
	st := testutil.NewMockStore()
	b := realtime.NewBroker()
	events, cancel := b.Subscribe()
	defer cancel()

	got, err := newRecorder(st, b).CollectSystemMetrics(context.Background(), fakeSampler{cpu: 12.5, mem: 40, disk: 70})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, store.SampleCPU, got[0].Type)
	assert.Len(t, st.Samples, 3)
	for _, s := range st.Samples {
		assert.Equal(t, fixed, s.Timestamp)
	}
	evt := <-events
	assert.Equal(t, realtime.SystemSampled, evt.Type)
	assert.Equal(t, 3, evt.Count)
}

func TestCollectSystemMetricsSkipsFailedReadings(t *testing.T) {
	st := testutil.NewMockStore()
	got, err := newRecorder(st, nil).CollectSystemMetrics(context.Background(),
		fakeSampler{cpuErr: errors.New("no /proc/stat"), mem: 40, disk: 140})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, store.SampleMemory, got[0].Type)
}

func TestCollectSystemMetricsStoreFailure(t *testing.T) {
	st := testutil.NewMockStore()
	st.RecordErr = errors.StoreUnavailable(errors.New("disk full"), "insert")
	_, err := newRecorder(st, nil).CollectSystemMetrics(context.Background(), fakeSampler{cpu: 1, mem: 1, disk: 1})
	assert.True(t, errors.Is(err, errors.ErrStoreUnavailable))

	_, err = newRecorder(st, nil).CollectSystemMetrics(context.Background(), fakeSampler{cpuErr: errors.New("x"), mem: -1, disk: 101})
	assert.Error(t, err)
}
