package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/patrickspencer/pipewatch/internal/store"
)

// MockStore is a thread-safe in-memory implementation of store.Store for testing.
// Records are validated like the real stores; the *Err fields inject failures.
type MockStore struct {
	mu sync.Mutex

	Executions []store.Execution
	Quality    []store.QualityMetric
	Samples    []store.SystemSample

	RecordErr error
	ListErr   error
	PingErr   error

	RecordCalls int
	ListCalls   int
}

var _ store.Store = (*MockStore)(nil)

func NewMockStore() *MockStore {
	return &MockStore{}
}

// AddExecutions appends executions without validation, assigning IDs when unset.
func (m *MockStore) AddExecutions(execs ...store.Execution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range execs {
		if e.ID == "" {
			e.ID = store.NewID()
		}
		m.Executions = append(m.Executions, e)
	}
}

func (m *MockStore) RecordExecution(_ context.Context, e *store.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordCalls++
	if m.RecordErr != nil {
		return m.RecordErr
	}
	e.Normalize()
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = store.NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	m.Executions = append(m.Executions, *e)
	return nil
}

func (m *MockStore) RecordQualityMetric(_ context.Context, q *store.QualityMetric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordCalls++
	if m.RecordErr != nil {
		return m.RecordErr
	}
	if err := q.Validate(); err != nil {
		return err
	}
	if q.ID == "" {
		q.ID = store.NewID()
	}
	m.Quality = append(m.Quality, *q)
	return nil
}

func (m *MockStore) RecordSystemSamples(_ context.Context, samples []store.SystemSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordCalls++
	if m.RecordErr != nil {
		return m.RecordErr
	}
	for i := range samples {
		if err := samples[i].Validate(); err != nil {
			return err
		}
	}
	for _, s := range samples {
		if s.ID == "" {
			s.ID = store.NewID()
		}
		m.Samples = append(m.Samples, s)
	}
	return nil
}

func (m *MockStore) ListExecutions(_ context.Context, q store.ExecutionQuery) ([]store.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []store.Execution
	for _, e := range m.Executions {
		if q.PipelineName != "" && e.PipelineName != q.PipelineName {
			continue
		}
		if !q.Since.IsZero() && e.StartTime.Before(q.Since) {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (m *MockStore) ListQualityMetrics(_ context.Context, q store.QualityQuery) ([]store.QualityMetric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []store.QualityMetric
	for _, qm := range m.Quality {
		if q.PipelineName != "" && qm.PipelineName != q.PipelineName {
			continue
		}
		if !q.Since.IsZero() && qm.MeasuredAt.Before(q.Since) {
			continue
		}
		out = append(out, qm)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].MeasuredAt.Before(out[j].MeasuredAt) })
	return out, nil
}

func (m *MockStore) ListSystemSamples(_ context.Context, since time.Time) ([]store.SystemSample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	var out []store.SystemSample
	for _, s := range m.Samples {
		if !s.Timestamp.Before(since) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MockStore) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PingErr
}

func (m *MockStore) Close() error { return nil }
