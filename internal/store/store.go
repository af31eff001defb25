package store

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/patrickspencer/pipewatch/internal/errors"
)

// Status is the lifecycle state of a pipeline execution.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
	StatusRunning Status = "running"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusRunning:
		return true
	}
	return false
}

// QualityDimension names a scored aspect of the data a pipeline produced.
type QualityDimension string

const (
	Completeness QualityDimension = "completeness"
	Accuracy     QualityDimension = "accuracy"
	Validity     QualityDimension = "validity"
	Consistency  QualityDimension = "consistency"
	Timeliness   QualityDimension = "timeliness"
)

// QualityDimensions lists every known dimension in display order.
var QualityDimensions = []QualityDimension{Completeness, Accuracy, Validity, Consistency, Timeliness}

// Valid reports whether d is one of the known dimensions.
func (d QualityDimension) Valid() bool {
	for _, known := range QualityDimensions {
		if d == known {
			return true
		}
	}
	return false
}

// SampleType is the resource a system sample measures.
type SampleType string

const (
	SampleCPU    SampleType = "cpu"
	SampleMemory SampleType = "memory"
	SampleDisk   SampleType = "disk"
)

// Valid reports whether t is one of the known sample types.
func (t SampleType) Valid() bool {
	switch t {
	case SampleCPU, SampleMemory, SampleDisk:
		return true
	}
	return false
}

const (
	// MaxPipelineNameLen bounds pipeline names, in characters.
	MaxPipelineNameLen = 100
	// MaxErrorMessageLen bounds stored error messages; longer ones are truncated.
	MaxErrorMessageLen = 1000
	// DefaultThreshold applies to quality metrics recorded without one.
	DefaultThreshold = 0.95
	// PercentUnit is the unit of every system sample.
	PercentUnit = "%"
)

// Execution is one run of a named pipeline. Records are immutable once written.
type Execution struct {
	ID               string
	PipelineName     string
	Status           Status
	StartTime        time.Time
	EndTime          *time.Time // nil while running
	RecordsProcessed *int64     // nil when not reported
	ErrorMessage     string     // only set when Status is failed
	CreatedAt        time.Time
}

// Duration returns the run time in seconds when both endpoints are known.
func (e Execution) Duration() (float64, bool) {
	if e.EndTime == nil || e.StartTime.IsZero() {
		return 0, false
	}
	return e.EndTime.Sub(e.StartTime).Seconds(), true
}

// Normalize trims the pipeline name and caps the error message.
func (e *Execution) Normalize() {
	e.PipelineName = strings.TrimSpace(e.PipelineName)
	e.ErrorMessage = truncateRunes(strings.TrimSpace(e.ErrorMessage), MaxErrorMessageLen)
}

// Validate checks e against the execution invariants.
func (e *Execution) Validate() error {
	if err := validatePipelineName(e.PipelineName); err != nil {
		return err
	}
	if !e.Status.Valid() {
		return errors.InvalidParameterf("invalid status %q: must be success, failed, or running", e.Status)
	}
	if e.StartTime.IsZero() {
		return errors.InvalidParameterf("start_time is required")
	}
	if e.EndTime != nil && e.EndTime.Before(e.StartTime) {
		return errors.InvalidParameterf("end_time cannot be before start_time")
	}
	if e.RecordsProcessed != nil && *e.RecordsProcessed < 0 {
		return errors.InvalidParameterf("records_processed must be a non-negative integer")
	}
	if e.ErrorMessage != "" && e.Status != StatusFailed {
		return errors.InvalidParameterf("error_message is only allowed when status is failed")
	}
	return nil
}

// QualityMetric is a data-quality score measured for a pipeline.
type QualityMetric struct {
	ID           string
	PipelineName string
	MetricName   QualityDimension
	Value        float64
	Threshold    float64
	MeasuredAt   time.Time
}

// Passed reports whether the score meets its threshold.
func (m QualityMetric) Passed() bool {
	return m.Value >= m.Threshold
}

// Validate checks m against the quality metric invariants.
func (m *QualityMetric) Validate() error {
	m.PipelineName = strings.TrimSpace(m.PipelineName)
	if err := validatePipelineName(m.PipelineName); err != nil {
		return err
	}
	if !m.MetricName.Valid() {
		return errors.InvalidParameterf("invalid metric_name %q", m.MetricName)
	}
	if m.Value < 0 || m.Value > 1 {
		return errors.InvalidParameterf("metric_value must be a number between 0.0 and 1.0")
	}
	if m.Threshold < 0 || m.Threshold > 1 {
		return errors.InvalidParameterf("threshold must be a number between 0.0 and 1.0")
	}
	if m.MeasuredAt.IsZero() {
		return errors.InvalidParameterf("measured_at is required")
	}
	return nil
}

// SystemSample is one resource utilisation reading, as a percentage.
type SystemSample struct {
	ID        string
	Type      SampleType
	Value     float64
	Timestamp time.Time
}

// Validate checks s against the sample invariants.
func (s *SystemSample) Validate() error {
	if !s.Type.Valid() {
		return errors.InvalidParameterf("invalid metric_type %q", s.Type)
	}
	if s.Value < 0 || s.Value > 100 {
		return errors.InvalidParameterf("invalid %s percentage: %v", s.Type, s.Value)
	}
	if s.Timestamp.IsZero() {
		return errors.InvalidParameterf("timestamp is required")
	}
	return nil
}

// ExecutionQuery selects executions. Zero values mean "no filter".
type ExecutionQuery struct {
	PipelineName string
	Since        time.Time
}

// QualityQuery selects quality metrics. Zero values mean "no filter".
type QualityQuery struct {
	PipelineName string
	Since        time.Time
}

// Reader is the read side of the record store.
//
// List methods return rows in ascending time order. Executions sharing a
// start time come back in insertion order.
type Reader interface {
	ListExecutions(ctx context.Context, q ExecutionQuery) ([]Execution, error)
	ListQualityMetrics(ctx context.Context, q QualityQuery) ([]QualityMetric, error)
	ListSystemSamples(ctx context.Context, since time.Time) ([]SystemSample, error)
	Ping(ctx context.Context) error
}

// Writer is the append-only write side of the record store. Implementations
// assign ID and CreatedAt when unset.
type Writer interface {
	RecordExecution(ctx context.Context, e *Execution) error
	RecordQualityMetric(ctx context.Context, m *QualityMetric) error
	RecordSystemSamples(ctx context.Context, samples []SystemSample) error
}

// Store is the full record store.
type Store interface {
	Reader
	Writer
	Close() error
}

func validatePipelineName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.InvalidParameterf("pipeline name cannot be empty")
	}
	if utf8.RuneCountInString(name) > MaxPipelineNameLen {
		return errors.InvalidParameterf("pipeline name exceeds %d characters", MaxPipelineNameLen)
	}
	return nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
