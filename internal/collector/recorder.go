// Package collector is the write path: it validates and appends records and
// announces them to live dashboard clients.
package collector

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/patrickspencer/pipewatch/internal/logger"
	"github.com/patrickspencer/pipewatch/internal/realtime"
	"github.com/patrickspencer/pipewatch/internal/store"
)

// Recorder appends records to a store and publishes an event for each write.
type Recorder struct {
	store  store.Writer
	events *realtime.Broker
	now    func() time.Time
	log    *zap.SugaredLogger
}

// NewRecorder returns a Recorder writing to w. events may be nil.
func NewRecorder(w store.Writer, events *realtime.Broker) *Recorder {
	return &Recorder{
		store:  w,
		events: events,
		now:    time.Now,
		log:    logger.Named("collector"),
	}
}

// RecordExecution validates and appends e, filling in its ID.
func (r *Recorder) RecordExecution(ctx context.Context, e *store.Execution) error {
	if err := r.store.RecordExecution(ctx, e); err != nil {
		r.log.Warnw("record execution failed",
			logger.FieldPipeline, e.PipelineName,
			logger.FieldStatus, e.Status,
			logger.FieldError, err)
		return err
	}
	r.log.Infow("recorded pipeline execution",
		logger.FieldPipeline, e.PipelineName,
		logger.FieldStatus, e.Status,
		logger.FieldExecutionID, e.ID)
	r.events.Publish(realtime.Event{
		Type:         realtime.ExecutionRecorded,
		PipelineName: e.PipelineName,
		ExecutionID:  e.ID,
		Status:       string(e.Status),
	})
	return nil
}

// RecordQualityMetric validates and appends m. A zero MeasuredAt is set to now.
func (r *Recorder) RecordQualityMetric(ctx context.Context, m *store.QualityMetric) error {
	if m.MeasuredAt.IsZero() {
		m.MeasuredAt = r.now().UTC()
	}
	if err := r.store.RecordQualityMetric(ctx, m); err != nil {
		r.log.Warnw("record quality metric failed",
			logger.FieldPipeline, m.PipelineName,
			"metric", m.MetricName,
			logger.FieldError, err)
		return err
	}
	r.log.Infow("recorded data quality metric",
		logger.FieldPipeline, m.PipelineName,
		"metric", m.MetricName,
		"value", m.Value)
	r.events.Publish(realtime.Event{
		Type:         realtime.QualityRecorded,
		PipelineName: m.PipelineName,
		MetricName:   string(m.MetricName),
	})
	return nil
}
