package api

import (
	"net/http"
	"time"

	"github.com/patrickspencer/pipewatch/internal/aggregate"
	"github.com/patrickspencer/pipewatch/internal/errors"
	"github.com/patrickspencer/pipewatch/internal/present"
	"github.com/patrickspencer/pipewatch/internal/store"
	"github.com/patrickspencer/pipewatch/internal/summary"
)

type summaryResponse struct {
	Summary   summaryBody `json:"summary"`
	Timestamp time.Time   `json:"timestamp"`
}

type summaryBody struct {
	aggregate.GlobalSummary
	PeriodDays int `json:"period_days"`
}

func (a *API) handleSummary(w http.ResponseWriter, r *http.Request) {
	days, err := positiveInt(r, "days", DefaultDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	g, err := a.Summary.GlobalSummary(r.Context(), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		Summary:   summaryBody{GlobalSummary: g, PeriodDays: days},
		Timestamp: a.now().UTC(),
	})
}

type pipelinesResponse struct {
	Pipelines  []aggregate.PipelineRow `json:"pipelines"`
	Count      int                     `json:"count"`
	PeriodDays int                     `json:"period_days"`
}

func (a *API) handleListPipelines(w http.ResponseWriter, r *http.Request) {
	days, err := positiveInt(r, "days", DefaultDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := a.Summary.PipelineTable(r.Context(), days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pipelinesResponse{Pipelines: rows, Count: len(rows), PeriodDays: days})
}

type executionsResponse struct {
	PipelineName string                 `json:"pipeline_name"`
	Executions   []summary.ExecutionRow `json:"executions"`
	Count        int                    `json:"count"`
}

func (a *API) handleListExecutions(w http.ResponseWriter, r *http.Request) {
	name, err := pipelineName(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := positiveInt(r, "limit", DefaultExecutionLimit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	days, err := positiveInt(r, "days", DefaultExecutionDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := a.Summary.PipelineDetail(r.Context(), name, limit, days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, executionsResponse{PipelineName: name, Executions: rows, Count: len(rows)})
}

type executionRequest struct {
	PipelineName     string  `json:"pipeline_name"`
	Status           string  `json:"status"`
	StartTime        string  `json:"start_time"`
	EndTime          *string `json:"end_time"`
	RecordsProcessed *int64  `json:"records_processed"`
	ErrorMessage     *string `json:"error_message"`
}

func (req executionRequest) toExecution() (*store.Execution, error) {
	if req.StartTime == "" {
		return nil, errors.InvalidParameterf("start_time is required")
	}
	start, err := present.ParseTimestamp(req.StartTime)
	if err != nil {
		return nil, errors.InvalidParameterf("start_time %q is not an ISO 8601 timestamp", req.StartTime)
	}
	e := &store.Execution{
		PipelineName:     req.PipelineName,
		Status:           store.Status(req.Status),
		StartTime:        start.UTC(),
		RecordsProcessed: req.RecordsProcessed,
	}
	if req.EndTime != nil && *req.EndTime != "" {
		end, err := present.ParseTimestamp(*req.EndTime)
		if err != nil {
			return nil, errors.InvalidParameterf("end_time %q is not an ISO 8601 timestamp", *req.EndTime)
		}
		end = end.UTC()
		e.EndTime = &end
	}
	if req.ErrorMessage != nil {
		e.ErrorMessage = *req.ErrorMessage
	}
	return e, nil
}

type createdResponse struct {
	Message     string `json:"message"`
	ExecutionID string `json:"execution_id,omitempty"`
	MetricID    string `json:"metric_id,omitempty"`
}

func (a *API) handleRecordExecution(w http.ResponseWriter, r *http.Request) {
	var req executionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := req.toExecution()
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.Recorder.RecordExecution(r.Context(), e); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{Message: "Pipeline execution recorded", ExecutionID: e.ID})
}

type qualityResponse struct {
	PipelineName string                 `json:"pipeline_name"`
	Quality      []aggregate.QualityRow `json:"quality"`
	PeriodDays   int                    `json:"period_days"`
}

func (a *API) handlePipelineQuality(w http.ResponseWriter, r *http.Request) {
	name, err := pipelineName(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	days, err := positiveInt(r, "days", DefaultDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := a.Summary.PipelineQuality(r.Context(), name, days)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, qualityResponse{PipelineName: name, Quality: rows, PeriodDays: days})
}

type qualityRequest struct {
	MetricName  string   `json:"metric_name"`
	MetricValue *float64 `json:"metric_value"`
	Threshold   *float64 `json:"threshold"`
	MeasuredAt  string   `json:"measured_at"`
}

func (a *API) handleRecordQuality(w http.ResponseWriter, r *http.Request) {
	name, err := pipelineName(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req qualityRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.MetricValue == nil {
		writeError(w, r, errors.InvalidParameterf("metric_value is required"))
		return
	}

	m := &store.QualityMetric{
		PipelineName: name,
		MetricName:   store.QualityDimension(req.MetricName),
		Value:        *req.MetricValue,
		Threshold:    store.DefaultThreshold,
		MeasuredAt:   a.now().UTC(),
	}
	if req.Threshold != nil {
		m.Threshold = *req.Threshold
	}
	if req.MeasuredAt != "" {
		at, err := present.ParseTimestamp(req.MeasuredAt)
		if err != nil {
			writeError(w, r, errors.InvalidParameterf("measured_at %q is not an ISO 8601 timestamp", req.MeasuredAt))
			return
		}
		m.MeasuredAt = at.UTC()
	}

	if err := a.Recorder.RecordQualityMetric(r.Context(), m); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{Message: "Data quality metric recorded", MetricID: m.ID})
}
