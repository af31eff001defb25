package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/patrickspencer/pipewatch/internal/aggregate"
	"github.com/patrickspencer/pipewatch/internal/logger"
	"github.com/patrickspencer/pipewatch/internal/promexport"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
	Error     string    `json:"error,omitempty"`
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "healthy", Timestamp: a.now().UTC(), Database: "connected"}
	if err := a.Summary.Ping(r.Context()); err != nil {
		logger.Errorw("health check failed", logger.FieldError, err)
		resp.Status = "unhealthy"
		resp.Database = "unavailable"
		resp.Error = "the metrics store is unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type systemResponse struct {
	SystemMetrics aggregate.SystemSeries `json:"system_metrics"`
	PeriodHours   int                    `json:"period_hours"`
}

func (a *API) handleSystemMetrics(w http.ResponseWriter, r *http.Request) {
	hours, err := positiveInt(r, "hours", DefaultHours)
	if err != nil {
		writeError(w, r, err)
		return
	}
	series, err := a.Summary.SystemMetrics(r.Context(), hours)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, systemResponse{SystemMetrics: series, PeriodHours: hours})
}

// handlePrometheus exposes the pipeline table over ?days= (default 7) and the
// latest system sample from the last hour.
func (a *API) handlePrometheus(w http.ResponseWriter, r *http.Request) {
	days, err := positiveInt(r, "days", DefaultDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	snap := promexport.Snapshot{WindowDays: days}
	if snap.Global, err = a.Summary.GlobalSummary(ctx, days); err != nil {
		writeError(w, r, err)
		return
	}
	if snap.Pipelines, err = a.Summary.PipelineTable(ctx, days); err != nil {
		writeError(w, r, err)
		return
	}
	if snap.System, err = a.Summary.SystemMetrics(ctx, 1); err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := promexport.Write(&buf, snap); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", promexport.ContentType)
	_, _ = w.Write(buf.Bytes())
}
