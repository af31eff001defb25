package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/patrickspencer/pipewatch/internal/collector"
	"github.com/patrickspencer/pipewatch/internal/errors"
	"github.com/patrickspencer/pipewatch/internal/logger"
	"github.com/patrickspencer/pipewatch/internal/realtime"
	"github.com/patrickspencer/pipewatch/internal/summary"
	"github.com/patrickspencer/pipewatch/internal/window"
)

// Query parameter defaults.
const (
	DefaultDays           = 7
	DefaultHours          = 24
	DefaultExecutionLimit = 100
	DefaultExecutionDays  = 30
)

const maxBodyBytes = 1 << 20

// API holds dependencies for all API handlers.
type API struct {
	Summary  *summary.Builder
	Recorder *collector.Recorder
	Events   *realtime.Broker
	// WriteLimiter throttles POST endpoints. Nil disables limiting.
	WriteLimiter *rate.Limiter
	Now          func() time.Time
}

// Routes registers every API route on r.
func (a *API) Routes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", a.handleHealth)
		r.Get("/metrics/summary", a.handleSummary)
		r.Get("/pipelines", a.handleListPipelines)
		r.With(a.limitWrites).Post("/pipelines", a.handleRecordExecution)
		r.Get("/pipelines/{name}/executions", a.handleListExecutions)
		r.Get("/pipelines/{name}/quality", a.handlePipelineQuality)
		r.With(a.limitWrites).Post("/pipelines/{name}/quality", a.handleRecordQuality)
		r.Get("/system/metrics", a.handleSystemMetrics)
		r.Get("/events", a.handleEvents)
	})
	r.Get("/metrics", a.handlePrometheus)
}

func (a *API) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// limitWrites rejects requests beyond the configured write rate with 429.
func (a *API) limitWrites(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.WriteLimiter != nil && !a.WriteLimiter.Allow() {
			writeErrorBody(w, http.StatusTooManyRequests, "RateLimited", "too many write requests, retry later")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorw("failed to write JSON response", logger.FieldError, err)
	}
}

type errorResponse struct {
	Error      bool   `json:"error"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	StatusCode int    `json:"status_code"`
}

func writeErrorBody(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorResponse{Error: true, Message: msg, Type: kind, StatusCode: status})
}

// writeError maps err's kind to a status code. Store and internal failures
// are logged in full and reported to the client without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := errors.KindName(err)
	switch errors.Kind(err) {
	case errors.ErrInvalidParameter:
		writeErrorBody(w, http.StatusBadRequest, kind, err.Error())
	case errors.ErrNotFound:
		writeErrorBody(w, http.StatusNotFound, kind, err.Error())
	case errors.ErrStoreUnavailable:
		logger.Errorw("store unavailable", logger.FieldPath, r.URL.Path, logger.FieldError, err)
		writeErrorBody(w, http.StatusInternalServerError, kind, "the metrics store is unavailable")
	default:
		logger.Errorw("request failed", logger.FieldPath, r.URL.Path, logger.FieldError, err)
		writeErrorBody(w, http.StatusInternalServerError, kind, "internal server error")
	}
}

// positiveInt reads an optional positive integer query parameter.
func positiveInt(r *http.Request, name string, def int) (int, error) {
	return window.ParseCount(name, r.URL.Query().Get(name), def)
}

// pipelineName returns the decoded {name} path segment.
func pipelineName(r *http.Request) (string, error) {
	name := chi.URLParam(r, "name")
	if r.URL.RawPath != "" {
		decoded, err := url.PathUnescape(name)
		if err != nil {
			return "", errors.InvalidParameterf("malformed pipeline name %q", name)
		}
		name = decoded
	}
	if name == "" {
		return "", errors.InvalidParameterf("pipeline name cannot be empty")
	}
	return name, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.InvalidParameterf("invalid JSON body: %v", err)
	}
	return nil
}
