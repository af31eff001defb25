// Package ui serves the server-rendered dashboard page.
//
// The page is built with text/template, which does no escaping of its own:
// every string that originates from stored records must go through the
// escape template function.
package ui

import (
	"bytes"
	"embed"
	"net/http"
	"strconv"
	"text/template"
	"time"

	"github.com/patrickspencer/pipewatch/internal/aggregate"
	"github.com/patrickspencer/pipewatch/internal/errors"
	"github.com/patrickspencer/pipewatch/internal/logger"
	"github.com/patrickspencer/pipewatch/internal/present"
	"github.com/patrickspencer/pipewatch/internal/store"
	"github.com/patrickspencer/pipewatch/internal/summary"
	"github.com/patrickspencer/pipewatch/internal/window"
)

//go:embed templates/*.tmpl
var templates embed.FS

var funcs = template.FuncMap{
	"escape":         present.Escape,
	"formatDuration": present.FormatOptionalDuration,
	"formatPercent":  present.FormatPercent,
	"formatTime": func(t time.Time) string {
		return present.FormatTime(t, time.Local)
	},
	"formatValue": func(v float64) string {
		return strconv.FormatFloat(v, 'f', 1, 64) + store.PercentUnit
	},
}

const defaultDays = 7

var dashboard = template.Must(template.New("dashboard.tmpl").Funcs(funcs).ParseFS(templates, "templates/dashboard.tmpl"))

type pageData struct {
	Days      int
	Global    aggregate.GlobalSummary
	Pipelines []aggregate.PipelineRow
	System    []systemCard
	Error     string
	Generated time.Time
}

type systemCard struct {
	Label string
	Point aggregate.Point
	Found bool
}

// Handler renders the dashboard for the trailing ?days= window (default 7).
func Handler(b *summary.Builder) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" && r.URL.Path != "" {
			http.NotFound(w, r)
			return
		}

		data := pageData{Days: defaultDays, Generated: time.Now()}
		status := http.StatusOK
		days, err := window.ParseCount("days", r.URL.Query().Get("days"), defaultDays)
		if err == nil {
			data.Days = days
			err = load(r, b, &data)
		}
		switch {
		case err == nil:
		case errors.Is(err, errors.ErrInvalidParameter):
			data.Error = err.Error()
			status = http.StatusBadRequest
		default:
			logger.Errorw("dashboard render failed", logger.FieldError, err)
			data.Error = "Dashboard data is unavailable: the metrics store could not be read."
			status = http.StatusInternalServerError
		}

		var buf bytes.Buffer
		if err := dashboard.Execute(&buf, data); err != nil {
			logger.Errorw("dashboard template failed", logger.FieldError, err)
			http.Error(w, "template error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write(buf.Bytes())
	})
}

func load(r *http.Request, b *summary.Builder, data *pageData) error {
	ctx := r.Context()
	var err error
	if data.Global, err = b.GlobalSummary(ctx, data.Days); err != nil {
		return err
	}
	if data.Pipelines, err = b.PipelineTable(ctx, data.Days); err != nil {
		return err
	}
	series, err := b.SystemMetrics(ctx, 24)
	if err != nil {
		return err
	}
	latest := series.Latest()
	for _, c := range []struct {
		label string
		typ   store.SampleType
	}{
		{"CPU", store.SampleCPU},
		{"Memory", store.SampleMemory},
		{"Disk", store.SampleDisk},
	} {
		p, ok := latest[c.typ]
		data.System = append(data.System, systemCard{Label: c.label, Point: p, Found: ok})
	}
	return nil
}
