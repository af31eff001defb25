// Package logger holds the process-wide structured logger.
package logger

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Standard field names for consistent structured logging.
const (
	FieldComponent   = "component"
	FieldPipeline    = "pipeline"
	FieldExecutionID = "execution_id"
	FieldStatus      = "status"
	FieldMethod      = "method"
	FieldPath        = "path"
	FieldDurationMS  = "duration_ms"
	FieldCount       = "count"
	FieldAddress     = "address"
	FieldError       = "error"
	FieldTask        = "task"
	FieldRequestID   = "request_id"
)

// Logger is the global sugared logger. It discards output until Initialize
// is called so packages can log unconditionally in tests.
var Logger = zap.NewNop().Sugar()

// Initialize builds the global logger. format is "json" or "console".
func Initialize(level, format string) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return err
	}

	var cfg zap.Config
	if strings.EqualFold(format, "json") {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	z, err := cfg.Build()
	if err != nil {
		return err
	}
	Logger = z.Sugar()
	return nil
}

// Named returns a child logger tagged with a component name.
func Named(component string) *zap.SugaredLogger {
	return Logger.With(FieldComponent, component)
}

// Cleanup flushes any buffered log entries.
func Cleanup() {
	_ = Logger.Sync()
}

// Debugw logs a debug message with structured fields.
func Debugw(msg string, keysAndValues ...any) { Logger.Debugw(msg, keysAndValues...) }

// Infow logs an info message with structured fields.
func Infow(msg string, keysAndValues ...any) { Logger.Infow(msg, keysAndValues...) }

// Warnw logs a warning with structured fields.
func Warnw(msg string, keysAndValues ...any) { Logger.Warnw(msg, keysAndValues...) }

// Errorw logs an error with structured fields.
func Errorw(msg string, keysAndValues ...any) { Logger.Errorw(msg, keysAndValues...) }

// RequestLogger is chi middleware that logs one line per request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		fields := []any{
			FieldMethod, r.Method,
			FieldPath, r.URL.Path,
			FieldStatus, status,
			FieldDurationMS, time.Since(start).Milliseconds(),
		}
		if id := middleware.GetReqID(r.Context()); id != "" {
			fields = append(fields, FieldRequestID, id)
		}
		if status >= http.StatusInternalServerError {
			Logger.Warnw("http request", fields...)
			return
		}
		Logger.Debugw("http request", fields...)
	})
}
