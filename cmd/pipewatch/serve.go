package main

import (
	"context"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/patrickspencer/pipewatch/internal/collector"
	"github.com/patrickspencer/pipewatch/internal/config"
	"github.com/patrickspencer/pipewatch/internal/errors"
	"github.com/patrickspencer/pipewatch/internal/logger"
	"github.com/patrickspencer/pipewatch/internal/realtime"
	"github.com/patrickspencer/pipewatch/internal/scheduler"
	"github.com/patrickspencer/pipewatch/internal/summary"
	"github.com/patrickspencer/pipewatch/internal/web"
	"github.com/patrickspencer/pipewatch/internal/web/api"
)

const (
	shutdownTimeout   = 10 * time.Second
	sampleTimeout     = 30 * time.Second
	systemMetricsTask = "system-metrics"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard and API server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	defer logger.Cleanup()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Infow("store opened", "driver", cfg.Database.Driver)

	events := realtime.NewBroker()
	rec := collector.NewRecorder(st, events)

	sched := scheduler.New()
	if err := scheduleSampling(sched, rec, cfg.Collector); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	srv := web.NewServer(cfg.Listen, &api.API{
		Summary:      summary.NewBuilder(st),
		Recorder:     rec,
		Events:       events,
		WriteLimiter: rate.NewLimiter(rate.Limit(cfg.Ingest.RatePerSecond), cfg.Ingest.Burst),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "http server")
	case <-ctx.Done():
	}

	logger.Infow("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("http server shutdown", logger.FieldError, err)
	}
	return nil
}

// scheduleSampling registers the periodic host sampler when enabled.
func scheduleSampling(sched *scheduler.Scheduler, rec *collector.Recorder, cfg config.CollectorConfig) error {
	if !cfg.IsEnabled() {
		logger.Infow("system metrics collection disabled")
		return nil
	}
	schedule, err := scheduler.ParseSchedule(cfg.Schedule)
	if err != nil {
		return errors.Wrapf(err, "invalid collector schedule %q", cfg.Schedule)
	}

	sampler := collector.NewHostSampler(cfg.DiskPath)
	sched.AddTask(systemMetricsTask, schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sampleTimeout)
		defer cancel()
		if _, err := rec.CollectSystemMetrics(ctx, sampler); err != nil {
			logger.Warnw("system metrics collection failed", logger.FieldTask, systemMetricsTask, logger.FieldError, err)
		}
	})
	if next, ok := sched.NextRunTime(systemMetricsTask); ok {
		logger.Infow("system metrics scheduled", "schedule", cfg.Schedule, "next_run", next.Format(time.RFC3339))
	}
	return nil
}
