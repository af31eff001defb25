package collector

import (
	"context"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/patrickspencer/pipewatch/internal/errors"
	"github.com/patrickspencer/pipewatch/internal/logger"
	"github.com/patrickspencer/pipewatch/internal/realtime"
	"github.com/patrickspencer/pipewatch/internal/store"
)

// Sampler reads current resource utilisation as percentages.
type Sampler interface {
	CPUPercent(ctx context.Context) (float64, error)
	MemoryPercent(ctx context.Context) (float64, error)
	DiskPercent(ctx context.Context) (float64, error)
}

// HostSampler reads the local host through gopsutil.
type HostSampler struct {
	// DiskPath is the mount whose usage is reported.
	DiskPath string
	// CPUInterval is how long CPU usage is measured over.
	CPUInterval time.Duration
}

// NewHostSampler returns a HostSampler for diskPath with a one second CPU window.
func NewHostSampler(diskPath string) *HostSampler {
	if diskPath == "" {
		diskPath = "/"
	}
	return &HostSampler{DiskPath: diskPath, CPUInterval: time.Second}
}

func (h *HostSampler) CPUPercent(ctx context.Context) (float64, error) {
	pcts, err := cpu.PercentWithContext(ctx, h.CPUInterval, false)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get cpu usage")
	}
	if len(pcts) == 0 {
		return 0, errors.New("cpu usage unavailable")
	}
	return pcts[0], nil
}

func (h *HostSampler) MemoryPercent(ctx context.Context) (float64, error) {
	v, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "failed to get memory stats")
	}
	return v.UsedPercent, nil
}

func (h *HostSampler) DiskPercent(ctx context.Context) (float64, error) {
	u, err := disk.UsageWithContext(ctx, h.DiskPath)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to get disk usage for %s", h.DiskPath)
	}
	return u.UsedPercent, nil
}

// CollectSystemMetrics takes one reading of each resource and appends them as
// a single batch. A reading that fails or falls outside 0..100 is logged and
// left out, so a broken probe never shows up as 0% usage. It returns the
// samples that were stored.
func (r *Recorder) CollectSystemMetrics(ctx context.Context, src Sampler) ([]store.SystemSample, error) {
	now := r.now().UTC()
	probes := []struct {
		typ  store.SampleType
		read func(context.Context) (float64, error)
	}{
		{store.SampleCPU, src.CPUPercent},
		{store.SampleMemory, src.MemoryPercent},
		{store.SampleDisk, src.DiskPercent},
	}

	samples := make([]store.SystemSample, 0, len(probes))
	for _, p := range probes {
		v, err := p.read(ctx)
		if err == nil {
			s := store.SystemSample{Type: p.typ, Value: v, Timestamp: now}
			err = s.Validate()
			if err == nil {
				samples = append(samples, s)
				continue
			}
		}
		r.log.Warnw("skipping system reading", "metric_type", p.typ, logger.FieldError, err)
	}
	if len(samples) == 0 {
		return nil, errors.New("no system readings available")
	}

	if err := r.store.RecordSystemSamples(ctx, samples); err != nil {
		r.log.Errorw("record system samples failed", logger.FieldError, err)
		return nil, err
	}
	r.log.Debugw("collected system metrics", logger.FieldCount, len(samples))
	r.events.Publish(realtime.Event{Type: realtime.SystemSampled, Count: len(samples)})
	return samples, nil
}
