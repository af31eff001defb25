package main

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/patrickspencer/pipewatch/internal/collector"
	"github.com/patrickspencer/pipewatch/internal/logger"
	"github.com/patrickspencer/pipewatch/internal/store"
)

var (
	samplePipelines = []string{"etl_pipeline", "data_quality_check", "data_warehouse_load", "api_data_sync"}
	sampleFailures  = []string{
		"Connection timeout error",
		"Data validation failed",
		"Memory limit exceeded",
		"Invalid data format",
	}
)

// seedOptions sizes a batch of sample data.
type seedOptions struct {
	Executions int
	Quality    int
	Hours      int
}

type seedCounts struct {
	Executions int
	Quality    int
	Samples    int
}

func newSeedCmd(configPath *string) *cobra.Command {
	opts := seedOptions{Executions: 30, Quality: 50, Hours: 24}
	var seed uint64

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Add sample executions, quality metrics and system samples",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			defer logger.Cleanup()

			st, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			rng := rand.New(rand.NewPCG(seed, seed))
			counts, err := seedSampleData(ctx, st, rng, time.Now().UTC(), opts)
			if err != nil {
				return err
			}

			pterm.Success.Printf("Added %d pipeline executions\n", counts.Executions)
			pterm.Success.Printf("Added %d data quality metrics\n", counts.Quality)
			pterm.Success.Printf("Added %d system samples\n", counts.Samples)
			pterm.Info.Printf("Open http://localhost%s to see the dashboard\n", cfg.Listen)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Executions, "executions", opts.Executions, "number of executions to add over the last 7 days")
	cmd.Flags().IntVar(&opts.Quality, "quality", opts.Quality, "number of quality metrics to add")
	cmd.Flags().IntVar(&opts.Hours, "hours", opts.Hours, "hours of hourly system samples to add")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 picks one from the clock)")
	return cmd
}

// seedSampleData writes random but plausible records ending at now: runs of
// 30s to 10m started within the last 7 days with about 85% succeeding, quality
// scores between 0.85 and 1.0 against the default threshold, and one reading
// per resource per hour.
func seedSampleData(ctx context.Context, w store.Writer, rng *rand.Rand, now time.Time, opts seedOptions) (seedCounts, error) {
	var counts seedCounts
	rec := collector.NewRecorder(w, nil)

	for i := 0; i < opts.Executions; i++ {
		ago := time.Duration(rng.IntN(8))*24*time.Hour +
			time.Duration(rng.IntN(24))*time.Hour +
			time.Duration(rng.IntN(60))*time.Minute
		start := now.Add(-ago)
		end := start.Add(time.Duration(30+rng.IntN(571)) * time.Second)

		e := &store.Execution{
			PipelineName: samplePipelines[rng.IntN(len(samplePipelines))],
			Status:       store.StatusSuccess,
			StartTime:    start,
			EndTime:      &end,
		}
		var records int64
		if rng.Float64() > 0.15 {
			records = 1000 + rng.Int64N(49001)
		} else {
			e.Status = store.StatusFailed
			e.ErrorMessage = sampleFailures[rng.IntN(len(sampleFailures))]
			records = rng.Int64N(5001)
		}
		e.RecordsProcessed = &records

		if err := rec.RecordExecution(ctx, e); err != nil {
			return counts, err
		}
		counts.Executions++
	}

	for i := 0; i < opts.Quality; i++ {
		m := &store.QualityMetric{
			PipelineName: samplePipelines[rng.IntN(len(samplePipelines))],
			MetricName:   store.QualityDimensions[rng.IntN(len(store.QualityDimensions))],
			Value:        math.Round((0.85+rng.Float64()*0.15)*1000) / 1000,
			Threshold:    store.DefaultThreshold,
			MeasuredAt:   now,
		}
		if err := rec.RecordQualityMetric(ctx, m); err != nil {
			return counts, err
		}
		counts.Quality++
	}

	for h := opts.Hours - 1; h >= 0; h-- {
		ts := now.Add(-time.Duration(h) * time.Hour)
		batch := []store.SystemSample{
			{Type: store.SampleCPU, Value: samplePercent(rng, 5, 85), Timestamp: ts},
			{Type: store.SampleMemory, Value: samplePercent(rng, 30, 80), Timestamp: ts},
			{Type: store.SampleDisk, Value: samplePercent(rng, 40, 60), Timestamp: ts},
		}
		if err := w.RecordSystemSamples(ctx, batch); err != nil {
			return counts, err
		}
		counts.Samples += len(batch)
	}
	return counts, nil
}

func samplePercent(rng *rand.Rand, lo, hi float64) float64 {
	return math.Round((lo+rng.Float64()*(hi-lo))*10) / 10
}
