package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/patrickspencer/pipewatch/internal/aggregate"
	"github.com/patrickspencer/pipewatch/internal/logger"
	"github.com/patrickspencer/pipewatch/internal/present"
	"github.com/patrickspencer/pipewatch/internal/summary"
)

func newReportCmd(configPath *string) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the pipeline summary as a terminal table",
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

			b := summary.NewBuilder(st)
			g, err := b.GlobalSummary(ctx, days)
			if err != nil {
				return err
			}
			rows, err := b.PipelineTable(ctx, days)
			if err != nil {
				return err
			}
			return renderReport(os.Stdout, days, g, rows)
		},
	}

	cmd.Flags().IntVar(&days, "days", 7, "window size in days")
	return cmd
}

func renderReport(w io.Writer, days int, g aggregate.GlobalSummary, rows []aggregate.PipelineRow) error {
	fmt.Fprintf(w, "Last %d days: %d executions across %d pipelines (%d success, %d failed, %d running)\n",
		days, g.TotalExecutions, g.PipelineCount, g.SuccessCount, g.FailedCount, g.RunningCount)
	fmt.Fprintf(w, "Success rate %s, average duration %s\n\n",
		present.FormatPercent(g.SuccessRate), present.FormatOptionalDuration(g.AvgDurationSeconds))

	if len(rows) == 0 {
		fmt.Fprintln(w, "No pipeline executions recorded in this window.")
		return nil
	}
	out, err := pterm.DefaultTable.WithHasHeader().WithData(reportTable(rows)).Srender()
	if err != nil {
		return err
	}
	fmt.Fprintln(w, out)
	return nil
}

func reportTable(rows []aggregate.PipelineRow) pterm.TableData {
	data := pterm.TableData{{"Pipeline", "Status", "Last Run", "Runs", "Success Rate", "Avg Duration"}}
	for _, r := range rows {
		data = append(data, []string{
			r.Name,
			string(r.LatestStatus),
			present.FormatTime(r.LatestExecutionTime, nil),
			strconv.Itoa(r.TotalRuns),
			present.FormatPercent(r.SuccessRate),
			present.FormatOptionalDuration(r.AvgDurationSeconds),
		})
	}
	return data
}
