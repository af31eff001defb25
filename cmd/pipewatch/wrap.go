package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/patrickspencer/pipewatch/internal/collector"
	"github.com/patrickspencer/pipewatch/internal/errors"
	"github.com/patrickspencer/pipewatch/internal/logger"
	"github.com/patrickspencer/pipewatch/internal/runner"
	"github.com/patrickspencer/pipewatch/internal/store"
)

const apiTimeout = 10 * time.Second

func newWrapCmd(configPath *string) *cobra.Command {
	var (
		name    string
		apiURL  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "wrap --name <pipeline> [--api <url>] -- <command...>",
		Short: "Run a command and record it as a pipeline execution",
		Long: `Run a shell command, time it, and record the outcome as an execution of
the named pipeline. A line "records_processed=N" on stdout sets the record
count. The process exits with the command's exit code.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(name) == "" {
				return errors.New("--name is required")
			}
			c := runner.Command{
				Pipeline: name,
				Shell:    strings.Join(args, " "),
				Timeout:  timeout,
				Stdout:   os.Stdout,
				Stderr:   os.Stderr,
			}
			return runWrap(cmd.Context(), *configPath, apiURL, c)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "pipeline name to record under (required)")
	cmd.Flags().StringVar(&apiURL, "api", "", "record through a running server at this URL instead of opening the store")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "optional command timeout")
	return cmd
}

func runWrap(ctx context.Context, configPath, apiURL string, c runner.Command) error {
	res := runner.NewRunner().Run(ctx, c)
	e := res.Execution()

	var err error
	if apiURL != "" {
		client := &http.Client{Timeout: apiTimeout}
		err = postExecution(ctx, client, apiURL, e)
	} else {
		err = recordDirect(ctx, configPath, e)
	}
	if err != nil {
		// The command's own outcome wins; a recording failure is only reported.
		fmt.Fprintf(os.Stderr, "warning: failed to record execution: %v\n", err)
	}

	if res.ExitCode != 0 {
		return &exitCodeError{code: res.ExitCode}
	}
	if res.Err != "" {
		return &exitCodeError{code: 1}
	}
	return nil
}

func recordDirect(ctx context.Context, configPath string, e *store.Execution) error {
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

	return collector.NewRecorder(st, nil).RecordExecution(ctx, e)
}

type executionPayload struct {
	PipelineName     string  `json:"pipeline_name"`
	Status           string  `json:"status"`
	StartTime        string  `json:"start_time"`
	EndTime          *string `json:"end_time,omitempty"`
	RecordsProcessed *int64  `json:"records_processed,omitempty"`
	ErrorMessage     *string `json:"error_message,omitempty"`
}

// postExecution sends e to a running server's execution endpoint.
func postExecution(ctx context.Context, client *http.Client, baseURL string, e *store.Execution) error {
	payload := executionPayload{
		PipelineName:     e.PipelineName,
		Status:           string(e.Status),
		StartTime:        e.StartTime.UTC().Format(time.RFC3339Nano),
		RecordsProcessed: e.RecordsProcessed,
	}
	if e.EndTime != nil {
		end := e.EndTime.UTC().Format(time.RFC3339Nano)
		payload.EndTime = &end
	}
	if e.ErrorMessage != "" {
		msg := e.ErrorMessage
		payload.ErrorMessage = &msg
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := strings.TrimRight(baseURL, "/") + "/api/pipelines"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return errors.Wrap(err, "posting execution")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Newf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return nil
}
