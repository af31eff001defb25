package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/patrickspencer/pipewatch/internal/errors"
)

func newWatchdogCmd() *cobra.Command {
	var (
		apiURL     string
		restartCmd string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watchdog",
		Short: "Check server health and optionally run a restart command",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := &http.Client{Timeout: timeout}
			if err := checkHealth(cmd.Context(), client, apiURL); err != nil {
				fmt.Fprintf(os.Stderr, "health check failed: %v\n", err)
				return handleUnhealthy(cmd.Context(), restartCmd)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&apiURL, "api", "http://localhost:5000", "pipewatch server URL")
	cmd.Flags().StringVar(&restartCmd, "restart-cmd", "", "command to run if unhealthy")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "health check timeout")
	return cmd
}

// checkHealth returns nil only when the server reports itself healthy.
func checkHealth(ctx context.Context, client *http.Client, baseURL string) error {
	url := strings.TrimRight(baseURL, "/") + "/api/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var body struct {
		Status   string `json:"status"`
		Database string `json:"database"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return errors.Wrapf(err, "decoding health response (status %d)", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || body.Status != "healthy" {
		return errors.Newf("server is %s (status %d, database %s)", body.Status, resp.StatusCode, body.Database)
	}
	return nil
}

func handleUnhealthy(ctx context.Context, restartCmd string) error {
	if restartCmd == "" {
		return &exitCodeError{code: 1}
	}

	fmt.Fprintf(os.Stderr, "attempting restart: %s\n", restartCmd)
	cmd := exec.CommandContext(ctx, "sh", "-c", restartCmd)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrap(err, "restart command failed")
	}
	return nil
}
