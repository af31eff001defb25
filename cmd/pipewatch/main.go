// Command pipewatch serves the pipeline monitoring dashboard and records
// pipeline runs.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/patrickspencer/pipewatch/internal/config"
	"github.com/patrickspencer/pipewatch/internal/errors"
	"github.com/patrickspencer/pipewatch/internal/logger"
	"github.com/patrickspencer/pipewatch/internal/store"
)

// exitCodeError makes the process exit with a specific code without
// printing anything further.
type exitCodeError struct {
	code int
}

func (e *exitCodeError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}
	var exitErr *exitCodeError
	if errors.As(err, &exitErr) {
		os.Exit(exitErr.code)
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "pipewatch",
		Short:         "Monitor data pipeline executions, data quality and host resources",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "pipewatch.yaml", "path to configuration file")

	root.AddCommand(
		newServeCmd(&configPath),
		newWrapCmd(&configPath),
		newWatchdogCmd(),
		newSeedCmd(&configPath),
		newReportCmd(&configPath),
	)
	return root
}

// loadConfig reads the configuration and initializes the global logger.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, errors.Wrap(err, "loading config")
	}
	if err := logger.Initialize(cfg.LogLevel, cfg.LogFormat); err != nil {
		return nil, errors.Wrap(err, "initializing logger")
	}
	return cfg, nil
}

// openStore opens the configured store, creating the data directory for sqlite.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	if cfg.Database.Driver != config.DriverPostgres {
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, errors.Wrapf(err, "creating data directory %s", cfg.DataDir)
		}
	}
	st, err := store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN())
	if err != nil {
		return nil, errors.Wrap(err, "opening store")
	}
	return st, nil
}
