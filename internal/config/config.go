package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DatabaseConfig selects the record store. Path applies to sqlite, URL to postgres.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	URL    string `yaml:"url"`
}

// DSN returns the connection string for the configured driver.
func (c DatabaseConfig) DSN() string {
	if c.Driver == DriverPostgres {
		return c.URL
	}
	return c.Path
}

// CollectorConfig controls periodic system sampling.
type CollectorConfig struct {
	Enabled  *bool  `yaml:"enabled"`
	Schedule string `yaml:"schedule"`
	DiskPath string `yaml:"disk_path"`
}

// IsEnabled returns whether system sampling runs. Defaults to true when unset.
func (c CollectorConfig) IsEnabled() bool {
	if c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// IngestConfig rate limits the write endpoints.
type IngestConfig struct {
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
}

// Config is the top-level server configuration parsed from pipewatch.yaml.
type Config struct {
	Listen    string          `yaml:"listen"`
	DataDir   string          `yaml:"data_dir"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"`
	Database  DatabaseConfig  `yaml:"database"`
	Collector CollectorConfig `yaml:"collector"`
	Ingest    IngestConfig    `yaml:"ingest"`
}

func applyDefaults(c *Config) {
	if c.Listen == "" {
		c.Listen = ":5000"
	}
	if c.DataDir == "" {
		c.DataDir = "./data"
	}
	c.DataDir = expandPath(c.DataDir)
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverSQLite
	}
	if c.Database.Path == "" {
		c.Database.Path = filepath.Join(c.DataDir, "pipewatch.db")
	} else {
		c.Database.Path = expandPath(c.Database.Path)
	}
	if c.Collector.Schedule == "" {
		c.Collector.Schedule = "@every 1m"
	}
	if c.Collector.DiskPath == "" {
		c.Collector.DiskPath = "/"
	}
	if c.Collector.Enabled == nil {
		t := true
		c.Collector.Enabled = &t
	}
	if c.Ingest.RatePerSecond <= 0 {
		c.Ingest.RatePerSecond = 50
	}
	if c.Ingest.Burst <= 0 {
		c.Ingest.Burst = 100
	}
}

// applyEnv overlays environment variables on values read from the file.
func applyEnv(c *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup("DATABASE_URL"); ok && v != "" {
		if err := c.Database.setURL(v); err != nil {
			return err
		}
	}
	if v, ok := lookup("SERVER_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("invalid SERVER_PORT %q", v)
		}
		host := ""
		if h, _, found := strings.Cut(c.Listen, ":"); found {
			host = h
		}
		c.Listen = host + ":" + strconv.Itoa(port)
	}
	if v, ok := lookup("PIPEWATCH_LISTEN"); ok && v != "" {
		c.Listen = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		c.LogLevel = v
	}
	return nil
}

// setURL accepts sqlite:///relative/path, sqlite:////absolute/path and
// postgres:// or postgresql:// URLs.
func (c *DatabaseConfig) setURL(raw string) error {
	switch {
	case strings.HasPrefix(raw, "sqlite:///"):
		c.Driver = DriverSQLite
		c.Path = strings.TrimPrefix(raw, "sqlite:///")
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		c.Driver = DriverPostgres
		c.URL = raw
	default:
		return fmt.Errorf("unsupported DATABASE_URL scheme in %q", raw)
	}
	return nil
}

func expandPath(value string) string {
	v := strings.TrimSpace(value)
	if v == "" {
		return value
	}

	v = os.ExpandEnv(v)

	home, err := os.UserHomeDir()
	if err != nil || strings.TrimSpace(home) == "" {
		return v
	}

	if v == "~" {
		return home
	}
	if strings.HasPrefix(v, "~/") {
		return filepath.Join(home, v[2:])
	}
	return v
}

// LoadConfig reads a YAML configuration file from path, overlays environment
// variables and returns a Config with defaults applied for any unset fields.
// A missing file is not an error: the result is built from defaults and
// environment alone.
func LoadConfig(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case os.IsNotExist(err):
		default:
			return nil, err
		}
	}

	if err := applyEnv(&cfg, lookup); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if cfg.Database.Driver != DriverSQLite && cfg.Database.Driver != DriverPostgres {
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}
	if cfg.Database.Driver == DriverPostgres && cfg.Database.URL == "" {
		return nil, fmt.Errorf("database.url is required for the postgres driver")
	}
	return &cfg, nil
}
