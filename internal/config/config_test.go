package config

import (
	"os"
	"path/filepath"
	"testing"
)

func noEnv(string) (string, bool) { return "", false }

func envMap(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	cfgPath := filepath.Join(t.TempDir(), "pipewatch.yaml")
	if err := os.WriteFile(cfgPath, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := load(writeConfig(t, "{}\n"), noEnv)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Listen != ":5000" {
		t.Fatalf("expected default listen :5000, got %q", cfg.Listen)
	}
	if cfg.DataDir != "./data" {
		t.Fatalf("expected default data_dir ./data, got %q", cfg.DataDir)
	}
	if cfg.Database.Driver != DriverSQLite {
		t.Fatalf("expected sqlite driver, got %q", cfg.Database.Driver)
	}
	if got, want := cfg.Database.DSN(), filepath.Join("./data", "pipewatch.db"); got != want {
		t.Fatalf("expected dsn %q, got %q", want, got)
	}
	if !cfg.Collector.IsEnabled() || cfg.Collector.Schedule != "@every 1m" || cfg.Collector.DiskPath != "/" {
		t.Fatalf("unexpected collector defaults: %+v", cfg.Collector)
	}
	if cfg.Ingest.RatePerSecond <= 0 || cfg.Ingest.Burst <= 0 {
		t.Fatalf("expected positive ingest defaults, got %+v", cfg.Ingest)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := load(filepath.Join(t.TempDir(), "absent.yaml"), noEnv)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":5000" {
		t.Fatalf("expected defaults, got listen %q", cfg.Listen)
	}
}

func TestLoadConfigExpandsTildePaths(t *testing.T) {
	t.Parallel()

	body := `
data_dir: "~/pipewatch-data"
database:
  path: "~/metrics.db"
collector:
  enabled: false
`
	cfg, err := load(writeConfig(t, body), noEnv)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		t.Fatalf("UserHomeDir unavailable for test: %v", err)
	}

	if got, want := cfg.DataDir, filepath.Join(home, "pipewatch-data"); got != want {
		t.Fatalf("expected expanded data_dir %q, got %q", want, got)
	}
	if got, want := cfg.Database.Path, filepath.Join(home, "metrics.db"); got != want {
		t.Fatalf("expected expanded database.path %q, got %q", want, got)
	}
	if cfg.Collector.IsEnabled() {
		t.Fatalf("expected collector disabled")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := load(writeConfig(t, "listen: \"127.0.0.1:9000\"\n"), envMap(map[string]string{
		"DATABASE_URL": "sqlite:///tmp/test.db",
		"SERVER_PORT":  "7070",
		"LOG_LEVEL":    "debug",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != "127.0.0.1:7070" {
		t.Fatalf("expected listen 127.0.0.1:7070, got %q", cfg.Listen)
	}
	if cfg.Database.Driver != DriverSQLite || cfg.Database.Path != "tmp/test.db" {
		t.Fatalf("unexpected database %+v", cfg.Database)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected log level debug, got %q", cfg.LogLevel)
	}

	cfg, err = load("", envMap(map[string]string{
		"DATABASE_URL":     "postgres://u:p@localhost:5432/metrics",
		"PIPEWATCH_LISTEN": ":8181",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Database.Driver != DriverPostgres || cfg.Database.DSN() != "postgres://u:p@localhost:5432/metrics" {
		t.Fatalf("unexpected database %+v", cfg.Database)
	}
	if cfg.Listen != ":8181" {
		t.Fatalf("expected listen :8181, got %q", cfg.Listen)
	}
}

func TestInvalidSettingsRejected(t *testing.T) {
	t.Parallel()

	if _, err := load("", envMap(map[string]string{"DATABASE_URL": "mysql://x"})); err == nil {
		t.Fatalf("expected unsupported scheme error")
	}
	if _, err := load("", envMap(map[string]string{"SERVER_PORT": "http"})); err == nil {
		t.Fatalf("expected invalid port error")
	}
	if _, err := load(writeConfig(t, "database:\n  driver: postgres\n"), noEnv); err == nil {
		t.Fatalf("expected missing url error")
	}
	if _, err := load(writeConfig(t, "listen: [\n"), noEnv); err == nil {
		t.Fatalf("expected parse error")
	}
}
