package store

import "database/sql"

const sqliteMigrationSQL = `
CREATE TABLE IF NOT EXISTS pipeline_executions (
    id TEXT PRIMARY KEY,
    pipeline_name TEXT NOT NULL,
    status TEXT NOT NULL,
    start_time TEXT NOT NULL,
    end_time TEXT,
    records_processed INTEGER,
    error_message TEXT,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_executions_pipeline ON pipeline_executions(pipeline_name);
CREATE INDEX IF NOT EXISTS idx_executions_start ON pipeline_executions(start_time);

CREATE TABLE IF NOT EXISTS data_quality_metrics (
    id TEXT PRIMARY KEY,
    pipeline_name TEXT NOT NULL,
    metric_name TEXT NOT NULL,
    metric_value REAL NOT NULL,
    threshold REAL NOT NULL,
    measured_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_quality_pipeline ON data_quality_metrics(pipeline_name);
CREATE INDEX IF NOT EXISTS idx_quality_measured ON data_quality_metrics(measured_at);

CREATE TABLE IF NOT EXISTS system_metrics (
    id TEXT PRIMARY KEY,
    metric_type TEXT NOT NULL,
    metric_value REAL NOT NULL,
    unit TEXT NOT NULL DEFAULT '%',
    timestamp TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_system_timestamp ON system_metrics(timestamp);
`

const postgresMigrationSQL = `
CREATE TABLE IF NOT EXISTS pipeline_executions (
    id TEXT PRIMARY KEY,
    pipeline_name VARCHAR(100) NOT NULL,
    status VARCHAR(20) NOT NULL,
    start_time TIMESTAMPTZ NOT NULL,
    end_time TIMESTAMPTZ,
    records_processed BIGINT,
    error_message TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_executions_pipeline ON pipeline_executions(pipeline_name);
CREATE INDEX IF NOT EXISTS idx_executions_start ON pipeline_executions(start_time);

CREATE TABLE IF NOT EXISTS data_quality_metrics (
    id TEXT PRIMARY KEY,
    pipeline_name VARCHAR(100) NOT NULL,
    metric_name VARCHAR(50) NOT NULL,
    metric_value DOUBLE PRECISION NOT NULL,
    threshold DOUBLE PRECISION NOT NULL,
    measured_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_quality_pipeline ON data_quality_metrics(pipeline_name);
CREATE INDEX IF NOT EXISTS idx_quality_measured ON data_quality_metrics(measured_at);

CREATE TABLE IF NOT EXISTS system_metrics (
    id TEXT PRIMARY KEY,
    metric_type VARCHAR(50) NOT NULL,
    metric_value DOUBLE PRECISION NOT NULL,
    unit VARCHAR(20) NOT NULL DEFAULT '%',
    timestamp TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_system_timestamp ON system_metrics(timestamp);
`

// RunMigrations applies the SQLite schema.
func RunMigrations(db *sql.DB) error {
	_, err := db.Exec(sqliteMigrationSQL)
	return err
}
