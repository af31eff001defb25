package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/patrickspencer/pipewatch/internal/errors"
)

// PostgresStore implements Store backed by a pgx connection pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects to databaseURL, verifies the connection and runs migrations.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, errors.Wrap(errors.Mark(err, errors.ErrInvalidParameter), "parse database url")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, errors.StoreUnavailable(err, "connect to database")
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.StoreUnavailable(err, "ping database")
	}

	if _, err := pool.Exec(ctx, postgresMigrationSQL); err != nil {
		pool.Close()
		return nil, errors.StoreUnavailable(err, "run migrations")
	}

	return &PostgresStore{pool: pool}, nil
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// RecordExecution appends one execution record.
func (s *PostgresStore) RecordExecution(ctx context.Context, e *Execution) error {
	if err := prepareExecution(e); err != nil {
		return err
	}

	var errMsg *string
	if e.ErrorMessage != "" {
		errMsg = &e.ErrorMessage
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pipeline_executions (
			id, pipeline_name, status, start_time, end_time,
			records_processed, error_message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.PipelineName, string(e.Status), e.StartTime.UTC(), utcPtr(e.EndTime),
		e.RecordsProcessed, errMsg, e.CreatedAt.UTC(),
	)
	return errors.StoreUnavailable(err, "insert execution")
}

// RecordQualityMetric appends one quality metric.
func (s *PostgresStore) RecordQualityMetric(ctx context.Context, m *QualityMetric) error {
	if err := prepareQualityMetric(m); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO data_quality_metrics (
			id, pipeline_name, metric_name, metric_value, threshold, measured_at
		) VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.PipelineName, string(m.MetricName), m.Value, m.Threshold, m.MeasuredAt.UTC(),
	)
	return errors.StoreUnavailable(err, "insert quality metric")
}

// RecordSystemSamples appends a batch of samples in one transaction.
func (s *PostgresStore) RecordSystemSamples(ctx context.Context, samples []SystemSample) error {
	if len(samples) == 0 {
		return nil
	}
	if err := prepareSamples(samples); err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, sm := range samples {
		batch.Queue(`
			INSERT INTO system_metrics (id, metric_type, metric_value, unit, timestamp)
			VALUES ($1, $2, $3, $4, $5)`,
			sm.ID, string(sm.Type), sm.Value, PercentUnit, sm.Timestamp.UTC())
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.StoreUnavailable(err, "begin sample batch")
	}
	defer tx.Rollback(ctx)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return errors.StoreUnavailable(err, "insert system samples")
	}
	return errors.StoreUnavailable(tx.Commit(ctx), "commit sample batch")
}

// ListExecutions returns executions matching q, ordered by start_time then insertion.
func (s *PostgresStore) ListExecutions(ctx context.Context, q ExecutionQuery) ([]Execution, error) {
	query := "SELECT " + selectExecutionCols + " FROM pipeline_executions WHERE true"
	var args []any

	if q.PipelineName != "" {
		args = append(args, q.PipelineName)
		query += fmt.Sprintf(" AND pipeline_name = $%d", len(args))
	}
	if !q.Since.IsZero() {
		args = append(args, q.Since.UTC())
		query += fmt.Sprintf(" AND start_time >= $%d", len(args))
	}
	query += " ORDER BY start_time ASC, id ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.StoreUnavailable(err, "query executions")
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		var e Execution
		var status string
		var errMsg *string
		if err := rows.Scan(
			&e.ID, &e.PipelineName, &status, &e.StartTime, &e.EndTime,
			&e.RecordsProcessed, &errMsg, &e.CreatedAt,
		); err != nil {
			return nil, errors.StoreUnavailable(err, "scan execution")
		}
		e.Status = Status(status)
		e.StartTime = e.StartTime.UTC()
		e.CreatedAt = e.CreatedAt.UTC()
		e.EndTime = utcPtr(e.EndTime)
		if errMsg != nil {
			e.ErrorMessage = *errMsg
		}
		out = append(out, e)
	}
	return out, errors.StoreUnavailable(rows.Err(), "iterate executions")
}

// ListQualityMetrics returns quality metrics matching q, oldest first.
func (s *PostgresStore) ListQualityMetrics(ctx context.Context, q QualityQuery) ([]QualityMetric, error) {
	query := `SELECT id, pipeline_name, metric_name, metric_value, threshold, measured_at
		FROM data_quality_metrics WHERE true`
	var args []any

	if q.PipelineName != "" {
		args = append(args, q.PipelineName)
		query += fmt.Sprintf(" AND pipeline_name = $%d", len(args))
	}
	if !q.Since.IsZero() {
		args = append(args, q.Since.UTC())
		query += fmt.Sprintf(" AND measured_at >= $%d", len(args))
	}
	query += " ORDER BY measured_at ASC, id ASC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.StoreUnavailable(err, "query quality metrics")
	}
	defer rows.Close()

	var out []QualityMetric
	for rows.Next() {
		var m QualityMetric
		var name string
		if err := rows.Scan(&m.ID, &m.PipelineName, &name, &m.Value, &m.Threshold, &m.MeasuredAt); err != nil {
			return nil, errors.StoreUnavailable(err, "scan quality metric")
		}
		m.MetricName = QualityDimension(name)
		m.MeasuredAt = m.MeasuredAt.UTC()
		out = append(out, m)
	}
	return out, errors.StoreUnavailable(rows.Err(), "iterate quality metrics")
}

// ListSystemSamples returns samples taken at or after since, oldest first.
func (s *PostgresStore) ListSystemSamples(ctx context.Context, since time.Time) ([]SystemSample, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, metric_type, metric_value, timestamp
		FROM system_metrics
		WHERE timestamp >= $1
		ORDER BY timestamp ASC, id ASC`, since.UTC())
	if err != nil {
		return nil, errors.StoreUnavailable(err, "query system samples")
	}
	defer rows.Close()

	var out []SystemSample
	for rows.Next() {
		var sm SystemSample
		var typ string
		if err := rows.Scan(&sm.ID, &typ, &sm.Value, &sm.Timestamp); err != nil {
			return nil, errors.StoreUnavailable(err, "scan system sample")
		}
		sm.Type = SampleType(typ)
		sm.Timestamp = sm.Timestamp.UTC()
		out = append(out, sm)
	}
	return out, errors.StoreUnavailable(rows.Err(), "iterate system samples")
}

// Ping checks the pool can reach the server and the schema exists.
func (s *PostgresStore) Ping(ctx context.Context) error {
	var n int64
	err := s.pool.QueryRow(ctx, "SELECT count(*) FROM (SELECT 1 FROM pipeline_executions LIMIT 1) t").Scan(&n)
	return errors.StoreUnavailable(err, "ping store")
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
