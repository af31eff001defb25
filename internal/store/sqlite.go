package store

import (
	"context"
	"crypto/rand"
	"database/sql"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/patrickspencer/pipewatch/internal/errors"
)

var (
	idMu      sync.Mutex
	idEntropy = ulid.Monotonic(rand.Reader, 0)
)

// NewID generates a ULID record identifier. IDs generated by one process are
// strictly increasing, so ordering by ID preserves insertion order.
func NewID() string {
	idMu.Lock()
	defer idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), idEntropy).String()
}

// SQLiteStore implements Store backed by SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.StoreUnavailable(err, "open sqlite")
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.StoreUnavailable(err, "set WAL mode")
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, errors.StoreUnavailable(err, "set busy timeout")
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, errors.StoreUnavailable(err, "run migrations")
	}

	return newSQLiteStore(db), nil
}

func newSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Fixed-width UTC layout: lexical order of stored values equals time order,
// which RFC3339Nano's trimmed fraction does not guarantee.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func formatTimePtr(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeFormat, s)
}

func parseTimePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64Ptr(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func prepareExecution(e *Execution) error {
	e.Normalize()
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = NewID()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return nil
}

func prepareQualityMetric(m *QualityMetric) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if m.ID == "" {
		m.ID = NewID()
	}
	return nil
}

func prepareSamples(samples []SystemSample) error {
	for i := range samples {
		if err := samples[i].Validate(); err != nil {
			return err
		}
		if samples[i].ID == "" {
			samples[i].ID = NewID()
		}
	}
	return nil
}

// RecordExecution appends one execution record.
func (s *SQLiteStore) RecordExecution(ctx context.Context, e *Execution) error {
	if err := prepareExecution(e); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pipeline_executions (
			id, pipeline_name, status, start_time, end_time,
			records_processed, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID,
		e.PipelineName,
		string(e.Status),
		formatTime(e.StartTime),
		formatTimePtr(e.EndTime),
		nullInt64Ptr(e.RecordsProcessed),
		nullString(e.ErrorMessage),
		formatTime(e.CreatedAt),
	)
	return errors.StoreUnavailable(err, "insert execution")
}

// RecordQualityMetric appends one quality metric.
func (s *SQLiteStore) RecordQualityMetric(ctx context.Context, m *QualityMetric) error {
	if err := prepareQualityMetric(m); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO data_quality_metrics (
			id, pipeline_name, metric_name, metric_value, threshold, measured_at
		) VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID,
		m.PipelineName,
		string(m.MetricName),
		m.Value,
		m.Threshold,
		formatTime(m.MeasuredAt),
	)
	return errors.StoreUnavailable(err, "insert quality metric")
}

// RecordSystemSamples appends a batch of samples in one transaction.
func (s *SQLiteStore) RecordSystemSamples(ctx context.Context, samples []SystemSample) error {
	if len(samples) == 0 {
		return nil
	}
	if err := prepareSamples(samples); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.StoreUnavailable(err, "begin sample batch")
	}
	defer tx.Rollback()

	for _, sm := range samples {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO system_metrics (id, metric_type, metric_value, unit, timestamp)
			VALUES (?, ?, ?, ?, ?)`,
			sm.ID, string(sm.Type), sm.Value, PercentUnit, formatTime(sm.Timestamp),
		); err != nil {
			return errors.StoreUnavailable(err, "insert system sample")
		}
	}
	return errors.StoreUnavailable(tx.Commit(), "commit sample batch")
}

func (s *SQLiteStore) scanExecution(row interface{ Scan(...any) error }) (Execution, error) {
	var e Execution
	var status, startTime, createdAt string
	var endTime, errorMsg sql.NullString
	var records sql.NullInt64

	err := row.Scan(
		&e.ID,
		&e.PipelineName,
		&status,
		&startTime,
		&endTime,
		&records,
		&errorMsg,
		&createdAt,
	)
	if err != nil {
		return e, err
	}

	e.Status = Status(status)
	e.StartTime, err = parseTime(startTime)
	if err != nil {
		return e, errors.Wrap(err, "parse start_time")
	}
	e.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return e, errors.Wrap(err, "parse created_at")
	}
	e.EndTime, err = parseTimePtr(endTime)
	if err != nil {
		return e, errors.Wrap(err, "parse end_time")
	}
	if records.Valid {
		v := records.Int64
		e.RecordsProcessed = &v
	}
	if errorMsg.Valid {
		e.ErrorMessage = errorMsg.String
	}
	return e, nil
}

const selectExecutionCols = `id, pipeline_name, status, start_time, end_time,
	records_processed, error_message, created_at`

// ListExecutions returns executions matching q, ordered by start_time then insertion.
func (s *SQLiteStore) ListExecutions(ctx context.Context, q ExecutionQuery) ([]Execution, error) {
	query := "SELECT " + selectExecutionCols + " FROM pipeline_executions WHERE 1=1"
	var args []any

	if q.PipelineName != "" {
		query += " AND pipeline_name = ?"
		args = append(args, q.PipelineName)
	}
	if !q.Since.IsZero() {
		query += " AND start_time >= ?"
		args = append(args, formatTime(q.Since))
	}
	query += " ORDER BY start_time ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.StoreUnavailable(err, "query executions")
	}
	defer rows.Close()

	var out []Execution
	for rows.Next() {
		e, err := s.scanExecution(rows)
		if err != nil {
			return nil, errors.StoreUnavailable(err, "scan execution")
		}
		out = append(out, e)
	}
	return out, errors.StoreUnavailable(rows.Err(), "iterate executions")
}

// ListQualityMetrics returns quality metrics matching q, oldest first.
func (s *SQLiteStore) ListQualityMetrics(ctx context.Context, q QualityQuery) ([]QualityMetric, error) {
	query := `SELECT id, pipeline_name, metric_name, metric_value, threshold, measured_at
		FROM data_quality_metrics WHERE 1=1`
	var args []any

	if q.PipelineName != "" {
		query += " AND pipeline_name = ?"
		args = append(args, q.PipelineName)
	}
	if !q.Since.IsZero() {
		query += " AND measured_at >= ?"
		args = append(args, formatTime(q.Since))
	}
	query += " ORDER BY measured_at ASC, id ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.StoreUnavailable(err, "query quality metrics")
	}
	defer rows.Close()

	var out []QualityMetric
	for rows.Next() {
		var m QualityMetric
		var name, measuredAt string
		if err := rows.Scan(&m.ID, &m.PipelineName, &name, &m.Value, &m.Threshold, &measuredAt); err != nil {
			return nil, errors.StoreUnavailable(err, "scan quality metric")
		}
		m.MetricName = QualityDimension(name)
		if m.MeasuredAt, err = parseTime(measuredAt); err != nil {
			return nil, errors.StoreUnavailable(err, "parse measured_at")
		}
		out = append(out, m)
	}
	return out, errors.StoreUnavailable(rows.Err(), "iterate quality metrics")
}

// ListSystemSamples returns samples taken at or after since, oldest first.
func (s *SQLiteStore) ListSystemSamples(ctx context.Context, since time.Time) ([]SystemSample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, metric_type, metric_value, timestamp
		FROM system_metrics
		WHERE timestamp >= ?
		ORDER BY timestamp ASC, id ASC`, formatTime(since))
	if err != nil {
		return nil, errors.StoreUnavailable(err, "query system samples")
	}
	defer rows.Close()

	var out []SystemSample
	for rows.Next() {
		var sm SystemSample
		var typ, ts string
		if err := rows.Scan(&sm.ID, &typ, &sm.Value, &ts); err != nil {
			return nil, errors.StoreUnavailable(err, "scan system sample")
		}
		sm.Type = SampleType(typ)
		if sm.Timestamp, err = parseTime(ts); err != nil {
			return nil, errors.StoreUnavailable(err, "parse timestamp")
		}
		out = append(out, sm)
	}
	return out, errors.StoreUnavailable(rows.Err(), "iterate system samples")
}

// Ping runs a trivial query to prove the database answers.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	var one int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM pipeline_executions LIMIT 1").Scan(&one)
	if err == sql.ErrNoRows {
		return nil
	}
	return errors.StoreUnavailable(err, "ping store")
}
