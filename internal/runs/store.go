package runs

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Store persists run history in SQLite. A flock beside the database
// serializes writers so two concurrent invocations never race the same file.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
	path string
}

// Open initializes or connects to the run database under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure runs directory: %w", err)
	}

	lock := flock.New(filepath.Join(dir, "runs.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire runs lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("runs database at %s is locked by another speechtune process", dir)
	}

	dbPath := filepath.Join(dir, "runs.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, lock: lock, path: dbPath}, nil
}

// Close releases the database and the writer lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	if s.lock != nil {
		_ = s.lock.Unlock()
	}
	return err
}

// Begin records a new running invocation and returns its id.
func (s *Store) Begin(ctx context.Context, kind Kind, mth, size, checkpointDir string) (string, error) {
	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, method, model_size, status, checkpoint_dir, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, kind, mth, size, StatusRunning, checkpointDir, now, now,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// Complete marks a run finished with its final metric.
func (s *Store) Complete(ctx context.Context, id string, steps int, metricName string, metricValue float64) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, steps = ?, metric_name = ?, metric_value = ?, updated_at = ? WHERE id = ?`,
		StatusCompleted, steps, metricName, metricValue, now, id,
	)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	return ensureRowUpdated(res, id)
}

// Fail marks a run failed with its error message.
func (s *Store) Fail(ctx context.Context, id string, runErr error) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	message := ""
	if runErr != nil {
		message = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		StatusFailed, message, now, id,
	)
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	return ensureRowUpdated(res, id)
}

// GetByID returns one run.
func (s *Store) GetByID(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run %s not found", id)
	}
	return run, err
}

// Find resolves a run by full id or unique prefix.
func (s *Store) Find(ctx context.Context, idOrPrefix string) (*Run, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` WHERE id = ? OR id LIKE ?`,
		idOrPrefix, idOrPrefix+"%")
	if err != nil {
		return nil, fmt.Errorf("find run: %w", err)
	}
	defer rows.Close()

	var matches []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("run %s not found", idOrPrefix)
	case 1:
		return matches[0], nil
	default:
		return nil, fmt.Errorf("run prefix %s is ambiguous (%d matches)", idOrPrefix, len(matches))
	}
}

// List returns runs newest first, up to limit (0 means all).
func (s *Store) List(ctx context.Context, limit int) ([]*Run, error) {
	query := selectColumns + ` ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

const selectColumns = `SELECT id, kind, method, model_size, status, steps,
    metric_name, metric_value, checkpoint_dir, error, created_at, updated_at FROM runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var run Run
	var metricName, checkpointDir, errMsg sql.NullString
	var metricValue sql.NullFloat64
	var createdAt, updatedAt string
	err := row.Scan(&run.ID, &run.Kind, &run.Method, &run.ModelSize, &run.Status, &run.Steps,
		&metricName, &metricValue, &checkpointDir, &errMsg, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	run.MetricName = metricName.String
	run.MetricValue = metricValue.Float64
	run.HasMetric = metricValue.Valid
	run.CheckpointDir = checkpointDir.String
	run.Error = errMsg.String
	run.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	run.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return &run, nil
}

func ensureRowUpdated(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("run %s not found", id)
	}
	return nil
}
