// Package catalog mirrors recorded runs into a SQLite database so that
// per-script statistics can be queried without reading every record file.
// The JSON store stays authoritative; the catalog is best-effort.
package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/metorial/runhistory/internal/models"
)

const FileName = "history.db"

type DB struct {
	conn *sql.DB
}

func NewDB(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	return db, nil
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		hostname TEXT NOT NULL,
		platform TEXT NOT NULL DEFAULT '',
		platform_version TEXT NOT NULL DEFAULT '',
		kernel_version TEXT NOT NULL DEFAULT '',
		cpu_cores INTEGER NOT NULL DEFAULT 0,
		total_memory_bytes INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_batches_started_at ON batches(started_at);

	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id TEXT NOT NULL,
		file TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		version_file TEXT NOT NULL,
		git_commit TEXT NOT NULL,
		return_code INTEGER NOT NULL,
		timed_out BOOLEAN NOT NULL DEFAULT 0,
		launch_failed BOOLEAN NOT NULL DEFAULT 0,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (batch_id) REFERENCES batches(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_runs_file ON runs(file);
	CREATE INDEX IF NOT EXISTS idx_runs_batch_id ON runs(batch_id);
	CREATE INDEX IF NOT EXISTS idx_runs_timestamp ON runs(timestamp);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// StartBatch registers a new orchestrator run and returns its id.
func (db *DB) StartBatch(host *models.HostSnapshot) (string, error) {
	if host == nil {
		host = &models.HostSnapshot{}
	}

	id := uuid.New().String()
	query := `INSERT INTO batches (id, started_at, hostname, platform, platform_version, kernel_version, cpu_cores, total_memory_bytes)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.conn.Exec(query, id, time.Now(), host.Hostname, host.Platform, host.PlatformVersion,
		host.KernelVersion, host.CPUCores, host.TotalMemoryBytes)
	if err != nil {
		return "", err
	}

	return id, nil
}

func (db *DB) RecordRun(batchID string, result *models.RunResult, entry *models.IndexEntry) error {
	query := `INSERT INTO runs (batch_id, file, timestamp, version_file, git_commit, return_code, timed_out, launch_failed, duration_ms)
	          VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.conn.Exec(query, batchID, entry.File, entry.Timestamp, entry.VersionFile, entry.GitCommit,
		result.ReturnCode, result.TimedOut, result.LaunchFailed, result.Duration.Milliseconds())
	return err
}

func (db *DB) GetBatch(id string) (*models.Batch, error) {
	query := `SELECT b.id, b.started_at, b.hostname, b.platform, b.platform_version, b.kernel_version,
	          b.cpu_cores, b.total_memory_bytes, (SELECT COUNT(*) FROM runs r WHERE r.batch_id = b.id)
	          FROM batches b WHERE b.id = ?`

	var b models.Batch
	err := db.conn.QueryRow(query, id).Scan(&b.ID, &b.StartedAt, &b.Host.Hostname, &b.Host.Platform,
		&b.Host.PlatformVersion, &b.Host.KernelVersion, &b.Host.CPUCores, &b.Host.TotalMemoryBytes, &b.Runs)
	if err != nil {
		return nil, err
	}

	b.Host.CapturedAt = b.StartedAt
	return &b, nil
}

// GetScriptStats aggregates runs per script whose name contains filter.
func (db *DB) GetScriptStats(filter string) ([]models.ScriptStats, error) {
	query := `SELECT file,
	          COUNT(*),
	          SUM(CASE WHEN return_code = 0 AND timed_out = 0 AND launch_failed = 0 THEN 1 ELSE 0 END),
	          SUM(CASE WHEN timed_out = 1 THEN 1 ELSE 0 END),
	          MAX(timestamp)
	          FROM runs
	          WHERE instr(file, ?) > 0
	          GROUP BY file
	          ORDER BY file`

	rows, err := db.conn.Query(query, filter)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []models.ScriptStats
	for rows.Next() {
		var s models.ScriptStats
		if err := rows.Scan(&s.File, &s.Runs, &s.Succeeded, &s.TimedOut, &s.LastRun); err != nil {
			return nil, err
		}
		s.Failed = s.Runs - s.Succeeded - s.TimedOut
		stats = append(stats, s)
	}

	return stats, rows.Err()
}

func (db *DB) Close() error {
	return db.conn.Close()
}

// BatchSink records every run of one batch into the catalog.
type BatchSink struct {
	db      *DB
	batchID string
}

func (db *DB) NewBatchSink(host *models.HostSnapshot) (*BatchSink, error) {
	id, err := db.StartBatch(host)
	if err != nil {
		return nil, fmt.Errorf("start batch: %w", err)
	}
	return &BatchSink{db: db, batchID: id}, nil
}

func (s *BatchSink) BatchID() string {
	return s.batchID
}

func (s *BatchSink) Publish(ctx context.Context, result *models.RunResult, entry *models.IndexEntry) error {
	return s.db.RecordRun(s.batchID, result, entry)
}
