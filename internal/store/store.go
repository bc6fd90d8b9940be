// Package store implements the tiered reconciliation store for catalog
// items, backed by an embedded SQLite database (ncruces/go-sqlite3, WAL
// mode).
//
// Three tiers track every item by its material_id:
//
//   - archive: exactly one row per id, the earliest observed state.
//     Immutable once inserted.
//   - history: append-only log, one row per distinct observed state.
//     Consecutive rows for one id never carry identical volatile tuples.
//   - current: exactly one row per id, upserted to the latest observed
//     volatile values; the live projection worksheets are synced from.
//
// Two supporting tables: final_data holds rows collected back from the
// worksheets, and ingest_log records which export files have already been
// ingested so overlapping exports are skipped cheaply.
//
// Records are stored with their fixed columns as real columns and the
// opaque remainder as a JSON object in the extra column, so the stored
// schema is a superset of whatever the upstream export carries.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/utlib/eacli/internal/record"
)

// Tier names accepted by Query.
const (
	TierArchive   = "archive"
	TierHistory   = "history"
	TierCurrent   = "current"
	TierFinalData = "final_data"
)

var tierTables = map[string]string{
	TierArchive:   "archive",
	TierHistory:   "history",
	TierCurrent:   "current",
	TierFinalData: "final_data",
}

// Store wraps the SQLite connection holding the three tiers.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates or opens the store database at the given path.
//
// The database runs in WAL mode with a busy timeout, matching the
// single-writer batch design: concurrent runs are not supported, but an
// interrupted run must never corrupt the file. The caller must Close.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{conn: conn, path: path}

	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close checkpoints the WAL and closes the connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	if _, err := s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := s.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	s.conn = nil
	return nil
}

// InitSchema creates the tier tables and indexes. Idempotent.
func (s *Store) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS archive (
		material_id TEXT PRIMARY KEY,
		category TEXT NOT NULL DEFAULT '',
		classification TEXT NOT NULL DEFAULT '',
		ml_prediction TEXT NOT NULL DEFAULT '',
		manual_classification TEXT NOT NULL DEFAULT '',
		last_change TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		retrieved_on TEXT NOT NULL DEFAULT '',
		workflow_status TEXT NOT NULL DEFAULT '',
		workflow_remarks TEXT NOT NULL DEFAULT '',
		extra TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS history (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		material_id TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		classification TEXT NOT NULL DEFAULT '',
		ml_prediction TEXT NOT NULL DEFAULT '',
		manual_classification TEXT NOT NULL DEFAULT '',
		last_change TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		retrieved_on TEXT NOT NULL DEFAULT '',
		workflow_status TEXT NOT NULL DEFAULT '',
		workflow_remarks TEXT NOT NULL DEFAULT '',
		extra TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS current (
		material_id TEXT PRIMARY KEY,
		category TEXT NOT NULL DEFAULT '',
		classification TEXT NOT NULL DEFAULT '',
		ml_prediction TEXT NOT NULL DEFAULT '',
		manual_classification TEXT NOT NULL DEFAULT '',
		last_change TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		retrieved_on TEXT NOT NULL DEFAULT '',
		workflow_status TEXT NOT NULL DEFAULT '',
		workflow_remarks TEXT NOT NULL DEFAULT '',
		extra TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS final_data (
		material_id TEXT PRIMARY KEY,
		category TEXT NOT NULL DEFAULT '',
		classification TEXT NOT NULL DEFAULT '',
		ml_prediction TEXT NOT NULL DEFAULT '',
		manual_classification TEXT NOT NULL DEFAULT '',
		last_change TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT '',
		retrieved_on TEXT NOT NULL DEFAULT '',
		workflow_status TEXT NOT NULL DEFAULT '',
		workflow_remarks TEXT NOT NULL DEFAULT '',
		extra TEXT NOT NULL DEFAULT '{}'
	);

	CREATE TABLE IF NOT EXISTS ingest_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source TEXT NOT NULL UNIQUE,
		retrieved_on TEXT NOT NULL,
		new_count INTEGER NOT NULL DEFAULT 0,
		changed_count INTEGER NOT NULL DEFAULT 0,
		unchanged_count INTEGER NOT NULL DEFAULT 0,
		ingested_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_material ON history(material_id, seq);
	CREATE INDEX IF NOT EXISTS idx_current_category ON current(category);
	CREATE INDEX IF NOT EXISTS idx_archive_category ON archive(category);
	`

	if _, err := s.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// recordColumns is the SQL column list shared by all tier tables, matching
// record.FixedColumns plus the opaque remainder.
const recordColumns = `material_id, category, classification, ml_prediction,
	manual_classification, last_change, status, retrieved_on,
	workflow_status, workflow_remarks, extra`

// recordArgs flattens a record into insert arguments in recordColumns order.
func recordArgs(rec record.Record) ([]any, error) {
	extra := make(map[string]string)
	for _, col := range rec.ExtraColumns() {
		extra[col] = rec.Get(col)
	}
	extraJSON, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal extra columns: %w", err)
	}

	args := make([]any, 0, len(record.FixedColumns)+1)
	for _, col := range record.FixedColumns {
		args = append(args, rec.Get(col))
	}
	args = append(args, string(extraJSON))
	return args, nil
}

// scanRecord rebuilds a record from a tier row. Fixed columns come back in
// canonical order; opaque columns follow, sorted by name (JSON objects do
// not preserve insertion order).
func scanRecord(scan func(dest ...any) error) (record.Record, error) {
	fixed := make([]sql.NullString, len(record.FixedColumns))
	var extraJSON string

	dest := make([]any, 0, len(fixed)+1)
	for i := range fixed {
		dest = append(dest, &fixed[i])
	}
	dest = append(dest, &extraJSON)

	if err := scan(dest...); err != nil {
		return record.Record{}, err
	}

	rec := record.New()
	for i, col := range record.FixedColumns {
		rec.Set(col, fixed[i].String)
	}

	extra := make(map[string]string)
	if extraJSON != "" {
		if err := json.Unmarshal([]byte(extraJSON), &extra); err != nil {
			return record.Record{}, fmt.Errorf("failed to unmarshal extra columns: %w", err)
		}
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		rec.Set(k, extra[k])
	}
	return rec, nil
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRecord(ctx context.Context, db execer, table string, rec record.Record) error {
	args, err := recordArgs(rec)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		table, recordColumns,
	)
	if _, err := db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", table, err)
	}
	return nil
}

func nowStamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}
