package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/utlib/eacli/internal/record"
)

// Filter is an equality predicate on a fixed column.
type Filter struct {
	Column string
	Value  string
}

// filterableColumns guards filter input: only fixed columns are real SQL
// columns, everything else lives inside the extra JSON blob.
var filterableColumns = func() map[string]bool {
	m := make(map[string]bool, len(record.FixedColumns))
	for _, c := range record.FixedColumns {
		m[c] = true
	}
	return m
}()

// Query returns the records of one tier, optionally narrowed by equality
// filters on fixed columns. History rows come back in append order; keyed
// tiers in material_id order.
func (s *Store) Query(ctx context.Context, tier string, filters ...Filter) ([]record.Record, error) {
	table, ok := tierTables[tier]
	if !ok {
		return nil, fmt.Errorf("unknown tier %q", tier)
	}

	var conditions []string
	var args []any
	for _, f := range filters {
		if !filterableColumns[f.Column] {
			return nil, fmt.Errorf("cannot filter on column %q", f.Column)
		}
		conditions = append(conditions, f.Column+" = ?")
		args = append(args, f.Value)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", recordColumns, table)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	if tier == TierHistory {
		query += " ORDER BY seq ASC"
	} else {
		query += " ORDER BY material_id ASC"
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	defer rows.Close()

	var records []record.Record
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", table, err)
	}
	return records, nil
}

// Categories returns the distinct categories present in current, sorted.
func (s *Store) Categories(ctx context.Context) ([]string, error) {
	rows, err := s.conn.QueryContext(ctx,
		"SELECT DISTINCT category FROM current ORDER BY category ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// Counts returns the row count of every tier.
func (s *Store) Counts(ctx context.Context) (map[string]int, error) {
	counts := make(map[string]int, len(tierTables))
	for tier, table := range tierTables {
		var n int
		err := s.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		counts[tier] = n
	}
	return counts, nil
}

// HistoryCount returns the number of history rows for one id.
func (s *Store) HistoryCount(ctx context.Context, materialID string) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM history WHERE material_id = ?", materialID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count history for %s: %w", materialID, err)
	}
	return n, nil
}

// LogIngest records that an export file has been absorbed, with its report.
func (s *Store) LogIngest(ctx context.Context, source string, retrieved time.Time, report Report) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO ingest_log (source, retrieved_on, new_count, changed_count, unchanged_count, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(source) DO UPDATE SET
			retrieved_on = excluded.retrieved_on,
			new_count = excluded.new_count,
			changed_count = excluded.changed_count,
			unchanged_count = excluded.unchanged_count,
			ingested_at = excluded.ingested_at`,
		source, retrieved.Format("2006-01-02"),
		report.New, report.Changed, report.Unchanged, nowStamp())
	if err != nil {
		return fmt.Errorf("failed to log ingest of %s: %w", source, err)
	}
	return nil
}

// WasIngested reports whether an export file appears in the ingest log.
func (s *Store) WasIngested(ctx context.Context, source string) (bool, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM ingest_log WHERE source = ?", source).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check ingest log: %w", err)
	}
	return n > 0, nil
}

// LastIngest returns the timestamp of the most recent ingestion, or zero
// time when nothing has been ingested yet.
func (s *Store) LastIngest(ctx context.Context) (time.Time, error) {
	var stamp sql.NullString
	err := s.conn.QueryRowContext(ctx,
		"SELECT MAX(ingested_at) FROM ingest_log").Scan(&stamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read ingest log: %w", err)
	}
	if !stamp.Valid || stamp.String == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, stamp.String)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse ingest timestamp: %w", err)
	}
	return t, nil
}

// SaveFinalData replaces the final_data tier with rows collected back from
// the worksheets. Collection always reads every sheet, so a full replace
// keeps the tier an exact mirror of the sheets at collection time.
func (s *Store) SaveFinalData(ctx context.Context, records []record.Record) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM final_data"); err != nil {
		return fmt.Errorf("failed to clear final_data: %w", err)
	}
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			return &StoreWriteError{MaterialID: rec.MaterialID(), Err: err}
		}
		if err := insertRecord(ctx, tx, "final_data", rec); err != nil {
			return &StoreWriteError{MaterialID: rec.MaterialID(), Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit final_data: %w", err)
	}
	return nil
}
