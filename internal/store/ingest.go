package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/utlib/eacli/internal/record"
)

// Report summarizes one ingestion: how many ids were first seen, how many
// changed, and how many arrived identical to the current tier. It exists
// for observability; nothing branches on it.
type Report struct {
	New       int
	Changed   int
	Unchanged int
}

// Total returns the number of distinct ids the batch touched.
func (r Report) Total() int {
	return r.New + r.Changed + r.Unchanged
}

func (r Report) String() string {
	return fmt.Sprintf("new=%d changed=%d unchanged=%d", r.New, r.Changed, r.Unchanged)
}

// StoreWriteError reports a partial failure while committing one id's
// tiers. The id's update is rolled back as a unit; ids committed before the
// failure stay committed.
type StoreWriteError struct {
	MaterialID string
	Err        error
}

func (e *StoreWriteError) Error() string {
	return fmt.Sprintf("store write failed for material_id %s: %v", e.MaterialID, e.Err)
}

func (e *StoreWriteError) Unwrap() error {
	return e.Err
}

// Ingest merges a canonical record batch into the tiers.
//
// The algorithm is idempotent: re-ingesting a batch the store has already
// absorbed performs no writes and reports every id as unchanged.
//
//   - A new id inserts into current, appends the first history row, and
//     writes the immutable archive snapshot.
//   - A known id with an unchanged volatile tuple writes nothing.
//   - A known id with a changed tuple upserts current's volatile columns
//     and appends a history row. The archive row is never touched, and
//     current's provenance and workflow columns keep their first-ingested
//     values.
//
// When one batch carries several observations of the same id, they are
// processed in input order: each distinct consecutive state is appended to
// history and the last one wins in current.
//
// Each id-group commits in its own transaction, so a failure can never
// leave current and history disagreeing about a single id.
func (s *Store) Ingest(ctx context.Context, records []record.Record) (Report, error) {
	var report Report

	// Group by id, preserving first-appearance order. Validation happens
	// per id while processing, so ids committed before a failure stay
	// committed.
	order := make([]string, 0, len(records))
	groups := make(map[string][]record.Record, len(records))
	for _, rec := range records {
		id := rec.MaterialID()
		if _, seen := groups[id]; !seen {
			order = append(order, id)
		}
		groups[id] = append(groups[id], rec)
	}

	for _, id := range order {
		outcome, err := s.ingestID(ctx, id, groups[id])
		if err != nil {
			return report, &StoreWriteError{MaterialID: id, Err: err}
		}
		switch outcome {
		case outcomeNew:
			report.New++
		case outcomeChanged:
			report.Changed++
		default:
			report.Unchanged++
		}
	}

	return report, nil
}

type idOutcome int

const (
	outcomeUnchanged idOutcome = iota
	outcomeNew
	outcomeChanged
)

// ingestID commits every observation of one id atomically.
func (s *Store) ingestID(ctx context.Context, id string, observations []record.Record) (idOutcome, error) {
	for _, obs := range observations {
		if err := obs.Validate(); err != nil {
			return outcomeUnchanged, err
		}
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return outcomeUnchanged, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	currentKey, known, err := currentVolatileKey(ctx, tx, id)
	if err != nil {
		return outcomeUnchanged, err
	}

	outcome := outcomeUnchanged
	lastKey := currentKey
	var lastAppended *record.Record

	for i := range observations {
		obs := observations[i]
		key := obs.VolatileKey()

		if !known && lastAppended == nil {
			// First ever observation: archive snapshot plus first history row.
			if err := insertRecord(ctx, tx, "archive", obs); err != nil {
				return outcomeUnchanged, err
			}
			if err := insertRecord(ctx, tx, "history", obs); err != nil {
				return outcomeUnchanged, err
			}
			outcome = outcomeNew
			lastKey = key
			lastAppended = &observations[i]
			continue
		}

		if key == lastKey {
			continue
		}
		if err := insertRecord(ctx, tx, "history", obs); err != nil {
			return outcomeUnchanged, err
		}
		if outcome == outcomeUnchanged {
			outcome = outcomeChanged
		}
		lastKey = key
		lastAppended = &observations[i]
	}

	if lastAppended != nil {
		if !known {
			// Current gets the last in-batch state in full.
			if err := insertRecord(ctx, tx, "current", *lastAppended); err != nil {
				return outcomeUnchanged, err
			}
		} else {
			if err := updateCurrentVolatile(ctx, tx, id, *lastAppended); err != nil {
				return outcomeUnchanged, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return outcomeUnchanged, fmt.Errorf("failed to commit: %w", err)
	}
	return outcome, nil
}

// currentVolatileKey fetches the volatile tuple for an id in current.
func currentVolatileKey(ctx context.Context, tx *sql.Tx, id string) (key string, known bool, err error) {
	query := `SELECT classification, ml_prediction, manual_classification,
		last_change, status FROM current WHERE material_id = ?`

	rec := record.New()
	rec.Set(record.KeyColumn, id)
	var vals [5]sql.NullString
	err = tx.QueryRowContext(ctx, query, id).Scan(&vals[0], &vals[1], &vals[2], &vals[3], &vals[4])
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read current: %w", err)
	}
	for i, col := range record.VolatileColumns {
		rec.Set(col, vals[i].String)
	}
	return rec.VolatileKey(), true, nil
}

// updateCurrentVolatile upserts only the volatile columns of an existing
// current row. Provenance and workflow columns are first-ingestion values
// and must survive every later observation.
func updateCurrentVolatile(ctx context.Context, tx *sql.Tx, id string, rec record.Record) error {
	query := `UPDATE current SET
		classification = ?,
		ml_prediction = ?,
		manual_classification = ?,
		last_change = ?,
		status = ?
	WHERE material_id = ?`

	args := make([]any, 0, len(record.VolatileColumns)+1)
	for _, col := range record.VolatileColumns {
		args = append(args, rec.Get(col))
	}
	args = append(args, id)

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update current: %w", err)
	}
	return nil
}
