// Package orchestrator drives the full pipeline: discover export
// snapshots, ingest the ones the store has not seen, then fan the
// store's current state out to the worksheets. Each unit of work is
// error-scoped so one bad export or one locked worksheet never takes
// down the whole run.
package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/utlib/eacli/internal/store"
)

// Export is one snapshot file found in the export directory.
type Export struct {
	Path    string
	ModTime time.Time
}

// Source returns the name the ingest log keys this export by.
func (e Export) Source() string {
	return filepath.Base(e.Path)
}

// Discover lists the CSV exports in dir, oldest first by modification
// time so snapshots are ingested in the order they were produced. Ties
// fall back to name order.
func Discover(dir string) ([]Export, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read export directory: %w", err)
	}

	var exports []Export
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".csv") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat export %s: %w", entry.Name(), err)
		}
		exports = append(exports, Export{
			Path:    filepath.Join(dir, entry.Name()),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(exports, func(i, j int) bool {
		if !exports[i].ModTime.Equal(exports[j].ModTime) {
			return exports[i].ModTime.Before(exports[j].ModTime)
		}
		return exports[i].Path < exports[j].Path
	})
	return exports, nil
}

// Pending filters out exports the ingest log already records, keeping
// order. Re-running over a directory of old snapshots is a no-op.
func Pending(ctx context.Context, st *store.Store, exports []Export) ([]Export, error) {
	var pending []Export
	for _, export := range exports {
		seen, err := st.WasIngested(ctx, export.Source())
		if err != nil {
			return nil, fmt.Errorf("failed to check ingest log for %s: %w", export.Source(), err)
		}
		if !seen {
			pending = append(pending, export)
		}
	}
	return pending, nil
}
