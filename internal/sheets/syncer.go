package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/utlib/eacli/internal/record"
	"github.com/utlib/eacli/internal/store"
)

// Config tunes a Syncer.
type Config struct {
	// SheetsDir holds the per-category worksheets, one <category>.csv
	// each. Used by SyncAll.
	SheetsDir string
	// AllItemsPath is the aggregate worksheet covering every item.
	// Empty disables the all-items sheet in SyncAll.
	AllItemsPath string
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Now defaults to time.Now; injectable for deterministic stamps.
	Now func() time.Time
}

// syncer implements Syncer against the reconciliation store.
type syncer struct {
	store        *store.Store
	sheetsDir    string
	allItemsPath string
	logger       *slog.Logger
	now          func() time.Time
}

// New creates a Syncer reading from the given store.
func New(st *store.Store, cfg Config) Syncer {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &syncer{
		store:        st,
		sheetsDir:    cfg.SheetsDir,
		allItemsPath: cfg.AllItemsPath,
		logger:       cfg.Logger,
		now:          cfg.Now,
	}
}

// SyncAll implements Syncer.SyncAll.
func (s *syncer) SyncAll(ctx context.Context) ([]SyncReport, error) {
	categories, err := s.store.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	var targets []Target
	if s.allItemsPath != "" {
		targets = append(targets, Target{Path: s.allItemsPath})
	}
	for _, cat := range categories {
		targets = append(targets, Target{
			Path:     filepath.Join(s.sheetsDir, cat+".csv"),
			Category: cat,
		})
	}

	reports := make([]SyncReport, 0, len(targets))
	for _, target := range targets {
		report, err := s.SyncSheet(ctx, target)
		if err != nil {
			report.Err = err
			s.logger.Error("worksheet sync failed", "sheet", target.Path, "error", err)
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// SyncSheet implements Syncer.SyncSheet.
func (s *syncer) SyncSheet(ctx context.Context, target Target) (SyncReport, error) {
	report := SyncReport{Target: target}

	sheet, err := Load(target.Path)
	if err != nil {
		return report, fmt.Errorf("failed to load worksheet: %w", err)
	}

	storeRecords, err := s.storeView(ctx, target)
	if err != nil {
		return report, err
	}

	// Drift is informational and never blocks the run.
	report.Drift = driftBetween(sheet, storeRecords)

	existing := sheet.IDs()
	var newItems []record.Record
	for _, rec := range storeRecords {
		if !existing[rec.MaterialID()] {
			newItems = append(newItems, rec)
		}
	}

	if len(newItems) == 0 {
		report.State = StateNoChange
		s.logger.Info("worksheet unchanged", "sheet", target.Path)
		return report, nil
	}

	now := s.now()
	today := now.Format("2006-01-02")
	for _, rec := range newItems {
		stamped := rec.Clone()
		stamped.Set(record.ColumnAddedToSheetOn, today)
		sheet.Append(stamped)
	}

	backup, err := sheet.Save(now)
	report.BackupPath = backup
	if err != nil {
		var verifyErr *BackupVerificationError
		if errors.As(err, &verifyErr) {
			report.State = StateBackupFailed
		}
		return report, err
	}

	report.State = StateSaved
	report.NewItems = len(newItems)
	s.logger.Info("worksheet synchronized",
		"sheet", target.Path, "new_items", len(newItems), "backup", backup)
	return report, nil
}

// Drift implements Syncer.Drift.
func (s *syncer) Drift(ctx context.Context, target Target) ([]FieldDrift, error) {
	sheet, err := Load(target.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load worksheet: %w", err)
	}
	storeRecords, err := s.storeView(ctx, target)
	if err != nil {
		return nil, err
	}
	return driftBetween(sheet, storeRecords), nil
}

// storeView reads the current tier slice this worksheet projects.
func (s *syncer) storeView(ctx context.Context, target Target) ([]record.Record, error) {
	var filters []store.Filter
	if target.Category != "" {
		filters = append(filters, store.Filter{Column: record.ColumnCategory, Value: target.Category})
	}
	records, err := s.store.Query(ctx, store.TierCurrent, filters...)
	if err != nil {
		return nil, fmt.Errorf("failed to read store for worksheet %s: %w", target.Path, err)
	}
	return records, nil
}

// driftBetween diffs sheet cells against store values for ids present on
// both sides. Only source-owned volatile columns are compared: columns
// owned by worksheet editors are authoritative on the sheet side and are
// never flagged.
func driftBetween(sheet *Sheet, storeRecords []record.Record) []FieldDrift {
	var drift []FieldDrift
	ids := sheet.IDs()
	for _, rec := range storeRecords {
		id := rec.MaterialID()
		if !ids[id] {
			continue
		}
		for _, col := range record.VolatileColumns {
			sheetVal, ok := sheet.Cell(id, col)
			if !ok {
				continue
			}
			if storeVal := rec.Get(col); sheetVal != storeVal {
				drift = append(drift, FieldDrift{
					MaterialID: id,
					Column:     col,
					SheetValue: sheetVal,
					StoreValue: storeVal,
				})
			}
		}
	}
	return drift
}
