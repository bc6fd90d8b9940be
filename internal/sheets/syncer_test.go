package sheets

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/utlib/eacli/internal/record"
	"github.com/utlib/eacli/internal/store"
)

// newTestSyncer seeds a store with canonical records and returns a syncer
// with a pinned clock.
func newTestSyncer(t *testing.T, records ...record.Record) Syncer {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()
	if err := s.InitSchema(ctx); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	if len(records) > 0 {
		if _, err := s.Ingest(ctx, records); err != nil {
			t.Fatalf("Ingest() failed: %v", err)
		}
	}
	return New(s, Config{Now: testNow})
}

func storeRec(t *testing.T, id, category, status string) record.Record {
	t.Helper()
	r := record.New()
	r.Set("material_id", id)
	r.Set("category", category)
	r.Set("status", status)
	r.Set("classification", "open access")
	r.Set("retrieved_on", "2024-08-13")
	r.Set("workflow_status", "not checked")
	r.Set("workflow_remarks", "-")
	return r
}

func TestSyncSheet_CreatesSheetFromStore(t *testing.T) {
	syncer := newTestSyncer(t,
		storeRec(t, "M1", "EEMCS", "Done"),
		storeRec(t, "M2", "EEMCS", "Open"),
		storeRec(t, "M3", "IDE", "Done"),
	)
	path := filepath.Join(t.TempDir(), "EEMCS.csv")

	report, err := syncer.SyncSheet(context.Background(), Target{Path: path, Category: "EEMCS"})
	if err != nil {
		t.Fatalf("SyncSheet() failed: %v", err)
	}
	if report.State != StateSaved {
		t.Errorf("state = %s, want %s", report.State, StateSaved)
	}
	if report.NewItems != 2 {
		t.Errorf("new items = %d, want 2 (IDE item must be excluded)", report.NewItems)
	}
	if report.BackupPath != "" {
		t.Errorf("expected no backup for a worksheet that did not exist, got %q", report.BackupPath)
	}

	sheet, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after sync failed: %v", err)
	}
	ids := sheet.IDs()
	if !ids["M1"] || !ids["M2"] || ids["M3"] {
		t.Errorf("unexpected sheet ids: %v", ids)
	}
	if stamp, ok := sheet.Cell("M1", "added_to_sheet_on"); !ok || stamp != "2024-08-13" {
		t.Errorf("added_to_sheet_on = %q, %v; want 2024-08-13", stamp, ok)
	}
}

func TestSyncSheet_EmptyCategoryTakesEverything(t *testing.T) {
	syncer := newTestSyncer(t,
		storeRec(t, "M1", "EEMCS", "Done"),
		storeRec(t, "M2", "IDE", "Open"),
	)
	path := filepath.Join(t.TempDir(), "all_items.csv")

	report, err := syncer.SyncSheet(context.Background(), Target{Path: path})
	if err != nil {
		t.Fatalf("SyncSheet() failed: %v", err)
	}
	if report.NewItems != 2 {
		t.Errorf("new items = %d, want every store item", report.NewItems)
	}
}

func TestSyncSheet_AdditiveOnlyPreservesEditedRows(t *testing.T) {
	syncer := newTestSyncer(t,
		storeRec(t, "M1", "EEMCS", "InProgress"),
		storeRec(t, "M2", "EEMCS", "Open"),
	)
	dir := t.TempDir()
	path := filepath.Join(dir, "EEMCS.csv")
	// M1 exists with a hand-edited status and a free-text column.
	writeSheetFile(t, path, "material_id,status,remarks\nM1,Done,checked by hand\n")

	report, err := syncer.SyncSheet(context.Background(), Target{Path: path, Category: "EEMCS"})
	if err != nil {
		t.Fatalf("SyncSheet() failed: %v", err)
	}
	if report.State != StateSaved || report.NewItems != 1 {
		t.Fatalf("state = %s, new items = %d; want saved with 1 new item", report.State, report.NewItems)
	}
	if report.BackupPath == "" {
		t.Error("expected a backup before overwriting an existing worksheet")
	}

	sheet, err := Load(path)
	if err != nil {
		t.Fatalf("Load() after sync failed: %v", err)
	}
	if diff := cmp.Diff([]string{"M1", "Done", "checked by hand"}, sheet.Row("M1")); diff != "" {
		t.Errorf("edited row not preserved verbatim (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"M2", "Open", ""}, sheet.Row("M2")); diff != "" {
		t.Errorf("new row mismatch (-want +got):\n%s", diff)
	}

	// The hand edit diverges from the store and must surface as drift.
	want := []FieldDrift{{MaterialID: "M1", Column: "status", SheetValue: "Done", StoreValue: "InProgress"}}
	if diff := cmp.Diff(want, report.Drift); diff != "" {
		t.Errorf("drift mismatch (-want +got):\n%s", diff)
	}
}

func TestSyncSheet_NoChangeWritesNothing(t *testing.T) {
	syncer := newTestSyncer(t, storeRec(t, "M1", "EEMCS", "Done"))
	dir := t.TempDir()
	path := filepath.Join(dir, "EEMCS.csv")
	target := Target{Path: path, Category: "EEMCS"}
	ctx := context.Background()

	if _, err := syncer.SyncSheet(ctx, target); err != nil {
		t.Fatalf("first SyncSheet() failed: %v", err)
	}
	before, _ := os.ReadFile(path)

	report, err := syncer.SyncSheet(ctx, target)
	if err != nil {
		t.Fatalf("second SyncSheet() failed: %v", err)
	}
	if report.State != StateNoChange {
		t.Errorf("state = %s, want %s", report.State, StateNoChange)
	}
	if report.BackupPath != "" {
		t.Error("no-change run must not create a backup")
	}

	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("no-change run modified the worksheet")
	}
	if n := countBackups(t, dir); n != 0 {
		t.Errorf("found %d backup files after no-change runs, want 0", n)
	}
}

func TestDrift_ComparesOnlySheetCarriedVolatileColumns(t *testing.T) {
	syncer := newTestSyncer(t, storeRec(t, "M1", "EEMCS", "Done"))
	path := filepath.Join(t.TempDir(), "EEMCS.csv")
	// The sheet carries status but not classification; only status can drift.
	writeSheetFile(t, path, "material_id,status\nM1,Deleted\n")

	drift, err := syncer.Drift(context.Background(), Target{Path: path, Category: "EEMCS"})
	if err != nil {
		t.Fatalf("Drift() failed: %v", err)
	}
	want := []FieldDrift{{MaterialID: "M1", Column: "status", SheetValue: "Deleted", StoreValue: "Done"}}
	if diff := cmp.Diff(want, drift); diff != "" {
		t.Errorf("drift mismatch (-want +got):\n%s", diff)
	}
}

func TestSyncAll_CoversEveryCategoryAndTheAllItemsSheet(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()
	if err := s.InitSchema(ctx); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}
	if _, err := s.Ingest(ctx, []record.Record{
		storeRec(t, "M1", "EEMCS", "Done"),
		storeRec(t, "M2", "IDE", "Open"),
	}); err != nil {
		t.Fatalf("Ingest() failed: %v", err)
	}

	dir := t.TempDir()
	syncer := New(s, Config{
		SheetsDir:    dir,
		AllItemsPath: filepath.Join(dir, "all_items.csv"),
		Now:          testNow,
	})

	reports, err := syncer.SyncAll(ctx)
	if err != nil {
		t.Fatalf("SyncAll() failed: %v", err)
	}
	if len(reports) != 3 {
		t.Fatalf("got %d reports, want all-items + 2 categories", len(reports))
	}
	for _, r := range reports {
		if r.Err != nil {
			t.Errorf("worksheet %s failed: %v", r.Target.Path, r.Err)
		}
		if r.State != StateSaved {
			t.Errorf("worksheet %s state = %s, want %s", r.Target.Path, r.State, StateSaved)
		}
	}

	all, err := Load(filepath.Join(dir, "all_items.csv"))
	if err != nil {
		t.Fatalf("Load(all_items) failed: %v", err)
	}
	if len(all.IDs()) != 2 {
		t.Errorf("all-items sheet has %d ids, want 2", len(all.IDs()))
	}
	eemcs, err := Load(filepath.Join(dir, "EEMCS.csv"))
	if err != nil {
		t.Fatalf("Load(EEMCS) failed: %v", err)
	}
	if !eemcs.IDs()["M1"] || eemcs.IDs()["M2"] {
		t.Errorf("EEMCS sheet ids = %v, want only M1", eemcs.IDs())
	}
}

func countBackups(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() failed: %v", err)
	}
	n := 0
	for _, e := range entries {
		if strings.Contains(e.Name(), "_backup_") {
			n++
		}
	}
	return n
}
