package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/utlib/eacli/internal/canonical"
	"github.com/utlib/eacli/internal/sheets"
	"github.com/utlib/eacli/internal/store"
)

type recordingNotifier struct {
	ingests   []string
	synced    []sheets.SyncReport
	drift     int
	completed int
}

func (n *recordingNotifier) IngestReport(source string, report store.Report) {
	n.ingests = append(n.ingests, source)
}

func (n *recordingNotifier) SheetSynced(report sheets.SyncReport) {
	n.synced = append(n.synced, report)
}

func (n *recordingNotifier) DriftFound(target sheets.Target, drift []sheets.FieldDrift) {
	n.drift += len(drift)
}

func (n *recordingNotifier) RunComplete(summary RunSummary) {
	n.completed++
}

func newTestRunner(t *testing.T, exportDir string) (*Runner, *recordingNotifier) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.InitSchema(context.Background()); err != nil {
		t.Fatalf("InitSchema() failed: %v", err)
	}

	lookup := canonical.NewLookup(map[string]string{
		"Electrical Engineering": "EEMCS",
		"Industrial Design":      "IDE",
	})
	sheetsDir := t.TempDir()
	notifier := &recordingNotifier{}
	runner := &Runner{
		Store: s,
		Canon: canonical.New(lookup),
		Syncer: sheets.New(s, sheets.Config{
			SheetsDir:    sheetsDir,
			AllItemsPath: filepath.Join(sheetsDir, "all_items.csv"),
		}),
		ExportDir: exportDir,
		Notifier:  notifier,
	}
	return runner, notifier
}

func TestRunner_Run_FullPipeline(t *testing.T) {
	exportDir := t.TempDir()
	base := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	writeExport(t, exportDir, "week1.csv",
		"Material Id,Department,Status\nM1,Electrical Engineering,Open\nM2,Industrial Design,Open\n", base)
	writeExport(t, exportDir, "week2.csv",
		"Material Id,Department,Status\nM1,Electrical Engineering,Done\n", base.Add(24*time.Hour))

	runner, notifier := newTestRunner(t, exportDir)
	ctx := context.Background()

	summary, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if summary.ExportsIngested != 2 || summary.ExportsFailed != 0 {
		t.Errorf("ingested = %d, failed = %d; want 2, 0", summary.ExportsIngested, summary.ExportsFailed)
	}
	if summary.Ingested.New != 2 || summary.Ingested.Changed != 1 {
		t.Errorf("report = %+v; want 2 new, 1 changed", summary.Ingested)
	}
	// all-items plus EEMCS plus IDE.
	if len(summary.Sheets) != 3 {
		t.Errorf("got %d sheet reports, want 3", len(summary.Sheets))
	}
	if len(notifier.ingests) != 2 || notifier.completed != 1 {
		t.Errorf("notifier saw %d ingests, %d completions", len(notifier.ingests), notifier.completed)
	}

	// The older snapshot must land first: current holds the week2 status.
	current, err := runner.Store.Query(ctx, store.TierCurrent)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	for _, rec := range current {
		if rec.MaterialID() == "M1" && rec.Get("status") != "Done" {
			t.Errorf("M1 status = %q, want the newer snapshot's Done", rec.Get("status"))
		}
	}

	// A second run finds nothing pending and changes nothing.
	again, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("second Run() failed: %v", err)
	}
	if again.ExportsIngested != 0 {
		t.Errorf("second run ingested %d exports, want 0", again.ExportsIngested)
	}
	for _, r := range again.Sheets {
		if r.State != sheets.StateNoChange {
			t.Errorf("worksheet %s state = %s on idle run", r.Target.Path, r.State)
		}
	}
}

func TestRunner_Run_SkipsBadExport(t *testing.T) {
	exportDir := t.TempDir()
	base := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	writeExport(t, exportDir, "bad.csv", "Title,Department\nNo Key,Industrial Design\n", base)
	writeExport(t, exportDir, "good.csv",
		"Material Id,Department,Status\nM1,Electrical Engineering,Open\n", base.Add(time.Hour))

	runner, _ := newTestRunner(t, exportDir)
	ctx := context.Background()

	summary, err := runner.Run(ctx)
	if err != nil {
		t.Fatalf("Run() failed: %v", err)
	}
	if summary.ExportsFailed != 1 || summary.ExportsIngested != 1 {
		t.Errorf("failed = %d, ingested = %d; want 1, 1", summary.ExportsFailed, summary.ExportsIngested)
	}

	// The bad export is not logged as ingested, so a later run retries it.
	seen, err := runner.Store.WasIngested(ctx, "bad.csv")
	if err != nil {
		t.Fatalf("WasIngested() failed: %v", err)
	}
	if seen {
		t.Error("failed export must not enter the ingest log")
	}
}

func TestRunner_IngestExport_UnmappedDepartmentWarnsButProceeds(t *testing.T) {
	exportDir := t.TempDir()
	base := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	path := writeExport(t, exportDir, "odd.csv",
		"Material Id,Department,Status\nM9,Basket Weaving,Open\n", base)

	runner, _ := newTestRunner(t, exportDir)
	ctx := context.Background()

	report, err := runner.IngestExport(ctx, Export{Path: path, ModTime: base})
	if err != nil {
		t.Fatalf("IngestExport() failed: %v", err)
	}
	if report.New != 1 {
		t.Errorf("report.New = %d, want 1", report.New)
	}

	current, err := runner.Store.Query(ctx, store.TierCurrent)
	if err != nil {
		t.Fatalf("Query() failed: %v", err)
	}
	if len(current) != 1 || current[0].Get("category") != "Unmapped" {
		t.Errorf("expected one Unmapped record, got %+v", current)
	}
}
