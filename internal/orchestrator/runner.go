package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/utlib/eacli/internal/canonical"
	"github.com/utlib/eacli/internal/sheets"
	"github.com/utlib/eacli/internal/store"
)

// Notifier receives pipeline events as they happen. The dashboard hub
// implements this; a nil Notifier disables notification.
type Notifier interface {
	IngestReport(source string, report store.Report)
	SheetSynced(report sheets.SyncReport)
	DriftFound(target sheets.Target, drift []sheets.FieldDrift)
	RunComplete(summary RunSummary)
}

// RunSummary describes one full pipeline run.
type RunSummary struct {
	Started  time.Time
	Finished time.Time

	// ExportsIngested counts snapshot files committed to the store.
	ExportsIngested int
	// ExportsFailed counts snapshot files that errored; the run continues
	// past them.
	ExportsFailed int
	// Ingested aggregates the per-export ingestion reports.
	Ingested store.Report
	// Sheets holds the per-worksheet sync reports, failures included.
	Sheets []sheets.SyncReport
}

// Runner wires the pipeline stages together.
type Runner struct {
	Store     *store.Store
	Canon     *canonical.Canonicalizer
	Syncer    sheets.Syncer
	ExportDir string

	// Notifier is optional.
	Notifier Notifier
	// Logger defaults to slog.Default().
	Logger *slog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Run executes the full pipeline: ingest every pending export oldest
// first, then synchronize every worksheet. Per-export and per-worksheet
// failures are logged and counted but do not abort the run.
func (r *Runner) Run(ctx context.Context) (RunSummary, error) {
	summary := RunSummary{Started: r.now()}
	log := r.logger()

	exports, err := Discover(r.ExportDir)
	if err != nil {
		return summary, err
	}
	pending, err := Pending(ctx, r.Store, exports)
	if err != nil {
		return summary, err
	}
	log.Info("pipeline run starting",
		"exports_found", len(exports), "exports_pending", len(pending))

	for _, export := range pending {
		report, err := r.IngestExport(ctx, export)
		if err != nil {
			summary.ExportsFailed++
			log.Error("export ingestion failed", "source", export.Source(), "error", err)
			continue
		}
		summary.ExportsIngested++
		summary.Ingested.New += report.New
		summary.Ingested.Changed += report.Changed
		summary.Ingested.Unchanged += report.Unchanged
		if r.Notifier != nil {
			r.Notifier.IngestReport(export.Source(), report)
		}
	}

	reports, err := r.Syncer.SyncAll(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to synchronize worksheets: %w", err)
	}
	summary.Sheets = reports
	if r.Notifier != nil {
		for _, report := range reports {
			r.Notifier.SheetSynced(report)
			if len(report.Drift) > 0 {
				r.Notifier.DriftFound(report.Target, report.Drift)
			}
		}
	}

	summary.Finished = r.now()
	log.Info("pipeline run complete",
		"ingested", summary.ExportsIngested,
		"failed", summary.ExportsFailed,
		"new", summary.Ingested.New,
		"changed", summary.Ingested.Changed,
		"sheets", len(summary.Sheets))
	if r.Notifier != nil {
		r.Notifier.RunComplete(summary)
	}
	return summary, nil
}

// IngestExport reads one snapshot file, canonicalizes it, and commits it
// to the store. The export's modification time provides the retrieval
// date. Successful ingestion is recorded in the ingest log so the file
// is skipped on later runs.
func (r *Runner) IngestExport(ctx context.Context, export Export) (store.Report, error) {
	raw, err := canonical.ReadRawCSV(export.Path)
	if err != nil {
		return store.Report{}, err
	}

	records, warnings, err := r.Canon.Canonicalize(raw, export.ModTime)
	if err != nil {
		return store.Report{}, err
	}
	log := r.logger()
	for _, w := range warnings {
		log.Warn("unmapped category", "source", export.Source(),
			"material_id", w.MaterialID, "department", w.Department)
	}

	report, err := r.Store.Ingest(ctx, records)
	if err != nil {
		return report, err
	}
	if err := r.Store.LogIngest(ctx, export.Source(), export.ModTime, report); err != nil {
		return report, err
	}
	log.Info("export ingested", "source", export.Source(),
		"new", report.New, "changed", report.Changed, "unchanged", report.Unchanged)
	return report, nil
}
