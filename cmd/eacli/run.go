package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/utlib/eacli/internal/orchestrator"
	"github.com/utlib/eacli/internal/sheets"
	"github.com/utlib/eacli/internal/ui"
)

var runCmd = &cobra.Command{
	Use:     "run",
	GroupID: "pipeline",
	Short:   "Ingest pending exports and synchronize every worksheet",
	Long: `Run the full pipeline once:

  1. Discover CSV exports in the export directory, oldest first.
  2. Ingest every export the store has not seen yet.
  3. Synchronize the all-items worksheet and one worksheet per category.

Exports that fail and worksheets that cannot be written are reported and
skipped; the rest of the run proceeds.`,
	Run: func(cmd *cobra.Command, args []string) {
		st, err := openStore(cmd)
		if err != nil {
			fatalf("%v", err)
		}
		defer st.Close()

		canon, err := newCanonicalizer()
		if err != nil {
			fatalf("%v", err)
		}

		runner := &orchestrator.Runner{
			Store:     st,
			Canon:     canon,
			Syncer:    newSyncer(st),
			ExportDir: settings.ExportDir,
		}

		start := time.Now()
		summary, err := runner.Run(cmd.Context())
		if err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("%s Run complete in %v\n", ui.RenderPass("✓"), time.Since(start).Round(time.Millisecond))
		fmt.Printf("   Exports:  %d ingested, %d failed\n", summary.ExportsIngested, summary.ExportsFailed)
		fmt.Printf("   Items:    %d new, %d changed, %d unchanged\n",
			summary.Ingested.New, summary.Ingested.Changed, summary.Ingested.Unchanged)
		printSheetReports(summary.Sheets)
	},
}

func printSheetReports(reports []sheets.SyncReport) {
	for _, r := range reports {
		switch {
		case r.Err != nil:
			fmt.Printf("   %s %s: %v\n", ui.RenderFail("✗"), r.Target.Path, r.Err)
		case r.State == sheets.StateNoChange:
			fmt.Printf("   %s\n", ui.RenderDim("= %s (no change)", r.Target.Path))
		default:
			fmt.Printf("   %s %s: %d new item(s)\n", ui.RenderPass("+"), r.Target.Path, r.NewItems)
		}
		for _, d := range r.Drift {
			fmt.Printf("     %s %s.%s: sheet=%q store=%q\n",
				ui.RenderWarn("drift"), d.MaterialID, d.Column, d.SheetValue, d.StoreValue)
		}
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
}
