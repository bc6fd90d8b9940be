package main

import (
	"fmt"
	"os"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/spf13/cobra"

	"github.com/utlib/eacli/internal/orchestrator"
	"github.com/utlib/eacli/internal/ui"
)

var ingestAsOf string

var ingestCmd = &cobra.Command{
	Use:     "ingest <export.csv> [more.csv...]",
	GroupID: "pipeline",
	Short:   "Ingest specific export files into the store",
	Long: `Ingest one or more snapshot exports without touching the worksheets.

The retrieval date defaults to each file's modification time. Use --as-of
to override it, with an exact date or a natural phrase:

  eacli ingest week32.csv --as-of 2024-08-05
  eacli ingest week32.csv --as-of "last monday"

Ingestion is idempotent: a file already recorded in the ingest log is
skipped.`,
	Args: cobra.MinimumNArgs(1),
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
		runner := &orchestrator.Runner{Store: st, Canon: canon}

		var asOf time.Time
		if ingestAsOf != "" {
			asOf, err = parseAsOf(ingestAsOf)
			if err != nil {
				fatalf("%v", err)
			}
		}

		ctx := cmd.Context()
		for _, path := range args {
			info, err := os.Stat(path)
			if err != nil {
				fatalf("%v", err)
			}
			export := orchestrator.Export{Path: path, ModTime: info.ModTime()}
			if !asOf.IsZero() {
				export.ModTime = asOf
			}

			seen, err := st.WasIngested(ctx, export.Source())
			if err != nil {
				fatalf("%v", err)
			}
			if seen {
				fmt.Printf("%s %s already ingested, skipping\n", ui.RenderDim("-"), export.Source())
				continue
			}

			report, err := runner.IngestExport(ctx, export)
			if err != nil {
				fatalf("ingesting %s: %v", export.Source(), err)
			}
			fmt.Printf("%s %s: %d new, %d changed, %d unchanged\n",
				ui.RenderPass("✓"), export.Source(), report.New, report.Changed, report.Unchanged)
		}
	},
}

// parseAsOf accepts exact dates and English phrases like "last monday".
func parseAsOf(text string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02", text); err == nil {
		return t, nil
	}

	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	result, err := w.Parse(text, time.Now())
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse --as-of %q: %w", text, err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("could not understand --as-of %q", text)
	}
	return result.Time, nil
}

func init() {
	ingestCmd.Flags().StringVar(&ingestAsOf, "as-of", "", "retrieval date override (\"2024-08-05\", \"last monday\")")
	rootCmd.AddCommand(ingestCmd)
}
