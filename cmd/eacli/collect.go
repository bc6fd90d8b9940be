package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/utlib/eacli/internal/canonical"
	"github.com/utlib/eacli/internal/record"
	"github.com/utlib/eacli/internal/sheets"
	"github.com/utlib/eacli/internal/ui"
)

var (
	collectOutput      string
	collectYes         bool
	collectPeriodStart string
	collectPeriodEnd   string
)

var collectCmd = &cobra.Command{
	Use:     "collect",
	GroupID: "pipeline",
	Short:   "Gather the annotated worksheets back into one dataset",
	Long: `Read every category worksheet, combine the rows (first occurrence of
each material id wins), store the combined dataset in the final_data
table, and write it as one CSV into the import directory.

The combined file is the export the copyright office hands back upstream
at the end of a review cycle.`,
	Run: func(cmd *cobra.Command, args []string) {
		st, err := openStore(cmd)
		if err != nil {
			fatalf("%v", err)
		}
		defer st.Close()

		records, err := collectWorksheets()
		if err != nil {
			fatalf("%v", err)
		}
		if collectPeriodStart != "" {
			end := collectPeriodEnd
			if end == "" {
				end = collectPeriodStart
			}
			periods, err := canonical.ParsePeriodRange(collectPeriodStart, end)
			if err != nil {
				fatalf("%v", err)
			}
			records = canonical.FilterPeriods(records, periods)
		}
		if len(records) == 0 {
			fmt.Printf("%s No worksheet rows to collect\n", ui.RenderWarn("⚠"))
			return
		}

		out := collectOutput
		if out == "" {
			out = filepath.Join(settings.ImportDir,
				fmt.Sprintf("collected_%s.csv", time.Now().Format("2006-01-02")))
		}

		if _, err := os.Stat(out); err == nil && !collectYes {
			var overwrite bool
			confirm := huh.NewConfirm().
				Title(fmt.Sprintf("%s exists. Overwrite it?", out)).
				Description("The current content will be saved to a dated backup first.").
				Value(&overwrite)
			if err := confirm.Run(); err != nil {
				fatalf("%v", err)
			}
			if !overwrite {
				fmt.Println("Aborted.")
				return
			}
		}

		if err := st.SaveFinalData(cmd.Context(), records); err != nil {
			fatalf("%v", err)
		}

		combined := &sheets.Sheet{Path: out}
		for _, rec := range records {
			combined.Append(rec)
		}
		backup, err := combined.Save(time.Now())
		if err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("%s Collected %d item(s) into %s\n", ui.RenderPass("✓"), len(records), out)
		if backup != "" {
			fmt.Printf("   Previous content backed up to %s\n", backup)
		}
	},
}

// collectWorksheets loads every category worksheet and combines the rows.
// Backups, the all-items sheet, and duplicate material ids are skipped.
func collectWorksheets() ([]record.Record, error) {
	entries, err := os.ReadDir(settings.SheetsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheets directory: %w", err)
	}

	seen := make(map[string]bool)
	var out []record.Record
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(name), ".csv") {
			continue
		}
		if strings.Contains(name, "_backup_") {
			continue
		}
		path := filepath.Join(settings.SheetsDir, name)
		if path == settings.AllItemsPath {
			continue
		}

		sheet, err := sheets.Load(path)
		if err != nil {
			return nil, err
		}
		for _, rec := range sheet.Records() {
			if seen[rec.MaterialID()] {
				continue
			}
			seen[rec.MaterialID()] = true
			out = append(out, rec)
		}
	}
	return out, nil
}

func init() {
	collectCmd.Flags().StringVar(&collectOutput, "output", "", "combined CSV path (default: import dir, dated)")
	collectCmd.Flags().BoolVar(&collectYes, "yes", false, "overwrite the output file without asking")
	collectCmd.Flags().StringVar(&collectPeriodStart, "period-start", "", "first academic period to include (e.g. 2023-1A)")
	collectCmd.Flags().StringVar(&collectPeriodEnd, "period-end", "", "last academic period to include (defaults to --period-start)")
	rootCmd.AddCommand(collectCmd)
}
