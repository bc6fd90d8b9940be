package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/utlib/eacli/internal/ui"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	GroupID: "pipeline",
	Short:   "Synchronize worksheets from the store without ingesting",
	Long: `Fan the store's current state out to the worksheets: the all-items
sheet plus one sheet per category. Rows already present in a worksheet
are never modified; new items are appended, and any divergence between
sheet cells and store values is reported as drift.`,
	Run: func(cmd *cobra.Command, args []string) {
		st, err := openStore(cmd)
		if err != nil {
			fatalf("%v", err)
		}
		defer st.Close()

		reports, err := newSyncer(st).SyncAll(cmd.Context())
		if err != nil {
			fatalf("%v", err)
		}

		fmt.Printf("%s Synchronized %d worksheet(s)\n", ui.RenderPass("✓"), len(reports))
		printSheetReports(reports)
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
