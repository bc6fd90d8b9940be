package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/utlib/eacli/internal/orchestrator"
	"github.com/utlib/eacli/internal/store"
	"github.com/utlib/eacli/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: "pipeline",
	Short:   "Show store statistics and pending exports",
	Run: func(cmd *cobra.Command, args []string) {
		if _, err := os.Stat(settings.DBPath); os.IsNotExist(err) {
			fmt.Printf("\n%s Store not initialized at %s\n", ui.RenderWarn("⚠"), settings.DBPath)
			fmt.Printf("   Run 'eacli run' to create it\n\n")
			return
		}

		st, err := openStore(cmd)
		if err != nil {
			fatalf("%v", err)
		}
		defer st.Close()
		ctx := cmd.Context()

		counts, err := st.Counts(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("\nStore: %s\n", ui.RenderAccent("%s", settings.DBPath))
		fmt.Printf("   Archive: %d item(s)\n", counts[store.TierArchive])
		fmt.Printf("   History: %d observation(s)\n", counts[store.TierHistory])
		fmt.Printf("   Current: %d item(s)\n", counts[store.TierCurrent])

		if last, err := st.LastIngest(ctx); err == nil && !last.IsZero() {
			fmt.Printf("   Last ingest: %s\n", last.Format("2006-01-02 15:04"))
		}

		categories, err := st.Categories(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("   Categories: %d\n", len(categories))

		exports, err := orchestrator.Discover(settings.ExportDir)
		if err != nil {
			fmt.Printf("\n%s %v\n", ui.RenderWarn("⚠"), err)
			return
		}
		pending, err := orchestrator.Pending(ctx, st, exports)
		if err != nil {
			fatalf("%v", err)
		}
		if len(pending) == 0 {
			fmt.Printf("\n%s No pending exports\n\n", ui.RenderPass("✓"))
			return
		}
		fmt.Printf("\n%s %d pending export(s):\n", ui.RenderInfo("→"), len(pending))
		for _, e := range pending {
			fmt.Printf("   %s (%s)\n", e.Source(), e.ModTime.Format("2006-01-02"))
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
