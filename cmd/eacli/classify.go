package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/utlib/eacli/internal/classify"
	"github.com/utlib/eacli/internal/record"
	"github.com/utlib/eacli/internal/store"
	"github.com/utlib/eacli/internal/ui"
)

var classifyCategory string

var classifyCmd = &cobra.Command{
	Use:     "classify",
	GroupID: "advanced",
	Short:   "Suggest classification labels for unclassified items",
	Long: `Ask the Anthropic API for classification suggestions for items whose
manual_classification is still empty. Suggestions are printed, never
written: an operator copies accepted ones into a worksheet, and the next
ingestion carries them into the store.

Requires an API key in the config (anthropic_api_key) or the
ANTHROPIC_API_KEY environment variable.`,
	Run: func(cmd *cobra.Command, args []string) {
		apiKey := settings.AnthropicAPIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			fatalf("no Anthropic API key configured")
		}

		st, err := openStore(cmd)
		if err != nil {
			fatalf("%v", err)
		}
		defer st.Close()
		ctx := cmd.Context()

		var filters []store.Filter
		if classifyCategory != "" {
			filters = append(filters, store.Filter{Column: record.ColumnCategory, Value: classifyCategory})
		}
		records, err := st.Query(ctx, store.TierCurrent, filters...)
		if err != nil {
			fatalf("%v", err)
		}

		pending := classify.Unclassified(records)
		if len(pending) == 0 {
			fmt.Printf("%s Nothing to classify\n", ui.RenderPass("✓"))
			return
		}
		fmt.Printf("%s Requesting suggestions for %d item(s)...\n", ui.RenderInfo("→"), len(pending))

		suggester := classify.NewSuggester(classify.Config{
			APIKey: apiKey,
			Model:  settings.ClassifyModel,
		})
		suggestions, err := suggester.Suggest(ctx, pending)
		if err != nil {
			fatalf("%v", err)
		}

		for _, s := range suggestions {
			fmt.Printf("   %s  %s  %s\n",
				s.MaterialID, ui.RenderAccent("%s", s.Label), ui.RenderDim("(%.2f)", s.Confidence))
		}
		fmt.Printf("%s %d suggestion(s); copy accepted ones into a worksheet\n",
			ui.RenderPass("✓"), len(suggestions))
	},
}

func init() {
	classifyCmd.Flags().StringVar(&classifyCategory, "category", "", "limit suggestions to one category")
	rootCmd.AddCommand(classifyCmd)
}
