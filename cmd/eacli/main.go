// Command eacli reconciles weekly catalog snapshot exports into a tiered
// SQLite store and fans the results out to per-category worksheets.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/utlib/eacli/internal/canonical"
	"github.com/utlib/eacli/internal/config"
	"github.com/utlib/eacli/internal/logging"
	"github.com/utlib/eacli/internal/sheets"
	"github.com/utlib/eacli/internal/store"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	settings *config.Settings
)

var rootCmd = &cobra.Command{
	Use:   "eacli",
	Short: "Catalog reconciliation and worksheet synchronization",
	Long: `eacli ingests overlapping snapshot exports of the course material
catalog, reconciles them into a tiered store (archive, history, current),
and synchronizes the results into per-category worksheets that humans
annotate. Worksheet writes are additive only and always happen behind a
verified backup.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		settings, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		logging.Setup(logLevel, logFormat, settings.LogFile)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./eacli.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format (text, json)")

	rootCmd.AddGroup(
		&cobra.Group{ID: "pipeline", Title: "Pipeline Commands:"},
		&cobra.Group{ID: "advanced", Title: "Advanced Commands:"},
	)
}

// openStore opens the configured database and ensures the schema exists.
func openStore(cmd *cobra.Command) (*store.Store, error) {
	st, err := store.Open(settings.DBPath)
	if err != nil {
		return nil, err
	}
	if err := st.InitSchema(cmd.Context()); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

// newCanonicalizer loads the category mapping named in the config.
func newCanonicalizer() (*canonical.Canonicalizer, error) {
	lookup, err := canonical.LoadLookup(settings.MappingPath)
	if err != nil {
		return nil, err
	}
	return canonical.New(lookup), nil
}

// newSyncer builds the worksheet syncer over the configured directories.
func newSyncer(st *store.Store) sheets.Syncer {
	return sheets.New(st, sheets.Config{
		SheetsDir:    settings.SheetsDir,
		AllItemsPath: settings.AllItemsPath,
	})
}

func fatalf(format string, a ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", a...)
	os.Exit(1)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
