package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/utlib/eacli/internal/dashboard"
	"github.com/utlib/eacli/internal/orchestrator"
	"github.com/utlib/eacli/internal/ui"
	"github.com/utlib/eacli/internal/watcher"
)

var watchDashboard bool

var watchCmd = &cobra.Command{
	Use:     "watch",
	GroupID: "advanced",
	Short:   "Watch the export directory and run the pipeline on new drops",
	Long: `Watch the export directory for new or rewritten CSV snapshots and run
the full pipeline after each drop settles. Bursts of writes are debounced
into one run.

With --dashboard, a WebSocket monitor broadcasts live pipeline events:

  ingest_report, sheet_synced, drift_found, run_complete, stats

Connect a WebSocket client to ws://localhost:<port>/ws to observe runs.`,
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

		if watchDashboard {
			server := dashboard.NewServer(&dashboard.Config{
				Port:   settings.DashboardPort,
				Store:  st,
				Logger: log.New(os.Stderr, "[dashboard] ", log.LstdFlags),
			})
			if err := server.Start(); err != nil {
				fatalf("%v", err)
			}
			defer server.Stop()
			runner.Notifier = dashboard.NewHandler(server, nil)
			fmt.Printf("%s Dashboard on http://localhost:%d (ws://localhost:%d/ws)\n",
				ui.RenderInfo("→"), settings.DashboardPort, settings.DashboardPort)
		}

		w, err := watcher.New(settings.WatchDebounce)
		if err != nil {
			fatalf("%v", err)
		}
		if err := w.Start(settings.ExportDir); err != nil {
			fatalf("%v", err)
		}
		defer w.Stop()

		fmt.Printf("%s Watching %s\n", ui.RenderInfo("→"), settings.ExportDir)
		fmt.Println("Press Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		for {
			select {
			case <-ctx.Done():
				fmt.Println("\nStopping watcher...")
				return

			case event, ok := <-w.Events():
				if !ok {
					return
				}
				fmt.Printf("%s %d export(s) changed, running pipeline\n",
					ui.RenderInfo("→"), len(event.Paths))
				summary, err := runner.Run(ctx)
				if err != nil {
					fmt.Printf("%s run failed: %v\n", ui.RenderFail("✗"), err)
					continue
				}
				fmt.Printf("%s %d ingested, %d new, %d changed\n", ui.RenderPass("✓"),
					summary.ExportsIngested, summary.Ingested.New, summary.Ingested.Changed)

			case err, ok := <-w.Errors():
				if !ok {
					return
				}
				fmt.Printf("%s watch error: %v\n", ui.RenderWarn("⚠"), err)
			}
		}
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchDashboard, "dashboard", false, "serve the WebSocket monitor while watching")
	rootCmd.AddCommand(watchCmd)
}
