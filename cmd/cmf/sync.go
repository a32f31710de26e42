package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coordkit/manifest/internal/engine"
	"github.com/coordkit/manifest/internal/ui"
)

var (
	syncTasksOnly bool
	syncSpecsOnly bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the task log and spec trees into the manifest",
	Long: `Run the sync pipelines against the manifest.

Task sync collapses the append-only task log into a current-state view
(last-write-wins per id) and diffs it against the manifest: new tasks
are added, existing tasks get their status refreshed, and tasks absent
from the log are removed. Spec sync scans the active and draft trees
for documents with metadata headers; specs are added or have their
status refreshed, but are never removed (archive via status instead).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncTasksOnly && syncSpecsOnly {
			return fmt.Errorf("--tasks and --specs are mutually exclusive")
		}
		eng := newEngine()

		if !syncSpecsOnly {
			stats, err := eng.SyncTasks()
			if err != nil {
				return err
			}
			printStats("tasks", stats)
		}
		if !syncTasksOnly {
			stats, err := eng.SyncSpecs()
			if err != nil {
				return err
			}
			printStats("specs", stats)
		}
		return nil
	},
}

func printStats(kind string, stats engine.Stats) {
	fmt.Printf("%s %s: added=%d updated=%d removed=%d\n",
		ui.RenderPass("✓"), kind, stats.Added, stats.Updated, stats.Removed)
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an empty manifest skeleton",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := newStore()
		if err := store.Init(); err != nil {
			return err
		}
		fmt.Printf("%s Created %s\n", ui.RenderPass("✓"), store.Path())
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncTasksOnly, "tasks", false, "sync only the task log")
	syncCmd.Flags().BoolVar(&syncSpecsOnly, "specs", false, "sync only the spec trees")
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(initCmd)
}
