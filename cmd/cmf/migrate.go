package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coordkit/manifest/internal/ui"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run a full sync wrapped in backup, validation, and rollback",
	Long: `Snapshot the manifest, run both sync pipelines, and validate the
result. If the post-migration manifest is structurally corrupt the
pre-migration backup is restored automatically before the error is
reported. The backup file is kept either way.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		result, err := newEngine().Migrate()
		if err != nil {
			return err
		}

		printStats("tasks", result.TaskStats)
		printStats("specs", result.SpecStats)
		fmt.Printf("%s Backup: %s\n", ui.RenderDim("•"), result.BackupPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
