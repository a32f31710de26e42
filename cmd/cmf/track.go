package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coordkit/manifest/internal/tracker"
	"github.com/coordkit/manifest/internal/ui"
)

var trackIsNew bool

var trackCmd = &cobra.Command{
	Use:   "track <path> <task-id>",
	Short: "Attribute a file creation or modification to a task",
	Long: `Record that a task created or modified a file.

The file entry's governing specs and applicable rules are recomputed
from the manifest's current spec and rule patterns at the same time.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t := tracker.New(newStore(), nil)
		ch := tracker.Change{Path: args[0], TaskID: args[1], IsNew: trackIsNew}
		if err := t.Track(ch); err != nil {
			return err
		}

		verb := "modified"
		if trackIsNew {
			verb = "created"
		}
		fmt.Printf("%s %s %s by %s\n", ui.RenderPass("✓"), args[0], verb, args[1])
		return nil
	},
}

func init() {
	trackCmd.Flags().BoolVar(&trackIsNew, "new", false, "the file was created, not modified")
	rootCmd.AddCommand(trackCmd)
}
