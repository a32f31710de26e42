package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/coordkit/manifest/internal/rules"
	"github.com/coordkit/manifest/internal/ui"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage policy rules in the manifest",
}

var rulesImportCmd = &cobra.Command{
	Use:   "import <rules.toml>",
	Short: "Import externally authored rules into the manifest",
	Long: `Load rule definitions from a TOML document and upsert them into the
manifest's rules collection. Rules are inputs to the index: they are
maintained outside this tool and imported wholesale, never synced.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := rules.NewImporter(newStore(), nil).ImportFile(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s Imported %d rule(s)\n", ui.RenderPass("✓"), n)
		return nil
	},
}

func init() {
	rulesCmd.AddCommand(rulesImportCmd)
	rootCmd.AddCommand(rulesCmd)
}
