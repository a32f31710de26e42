// cmf maintains the coordination manifest: a persisted cross-reference
// index linking specs, tasks, rules, and files.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/coordkit/manifest/internal/engine"
	"github.com/coordkit/manifest/internal/manifest"
)

var rootCmd = &cobra.Command{
	Use:   "cmf",
	Short: "Coordination manifest sync and query",
	Long: `cmf maintains the coordination manifest, a persisted index that
cross-references specifications, tasks, policy rules, and files so that
tooling can answer bidirectional questions ("which tasks implement this
spec?", "which rules govern this file?") without re-scanning sources.

Configuration is read from .cmf.yaml in the working directory (or the
path given with --config) and from CMF_* environment variables.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var cfgFile string

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default .cmf.yaml)")
	rootCmd.PersistentFlags().String("manifest", "coordination/manifest.json", "manifest file path")
	rootCmd.PersistentFlags().String("task-log", "coordination/task-log.jsonl", "task log path")
	rootCmd.PersistentFlags().String("specs-active", "specs/active", "active spec tree")
	rootCmd.PersistentFlags().String("specs-draft", "specs/draft", "pending/draft spec tree")

	_ = viper.BindPFlag("manifest", rootCmd.PersistentFlags().Lookup("manifest"))
	_ = viper.BindPFlag("task_log", rootCmd.PersistentFlags().Lookup("task-log"))
	_ = viper.BindPFlag("specs_active", rootCmd.PersistentFlags().Lookup("specs-active"))
	_ = viper.BindPFlag("specs_draft", rootCmd.PersistentFlags().Lookup("specs-draft"))

	cobra.OnInitialize(initConfig)
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(".cmf")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("CMF")
	viper.AutomaticEnv()

	// A missing config file is fine; flags and defaults cover it.
	_ = viper.ReadInConfig()
}

// newStore builds the manifest store from the effective configuration.
func newStore() *manifest.Store {
	return manifest.NewStore(viper.GetString("manifest"))
}

// newEngine builds the sync engine from the effective configuration.
func newEngine() *engine.Engine {
	return engine.New(newStore(),
		viper.GetString("task_log"),
		viper.GetString("specs_active"),
		viper.GetString("specs_draft"),
		nil)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
