package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/coordkit/manifest/internal/query"
	"github.com/coordkit/manifest/internal/ui"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Bidirectional lookups over the manifest",
}

func newQueries() *query.Queries {
	return query.New(viper.GetString("manifest"), nil)
}

var querySpecsCmd = &cobra.Command{
	Use:   "specs",
	Short: "List active specs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		specs, err := newQueries().ActiveSpecs()
		if err != nil {
			return err
		}
		fmt.Println(ui.RenderHeader("Active specs"))
		for _, s := range specs {
			fmt.Printf("  %s  %s\n", s.ID, ui.RenderDim(s.Path))
		}
		return nil
	},
}

var queryTasksForSpecCmd = &cobra.Command{
	Use:   "tasks-for-spec <spec-id>",
	Short: "List tasks implementing a spec",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := newQueries().TasksForSpec(args[0])
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var queryRulesForTaskCmd = &cobra.Command{
	Use:   "rules-for-task <task-id>",
	Short: "List rules governing a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := newQueries().RulesForTask(args[0])
		if err != nil {
			return err
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	},
}

var querySpecsForFileCmd = &cobra.Command{
	Use:   "specs-for-file <path>",
	Short: "List specs whose patterns govern a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := newQueries().SpecsForFile(args[0])
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

var queryTasksForFileCmd = &cobra.Command{
	Use:   "tasks-for-file <path>",
	Short: "List tasks that created or modified a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tasks, err := newQueries().TasksForFile(args[0])
		if err != nil {
			return err
		}
		for _, t := range tasks {
			fmt.Printf("%s  %s  %s\n", t.ID, t.Role, ui.RenderDim(t.Title))
		}
		return nil
	},
}

func init() {
	queryCmd.AddCommand(querySpecsCmd)
	queryCmd.AddCommand(queryTasksForSpecCmd)
	queryCmd.AddCommand(queryRulesForTaskCmd)
	queryCmd.AddCommand(querySpecsForFileCmd)
	queryCmd.AddCommand(queryTasksForFileCmd)
	rootCmd.AddCommand(queryCmd)
}
