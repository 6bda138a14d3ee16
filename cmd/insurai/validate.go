package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the flow graphs for consistency",
	Long:  `Compiles every flow and reports nodes that cannot be reached from the start node.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, _, err := buildApp(cmd)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		defer app.Close()

		var problems []string
		for _, name := range app.Engine.Flows() {
			g, _ := app.Engine.Flow(name)
			if dead := g.Unreachable(); len(dead) > 0 {
				problems = append(problems, fmt.Sprintf("%s: unreachable nodes %s", name, strings.Join(dead, ", ")))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d nodes ok\n", name, len(g.Nodes()))
		}
		if len(problems) > 0 {
			return fmt.Errorf("validation failed:\n%s", strings.Join(problems, "\n"))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "All flows are valid! ✅")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
