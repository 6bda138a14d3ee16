package main

import (
	"fmt"

	"github.com/aretw0/insurai/internal/presentation/graph"
	"github.com/aretw0/insurai/pkg/domain"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph <flow>",
	Short: "Export a flow as a Mermaid diagram",
	Long:  `Prints a Mermaid flowchart of the flow. With --session the node the session waits on is highlighted.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, _, _, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		g, ok := app.Engine.Flow(args[0])
		if !ok {
			return fmt.Errorf("%w: %q", domain.ErrUnknownFlow, args[0])
		}

		var overlay *graph.Overlay
		if id, _ := cmd.Flags().GetString("session"); id != "" {
			rec, err := app.Engine.Session(cmd.Context(), id)
			if err != nil {
				return err
			}
			overlay = &graph.Overlay{Current: rec.SuspendedAt, Failed: rec.Status == domain.StatusDoneWithError}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(g, overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight where this session stands")
}
