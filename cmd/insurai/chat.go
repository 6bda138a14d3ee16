package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/insurai/internal/presentation/tui"
	"github.com/aretw0/insurai/pkg/runner"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [flow]",
	Short: "Talk to a flow in the terminal",
	Long: `Starts a session of the given flow (claims, onboarding or support) and plays it
on stdin/stdout. Closing the input leaves the session stored; pass --session to resume it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, _ := cmd.Flags().GetString("flow")
		if len(args) > 0 {
			flow = args[0]
		}
		sessionID, _ := cmd.Flags().GetString("session")
		jsonMode, _ := cmd.Flags().GetBool("json")
		if flow == "" && sessionID == "" {
			return errors.New("name a flow or pass --session")
		}

		app, _, logger, err := buildApp(cmd)
		if err != nil {
			return err
		}
		defer app.Close()

		var handler runner.IOHandler
		if jsonMode {
			handler = runner.NewJSONHandler(os.Stdin, os.Stdout)
		} else {
			if tui.IsInteractive(os.Stdout) {
				tui.PrintBanner(os.Stdout, flow)
			}
			handler = runner.NewTextHandler(os.Stdin, os.Stdout,
				runner.WithTextHandlerRenderer(tui.NewRenderer(os.Stdout)))
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		r := runner.New(app.Engine,
			runner.WithHandler(handler),
			runner.WithLogger(logger),
			runner.WithFlow(flow),
			runner.WithSessionID(sessionID),
		)
		_, err = r.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("flow", "f", "", "Flow to start")
	chatCmd.Flags().StringP("session", "s", "", "Resume a stored session")
	chatCmd.Flags().Bool("json", false, "Exchange JSON lines instead of text")
}
