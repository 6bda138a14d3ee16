package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/insurai/internal/cli"
	"github.com/aretw0/insurai/internal/config"
	"github.com/aretw0/insurai/internal/logging"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "insurai",
	Short: "InsurAI runs conversational insurance desks",
	Long: `InsurAI drives three guided conversations (claims, onboarding and support)
as resumable sessions, from the terminal, over HTTP or as MCP tools.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides config)")
}

// loadConfig reads the config file named by --config, then applies flag overrides.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Log.Level = level
	}
	return cfg, nil
}

// buildApp loads the config and wires an engine. Callers must Close the app.
func buildApp(cmd *cobra.Command) (*cli.App, config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, cfg, nil, err
	}
	logger := logging.NewWithFormat(logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	slog.SetDefault(logger)

	app, err := cli.Build(cmd.Context(), cfg, logger)
	if err != nil {
		return nil, cfg, nil, fmt.Errorf("failed to initialize insurai: %w", err)
	}
	return app, cfg, logger, nil
}
