package main

import (
	"errors"
	"fmt"

	"github.com/aretw0/insurai/pkg/adapters/sqlstore"
	"github.com/spf13/cobra"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the insurance database",
}

var dbSeedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the schema and load the demo customers",
	Long:  `Migrates the SQLite database at database.path and seeds the demo insurances when it is empty.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if path, _ := cmd.Flags().GetString("path"); path != "" {
			cfg.Database.Path = path
		}
		if cfg.Database.Path == "" {
			return errors.New("no database path: set database.path, INSURAI_DB_PATH or --path")
		}

		db, err := sqlstore.Open(cmd.Context(), cfg.Database.Path)
		if err != nil {
			return err
		}
		defer db.Close()

		seeded, err := db.Seed(cmd.Context())
		if err != nil {
			return err
		}
		if seeded {
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded demo data into %s\n", cfg.Database.Path)
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "%s already has data, nothing to do\n", cfg.Database.Path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(dbSeedCmd)
	dbSeedCmd.Flags().String("path", "", "SQLite file (overrides database.path)")
}
