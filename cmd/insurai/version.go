package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/insurai"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of insurai",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "insurai version %s\n", strings.TrimSpace(insurai.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
