package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/beamline"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of beamline",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "beamline version %s\n", strings.TrimSpace(beamline.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
