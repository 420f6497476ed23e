package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "beamline",
	Short: "Beamline runs experiment plans against instruments",
	Long: `Beamline interprets experiment plans (scans, counts, adaptive scans) as a
stream of device messages, executes them against the configured devices and
publishes the resulting documents.`,
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
	rootCmd.PersistentFlags().StringP("config", "c", "beamline.yaml", "Experiment file (YAML or JSON)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn or error (overrides the experiment)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")
}
