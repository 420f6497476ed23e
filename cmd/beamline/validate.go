package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the experiment file",
	Long:  `Loads the experiment, builds every device and plan, and checks each plan's parameters.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		defer a.Close()

		for _, name := range a.engine.PlanNames() {
			p, err := a.engine.Plan(name)
			if err != nil {
				return err
			}
			gen, err := p.Generate()
			if err != nil {
				return fmt.Errorf("validation failed: plan %q: %w", name, err)
			}
			gen.Close()
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Experiment %q is valid! ✅ (%d devices, %d plans)\n",
			a.exp.Name, len(a.engine.Devices().Names()), len(a.engine.PlanNames()))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
