package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/beamline/pkg/dispatch"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the configured devices",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		read, _ := cmd.Flags().GetBool("read")
		out := cmd.OutOrStdout()
		for _, info := range a.engine.Devices().Describe() {
			fmt.Fprintf(out, "%-16s %s\n", info.Name, strings.Join(info.Capabilities, ","))
			if !read {
				continue
			}
			dev, err := a.engine.Devices().Readable(info.Name)
			if err != nil {
				continue
			}
			readings, err := dev.Read(cmd.Context())
			if err != nil {
				fmt.Fprintf(out, "    read failed: %v\n", err)
				continue
			}
			for field, r := range readings {
				fmt.Fprintf(out, "    %-12s %s\n", field, dispatch.FormatValue(r.Value))
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devicesCmd)
	devicesCmd.Flags().Bool("read", false, "Also read every readable device")
}
