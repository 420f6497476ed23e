package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs [uid]",
	Short: "List recorded runs or print the documents of one",
	Long:  `Reads the document store of the experiment. Only the redis backend outlives the process.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if a.store == nil {
			return fmt.Errorf("no document store configured")
		}

		out := cmd.OutOrStdout()
		if len(args) == 0 {
			uids, err := a.store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, uid := range uids {
				fmt.Fprintln(out, uid)
			}
			return nil
		}

		records, err := a.store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runsCmd)
}
