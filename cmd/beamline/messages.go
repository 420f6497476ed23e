package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/beamline/internal/presentation/graph"
	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/plan"
	"github.com/spf13/cobra"
)

var messagesCmd = &cobra.Command{
	Use:   "messages <plan>",
	Short: "List the messages a plan emits, without running it",
	Long: `Expands a named plan into its message stream against simulated responses.
Nothing is published. Devices are driven in-process only.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		pairs, _ := cmd.Flags().GetStringArray("set")
		params, err := parseAssignments(pairs)
		if err != nil {
			return err
		}
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		settable, err := a.engine.Plan(args[0])
		if err != nil {
			return err
		}
		var p plan.Plan = settable
		if len(params) > 0 {
			if p, err = settable.With(params); err != nil {
				return err
			}
		}

		msgs, err := plan.Collect(cmd.Context(), p, plan.Simulate(cmd.Context()))
		if err != nil {
			return err
		}

		format, _ := cmd.Flags().GetString("format")
		switch format {
		case "text":
			for i, m := range msgs {
				fmt.Fprintf(os.Stdout, "%4d  %s\n", i, m)
			}
		case "json":
			return json.NewEncoder(os.Stdout).Encode(describe(msgs))
		case "mermaid":
			limit, _ := cmd.Flags().GetInt("limit")
			fmt.Fprint(os.Stdout, graph.GenerateMermaid(msgs, graph.SequenceOptions{Title: args[0], MaxMessages: limit}))
		default:
			return fmt.Errorf("unknown format %q: expected text, json or mermaid", format)
		}
		return nil
	},
}

type messageView struct {
	Command domain.Command `json:"command"`
	Target  string         `json:"target,omitempty"`
	Args    []any          `json:"args,omitempty"`
	Kwargs  map[string]any `json:"kwargs,omitempty"`
}

func describe(msgs []domain.Msg) []messageView {
	out := make([]messageView, len(msgs))
	for i, m := range msgs {
		out[i] = messageView{Command: m.Command, Target: m.TargetName(), Args: m.Args, Kwargs: m.Kwargs}
	}
	return out
}

func init() {
	rootCmd.AddCommand(messagesCmd)
	messagesCmd.Flags().StringArray("set", nil, "Plan parameter as key=value (repeatable)")
	messagesCmd.Flags().StringP("format", "f", "text", "Output format: text, json or mermaid")
	messagesCmd.Flags().Int("limit", 200, "Maximum messages drawn by the mermaid format (0 for all)")
}
