package main

import (
	"fmt"
	"os"

	"github.com/aretw0/beamline/internal/presentation/tui"
	"github.com/aretw0/beamline/pkg/dispatch"
	"github.com/aretw0/beamline/pkg/domain"
	"github.com/aretw0/beamline/pkg/plan"
	"github.com/aretw0/beamline/pkg/runner"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run [plan]",
	Short: "Run a named plan or an ad-hoc one",
	Long: `Runs one of the experiment's named plans, or an ad-hoc plan built with --kind.
Parameters are given as --set key=value; for named plans they apply to this run only.

  beamline run peak --set num=21
  beamline run --kind scan --detectors det --set motor=m1 --set start=-1 --set stop=1 --set num=11`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, _ := cmd.Flags().GetString("kind")
		if (len(args) == 1) == (kind != "") {
			return fmt.Errorf("give either a plan name or --kind")
		}
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

		quiet, _ := cmd.Flags().GetBool("quiet")
		rec := &dispatch.Recorder{}
		opts := []runner.Option{runner.WithSubscriptions(dispatch.Subscriptions{
			domain.DocEvent: {rec.Callback()},
		})}
		if !quiet {
			if tui.IsTerminal(os.Stdout) {
				tui.PrintBanner(os.Stdout)
			}
			opts = append(opts, runner.WithTable(os.Stdout))
		}
		r := a.runner(opts...)

		var res *domain.RunResult
		if kind != "" {
			detectors, _ := cmd.Flags().GetStringSlice("detectors")
			res, err = r.RunSpec(cmd.Context(), plan.Spec{Kind: kind, Detectors: detectors, Args: params})
		} else {
			res, err = r.RunNamed(cmd.Context(), args[0], params)
		}
		if res == nil {
			return err
		}

		if report, _ := cmd.Flags().GetBool("report"); report {
			md := tui.RunReport(res, err, rec.Events())
			out, rerr := tui.NewRenderer(os.Stdout)(md)
			if rerr != nil {
				out = md
			}
			fmt.Fprint(os.Stdout, out)
		} else {
			fmt.Fprintf(os.Stdout, "\nRun %s %s: %d events in %s\n", res.UID, res.Status, res.NumEvents, res.Duration())
		}
		switch res.Status {
		case domain.StatusFailed, domain.StatusAborted:
			if err == nil {
				return fmt.Errorf("run %s: %s", res.Status, res.Reason)
			}
			return fmt.Errorf("run %s: %w", res.Status, err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringArray("set", nil, "Plan parameter as key=value (repeatable)")
	runCmd.Flags().String("kind", "", "Build an ad-hoc plan of this kind instead of running a named one")
	runCmd.Flags().StringSlice("detectors", nil, "Detectors of an ad-hoc plan")
	runCmd.Flags().BoolP("quiet", "q", false, "Do not print the live table")
	runCmd.Flags().Bool("report", false, "Print a markdown report of the run")
}
