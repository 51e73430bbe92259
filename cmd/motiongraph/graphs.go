package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/milk9111/motiongraph/graphs"
	"github.com/milk9111/motiongraph/sim"
)

var validateCmd = &cobra.Command{
	Use:   "validate [graph...]",
	Short: "Compile definitions and report every problem",
	Long: `Compiles the named definitions, or every known definition when none are
given. All problems in a definition are reported together.`,
	RunE: runValidate,
}

var kindsCmd = &cobra.Command{
	Use:   "kinds",
	Short: "List registered condition and behaviour kinds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "conditions: %s\n", strings.Join(graphs.ConditionKinds(), ", "))
		fmt.Fprintf(out, "behaviours: %s\n", strings.Join(graphs.BehaviourKinds(), ", "))
		return nil
	},
}

var runCmd = &cobra.Command{
	Use:   "run [timeline]",
	Short: "Drive a definition from a timeline file",
	Long: `Plays a timeline of parameter writes, fired pulses and body states against
a fresh instance and prints each transition and the final parameters.

Example timeline:
  graph: locomotion
  steps:
    - ticks: 1
    - fire: [jump]
    - ticks: 60`,
	Args: cobra.ExactArgs(1),
	RunE: runTimeline,
}

func runValidate(cmd *cobra.Command, args []string) error {
	names := args
	if len(names) == 0 {
		var err error
		names, err = graphs.List(cfg.GraphDir)
		if err != nil {
			return err
		}
	}
	out := cmd.OutOrStdout()
	var failed []string
	for _, name := range names {
		def, err := graphs.Load(cfg.GraphDir, name)
		if err != nil {
			failed = append(failed, name)
			fmt.Fprintf(out, "FAIL %s\n", name)
			for _, line := range strings.Split(err.Error(), "\n") {
				fmt.Fprintf(out, "  %s\n", line)
			}
			continue
		}
		fmt.Fprintf(out, "ok   %s (%d states)\n", def.Name(), len(def.Spec.States))
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d definitions failed", len(failed), len(names))
	}
	return nil
}

func runTimeline(cmd *cobra.Command, args []string) error {
	tl, err := sim.LoadTimeline(args[0])
	if err != nil {
		return err
	}
	name := tl.Graph
	if name == "" {
		name = cfg.Graph
	}
	r, res, err := play(name, tl)
	if err != nil {
		return err
	}
	printResult(cmd, r, res)
	return nil
}

// play runs tl on a fresh instance of the named definition.
func play(name string, tl *sim.Timeline) (*sim.Runner, *sim.Result, error) {
	def, err := graphs.Load(cfg.GraphDir, name)
	if err != nil {
		return nil, nil, err
	}
	r, err := sim.NewRunner(def, servicesFor(), instanceOptions())
	if err != nil {
		return nil, nil, err
	}
	res, err := r.Run(tl)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("timeline finished",
		zap.String("graph", def.Name()),
		zap.Uint64("ticks", res.Ticks),
		zap.Int("transitions", len(res.Transitions)))
	return r, res, nil
}

func printResult(cmd *cobra.Command, r *sim.Runner, res *sim.Result) {
	out := cmd.OutOrStdout()
	for _, tr := range res.Transitions {
		from := string(tr.From)
		if from == "" {
			from = "-"
		}
		fmt.Fprintf(out, "%6d %s%s: %s -> %s\n", tr.Tick, strings.Repeat("  ", tr.Depth), tr.Graph, from, tr.To)
	}
	fmt.Fprintf(out, "active: %s\n", joinPath(res.Final))
	for _, d := range r.Instance.Params().Defs() {
		fmt.Fprintf(out, "  %-12s %s\n", d.Name, res.Params[d.Name])
	}
}
