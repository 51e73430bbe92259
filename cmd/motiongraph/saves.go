package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/milk9111/motiongraph/graphs"
	"github.com/milk9111/motiongraph/motion"
	"github.com/milk9111/motiongraph/save"
	"github.com/milk9111/motiongraph/sim"
)

var saveCmd = &cobra.Command{
	Use:   "save [timeline] [slot]",
	Short: "Run a timeline and save the resulting instance",
	Args:  cobra.ExactArgs(2),
	RunE:  runSave,
}

var loadCmd = &cobra.Command{
	Use:   "load [slot]",
	Short: "Restore a saved instance and print its state",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List save slots",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var deleteCmd = &cobra.Command{
	Use:   "delete [slot]",
	Short: "Delete a save slot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore(cmd.Context())
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Delete(cmd.Context(), args[0])
	},
}

func runSave(cmd *cobra.Command, args []string) error {
	tl, err := sim.LoadTimeline(args[0])
	if err != nil {
		return err
	}
	name := tl.Graph
	if name == "" {
		name = cfg.Graph
	}
	r, _, err := play(name, tl)
	if err != nil {
		return err
	}
	rec, err := save.Capture(r.Instance, args[1])
	if err != nil {
		return err
	}

	store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Save(cmd.Context(), rec); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "saved %s to %s (%s)\n", rec.Graph, rec.Slot, joinPath(r.Instance.ActivePath()))
	return nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()
	rec, err := store.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	def, err := graphs.Load(cfg.GraphDir, rec.Graph)
	if err != nil {
		return err
	}
	in, err := def.NewInstance(servicesFor(), instanceOptions())
	if err != nil {
		return err
	}
	if err := save.Apply(in, rec); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s saved %s\n", rec.Slot, rec.SavedAt.Format(time.RFC3339))
	fmt.Fprintf(out, "active: %s (tick %d)\n", joinPath(in.ActivePath()), in.TickCount())
	for _, d := range in.Params().Defs() {
		fmt.Fprintf(out, "  %-12s %s\n", d.Name, in.Params().Peek(d.ID))
	}
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	store, err := openStore(cmd.Context())
	if err != nil {
		return err
	}
	defer store.Close()

	out := cmd.OutOrStdout()
	if db, ok := store.(*save.SQLiteStore); ok {
		sums, err := db.Summaries(cmd.Context())
		if err != nil {
			return err
		}
		for _, s := range sums {
			fmt.Fprintf(out, "%-16s %-12s %s\n", s.Slot, s.Graph, s.SavedAt.Format(time.RFC3339))
		}
		return nil
	}
	slots, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	for _, slot := range slots {
		fmt.Fprintln(out, slot)
	}
	return nil
}

func joinPath(path []motion.StateID) string {
	parts := make([]string, len(path))
	for i, id := range path {
		parts[i] = string(id)
	}
	return strings.Join(parts, "/")
}
