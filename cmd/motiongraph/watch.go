package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/milk9111/motiongraph/graphs"
)

var watchCmd = &cobra.Command{
	Use:   "watch [graph]",
	Short: "Tick an instance and hot reload it as its files change",
	Long: `Runs an instance of the graph at the configured tick rate and reloads it
whenever its definition or a script in the graph directory changes. Each
reload reports how much of the running state survived.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	name := cfg.Graph
	if len(args) == 1 {
		name = args[0]
	}
	def, err := graphs.Load(cfg.GraphDir, name)
	if err != nil {
		return err
	}
	opts := instanceOptions()
	in, err := def.NewInstance(servicesFor(), opts)
	if err != nil {
		return err
	}

	reloader, err := graphs.NewReloader(cfg.GraphDir, logger)
	if err != nil {
		return err
	}
	defer reloader.Close()
	reloader.Track(name, in, opts)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "watching %s in %s\n", def.Name(), cfg.GraphDir)
	ticker := time.NewTicker(time.Duration(cfg.TickDuration() * float64(time.Second)))
	defer ticker.Stop()

	active := joinPath(in.ActivePath())
	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.Canceled {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
		}
		for _, r := range reloader.Poll() {
			if r.Err != nil {
				fmt.Fprintf(out, "reload %s failed: %v\n", r.Name, r.Err)
				continue
			}
			in = r.New
			fmt.Fprintf(out, "reloaded %s (%s)\n", r.Name, r.Mode)
		}
		in.Tick(cfg.TickDuration())
		if now := joinPath(in.ActivePath()); now != active {
			logger.Info("state", zap.String("from", active), zap.String("to", now))
			active = now
		}
	}
}
