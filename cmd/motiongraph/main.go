// Command motiongraph validates, runs and hot reloads motion graph
// definitions without the playground.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/milk9111/motiongraph/config"
	"github.com/milk9111/motiongraph/logging"
	"github.com/milk9111/motiongraph/motion"
	"github.com/milk9111/motiongraph/save"
)

var (
	// Global flags
	cfgPath  string
	graphDir string
	logLevel string
	verbose  bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "motiongraph",
	Short: "Author and test motion graph definitions",
	Long: `motiongraph compiles motion graph definitions, drives them from
scripted timelines, watches them for edits and manages saved instances.

Definitions are looked up in the graph directory first and then in the set
compiled into the binary.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return err
		}
		if graphDir != "" {
			cfg.GraphDir = graphDir
		}
		level := cfg.Log.Level
		if logLevel != "" {
			level = logLevel
		}
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.Log.Development)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "motiongraph.yaml", "config file")
	rootCmd.PersistentFlags().StringVarP(&graphDir, "dir", "d", "", "graph directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(validateCmd, kindsCmd, runCmd, watchCmd, saveCmd, loadCmd, listCmd, deleteCmd)
}

func instanceOptions() motion.Options {
	return motion.Options{Logger: logger, SideChannels: cfg.Policy()}
}

func openStore(ctx context.Context) (save.Store, error) {
	return save.Open(ctx, cfg.Save.Backend, cfg.Save.Path)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
