package cmd

import (
	"github.com/spf13/cobra"
	"github.com/vesperlang/cyclegc/internal/config"
	"github.com/vesperlang/cyclegc/pkg/gc"
)

var (
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "cyclegcctl",
	Short: "Operator CLI for the cyclegc cycle-collecting garbage collector core",
	Long: `
cyclegcctl — inspect, drive, and stress-test a cyclegc collector core.

Every subcommand constructs its own collector instance for the
duration of the command; there is no background daemon to attach to
(this core exposes no wire protocol). Use 'stress' to generate a
synthetic workload and 'observe' to watch a live collection dashboard
while it runs.

COMMANDS:
  enable          Turn threshold-triggered collection on
  disable         Turn threshold-triggered collection off
  collect         Run one manual collection
  stats           Print collection statistics
  set-threshold   Set the raw collection threshold
  set-debug       Set the debug bitmask
  stress          Generate synthetic reference cycles under the collector
  observe         Live TUI dashboard of stress-test collector activity
`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "optional .env file to load (GC_SCALE, GC_INITIAL_THRESHOLD, GC_PANIC_LOG_DIR)")
}

// newGC constructs a GC core from the process environment, the way
// every subcommand needs one.
func newGC() (*gc.GC, error) {
	cfg := config.Load(envFile)
	return gc.New(cfg, nil)
}
