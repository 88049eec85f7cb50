package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var setThresholdCmd = &cobra.Command{
	Use:   "set-threshold <n>",
	Short: "Set the raw collection threshold",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		n, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid threshold %q: %w", args[0], err)
		}

		g, err := newGC()
		if err != nil {
			return err
		}
		defer g.Close()

		prev := g.SetThreshold(n)
		fmt.Printf("threshold set to %d (was %d)\n", n, prev)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setThresholdCmd)
}
