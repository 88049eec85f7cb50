package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var enableCmd = &cobra.Command{
	Use:   "enable",
	Short: "Turn threshold-triggered collection on",
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := newGC()
		if err != nil {
			return err
		}
		defer g.Close()

		prev := g.Enable()
		fmt.Printf("collection enabled (was enabled=%v)\n", prev)
		return nil
	},
}

var disableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Turn threshold-triggered collection off",
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := newGC()
		if err != nil {
			return err
		}
		defer g.Close()

		prev := g.Disable()
		fmt.Printf("collection disabled (was enabled=%v)\n", prev)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
}
