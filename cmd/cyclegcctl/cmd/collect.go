package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vesperlang/cyclegc/internal/collector"
)

var collectGeneration int

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Run one manual collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := newGC()
		if err != nil {
			return err
		}
		defer g.Close()

		m := g.AttachThread()
		m.Attach()
		defer m.Detach()

		collected, err := g.Collect(m, collectGeneration, collector.ReasonManual)
		if err != nil {
			return fmt.Errorf("collect: %w", err)
		}
		fmt.Printf("collected %d unreachable object(s) at generation %d\n", collected, collectGeneration)
		return nil
	},
}

func init() {
	collectCmd.Flags().IntVarP(&collectGeneration, "generation", "g", 2, "generation to collect (0-2)")
	rootCmd.AddCommand(collectCmd)
}
