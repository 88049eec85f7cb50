package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print collection statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := newGC()
		if err != nil {
			return err
		}
		defer g.Close()

		live, gen1, gen2 := g.GetCount()
		fmt.Printf("enabled:        %v\n", g.IsEnabled())
		fmt.Printf("threshold:      %d\n", g.GetThreshold())
		fmt.Printf("debug flags:    0x%02x\n", g.GetDebug())
		fmt.Printf("live / g1 / g2: %d / %d / %d\n", live, gen1, gen2)

		for i, s := range g.GetStats() {
			fmt.Printf("generation %d: collections=%d collected=%d uncollectable=%d\n",
				i, s.Collections, s.Collected, s.Uncollectable)
		}

		hist := g.Telemetry().History(5)
		if len(hist) == 0 {
			fmt.Println("no recorded collections yet")
			return nil
		}
		fmt.Println("recent collections:")
		for _, ev := range hist {
			fmt.Printf("  [%s] reason=%s collected=%d duration=%dms live=%d\n",
				ev.Timestamp.Format("15:04:05"), ev.Reason, ev.Collected, ev.DurationMs, ev.LiveCount)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
