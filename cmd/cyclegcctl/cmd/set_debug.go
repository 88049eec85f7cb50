package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/vesperlang/cyclegc/internal/collector"
)

var setDebugCmd = &cobra.Command{
	Use:   "set-debug <mask>",
	Short: "Set the debug bitmask (accepts decimal or 0x-prefixed hex)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mask, err := strconv.ParseUint(args[0], 0, 32)
		if err != nil {
			return fmt.Errorf("invalid debug mask %q: %w", args[0], err)
		}

		g, err := newGC()
		if err != nil {
			return err
		}
		defer g.Close()

		prev := g.SetDebug(uint32(mask))
		fmt.Printf("debug mask set to 0x%02x (was 0x%02x)\n", mask, prev)
		fmt.Printf("  DEBUG_STATS=%v DEBUG_COLLECTABLE=%v DEBUG_UNCOLLECTABLE=%v DEBUG_SAVEALL=%v\n",
			uint32(mask)&uint32(collector.DebugStats) != 0,
			uint32(mask)&uint32(collector.DebugCollectable) != 0,
			uint32(mask)&uint32(collector.DebugUncollectable) != 0,
			uint32(mask)&uint32(collector.DebugSaveAll) != 0,
		)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(setDebugCmd)
}
