package cmd

import (
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/vesperlang/cyclegc/internal/allocator"
	"github.com/vesperlang/cyclegc/internal/collector"
	"github.com/vesperlang/cyclegc/internal/objmodel"
	"github.com/vesperlang/cyclegc/pkg/gc"
)

var (
	stressCycles int
	stressEvery  int
)

// cycleNode is a synthetic two-node reference cycle, just large enough
// for a cycle-collecting pass to find: every node's only external
// anchor is the collector's tracked-heap walk.
type cycleNode struct {
	objmodel.Header
	peer *cycleNode
}

func (n *cycleNode) GCHeader() *objmodel.Header { return &n.Header }

func cycleNodeTraverse(obj objmodel.Object, visit objmodel.VisitFunc, arg any) int {
	n := obj.(*cycleNode)
	if n.peer != nil {
		return visit(n.peer, arg)
	}
	return 0
}

var cycleNodeType = &objmodel.TypeDescriptor{
	Name:     "cyclegcctl.cycleNode",
	Traverse: cycleNodeTraverse,
}

func allocCycleNode(m *gc.Mutator) *cycleNode {
	n := &cycleNode{}
	n.Init(cycleNodeType)
	n.SetFlag(objmodel.FlagTracked)

	heap := m.TLD().Heaps[allocator.HeapTagGC]
	segs := heap.Segments()
	var seg *allocator.Segment
	if len(segs) == 0 {
		seg = heap.NewSegment(m.Arena(), m.TLD().ThreadID)
	} else {
		seg = segs[0]
	}
	var page *allocator.Page
	if len(seg.Pages) == 0 {
		page = seg.NewPage(256)
	} else {
		page = seg.Pages[0]
	}
	page.Alloc(n)
	return n
}

var stressCmd = &cobra.Command{
	Use:   "stress",
	Short: "Generate synthetic reference cycles under the collector",
	Long: `
stress allocates N pairs of mutually-referencing nodes (a, b), each
holding the other's only strong reference, then drops the mutator's own
reference to both. Nothing outside the pair keeps either node alive, so
they are garbage the moment they're orphaned — but plain refcounting
alone never notices, because each node's refcount never drops to zero.
Only a tracing collection finds them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		g, err := newGC()
		if err != nil {
			return err
		}
		defer g.Close()

		m := g.AttachThread()
		m.Attach()
		defer m.Detach()

		bar := progressbar.NewOptions(stressCycles,
			progressbar.OptionSetDescription("🔁 allocating reference cycles"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("cycles"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
			progressbar.OptionClearOnFinish(),
		)

		var totalCollected int
		for i := 0; i < stressCycles; i++ {
			a := allocCycleNode(m)
			b := allocCycleNode(m)
			a.peer = b
			b.GCHeader().IncLocal()
			b.peer = a
			a.GCHeader().IncLocal()

			if _, err := m.NotifyAlloc(); err != nil {
				return fmt.Errorf("notify alloc: %w", err)
			}

			if stressEvery > 0 && (i+1)%stressEvery == 0 {
				collected, err := g.Collect(m, 2, collector.ReasonManual)
				if err != nil {
					return fmt.Errorf("collect: %w", err)
				}
				totalCollected += collected
			}
			_ = bar.Add(1)
		}

		collected, err := g.Collect(m, 2, collector.ReasonManual)
		if err != nil {
			return fmt.Errorf("final collect: %w", err)
		}
		totalCollected += collected

		fmt.Printf("\nallocated %d cycles, collected %d object(s) total across the run\n", stressCycles, totalCollected)
		return nil
	},
}

func init() {
	stressCmd.Flags().IntVarP(&stressCycles, "cycles", "n", 1000, "number of reference-cycle pairs to allocate")
	stressCmd.Flags().IntVarP(&stressEvery, "collect-every", "c", 100, "run a manual collection every N cycles (0 disables interim collections)")
	rootCmd.AddCommand(stressCmd)
}
