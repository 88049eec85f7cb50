package telemetrygc

import (
	"os"
	"time"

	"github.com/shirou/gopsutil/mem"
	"github.com/shirou/gopsutil/process"
)

// ResourceSnapshot is a point-in-time system/process memory reading,
// attached to a collection event so the observe TUI can correlate
// collector activity with actual memory pressure (spec §4.6 get_stats
// neighbours this with a concrete resource picture the bare counters
// don't give).
type ResourceSnapshot struct {
	Timestamp      time.Time
	ProcessRSSByte uint64
	SystemUsedPct  float64
}

// CaptureResources takes a ResourceSnapshot of the current process.
// Errors from gopsutil are swallowed into a zero-value snapshot field
// rather than failing the collection this is attached to — resource
// telemetry is best-effort, not load-bearing.
func CaptureResources() ResourceSnapshot {
	snap := ResourceSnapshot{Timestamp: time.Now()}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mi, err := proc.MemoryInfo(); err == nil && mi != nil {
			snap.ProcessRSSByte = mi.RSS
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil && vm != nil {
		snap.SystemUsedPct = vm.UsedPercent
	}

	return snap
}
