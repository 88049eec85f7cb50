//go:build !unix

package stw

import "time"

// boundedSleep is the non-Unix fallback: plain time.Sleep. Coarser
// than unix.Nanosleep but the rescan loop tolerates coarser polling —
// it only affects latency, never correctness.
func boundedSleep(d time.Duration) {
	time.Sleep(d)
}
