//go:build unix

package stw

import (
	"time"

	"golang.org/x/sys/unix"
)

// boundedSleep blocks for roughly d using a monotonic nanosleep,
// matching the sub-millisecond polling granularity spec §4.2 step 3
// calls for ("order of 1 ms") more precisely than time.Sleep's
// scheduler-dependent wakeup on some platforms.
func boundedSleep(d time.Duration) {
	ts := unix.NsecToTimespec(d.Nanoseconds())
	rem := &unix.Timespec{}
	for {
		err := unix.Nanosleep(&ts, rem)
		if err == nil {
			return
		}
		if err != unix.EINTR {
			return
		}
		ts = *rem
	}
}
