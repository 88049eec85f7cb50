// Package threadstate implements the per-mutator-thread status machine
// (spec §4.1, component C1): three states — Attached, Detached,
// GC-Parked — driven by compare-and-swap transitions from either the
// mutator itself or the collector.
package threadstate

import "sync/atomic"

// Status is one of the three thread states.
type Status int32

const (
	// Detached: the thread is not touching managed memory. A newly
	// registered thread starts here.
	Detached Status = iota
	// Attached: the thread is running interpreter code and may
	// allocate and mutate objects.
	Attached
	// GCParked: the thread is suspended for the collector and must not
	// resume until released.
	GCParked
)

func (s Status) String() string {
	switch s {
	case Attached:
		return "attached"
	case Detached:
		return "detached"
	case GCParked:
		return "gc-parked"
	default:
		return "unknown"
	}
}

// status wraps atomic.Int32 so the zero value is Detached and every
// transition goes through a single CAS point. Go's atomic operations
// already carry the acquire/release semantics spec §4.2's ordering
// guarantee requires: a successful CAS here happens-before any load
// that observes its result on another goroutine.
type status struct {
	v atomic.Int32
}

func (s *status) load() Status { return Status(s.v.Load()) }

func (s *status) cas(from, to Status) bool {
	return s.v.CompareAndSwap(int32(from), int32(to))
}

func (s *status) store(v Status) { s.v.Store(int32(v)) }
