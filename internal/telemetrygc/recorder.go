// Package telemetrygc records collection events and exposes recent
// history, aggregate stats, and a live subscription feed — the
// collector-side analogue of the teacher's gRPC-call telemetry
// (app/server/telemetry), repointed at collection events instead of
// RPC calls.
package telemetrygc

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one completed collection, independent of internal/collector
// so this package never imports it back (the collector calls Record
// with values it already computed).
type Event struct {
	ID            string
	Timestamp     time.Time
	Reason        string
	Collected     int
	Uncollectable int
	DurationMs    int64
	LiveCount     int64
	Threshold     int64
	Resources     ResourceSnapshot
}

// Stats is an aggregate over recorded history.
type Stats struct {
	TotalCollections   int64
	TotalCollected     int64
	TotalUncollectable int64
	AvgDurationMs      float64
}

// Recorder is a fixed-capacity ring buffer of collection events plus a
// fan-out subscriber set, mirroring telemetry.collector's shape.
type Recorder struct {
	mu          sync.RWMutex
	events      []Event
	head        int
	count       int
	capacity    int
	subscribers map[string]chan Event
	closed      bool
}

// NewRecorder constructs a Recorder holding at most capacity events.
func NewRecorder(capacity int) *Recorder {
	if capacity <= 0 {
		capacity = 1000
	}
	return &Recorder{
		events:      make([]Event, capacity),
		capacity:    capacity,
		subscribers: make(map[string]chan Event),
	}
}

// Record appends ev, assigning an ID and timestamp if unset, and fans
// it out to subscribers non-blockingly.
func (r *Recorder) Record(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	r.events[r.head] = ev
	r.head = (r.head + 1) % r.capacity
	if r.count < r.capacity {
		r.count++
	}

	for _, ch := range r.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// History returns up to limit most recent events, oldest first. limit
// <= 0 means no limit.
func (r *Recorder) History(limit int) []Event {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > r.count {
		limit = r.count
	}
	out := make([]Event, 0, limit)
	start := r.count - limit
	for i := start; i < r.count; i++ {
		idx := (r.head - r.count + i + r.capacity) % r.capacity
		out = append(out, r.events[idx])
	}
	return out
}

// Stats aggregates over every currently-retained event.
func (r *Recorder) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var s Stats
	var totalDuration int64
	for i := 0; i < r.count; i++ {
		idx := (r.head - r.count + i + r.capacity) % r.capacity
		ev := r.events[idx]
		s.TotalCollections++
		s.TotalCollected += int64(ev.Collected)
		s.TotalUncollectable += int64(ev.Uncollectable)
		totalDuration += ev.DurationMs
	}
	if s.TotalCollections > 0 {
		s.AvgDurationMs = float64(totalDuration) / float64(s.TotalCollections)
	}
	return s
}

// Subscribe registers a new live-event channel. The returned function
// unsubscribes and closes the channel.
func (r *Recorder) Subscribe() (<-chan Event, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan Event, 64)
	if r.closed {
		close(ch)
		return ch, func() {}
	}
	r.subscribers[id] = ch

	unsubscribe := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if sub, ok := r.subscribers[id]; ok {
			close(sub)
			delete(r.subscribers, id)
		}
	}
	return ch, unsubscribe
}

// Close shuts the recorder down, closing every subscriber channel.
func (r *Recorder) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for id, ch := range r.subscribers {
		close(ch)
		delete(r.subscribers, id)
	}
}
