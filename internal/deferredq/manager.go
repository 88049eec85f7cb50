package deferredq

import "sync"

// Manager owns one Queue per registered thread id and the Phase-1
// drain-and-merge step (spec §4.4.2 / §4.5).
type Manager struct {
	mu     sync.Mutex
	queues map[uint64]*Queue
}

// NewManager constructs an empty manager.
func NewManager() *Manager { return &Manager{queues: make(map[uint64]*Queue)} }

// For returns (creating if necessary) the queue for threadID.
func (m *Manager) For(threadID uint64) *Queue {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[threadID]
	if !ok {
		q = &Queue{}
		m.queues[threadID] = q
	}
	return q
}

// Forget drops a thread's queue, e.g. once it has been drained one
// final time as part of that thread abandoning its allocator state.
func (m *Manager) Forget(threadID uint64) {
	m.mu.Lock()
	delete(m.queues, threadID)
	m.mu.Unlock()
}

// DrainAll drains every registered queue. Must only be called while
// every writer thread is quiescent (i.e. under STW).
func (m *Manager) DrainAll() []Item {
	m.mu.Lock()
	queues := make([]*Queue, 0, len(m.queues))
	for _, q := range m.queues {
		queues = append(queues, q)
	}
	m.mu.Unlock()

	var all []Item
	for _, q := range queues {
		all = append(all, q.Drain()...)
	}
	return all
}
