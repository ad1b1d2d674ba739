package table

import (
	"sort"
	"sync"
)

// MetricsCollector defines the interface for collecting client diagnostics
type MetricsCollector interface {
	RecordFrame(msgType string)
	RecordDiscardedFrame(reason string)
	RecordDroppedSend(msgType string)
	RecordEvent(kind string)
}

// NoOpMetricsCollector is a no-op implementation for when metrics aren't needed
type NoOpMetricsCollector struct{}

func (n *NoOpMetricsCollector) RecordFrame(msgType string)         {}
func (n *NoOpMetricsCollector) RecordDiscardedFrame(reason string) {}
func (n *NoOpMetricsCollector) RecordDroppedSend(msgType string)   {}
func (n *NoOpMetricsCollector) RecordEvent(kind string)            {}

// CounterMetrics keeps in-memory counters keyed by "<family>.<label>".
type CounterMetrics struct {
	mu       sync.Mutex
	counters map[string]uint64
}

func NewCounterMetrics() *CounterMetrics {
	return &CounterMetrics{counters: make(map[string]uint64)}
}

func (m *CounterMetrics) RecordFrame(msgType string)         { m.inc("frames." + msgType) }
func (m *CounterMetrics) RecordDiscardedFrame(reason string) { m.inc("discarded." + reason) }
func (m *CounterMetrics) RecordDroppedSend(msgType string)   { m.inc("dropped_sends." + msgType) }
func (m *CounterMetrics) RecordEvent(kind string)            { m.inc("events." + kind) }

func (m *CounterMetrics) inc(key string) {
	m.mu.Lock()
	m.counters[key]++
	m.mu.Unlock()
}

// Get returns a single counter value.
func (m *CounterMetrics) Get(key string) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters[key]
}

// Snapshot returns a copy of all counters.
func (m *CounterMetrics) Snapshot() map[string]uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.counters))
	for k, v := range m.counters {
		out[k] = v
	}
	return out
}

// Keys returns the counter names in sorted order.
func (m *CounterMetrics) Keys() []string {
	snap := m.Snapshot()
	keys := make([]string, 0, len(snap))
	for k := range snap {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
