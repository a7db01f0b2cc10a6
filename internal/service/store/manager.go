// Package store holds the unified signal manager, the only stateful
// component of the fusion pipeline.
package store

import (
	"sync"
	"time"

	"FlowRadar/internal/domain/models"
	"FlowRadar/internal/domain/repository"
	"FlowRadar/internal/services/fusion"
	"FlowRadar/pkg/logger"
)

// DefaultCapacity bounds the ring buffer when no capacity is configured.
const DefaultCapacity = 1000

// Option configures a Manager.
type Option func(*Manager)

// WithCapacity sets the ring buffer size.
func WithCapacity(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.capacity = n
		}
	}
}

// WithPriority injects the rank tables used for upgrade decisions.
func WithPriority(p *fusion.PriorityConfig) Option {
	return func(m *Manager) {
		if p != nil {
			m.priority = p
		}
	}
}

// WithLogger attaches a logger.
func WithLogger(log *logger.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(metrics repository.Metrics) Option {
	return func(m *Manager) { m.metrics = metrics }
}

// WithClock overrides the time source used by DedupeByWindow.
func WithClock(now func() float64) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager is a capacity-bounded, deduplicating signal store. A ring buffer
// holds insertion order for eviction; a key index gives O(1) dedup lookups.
// Index and buffer must always agree on membership: eviction reconciles the
// index in the same critical section, and any detected divergence is
// self-healed with a full resync.
type Manager struct {
	mu       sync.Mutex
	buf      []*models.SignalEvent
	start    int // oldest slot
	size     int
	index    map[string]int // key -> buffer slot
	capacity int

	suppressed map[string]int64
	suppTotal  int64
	evicted    int64

	priority *fusion.PriorityConfig
	log      *logger.Logger
	metrics  repository.Metrics
	now      func() float64
}

// NewManager builds a store with the given options.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		capacity: DefaultCapacity,
		priority: fusion.DefaultPriorityConfig(),
		now:      func() float64 { return float64(time.Now().UnixNano()) / float64(time.Second) },
	}
	for _, opt := range opts {
		opt(m)
	}
	m.buf = make([]*models.SignalEvent, m.capacity)
	m.index = make(map[string]int, m.capacity)
	m.suppressed = make(map[string]int64)
	return m
}

// slot maps a logical position (0 = oldest) to a physical buffer slot.
func (m *Manager) slot(logical int) int {
	return (m.start + logical) % m.capacity
}

// Add validates and ingests one event. A duplicate key either upgrades the
// stored event (lower sort key, or equal sort key with higher confidence) or
// is suppressed. A new key appends, evicting the oldest entry on overflow
// with the index reconciled before the lock is released. The stored value is
// a copy; the caller's event stays its own.
func (m *Manager) Add(ev *models.SignalEvent) error {
	if err := ev.Validate(); err != nil {
		if m.metrics != nil {
			if verr, ok := err.(*models.ValidationError); ok {
				m.metrics.RecordRejected(verr.Field)
			} else {
				m.metrics.RecordRejected("unknown")
			}
		}
		return err
	}

	stored := ev.Clone()

	m.mu.Lock()
	defer m.mu.Unlock()

	if pos, ok := m.index[stored.Key]; ok {
		old := m.buf[pos]
		newKey, oldKey := m.priority.SortKey(stored), m.priority.SortKey(old)
		if newKey.Less(oldKey) || (newKey.Equal(oldKey) && stored.Confidence > old.Confidence) {
			m.buf[pos] = stored
			if m.metrics != nil {
				m.metrics.RecordReplaced(stored.Symbol)
			}
		} else {
			m.suppressed[stored.Key]++
			m.suppTotal++
			if m.metrics != nil {
				m.metrics.RecordSuppressed(stored.Symbol)
			}
		}
		return nil
	}

	if m.size < m.capacity {
		pos := m.slot(m.size)
		m.buf[pos] = stored
		m.index[stored.Key] = pos
		m.size++
	} else {
		// overflow: drop the oldest entry and reconcile the index now,
		// never after the lock is released
		old := m.buf[m.start]
		delete(m.index, old.Key)
		delete(m.suppressed, old.Key)
		m.evicted++
		m.buf[m.start] = stored
		m.index[stored.Key] = m.start
		m.start = (m.start + 1) % m.capacity
		if m.metrics != nil {
			m.metrics.RecordEvicted()
		}
		if m.log != nil {
			m.log.Debug("signal evicted on capacity overflow",
				logger.String("evicted_key", old.Key),
				logger.String("new_key", stored.Key))
		}
	}

	m.checkConsistencyLocked()
	if m.metrics != nil {
		m.metrics.RecordStoreSize(m.size)
		m.metrics.RecordIngested(stored.Symbol, string(stored.Type))
	}
	return nil
}

// Top returns up to n events in priority order. Contents are copied under
// the lock and sorted outside it so producers are not blocked by sorting.
func (m *Manager) Top(n int) []*models.SignalEvent {
	if n <= 0 {
		return nil
	}
	events := m.snapshot()
	m.priority.Sort(events)
	if len(events) > n {
		events = events[:n]
	}
	return events
}

// Snapshot returns copies of every stored event for a symbol, or of the
// whole store when symbol is empty, in priority order.
func (m *Manager) Snapshot(symbol string) []*models.SignalEvent {
	events := m.snapshot()
	if symbol != "" {
		filtered := events[:0]
		for _, ev := range events {
			if ev.Symbol == symbol {
				filtered = append(filtered, ev)
			}
		}
		events = filtered
	}
	m.priority.Sort(events)
	return events
}

func (m *Manager) snapshot() []*models.SignalEvent {
	m.mu.Lock()
	events := make([]*models.SignalEvent, 0, m.size)
	for i := 0; i < m.size; i++ {
		events = append(events, m.buf[m.slot(i)].Clone())
	}
	m.mu.Unlock()
	return events
}

// Flush atomically empties the store and returns its former contents in
// priority order. Suppression counts reset with the contents.
func (m *Manager) Flush() []*models.SignalEvent {
	m.mu.Lock()
	events := make([]*models.SignalEvent, 0, m.size)
	for i := 0; i < m.size; i++ {
		events = append(events, m.buf[m.slot(i)])
	}
	m.buf = make([]*models.SignalEvent, m.capacity)
	m.index = make(map[string]int, m.capacity)
	m.suppressed = make(map[string]int64)
	m.start, m.size = 0, 0
	if m.metrics != nil {
		m.metrics.RecordStoreSize(0)
	}
	m.mu.Unlock()

	m.priority.Sort(events)
	return events
}

// DedupeByWindow drops entries older than the window, compacting the buffer
// and rebuilding the index in one critical section. Returns the number of
// dropped entries.
func (m *Manager) DedupeByWindow(windowSeconds float64) int {
	cutoff := m.now() - windowSeconds

	m.mu.Lock()
	defer m.mu.Unlock()

	kept := make([]*models.SignalEvent, 0, m.size)
	dropped := 0
	for i := 0; i < m.size; i++ {
		ev := m.buf[m.slot(i)]
		if ev.TS < cutoff {
			delete(m.suppressed, ev.Key)
			dropped++
			continue
		}
		kept = append(kept, ev)
	}
	if dropped == 0 {
		return 0
	}

	m.buf = make([]*models.SignalEvent, m.capacity)
	m.index = make(map[string]int, m.capacity)
	m.start = 0
	m.size = len(kept)
	for i, ev := range kept {
		m.buf[i] = ev
		m.index[ev.Key] = i
	}
	m.checkConsistencyLocked()
	if m.metrics != nil {
		m.metrics.RecordStoreSize(m.size)
	}
	return dropped
}

// ContainsKey reports whether a key is currently stored.
func (m *Manager) ContainsKey(key string) bool {
	m.mu.Lock()
	_, ok := m.index[key]
	m.mu.Unlock()
	return ok
}

// SuppressedCount returns how many duplicate inserts lost to the stored
// entry for this key.
func (m *Manager) SuppressedCount(key string) int64 {
	m.mu.Lock()
	n := m.suppressed[key]
	m.mu.Unlock()
	return n
}

// Size returns the number of stored events.
func (m *Manager) Size() int {
	m.mu.Lock()
	n := m.size
	m.mu.Unlock()
	return n
}

// Capacity returns the configured ring size.
func (m *Manager) Capacity() int { return m.capacity }

// Stats reports the store composition by level, type and side.
func (m *Manager) Stats() models.StoreStats {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := models.StoreStats{
		Size:       m.size,
		Capacity:   m.capacity,
		ByLevel:    make(map[models.SignalLevel]int),
		ByType:     make(map[models.SignalType]int),
		BySide:     make(map[models.SignalSide]int),
		Suppressed: m.suppTotal,
		Evicted:    m.evicted,
	}
	for i := 0; i < m.size; i++ {
		ev := m.buf[m.slot(i)]
		stats.ByLevel[ev.Level]++
		stats.ByType[ev.Type]++
		stats.BySide[ev.Side]++
	}
	return stats
}

// Symbols returns the distinct symbols currently stored.
func (m *Manager) Symbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	seen := make(map[string]struct{})
	symbols := make([]string, 0, 4)
	for i := 0; i < m.size; i++ {
		sym := m.buf[m.slot(i)].Symbol
		if _, ok := seen[sym]; ok {
			continue
		}
		seen[sym] = struct{}{}
		symbols = append(symbols, sym)
	}
	return symbols
}

// checkConsistencyLocked verifies the index and buffer agree on membership.
// A divergence is a bug, not a runtime condition; it is logged hard,
// counted, and self-healed by rebuilding the index from the buffer.
func (m *Manager) checkConsistencyLocked() {
	if len(m.index) == m.size {
		return
	}
	if m.log != nil {
		m.log.Error("signal store index diverged from buffer, resyncing",
			logger.Int("index_size", len(m.index)),
			logger.Int("buffer_size", m.size))
	}
	if m.metrics != nil {
		m.metrics.RecordIndexResync()
	}
	m.index = make(map[string]int, m.capacity)
	for i := 0; i < m.size; i++ {
		pos := m.slot(i)
		m.index[m.buf[pos].Key] = pos
	}
	m.size = len(m.index)
}

// Resync forces an index rebuild. Exposed for operational tooling.
func (m *Manager) Resync() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.index = make(map[string]int, m.capacity)
	for i := 0; i < m.size; i++ {
		pos := m.slot(i)
		m.index[m.buf[pos].Key] = pos
	}
}
