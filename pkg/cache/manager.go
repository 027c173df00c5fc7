package cache

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Stats are cache counters.
type Stats struct {
	Entries    int
	Hits       uint64
	Misses     uint64
	Evictions  uint64
	Expired    uint64
	Promotions uint64
	Demotions  uint64

	// TierEntries and TierHits break the counters down per tier for
	// tiered caches.
	TierEntries map[string]int
	TierHits    map[string]uint64
}

// HitRatio returns hits / (hits + misses), or 0 before any lookup.
func (s Stats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Sweepable is a cache the Manager can monitor.
type Sweepable interface {
	Sweep(idle time.Duration) int
	Stats() Stats
	Purge()
}

// ManagerOption configures a Manager.
type ManagerOption func(*managerConfig)

type managerConfig struct {
	interval time.Duration
	idle     time.Duration
	logger   *slog.Logger
	onSweep  func(name string, removed int, stats Stats)
}

// WithInterval sets how often caches are swept. Default: 30 seconds.
func WithInterval(d time.Duration) ManagerOption {
	return func(c *managerConfig) {
		c.interval = d
	}
}

// WithIdle sets the idle age after which tiered entries are dropped.
// Default: 5 minutes.
func WithIdle(d time.Duration) ManagerOption {
	return func(c *managerConfig) {
		c.idle = d
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(c *managerConfig) {
		c.logger = l
	}
}

// WithSweepHook is called after each cache sweep.
func WithSweepHook(fn func(name string, removed int, stats Stats)) ManagerOption {
	return func(c *managerConfig) {
		c.onSweep = fn
	}
}

// Manager monitors a set of caches and sweeps them periodically. It does
// not own the caches; each component keeps exclusive ownership of its own
// cache and only registers it here.
type Manager struct {
	mu      sync.Mutex
	cfg     managerConfig
	caches  map[string]Sweepable
	done    chan struct{}
	running bool
	wg      sync.WaitGroup
}

// NewManager creates a stopped manager.
func NewManager(opts ...ManagerOption) *Manager {
	cfg := managerConfig{
		interval: 30 * time.Second,
		idle:     5 * time.Minute,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default().With("component", "cache")
	}
	return &Manager{
		cfg:    cfg,
		caches: make(map[string]Sweepable),
	}
}

// Register adds a cache under name, replacing any previous one.
func (m *Manager) Register(name string, c Sweepable) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.caches[name] = c
}

// Unregister removes the cache registered under name.
func (m *Manager) Unregister(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.caches, name)
}

// Names returns the registered cache names in sorted order.
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.caches))
	for name := range m.caches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start begins periodic sweeping. Calling Start twice is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.done = make(chan struct{})
	m.wg.Add(1)
	go m.sweepLoop(m.done)
}

// Stop halts periodic sweeping and waits for the loop to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.done)
	m.mu.Unlock()
	m.wg.Wait()
}

// Close stops sweeping and purges every registered cache.
func (m *Manager) Close() {
	m.Stop()
	m.mu.Lock()
	caches := make([]Sweepable, 0, len(m.caches))
	for _, c := range m.caches {
		caches = append(caches, c)
	}
	m.caches = make(map[string]Sweepable)
	m.mu.Unlock()

	for _, c := range caches {
		c.Purge()
	}
}

func (m *Manager) sweepLoop(done <-chan struct{}) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.SweepNow()
		case <-done:
			return
		}
	}
}

// SweepNow sweeps every registered cache once and returns the number of
// entries removed.
func (m *Manager) SweepNow() int {
	m.mu.Lock()
	snapshot := make(map[string]Sweepable, len(m.caches))
	for name, c := range m.caches {
		snapshot[name] = c
	}
	m.mu.Unlock()

	total := 0
	for name, c := range snapshot {
		removed := c.Sweep(m.cfg.idle)
		total += removed
		stats := c.Stats()
		m.cfg.logger.Debug("cache swept",
			"cache", name,
			"removed", removed,
			"entries", stats.Entries,
			"hit_ratio", stats.HitRatio())
		if m.cfg.onSweep != nil {
			m.cfg.onSweep(name, removed, stats)
		}
	}
	return total
}

// Snapshot returns the current stats of every registered cache.
func (m *Manager) Snapshot() map[string]Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]Stats, len(m.caches))
	for name, c := range m.caches {
		out[name] = c.Stats()
	}
	return out
}
