package cache

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Tier identifies a level of a Tiered cache.
type Tier int

const (
	TierHot Tier = iota
	TierWarm
	TierCold
)

var tierNames = [...]string{"hot", "warm", "cold"}

// String returns the tier name.
func (t Tier) String() string {
	if t < 0 || int(t) >= len(tierNames) {
		return "unknown"
	}
	return tierNames[t]
}

// TieredConfig sizes a Tiered cache.
type TieredConfig struct {
	HotSize  int
	WarmSize int
	ColdSize int

	// WarmAfter is the hit count that promotes a cold entry to warm.
	WarmAfter int

	// HotAfter is the hit count that promotes a warm entry to hot.
	HotAfter int
}

// DefaultTieredConfig returns the default tier sizes.
func DefaultTieredConfig() TieredConfig {
	return TieredConfig{
		HotSize:   32,
		WarmSize:  128,
		ColdSize:  512,
		WarmAfter: 2,
		HotAfter:  4,
	}
}

func (c *TieredConfig) applyDefaults() {
	def := DefaultTieredConfig()
	if c.HotSize <= 0 {
		c.HotSize = def.HotSize
	}
	if c.WarmSize <= 0 {
		c.WarmSize = def.WarmSize
	}
	if c.ColdSize <= 0 {
		c.ColdSize = def.ColdSize
	}
	if c.WarmAfter <= 0 {
		c.WarmAfter = def.WarmAfter
	}
	if c.HotAfter <= c.WarmAfter {
		c.HotAfter = c.WarmAfter + 1
	}
}

type tieredEntry[V any] struct {
	value      V
	hits       int
	lastAccess time.Time
}

// Tiered is a hot/warm/cold cache. New entries land in the cold tier and
// are promoted as they collect hits; an entry evicted from a tier is
// demoted to the next one, and only the cold tier drops entries for good.
// Each tier is an LRU. Tiered is safe for concurrent use.
type Tiered[K comparable, V any] struct {
	mu       sync.Mutex
	cfg      TieredConfig
	tiers    [3]*simplelru.LRU[K, *tieredEntry[V]]
	moving   bool
	now      func() time.Time
	stats    Stats
	tierHits [3]uint64
}

// NewTiered creates a tiered cache.
func NewTiered[K comparable, V any](cfg TieredConfig) *Tiered[K, V] {
	cfg.applyDefaults()
	t := &Tiered[K, V]{cfg: cfg, now: time.Now}
	sizes := [3]int{cfg.HotSize, cfg.WarmSize, cfg.ColdSize}
	for i := range t.tiers {
		tier := Tier(i)
		lru, err := simplelru.NewLRU[K, *tieredEntry[V]](sizes[i], func(k K, e *tieredEntry[V]) {
			t.onEvict(tier, k, e)
		})
		if err != nil {
			// sizes are positive after applyDefaults
			panic(err)
		}
		t.tiers[i] = lru
	}
	return t
}

// onEvict runs with t.mu held, from inside an LRU operation.
func (t *Tiered[K, V]) onEvict(from Tier, k K, e *tieredEntry[V]) {
	if t.moving {
		return
	}
	if from == TierCold {
		t.stats.Evictions++
		return
	}
	t.stats.Demotions++
	e.hits = 0
	t.tiers[from+1].Add(k, e)
}

// Get returns the cached value and records a hit.
func (t *Tiered[K, V]) Get(k K) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, lru := range t.tiers {
		e, ok := lru.Get(k)
		if !ok {
			continue
		}
		t.stats.Hits++
		t.tierHits[i]++
		e.hits++
		e.lastAccess = t.now()
		t.maybePromote(Tier(i), k, e)
		return e.value, true
	}
	t.stats.Misses++
	var zero V
	return zero, false
}

// Peek returns the cached value without recording a hit.
func (t *Tiered[K, V]) Peek(k K) (V, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, lru := range t.tiers {
		if e, ok := lru.Peek(k); ok {
			return e.value, true
		}
	}
	var zero V
	return zero, false
}

func (t *Tiered[K, V]) maybePromote(tier Tier, k K, e *tieredEntry[V]) {
	var target Tier
	switch {
	case tier == TierCold && e.hits >= t.cfg.WarmAfter:
		target = TierWarm
	case tier == TierWarm && e.hits >= t.cfg.HotAfter:
		target = TierHot
	default:
		return
	}
	t.moving = true
	t.tiers[tier].Remove(k)
	t.moving = false
	t.stats.Promotions++
	t.tiers[target].Add(k, e)
}

// Put stores a value. Existing keys keep their tier.
func (t *Tiered[K, V]) Put(k K, v V) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, lru := range t.tiers {
		if e, ok := lru.Peek(k); ok {
			e.value = v
			return
		}
	}
	t.tiers[TierCold].Add(k, &tieredEntry[V]{value: v, lastAccess: t.now()})
}

// Remove deletes k from every tier.
func (t *Tiered[K, V]) Remove(k K) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(k)
}

func (t *Tiered[K, V]) removeLocked(k K) bool {
	t.moving = true
	defer func() { t.moving = false }()
	for _, lru := range t.tiers {
		if lru.Remove(k) {
			return true
		}
	}
	return false
}

// RemoveFunc deletes every entry for which match returns true and reports
// how many were removed.
func (t *Tiered[K, V]) RemoveFunc(match func(K, V) bool) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	var doomed []K
	for _, lru := range t.tiers {
		for _, k := range lru.Keys() {
			if e, ok := lru.Peek(k); ok && match(k, e.value) {
				doomed = append(doomed, k)
			}
		}
	}
	for _, k := range doomed {
		t.removeLocked(k)
	}
	return len(doomed)
}

// Purge empties the cache.
func (t *Tiered[K, V]) Purge() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.moving = true
	for _, lru := range t.tiers {
		lru.Purge()
	}
	t.moving = false
}

// Sweep drops entries not accessed within idle and returns how many.
func (t *Tiered[K, V]) Sweep(idle time.Duration) int {
	if idle <= 0 {
		return 0
	}
	cutoff := t.now().Add(-idle)
	t.mu.Lock()
	defer t.mu.Unlock()

	var doomed []K
	for _, lru := range t.tiers {
		for _, k := range lru.Keys() {
			if e, ok := lru.Peek(k); ok && e.lastAccess.Before(cutoff) {
				doomed = append(doomed, k)
			}
		}
	}
	for _, k := range doomed {
		t.removeLocked(k)
	}
	t.stats.Expired += uint64(len(doomed))
	return len(doomed)
}

// TierOf reports which tier holds k.
func (t *Tiered[K, V]) TierOf(k K) (Tier, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, lru := range t.tiers {
		if lru.Contains(k) {
			return Tier(i), true
		}
	}
	return 0, false
}

// Len returns the total number of entries.
func (t *Tiered[K, V]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, lru := range t.tiers {
		n += lru.Len()
	}
	return n
}

// Stats returns a snapshot of the cache counters.
func (t *Tiered[K, V]) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := t.stats
	s.Entries = 0
	s.TierEntries = make(map[string]int, len(t.tiers))
	s.TierHits = make(map[string]uint64, len(t.tiers))
	for i, lru := range t.tiers {
		s.Entries += lru.Len()
		s.TierEntries[Tier(i).String()] = lru.Len()
		s.TierHits[Tier(i).String()] = t.tierHits[i]
	}
	return s
}
