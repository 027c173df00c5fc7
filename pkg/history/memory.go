package history

import (
	"errors"
	"log/slog"
	"sync"
)

// DefaultMemoryCap is the default number of entries a Memory history keeps.
const DefaultMemoryCap = 100

// ErrDestroyed is returned by operations on a destroyed history.
var ErrDestroyed = errors.New("history destroyed")

// Entry is one history stack entry.
type Entry struct {
	Location string         `json:"location"`
	State    map[string]any `json:"state,omitempty"`
}

// Snapshot is a serializable copy of a Memory history.
type Snapshot struct {
	Entries  []Entry `json:"entries"`
	Position int     `json:"position"`
}

// Memory is an in-memory history for non-browser environments and tests.
// The stack is bounded: once the cap is reached the oldest entries are
// dropped. Memory is safe for concurrent use.
type Memory struct {
	mu        sync.Mutex
	base      string
	entries   []Entry
	pos       int
	cap       int
	depth     int
	destroyed bool

	listeners listeners
	logger    *slog.Logger
}

// MemoryOption configures a Memory history.
type MemoryOption func(*Memory)

// WithMemoryCap bounds the number of stack entries.
func WithMemoryCap(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.cap = n
		}
	}
}

// WithMemoryBase sets the href base.
func WithMemoryBase(base string) MemoryOption {
	return func(m *Memory) {
		m.base = NormalizeBase(base)
	}
}

// WithMemorySanitizeDepth overrides the state sanitize depth.
func WithMemorySanitizeDepth(depth int) MemoryOption {
	return func(m *Memory) {
		m.depth = depth
	}
}

// WithMemoryLogger sets the logger.
func WithMemoryLogger(l *slog.Logger) MemoryOption {
	return func(m *Memory) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMemory creates a memory history positioned at "/".
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		cap:     DefaultMemoryCap,
		depth:   DefaultSanitizeDepth,
		entries: []Entry{{Location: "/"}},
		logger:  slog.Default().With("component", "history", "mode", "memory"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Base() string {
	return m.base
}

func (m *Memory) Location() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.pos].Location
}

func (m *Memory) State() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.pos].State
}

// Position returns the cursor index within the stack.
func (m *Memory) Position() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pos
}

// Len returns the number of stack entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) Push(to string, state map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return ErrDestroyed
	}

	m.entries = append(m.entries[:m.pos+1], Entry{Location: orRoot(to), State: Sanitize(state, m.depth)})
	m.pos = len(m.entries) - 1
	if over := len(m.entries) - m.cap; over > 0 {
		m.entries = append(m.entries[:0:0], m.entries[over:]...)
		m.pos -= over
	}
	return nil
}

func (m *Memory) Replace(to string, state map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.destroyed {
		return ErrDestroyed
	}
	m.entries[m.pos] = Entry{Location: orRoot(to), State: Sanitize(state, m.depth)}
	return nil
}

// Go moves the cursor. A delta that would leave the stack is ignored.
func (m *Memory) Go(delta int, notify bool) {
	m.mu.Lock()
	target := m.pos + delta
	if m.destroyed || delta == 0 || target < 0 || target >= len(m.entries) {
		m.mu.Unlock()
		return
	}
	from := m.entries[m.pos].Location
	m.pos = target
	to := m.entries[target]
	m.mu.Unlock()

	if !notify {
		return
	}
	m.listeners.notify(PopEvent{
		To:        to.Location,
		From:      from,
		State:     to.State,
		Delta:     delta,
		Type:      NavigationPop,
		Direction: directionOf(delta),
	})
}

func (m *Memory) Back()    { m.Go(-1, true) }
func (m *Memory) Forward() { m.Go(1, true) }

func (m *Memory) Listen(l Listener) func() {
	return m.listeners.add(l)
}

func (m *Memory) CreateHref(location string) string {
	return m.base + location
}

// Destroy drops listeners and resets the stack.
func (m *Memory) Destroy() {
	m.mu.Lock()
	m.destroyed = true
	m.entries = []Entry{{Location: "/"}}
	m.pos = 0
	m.mu.Unlock()
	m.listeners.clear()
}

// Snapshot copies the stack.
func (m *Memory) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := make([]Entry, len(m.entries))
	copy(entries, m.entries)
	return Snapshot{Entries: entries, Position: m.pos}
}

// Restore replaces the stack with snap. Entries beyond the cap are dropped
// from the oldest end and the position is clamped.
func (m *Memory) Restore(snap Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(snap.Entries) == 0 {
		return
	}

	entries := make([]Entry, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		entries = append(entries, Entry{Location: orRoot(e.Location), State: Sanitize(e.State, m.depth)})
	}
	pos := snap.Position
	if over := len(entries) - m.cap; over > 0 {
		entries = entries[over:]
		pos -= over
	}
	pos = max(0, min(pos, len(entries)-1))

	m.entries = entries
	m.pos = pos
	m.destroyed = false
	m.logger.Debug("history restored", "entries", len(entries), "position", pos)
}
