package history

import (
	"strings"
	"sync"
)

// NavigationType tells how a location change happened.
type NavigationType int

const (
	// NavigationPop is a back/forward or go(n) traversal.
	NavigationPop NavigationType = iota
	// NavigationPush is a new entry.
	NavigationPush
)

func (t NavigationType) String() string {
	if t == NavigationPush {
		return "push"
	}
	return "pop"
}

// Direction of a pop.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionBack
	DirectionForward
)

func (d Direction) String() string {
	switch d {
	case DirectionBack:
		return "back"
	case DirectionForward:
		return "forward"
	default:
		return "unknown"
	}
}

func directionOf(delta int) Direction {
	switch {
	case delta < 0:
		return DirectionBack
	case delta > 0:
		return DirectionForward
	default:
		return DirectionUnknown
	}
}

// PopEvent describes an externally triggered location change.
type PopEvent struct {
	// To and From are location strings relative to the base.
	To   string
	From string

	// State is the state of the entry now current.
	State map[string]any

	// Delta is the distance travelled, 0 when unknown.
	Delta     int
	Type      NavigationType
	Direction Direction
}

// Listener receives pop events.
type Listener func(PopEvent)

// History is a navigable location stack. Locations are strings such as
// "/users/42?tab=posts#top", relative to Base.
//
// Push and Replace never notify listeners. Go notifies listeners when the
// traversal lands, unless notify is false.
type History interface {
	// Base is the prefix prepended by CreateHref.
	Base() string

	// Location returns the current location.
	Location() string

	// State returns the sanitized state of the current entry.
	State() map[string]any

	// Push adds an entry after the current one and discards forward
	// entries.
	Push(to string, state map[string]any) error

	// Replace swaps the current entry.
	Replace(to string, state map[string]any) error

	// Go moves delta entries through the stack.
	Go(delta int, notify bool)
	Back()
	Forward()

	// Listen registers l for pop events.
	Listen(l Listener) (unlisten func())

	// CreateHref renders a location as a link target.
	CreateHref(location string) string

	// Destroy detaches platform listeners and drops registered listeners.
	Destroy()
}

// listeners is a registration list notified outside of any lock.
type listeners struct {
	mu     sync.Mutex
	nextID uint64
	items  []listenerEntry
}

type listenerEntry struct {
	id uint64
	fn Listener
}

func (ls *listeners) add(fn Listener) func() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.nextID++
	id := ls.nextID
	ls.items = append(ls.items, listenerEntry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			ls.mu.Lock()
			defer ls.mu.Unlock()
			for i, e := range ls.items {
				if e.id == id {
					ls.items = append(ls.items[:i:i], ls.items[i+1:]...)
					return
				}
			}
		})
	}
}

// notify calls every listener with ev, in registration order.
func (ls *listeners) notify(ev PopEvent) {
	ls.mu.Lock()
	items := make([]listenerEntry, len(ls.items))
	copy(items, ls.items)
	ls.mu.Unlock()

	for _, e := range items {
		e.fn(ev)
	}
}

func (ls *listeners) clear() {
	ls.mu.Lock()
	ls.items = nil
	ls.mu.Unlock()
}

// NormalizeBase trims a trailing slash and ensures a leading one. An empty
// base stays empty.
func NormalizeBase(base string) string {
	if base == "" || base == "/" {
		return ""
	}
	if !strings.HasPrefix(base, "/") && !strings.HasPrefix(base, "#") {
		base = "/" + base
	}
	return strings.TrimSuffix(base, "/")
}

// stripBase removes base from location when it is a prefix.
func stripBase(location, base string) string {
	if base == "" || !strings.HasPrefix(strings.ToLower(location), strings.ToLower(base)) {
		return orRoot(location)
	}
	return orRoot(location[len(base):])
}

func orRoot(location string) string {
	if location == "" {
		return "/"
	}
	if !strings.HasPrefix(location, "/") {
		return "/" + location
	}
	return location
}
