package history

import (
	"strings"
	"sync"
)

// Platform is the host environment a Browser or Hash history drives: a
// window with a location and, usually, a native history stack.
type Platform interface {
	// URL returns the current path, query and fragment, e.g.
	// "/app/users?tab=1#top".
	URL() string

	// HistoryState returns the state attached to the current entry.
	HistoryState() map[string]any

	// SupportsHistory reports whether PushState and ReplaceState work.
	SupportsHistory() bool

	PushState(state map[string]any, url string) error
	ReplaceState(state map[string]any, url string) error

	// Go traverses the native stack. Arrival is reported through
	// OnPopState.
	Go(delta int)

	// AssignHash sets the fragment the way assigning location.hash does,
	// creating a new entry when it changes.
	AssignHash(fragment string)

	OnPopState(fn func(state map[string]any)) (remove func())
	OnHashChange(fn func()) (remove func())
}

// SimPlatform is an in-process Platform for tests and headless use. Pop
// and hashchange events are delivered synchronously, outside of its lock.
type SimPlatform struct {
	mu      sync.Mutex
	entries []simEntry
	pos     int
	native  bool

	popSubs  map[int]func(map[string]any)
	hashSubs map[int]func()
	nextSub  int

	// Pushes counts successful PushState calls.
	Pushes int
}

type simEntry struct {
	url   string
	state map[string]any
}

// NewSimPlatform creates a platform at url. With native false the platform
// has no history API and only hash assignment works.
func NewSimPlatform(url string, native bool) *SimPlatform {
	return &SimPlatform{
		entries:  []simEntry{{url: orRoot(url)}},
		native:   native,
		popSubs:  make(map[int]func(map[string]any)),
		hashSubs: make(map[int]func()),
	}
}

func (p *SimPlatform) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries[p.pos].url
}

func (p *SimPlatform) HistoryState() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entries[p.pos].state
}

func (p *SimPlatform) SupportsHistory() bool {
	return p.native
}

// Len returns the number of native entries.
func (p *SimPlatform) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

func (p *SimPlatform) PushState(state map[string]any, url string) error {
	if !p.native {
		return errNoHistory
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries = append(p.entries[:p.pos+1], simEntry{url: url, state: state})
	p.pos++
	p.Pushes++
	return nil
}

func (p *SimPlatform) ReplaceState(state map[string]any, url string) error {
	if !p.native {
		return errNoHistory
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[p.pos] = simEntry{url: url, state: state}
	return nil
}

// Go moves through the stack and fires popstate, or hashchange when only
// the fragment differs on a platform without a history API.
func (p *SimPlatform) Go(delta int) {
	p.mu.Lock()
	target := p.pos + delta
	if delta == 0 || target < 0 || target >= len(p.entries) {
		p.mu.Unlock()
		return
	}
	fromURL := p.entries[p.pos].url
	p.pos = target
	state := p.entries[target].state
	var pops []func(map[string]any)
	if p.native {
		pops = p.popSubsLocked()
	}
	var hashes []func()
	if sameDocument(fromURL, p.entries[target].url) {
		hashes = p.hashSubsLocked()
	}
	p.mu.Unlock()

	for _, fn := range pops {
		fn(state)
	}
	for _, fn := range hashes {
		fn()
	}
}

// Back simulates the user pressing the back button.
func (p *SimPlatform) Back() { p.Go(-1) }

// Forward simulates the user pressing the forward button.
func (p *SimPlatform) Forward() { p.Go(1) }

func (p *SimPlatform) AssignHash(fragment string) {
	fragment = strings.TrimPrefix(fragment, "#")
	p.mu.Lock()
	cur := p.entries[p.pos].url
	base, _, _ := strings.Cut(cur, "#")
	url := base + "#" + fragment
	if url == cur {
		p.mu.Unlock()
		return
	}
	p.entries = append(p.entries[:p.pos+1], simEntry{url: url})
	p.pos++
	hashes := p.hashSubsLocked()
	p.mu.Unlock()

	for _, fn := range hashes {
		fn()
	}
}

// Navigate simulates the user typing a URL: a new entry followed by a
// hashchange event when only the fragment changed.
func (p *SimPlatform) Navigate(url string) {
	p.mu.Lock()
	cur := p.entries[p.pos].url
	p.entries = append(p.entries[:p.pos+1], simEntry{url: url})
	p.pos++
	var hashes []func()
	if sameDocument(cur, url) {
		hashes = p.hashSubsLocked()
	}
	p.mu.Unlock()

	for _, fn := range hashes {
		fn()
	}
}

// sameDocument reports whether two URLs differ only in their fragment.
func sameDocument(a, b string) bool {
	aBase, aFrag, _ := strings.Cut(a, "#")
	bBase, bFrag, _ := strings.Cut(b, "#")
	return aBase == bBase && aFrag != bFrag
}

func (p *SimPlatform) OnPopState(fn func(state map[string]any)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextSub++
	id := p.nextSub
	p.popSubs[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.popSubs, id)
		p.mu.Unlock()
	}
}

func (p *SimPlatform) OnHashChange(fn func()) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextSub++
	id := p.nextSub
	p.hashSubs[id] = fn
	return func() {
		p.mu.Lock()
		delete(p.hashSubs, id)
		p.mu.Unlock()
	}
}

// Subscribers reports how many event subscriptions are live.
func (p *SimPlatform) Subscribers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.popSubs) + len(p.hashSubs)
}

func (p *SimPlatform) popSubsLocked() []func(map[string]any) {
	out := make([]func(map[string]any), 0, len(p.popSubs))
	for i := 1; i <= p.nextSub; i++ {
		if fn, ok := p.popSubs[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}

func (p *SimPlatform) hashSubsLocked() []func() {
	out := make([]func(), 0, len(p.hashSubs))
	for i := 1; i <= p.nextSub; i++ {
		if fn, ok := p.hashSubs[i]; ok {
			out = append(out, fn)
		}
	}
	return out
}
