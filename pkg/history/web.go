package history

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
)

var errNoHistory = errors.New("platform has no history API")

// Keys of the state object stored in the platform history entry.
const (
	statePosition = "position"
	stateUser     = "user"
)

// WebOption configures a Browser or Hash history.
type WebOption func(*web)

// WithBase sets the base the app is served under, e.g. "/app".
func WithBase(base string) WebOption {
	return func(w *web) {
		w.base = NormalizeBase(base)
	}
}

// WithSanitizeDepth overrides the state sanitize depth.
func WithSanitizeDepth(depth int) WebOption {
	return func(w *web) {
		w.depth = depth
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) WebOption {
	return func(w *web) {
		if l != nil {
			w.logger = l
		}
	}
}

// web is the shared engine of the Browser and Hash histories.
type web struct {
	mu     sync.Mutex
	p      Platform
	base   string
	hash   bool
	native bool
	depth  int

	location string
	state    map[string]any
	position int

	// skipTo is the position of a silent traversal still in flight.
	skipTo     *int
	skipHashes int

	// fallback keeps per-location state when the platform has no history
	// API to hold it.
	fallback map[string]map[string]any

	popping    bool
	hasPending bool
	pending    map[string]any

	listeners listeners
	removers  []func()
	destroyed bool
	logger    *slog.Logger
}

// Browser mirrors locations into the platform's path, query and fragment.
type Browser struct {
	*web
}

// Hash keeps the location in the URL fragment, e.g. "/app#/users/42". On a
// platform without a history API it falls back to assigning the fragment
// and listening for hashchange; Replace then also creates an entry.
type Hash struct {
	*web
}

// NewBrowser creates a history over p. p must support the history API.
func NewBrowser(p Platform, opts ...WebOption) (*Browser, error) {
	if !p.SupportsHistory() {
		return nil, errNoHistory
	}
	w := newWeb(p, false, opts)
	return &Browser{web: w}, nil
}

// NewHash creates a fragment-based history over p.
func NewHash(p Platform, opts ...WebOption) *Hash {
	return &Hash{web: newWeb(p, true, opts)}
}

func newWeb(p Platform, hash bool, opts []WebOption) *web {
	w := &web{
		p:      p,
		hash:   hash,
		native: p.SupportsHistory(),
		depth:  DefaultSanitizeDepth,
	}
	mode := "browser"
	if hash {
		mode = "hash"
	}
	w.logger = slog.Default().With("component", "history", "mode", mode)
	for _, opt := range opts {
		opt(w)
	}

	w.location = w.readLocation()
	if w.native {
		stored := p.HistoryState()
		if pos, ok := asInt(stored[statePosition]); ok {
			w.position = pos
			w.state, _ = stored[stateUser].(map[string]any)
		} else if err := p.ReplaceState(w.stored(nil), w.href(w.location)); err != nil {
			w.logger.Warn("failed to stamp initial history entry", "error", err)
		}
		w.removers = append(w.removers, p.OnPopState(w.onPop))
	} else {
		w.fallback = make(map[string]map[string]any)
		w.removers = append(w.removers, p.OnHashChange(w.onHashChange))
	}
	return w
}

func (w *web) readLocation() string {
	url := w.p.URL()
	if w.hash {
		_, frag, _ := strings.Cut(url, "#")
		return orRoot(frag)
	}
	return stripBase(url, w.base)
}

func (w *web) href(location string) string {
	if w.hash {
		base := w.base
		if base == "" {
			base = "/"
		}
		return base + "#" + location
	}
	return w.base + location
}

func (w *web) stored(user map[string]any) map[string]any {
	s := map[string]any{statePosition: w.position}
	if user != nil {
		s[stateUser] = user
	}
	return s
}

func (w *web) Base() string {
	return w.base
}

func (w *web) Location() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.location
}

func (w *web) State() map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *web) CreateHref(location string) string {
	return w.href(location)
}

func (w *web) Push(to string, state map[string]any) error {
	return w.change(to, state, false)
}

func (w *web) Replace(to string, state map[string]any) error {
	return w.change(to, state, true)
}

func (w *web) change(to string, state map[string]any, replace bool) error {
	to = orRoot(to)
	clean := Sanitize(state, w.depth)

	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return ErrDestroyed
	}

	if w.native {
		defer w.mu.Unlock()
		pos := w.position
		if !replace {
			pos++
		}
		stored := map[string]any{statePosition: pos}
		if clean != nil {
			stored[stateUser] = clean
		}
		var err error
		if replace {
			err = w.p.ReplaceState(stored, w.href(to))
		} else {
			err = w.p.PushState(stored, w.href(to))
		}
		if err != nil {
			return err
		}
		w.position = pos
		w.location = to
		w.state = clean
		return nil
	}

	// Without a history API the change surfaces as a hashchange, which
	// must not be reported as a pop.
	w.location = to
	w.state = clean
	w.fallback[to] = clean
	w.mu.Unlock()
	w.p.AssignHash(to)
	return nil
}

func (w *web) Go(delta int, notify bool) {
	if delta == 0 {
		return
	}
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return
	}
	if !notify {
		if w.native {
			target := w.position + delta
			w.skipTo = &target
		} else {
			w.skipHashes++
		}
	}
	w.mu.Unlock()
	w.p.Go(delta)
}

func (w *web) Back()    { w.Go(-1, true) }
func (w *web) Forward() { w.Go(1, true) }

func (w *web) Listen(l Listener) func() {
	return w.listeners.add(l)
}

func (w *web) Destroy() {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return
	}
	w.destroyed = true
	removers := w.removers
	w.removers = nil
	w.mu.Unlock()

	for _, remove := range removers {
		remove()
	}
	w.listeners.clear()
}

// onPop handles a native popstate. A pop arriving while listeners are
// still handling the previous one is coalesced: only the latest is
// processed once they return.
func (w *web) onPop(state map[string]any) {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return
	}
	if w.popping {
		w.pending = state
		w.hasPending = true
		w.mu.Unlock()
		return
	}
	w.popping = true

	for {
		ev, skip := w.applyPopLocked(state)
		w.mu.Unlock()
		if !skip {
			w.listeners.notify(ev)
		}
		w.mu.Lock()
		if !w.hasPending || w.destroyed {
			w.popping = false
			w.hasPending = false
			w.mu.Unlock()
			return
		}
		state = w.pending
		w.pending = nil
		w.hasPending = false
	}
}

func (w *web) applyPopLocked(state map[string]any) (PopEvent, bool) {
	from := w.location
	to := w.readLocation()

	pos, ok := asInt(state[statePosition])
	if !ok {
		// An entry created outside this history, e.g. a typed fragment.
		pos = w.position + 1
		if err := w.p.ReplaceState(map[string]any{statePosition: pos}, w.href(to)); err != nil {
			w.logger.Warn("failed to stamp history entry", "error", err)
		}
	}
	delta := pos - w.position
	user, _ := state[stateUser].(map[string]any)

	w.location = to
	w.position = pos
	w.state = user

	if w.skipTo != nil && *w.skipTo == pos {
		w.skipTo = nil
		return PopEvent{}, true
	}
	if !ok {
		delta = 0
	}
	return PopEvent{
		To:        to,
		From:      from,
		State:     user,
		Delta:     delta,
		Type:      NavigationPop,
		Direction: directionOf(delta),
	}, false
}

func (w *web) onHashChange() {
	w.mu.Lock()
	if w.destroyed {
		w.mu.Unlock()
		return
	}
	if w.popping {
		w.hasPending = true
		w.mu.Unlock()
		return
	}
	w.popping = true

	for {
		from := w.location
		to := w.readLocation()
		skip := to == from
		if !skip && w.skipHashes > 0 {
			w.skipHashes--
			skip = true
		}
		w.location = to
		w.state = w.fallback[to]
		ev := PopEvent{To: to, From: from, State: w.state, Type: NavigationPop, Direction: DirectionUnknown}
		w.mu.Unlock()

		if !skip {
			w.listeners.notify(ev)
		}

		w.mu.Lock()
		if !w.hasPending || w.destroyed {
			w.popping = false
			w.hasPending = false
			w.mu.Unlock()
			return
		}
		w.hasPending = false
	}
}

// asInt reads a position that may have crossed a JSON boundary.
func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}
