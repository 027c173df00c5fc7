package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/waypoint/pkg/cache"
	"github.com/vango-dev/waypoint/pkg/guard"
	"github.com/vango-dev/waypoint/pkg/history"
	"github.com/vango-dev/waypoint/pkg/route"
	"github.com/vango-dev/waypoint/pkg/router"
)

// AfterHook runs after a navigation committed.
type AfterHook func(to, from *route.Location)

// ErrorHandler receives every navigation failure and every after-hook
// panic.
type ErrorHandler func(err error, to, from *route.Location)

// Subscriber is notified after the current route changes.
type Subscriber func(to, from *route.Location)

type hook[T any] struct {
	id uint64
	fn T
}

type hookList[T any] struct {
	items []hook[T]
}

func (l *hookList[T]) add(id uint64, fn T) {
	l.items = append(l.items, hook[T]{id: id, fn: fn})
}

func (l *hookList[T]) remove(id uint64) {
	for i, h := range l.items {
		if h.id == id {
			l.items = append(l.items[:i:i], l.items[i+1:]...)
			return
		}
	}
}

func (l *hookList[T]) snapshot() []T {
	out := make([]T, len(l.items))
	for i, h := range l.items {
		out[i] = h.fn
	}
	return out
}

// Engine orchestrates navigations: it resolves targets, expands
// redirects, runs guards, commits to history and publishes the current
// route. Engine is safe for concurrent use; the most recent navigation
// wins.
type Engine struct {
	matcher *router.Matcher
	guards  *guard.Executor
	history history.History
	caches  *cache.Manager
	logger  *slog.Logger
	cfg     config

	seq   atomic.Uint64
	state atomic.Int32

	// mu guards hooks, subscribers, sessions and the redirect window.
	mu            sync.Mutex
	hookSeq       uint64
	beforeEach    hookList[*route.Guard]
	beforeResolve hookList[*route.Guard]
	afterEach     hookList[AfterHook]
	onError       hookList[ErrorHandler]
	subscribers   hookList[Subscriber]
	sessions      map[uint64]*Session
	redirects     int
	lastRedirect  time.Time

	// commitMu makes the Committing stage the single writer of current.
	commitMu sync.Mutex
	current  atomic.Pointer[route.Location]
	started  atomic.Bool

	ready     chan struct{}
	readyOnce sync.Once
	readyErr  error

	unlisten  func()
	destroyed atomic.Bool
}

// NewEngine creates an engine. Without WithHistory it navigates a Memory
// history.
func NewEngine(opts ...Option) (*Engine, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &Engine{
		cfg:      cfg,
		logger:   logger.With("component", "navigation"),
		sessions: make(map[uint64]*Session),
		ready:    make(chan struct{}),
	}

	e.matcher = router.NewMatcher(append([]router.Option{router.WithLogger(logger.With("component", "router"))}, cfg.matcherOpts...)...)
	e.guards = guard.NewExecutor(append([]guard.Option{guard.WithLogger(logger.With("component", "guard"))}, cfg.guardOpts...)...)

	e.history = cfg.history
	if e.history == nil {
		e.history = history.NewMemory(history.WithMemoryLogger(logger.With("component", "history")))
	}

	e.caches = cache.NewManager(append([]cache.ManagerOption{
		cache.WithInterval(cfg.monitorInterval),
		cache.WithLogger(logger.With("component", "cache")),
	}, cfg.cacheOpts...)...)
	if c := e.matcher.Cache(); c != nil {
		e.caches.Register("matcher", c)
	}
	if c := e.guards.Cache(); c != nil {
		e.caches.Register("guards", c)
	}

	if err := e.matcher.AddRoutes(cfg.routes...); err != nil {
		return nil, err
	}

	e.current.Store(route.Start())
	e.unlisten = e.history.Listen(e.handlePop)
	e.caches.Start()
	return e, nil
}

// Matcher returns the route matcher.
func (e *Engine) Matcher() *router.Matcher { return e.matcher }

// Guards returns the guard executor.
func (e *Engine) Guards() *guard.Executor { return e.guards }

// History returns the history backend.
func (e *Engine) History() history.History { return e.history }

// Caches returns the cache manager.
func (e *Engine) Caches() *cache.Manager { return e.caches }

// State returns the pipeline stage of the most recent step.
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) setState(s *Session, st State) {
	e.state.Store(int32(st))
	s.stage.Store(int32(st))
}

// Sessions returns how many navigations are in flight.
func (e *Engine) Sessions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// Registration

// AddRoute registers a top-level route. The returned func removes it.
func (e *Engine) AddRoute(r route.Route) (func(), error) {
	rec, err := e.matcher.AddRoute(r, nil)
	if err != nil {
		return nil, err
	}
	return func() { e.matcher.RemoveRecord(rec) }, nil
}

// AddChildRoute registers r below the route named parent.
func (e *Engine) AddChildRoute(parent string, r route.Route) (func(), error) {
	p, ok := e.matcher.GetRecord(parent)
	if !ok {
		return nil, fmt.Errorf("%w: %s", router.ErrUnknownParent, parent)
	}
	rec, err := e.matcher.AddRoute(r, p)
	if err != nil {
		return nil, err
	}
	return func() { e.matcher.RemoveRecord(rec) }, nil
}

// RemoveRoute removes the named route and its descendants.
func (e *Engine) RemoveRoute(name string) bool {
	return e.matcher.RemoveRoute(name)
}

// HasRoute reports whether a route named name exists.
func (e *Engine) HasRoute(name string) bool {
	return e.matcher.HasRoute(name)
}

// GetRoutes lists registered routes.
func (e *Engine) GetRoutes() []*route.Record {
	return e.matcher.GetRoutes()
}

// Resolve resolves raw against current, or against the current route when
// current is nil. It has no side effects.
func (e *Engine) Resolve(raw route.RawLocation, current *route.Location) (*route.Location, error) {
	if current == nil {
		current = e.CurrentRoute()
	}
	loc, err := e.matcher.Resolve(raw, current)
	if err != nil {
		return nil, err
	}
	loc.Href = e.history.CreateHref(loc.FullPath)
	return loc, nil
}

// Hooks

func (e *Engine) nextHookID() uint64 {
	e.hookSeq++
	return e.hookSeq
}

// BeforeEach registers a global guard run first on every navigation.
func (e *Engine) BeforeEach(g *route.Guard) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextHookID()
	e.beforeEach.add(id, g)
	return e.remover(func() { e.beforeEach.remove(id) })
}

// BeforeResolve registers a global guard run after route guards.
func (e *Engine) BeforeResolve(g *route.Guard) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextHookID()
	e.beforeResolve.add(id, g)
	return e.remover(func() { e.beforeResolve.remove(id) })
}

// AfterEach registers a hook run after every committed navigation.
func (e *Engine) AfterEach(fn AfterHook) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextHookID()
	e.afterEach.add(id, fn)
	return e.remover(func() { e.afterEach.remove(id) })
}

// OnError registers a handler for navigation failures.
func (e *Engine) OnError(fn ErrorHandler) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextHookID()
	e.onError.add(id, fn)
	return e.remover(func() { e.onError.remove(id) })
}

// Subscribe registers fn for current route changes.
func (e *Engine) Subscribe(fn func(to, from *route.Location)) func() {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextHookID()
	e.subscribers.add(id, fn)
	return e.remover(func() { e.subscribers.remove(id) })
}

func (e *Engine) remover(fn func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			fn()
		})
	}
}

// CurrentRoute returns the last committed location. Callers must not
// modify it.
func (e *Engine) CurrentRoute() *route.Location {
	return e.current.Load()
}

// Navigation API

// Push navigates to raw, adding a history entry unless raw.Replace is set.
// A nil error means the navigation committed; otherwise the error is a
// *Failure.
func (e *Engine) Push(ctx context.Context, raw route.RawLocation) error {
	typ := TypePush
	if raw.Replace {
		typ = TypeReplace
	}
	return e.navigate(ctx, raw, typ, nil)
}

// Replace navigates to raw, replacing the current history entry.
func (e *Engine) Replace(ctx context.Context, raw route.RawLocation) error {
	raw.Replace = true
	return e.navigate(ctx, raw, TypeReplace, nil)
}

// PushPath is Push for a location string.
func (e *Engine) PushPath(ctx context.Context, path string) error {
	return e.Push(ctx, route.ParsePath(path))
}

// ReplacePath is Replace for a location string.
func (e *Engine) ReplacePath(ctx context.Context, path string) error {
	return e.Replace(ctx, route.ParsePath(path))
}

// Go traverses history. The resulting navigation runs the guard pipeline
// like a push; if it does not commit the traversal is undone.
func (e *Engine) Go(delta int) {
	e.history.Go(delta, true)
}

// Back is Go(-1).
func (e *Engine) Back() { e.Go(-1) }

// Forward is Go(1).
func (e *Engine) Forward() { e.Go(1) }

// Start performs the initial navigation to the history's current location.
func (e *Engine) Start(ctx context.Context) error {
	raw := route.ParsePath(e.history.Location())
	raw.State = e.history.State()
	return e.navigate(ctx, raw, TypeReplace, nil)
}

// IsReady blocks until the first navigation settled. It returns that
// navigation's failure, if any.
func (e *Engine) IsReady(ctx context.Context) error {
	select {
	case <-e.ready:
		return e.readyErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) markReady(err error) {
	e.readyOnce.Do(func() {
		e.readyErr = err
		close(e.ready)
	})
}

// Destroy detaches from history, cancels in-flight navigations, stops the
// cache monitor and clears caches and hooks.
func (e *Engine) Destroy() {
	if e.destroyed.Swap(true) {
		return
	}
	e.seq.Add(1)
	e.mu.Lock()
	for _, s := range e.sessions {
		s.cancel()
	}
	e.mu.Unlock()
	if e.unlisten != nil {
		e.unlisten()
	}
	e.history.Destroy()
	e.caches.Close()
	e.guards.ClearCache()

	e.mu.Lock()
	e.beforeEach = hookList[*route.Guard]{}
	e.beforeResolve = hookList[*route.Guard]{}
	e.afterEach = hookList[AfterHook]{}
	e.onError = hookList[ErrorHandler]{}
	e.subscribers = hookList[Subscriber]{}
	e.mu.Unlock()

	e.markReady(&Failure{Kind: KindError, Cause: ErrDestroyed})
	e.logger.Debug("engine destroyed")
}

// Pipeline

// openSession registers a navigation and cancels the context of every
// navigation it supersedes.
func (e *Engine) openSession(id uint64, cancel context.CancelFunc) *Session {
	s := &Session{ID: id, Started: time.Now(), cancel: cancel}
	e.mu.Lock()
	for _, old := range e.sessions {
		old.cancel()
	}
	e.sessions[id] = s
	e.mu.Unlock()
	return s
}

func (e *Engine) closeSession(id uint64) {
	e.mu.Lock()
	delete(e.sessions, id)
	e.mu.Unlock()
}

func (e *Engine) stale(id uint64) bool {
	return e.seq.Load() != id
}

func (e *Engine) navigate(ctx context.Context, raw route.RawLocation, typ Type, pop *history.PopEvent) error {
	from := e.CurrentRoute()
	if e.destroyed.Load() {
		return &Failure{Kind: KindError, From: from, Cause: ErrDestroyed}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	id := e.seq.Add(1)
	session := e.openSession(id, cancel)
	defer e.closeSession(id)

	nav := &Navigation{
		ID:      id,
		Context: ctx,
		Type:    typ,
		Raw:     raw,
		From:    from,
		Started: session.Started,
		Session: session,
	}

	err := ComposeMiddleware(nav, e.cfg.middleware, func() error {
		return e.run(nav, pop)
	})

	e.setState(session, StateIdle)
	if err != nil {
		var f *Failure
		if !errors.As(err, &f) {
			f = &Failure{Kind: KindError, From: from, To: nav.To, Cause: err}
			err = f
		}
		e.reportFailure(f)
		if f.Kind != KindCancelled {
			e.markReady(f)
		}
		return err
	}
	e.markReady(nil)
	return nil
}

func (e *Engine) run(nav *Navigation, pop *history.PopEvent) error {
	ctx := nav.Context
	s := nav.Session
	from := nav.From
	raw := nav.Raw
	replace := nav.Type != TypePush
	var redirectedFrom *route.Location

	for {
		e.setState(s, StateResolving)
		to, err := e.matcher.Resolve(raw, from)
		if err != nil {
			return &Failure{Kind: KindError, From: from, Cause: err}
		}
		if redirectedFrom != nil {
			to.RedirectedFrom = redirectedFrom
		}

		e.setState(s, StateRedirectExpanding)
		to, err = e.expandRedirects(s, to, from)
		if err != nil {
			return err
		}
		if len(to.Matched) == 0 {
			e.logger.Warn("no route matched", "path", to.FullPath)
		}
		to.Href = e.history.CreateHref(to.FullPath)
		to.State = history.Sanitize(raw.State, 0)
		nav.To = to

		if e.stale(nav.ID) {
			return &Failure{Kind: KindCancelled, From: from, To: to}
		}
		if pop == nil && !raw.Force && e.started.Load() && to.SameAs(from) {
			return &Failure{Kind: KindDuplicated, From: from, To: to}
		}

		e.setState(s, StateGuardRunning)
		res, decider := e.runGuards(ctx, s, nav.ID, to, from)
		if e.stale(nav.ID) {
			return &Failure{Kind: KindCancelled, From: from, To: to}
		}

		switch res.Verdict {
		case route.VerdictAbort:
			e.logger.Info("navigation aborted by guard", "guard", guardName(decider), "to", to.FullPath)
			return &Failure{Kind: KindAborted, From: from, To: to}

		case route.VerdictError:
			if errors.Is(res.Err, context.Canceled) && e.stale(nav.ID) {
				return &Failure{Kind: KindCancelled, From: from, To: to}
			}
			return &Failure{Kind: KindGuardFailed, From: from, To: to, Cause: res.Err}

		case route.VerdictRedirect:
			if !e.noteGuardRedirect() || s.addRedirect() > e.cfg.maxRedirects {
				e.logger.Warn("redirect loop detected", "guard", guardName(decider), "to", to.FullPath)
				return &Failure{Kind: KindTooManyRedirects, From: from, To: to}
			}
			e.logger.Info("guard redirect", "guard", guardName(decider), "from", to.FullPath, "to", res.Target.String())
			raw = res.Target
			if raw.State == nil {
				raw.State = nav.Raw.State
			}
			replace = replace || raw.Replace
			if redirectedFrom == nil {
				redirectedFrom = to
			}
			// A redirected pop no longer matches the entry history moved to.
			if pop != nil {
				pop = nil
				replace = true
			}
			continue
		}

		return e.commit(nav, s, to, from, replace, pop != nil)
	}
}

// expandRedirects follows record redirects up to the configured depth.
func (e *Engine) expandRedirects(s *Session, to, from *route.Location) (*route.Location, error) {
	first := to.RedirectedFrom
	for leaf := to.Leaf(); leaf != nil && leaf.Redirect != nil; leaf = to.Leaf() {
		if s.addRedirect() > e.cfg.maxRedirects {
			return nil, &Failure{Kind: KindTooManyRedirects, From: from, To: to}
		}
		if first == nil {
			first = to
		}
		target := route.ExpandRedirect(leaf.Redirect, to)
		next, err := e.matcher.Resolve(target, to)
		if err != nil {
			return nil, &Failure{Kind: KindError, From: from, To: to, Cause: err}
		}
		e.logger.Debug("redirect", "from", to.FullPath, "to", next.FullPath)
		to = next
	}
	to.RedirectedFrom = first
	return to, nil
}

// noteGuardRedirect counts a guard redirect in the time window and reports
// whether it is still within bounds.
func (e *Engine) noteGuardRedirect() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.cfg.now()
	if now.Sub(e.lastRedirect) > e.cfg.redirectIdle {
		e.redirects = 0
	}
	e.redirects++
	e.lastRedirect = now
	return e.redirects <= e.cfg.redirectWindow
}

// runGuards runs global before guards, then the beforeEnter guards of
// entered records, root to leaf, then global resolve guards.
func (e *Engine) runGuards(ctx context.Context, s *Session, id uint64, to, from *route.Location) (route.Result, *route.Guard) {
	e.mu.Lock()
	before := e.beforeEach.snapshot()
	resolve := e.beforeResolve.snapshot()
	e.mu.Unlock()

	// Priority orders guards within a group only, so each entered record
	// gets its own group to keep the root to leaf order.
	groups := [][]*route.Guard{before}
	for _, rec := range to.Matched {
		if containsRecord(from.Matched, rec) {
			continue
		}
		groups = append(groups, rec.BeforeEnter)
	}
	groups = append(groups, resolve)

	for _, group := range groups {
		if len(group) == 0 {
			continue
		}
		out := e.guards.ExecuteGroup(ctx, group, to, from)
		s.record(out.Ran)
		if !out.Result.Proceeds() {
			return out.Result, out.Decider
		}
		if e.stale(id) {
			return route.Continue(), nil
		}
	}
	return route.Continue(), nil
}

func (e *Engine) commit(nav *Navigation, s *Session, to, from *route.Location, replace, popped bool) error {
	e.commitMu.Lock()
	e.setState(s, StateCommitting)
	if e.stale(nav.ID) {
		e.commitMu.Unlock()
		return &Failure{Kind: KindCancelled, From: from, To: to}
	}

	if !popped {
		var err error
		if replace || !e.started.Load() {
			err = e.history.Replace(to.FullPath, to.State)
		} else {
			err = e.history.Push(to.FullPath, to.State)
		}
		if err != nil {
			e.commitMu.Unlock()
			return &Failure{Kind: KindError, From: from, To: to, Cause: err}
		}
	}
	previous := e.current.Swap(to)
	e.started.Store(true)
	e.commitMu.Unlock()

	e.logger.Debug("navigation committed", "type", nav.Type, "to", to.FullPath, "from", previous.FullPath, "redirects", s.Redirects())

	e.mu.Lock()
	subs := e.subscribers.snapshot()
	after := e.afterEach.snapshot()
	e.mu.Unlock()

	for _, fn := range subs {
		e.safeCall("subscriber", to, previous, func() { fn(to, previous) })
	}
	for _, fn := range after {
		e.safeCall("after hook", to, previous, func() { fn(to, previous) })
	}
	return nil
}

// safeCall runs fn and forwards a panic to the error handlers.
func (e *Engine) safeCall(what string, to, from *route.Location, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("%s panicked: %v", what, p)
			e.logger.Error(what+" panicked", "panic", p, "stack", string(debug.Stack()))
			e.broadcast(err, to, from)
		}
	}()
	fn()
}

func (e *Engine) reportFailure(f *Failure) {
	level := slog.LevelInfo
	if f.Kind == KindGuardFailed || f.Kind == KindError || f.Kind == KindTooManyRedirects {
		level = slog.LevelWarn
	}
	e.logger.Log(context.Background(), level, "navigation failed", "kind", f.Kind, "to", fullPath(f.To), "error", f.Cause)
	e.broadcast(f, f.To, f.From)
}

// broadcast sends err to every error handler. A panicking handler does not
// stop the others.
func (e *Engine) broadcast(err error, to, from *route.Location) {
	e.mu.Lock()
	handlers := e.onError.snapshot()
	e.mu.Unlock()

	for _, h := range handlers {
		func() {
			defer func() {
				if p := recover(); p != nil {
					e.logger.Error("error handler panicked", "panic", p)
				}
			}()
			h(err, to, from)
		}()
	}
}

// handlePop runs the pipeline for a history traversal and undoes the
// traversal when the navigation does not commit.
func (e *Engine) handlePop(ev history.PopEvent) {
	raw := route.ParsePath(ev.To)
	raw.State = ev.State
	err := e.navigate(context.Background(), raw, TypePop, &ev)
	if err == nil || IsFailure(err, KindCancelled) {
		return
	}
	if ev.Delta != 0 && !e.destroyed.Load() {
		e.logger.Debug("reverting traversal", "delta", ev.Delta, "kind", err)
		e.history.Go(-ev.Delta, false)
	}
}

func containsRecord(recs []*route.Record, rec *route.Record) bool {
	for _, r := range recs {
		if r == rec {
			return true
		}
	}
	return false
}

func guardName(g *route.Guard) string {
	if g == nil {
		return ""
	}
	return g.Key()
}
