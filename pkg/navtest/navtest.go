package navtest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/vango-dev/waypoint/pkg/history"
	"github.com/vango-dev/waypoint/pkg/navigation"
	"github.com/vango-dev/waypoint/pkg/route"
	"github.com/vango-dev/waypoint/pkg/statestore"
)

// Harness is a started engine over a memory history that records guard
// calls, after hooks and error handler calls in order.
type Harness struct {
	T       testing.TB
	Engine  *navigation.Engine
	History *history.Memory

	config HarnessConfig

	mu    sync.Mutex
	calls []string
}

// HarnessConfig configures a Harness.
type HarnessConfig struct {
	// Routes is the initial route table.
	Routes []route.Route

	// History replaces the default memory history.
	History *history.Memory

	// Options are passed to navigation.NewEngine after the harness's own.
	Options []navigation.Option

	// Logger defaults to a discarding logger.
	Logger *slog.Logger

	// NoStart skips the initial navigation.
	NoStart bool
}

// HarnessOption configures a Harness.
type HarnessOption func(*HarnessConfig)

// WithRoutes adds routes to the table.
func WithRoutes(routes ...route.Route) HarnessOption {
	return func(c *HarnessConfig) {
		c.Routes = append(c.Routes, routes...)
	}
}

// WithHistory runs the engine over mem, e.g. one restored from a store.
func WithHistory(mem *history.Memory) HarnessOption {
	return func(c *HarnessConfig) {
		c.History = mem
	}
}

// WithEngineOptions passes options to the engine.
func WithEngineOptions(opts ...navigation.Option) HarnessOption {
	return func(c *HarnessConfig) {
		c.Options = append(c.Options, opts...)
	}
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) HarnessOption {
	return func(c *HarnessConfig) {
		c.Logger = l
	}
}

// WithoutStart leaves the engine unstarted.
func WithoutStart() HarnessOption {
	return func(c *HarnessConfig) {
		c.NoStart = true
	}
}

// New builds and starts a harness. The engine is destroyed when the test
// ends.
//
// Example:
//
//	h := navtest.New(t, navtest.WithRoutes(route.Route{Path: "/a"}))
//	h.Engine.BeforeEach(h.Guard("auth", route.Continue()))
//	h.ExpectCommit(h.Push("/a"))
//	h.ExpectCalls("auth", "after:/a")
func New(t testing.TB, opts ...HarnessOption) *Harness {
	t.Helper()
	config := HarnessConfig{}
	for _, opt := range opts {
		opt(&config)
	}
	if config.History == nil {
		config.History = history.NewMemory()
	}
	if config.Logger == nil {
		config.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	engineOpts := append([]navigation.Option{
		navigation.WithHistory(config.History),
		navigation.WithLogger(config.Logger),
		navigation.WithRoutes(config.Routes...),
	}, config.Options...)
	e, err := navigation.NewEngine(engineOpts...)
	if err != nil {
		t.Fatalf("navtest: new engine: %v", err)
	}
	t.Cleanup(e.Destroy)

	h := &Harness{T: t, Engine: e, History: config.History, config: config}
	e.AfterEach(func(to, _ *route.Location) {
		h.record("after:" + to.FullPath)
	})
	e.OnError(func(err error, _, _ *route.Location) {
		h.record("error:" + failureKind(err))
	})

	if !config.NoStart {
		if err := e.Start(context.Background()); err != nil {
			t.Fatalf("navtest: start: %v", err)
		}
	}
	return h
}

func failureKind(err error) string {
	var f *navigation.Failure
	if errors.As(err, &f) {
		return f.Kind.String()
	}
	return "panic"
}

func (h *Harness) record(call string) {
	h.mu.Lock()
	h.calls = append(h.calls, call)
	h.mu.Unlock()
}

// Guard returns a named guard that records its name and returns result.
func (h *Harness) Guard(name string, result route.Result, opts ...route.GuardOption) *route.Guard {
	return h.GuardFunc(name, func(context.Context, *route.Location, *route.Location) route.Result {
		return result
	}, opts...)
}

// GuardFunc returns a named guard that records its name and delegates to fn.
func (h *Harness) GuardFunc(name string, fn route.GuardFunc, opts ...route.GuardOption) *route.Guard {
	opts = append([]route.GuardOption{route.WithGuardName(name)}, opts...)
	return route.NewGuard(func(ctx context.Context, to, from *route.Location) route.Result {
		h.record(name)
		return fn(ctx, to, from)
	}, opts...)
}

// Calls returns the recorded calls.
func (h *Harness) Calls() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

// Reset clears the recorded calls.
func (h *Harness) Reset() {
	h.mu.Lock()
	h.calls = nil
	h.mu.Unlock()
}

// Push navigates to path.
func (h *Harness) Push(path string) error {
	return h.Engine.PushPath(context.Background(), path)
}

// Replace navigates to path, replacing the current entry.
func (h *Harness) Replace(path string) error {
	return h.Engine.ReplacePath(context.Background(), path)
}

// Back traverses one entry back. Memory history notifies synchronously, so
// the pop navigation has settled when Back returns.
func (h *Harness) Back() {
	h.Engine.Back()
}

// Forward traverses one entry forward.
func (h *Harness) Forward() {
	h.Engine.Forward()
}

// ExpectCommit fails the test if err is not nil.
func (h *Harness) ExpectCommit(err error) {
	h.T.Helper()
	if err != nil {
		h.T.Fatalf("expected navigation to commit, got %v", err)
	}
}

// ExpectFailure fails the test unless err is a navigation failure of kind.
func (h *Harness) ExpectFailure(err error, kind navigation.FailureKind) {
	h.T.Helper()
	if !navigation.IsFailure(err, kind) {
		h.T.Errorf("expected %s failure, got %v", kind, err)
	}
}

// ExpectPath asserts the current route's full path.
func (h *Harness) ExpectPath(fullPath string) {
	h.T.Helper()
	if got := h.Engine.CurrentRoute().FullPath; got != fullPath {
		h.T.Errorf("current route = %q, want %q", got, fullPath)
	}
}

// BindParams binds the current route's params into target, failing the
// test if a param does not fit its field.
func (h *Harness) BindParams(target any) {
	h.T.Helper()
	if err := h.Engine.CurrentRoute().Params.Bind(target); err != nil {
		h.T.Fatalf("bind params: %v", err)
	}
}

// ExpectCalls asserts the recorded calls and clears them.
func (h *Harness) ExpectCalls(want ...string) {
	h.T.Helper()
	got := h.Calls()
	if len(want) == 0 {
		want = nil
	}
	if diff := cmp.Diff(want, got); diff != "" {
		h.T.Errorf("calls mismatch (-want +got):\n%s", diff)
	}
	h.Reset()
}

// ExpectStack asserts the history stack locations and the cursor.
func (h *Harness) ExpectStack(position int, locations ...string) {
	h.T.Helper()
	snap := h.History.Snapshot()
	got := make([]string, len(snap.Entries))
	for i, e := range snap.Entries {
		got[i] = e.Location
	}
	if diff := cmp.Diff(locations, got); diff != "" {
		h.T.Errorf("history stack mismatch (-want +got):\n%s", diff)
	}
	if snap.Position != position {
		h.T.Errorf("history position = %d, want %d", snap.Position, position)
	}
}

// ErrNotSaved is returned by SimulateReload when the store returned nothing.
var ErrNotSaved = errors.New("navtest: history not found in store")

// SimulateReload saves the history to store and starts a new harness,
// with the same routes and options, over a history restored from it. This
// is what a page reload with persisted history looks like.
func (h *Harness) SimulateReload(store statestore.Store) (*Harness, error) {
	h.T.Helper()
	ctx := context.Background()
	id := statestore.NewID()

	if err := statestore.NewPersister(store, h.History, statestore.WithID(id)).Save(ctx); err != nil {
		return nil, err
	}
	h.Engine.Destroy()

	mem := history.NewMemory()
	ok, err := statestore.NewPersister(store, mem, statestore.WithID(id)).Restore(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotSaved
	}

	config := h.config
	return New(h.T, func(c *HarnessConfig) {
		*c = config
		c.History = mem
	}), nil
}
