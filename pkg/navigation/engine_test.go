package navigation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/vango-dev/waypoint/pkg/guard"
	"github.com/vango-dev/waypoint/pkg/history"
	"github.com/vango-dev/waypoint/pkg/route"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRoutes() []route.Route {
	return []route.Route{
		{Path: "/", Name: "home"},
		{Path: "/a", Name: "a"},
		{Path: "/b", Name: "b"},
		{Path: "/users/:id", Name: "user"},
		{Path: "/old", Redirect: route.RedirectPath("/new")},
		{Path: "/new", Name: "new"},
		{Path: "/loop1", Redirect: route.RedirectPath("/loop2")},
		{Path: "/loop2", Redirect: route.RedirectPath("/loop1")},
		{Path: "/login", Name: "login"},
		{Path: "/private", Name: "private"},
	}
}

func newEngine(t *testing.T, opts ...Option) (*Engine, *history.Memory) {
	t.Helper()
	mem := history.NewMemory()
	opts = append([]Option{
		WithHistory(mem),
		WithLogger(quietLogger()),
		WithRoutes(testRoutes()...),
	}, opts...)
	e, err := NewEngine(opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(e.Destroy)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return e, mem
}

// trace records the order in which guards and hooks run.
type trace struct {
	mu    sync.Mutex
	calls []string
}

func (tr *trace) add(s string) {
	tr.mu.Lock()
	tr.calls = append(tr.calls, s)
	tr.mu.Unlock()
}

func (tr *trace) all() []string {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]string(nil), tr.calls...)
}

func (tr *trace) guard(name string, r route.Result) *route.Guard {
	return route.NewGuard(func(context.Context, *route.Location, *route.Location) route.Result {
		tr.add(name)
		return r
	}, route.WithGuardName(name))
}

func failureKind(err error) FailureKind {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind
	}
	return 0
}

func TestStartCommitsInitialLocation(t *testing.T) {
	e, mem := newEngine(t)
	ctx := context.Background()

	if err := e.IsReady(ctx); err != nil {
		t.Fatalf("IsReady: %v", err)
	}
	cur := e.CurrentRoute()
	if cur.Name != "home" || cur.Path != "/" {
		t.Errorf("current = %q (%s), want home", cur.Path, cur.Name)
	}
	if mem.Len() != 1 {
		t.Errorf("history len = %d, want 1 after initial replace", mem.Len())
	}
	if e.State() != StateIdle {
		t.Errorf("state = %v, want idle", e.State())
	}
}

func TestIsReadyWaits(t *testing.T) {
	e, err := NewEngine(WithLogger(quietLogger()), WithRoutes(testRoutes()...))
	if err != nil {
		t.Fatal(err)
	}
	defer e.Destroy()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := e.IsReady(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("IsReady before start = %v, want deadline exceeded", err)
	}

	done := make(chan error, 1)
	go func() { done <- e.IsReady(context.Background()) }()
	if err := e.PushPath(context.Background(), "/a"); err != nil {
		t.Fatalf("push: %v", err)
	}
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("IsReady = %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("IsReady did not return after the first navigation")
	}
}

func TestGuardOrder(t *testing.T) {
	tr := &trace{}
	admin := route.Route{
		Path:        "/admin",
		Name:        "admin",
		BeforeEnter: []*route.Guard{tr.guard("G2", route.Continue())},
	}
	e, _ := newEngine(t, WithRoutes(admin))
	e.BeforeEach(tr.guard("G1", route.Continue()))
	e.BeforeResolve(tr.guard("G3", route.Continue()))

	if err := e.PushPath(context.Background(), "/admin"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if diff := cmp.Diff([]string{"G1", "G2", "G3"}, tr.all()); diff != "" {
		t.Errorf("guard order mismatch (-want +got):\n%s", diff)
	}
}

func TestBeforeEnterOnlyWhenEntering(t *testing.T) {
	tr := &trace{}
	section := route.Route{
		Path:        "/section",
		Name:        "section",
		BeforeEnter: []*route.Guard{tr.guard("enter", route.Continue())},
		Children: []route.Route{
			{Path: "one", Name: "one"},
			{Path: "two", Name: "two"},
		},
	}
	e, _ := newEngine(t, WithRoutes(section))
	ctx := context.Background()

	if err := e.PushPath(ctx, "/section/one"); err != nil {
		t.Fatal(err)
	}
	if err := e.PushPath(ctx, "/section/two"); err != nil {
		t.Fatal(err)
	}
	if got := len(tr.all()); got != 1 {
		t.Errorf("beforeEnter ran %d times, want 1", got)
	}
}

func TestBeforeEnterRootToLeaf(t *testing.T) {
	tr := &trace{}
	leaf := func(r route.Result) *route.Guard {
		return route.NewGuard(func(context.Context, *route.Location, *route.Location) route.Result {
			tr.add("leaf")
			return r
		}, route.WithGuardName("leaf"), route.WithPriority(5))
	}

	tests := []struct {
		name string
		root route.Result
		want []string
	}{
		{"continue", route.Continue(), []string{"root", "leaf"}},
		{"root aborts", route.Abort(), []string{"root"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr.calls = nil
			parent := route.Route{
				Path:        "/p",
				Name:        "p",
				BeforeEnter: []*route.Guard{tr.guard("root", tt.root)},
				Children: []route.Route{
					{Path: "c", Name: "c", BeforeEnter: []*route.Guard{leaf(route.Continue())}},
				},
			}
			e, _ := newEngine(t, WithRoutes(parent))

			e.PushPath(context.Background(), "/p/c")
			if diff := cmp.Diff(tt.want, tr.all()); diff != "" {
				t.Errorf("guard order mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAbortShortCircuits(t *testing.T) {
	tr := &trace{}
	e, mem := newEngine(t)
	e.BeforeEach(tr.guard("G1", route.Abort()))
	e.BeforeResolve(tr.guard("G2", route.Continue()))

	var reported []error
	e.OnError(func(err error, to, from *route.Location) {
		reported = append(reported, err)
	})

	err := e.PushPath(context.Background(), "/a")
	if failureKind(err) != KindAborted {
		t.Fatalf("err = %v, want aborted", err)
	}
	if diff := cmp.Diff([]string{"G1"}, tr.all()); diff != "" {
		t.Errorf("guards run (-want +got):\n%s", diff)
	}
	if e.CurrentRoute().Path != "/" {
		t.Errorf("current = %q, want unchanged", e.CurrentRoute().Path)
	}
	if mem.Len() != 1 {
		t.Errorf("history len = %d, want 1", mem.Len())
	}
	if len(reported) != 1 || failureKind(reported[0]) != KindAborted {
		t.Errorf("OnError got %v", reported)
	}
}

func TestGuardFailure(t *testing.T) {
	errBoom := errors.New("boom")
	e, _ := newEngine(t)
	e.BeforeEach(route.NewGuard(func(_ context.Context, to, _ *route.Location) route.Result {
		if to.Path == "/a" {
			return route.Fail(errBoom)
		}
		return route.Continue()
	}))

	err := e.PushPath(context.Background(), "/a")
	if failureKind(err) != KindGuardFailed {
		t.Fatalf("err = %v, want guard failed", err)
	}
	if !errors.Is(err, errBoom) {
		t.Errorf("errors.Is(err, errBoom) = false for %v", err)
	}
}

func TestGuardTimeout(t *testing.T) {
	e, _ := newEngine(t, WithGuardOptions(guard.WithTimeout(20*time.Millisecond)))
	e.BeforeEach(route.NewGuard(func(ctx context.Context, _, _ *route.Location) route.Result {
		<-ctx.Done()
		return route.Continue()
	}))

	err := e.PushPath(context.Background(), "/a")
	if failureKind(err) != KindGuardFailed || !errors.Is(err, guard.ErrTimeout) {
		t.Fatalf("err = %v, want guard timeout", err)
	}
}

func TestDuplicateNavigation(t *testing.T) {
	e, mem := newEngine(t)
	ctx := context.Background()

	if err := e.PushPath(ctx, "/a?x=1"); err != nil {
		t.Fatal(err)
	}
	before := mem.Len()

	err := e.PushPath(ctx, "/a?x=1")
	if failureKind(err) != KindDuplicated {
		t.Fatalf("err = %v, want duplicated", err)
	}
	if mem.Len() != before {
		t.Errorf("history len = %d, want %d", mem.Len(), before)
	}

	if err := e.Push(ctx, route.RawLocation{Path: "/a", Query: route.Query{"x": {"1"}}, Force: true}); err != nil {
		t.Errorf("forced push: %v", err)
	}
	if err := e.PushPath(ctx, "/a?x=2"); err != nil {
		t.Errorf("different query: %v", err)
	}
}

func TestStaticRedirect(t *testing.T) {
	e, _ := newEngine(t)

	if err := e.PushPath(context.Background(), "/old"); err != nil {
		t.Fatalf("push: %v", err)
	}
	cur := e.CurrentRoute()
	if cur.Path != "/new" {
		t.Errorf("path = %q, want /new", cur.Path)
	}
	if cur.RedirectedFrom == nil || cur.RedirectedFrom.Path != "/old" {
		t.Errorf("RedirectedFrom = %+v, want /old", cur.RedirectedFrom)
	}
}

func TestStaticRedirectLoop(t *testing.T) {
	e, _ := newEngine(t, WithMaxRedirects(5))

	err := e.PushPath(context.Background(), "/loop1")
	if failureKind(err) != KindTooManyRedirects {
		t.Fatalf("err = %v, want too many redirects", err)
	}
	if e.CurrentRoute().Path != "/" {
		t.Errorf("current = %q, want unchanged", e.CurrentRoute().Path)
	}
}

func TestGuardRedirect(t *testing.T) {
	e, _ := newEngine(t)
	e.BeforeEach(route.NewGuard(func(_ context.Context, to, _ *route.Location) route.Result {
		if to.Path == "/private" {
			return route.RedirectToPath("/login")
		}
		return route.Continue()
	}))

	if err := e.PushPath(context.Background(), "/private"); err != nil {
		t.Fatalf("push: %v", err)
	}
	cur := e.CurrentRoute()
	if cur.Name != "login" {
		t.Errorf("current = %q, want login", cur.Name)
	}
	if cur.RedirectedFrom == nil || cur.RedirectedFrom.Path != "/private" {
		t.Errorf("RedirectedFrom = %+v, want /private", cur.RedirectedFrom)
	}
}

func TestGuardRedirectLoop(t *testing.T) {
	e, _ := newEngine(t)
	e.BeforeEach(route.NewGuard(func(_ context.Context, to, _ *route.Location) route.Result {
		switch to.Path {
		case "/a":
			return route.RedirectToPath("/b")
		case "/b":
			return route.RedirectToPath("/a")
		}
		return route.Continue()
	}))

	err := e.PushPath(context.Background(), "/a")
	if failureKind(err) != KindTooManyRedirects {
		t.Fatalf("err = %v, want too many redirects", err)
	}
}

func TestRedirectWindow(t *testing.T) {
	e, _ := newEngine(t, WithRedirectWindow(2, time.Second))
	now := time.Unix(1000, 0)
	e.cfg.now = func() time.Time { return now }
	e.BeforeEach(route.NewGuard(func(_ context.Context, to, _ *route.Location) route.Result {
		if to.Path == "/private" {
			return route.RedirectToPath("/login")
		}
		return route.Continue()
	}))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := e.PushPath(ctx, "/private"); err != nil {
			t.Fatalf("redirect %d: %v", i, err)
		}
		if err := e.PushPath(ctx, "/a"); err != nil {
			t.Fatal(err)
		}
	}
	if err := e.PushPath(ctx, "/private"); failureKind(err) != KindTooManyRedirects {
		t.Fatalf("third redirect in window: err = %v", err)
	}

	now = now.Add(2 * time.Second)
	if err := e.PushPath(ctx, "/private"); err != nil {
		t.Errorf("after idle gap: %v", err)
	}
}

func TestSupersededNavigationIsCancelled(t *testing.T) {
	entered := make(chan struct{})
	e, _ := newEngine(t)
	e.BeforeEach(route.NewGuard(func(ctx context.Context, to, _ *route.Location) route.Result {
		if to.Path != "/b" {
			return route.Continue()
		}
		close(entered)
		<-ctx.Done()
		return route.Fail(ctx.Err())
	}))

	slow := make(chan error, 1)
	go func() { slow <- e.PushPath(context.Background(), "/b") }()
	<-entered

	if err := e.PushPath(context.Background(), "/a"); err != nil {
		t.Fatalf("newer push: %v", err)
	}

	select {
	case err := <-slow:
		if failureKind(err) != KindCancelled {
			t.Errorf("superseded push err = %v, want cancelled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("superseded navigation did not settle")
	}
	if e.CurrentRoute().Path != "/a" {
		t.Errorf("current = %q, want /a", e.CurrentRoute().Path)
	}
	if e.Sessions() != 0 {
		t.Errorf("sessions = %d after settling", e.Sessions())
	}
}

func TestAfterHookPanicIsolated(t *testing.T) {
	e, mem := newEngine(t)

	var reported []error
	e.OnError(func(err error, _, _ *route.Location) {
		reported = append(reported, err)
	})

	// Each hook records its position and what history held when it ran.
	var hooks []string
	e.AfterEach(func(to, from *route.Location) {
		hooks = append(hooks, "first "+mem.Location())
		panic("boom")
	})
	e.AfterEach(func(to, from *route.Location) {
		hooks = append(hooks, "second "+mem.Location())
	})
	e.AfterEach(func(to, from *route.Location) {
		hooks = append(hooks, "third "+mem.Location())
	})

	if err := e.PushPath(context.Background(), "/a"); err != nil {
		t.Fatalf("push: %v", err)
	}
	want := []string{"first /a", "second /a", "third /a"}
	if diff := cmp.Diff(want, hooks); diff != "" {
		t.Errorf("after hooks (-want +got):\n%s", diff)
	}
	if len(reported) != 1 {
		t.Errorf("OnError calls = %d, want 1", len(reported))
	}
	if e.CurrentRoute().Path != "/a" {
		t.Errorf("current = %q", e.CurrentRoute().Path)
	}
}

func TestSubscribe(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	var got [][2]string
	unsubscribe := e.Subscribe(func(to, from *route.Location) {
		got = append(got, [2]string{from.Path, to.Path})
	})

	e.PushPath(ctx, "/a")
	e.PushPath(ctx, "/b")
	unsubscribe()
	e.PushPath(ctx, "/a")

	want := [][2]string{{"/", "/a"}, {"/a", "/b"}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("notifications (-want +got):\n%s", diff)
	}
}

func TestPopCommitsAndReverts(t *testing.T) {
	e, mem := newEngine(t)
	ctx := context.Background()
	e.PushPath(ctx, "/a")
	e.PushPath(ctx, "/b")

	e.Back()
	if e.CurrentRoute().Path != "/a" || mem.Location() != "/a" {
		t.Fatalf("after back current = %q history = %q", e.CurrentRoute().Path, mem.Location())
	}
	if mem.Len() != 3 {
		t.Errorf("pop must not add entries, len = %d", mem.Len())
	}

	block := e.BeforeEach(route.NewGuard(func(_ context.Context, to, _ *route.Location) route.Result {
		if to.Path == "/b" {
			return route.Abort()
		}
		return route.Continue()
	}))
	defer block()

	e.Forward()
	if e.CurrentRoute().Path != "/a" {
		t.Errorf("current = %q, want /a after blocked pop", e.CurrentRoute().Path)
	}
	if mem.Location() != "/a" {
		t.Errorf("history location = %q, want traversal undone", mem.Location())
	}
}

func TestNamedNavigation(t *testing.T) {
	e, _ := newEngine(t)

	err := e.Push(context.Background(), route.RawLocation{Name: "user", Params: route.Params{"id": {"42"}}})
	if err != nil {
		t.Fatal(err)
	}
	cur := e.CurrentRoute()
	if cur.Path != "/users/42" || cur.Params.Get("id") != "42" {
		t.Errorf("current = %q params = %v", cur.Path, cur.Params)
	}

	err = e.Push(context.Background(), route.RawLocation{Name: "missing"})
	if failureKind(err) != KindError {
		t.Errorf("unknown name err = %v, want error failure", err)
	}
}

func TestReplaceKeepsHistoryLength(t *testing.T) {
	e, mem := newEngine(t)
	ctx := context.Background()
	e.PushPath(ctx, "/a")
	n := mem.Len()

	if err := e.ReplacePath(ctx, "/b"); err != nil {
		t.Fatal(err)
	}
	if mem.Len() != n || mem.Location() != "/b" {
		t.Errorf("len = %d location = %q", mem.Len(), mem.Location())
	}
}

func TestStateIsSanitized(t *testing.T) {
	e, mem := newEngine(t)
	raw := route.ParsePath("/a")
	raw.State = map[string]any{"n": 1, "fn": func() {}}

	if err := e.Push(context.Background(), raw); err != nil {
		t.Fatal(err)
	}
	want := map[string]any{"n": int64(1)}
	if diff := cmp.Diff(want, e.CurrentRoute().State); diff != "" {
		t.Errorf("location state (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, mem.State()); diff != "" {
		t.Errorf("history state (-want +got):\n%s", diff)
	}
}

func TestAddAndRemoveRoute(t *testing.T) {
	e, _ := newEngine(t)
	ctx := context.Background()

	remove, err := e.AddRoute(route.Route{Path: "/extra", Name: "extra"})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.AddChildRoute("extra", route.Route{Path: "child", Name: "extra-child"}); err != nil {
		t.Fatal(err)
	}
	if err := e.PushPath(ctx, "/extra/child"); err != nil {
		t.Fatal(err)
	}
	if e.CurrentRoute().Name != "extra-child" {
		t.Errorf("name = %q", e.CurrentRoute().Name)
	}

	remove()
	if e.HasRoute("extra") || e.HasRoute("extra-child") {
		t.Error("route still registered after removal")
	}
	loc, err := e.Resolve(route.ParsePath("/extra"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(loc.Matched) != 0 {
		t.Errorf("removed route still matches: %d records", len(loc.Matched))
	}

	if _, err := e.AddChildRoute("nope", route.Route{Path: "x"}); err == nil {
		t.Error("expected unknown parent error")
	}
}

func TestMiddleware(t *testing.T) {
	tr := &trace{}
	mw := MiddlewareFunc(func(nav *Navigation, next func() error) error {
		tr.add("before:" + nav.Type.String())
		err := next()
		if nav.To != nil {
			tr.add("after:" + nav.To.Path)
		}
		return err
	})
	e, _ := newEngine(t, WithMiddleware(mw))

	if err := e.PushPath(context.Background(), "/a"); err != nil {
		t.Fatal(err)
	}
	want := []string{"before:replace", "after:/", "before:push", "after:/a"}
	if diff := cmp.Diff(want, tr.all()); diff != "" {
		t.Errorf("middleware trace (-want +got):\n%s", diff)
	}
}

func TestDestroy(t *testing.T) {
	e, _ := newEngine(t)
	e.Destroy()

	err := e.PushPath(context.Background(), "/a")
	if failureKind(err) != KindError || !errors.Is(err, ErrDestroyed) {
		t.Fatalf("push after destroy = %v", err)
	}
	e.Destroy()
}
