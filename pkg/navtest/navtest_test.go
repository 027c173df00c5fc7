package navtest_test

import (
	"context"
	"testing"

	"github.com/vango-dev/waypoint/pkg/navigation"
	"github.com/vango-dev/waypoint/pkg/navtest"
	"github.com/vango-dev/waypoint/pkg/route"
	"github.com/vango-dev/waypoint/pkg/statestore"
)

func routes() navtest.HarnessOption {
	return navtest.WithRoutes(
		route.Route{Path: "/", Name: "home"},
		route.Route{Path: "/a", Name: "a"},
		route.Route{Path: "/b", Name: "b"},
		route.Route{Path: "/login", Name: "login"},
		route.Route{Path: "/admin", Name: "admin"},
	)
}

func TestNew_StartsAtRoot(t *testing.T) {
	h := navtest.New(t, routes())

	h.ExpectPath("/")
	h.ExpectCalls("after:/")
	h.ExpectStack(0, "/")
}

func TestNew_WithoutStart(t *testing.T) {
	h := navtest.New(t, routes(), navtest.WithoutStart())

	if h.Engine.CurrentRoute().Name != "" {
		t.Errorf("unstarted engine has route %q", h.Engine.CurrentRoute().Name)
	}
	h.ExpectCalls()
}

func TestGuardsAreRecorded(t *testing.T) {
	h := navtest.New(t, routes())
	h.Engine.BeforeEach(h.Guard("first", route.Continue()))
	h.Engine.BeforeResolve(h.Guard("last", route.Continue()))
	h.Reset()

	h.ExpectCommit(h.Push("/a"))
	h.ExpectCalls("first", "last", "after:/a")
	h.ExpectStack(1, "/", "/a")
}

func TestGuardRedirect(t *testing.T) {
	h := navtest.New(t, routes())
	h.Engine.BeforeEach(h.GuardFunc("auth", func(_ context.Context, to, _ *route.Location) route.Result {
		if to.Name == "admin" {
			return route.RedirectToPath("/login")
		}
		return route.Continue()
	}))
	h.Reset()

	h.ExpectCommit(h.Push("/admin"))
	h.ExpectPath("/login")
	h.ExpectCalls("auth", "auth", "after:/login")
}

func TestFailuresAreRecorded(t *testing.T) {
	h := navtest.New(t, routes())
	h.Engine.BeforeEach(h.GuardFunc("block-b", func(_ context.Context, to, _ *route.Location) route.Result {
		if to.Path == "/b" {
			return route.Abort()
		}
		return route.Continue()
	}))
	h.Reset()

	h.ExpectFailure(h.Push("/b"), navigation.KindAborted)
	h.ExpectPath("/")
	h.ExpectCalls("block-b", "error:aborted")

	h.ExpectFailure(h.Replace("/"), navigation.KindDuplicated)
	h.ExpectCalls("error:duplicated")
}

func TestBackAndForward(t *testing.T) {
	h := navtest.New(t, routes())
	h.ExpectCommit(h.Push("/a"))
	h.ExpectCommit(h.Push("/b"))
	h.Reset()

	h.Back()
	h.ExpectPath("/a")
	h.ExpectStack(1, "/", "/a", "/b")

	h.Forward()
	h.ExpectPath("/b")
	h.ExpectCalls("after:/a", "after:/b")
}

func TestSimulateReload(t *testing.T) {
	store := statestore.NewMemoryStore()
	defer store.Close()

	h := navtest.New(t, routes())
	h.ExpectCommit(h.Push("/a"))
	h.ExpectCommit(h.Push("/b"))
	h.Back()

	h2, err := h.SimulateReload(store)
	if err != nil {
		t.Fatalf("SimulateReload: %v", err)
	}
	h2.ExpectPath("/a")
	h2.ExpectStack(1, "/", "/a", "/b")
	h2.ExpectCalls("after:/a")

	h2.Forward()
	h2.ExpectPath("/b")
}

func TestBindParams(t *testing.T) {
	h := navtest.New(t, routes(), navtest.WithRoutes(
		route.Route{Path: "/users/:id/files/*path", Name: "file"},
	))

	if err := h.Push("/users/42/files/docs/intro"); err != nil {
		t.Fatal(err)
	}
	var p struct {
		ID   int      `param:"id"`
		Path []string `param:"path"`
	}
	h.BindParams(&p)
	if p.ID != 42 || len(p.Path) != 2 || p.Path[1] != "intro" {
		t.Errorf("bound params = %+v", p)
	}
}
