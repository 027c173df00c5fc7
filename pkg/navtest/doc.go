// Package navtest provides testing helpers for code built on the
// navigation engine.
//
// The harness reduces boilerplate when testing guards, hooks and history
// handling: it starts an engine over a memory history and records, in
// order, every guard built through it, every after hook and every error
// handler call.
//
// # Quick Start
//
//	func TestLoginRedirect(t *testing.T) {
//	    h := navtest.New(t, navtest.WithRoutes(
//	        route.Route{Path: "/"},
//	        route.Route{Path: "/login"},
//	        route.Route{Path: "/admin"},
//	    ))
//	    h.Engine.BeforeEach(h.GuardFunc("auth", requireLogin))
//	    h.Reset()
//
//	    h.ExpectCommit(h.Push("/admin"))
//	    h.ExpectPath("/login")
//	    h.ExpectCalls("auth", "auth", "after:/login")
//	}
//
// # Recorded Calls
//
// Guards record their name, after hooks record "after:<full path>" and
// error handlers record "error:<failure kind>".
//
// # History Persistence
//
// SimulateReload round-trips the history through a statestore.Store and
// starts a fresh engine over it:
//
//	h2, err := h.SimulateReload(statestore.NewMemoryStore())
//	if err != nil {
//	    t.Fatal(err)
//	}
//	h2.ExpectStack(1, "/", "/a")
package navtest
