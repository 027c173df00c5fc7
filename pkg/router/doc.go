// Package router implements the route table and location resolution.
//
// The Matcher provides:
//   - A segment tree indexed by static segment for O(depth) matching
//   - Optional, repeatable, constrained and catch-all params
//   - Named routes, nested routes and aliases
//   - A tiered resolution cache invalidated on registration changes
//
// # Patterns
//
//	/users/:id              one segment
//	/users/:id(\d+)         one segment matching a regex
//	/users/:id/posts/:pid?  optional trailing segment
//	/tags/:tag+             one or more segments
//	/tags/:tag*             zero or more segments
//	/files/*path            the rest of the path, joined by "/"
//
// At each level static segments are tried first, then constrained params,
// plain params, optional params, repeatable params and finally catch-alls.
// Records ending at the same node are tried in registration order. A branch
// either matches as a whole or is abandoned.
//
// # Usage
//
//	m := router.NewMatcher()
//	m.AddRoute(route.Route{Path: "/users/:id", Name: "user"}, nil)
//
//	loc, err := m.Resolve(route.ParsePath("/users/42?tab=posts"), nil)
//	// loc.Params.Get("id") == "42", loc.Query.Get("tab") == "posts"
//
//	loc, err = m.Resolve(route.RawLocation{Name: "user", Params: route.Params{"id": {"7"}}}, nil)
//	// loc.Path == "/users/7"
package router
