// Package route defines the value types shared by the waypoint matcher,
// guard executor and navigation engine.
//
// The package has no behaviour of its own beyond small helpers; it exists so
// that the router, guard and navigation packages can exchange locations,
// records and guards without importing each other.
//
// # Routes and records
//
// A Route is the declarative registration input:
//
//	route.Route{
//	    Path: "/users/:id",
//	    Name: "user",
//	    Component: UserPage,
//	    Params: map[string]string{"id": "int"},
//	    Children: []route.Route{
//	        {Path: "posts/:postId?", Name: "user-posts"},
//	    },
//	}
//
// The matcher turns each Route into a Record carrying the full path (the
// concatenation of the ancestors' paths) and its declared param keys.
//
// # Locations
//
// A RawLocation is what callers hand to Resolve/Push: a path, or a route
// name plus params. A Location is the resolved, normalized result with the
// matched records ordered root to leaf.
//
// # Guards
//
// Guards return a Result: Continue, Abort, RedirectTo or Fail. Callback-style
// guards are adapted with CallbackGuard so the pipeline only deals with one
// representation.
package route
