// Package navigation is the navigation engine.
//
// An Engine turns a navigation request into a committed location in four
// stages: resolve the target through the route matcher, expand record
// redirects, run guards (global before guards, the beforeEnter guards of
// routes being entered, then global resolve guards) and commit to history.
// Every request gets a Session; a newer request supersedes older ones,
// which then settle with KindCancelled.
//
// Navigations that do not commit return a *Failure. The same failure is
// delivered to every OnError handler.
//
//	e, err := navigation.NewEngine(navigation.WithRoutes(routes...))
//	if err != nil {
//		return err
//	}
//	defer e.Destroy()
//	if err := e.Start(ctx); err != nil {
//		return err
//	}
//	err = e.PushPath(ctx, "/users/42")
//	if navigation.IsFailure(err, navigation.KindAborted) {
//		// a guard said no
//	}
package navigation
