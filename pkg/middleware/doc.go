// Package middleware provides observability middleware for the navigation
// engine.
//
// This package includes:
//   - OpenTelemetry tracing of every navigation
//   - Prometheus metrics for navigations, guards and caches
//
// # OpenTelemetry Middleware
//
// The OpenTelemetry middleware opens one span per navigation. Spans carry
// the navigation type, the requested target, the resolved route and the
// redirect count, plus one event per guard evaluation.
//
//	engine, _ := navigation.NewEngine(
//	    navigation.WithMiddleware(middleware.OpenTelemetry()),
//	)
//
// Configure with options:
//
//	middleware.OpenTelemetry(
//	    middleware.WithTracerName("my-app"),
//	    middleware.WithNavigationFilter(func(nav *navigation.Navigation) bool {
//	        return nav.Type != navigation.TypePop
//	    }),
//	)
//
// # Prometheus Metrics
//
// The Prometheus middleware collects:
//   - waypoint_navigations_total: settled navigations by type and result
//   - waypoint_navigation_duration_seconds: navigation duration histogram
//   - waypoint_navigation_failures_total: failures by kind
//   - waypoint_redirects_total: redirects followed
//   - waypoint_guard_runs_total: guard evaluations by guard and verdict
//   - waypoint_navigations_in_flight: navigations in the pipeline
//
// CacheCollector exports the matcher and guard caches:
//
//	prometheus.MustRegister(middleware.NewCacheCollector(engine.Caches()))
//	http.Handle("/metrics", promhttp.Handler())
//
// # Context Propagation
//
// The tracing middleware replaces the navigation context with the span
// context before the pipeline runs, so guards inherit the trace:
//
//	loader := route.NewGuard(func(ctx context.Context, to, from *route.Location) route.Result {
//	    req, _ := http.NewRequestWithContext(ctx, "GET", url, nil)
//	    ...
//	    return route.Continue()
//	}, route.WithGuardName("loader"))
package middleware
