package navigation

import (
	"log/slog"
	"time"

	"github.com/vango-dev/waypoint/pkg/cache"
	"github.com/vango-dev/waypoint/pkg/guard"
	"github.com/vango-dev/waypoint/pkg/history"
	"github.com/vango-dev/waypoint/pkg/route"
	"github.com/vango-dev/waypoint/pkg/router"
)

// Defaults used when no option overrides them.
const (
	DefaultMaxRedirects    = 10
	DefaultRedirectWindow  = 10
	DefaultRedirectIdle    = time.Second
	DefaultMonitorInterval = 30 * time.Second
)

type config struct {
	history         history.History
	logger          *slog.Logger
	matcherOpts     []router.Option
	guardOpts       []guard.Option
	maxRedirects    int
	redirectWindow  int
	redirectIdle    time.Duration
	monitorInterval time.Duration
	cacheOpts       []cache.ManagerOption
	middleware      []Middleware
	routes          []route.Route
	now             func() time.Time
}

func defaultConfig() config {
	return config{
		maxRedirects:    DefaultMaxRedirects,
		redirectWindow:  DefaultRedirectWindow,
		redirectIdle:    DefaultRedirectIdle,
		monitorInterval: DefaultMonitorInterval,
		now:             time.Now,
	}
}

// Option configures an Engine.
type Option func(*config)

// WithHistory sets the history backend. The default is a Memory history.
func WithHistory(h history.History) Option {
	return func(c *config) {
		c.history = h
	}
}

// WithLogger sets the logger for the engine and the components it creates.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// WithMatcherOptions configures the route matcher.
func WithMatcherOptions(opts ...router.Option) Option {
	return func(c *config) {
		c.matcherOpts = append(c.matcherOpts, opts...)
	}
}

// WithGuardOptions configures the guard executor.
func WithGuardOptions(opts ...guard.Option) Option {
	return func(c *config) {
		c.guardOpts = append(c.guardOpts, opts...)
	}
}

// WithMaxRedirects bounds the redirects one navigation may follow.
func WithMaxRedirects(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxRedirects = n
		}
	}
}

// WithRedirectWindow bounds guard redirects across navigations: more than
// max redirects without an idle gap of at least idle fail the navigation.
func WithRedirectWindow(max int, idle time.Duration) Option {
	return func(c *config) {
		if max > 0 {
			c.redirectWindow = max
		}
		if idle > 0 {
			c.redirectIdle = idle
		}
	}
}

// WithMonitorInterval sets how often the cache manager sweeps.
func WithMonitorInterval(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.monitorInterval = d
		}
	}
}

// WithCacheManagerOptions passes extra options to the cache manager.
func WithCacheManagerOptions(opts ...cache.ManagerOption) Option {
	return func(c *config) {
		c.cacheOpts = append(c.cacheOpts, opts...)
	}
}

// WithMiddleware appends navigation middleware.
func WithMiddleware(mw ...Middleware) Option {
	return func(c *config) {
		c.middleware = append(c.middleware, mw...)
	}
}

// WithRoutes registers top-level routes at construction.
func WithRoutes(routes ...route.Route) Option {
	return func(c *config) {
		c.routes = append(c.routes, routes...)
	}
}
