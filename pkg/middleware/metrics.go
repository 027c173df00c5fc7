package middleware

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/vango-dev/waypoint/pkg/cache"
	"github.com/vango-dev/waypoint/pkg/navigation"
	"github.com/vango-dev/waypoint/pkg/route"
)

// MetricsConfig configures the Prometheus metrics.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "waypoint").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for navigation duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "waypoint",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the navigation metrics.
type Metrics struct {
	navigationsTotal   *prometheus.CounterVec
	navigationDuration *prometheus.HistogramVec
	failuresTotal      *prometheus.CounterVec
	redirectsTotal     prometheus.Counter
	guardRuns          *prometheus.CounterVec
	inFlight           prometheus.Gauge
}

// NewMetrics registers the navigation metrics:
//
//   - waypoint_navigations_total{type,result}
//   - waypoint_navigation_duration_seconds{type}
//   - waypoint_navigation_failures_total{kind}
//   - waypoint_redirects_total
//   - waypoint_guard_runs_total{guard,verdict,cached}
//   - waypoint_navigations_in_flight
//
// Registering twice on the same registry panics, as with promauto.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		navigationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigations_total",
			Help:        "Total number of settled navigations",
			ConstLabels: config.ConstLabels,
		}, []string{"type", "result"}),

		navigationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigation_duration_seconds",
			Help:        "Navigation duration from request to settlement in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"type"}),

		failuresTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigation_failures_total",
			Help:        "Total number of navigations that did not commit, by failure kind",
			ConstLabels: config.ConstLabels,
		}, []string{"kind"}),

		redirectsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "redirects_total",
			Help:        "Total number of redirects followed",
			ConstLabels: config.ConstLabels,
		}),

		guardRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "guard_runs_total",
			Help:        "Total guard evaluations by guard, verdict and cache use",
			ConstLabels: config.ConstLabels,
		}, []string{"guard", "verdict", "cached"}),

		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "navigations_in_flight",
			Help:        "Number of navigations currently in the pipeline",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Middleware records every navigation passing through it.
func (m *Metrics) Middleware() navigation.Middleware {
	return navigation.MiddlewareFunc(func(nav *navigation.Navigation, next func() error) error {
		m.inFlight.Inc()
		start := time.Now()

		err := next()

		m.inFlight.Dec()
		typ := nav.Type.String()
		m.navigationDuration.WithLabelValues(typ).Observe(time.Since(start).Seconds())

		result := "committed"
		if err != nil {
			result = failureLabel(err)
			m.failuresTotal.WithLabelValues(result).Inc()
		}
		m.navigationsTotal.WithLabelValues(typ, result).Inc()

		if s := nav.Session; s != nil {
			m.redirectsTotal.Add(float64(s.Redirects()))
			for _, rec := range s.Results() {
				cached := "false"
				if rec.Cached {
					cached = "true"
				}
				m.guardRuns.WithLabelValues(rec.Guard, rec.Result.Verdict.String(), cached).Inc()
			}
		}
		return err
	})
}

// Prometheus creates metrics with opts and returns their middleware.
//
//	engine, _ := navigation.NewEngine(
//	    navigation.WithMiddleware(middleware.Prometheus(middleware.WithNamespace("myapp"))),
//	)
//	http.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) navigation.Middleware {
	return NewMetrics(opts...).Middleware()
}

// failureLabel maps an error to a low-cardinality label.
func failureLabel(err error) string {
	var f *navigation.Failure
	if errors.As(err, &f) {
		return f.Kind.String()
	}
	return "internal"
}

// RouteLabel names a location by its leaf pattern, for labels that must
// not grow with concrete paths.
func RouteLabel(loc *route.Location) string {
	leaf := loc.Leaf()
	if leaf == nil {
		return "unmatched"
	}
	if leaf.Name != "" {
		return leaf.Name
	}
	return leaf.Path
}

// StatsSource reports cache stats by cache name. *cache.Manager is one.
type StatsSource interface {
	Snapshot() map[string]cache.Stats
}

// CacheCollector exports the stats of every cache a StatsSource reports.
type CacheCollector struct {
	source StatsSource

	entries     *prometheus.Desc
	hits        *prometheus.Desc
	misses      *prometheus.Desc
	evictions   *prometheus.Desc
	expired     *prometheus.Desc
	tierEntries *prometheus.Desc
}

// NewCacheCollector creates a collector over source. Register it with
// prometheus.Registerer.MustRegister.
func NewCacheCollector(source StatsSource, opts ...MetricsOption) *CacheCollector {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	desc := func(n, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(config.Namespace, config.Subsystem, n),
			help, append([]string{"cache"}, labels...), config.ConstLabels)
	}
	return &CacheCollector{
		source:      source,
		entries:     desc("cache_entries", "Entries held by the cache"),
		hits:        desc("cache_hits_total", "Cache lookups that hit"),
		misses:      desc("cache_misses_total", "Cache lookups that missed"),
		evictions:   desc("cache_evictions_total", "Entries evicted for capacity"),
		expired:     desc("cache_expired_total", "Entries dropped as expired or idle"),
		tierEntries: desc("cache_tier_entries", "Entries per tier of a tiered cache", "tier"),
	}
}

// Describe implements prometheus.Collector.
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entries
	ch <- c.hits
	ch <- c.misses
	ch <- c.evictions
	ch <- c.expired
	ch <- c.tierEntries
}

// Collect implements prometheus.Collector.
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	for name, s := range c.source.Snapshot() {
		ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Entries), name)
		ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits), name)
		ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses), name)
		ch <- prometheus.MustNewConstMetric(c.evictions, prometheus.CounterValue, float64(s.Evictions), name)
		ch <- prometheus.MustNewConstMetric(c.expired, prometheus.CounterValue, float64(s.Expired), name)
		for tier, n := range s.TierEntries {
			ch <- prometheus.MustNewConstMetric(c.tierEntries, prometheus.GaugeValue, float64(n), name, tier)
		}
	}
}
