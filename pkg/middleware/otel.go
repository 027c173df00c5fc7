package middleware

import (
	"context"
	"fmt"

	"github.com/vango-dev/waypoint/pkg/navigation"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultTracerName = "waypoint"

// OTelConfig configures the OpenTelemetry middleware.
type OTelConfig struct {
	// TracerName is the name of the tracer (default: "waypoint").
	TracerName string

	// TracerProvider overrides the global provider.
	TracerProvider trace.TracerProvider

	// IncludeGuards adds one span event per guard evaluation.
	// Enabled by default.
	IncludeGuards bool

	// Filter determines which navigations to trace. Nil traces all.
	Filter func(nav *navigation.Navigation) bool

	// AttributeExtractor adds custom attributes once the navigation
	// settled.
	AttributeExtractor func(nav *navigation.Navigation) []attribute.KeyValue

	tracer trace.Tracer
}

// OTelOption configures the OpenTelemetry middleware.
type OTelOption func(*OTelConfig)

// WithTracerName sets the tracer name.
func WithTracerName(name string) OTelOption {
	return func(c *OTelConfig) {
		c.TracerName = name
	}
}

// WithTracerProvider sets the tracer provider.
func WithTracerProvider(tp trace.TracerProvider) OTelOption {
	return func(c *OTelConfig) {
		c.TracerProvider = tp
	}
}

// WithIncludeGuards enables/disables guard span events.
func WithIncludeGuards(include bool) OTelOption {
	return func(c *OTelConfig) {
		c.IncludeGuards = include
	}
}

// WithNavigationFilter sets a filter function for navigations.
func WithNavigationFilter(filter func(nav *navigation.Navigation) bool) OTelOption {
	return func(c *OTelConfig) {
		c.Filter = filter
	}
}

// WithAttributeExtractor sets a custom attribute extractor.
func WithAttributeExtractor(extractor func(nav *navigation.Navigation) []attribute.KeyValue) OTelOption {
	return func(c *OTelConfig) {
		c.AttributeExtractor = extractor
	}
}

func defaultOTelConfig() OTelConfig {
	return OTelConfig{
		TracerName:    defaultTracerName,
		IncludeGuards: true,
	}
}

// OpenTelemetry creates middleware that traces every navigation.
//
// The span starts when the navigation is requested and ends when it
// settles. Guards receive the span through their context, so their own
// spans nest under it. Failures set the span status to Error.
//
// The tracer comes from the global provider unless WithTracerProvider is
// given:
//
//	otel.SetTracerProvider(tp)
//	engine, _ := navigation.NewEngine(navigation.WithMiddleware(middleware.OpenTelemetry()))
func OpenTelemetry(opts ...OTelOption) navigation.Middleware {
	config := defaultOTelConfig()
	for _, opt := range opts {
		opt(&config)
	}
	if config.TracerProvider != nil {
		config.tracer = config.TracerProvider.Tracer(config.TracerName)
	} else {
		config.tracer = otel.Tracer(config.TracerName)
	}

	return navigation.MiddlewareFunc(func(nav *navigation.Navigation, next func() error) error {
		if config.Filter != nil && !config.Filter(nav) {
			return next()
		}

		ctx, span := config.tracer.Start(
			nav.Context,
			formatSpanName(nav),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				attribute.Int64("waypoint.navigation_id", int64(nav.ID)),
				attribute.String("waypoint.type", nav.Type.String()),
				attribute.String("waypoint.target", nav.Raw.String()),
				attribute.String("waypoint.from", nav.From.FullPath),
			),
		)
		defer span.End()
		nav.Context = ctx

		err := next()

		if nav.To != nil {
			span.SetAttributes(
				attribute.String("waypoint.to", nav.To.FullPath),
				attribute.String("waypoint.route", RouteLabel(nav.To)),
			)
			if nav.To.RedirectedFrom != nil {
				span.SetAttributes(attribute.String("waypoint.redirected_from", nav.To.RedirectedFrom.FullPath))
			}
		}
		if s := nav.Session; s != nil {
			span.SetAttributes(attribute.Int("waypoint.redirects", s.Redirects()))
			if config.IncludeGuards {
				for _, rec := range s.Results() {
					span.AddEvent("guard", trace.WithAttributes(
						attribute.String("waypoint.guard", rec.Guard),
						attribute.String("waypoint.verdict", rec.Result.Verdict.String()),
						attribute.Bool("waypoint.cached", rec.Cached),
						attribute.Int64("waypoint.duration_us", rec.Duration.Microseconds()),
					))
				}
			}
		}
		if config.AttributeExtractor != nil {
			span.SetAttributes(config.AttributeExtractor(nav)...)
		}

		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.SetAttributes(attribute.String("waypoint.failure", failureLabel(err)))
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return err
	})
}

// SpanFromNavigation returns the span of a traced navigation, or a no-op
// span.
func SpanFromNavigation(nav *navigation.Navigation) trace.Span {
	return trace.SpanFromContext(TraceContext(nav))
}

// TraceContext returns the navigation context carrying the span, for
// propagation to outgoing calls.
func TraceContext(nav *navigation.Navigation) context.Context {
	if nav.Context == nil {
		return context.Background()
	}
	return nav.Context
}

func formatSpanName(nav *navigation.Navigation) string {
	return fmt.Sprintf("navigate %s", nav.Type)
}
