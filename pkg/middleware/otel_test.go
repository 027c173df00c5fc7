package middleware

import (
	"context"
	"sync"
	"testing"

	"github.com/vango-dev/waypoint/pkg/navigation"
	"github.com/vango-dev/waypoint/pkg/route"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// recordingSpan keeps what the middleware writes to it.
type recordingSpan struct {
	noop.Span

	mu     sync.Mutex
	name   string
	attrs  map[attribute.Key]attribute.Value
	events []string
	status codes.Code
	errs   []error
	ended  bool
}

func (s *recordingSpan) SetAttributes(kv ...attribute.KeyValue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range kv {
		s.attrs[a.Key] = a.Value
	}
}

func (s *recordingSpan) AddEvent(name string, _ ...trace.EventOption) {
	s.mu.Lock()
	s.events = append(s.events, name)
	s.mu.Unlock()
}

func (s *recordingSpan) RecordError(err error, _ ...trace.EventOption) {
	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()
}

func (s *recordingSpan) SetStatus(code codes.Code, _ string) {
	s.mu.Lock()
	s.status = code
	s.mu.Unlock()
}

func (s *recordingSpan) End(...trace.SpanEndOption) {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
}

func (s *recordingSpan) IsRecording() bool { return true }

func (s *recordingSpan) attr(key string) attribute.Value {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attrs[attribute.Key(key)]
}

type recordingTracer struct {
	noop.Tracer

	mu    sync.Mutex
	spans []*recordingSpan
}

func (tr *recordingTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	cfg := trace.NewSpanStartConfig(opts...)
	s := &recordingSpan{name: name, attrs: map[attribute.Key]attribute.Value{}}
	s.SetAttributes(cfg.Attributes()...)
	tr.mu.Lock()
	tr.spans = append(tr.spans, s)
	tr.mu.Unlock()
	return trace.ContextWithSpan(ctx, s), s
}

func (tr *recordingTracer) all() []*recordingSpan {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return append([]*recordingSpan(nil), tr.spans...)
}

type recordingProvider struct {
	noop.TracerProvider
	tracer *recordingTracer
	names  []string
}

func (p *recordingProvider) Tracer(name string, _ ...trace.TracerOption) trace.Tracer {
	p.names = append(p.names, name)
	return p.tracer
}

func newRecordingProvider() *recordingProvider {
	return &recordingProvider{tracer: &recordingTracer{}}
}

func TestOpenTelemetryMiddleware_SpanPerNavigation(t *testing.T) {
	tp := newRecordingProvider()
	e := newTestEngine(t, OpenTelemetry(WithTracerProvider(tp)))

	var guardSpan trace.Span
	e.BeforeEach(route.NewGuard(func(ctx context.Context, to, _ *route.Location) route.Result {
		if to.Path == "/new" {
			guardSpan = trace.SpanFromContext(ctx)
		}
		return route.Continue()
	}, route.WithGuardName("auth")))

	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := e.PushPath(ctx, "/old"); err != nil {
		t.Fatalf("push /old: %v", err)
	}

	if len(tp.names) != 1 || tp.names[0] != defaultTracerName {
		t.Errorf("tracer names = %v, want [%s]", tp.names, defaultTracerName)
	}
	spans := tp.tracer.all()
	if len(spans) != 2 {
		t.Fatalf("spans = %d, want 2", len(spans))
	}

	s := spans[1]
	if s.name != "navigate push" {
		t.Errorf("span name = %q, want %q", s.name, "navigate push")
	}
	if !s.ended {
		t.Error("span not ended")
	}
	if s.status != codes.Ok {
		t.Errorf("status = %v, want Ok", s.status)
	}
	checks := map[string]string{
		"waypoint.type":            "push",
		"waypoint.target":          "/old",
		"waypoint.to":              "/new",
		"waypoint.route":           "new",
		"waypoint.redirected_from": "/old",
	}
	for k, want := range checks {
		if got := s.attr(k).AsString(); got != want {
			t.Errorf("%s = %q, want %q", k, got, want)
		}
	}
	if got := s.attr("waypoint.redirects").AsInt64(); got != 1 {
		t.Errorf("redirects = %d, want 1", got)
	}
	if len(s.events) != 1 || s.events[0] != "guard" {
		t.Errorf("events = %v, want one guard event", s.events)
	}
	if guardSpan != trace.Span(s) {
		t.Error("guard context does not carry the navigation span")
	}
}

func TestOpenTelemetryMiddleware_FailureSetsError(t *testing.T) {
	tp := newRecordingProvider()
	e := newTestEngine(t, OpenTelemetry(WithTracerProvider(tp), WithIncludeGuards(false)))
	e.BeforeEach(route.NewGuard(func(_ context.Context, to, _ *route.Location) route.Result {
		if to.Path == "/a" {
			return route.Abort()
		}
		return route.Continue()
	}))

	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	err := e.PushPath(ctx, "/a")
	if !navigation.IsFailure(err, navigation.KindAborted) {
		t.Fatalf("push /a = %v, want aborted", err)
	}

	spans := tp.tracer.all()
	s := spans[len(spans)-1]
	if s.status != codes.Error {
		t.Errorf("status = %v, want Error", s.status)
	}
	if len(s.errs) != 1 {
		t.Errorf("recorded errors = %d, want 1", len(s.errs))
	}
	if got := s.attr("waypoint.failure").AsString(); got != "aborted" {
		t.Errorf("failure = %q, want aborted", got)
	}
	if len(s.events) != 0 {
		t.Errorf("events = %v, want none", s.events)
	}
}

func TestOpenTelemetryMiddleware_FilterSkipsTracing(t *testing.T) {
	tp := newRecordingProvider()
	filter := func(nav *navigation.Navigation) bool { return nav.Type == navigation.TypePush }
	extra := func(*navigation.Navigation) []attribute.KeyValue {
		return []attribute.KeyValue{attribute.String("test.attr", "ok")}
	}
	e := newTestEngine(t, OpenTelemetry(
		WithTracerProvider(tp),
		WithTracerName("my-app"),
		WithNavigationFilter(filter),
		WithAttributeExtractor(extra),
	))

	ctx := context.Background()
	if err := e.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if n := len(tp.tracer.all()); n != 0 {
		t.Fatalf("initial replace traced: %d spans", n)
	}
	if err := e.PushPath(ctx, "/a"); err != nil {
		t.Fatal(err)
	}
	spans := tp.tracer.all()
	if len(spans) != 1 {
		t.Fatalf("spans = %d, want 1", len(spans))
	}
	if got := spans[0].attr("test.attr").AsString(); got != "ok" {
		t.Errorf("test.attr = %q, want ok", got)
	}
	if tp.names[0] != "my-app" {
		t.Errorf("tracer name = %q, want my-app", tp.names[0])
	}
}

func TestSpanFromNavigation(t *testing.T) {
	nav := &navigation.Navigation{}
	if TraceContext(nav) == nil {
		t.Fatal("TraceContext returned nil")
	}
	if SpanFromNavigation(nav).IsRecording() {
		t.Error("untraced navigation returned a recording span")
	}

	tr := &recordingTracer{}
	ctx, span := tr.Start(context.Background(), "x")
	nav.Context = ctx
	if SpanFromNavigation(nav) != span {
		t.Error("SpanFromNavigation did not return the context span")
	}
}
