package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"time"

	"github.com/vango-dev/waypoint/pkg/cache"
	"github.com/vango-dev/waypoint/pkg/route"
)

// Defaults used when no option overrides them.
const (
	DefaultTimeout       = 5 * time.Second
	DefaultCacheTTL      = 2 * time.Second
	DefaultCacheCapacity = 256
)

// Sentinel causes carried by ExecutionError.
var (
	ErrTimeout         = errors.New("guard timed out")
	ErrPanic           = errors.New("guard panicked")
	ErrDependencyCycle = errors.New("guard dependency cycle")
)

// ExecutionError reports a guard that failed instead of deciding: it
// returned an error, panicked, timed out, or could not be scheduled.
type ExecutionError struct {
	Guard string
	Cause error

	// Stack is set when the guard panicked.
	Stack []byte
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("guard %s: %v", e.Guard, e.Cause)
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// Record is the settled result of one guard run.
type Record struct {
	Guard    string
	Result   route.Result
	Duration time.Duration
	Cached   bool
}

// Outcome is the result of running a group of guards.
type Outcome struct {
	// Result is the first non-continue result, or Continue.
	Result route.Result

	// Decider is the guard that produced Result, nil when every guard
	// continued.
	Decider *route.Guard

	// Ran lists settled guards in settle order.
	Ran []Record
}

type cacheKey struct {
	id       uint64
	to, from string
}

// Executor runs navigation guards with timeouts, panic capture and an
// optional result cache. It is safe for concurrent use.
type Executor struct {
	timeout  time.Duration
	parallel bool
	cache    *cache.TTL[cacheKey, route.Result]
	logger   *slog.Logger

	cacheCapacity int
	cacheTTL      time.Duration
	noCache       bool
}

// Option configures an Executor.
type Option func(*Executor)

// WithTimeout sets the default per-guard timeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithParallel runs independent guards of a group concurrently.
func WithParallel(enabled bool) Option {
	return func(e *Executor) {
		e.parallel = enabled
	}
}

// WithCache sizes the result cache for cacheable guards.
func WithCache(capacity int, ttl time.Duration) Option {
	return func(e *Executor) {
		e.cacheCapacity = capacity
		e.cacheTTL = ttl
	}
}

// WithoutCache disables result caching.
func WithoutCache() Option {
	return func(e *Executor) {
		e.noCache = true
	}
}

// WithLogger sets the executor logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor creates a guard executor.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		timeout:       DefaultTimeout,
		cacheCapacity: DefaultCacheCapacity,
		cacheTTL:      DefaultCacheTTL,
		logger:        slog.Default().With("component", "guard"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if !e.noCache {
		e.cache = cache.NewTTL[cacheKey, route.Result](e.cacheCapacity, e.cacheTTL)
	}
	return e
}

// Parallel reports whether independent guards run concurrently.
func (e *Executor) Parallel() bool {
	return e.parallel
}

// Cache returns the result cache for registration with a cache.Manager, or
// nil when caching is disabled.
func (e *Executor) Cache() cache.Sweepable {
	if e.cache == nil {
		return nil
	}
	return e.cache
}

// ClearCache drops every cached result.
func (e *Executor) ClearCache() {
	if e.cache != nil {
		e.cache.Purge()
	}
}

// ExecuteSingle runs one guard. Errors, panics and timeouts are all
// reported as a VerdictError result wrapping an *ExecutionError.
func (e *Executor) ExecuteSingle(ctx context.Context, g *route.Guard, to, from *route.Location) Record {
	start := time.Now()
	rec := Record{Guard: g.Key()}

	var key cacheKey
	useCache := g.Cacheable && e.cache != nil
	if useCache {
		key = cacheKey{id: g.ID(), to: pathOf(to), from: pathOf(from)}
		if r, ok := e.cache.Get(key); ok {
			rec.Result = r
			rec.Cached = true
			rec.Duration = time.Since(start)
			return rec
		}
	}

	rec.Result = e.run(ctx, g, to, from)
	rec.Duration = time.Since(start)

	if rec.Result.Verdict == route.VerdictError {
		var ee *ExecutionError
		if !errors.As(rec.Result.Err, &ee) {
			rec.Result.Err = &ExecutionError{Guard: rec.Guard, Cause: rec.Result.Err}
		}
		e.logger.Warn("guard failed", "guard", rec.Guard, "to", pathOf(to), "error", rec.Result.Err)
		return rec
	}

	if useCache {
		e.cache.Put(key, rec.Result)
	}
	e.logger.Debug("guard settled", "guard", rec.Guard, "verdict", rec.Result.Verdict, "duration", rec.Duration)
	return rec
}

func (e *Executor) run(ctx context.Context, g *route.Guard, to, from *route.Location) route.Result {
	if g.Fn == nil {
		return route.Continue()
	}
	timeout := e.timeout
	if g.Timeout > 0 {
		timeout = g.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan route.Result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- route.Fail(&ExecutionError{
					Guard: g.Key(),
					Cause: fmt.Errorf("%w: %v", ErrPanic, p),
					Stack: debug.Stack(),
				})
			}
		}()
		done <- g.Fn(ctx, to, from)
	}()

	select {
	case r := <-done:
		return normalize(r)
	case <-ctx.Done():
		cause := ctx.Err()
		if errors.Is(cause, context.DeadlineExceeded) {
			cause = fmt.Errorf("%w after %s", ErrTimeout, timeout)
		}
		return route.Fail(&ExecutionError{Guard: g.Key(), Cause: cause})
	}
}

func normalize(r route.Result) route.Result {
	switch r.Verdict {
	case route.VerdictContinue, route.VerdictAbort, route.VerdictRedirect:
		return r
	case route.VerdictError:
		return route.Fail(r.Err)
	default:
		return route.Continue()
	}
}

// ExecuteGroup runs guards and stops at the first guard that does not
// continue. Guards run in priority order, higher first, with ties kept in
// the given order; a guard always runs after the guards it depends on.
//
// In parallel mode independent guards run concurrently and the first one
// to settle with a non-continue result decides; the remaining results are
// ignored. Dependent guards then run one at a time.
func (e *Executor) ExecuteGroup(ctx context.Context, guards []*route.Guard, to, from *route.Location) Outcome {
	var out Outcome
	if len(guards) == 0 {
		return out
	}

	order, err := schedule(guards)
	if err != nil {
		out.Result = route.Fail(err)
		return out
	}

	seq := order
	if e.parallel {
		var indep []*route.Guard
		seq = seq[:0:0]
		for _, g := range order {
			if g.Independent() {
				indep = append(indep, g)
			} else {
				seq = append(seq, g)
			}
		}
		if e.runConcurrent(ctx, indep, to, from, &out) {
			return out
		}
	}

	for _, g := range seq {
		if ctx.Err() != nil {
			out.Result = route.Fail(ctx.Err())
			return out
		}
		rec := e.ExecuteSingle(ctx, g, to, from)
		out.Ran = append(out.Ran, rec)
		if !rec.Result.Proceeds() {
			out.Result = rec.Result
			out.Decider = g
			return out
		}
	}
	return out
}

// runConcurrent runs guards at once and reports whether one of them
// decided the group.
func (e *Executor) runConcurrent(ctx context.Context, guards []*route.Guard, to, from *route.Location, out *Outcome) bool {
	if len(guards) == 0 {
		return false
	}
	if len(guards) == 1 {
		rec := e.ExecuteSingle(ctx, guards[0], to, from)
		out.Ran = append(out.Ran, rec)
		if !rec.Result.Proceeds() {
			out.Result = rec.Result
			out.Decider = guards[0]
			return true
		}
		return false
	}

	type settled struct {
		g   *route.Guard
		rec Record
	}
	results := make(chan settled, len(guards))
	for _, g := range guards {
		go func(g *route.Guard) {
			results <- settled{g: g, rec: e.ExecuteSingle(ctx, g, to, from)}
		}(g)
	}

	for range guards {
		s := <-results
		out.Ran = append(out.Ran, s.rec)
		if !s.rec.Result.Proceeds() {
			out.Result = s.rec.Result
			out.Decider = s.g
			return true
		}
	}
	return false
}

// schedule orders guards by priority and dependencies. Dependencies on
// guards outside the group are treated as already satisfied.
func schedule(guards []*route.Guard) ([]*route.Guard, error) {
	byPriority := make([]*route.Guard, len(guards))
	copy(byPriority, guards)
	sort.SliceStable(byPriority, func(i, j int) bool {
		return byPriority[i].Priority > byPriority[j].Priority
	})

	names := make(map[string]bool, len(guards))
	for _, g := range guards {
		names[g.Key()] = true
	}

	pending := make(map[*route.Guard]int, len(guards))
	for _, g := range byPriority {
		n := 0
		for _, dep := range g.Dependencies {
			if names[dep] && dep != g.Key() {
				n++
			}
		}
		pending[g] = n
	}

	order := make([]*route.Guard, 0, len(guards))
	done := make(map[*route.Guard]bool, len(guards))
	for len(order) < len(byPriority) {
		var next *route.Guard
		for _, g := range byPriority {
			if !done[g] && pending[g] <= 0 {
				next = g
				break
			}
		}
		if next == nil {
			for _, g := range byPriority {
				if !done[g] {
					return nil, &ExecutionError{Guard: g.Key(), Cause: ErrDependencyCycle}
				}
			}
		}
		done[next] = true
		order = append(order, next)
		for _, g := range byPriority {
			if done[g] {
				continue
			}
			for _, dep := range g.Dependencies {
				if dep == next.Key() {
					pending[g]--
				}
			}
		}
	}
	return order, nil
}

func pathOf(l *route.Location) string {
	if l == nil {
		return ""
	}
	return l.Path
}
