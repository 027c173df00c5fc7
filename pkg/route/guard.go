package route

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// Verdict is the decision a guard makes about a pending navigation.
type Verdict int

const (
	// VerdictContinue lets the navigation proceed.
	VerdictContinue Verdict = iota
	// VerdictAbort cancels the navigation.
	VerdictAbort
	// VerdictRedirect sends the navigation elsewhere.
	VerdictRedirect
	// VerdictError fails the navigation with an error.
	VerdictError
)

// String returns the verdict name.
func (v Verdict) String() string {
	switch v {
	case VerdictContinue:
		return "continue"
	case VerdictAbort:
		return "abort"
	case VerdictRedirect:
		return "redirect"
	case VerdictError:
		return "error"
	default:
		return fmt.Sprintf("verdict(%d)", int(v))
	}
}

// Result is the normalized outcome of running a guard. The zero value
// continues.
type Result struct {
	Verdict Verdict

	// Target is set for VerdictRedirect.
	Target RawLocation

	// Err is set for VerdictError.
	Err error
}

// Continue lets the navigation proceed.
func Continue() Result { return Result{Verdict: VerdictContinue} }

// Abort cancels the navigation.
func Abort() Result { return Result{Verdict: VerdictAbort} }

// RedirectTo redirects the navigation to target.
func RedirectTo(target RawLocation) Result {
	return Result{Verdict: VerdictRedirect, Target: target}
}

// RedirectToPath redirects the navigation to a location string.
func RedirectToPath(path string) Result {
	return RedirectTo(ParsePath(path))
}

// Fail fails the navigation with err. A nil err aborts instead.
func Fail(err error) Result {
	if err == nil {
		return Abort()
	}
	return Result{Verdict: VerdictError, Err: err}
}

// Proceeds reports whether the navigation may continue past this result.
func (r Result) Proceeds() bool {
	return r.Verdict == VerdictContinue
}

// GuardFunc inspects a pending navigation from one location to another.
type GuardFunc func(ctx context.Context, to, from *Location) Result

// CallbackGuard adapts a guard that reports through a next callback. The
// first call to next wins; later calls are ignored. If ctx ends before next
// is called the guard fails with ctx.Err().
func CallbackGuard(fn func(ctx context.Context, to, from *Location, next func(Result))) GuardFunc {
	return func(ctx context.Context, to, from *Location) Result {
		done := make(chan Result, 1)
		var once sync.Once
		next := func(r Result) {
			once.Do(func() { done <- r })
		}
		go func() {
			defer func() {
				if p := recover(); p != nil {
					next(Fail(fmt.Errorf("guard panicked: %v", p)))
				}
			}()
			fn(ctx, to, from, next)
		}()
		select {
		case r := <-done:
			return r
		case <-ctx.Done():
			return Fail(ctx.Err())
		}
	}
}

var guardSeq atomic.Uint64

// Guard is a guard function plus the metadata the executor schedules by.
type Guard struct {
	id atomic.Uint64

	// Name identifies the guard in dependency lists, logs and cache keys.
	Name string

	Fn GuardFunc

	// Cacheable guards may reuse a recent result for the same
	// (guard, to.Path, from.Path).
	Cacheable bool

	// Dependencies name guards that must settle before this one runs.
	// Guards without dependencies are independent.
	Dependencies []string

	// Priority orders guards within a group; higher runs first.
	Priority int

	// Timeout overrides the executor default when positive.
	Timeout time.Duration
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// WithGuardName names the guard.
func WithGuardName(name string) GuardOption {
	return func(g *Guard) { g.Name = name }
}

// Cacheable marks the guard result as reusable for a short time.
func Cacheable() GuardOption {
	return func(g *Guard) { g.Cacheable = true }
}

// DependsOn declares guards that must run before this one.
func DependsOn(names ...string) GuardOption {
	return func(g *Guard) { g.Dependencies = append(g.Dependencies, names...) }
}

// WithPriority sets the guard priority.
func WithPriority(p int) GuardOption {
	return func(g *Guard) { g.Priority = p }
}

// WithGuardTimeout sets a per-guard timeout.
func WithGuardTimeout(d time.Duration) GuardOption {
	return func(g *Guard) { g.Timeout = d }
}

// NewGuard wraps fn with metadata.
func NewGuard(fn GuardFunc, opts ...GuardOption) *Guard {
	g := &Guard{Fn: fn}
	g.id.Store(guardSeq.Add(1))
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// ID returns the process-unique guard identity.
func (g *Guard) ID() uint64 {
	if id := g.id.Load(); id != 0 {
		return id
	}
	g.id.CompareAndSwap(0, guardSeq.Add(1))
	return g.id.Load()
}

// Key returns the name, or a generated identity for unnamed guards.
func (g *Guard) Key() string {
	if g.Name != "" {
		return g.Name
	}
	return fmt.Sprintf("guard#%d", g.ID())
}

// Independent reports whether the guard declares no dependencies.
func (g *Guard) Independent() bool {
	return len(g.Dependencies) == 0
}
