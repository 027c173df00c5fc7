package navigation

import (
	"context"
	"time"

	"github.com/vango-dev/waypoint/pkg/route"
)

// Type tells how a navigation was triggered.
type Type int

const (
	TypePush Type = iota
	TypeReplace
	TypePop
)

func (t Type) String() string {
	switch t {
	case TypeReplace:
		return "replace"
	case TypePop:
		return "pop"
	default:
		return "push"
	}
}

// Navigation is one request moving through the pipeline. Middleware sees
// it before and after the pipeline runs; To is set once resolution
// succeeded and holds the final, redirected target.
type Navigation struct {
	ID      uint64
	Context context.Context
	Type    Type
	Raw     route.RawLocation
	From    *route.Location
	To      *route.Location
	Started time.Time
	Session *Session
}

// Middleware wraps the navigation pipeline.
type Middleware interface {
	Handle(nav *Navigation, next func() error) error
}

// MiddlewareFunc adapts a function to Middleware.
type MiddlewareFunc func(nav *Navigation, next func() error) error

// Handle calls f.
func (f MiddlewareFunc) Handle(nav *Navigation, next func() error) error {
	return f(nav, next)
}

// ComposeMiddleware builds a handler chain from middleware and a final handler.
// Middleware is executed in order (first to last), with the handler at the end.
func ComposeMiddleware(nav *Navigation, mw []Middleware, handler func() error) error {
	if len(mw) == 0 {
		return handler()
	}

	chain := handler
	for i := len(mw) - 1; i >= 0; i-- {
		m := mw[i]
		next := chain
		chain = func() error {
			return m.Handle(nav, next)
		}
	}
	return chain()
}

// Chain creates a middleware that combines multiple middleware in order.
func Chain(middleware ...Middleware) Middleware {
	return MiddlewareFunc(func(nav *Navigation, next func() error) error {
		return ComposeMiddleware(nav, middleware, next)
	})
}

// Only runs mw for navigations matching condition.
func Only(condition func(nav *Navigation) bool, mw Middleware) Middleware {
	return MiddlewareFunc(func(nav *Navigation, next func() error) error {
		if !condition(nav) {
			return next()
		}
		return mw.Handle(nav, next)
	})
}
