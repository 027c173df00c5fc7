package router

import (
	"errors"
	"fmt"
)

// Sentinel errors for errors.Is checks.
var (
	ErrRouteNotFound      = errors.New("route not found")
	ErrMissingParam       = errors.New("missing required param")
	ErrDuplicateRouteName = errors.New("duplicate route name")
	ErrInvalidPattern     = errors.New("invalid route pattern")
	ErrUnknownParent      = errors.New("unknown parent route")
)

// RouteNotFoundError is returned when a named route does not exist.
type RouteNotFoundError struct {
	Name string
}

func (e *RouteNotFoundError) Error() string {
	return fmt.Sprintf("route not found: no route named %q", e.Name)
}

// Is matches ErrRouteNotFound.
func (e *RouteNotFoundError) Is(target error) bool {
	return target == ErrRouteNotFound
}

// MissingRequiredParamError is returned when name-based resolution lacks a
// required param or a param value fails its validator.
type MissingRequiredParamError struct {
	Route  string
	Param  string
	Reason string
}

func (e *MissingRequiredParamError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("route %q: param %q: %s", e.Route, e.Param, e.Reason)
	}
	return fmt.Sprintf("route %q: missing required param %q", e.Route, e.Param)
}

// Is matches ErrMissingParam.
func (e *MissingRequiredParamError) Is(target error) bool {
	return target == ErrMissingParam
}

// DuplicateRouteNameError is returned when a route name is registered twice.
type DuplicateRouteNameError struct {
	Name string

	// ExistingPath is the full path of the route already using Name.
	ExistingPath string
}

func (e *DuplicateRouteNameError) Error() string {
	return fmt.Sprintf("duplicate route name %q (already used by %s)", e.Name, e.ExistingPath)
}

// Is matches ErrDuplicateRouteName.
func (e *DuplicateRouteNameError) Is(target error) bool {
	return target == ErrDuplicateRouteName
}

// PatternError is returned for a malformed route pattern or validator.
type PatternError struct {
	Pattern string
	Reason  string
}

func (e *PatternError) Error() string {
	return fmt.Sprintf("invalid route pattern %q: %s", e.Pattern, e.Reason)
}

// Is matches ErrInvalidPattern.
func (e *PatternError) Is(target error) bool {
	return target == ErrInvalidPattern
}
