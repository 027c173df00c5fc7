// Package guard runs navigation guards.
//
// An Executor wraps every guard invocation with a timeout and panic
// capture, so the caller only ever sees a route.Result. Failures of any
// kind come back as route.VerdictError carrying an *ExecutionError.
//
// Guards flagged Cacheable reuse a recent result for the same guard and
// (to, from) paths. Groups run in priority order and respect declared
// dependencies; with WithParallel, independent guards of a group run
// concurrently and the first decisive result wins.
package guard
