package navigation

import (
	"errors"
	"fmt"

	"github.com/vango-dev/waypoint/pkg/route"
)

// FailureKind classifies a navigation that did not commit.
type FailureKind int

const (
	// KindAborted means a guard returned abort.
	KindAborted FailureKind = iota + 1
	// KindCancelled means a newer navigation superseded this one.
	KindCancelled
	// KindDuplicated means the target equals the current location.
	KindDuplicated
	// KindTooManyRedirects means redirect expansion exceeded its bounds.
	KindTooManyRedirects
	// KindGuardFailed means a guard errored, panicked or timed out.
	KindGuardFailed
	// KindError wraps anything else, e.g. a resolution error.
	KindError
)

var kindNames = map[FailureKind]string{
	KindAborted:          "aborted",
	KindCancelled:        "cancelled",
	KindDuplicated:       "duplicated",
	KindTooManyRedirects: "too many redirects",
	KindGuardFailed:      "guard failed",
	KindError:            "error",
}

func (k FailureKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ErrDestroyed is the cause of failures reported after Destroy.
var ErrDestroyed = errors.New("navigation engine destroyed")

// Failure is the error returned by a navigation that did not commit.
type Failure struct {
	Kind FailureKind
	From *route.Location
	To   *route.Location

	// Cause is the underlying error for KindGuardFailed and KindError.
	Cause error
}

func (f *Failure) Error() string {
	msg := "navigation " + f.Kind.String()
	if f.From != nil || f.To != nil {
		msg += fmt.Sprintf(" from %q to %q", fullPath(f.From), fullPath(f.To))
	}
	if f.Cause != nil {
		msg += ": " + f.Cause.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// IsFailure reports whether err is a *Failure of one of kinds, or of any
// kind when none are given.
func IsFailure(err error, kinds ...FailureKind) bool {
	var f *Failure
	if !errors.As(err, &f) {
		return false
	}
	if len(kinds) == 0 {
		return true
	}
	for _, k := range kinds {
		if f.Kind == k {
			return true
		}
	}
	return false
}

func fullPath(l *route.Location) string {
	if l == nil {
		return ""
	}
	return l.FullPath
}
