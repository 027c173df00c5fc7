package navigation

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vango-dev/waypoint/pkg/guard"
)

// State is the pipeline stage of the engine.
type State int32

const (
	StateIdle State = iota
	StateResolving
	StateRedirectExpanding
	StateGuardRunning
	StateCommitting
)

var stateNames = [...]string{"idle", "resolving", "redirect-expanding", "guard-running", "committing"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Session tracks one navigation attempt from request to settlement.
type Session struct {
	ID      uint64
	Started time.Time

	cancel context.CancelFunc

	mu        sync.Mutex
	redirects int
	results   []guard.Record
	stage     atomic.Int32
}

func (s *Session) addRedirect() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redirects++
	return s.redirects
}

func (s *Session) record(recs []guard.Record) {
	s.mu.Lock()
	s.results = append(s.results, recs...)
	s.mu.Unlock()
}

// Redirects returns how many redirects this navigation followed.
func (s *Session) Redirects() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redirects
}

// Results returns the guard results collected so far.
func (s *Session) Results() []guard.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]guard.Record(nil), s.results...)
}

// Stage returns the pipeline stage the navigation reached.
func (s *Session) Stage() State {
	return State(s.stage.Load())
}

// Elapsed returns the time since the navigation started.
func (s *Session) Elapsed() time.Duration {
	return time.Since(s.Started)
}
