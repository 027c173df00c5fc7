package statestore

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vango-dev/waypoint/pkg/history"
	"github.com/vango-dev/waypoint/pkg/route"
)

// CurrentFormatVersion is written into every saved record.
const CurrentFormatVersion = 1

// DefaultTTL is how long a saved history stays loadable.
const DefaultTTL = 24 * time.Hour

// Record is the serialized form of a memory history.
type Record struct {
	ID       string           `json:"id"`
	Version  int              `json:"version"`
	SavedAt  time.Time        `json:"saved_at"`
	Route    string           `json:"route,omitempty"`
	Snapshot history.Snapshot `json:"snapshot"`
}

// Encode serializes rec with the current format version.
func Encode(rec *Record) ([]byte, error) {
	rec.Version = CurrentFormatVersion
	return json.Marshal(rec)
}

// Decode parses a record written by Encode.
func Decode(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	if rec.Version > CurrentFormatVersion {
		return nil, fmt.Errorf("statestore: unsupported format version %d", rec.Version)
	}
	return &rec, nil
}

// NewID returns a fresh persistence key.
func NewID() string {
	return uuid.NewString()
}

// Persister saves and restores one memory history under a fixed key.
type Persister struct {
	store  Store
	mem    *history.Memory
	id     string
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// PersisterOption configures a Persister.
type PersisterOption func(*Persister)

// WithID sets the key. The default is a new random id.
func WithID(id string) PersisterOption {
	return func(p *Persister) {
		if id != "" {
			p.id = id
		}
	}
}

// WithTTL sets how long saved state stays loadable.
func WithTTL(d time.Duration) PersisterOption {
	return func(p *Persister) {
		if d > 0 {
			p.ttl = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PersisterOption {
	return func(p *Persister) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewPersister binds mem to store.
func NewPersister(store Store, mem *history.Memory, opts ...PersisterOption) *Persister {
	p := &Persister{
		store:  store,
		mem:    mem,
		id:     NewID(),
		ttl:    DefaultTTL,
		logger: slog.Default().With("component", "statestore"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ID returns the key the history is saved under.
func (p *Persister) ID() string {
	return p.id
}

// Save writes the current history stack.
func (p *Persister) Save(ctx context.Context) error {
	now := p.now()
	rec := &Record{
		ID:       p.id,
		SavedAt:  now.UTC(),
		Route:    p.mem.Location(),
		Snapshot: p.mem.Snapshot(),
	}
	data, err := Encode(rec)
	if err != nil {
		return fmt.Errorf("encode history %s: %w", p.id, err)
	}
	if err := p.store.Save(ctx, p.id, data, now.Add(p.ttl)); err != nil {
		return fmt.Errorf("save history %s: %w", p.id, err)
	}
	return nil
}

// Restore loads the saved stack into the history. It reports false when
// nothing was saved or the entry expired.
func (p *Persister) Restore(ctx context.Context) (bool, error) {
	data, err := p.store.Load(ctx, p.id)
	if err != nil {
		return false, fmt.Errorf("load history %s: %w", p.id, err)
	}
	if data == nil {
		return false, nil
	}
	rec, err := Decode(data)
	if err != nil {
		return false, fmt.Errorf("decode history %s: %w", p.id, err)
	}
	p.mem.Restore(rec.Snapshot)
	p.logger.Debug("history restored", "id", p.id, "entries", len(rec.Snapshot.Entries), "route", rec.Route)
	return true, nil
}

// Forget deletes the saved state.
func (p *Persister) Forget(ctx context.Context) error {
	return p.store.Delete(ctx, p.id)
}

// Subscriber is the part of the navigation engine Follow needs.
type Subscriber interface {
	Subscribe(fn func(to, from *route.Location)) func()
}

// Follow saves after every route change reported by s. The returned func
// stops following.
func (p *Persister) Follow(s Subscriber) func() {
	return s.Subscribe(func(to, _ *route.Location) {
		if err := p.Save(context.Background()); err != nil {
			p.logger.Warn("persist history failed", "id", p.id, "route", to.FullPath, "error", err)
		}
	})
}
