package router

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/vango-dev/waypoint/pkg/cache"
	"github.com/vango-dev/waypoint/pkg/route"
)

// pathMatch is a cached path resolution. Query and hash are not part of
// it; they are attached on every resolve.
type pathMatch struct {
	rec    *route.Record
	params route.Params
}

// entry is the matcher's private bookkeeping for one record.
type entry struct {
	rec        *route.Record
	tokens     []token
	trailing   bool
	validators map[string]validator
}

// Matcher owns the route table. It resolves raw locations against a
// segment tree and caches path resolutions in a tiered cache.
// Matcher is safe for concurrent use.
type Matcher struct {
	mu sync.RWMutex

	root    *node
	entries map[*route.Record]*entry
	byName  map[string]*route.Record

	// routes are the top-level originals in registration order.
	routes []*route.Record
	seq    uint64

	cacheCfg cache.TieredConfig
	noCache  bool
	cache    *cache.Tiered[string, pathMatch]

	logger *slog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithCacheConfig sizes the resolution cache.
func WithCacheConfig(cfg cache.TieredConfig) Option {
	return func(m *Matcher) {
		m.cacheCfg = cfg
	}
}

// WithoutCache disables the resolution cache.
func WithoutCache() Option {
	return func(m *Matcher) {
		m.noCache = true
	}
}

// WithLogger sets the matcher logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Matcher) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewMatcher creates an empty matcher.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{
		root:     newNode(token{}),
		entries:  make(map[*route.Record]*entry),
		byName:   make(map[string]*route.Record),
		cacheCfg: cache.DefaultTieredConfig(),
		logger:   slog.Default().With("component", "router"),
	}
	for _, opt := range opts {
		opt(m)
	}
	if !m.noCache {
		m.cache = cache.NewTiered[string, pathMatch](m.cacheCfg)
	}
	return m
}

// Cache returns the resolution cache for registration with a
// cache.Manager, or nil when caching is disabled.
func (m *Matcher) Cache() cache.Sweepable {
	if m.cache == nil {
		return nil
	}
	return m.cache
}

// AddRoute registers r, with its children and aliases, below parent. A nil
// parent registers a top-level route. On error nothing is registered.
func (m *Matcher) AddRoute(r route.Route, parent *route.Record) (*route.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if parent != nil {
		if _, ok := m.entries[parent]; !ok || parent.AliasOf != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnknownParent, parent.Path)
		}
	}

	var added []*route.Record
	rec, err := m.addLocked(r, parent, &added)
	if err == nil {
		err = m.addAliasesLocked(r, parent, rec, &added)
	}
	if err != nil {
		m.rollbackLocked(added)
		return nil, err
	}

	if parent == nil {
		m.routes = append(m.routes, rec)
	}
	m.invalidateLocked()
	m.logger.Debug("route added", "path", rec.Path, "name", rec.Name, "records", len(added))
	return rec, nil
}

// AddRoutes registers top-level routes in order, stopping at the first
// error.
func (m *Matcher) AddRoutes(routes ...route.Route) error {
	for _, r := range routes {
		if _, err := m.AddRoute(r, nil); err != nil {
			return err
		}
	}
	return nil
}

func (m *Matcher) addLocked(r route.Route, parent *route.Record, added *[]*route.Record) (*route.Record, error) {
	rec, e, err := m.newRecord(r, parent, nil)
	if err != nil {
		return nil, err
	}
	if rec.Name != "" {
		if existing, ok := m.byName[rec.Name]; ok {
			return nil, &DuplicateRouteNameError{Name: rec.Name, ExistingPath: existing.Path}
		}
	}
	m.insertLocked(rec, e)
	*added = append(*added, rec)

	for _, child := range r.Children {
		c, err := m.addLocked(child, rec, added)
		if err != nil {
			return nil, err
		}
		if err := m.addAliasesLocked(child, rec, c, added); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// addAliasesLocked registers r's alias patterns as records pointing at
// orig. Children are mirrored below each alias.
func (m *Matcher) addAliasesLocked(r route.Route, parent, orig *route.Record, added *[]*route.Record) error {
	for _, alias := range r.Alias {
		ar := r
		ar.Path = alias
		if _, err := m.addAliasLocked(ar, parent, orig, added); err != nil {
			return err
		}
	}
	return nil
}

func (m *Matcher) addAliasLocked(r route.Route, parent, orig *route.Record, added *[]*route.Record) (*route.Record, error) {
	rec, e, err := m.newRecord(r, parent, orig)
	if err != nil {
		return nil, err
	}
	m.insertLocked(rec, e)
	*added = append(*added, rec)

	for i, child := range r.Children {
		if i >= len(orig.Children) {
			break
		}
		if _, err := m.addAliasLocked(child, rec, orig.Children[i], added); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

// newRecord normalizes r into a record. It does not touch the table.
func (m *Matcher) newRecord(r route.Route, parent, aliasOf *route.Record) (*route.Record, *entry, error) {
	full := r.Path
	if parent != nil {
		full = route.JoinPath(parent.Path, r.Path)
	}
	if full == "" {
		return nil, nil, &PatternError{Pattern: r.Path, Reason: "empty path"}
	}
	tokens, trailing, err := parsePattern(full)
	if err != nil {
		return nil, nil, err
	}

	rec := &route.Record{
		Path:        full,
		Meta:        r.Meta,
		Redirect:    r.Redirect,
		BeforeEnter: r.BeforeEnter,
		Parent:      parent,
		AliasOf:     aliasOf,
		Sensitive:   r.Sensitive,
		Strict:      r.Strict,
	}
	if aliasOf == nil {
		rec.Name = r.Name
	}
	if parent != nil {
		rec.Sensitive = rec.Sensitive || parent.Sensitive
		rec.Strict = rec.Strict || parent.Strict
	}

	rec.Components = make(map[string]any, len(r.Components)+1)
	for k, v := range r.Components {
		rec.Components[k] = v
	}
	if r.Component != nil {
		rec.Components["default"] = r.Component
	}

	for _, tok := range tokens {
		if tok.kind != tokStatic {
			rec.Keys = append(rec.Keys, tok.key())
		}
	}

	rec.Validators = make(map[string]string)
	if parent != nil {
		for k, v := range parent.Validators {
			rec.Validators[k] = v
		}
	}
	for k, v := range r.Params {
		rec.Validators[k] = v
	}
	e := &entry{rec: rec, tokens: tokens, trailing: trailing, validators: make(map[string]validator, len(rec.Validators))}
	for name, spec := range rec.Validators {
		fn, err := compileValidator(spec)
		if err != nil {
			return nil, nil, &PatternError{Pattern: full, Reason: fmt.Sprintf("param %s: %v", name, err)}
		}
		e.validators[name] = fn
	}

	m.seq++
	rec.Seq = m.seq
	return rec, e, nil
}

func (m *Matcher) insertLocked(rec *route.Record, e *entry) {
	m.entries[rec] = e
	if rec.Name != "" {
		m.byName[rec.Name] = rec
	}
	if rec.Parent != nil {
		rec.Parent.Children = append(rec.Parent.Children, rec)
	}
	m.root.insert(e.tokens, rec)
}

// rollbackLocked undoes a partial registration, newest first.
func (m *Matcher) rollbackLocked(added []*route.Record) {
	for i := len(added) - 1; i >= 0; i-- {
		m.dropLocked(added[i])
	}
}

func (m *Matcher) dropLocked(rec *route.Record) {
	e, ok := m.entries[rec]
	if !ok {
		return
	}
	m.root.remove(e.tokens, rec)
	delete(m.entries, rec)
	if rec.Name != "" && m.byName[rec.Name] == rec {
		delete(m.byName, rec.Name)
	}
	if p := rec.Parent; p != nil {
		for i, c := range p.Children {
			if c == rec {
				p.Children = append(p.Children[:i:i], p.Children[i+1:]...)
				break
			}
		}
	}
}

// RemoveRoute removes the named route with its descendants and aliases.
func (m *Matcher) RemoveRoute(name string) bool {
	m.mu.RLock()
	rec, ok := m.byName[name]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return m.RemoveRecord(rec)
}

// RemoveRecord removes rec with its descendants and aliases. It reports
// false if rec is not registered.
func (m *Matcher) RemoveRecord(rec *route.Record) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec = rec.Original()
	if _, ok := m.entries[rec]; !ok {
		return false
	}

	removed := make(map[*route.Record]bool)
	m.collectLocked(rec, removed)
	for r := range m.entries {
		if r.AliasOf != nil && removed[r.AliasOf] {
			m.collectLocked(r, removed)
		}
	}
	for r := range removed {
		m.dropLocked(r)
	}
	for i, r := range m.routes {
		if r == rec {
			m.routes = append(m.routes[:i:i], m.routes[i+1:]...)
			break
		}
	}

	if m.cache != nil {
		n := m.cache.RemoveFunc(func(_ string, pm pathMatch) bool {
			return pm.rec != nil && removed[pm.rec]
		})
		m.logger.Debug("route removed", "path", rec.Path, "name", rec.Name, "records", len(removed), "invalidated", n)
	}
	return true
}

func (m *Matcher) collectLocked(rec *route.Record, into map[*route.Record]bool) {
	if into[rec] {
		return
	}
	into[rec] = true
	for _, c := range rec.Children {
		m.collectLocked(c, into)
	}
}

// invalidateLocked drops cached resolutions whose path now resolves
// differently. It runs after every registration.
func (m *Matcher) invalidateLocked() {
	if m.cache == nil {
		return
	}
	n := m.cache.RemoveFunc(func(path string, pm pathMatch) bool {
		fresh, err := m.matchLocked(path)
		return err != nil || fresh.rec != pm.rec || !fresh.params.Equal(pm.params)
	})
	if n > 0 {
		m.logger.Debug("resolution cache invalidated", "entries", n)
	}
}

// GetRoutes returns every registered original record, parents before
// children, in registration order.
func (m *Matcher) GetRoutes() []*route.Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*route.Record
	var walk func(recs []*route.Record)
	walk = func(recs []*route.Record) {
		for _, r := range recs {
			out = append(out, r)
			walk(r.Children)
		}
	}
	walk(m.routes)
	return out
}

// GetRecord returns the named record.
func (m *Matcher) GetRecord(name string) (*route.Record, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.byName[name]
	return rec, ok
}

// HasRoute reports whether a route named name is registered.
func (m *Matcher) HasRoute(name string) bool {
	_, ok := m.GetRecord(name)
	return ok
}

// Describe renders the route table, one record per line, for diagnostics.
func (m *Matcher) Describe() string {
	var b strings.Builder
	for _, r := range m.GetRoutes() {
		indent := strings.Repeat("  ", depth(r)-1)
		fmt.Fprintf(&b, "%s%s", indent, r.Path)
		if r.Name != "" {
			fmt.Fprintf(&b, " (%s)", r.Name)
		}
		b.WriteByte('\n')
	}
	return b.String()
}
