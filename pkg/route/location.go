package route

import (
	"github.com/vango-dev/waypoint/pkg/routepath"
)

// Params holds resolved route params. Plain params carry one value,
// repeatable params carry one value per segment.
type Params map[string][]string

// Get returns the first value for key, or "".
func (p Params) Get(key string) string {
	if v := p[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// All returns every value for key.
func (p Params) All(key string) []string {
	return p[key]
}

// Set replaces key with a single value.
func (p Params) Set(key, value string) {
	p[key] = []string{value}
}

// Clone returns a deep copy.
func (p Params) Clone() Params {
	if p == nil {
		return nil
	}
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Equal compares params by value.
func (p Params) Equal(other Params) bool {
	return routepath.QueryEqual(p, other)
}

// Query holds parsed query values. A key without a value has a single ""
// entry.
type Query map[string][]string

// Get returns the first value for key, or "".
func (q Query) Get(key string) string {
	if v := q[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// Has reports whether key is present.
func (q Query) Has(key string) bool {
	_, ok := q[key]
	return ok
}

// Clone returns a deep copy.
func (q Query) Clone() Query {
	if q == nil {
		return nil
	}
	out := make(Query, len(q))
	for k, v := range q {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Encode renders the query without the leading "?".
func (q Query) Encode() string {
	return routepath.StringifyQuery(q)
}

// Equal compares queries by value.
func (q Query) Equal(other Query) bool {
	return routepath.QueryEqual(q, other)
}

// RawLocation is a navigation target before resolution. Either Path or
// Name is set; Path wins when both are.
type RawLocation struct {
	Path   string
	Name   string
	Params Params
	Query  Query
	Hash   string

	// Replace requests a history replace instead of a push.
	Replace bool

	// Force navigates even when the target equals the current location.
	Force bool

	// State is attached to the history entry after sanitization.
	State map[string]any
}

// ParsePath turns a location string such as "/a?b=1#c" into a RawLocation.
func ParsePath(s string) RawLocation {
	parts := routepath.Split(s)
	raw := RawLocation{Path: parts.Path, Hash: routepath.NormalizeHash(parts.Hash)}
	if parts.Query != "" {
		raw.Query = Query(routepath.ParseQuery(parts.Query))
	}
	return raw
}

// IsNamed reports whether the target is addressed by route name.
func (r RawLocation) IsNamed() bool {
	return r.Path == "" && r.Name != ""
}

// String renders the target for logs.
func (r RawLocation) String() string {
	if r.IsNamed() {
		return "name:" + r.Name
	}
	return routepath.Join(r.Path, r.Query.Encode(), r.Hash)
}

// Location is a fully resolved navigation target.
type Location struct {
	Path     string
	Name     string
	Params   Params
	Query    Query
	Hash     string
	FullPath string

	// Href is the FullPath as the history backend would render it.
	Href string

	// Matched are the matched records, root to leaf.
	Matched []*Record

	// Meta is the merge of the matched records' meta, root to leaf.
	Meta Meta

	// RedirectedFrom is the location that redirected here, if any.
	RedirectedFrom *Location

	// State is the sanitized state attached to the history entry.
	State map[string]any
}

// Start is the location the engine reports before the first navigation.
func Start() *Location {
	return &Location{
		Path:     "/",
		FullPath: "/",
		Params:   Params{},
		Query:    Query{},
		Meta:     Meta{},
	}
}

// Leaf returns the deepest matched record, or nil.
func (l *Location) Leaf() *Record {
	if l == nil || len(l.Matched) == 0 {
		return nil
	}
	return l.Matched[len(l.Matched)-1]
}

// SameAs reports whether two locations point at the same place: same path,
// hash and query by value.
func (l *Location) SameAs(other *Location) bool {
	if l == nil || other == nil {
		return l == other
	}
	return l.Path == other.Path &&
		l.Hash == other.Hash &&
		l.Query.Equal(other.Query)
}

// Raw converts the location back into a path-based navigation target.
func (l *Location) Raw() RawLocation {
	return RawLocation{
		Path:  l.Path,
		Query: l.Query.Clone(),
		Hash:  l.Hash,
	}
}

// BuildFullPath renders path, query and hash into one string.
func BuildFullPath(path string, query Query, hash string) string {
	return routepath.Join(path, query.Encode(), hash)
}
