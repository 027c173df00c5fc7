package router

import (
	"fmt"
	"strings"

	"github.com/vango-dev/waypoint/pkg/route"
	"github.com/vango-dev/waypoint/pkg/routepath"
)

// Resolve turns raw into a matched location. Relative paths and targets
// without a path or name are resolved against current; a nil current
// stands for the start location. Resolve has no side effects beyond the
// resolution cache.
//
// A path that matches no route resolves to a location with an empty
// Matched slice and no error.
func (m *Matcher) Resolve(raw route.RawLocation, current *route.Location) (*route.Location, error) {
	if current == nil {
		current = route.Start()
	}

	switch {
	case raw.Path != "":
		return m.resolvePath(raw, current)
	case raw.Name != "":
		return m.resolveNamed(raw, current)
	case raw.Params != nil && current.Name != "":
		named := raw
		named.Name = current.Name
		return m.resolveNamed(named, current)
	default:
		rel := raw
		rel.Path = current.Path
		return m.resolvePath(rel, current)
	}
}

func (m *Matcher) resolvePath(raw route.RawLocation, current *route.Location) (*route.Location, error) {
	if err := routepath.CheckNavigable(raw.Path); err != nil {
		return nil, err
	}
	parts := routepath.Split(raw.Path)
	query := raw.Query
	if query == nil && parts.Query != "" {
		query = route.Query(routepath.ParseQuery(parts.Query))
	}
	hash := raw.Hash
	if hash == "" {
		hash = parts.Hash
	}

	target := routepath.ResolveRelative(current.Path, parts.Path)
	path, err := routepath.CanonicalizePath(target, true)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", raw.Path, err)
	}

	pm, err := m.match(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", raw.Path, err)
	}
	return buildLocation(pm.rec, pm.params.Clone(), path, query, hash), nil
}

// match resolves a canonical path, consulting the cache first.
func (m *Matcher) match(path string) (pathMatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.cache != nil {
		if pm, ok := m.cache.Get(path); ok {
			return pm, nil
		}
	}
	pm, err := m.matchLocked(path)
	if err != nil {
		return pathMatch{}, err
	}
	if m.cache != nil {
		m.cache.Put(path, pm)
	}
	return pm, nil
}

// matchLocked walks the tree for a canonical path. The caller holds m.mu.
func (m *Matcher) matchLocked(path string) (pathMatch, error) {
	raw := routepath.SplitSegments(path)
	segs := make([]string, len(raw))
	for i, s := range raw {
		d, err := routepath.DecodeSegment(s, true)
		if err != nil {
			return pathMatch{}, err
		}
		segs[i] = d
	}
	trailing := path != "/" && strings.HasSuffix(path, "/")

	accept := func(rec *route.Record, caps []capture) bool {
		e := m.entries[rec]
		if e == nil {
			return false
		}
		if rec.Strict && e.trailing != trailing {
			return false
		}
		for i, key := range rec.Keys {
			if i >= len(caps) {
				break
			}
			check := e.validators[key.Name]
			if check == nil {
				continue
			}
			for _, v := range caps[i].values {
				if check(v) != nil {
					return false
				}
			}
		}
		return true
	}

	rec, caps := m.root.match(segs, nil, accept)
	if rec == nil {
		return pathMatch{params: route.Params{}}, nil
	}
	params := make(route.Params, len(rec.Keys))
	for i, key := range rec.Keys {
		if i < len(caps) && caps[i].present {
			params[key.Name] = append([]string(nil), caps[i].values...)
		}
	}
	return pathMatch{rec: rec, params: params}, nil
}

func (m *Matcher) resolveNamed(raw route.RawLocation, current *route.Location) (*route.Location, error) {
	m.mu.RLock()
	rec, ok := m.byName[raw.Name]
	var e *entry
	if ok {
		e = m.entries[rec]
	}
	m.mu.RUnlock()
	if !ok {
		return nil, &RouteNotFoundError{Name: raw.Name}
	}

	// Declared params not given explicitly carry over from current.
	params := make(route.Params, len(rec.Keys))
	for _, key := range rec.Keys {
		if v, ok := raw.Params[key.Name]; ok {
			params[key.Name] = append([]string(nil), v...)
		} else if v, ok := current.Params[key.Name]; ok {
			params[key.Name] = append([]string(nil), v...)
		}
	}

	path, err := buildPath(rec, e, params)
	if err != nil {
		return nil, err
	}
	return buildLocation(rec, params, path, raw.Query, raw.Hash), nil
}

// buildPath fills rec's pattern with params. Absent optional values are
// dropped from params.
func buildPath(rec *route.Record, e *entry, params route.Params) (string, error) {
	var segs []string
	for _, tok := range e.tokens {
		if tok.kind == tokStatic {
			segs = append(segs, routepath.EncodeSegment(tok.literal))
			continue
		}

		values := nonEmpty(params[tok.name])
		if len(values) == 0 {
			delete(params, tok.name)
		}

		switch tok.kind {
		case tokParam, tokPlus:
			if len(values) == 0 {
				return "", &MissingRequiredParamError{Route: routeLabel(rec), Param: tok.name}
			}
		}
		if tok.kind == tokParam || tok.kind == tokOptional {
			if len(values) > 1 {
				return "", &MissingRequiredParamError{Route: routeLabel(rec), Param: tok.name, Reason: "expects a single value"}
			}
		}
		if tok.kind == tokCatchAll && len(values) > 0 {
			joined := strings.Join(values, "/")
			params[tok.name] = []string{joined}
			for _, part := range strings.Split(joined, "/") {
				segs = append(segs, routepath.EncodeSegment(part))
			}
			continue
		}

		check := e.validators[tok.name]
		for _, v := range values {
			if !tok.accepts(v) {
				return "", &MissingRequiredParamError{Route: routeLabel(rec), Param: tok.name, Reason: fmt.Sprintf("%q does not match (%s)", v, tok.pattern)}
			}
			if check != nil {
				if err := check(v); err != nil {
					return "", &MissingRequiredParamError{Route: routeLabel(rec), Param: tok.name, Reason: err.Error()}
				}
			}
			segs = append(segs, routepath.EncodeSegment(v))
		}
	}

	path := "/" + strings.Join(segs, "/")
	if e.trailing && path != "/" {
		path += "/"
	}
	return path, nil
}

func nonEmpty(values []string) []string {
	var out []string
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

func routeLabel(rec *route.Record) string {
	if rec.Name != "" {
		return rec.Name
	}
	return rec.Path
}

// buildLocation assembles a location for a matched record, or an unmatched
// location when rec is nil.
func buildLocation(rec *route.Record, params route.Params, path string, query route.Query, hash string) *route.Location {
	if query == nil {
		query = route.Query{}
	} else {
		query = query.Clone()
	}
	if params == nil {
		params = route.Params{}
	}
	hash = routepath.NormalizeHash(hash)

	loc := &route.Location{
		Path:     path,
		Params:   params,
		Query:    query,
		Hash:     hash,
		FullPath: route.BuildFullPath(path, query, hash),
		Meta:     route.Meta{},
	}
	if rec == nil {
		return loc
	}

	for _, r := range rec.Ancestry() {
		orig := r.Original()
		loc.Matched = append(loc.Matched, orig)
		for k, v := range orig.Meta {
			loc.Meta[k] = v
		}
	}
	loc.Name = rec.Original().Name
	return loc
}
