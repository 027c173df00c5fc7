package route

import "github.com/vango-dev/waypoint/pkg/routepath"

// RedirectTarget is where a redirecting route sends navigations. It is one
// of RedirectPath, RedirectLocation or RedirectFunc.
type RedirectTarget interface {
	target(to *Location) RawLocation
}

// RedirectPath redirects to a literal location string.
type RedirectPath string

func (p RedirectPath) target(*Location) RawLocation {
	return ParsePath(string(p))
}

// RedirectLocation redirects to a structured location.
type RedirectLocation RawLocation

func (l RedirectLocation) target(*Location) RawLocation {
	return RawLocation(l)
}

// RedirectFunc computes the redirect from the location being redirected.
type RedirectFunc func(to *Location) RawLocation

func (f RedirectFunc) target(to *Location) RawLocation {
	return f(to)
}

// ExpandRedirect evaluates target for to. The query and hash of to carry
// over unless the target sets its own. Name-based targets without params
// inherit to's params; relative paths resolve against to's path.
func ExpandRedirect(target RedirectTarget, to *Location) RawLocation {
	raw := target.target(to)
	if raw.Query == nil && to != nil {
		raw.Query = to.Query.Clone()
	}
	if raw.Hash == "" && to != nil {
		raw.Hash = to.Hash
	}
	if raw.Path != "" {
		if to != nil {
			raw.Path = routepath.ResolveRelative(to.Path, raw.Path)
		}
		raw.Params = nil
	} else if raw.Params == nil && to != nil {
		raw.Params = to.Params.Clone()
	}
	return raw
}
