package route

import "strings"

// Meta is an opaque key/value bag attached to a route.
type Meta map[string]any

// Route is a route pattern registration.
type Route struct {
	// Path is the pattern, e.g. "/users/:id". Child paths without a leading
	// "/" are relative to the parent.
	Path string

	// Name identifies the route for name-based navigation. Names are unique
	// across the whole tree.
	Name string

	// Component is the default view. The engine never inspects it.
	Component any

	// Components holds named views in addition to Component.
	Components map[string]any

	// Meta is merged root to leaf into the resolved location.
	Meta Meta

	// Redirect makes the route a redirect source.
	Redirect RedirectTarget

	// BeforeEnter guards run only when entering this route.
	BeforeEnter []*Guard

	// Params declares per-param validators: "int", "uint", "uuid",
	// "string" or "re:<regex>".
	Params map[string]string

	// Alias lists additional patterns resolving to this route.
	Alias []string

	// Children are nested routes.
	Children []Route

	// Sensitive enables case-sensitive static segments.
	Sensitive bool

	// Strict makes a trailing slash significant.
	Strict bool
}

// ParamKey describes a param declared by a pattern segment.
type ParamKey struct {
	Name       string
	Optional   bool
	Repeatable bool
	CatchAll   bool

	// Pattern is the inline regex from ":name(regex)", if any.
	Pattern string
}

// Record is a registered, normalized route.
type Record struct {
	// Path is the full path pattern including ancestors.
	Path string

	// Name is the unique route name, or "".
	Name string

	// Components maps view names to components; Component is stored under
	// "default".
	Components map[string]any

	Meta        Meta
	Redirect    RedirectTarget
	BeforeEnter []*Guard

	// Validators are the effective per-param validators, inherited from
	// ancestors.
	Validators map[string]string

	// Keys are the params declared along the full path, in order.
	Keys []ParamKey

	Parent   *Record
	Children []*Record

	// AliasOf points at the original record when this record was created
	// from an alias.
	AliasOf *Record

	Sensitive bool
	Strict    bool

	// Seq is the registration order; lower registered earlier.
	Seq uint64
}

// Component returns the default view.
func (r *Record) Component() any {
	if r == nil || r.Components == nil {
		return nil
	}
	return r.Components["default"]
}

// Original returns the record an alias points at, or r itself.
func (r *Record) Original() *Record {
	if r != nil && r.AliasOf != nil {
		return r.AliasOf
	}
	return r
}

// Ancestry returns the record chain from the root down to r.
func (r *Record) Ancestry() []*Record {
	var chain []*Record
	for cur := r; cur != nil; cur = cur.Parent {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// IsDescendantOf reports whether r is other or sits below it.
func (r *Record) IsDescendantOf(other *Record) bool {
	for cur := r; cur != nil; cur = cur.Parent {
		if cur == other || cur.AliasOf == other {
			return true
		}
	}
	return false
}

// HasKey reports whether the record declares a param named name.
func (r *Record) HasKey(name string) bool {
	for _, k := range r.Keys {
		if k.Name == name {
			return true
		}
	}
	return false
}

// JoinPath concatenates a parent pattern and a child pattern.
// Absolute child paths are returned as-is.
func JoinPath(parent, child string) string {
	if strings.HasPrefix(child, "/") || parent == "" {
		if child == "" {
			return "/"
		}
		return child
	}
	if child == "" {
		return parent
	}
	if strings.HasSuffix(parent, "/") {
		return parent + child
	}
	return parent + "/" + child
}
