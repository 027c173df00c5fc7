package router

import (
	"sort"
	"strings"

	"github.com/vango-dev/waypoint/pkg/route"
)

// node is a node in the segment tree. Static children are indexed by
// segment so a lookup costs one map lookup per path segment; dynamic
// children are kept in priority order and tried only when no static child
// leads to a match.
type node struct {
	// tok is the segment this node matches. The root has a zero token.
	tok token

	// static children keyed by staticKey.
	static map[string]*node

	// params are dynamic children sorted by rank, then insertion.
	params []*node

	// records terminating at this node, ordered by registration.
	records []*route.Record
}

func newNode(tok token) *node {
	return &node{tok: tok}
}

// staticKey separates case-sensitive from case-folded static children.
func staticKey(literal string, sensitive bool) string {
	if sensitive {
		return "s:" + literal
	}
	return "i:" + strings.ToLower(literal)
}

// child returns the child for tok, creating it if needed.
func (n *node) child(tok token, sensitive bool) *node {
	if tok.kind == tokStatic {
		key := staticKey(tok.literal, sensitive)
		if n.static == nil {
			n.static = make(map[string]*node)
		}
		if c, ok := n.static[key]; ok {
			return c
		}
		c := newNode(tok)
		n.static[key] = c
		return c
	}

	sig := tok.signature()
	for _, c := range n.params {
		if c.tok.signature() == sig {
			return c
		}
	}
	c := newNode(tok)
	n.params = append(n.params, c)
	sort.SliceStable(n.params, func(i, j int) bool {
		return n.params[i].tok.rank() < n.params[j].tok.rank()
	})
	return c
}

// insert walks or creates the path for tokens and attaches rec to the
// final node.
func (n *node) insert(tokens []token, rec *route.Record) {
	cur := n
	for _, tok := range tokens {
		cur = cur.child(tok, rec.Sensitive)
	}
	cur.records = append(cur.records, rec)
	// A child sharing its parent's full path (a default child) wins over
	// the parent; otherwise registration order decides.
	sort.SliceStable(cur.records, func(i, j int) bool {
		di, dj := depth(cur.records[i]), depth(cur.records[j])
		if di != dj {
			return di > dj
		}
		return cur.records[i].Seq < cur.records[j].Seq
	})
}

func depth(rec *route.Record) int {
	d := 0
	for cur := rec; cur != nil; cur = cur.Parent {
		d++
	}
	return d
}

// remove detaches rec from the node at tokens and prunes nodes left empty.
func (n *node) remove(tokens []token, rec *route.Record) bool {
	if len(tokens) == 0 {
		for i, r := range n.records {
			if r == rec {
				n.records = append(n.records[:i], n.records[i+1:]...)
				return true
			}
		}
		return false
	}

	tok := tokens[0]
	if tok.kind == tokStatic {
		key := staticKey(tok.literal, rec.Sensitive)
		c, ok := n.static[key]
		if !ok || !c.remove(tokens[1:], rec) {
			return false
		}
		if c.empty() {
			delete(n.static, key)
		}
		return true
	}

	sig := tok.signature()
	for i, c := range n.params {
		if c.tok.signature() != sig {
			continue
		}
		if !c.remove(tokens[1:], rec) {
			return false
		}
		if c.empty() {
			n.params = append(n.params[:i], n.params[i+1:]...)
		}
		return true
	}
	return false
}

func (n *node) empty() bool {
	return len(n.records) == 0 && len(n.static) == 0 && len(n.params) == 0
}

// capture is the value bound to one dynamic segment along a match.
type capture struct {
	values  []string
	present bool
}

// acceptFunc decides whether a record reached with caps is a real match.
type acceptFunc func(rec *route.Record, caps []capture) bool

// match finds the most specific record for segs. Static children are tried
// first, then dynamic children in rank order; a branch that fails as a
// whole is abandoned and the next candidate is tried, so a segment never
// partially matches.
func (n *node) match(segs []string, caps []capture, accept acceptFunc) (*route.Record, []capture) {
	if len(segs) == 0 {
		for _, rec := range n.records {
			if accept(rec, caps) {
				return rec, caps
			}
		}
	} else if n.static != nil {
		seg := segs[0]
		if c, ok := n.static[staticKey(seg, true)]; ok {
			if rec, out := c.match(segs[1:], caps, accept); rec != nil {
				return rec, out
			}
		}
		if c, ok := n.static[staticKey(seg, false)]; ok {
			if rec, out := c.match(segs[1:], caps, accept); rec != nil {
				return rec, out
			}
		}
	}

	for _, c := range n.params {
		if rec, out := c.matchDynamic(segs, caps, accept); rec != nil {
			return rec, out
		}
	}
	return nil, nil
}

// matchDynamic tries the ways this dynamic node can consume segs.
func (n *node) matchDynamic(segs []string, caps []capture, accept acceptFunc) (*route.Record, []capture) {
	tok := n.tok
	base := len(caps)

	try := func(consumed int, c capture) (*route.Record, []capture) {
		next := append(caps[:base:base], c)
		return n.match(segs[consumed:], next, accept)
	}

	switch tok.kind {
	case tokParam, tokOptional:
		if len(segs) > 0 && tok.accepts(segs[0]) {
			if rec, out := try(1, capture{values: []string{segs[0]}, present: true}); rec != nil {
				return rec, out
			}
		}
		if tok.kind == tokOptional {
			return try(0, capture{})
		}

	case tokPlus, tokStar:
		// Greedy: the longest run of acceptable segments first.
		run := 0
		for run < len(segs) && tok.accepts(segs[run]) {
			run++
		}
		min := 1
		if tok.kind == tokStar {
			min = 0
		}
		for k := run; k >= min; k-- {
			c := capture{present: k > 0}
			if k > 0 {
				c.values = append([]string(nil), segs[:k]...)
			}
			if rec, out := try(k, c); rec != nil {
				return rec, out
			}
		}

	case tokCatchAll:
		c := capture{present: len(segs) > 0}
		if len(segs) > 0 {
			c.values = []string{strings.Join(segs, "/")}
		}
		return try(len(segs), c)
	}
	return nil, nil
}
