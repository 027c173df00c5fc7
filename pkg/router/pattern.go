package router

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/vango-dev/waypoint/pkg/route"
	"golang.org/x/text/unicode/norm"
)

// tokenKind is the kind of a pattern segment. The order is the matching
// priority among dynamic siblings.
type tokenKind int

const (
	tokStatic tokenKind = iota
	tokParam
	tokOptional
	tokPlus
	tokStar
	tokCatchAll
)

// token is one parsed pattern segment.
type token struct {
	kind tokenKind

	// literal is the decoded, NFC-normalized static segment.
	literal string

	name    string
	pattern string
	re      *regexp.Regexp
}

// rank orders dynamic siblings: constrained params sort before plain ones
// of the same kind.
func (t token) rank() int {
	r := int(t.kind) * 2
	if t.re == nil {
		r++
	}
	return r
}

// signature identifies tree nodes that can be shared between patterns.
func (t token) signature() string {
	switch t.kind {
	case tokParam:
		return ":(" + t.pattern + ")"
	case tokOptional:
		return ":(" + t.pattern + ")?"
	case tokPlus:
		return ":(" + t.pattern + ")+"
	case tokStar:
		return ":(" + t.pattern + ")*"
	case tokCatchAll:
		return "*"
	default:
		return t.literal
	}
}

func (t token) key() route.ParamKey {
	return route.ParamKey{
		Name:       t.name,
		Optional:   t.kind == tokOptional || t.kind == tokStar,
		Repeatable: t.kind == tokPlus || t.kind == tokStar,
		CatchAll:   t.kind == tokCatchAll,
		Pattern:    t.pattern,
	}
}

// accepts reports whether a single segment value satisfies the token's
// inline constraint.
func (t token) accepts(value string) bool {
	if t.kind != tokCatchAll && strings.Contains(value, "/") {
		return false
	}
	return t.re == nil || t.re.MatchString(value)
}

// parsePattern splits a full path pattern into tokens. It reports whether
// the pattern ends with a trailing slash.
func parsePattern(pattern string) ([]token, bool, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, false, &PatternError{Pattern: pattern, Reason: "must start with \"/\""}
	}
	trailing := len(pattern) > 1 && strings.HasSuffix(pattern, "/")

	raw := strings.Split(strings.Trim(pattern, "/"), "/")
	if len(raw) == 1 && raw[0] == "" {
		return nil, trailing, nil
	}

	tokens := make([]token, 0, len(raw))
	seen := make(map[string]bool)
	for i, seg := range raw {
		if seg == "" {
			return nil, false, &PatternError{Pattern: pattern, Reason: "empty segment"}
		}
		tok, err := parseSegment(pattern, seg)
		if err != nil {
			return nil, false, err
		}
		if tok.kind == tokCatchAll && i != len(raw)-1 {
			return nil, false, &PatternError{Pattern: pattern, Reason: "catch-all must be the last segment"}
		}
		if tok.kind != tokStatic {
			if seen[tok.name] {
				return nil, false, &PatternError{Pattern: pattern, Reason: "param " + tok.name + " declared twice"}
			}
			seen[tok.name] = true
		}
		tokens = append(tokens, tok)
	}
	return tokens, trailing, nil
}

func parseSegment(pattern, seg string) (token, error) {
	switch seg[0] {
	case '*':
		name := seg[1:]
		if name == "" {
			name = "pathMatch"
		}
		if !isIdent(name) {
			return token{}, &PatternError{Pattern: pattern, Reason: "bad catch-all name " + name}
		}
		return token{kind: tokCatchAll, name: name}, nil

	case ':':
		rest := seg[1:]
		n := 0
		for n < len(rest) && isIdentByte(rest[n]) {
			n++
		}
		if n == 0 {
			return token{}, &PatternError{Pattern: pattern, Reason: "param without a name in " + seg}
		}
		tok := token{kind: tokParam, name: rest[:n]}
		rest = rest[n:]

		if strings.HasPrefix(rest, "(") {
			end := closingParen(rest)
			if end < 0 {
				return token{}, &PatternError{Pattern: pattern, Reason: "unbalanced parenthesis in " + seg}
			}
			tok.pattern = rest[1:end]
			re, err := regexp.Compile("^(?:" + tok.pattern + ")$")
			if err != nil {
				return token{}, &PatternError{Pattern: pattern, Reason: err.Error()}
			}
			tok.re = re
			rest = rest[end+1:]
		}

		switch rest {
		case "":
		case "?":
			tok.kind = tokOptional
		case "+":
			tok.kind = tokPlus
		case "*":
			tok.kind = tokStar
		default:
			return token{}, &PatternError{Pattern: pattern, Reason: "unexpected " + rest + " after param " + tok.name}
		}
		return tok, nil

	default:
		literal, err := url.PathUnescape(seg)
		if err != nil {
			return token{}, &PatternError{Pattern: pattern, Reason: "bad escape in " + seg}
		}
		return token{kind: tokStatic, literal: norm.NFC.String(literal)}, nil
	}
}

func closingParen(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isIdent(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isIdentByte(s[i]) {
			return false
		}
	}
	return s != ""
}
