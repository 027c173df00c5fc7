package router

import (
	"errors"
	"testing"
)

func TestParsePattern(t *testing.T) {
	tests := []struct {
		pattern  string
		kinds    []tokenKind
		names    []string
		trailing bool
	}{
		{"/", nil, nil, false},
		{"/users", []tokenKind{tokStatic}, []string{""}, false},
		{"/users/", []tokenKind{tokStatic}, []string{""}, true},
		{"/users/:id", []tokenKind{tokStatic, tokParam}, []string{"", "id"}, false},
		{"/users/:id?", []tokenKind{tokStatic, tokOptional}, []string{"", "id"}, false},
		{"/tags/:tag+", []tokenKind{tokStatic, tokPlus}, []string{"", "tag"}, false},
		{"/tags/:tag*", []tokenKind{tokStatic, tokStar}, []string{"", "tag"}, false},
		{"/files/*path", []tokenKind{tokStatic, tokCatchAll}, []string{"", "path"}, false},
		{"/*", []tokenKind{tokCatchAll}, []string{"pathMatch"}, false},
		{`/n/:id(\d+)`, []tokenKind{tokStatic, tokParam}, []string{"", "id"}, false},
	}

	for _, tt := range tests {
		tokens, trailing, err := parsePattern(tt.pattern)
		if err != nil {
			t.Errorf("parsePattern(%q) error: %v", tt.pattern, err)
			continue
		}
		if trailing != tt.trailing {
			t.Errorf("parsePattern(%q) trailing = %v, want %v", tt.pattern, trailing, tt.trailing)
		}
		if len(tokens) != len(tt.kinds) {
			t.Errorf("parsePattern(%q) = %d tokens, want %d", tt.pattern, len(tokens), len(tt.kinds))
			continue
		}
		for i, tok := range tokens {
			if tok.kind != tt.kinds[i] || tok.name != tt.names[i] {
				t.Errorf("parsePattern(%q)[%d] = (%v, %q), want (%v, %q)", tt.pattern, i, tok.kind, tok.name, tt.kinds[i], tt.names[i])
			}
		}
	}
}

func TestParsePatternErrors(t *testing.T) {
	patterns := []string{
		"users",
		"/a//b",
		"/files/*rest/more",
		"/:id/:id",
		"/:",
		`/:id(\d+`,
		"/:id!",
		"/:id([)",
	}
	for _, p := range patterns {
		_, _, err := parsePattern(p)
		if err == nil {
			t.Errorf("parsePattern(%q) expected error", p)
			continue
		}
		if !errors.Is(err, ErrInvalidPattern) {
			t.Errorf("parsePattern(%q) error %v is not ErrInvalidPattern", p, err)
		}
	}
}

func TestTokenRank(t *testing.T) {
	constrained, _ := parseSegment("/", `:id(\d+)`)
	plain, _ := parseSegment("/", ":id")
	optional, _ := parseSegment("/", ":id?")
	plus, _ := parseSegment("/", ":id+")
	catchAll, _ := parseSegment("/", "*rest")

	order := []token{constrained, plain, optional, plus, catchAll}
	for i := 1; i < len(order); i++ {
		if order[i-1].rank() >= order[i].rank() {
			t.Errorf("rank(%s) = %d should be below rank(%s) = %d",
				order[i-1].signature(), order[i-1].rank(), order[i].signature(), order[i].rank())
		}
	}
}

func TestTokenAccepts(t *testing.T) {
	constrained, _ := parseSegment("/", `:id(\d+)`)
	if !constrained.accepts("42") || constrained.accepts("abc") {
		t.Error("constrained param should accept digits only")
	}
	plain, _ := parseSegment("/", ":id")
	if plain.accepts("a/b") {
		t.Error("plain param must not accept a slash")
	}
	catchAll, _ := parseSegment("/", "*rest")
	if !catchAll.accepts("a/b") {
		t.Error("catch-all should accept a slash")
	}
}
