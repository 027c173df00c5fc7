package routepath

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseQuery(t *testing.T) {
	tests := []struct {
		raw  string
		want map[string][]string
	}{
		{"", map[string][]string{}},
		{"?a=1", map[string][]string{"a": {"1"}}},
		{"a=1&a=2&b=x", map[string][]string{"a": {"1", "2"}, "b": {"x"}}},
		{"flag", map[string][]string{"flag": {""}}},
		{"q=hello+world&e=%E2%9C%93", map[string][]string{"q": {"hello world"}, "e": {"✓"}}},
		{"bad=%zz", map[string][]string{"bad": {"%zz"}}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, ParseQuery(tt.raw)); diff != "" {
			t.Errorf("ParseQuery(%q) mismatch (-want +got):\n%s", tt.raw, diff)
		}
	}
}

func TestStringifyQuery(t *testing.T) {
	tests := []struct {
		q    map[string][]string
		want string
	}{
		{nil, ""},
		{map[string][]string{"b": {"2"}, "a": {"1"}}, "a=1&b=2"},
		{map[string][]string{"a": {"1", "2"}}, "a=1&a=2"},
		{map[string][]string{"flag": {""}}, "flag"},
		{map[string][]string{"flag": nil}, "flag"},
		{map[string][]string{"q": {"a b"}}, "q=a+b"},
	}
	for _, tt := range tests {
		if got := StringifyQuery(tt.q); got != tt.want {
			t.Errorf("StringifyQuery(%v) = %q, want %q", tt.q, got, tt.want)
		}
	}
}

func TestQueryEqual(t *testing.T) {
	tests := []struct {
		a, b map[string][]string
		want bool
	}{
		{nil, nil, true},
		{nil, map[string][]string{}, true},
		{map[string][]string{"a": {"1"}}, map[string][]string{"a": {"1"}}, true},
		{map[string][]string{"a": {"1"}, "b": {"2"}}, map[string][]string{"b": {"2"}, "a": {"1"}}, true},
		{map[string][]string{"a": {"1", "2"}}, map[string][]string{"a": {"2", "1"}}, false},
		{map[string][]string{"a": {"1"}}, map[string][]string{}, false},
		{map[string][]string{}, map[string][]string{"a": {"1"}}, false},
		{map[string][]string{"a": nil}, map[string][]string{}, true},
	}
	for _, tt := range tests {
		if got := QueryEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("QueryEqual(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}
