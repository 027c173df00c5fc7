package routepath

import (
	"net/url"
	"sort"
	"strings"
)

// ParseQuery parses a raw query string (with or without the leading "?").
// A key without "=" yields an empty value. Malformed escapes are kept
// verbatim instead of failing the whole navigation.
func ParseQuery(raw string) map[string][]string {
	raw = strings.TrimPrefix(raw, "?")
	out := make(map[string][]string)
	if raw == "" {
		return out
	}
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		key, value, _ := strings.Cut(pair, "=")
		key = unescapeQuery(key)
		out[key] = append(out[key], unescapeQuery(value))
	}
	return out
}

func unescapeQuery(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}

// StringifyQuery renders a query without the leading "?". Keys are sorted
// so equal queries always produce the same string. Empty values render as a
// bare key.
func StringifyQuery(q map[string][]string) string {
	if len(q) == 0 {
		return ""
	}
	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		values := q[k]
		if len(values) == 0 {
			values = []string{""}
		}
		for _, v := range values {
			if b.Len() > 0 {
				b.WriteByte('&')
			}
			b.WriteString(url.QueryEscape(k))
			if v != "" {
				b.WriteByte('=')
				b.WriteString(url.QueryEscape(v))
			}
		}
	}
	return b.String()
}

// QueryEqual compares two queries by value. Key order is irrelevant, value
// order within a key is significant, and a missing key equals an empty list.
func QueryEqual(a, b map[string][]string) bool {
	for k, av := range a {
		if !stringsEqual(av, b[k]) {
			return false
		}
	}
	for k, bv := range b {
		if _, ok := a[k]; !ok && len(bv) > 0 {
			return false
		}
	}
	return true
}

func stringsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
