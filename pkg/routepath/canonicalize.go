package routepath

import (
	"errors"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Parts is a location string split into its components.
type Parts struct {
	// Path is the canonical path, always starting with "/".
	Path string

	// Query is the raw query string without the leading "?".
	Query string

	// Hash is the fragment including the leading "#", or "" when absent.
	Hash string
}

// Path canonicalization errors.
var (
	ErrInvalidPath           = errors.New("invalid path")
	ErrBackslashInPath       = errors.New("path contains backslash")
	ErrNullByteInPath        = errors.New("path contains null byte")
	ErrInvalidPercentEscape  = errors.New("invalid percent escape sequence")
	ErrPathEscapesRoot       = errors.New("path escapes root via ..")
	ErrEncodedSlashInSegment = errors.New("encoded slash (%2F) in non-catch-all segment")
	ErrAbsoluteURL           = errors.New("navigation target must be a path, not an absolute URL")
)

// Split separates a location string into path, query and hash.
// The path is not canonicalized.
func Split(input string) Parts {
	rest, hash, hasHash := strings.Cut(input, "#")
	path, query, _ := strings.Cut(rest, "?")
	p := Parts{Path: path, Query: query}
	if hasHash {
		p.Hash = "#" + hash
	}
	return p
}

// Join rebuilds a location string from its parts.
func Join(path, query, hash string) string {
	var b strings.Builder
	b.Grow(len(path) + len(query) + len(hash) + 1)
	b.WriteString(path)
	if query != "" {
		b.WriteByte('?')
		b.WriteString(query)
	}
	if hash != "" {
		if !strings.HasPrefix(hash, "#") {
			b.WriteByte('#')
		}
		b.WriteString(hash)
	}
	return b.String()
}

// NormalizeHash returns hash with exactly one leading "#", or "" for an empty hash.
func NormalizeHash(hash string) string {
	hash = strings.TrimLeft(hash, "#")
	if hash == "" {
		return ""
	}
	return "#" + hash
}

// CanonicalizePath normalizes a location path.
//
// The following transformations are applied:
//   - Ensure a leading slash
//   - Collapse multiple slashes (/blog//post → /blog/post)
//   - Remove "." segments (/blog/./post → /blog/post)
//   - Resolve ".." segments (/blog/../other → /other)
//   - Remove trailing slash unless keepTrailing is set (root "/" is kept)
//
// Rejected inputs: backslashes, NUL bytes (literal or %00), invalid
// percent-escapes and ".." escaping the root.
func CanonicalizePath(path string, keepTrailing bool) (string, error) {
	if path == "" {
		return "/", nil
	}
	if strings.Contains(path, "\\") {
		return "", ErrBackslashInPath
	}
	if strings.Contains(path, "\x00") || strings.Contains(strings.ToUpper(path), "%00") {
		return "", ErrNullByteInPath
	}
	if strings.Contains(path, "%") {
		if err := validatePercentEscapes(path); err != nil {
			return "", err
		}
	}

	trailing := len(path) > 1 && strings.HasSuffix(path, "/")

	segments := strings.Split(path, "/")
	result := make([]string, 0, len(segments))
	for _, seg := range segments {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(result) == 0 {
				return "", ErrPathEscapesRoot
			}
			result = result[:len(result)-1]
		default:
			result = append(result, seg)
		}
	}

	out := "/" + strings.Join(result, "/")
	if keepTrailing && trailing && out != "/" {
		out += "/"
	}
	return out, nil
}

// ResolveRelative resolves target against the directory of base, the way a
// relative link would. Absolute targets are returned unchanged.
func ResolveRelative(base, target string) string {
	if strings.HasPrefix(target, "/") {
		return target
	}
	if target == "" {
		return base
	}
	dir := base
	if idx := strings.LastIndex(base, "/"); idx >= 0 {
		dir = base[:idx+1]
	}
	return dir + target
}

// CheckNavigable rejects targets that are absolute URLs. Navigation targets
// are always in-app paths.
func CheckNavigable(target string) error {
	if strings.HasPrefix(target, "http://") ||
		strings.HasPrefix(target, "https://") ||
		strings.HasPrefix(target, "//") {
		return ErrAbsoluteURL
	}
	return nil
}

// validatePercentEscapes checks that all percent-escapes are valid.
func validatePercentEscapes(path string) error {
	for i := 0; i < len(path); i++ {
		if path[i] != '%' {
			continue
		}
		if i+2 >= len(path) || !isHexDigit(path[i+1]) || !isHexDigit(path[i+2]) {
			return ErrInvalidPercentEscape
		}
		i += 2
	}
	return nil
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

// DecodeSegment decodes a single path segment and normalizes it to NFC, so
// that composed and decomposed spellings of the same text match the same
// route. For non-catch-all params a decoded "/" is rejected.
func DecodeSegment(segment string, isCatchAll bool) (string, error) {
	decoded, err := url.PathUnescape(segment)
	if err != nil {
		return "", ErrInvalidPercentEscape
	}
	if !isCatchAll && strings.Contains(decoded, "/") {
		return "", ErrEncodedSlashInSegment
	}
	return norm.NFC.String(decoded), nil
}

// EncodeSegment percent-encodes a param value for use in a path segment.
func EncodeSegment(value string) string {
	return url.PathEscape(value)
}

// SplitSegments splits a canonical path into raw (still encoded) segments.
func SplitSegments(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
