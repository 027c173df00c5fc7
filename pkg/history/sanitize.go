package history

import (
	"math"
	"reflect"
)

// DefaultSanitizeDepth caps how deep Sanitize descends.
const DefaultSanitizeDepth = 10

// Sanitize returns a JSON-safe copy of state. Values that cannot round-trip
// through JSON are dropped: functions, channels, structs, complex numbers,
// non-finite floats and maps with non-string keys. Cycles are cut at the
// repeated reference and nesting below maxDepth is dropped. A non-positive
// maxDepth uses DefaultSanitizeDepth.
//
// Sanitize never fails; it produces the largest plain subset it can.
func Sanitize(state map[string]any, maxDepth int) map[string]any {
	if state == nil {
		return nil
	}
	if maxDepth <= 0 {
		maxDepth = DefaultSanitizeDepth
	}
	s := sanitizer{maxDepth: maxDepth, seen: make(map[uintptr]bool)}
	out, ok := s.value(reflect.ValueOf(state), 0)
	if !ok {
		return map[string]any{}
	}
	m, _ := out.(map[string]any)
	return m
}

type sanitizer struct {
	maxDepth int

	// seen holds the references on the current descent path.
	seen map[uintptr]bool
}

func (s *sanitizer) value(v reflect.Value, depth int) (any, bool) {
	if !v.IsValid() {
		return nil, true
	}
	if depth > s.maxDepth {
		return nil, false
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil, true
		}
		return s.value(v.Elem(), depth)

	case reflect.Pointer:
		if v.IsNil() {
			return nil, true
		}
		if !s.enter(v.Pointer()) {
			return nil, false
		}
		defer s.leave(v.Pointer())
		return s.value(v.Elem(), depth)

	case reflect.Bool:
		return v.Bool(), true

	case reflect.String:
		return v.String(), true

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return v.Uint(), true

	case reflect.Float32, reflect.Float64:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, false
		}
		return f, true

	case reflect.Map:
		if v.Type().Key().Kind() != reflect.String {
			return nil, false
		}
		if v.IsNil() {
			return nil, true
		}
		if !s.enter(v.Pointer()) {
			return nil, false
		}
		defer s.leave(v.Pointer())

		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			if val, ok := s.value(iter.Value(), depth+1); ok {
				out[iter.Key().String()] = val
			}
		}
		return out, true

	case reflect.Slice:
		if v.IsNil() {
			return nil, true
		}
		if v.Len() > 0 {
			if !s.enter(v.Pointer()) {
				return nil, false
			}
			defer s.leave(v.Pointer())
		}
		return s.list(v, depth), true

	case reflect.Array:
		return s.list(v, depth), true

	default:
		// Func, Chan, Struct, Complex, UnsafePointer.
		return nil, false
	}
}

// list keeps positions stable: dropped elements become nil.
func (s *sanitizer) list(v reflect.Value, depth int) []any {
	out := make([]any, v.Len())
	for i := 0; i < v.Len(); i++ {
		if val, ok := s.value(v.Index(i), depth+1); ok {
			out[i] = val
		}
	}
	return out
}

func (s *sanitizer) enter(p uintptr) bool {
	if s.seen[p] {
		return false
	}
	s.seen[p] = true
	return true
}

func (s *sanitizer) leave(p uintptr) {
	delete(s.seen, p)
}
