package route

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Bind copies params into the `param`-tagged fields of the struct target
// points to. String, bool, integer and float fields take the first value;
// []string fields take every value, and a single catch-all value is split
// on "/". Params missing from p leave their field untouched.
func (p Params) Bind(target any) error {
	if target == nil {
		return nil
	}
	ptr := reflect.ValueOf(target)
	if ptr.Kind() != reflect.Pointer || ptr.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("bind target must be a pointer to struct, got %T", target)
	}

	v := ptr.Elem()
	for _, field := range reflect.VisibleFields(v.Type()) {
		key, ok := field.Tag.Lookup("param")
		if !ok || key == "" || !field.IsExported() {
			continue
		}
		values := p[key]
		if len(values) == 0 {
			continue
		}
		if err := assign(v.FieldByIndex(field.Index), values); err != nil {
			return fmt.Errorf("param %q: %w", key, err)
		}
	}
	return nil
}

func assign(dst reflect.Value, values []string) error {
	if dst.Kind() == reflect.Slice {
		if dst.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("cannot bind into %s", dst.Type())
		}
		if len(values) == 1 && strings.Contains(values[0], "/") {
			values = strings.Split(values[0], "/")
		}
		dst.Set(reflect.ValueOf(append([]string(nil), values...)))
		return nil
	}

	raw := values[0]
	var err error
	switch dst.Kind() {
	case reflect.String:
		dst.SetString(raw)
		return nil
	case reflect.Bool:
		var b bool
		if b, err = strconv.ParseBool(raw); err == nil {
			dst.SetBool(b)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var n int64
		if n, err = strconv.ParseInt(raw, 10, dst.Type().Bits()); err == nil {
			dst.SetInt(n)
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		var n uint64
		if n, err = strconv.ParseUint(raw, 10, dst.Type().Bits()); err == nil {
			dst.SetUint(n)
		}
	case reflect.Float32, reflect.Float64:
		var f float64
		if f, err = strconv.ParseFloat(raw, dst.Type().Bits()); err == nil {
			dst.SetFloat(f)
		}
	default:
		return fmt.Errorf("cannot bind into %s", dst.Type())
	}
	if err != nil {
		return fmt.Errorf("%q is not a valid %s", raw, dst.Kind())
	}
	return nil
}
