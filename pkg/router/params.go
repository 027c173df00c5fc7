package router

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// uuidRegex matches valid UUIDs.
var uuidRegex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)

// ValidateUUID validates that a string is a valid UUID.
func ValidateUUID(value string) error {
	if !uuidRegex.MatchString(value) {
		return fmt.Errorf("invalid UUID: %s", value)
	}
	return nil
}

// ValidateInt validates that a string is a valid integer.
func ValidateInt(value string) error {
	if _, err := strconv.ParseInt(value, 10, 64); err != nil {
		return fmt.Errorf("invalid integer: %s", value)
	}
	return nil
}

// ValidateParam validates a parameter value against its declared type.
// Unknown types accept any value.
func ValidateParam(value, paramType string) error {
	switch paramType {
	case "int", "int64", "int32", "int16", "int8":
		return ValidateInt(value)
	case "uint", "uint64", "uint32", "uint16", "uint8":
		if _, err := strconv.ParseUint(value, 10, 64); err != nil {
			return fmt.Errorf("invalid unsigned integer: %s", value)
		}
	case "uuid":
		return ValidateUUID(value)
	}
	return nil
}

// validator checks one param value.
type validator func(value string) error

// compileValidator turns a declared validator into a check. "re:<expr>"
// declares an anchored regular expression.
func compileValidator(spec string) (validator, error) {
	if expr, ok := strings.CutPrefix(spec, "re:"); ok {
		re, err := regexp.Compile("^(?:" + expr + ")$")
		if err != nil {
			return nil, err
		}
		return func(value string) error {
			if !re.MatchString(value) {
				return fmt.Errorf("%q does not match %s", value, expr)
			}
			return nil
		}, nil
	}
	switch spec {
	case "", "string", "int", "int64", "int32", "int16", "int8",
		"uint", "uint64", "uint32", "uint16", "uint8", "uuid":
	default:
		return nil, fmt.Errorf("unknown param type %q", spec)
	}
	return func(value string) error {
		return ValidateParam(value, spec)
	}, nil
}
