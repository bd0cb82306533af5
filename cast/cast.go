package cast

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	spf13cast "github.com/spf13/cast"
)

// Common casting errors. Callers should match with errors.Is; every failure
// returned by To wraps one of these.
var (
	// ErrCast is returned when a raw value cannot be converted to the
	// requested type.
	ErrCast = errors.New("cannot cast value")

	// ErrUnknownType is returned when the requested Type is not one of the
	// built-in types and does not reference a registered custom caster.
	ErrUnknownType = errors.New("unknown type")

	// ErrUnknownToken is returned by TokenStrict casts when the raw text has
	// not been registered with RegisterToken.
	ErrUnknownToken = fmt.Errorf("%w: token not registered", ErrCast)

	// ErrUnknownRef is returned by RefStrict casts when the path has not been
	// registered with RegisterRef.
	ErrUnknownRef = fmt.Errorf("%w: reference not registered", ErrCast)
)

// Type identifies the target type of a cast. The zero value is not a valid
// type; use one of the constants or Custom.
type Type string

// Built-in target types.
const (
	// String passes strings through and stringifies other scalar values.
	String Type = "string"

	// Int parses the entire raw string as a base-10 integer. Partial parses
	// ("42abc", "42.5") are errors, not truncations.
	Int Type = "integer"

	// IntNonNegative is Int restricted to values >= 0.
	IntNonNegative Type = "non_neg_integer"

	// IntPositive is Int restricted to values > 0.
	IntPositive Type = "pos_integer"

	// IntNegative is Int restricted to values < 0.
	IntNegative Type = "neg_integer"

	// Float parses the entire raw string as a float64.
	Float Type = "float"

	// Bool matches exactly "true" or "false", case-insensitively. Anything
	// else, including "1" and "yes", is an error.
	Bool Type = "boolean"

	// Token mints an identifier token from any raw string.
	Token Type = "token"

	// TokenStrict accepts only strings previously registered with
	// RegisterToken.
	TokenStrict Type = "token_strict"

	// Ref resolves a dot-separated path. The path must be syntactically
	// valid (non-empty identifier segments); if a value was registered for
	// it with RegisterRef that value is returned, otherwise the validated
	// path itself is.
	Ref Type = "ref"

	// RefStrict is Ref, but the path must resolve against the reference
	// registry.
	RefStrict Type = "ref_strict"

	// Any passes the raw value through unchanged.
	Any Type = "any"
)

const customPrefix = "custom:"

// Custom returns the Type tag referencing the caster registered under name.
// The tag is a stable string so descriptors using custom casters still hash
// deterministically for caching.
func Custom(name string) Type {
	return Type(customPrefix + name)
}

// To converts raw into the target type t. Values that already have the
// target's native type are returned unchanged. A nil raw value is an error
// for every type except Any.
func To(raw any, t Type) (any, error) {
	if t == Any {
		return raw, nil
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: nil value to %s", ErrCast, t)
	}

	if name, ok := strings.CutPrefix(string(t), customPrefix); ok {
		return toCustom(raw, name)
	}

	switch t {
	case String:
		return toString(raw)
	case Int, IntNonNegative, IntPositive, IntNegative:
		return toInt(raw, t)
	case Float:
		return toFloat(raw)
	case Bool:
		return toBool(raw)
	case Token:
		return toToken(raw, false)
	case TokenStrict:
		return toToken(raw, true)
	case Ref:
		return toRef(raw, false)
	case RefStrict:
		return toRef(raw, true)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

// Infer derives a Type from the native type of a variable's default value.
// With no default to look at (nil), the fallback is String; that choice is
// deliberate and consistent across the library, since raw values from the
// system environment are strings anyway.
func Infer(def any) Type {
	switch def.(type) {
	case nil:
		return String
	case string:
		return String
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Int
	case float32, float64:
		return Float
	case bool:
		return Bool
	default:
		return Any
	}
}

func toString(raw any) (any, error) {
	if s, ok := raw.(string); ok {
		return s, nil
	}
	s, err := spf13cast.ToStringE(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v (%T) to string", ErrCast, raw, raw)
	}
	return s, nil
}

func toInt(raw any, t Type) (any, error) {
	var n int64
	switch v := raw.(type) {
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q to %s", ErrCast, v, t)
		}
		n = parsed
	case float32:
		return toInt(float64(v), t)
	case float64:
		// JSON parses all numbers as float64, so integral floats convert
		// losslessly. A fractional part is a cast error, never truncated.
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return nil, fmt.Errorf("%w: %v to %s", ErrCast, v, t)
		}
		n = int64(v)
	default:
		parsed, err := spf13cast.ToInt64E(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v (%T) to %s", ErrCast, raw, raw, t)
		}
		n = parsed
	}

	switch t {
	case IntNonNegative:
		if n < 0 {
			return nil, fmt.Errorf("%w: %d is negative", ErrCast, n)
		}
	case IntPositive:
		if n <= 0 {
			return nil, fmt.Errorf("%w: %d is not positive", ErrCast, n)
		}
	case IntNegative:
		if n >= 0 {
			return nil, fmt.Errorf("%w: %d is not negative", ErrCast, n)
		}
	}
	return int(n), nil
}

func toFloat(raw any) (any, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case string:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q to float", ErrCast, v)
		}
		return f, nil
	default:
		f, err := spf13cast.ToFloat64E(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v (%T) to float", ErrCast, raw, raw)
		}
		return f, nil
	}
}

func toBool(raw any) (any, error) {
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch strings.ToLower(v) {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("%w: %q to boolean (want \"true\" or \"false\")", ErrCast, v)
	default:
		return nil, fmt.Errorf("%w: %v (%T) to boolean", ErrCast, raw, raw)
	}
}
