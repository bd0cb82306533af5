package cast

import (
	"fmt"
	"strings"
	"sync"
)

// Func is a user-supplied casting function. It receives the raw value fetched
// from a source and returns the typed value, or an error when the raw value
// is unusable. Errors are treated by the resolver as "no value from this
// source", never as hard failures.
type Func func(raw any) (any, error)

var registries = struct {
	mu      sync.RWMutex
	tokens  map[string]struct{}
	refs    map[string]any
	casters map[string]Func
}{
	tokens:  make(map[string]struct{}),
	refs:    make(map[string]any),
	casters: make(map[string]Func),
}

// RegisterToken adds identifiers to the token registry consulted by
// TokenStrict casts. Registration is typically done once at program startup,
// next to where the tokens are defined.
func RegisterToken(tokens ...string) {
	registries.mu.Lock()
	defer registries.mu.Unlock()
	for _, tok := range tokens {
		registries.tokens[tok] = struct{}{}
	}
}

// RegisterRef associates a dot-separated path with a value, making the path
// resolvable by Ref and RefStrict casts. The value is returned verbatim when
// the path is cast.
func RegisterRef(path string, value any) error {
	if err := validateRefPath(path); err != nil {
		return err
	}
	registries.mu.Lock()
	defer registries.mu.Unlock()
	registries.refs[path] = value
	return nil
}

// RegisterCaster installs a custom casting function under name. Descriptors
// reference it through Custom(name). Registering the same name twice
// replaces the previous function.
func RegisterCaster(name string, fn Func) {
	registries.mu.Lock()
	defer registries.mu.Unlock()
	registries.casters[name] = fn
}

func toToken(raw any, strict bool) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %v (%T) to token", ErrCast, raw, raw)
	}
	if strict {
		registries.mu.RLock()
		_, known := registries.tokens[s]
		registries.mu.RUnlock()
		if !known {
			return nil, fmt.Errorf("%w: %q", ErrUnknownToken, s)
		}
	}
	return s, nil
}

func toRef(raw any, strict bool) (any, error) {
	s, ok := raw.(string)
	if !ok {
		return nil, fmt.Errorf("%w: %v (%T) to reference", ErrCast, raw, raw)
	}
	if err := validateRefPath(s); err != nil {
		return nil, err
	}

	registries.mu.RLock()
	v, known := registries.refs[s]
	registries.mu.RUnlock()
	if known {
		return v, nil
	}
	if strict {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRef, s)
	}
	// Unsafe mode accepts any well-formed path, resolved or not.
	return s, nil
}

func toCustom(raw any, name string) (any, error) {
	registries.mu.RLock()
	fn, ok := registries.casters[name]
	registries.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: custom caster %q", ErrUnknownType, name)
	}
	v, err := fn(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: custom caster %q: %v", ErrCast, name, err)
	}
	return v, nil
}

func validateRefPath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty reference path", ErrCast)
	}
	for _, seg := range strings.Split(path, ".") {
		if !isIdentifier(seg) {
			return fmt.Errorf("%w: %q is not a valid reference path", ErrCast, path)
		}
	}
	return nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_',
			r >= 'a' && r <= 'z',
			r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
