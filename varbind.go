package varbind

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// std is the process-wide resolver backing variables declared with Define.
// Created once at package init, never re-created.
var std = New()

// DefaultResolver returns the process-wide resolver. Useful for evicting or
// pre-seeding cache entries from setup code.
func DefaultResolver() *Resolver { return std }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// known_source accepts the built-in source IDs plus anything in the
	// custom source registry at Define time.
	_ = v.RegisterValidation("known_source", func(fl validator.FieldLevel) bool {
		id := SourceID(fl.Field().String())
		if id == SourceSystem || id == SourceConfig {
			return true
		}
		_, ok := registeredSource(id)
		return ok
	})
	return v
}

// declaration mirrors the Define parameters for validation.
type declaration struct {
	Owner        string     `validate:"required"`
	Keys         []string   `validate:"required,min=1,dive,required"`
	BindingOrder []SourceID `validate:"omitempty,dive,required,known_source"`
}

// Variable is a declared configuration variable: a factory producing a fresh
// Descriptor per accessor call, bound to a resolver. It is immutable and
// safe to share across goroutines.
type Variable struct {
	owner    string
	keys     []string
	opts     Options
	resolver *Resolver
}

// Define declares a variable owned by owner at the given key path. The
// declaration is validated once here; the returned Variable builds
// descriptors on demand, parameterized by an optional namespace at call
// time.
func Define(owner string, keys []string, opts Options) (*Variable, error) {
	decl := declaration{Owner: owner, Keys: keys, BindingOrder: opts.BindingOrder}
	if err := validate.Struct(decl); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	// Exercise descriptor construction now so a malformed declaration fails
	// at Define time, not on first read.
	if _, err := NewDescriptor("", owner, keys, opts); err != nil {
		return nil, err
	}
	return &Variable{
		owner:    owner,
		keys:     append([]string(nil), keys...),
		opts:     opts,
		resolver: std,
	}, nil
}

// MustDefine is Define, panicking on a malformed declaration. Intended for
// package-level variable declarations.
func MustDefine(owner string, keys []string, opts Options) *Variable {
	v, err := Define(owner, keys, opts)
	if err != nil {
		panic(err)
	}
	return v
}

// WithResolver returns a copy of the variable bound to r instead of the
// process-wide resolver.
func (v *Variable) WithResolver(r *Resolver) *Variable {
	c := *v
	c.resolver = r
	return &c
}

// Descriptor builds the descriptor for one resolution, scoped to namespace
// when one is given.
func (v *Variable) Descriptor(namespace ...string) (*Descriptor, error) {
	ns := ""
	if len(namespace) > 0 {
		ns = namespace[0]
	}
	return NewDescriptor(ns, v.owner, v.keys, v.opts)
}

// Get resolves the variable's current value, optionally scoped to a
// namespace. The only error it returns wraps ErrRequired.
func (v *Variable) Get(namespace ...string) (any, error) {
	d, err := v.Descriptor(namespace...)
	if err != nil {
		return nil, err
	}
	return v.resolver.Get(d)
}

// MustGet is Get, panicking on error. Intended for startup-time validation
// of required configuration, not steady-state request paths.
func (v *Variable) MustGet(namespace ...string) any {
	val, err := v.Get(namespace...)
	if err != nil {
		panic(err)
	}
	return val
}

// Put overrides the variable's cached value directly, bypassing the source
// walk. Fails with ErrCacheDisabled when the variable is uncached.
func (v *Variable) Put(value any, namespace ...string) error {
	d, err := v.Descriptor(namespace...)
	if err != nil {
		return err
	}
	return v.resolver.Put(d, value)
}

// Reload re-resolves the variable from its sources, refreshing the cache on
// success and preserving it on failure.
func (v *Variable) Reload(namespace ...string) (any, error) {
	d, err := v.Descriptor(namespace...)
	if err != nil {
		return nil, err
	}
	return v.resolver.Reload(d)
}
