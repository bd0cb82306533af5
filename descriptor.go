package varbind

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/phrazzld/varbind/cast"
)

// SourceID identifies a binding source in a descriptor's binding order.
type SourceID string

// Built-in source identifiers. Custom sources registered with RegisterSource
// use their own IDs alongside these.
const (
	// SourceSystem reads OS environment variables.
	SourceSystem SourceID = "system"

	// SourceConfig reads the structured application configuration store.
	SourceConfig SourceID = "config"

	// SourceFile reads a key/value file loaded once at first use. Variables
	// binding to it must set Options.SourcePath.
	SourceFile SourceID = "file"
)

// defaultBindingOrder is applied when a declaration leaves BindingOrder nil.
var defaultBindingOrder = []SourceID{SourceSystem, SourceConfig}

// Options is the closed set of settings a variable can be declared with.
// The zero value is a valid declaration: type inferred (string), resolved
// from the system environment then application config, not required, cached.
type Options struct {
	// Default is returned when no source yields a value. It is treated as
	// already typed and is never re-cast against Type.
	Default any

	// Type is the target type raw values are cast to. When empty it is
	// inferred from Default's native type, falling back to cast.String.
	Type cast.Type

	// Namespace partitions the variable's lookups. A non-empty namespace
	// argument passed at call time takes precedence over this option.
	Namespace string

	// OSEnvName overrides the derived external variable name. When set it
	// is used verbatim by the system source.
	OSEnvName string

	// BindingOrder lists the sources to consult, in priority order.
	// Nil means [SourceSystem, SourceConfig].
	BindingOrder []SourceID

	// BindingSkip removes sources from BindingOrder without restating it.
	BindingSkip []SourceID

	// SourcePath is the filesystem path consumed by the file source.
	SourcePath string

	// Required makes resolution fail hard when no value and no default is
	// found.
	Required bool

	// Cached controls whether resolved values are stored. Nil means true;
	// set to varbind.Ptr(false) to resolve on every read.
	Cached *bool

	// CacheKeyOverride replaces the structural cache key with an explicit
	// one. Two variables sharing an override share a cache slot.
	CacheKeyOverride string
}

// Ptr returns a pointer to v. Convenience for optional fields like
// Options.Cached.
func Ptr[T any](v T) *T { return &v }

// Descriptor is the immutable description of one configuration variable:
// its identity (namespace, owner, key path) plus its normalized options.
// Descriptors are cheap to build and are constructed fresh for every
// accessor call rather than held long-lived.
type Descriptor struct {
	namespace string
	owner     string
	keys      []string
	opts      Options
	cached    bool
}

// NewDescriptor builds a descriptor for owner and keys. A non-empty
// namespace argument wins over opts.Namespace. Option defaults are merged
// here: nil BindingOrder becomes [system, config], nil Cached becomes true.
func NewDescriptor(namespace, owner string, keys []string, opts Options) (*Descriptor, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: owner is empty", ErrInvalidOptions)
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: key path is empty", ErrInvalidOptions)
	}
	for _, k := range keys {
		if k == "" {
			return nil, fmt.Errorf("%w: key path contains an empty segment", ErrInvalidOptions)
		}
	}

	if namespace == "" {
		namespace = opts.Namespace
	}
	if opts.BindingOrder == nil {
		opts.BindingOrder = defaultBindingOrder
	}
	cached := true
	if opts.Cached != nil {
		cached = *opts.Cached
	}

	return &Descriptor{
		namespace: namespace,
		owner:     owner,
		keys:      append([]string(nil), keys...),
		opts:      opts,
		cached:    cached,
	}, nil
}

// Namespace returns the effective namespace, empty for the default one.
func (d *Descriptor) Namespace() string { return d.namespace }

// Owner returns the owning application or module identifier.
func (d *Descriptor) Owner() string { return d.owner }

// Keys returns the key path into nested application configuration.
func (d *Descriptor) Keys() []string { return append([]string(nil), d.keys...) }

// Cached reports whether resolved values for this descriptor are stored in
// the cache.
func (d *Descriptor) Cached() bool { return d.cached }

// Required reports whether an unresolved variable is a hard error.
func (d *Descriptor) Required() bool { return d.opts.Required }

// Default returns the declared default value, nil when absent.
func (d *Descriptor) Default() any { return d.opts.Default }

// SourcePath returns the file path consumed by the file source.
func (d *Descriptor) SourcePath() string { return d.opts.SourcePath }

// EffectiveType returns the declared type, or the type inferred from the
// default value when the declaration left it out.
func (d *Descriptor) EffectiveType() cast.Type {
	if d.opts.Type != "" {
		return d.opts.Type
	}
	return cast.Infer(d.opts.Default)
}

// EffectiveBindingOrder returns BindingOrder minus BindingSkip, order
// preserved. This is the walk the resolver performs.
func (d *Descriptor) EffectiveBindingOrder() []SourceID {
	if len(d.opts.BindingSkip) == 0 {
		return d.opts.BindingOrder
	}
	skip := make(map[SourceID]struct{}, len(d.opts.BindingSkip))
	for _, id := range d.opts.BindingSkip {
		skip[id] = struct{}{}
	}
	order := make([]SourceID, 0, len(d.opts.BindingOrder))
	for _, id := range d.opts.BindingOrder {
		if _, skipped := skip[id]; !skipped {
			order = append(order, id)
		}
	}
	return order
}

// ExternalVariableName returns the name the system source reads. An explicit
// OSEnvName is returned verbatim. Otherwise the name is synthesized as
// NAMESPACE_OWNER_KEY1_KEY2, all upper-cased and joined by underscores, with
// the namespace segment omitted entirely when the namespace is empty. When
// the effective binding order excludes the system source the derived name is
// meaningless and the empty string is returned.
func (d *Descriptor) ExternalVariableName() string {
	if d.opts.OSEnvName != "" {
		return d.opts.OSEnvName
	}
	for _, id := range d.EffectiveBindingOrder() {
		if id == SourceSystem {
			return d.externalName()
		}
	}
	return ""
}

// externalName derives the upper-cased name without the binding-order gate.
// The file source keys on this so file-only variables still have a name.
func (d *Descriptor) externalName() string {
	if d.opts.OSEnvName != "" {
		return d.opts.OSEnvName
	}
	segs := make([]string, 0, len(d.keys)+2)
	if d.namespace != "" {
		segs = append(segs, d.namespace)
	}
	segs = append(segs, d.owner)
	segs = append(segs, d.keys...)
	return strings.ToUpper(strings.Join(segs, "_"))
}

// WithoutNamespace returns a copy of the descriptor with the namespace
// stripped, used for the resolver's namespace-fallback walk. The copy is
// identical otherwise, including its caching behavior.
func (d *Descriptor) WithoutNamespace() *Descriptor {
	c := *d
	c.namespace = ""
	c.opts.Namespace = ""
	return &c
}

// CacheKey derives the deterministic structural hash identifying this
// descriptor in the cache. Two descriptors built from identical declared
// parameters hash identically regardless of where they were constructed.
// A CacheKeyOverride replaces the structural derivation.
func (d *Descriptor) CacheKey() uint64 {
	if d.opts.CacheKeyOverride != "" {
		return xxhash.Sum64String(d.opts.CacheKeyOverride)
	}

	var b strings.Builder
	b.WriteString(d.namespace)
	b.WriteByte(0)
	b.WriteString(d.owner)
	b.WriteByte(0)
	for _, k := range d.keys {
		b.WriteString(k)
		b.WriteByte(0)
	}
	fmt.Fprintf(&b, "%v", d.opts.Default)
	b.WriteByte(0)
	b.WriteString(string(d.EffectiveType()))
	b.WriteByte(0)
	for _, id := range d.EffectiveBindingOrder() {
		b.WriteString(string(id))
		b.WriteByte(0)
	}
	b.WriteString(d.opts.OSEnvName)
	b.WriteByte(0)
	b.WriteString(d.opts.SourcePath)
	b.WriteByte(0)
	fmt.Fprintf(&b, "%t%t", d.opts.Required, d.cached)
	return xxhash.Sum64String(b.String())
}

// displayName renders the variable identity for error messages and logs:
// owner, dotted key path, and the namespace when present.
func (d *Descriptor) displayName() string {
	name := d.owner + " " + strings.Join(d.keys, ".")
	if d.namespace != "" {
		name += " (namespace " + d.namespace + ")"
	}
	return name
}
