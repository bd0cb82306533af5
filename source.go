package varbind

import (
	"fmt"
	"sync"
)

// Value is the result of a source fetch. It distinguishes "no value held by
// this source" from a present value, including a present nil.
type Value struct {
	data any
	ok   bool
}

// SomeValue wraps v as a present value.
func SomeValue(v any) Value { return Value{data: v, ok: true} }

// NoValue reports that the source holds nothing for the descriptor. The
// resolver moves on to the next source in the binding order.
func NoValue() Value { return Value{} }

// Ok reports whether the source produced a value.
func (v Value) Ok() bool { return v.ok }

// Raw returns the fetched value. Only meaningful when Ok is true.
func (v Value) Raw() any { return v.data }

// Source fetches raw values for descriptors from one backing store. Fetch
// returns NoValue when the store holds nothing for the descriptor; errors
// are reserved for the store itself misbehaving and are treated by the
// resolver as "no value", logged at warning level. Raw values are cast by
// the resolver against the descriptor's effective type, so sources may
// return text or already-typed values interchangeably.
//
// Implementations must be safe for concurrent Fetch calls.
type Source interface {
	ID() SourceID
	Fetch(d *Descriptor) (Value, error)
}

// Initer is implemented by sources needing one-time expensive setup, such as
// reading a file. Init is memoized per InitKey: for any given key it runs at
// most once per resolver, so repeat resolutions never redo the work. A
// natural InitKey is the file path the descriptor points at.
type Initer interface {
	InitKey(d *Descriptor) string
	Init(d *Descriptor) error
}

var sourceRegistry = struct {
	mu sync.RWMutex
	m  map[SourceID]Source
}{m: make(map[SourceID]Source)}

// RegisterSource makes a custom source available to binding orders under its
// ID. Registering an ID twice replaces the previous source; the built-in
// system and config IDs cannot be replaced.
func RegisterSource(s Source) error {
	id := s.ID()
	if id == SourceSystem || id == SourceConfig {
		return fmt.Errorf("%w: source id %q is reserved", ErrInvalidOptions, id)
	}
	sourceRegistry.mu.Lock()
	defer sourceRegistry.mu.Unlock()
	sourceRegistry.m[id] = s
	return nil
}

func registeredSource(id SourceID) (Source, bool) {
	sourceRegistry.mu.RLock()
	defer sourceRegistry.mu.RUnlock()
	s, ok := sourceRegistry.m[id]
	return s, ok
}

func init() {
	// The file source ships registered so binding orders can name it
	// without ceremony.
	sourceRegistry.m[SourceFile] = newFileSource()
}
