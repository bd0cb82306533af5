package varbind

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/phrazzld/varbind/cast"
	"github.com/phrazzld/varbind/internal/cache"
)

// Resolver orchestrates variable resolution: cache check, ordered source
// walk, namespace fallback, default, required check. It owns a
// process-lifetime cache and is safe for concurrent use. Most programs use
// the package-level default resolver through Variable; independent resolvers
// exist for tests and for embedding with a private cache or config store.
type Resolver struct {
	cache  *cache.Cache
	store  *ConfigStore
	logger *slog.Logger
	id     string
	inits  sync.Map // sourceID + "\x00" + initKey -> *initState
}

type initState struct {
	once sync.Once
	err  error
}

// Option configures a Resolver built by New.
type Option func(*Resolver)

// WithLogger sets the structured logger resolution warnings (cast failures,
// source errors) are written to. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) { r.logger = l }
}

// WithConfigStore points the resolver's config source at a store other than
// the process-wide one.
func WithConfigStore(s *ConfigStore) Option {
	return func(r *Resolver) { r.store = s }
}

// New builds a resolver with its own empty cache.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		cache: cache.New(),
		store: appConfig,
		id:    uuid.NewString(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Resolver) log() *slog.Logger {
	l := r.logger
	if l == nil {
		l = slog.Default()
	}
	return l.With("resolver_id", r.id)
}

// Get resolves the descriptor. With caching enabled a cache hit returns
// immediately; on a miss the resolved value is written through before
// returning. The only error Get returns wraps ErrRequired: every internal
// fetch or cast failure is logged and treated as "no value from this
// source".
func (r *Resolver) Get(d *Descriptor) (any, error) {
	if d.Cached() {
		if v, ok := r.cache.Get(d.CacheKey()); ok {
			return v, nil
		}
	}

	v, err := r.resolve(d)
	if err != nil {
		return nil, err
	}
	if d.Cached() {
		r.cache.Put(d.CacheKey(), v)
	}
	return v, nil
}

// Put writes value directly to the cache, bypassing the source walk.
// Subsequent Gets return it until a Reload or another Put. Variables
// declared with caching disabled have no cache slot to write, so Put fails
// with ErrCacheDisabled.
func (r *Resolver) Put(d *Descriptor, value any) error {
	if !d.Cached() {
		return fmt.Errorf("%s: %w", d.displayName(), ErrCacheDisabled)
	}
	r.cache.Put(d.CacheKey(), value)
	return nil
}

// Reload re-runs the source walk unconditionally, ignoring any cached value.
// On success the fresh result replaces the cached one (when caching is
// enabled) and is returned. On failure the previous cached value is left
// untouched and the error is returned to the caller.
func (r *Resolver) Reload(d *Descriptor) (any, error) {
	v, err := r.resolve(d)
	if err != nil {
		return nil, err
	}
	if d.Cached() {
		r.cache.Put(d.CacheKey(), v)
	}
	return v, nil
}

// Delete evicts the descriptor's cached value, forcing the next Get to
// resolve from sources.
func (r *Resolver) Delete(d *Descriptor) {
	r.cache.Delete(d.CacheKey())
}

// resolve runs the walk portion of the state machine: sources, namespace
// fallback, default, required check. The cache is never consulted here.
func (r *Resolver) resolve(d *Descriptor) (any, error) {
	if v, ok := r.walk(d); ok {
		return v, nil
	}
	if d.Namespace() != "" {
		if v, ok := r.walk(d.WithoutNamespace()); ok {
			return v, nil
		}
	}
	if def := d.Default(); def != nil {
		// Defaults are pre-typed by declaration and never re-cast.
		return def, nil
	}
	if d.Required() {
		return nil, fmt.Errorf("%s: %w", d.displayName(), ErrRequired)
	}
	return nil, nil
}

// walk consults the effective binding order left to right; the first source
// producing a castable value wins.
func (r *Resolver) walk(d *Descriptor) (any, bool) {
	targetType := d.EffectiveType()
	for _, id := range d.EffectiveBindingOrder() {
		src, ok := r.sourceFor(id)
		if !ok {
			r.log().Warn("unknown binding source, skipping",
				"source", string(id),
				"variable", d.displayName())
			continue
		}

		if in, needsInit := src.(Initer); needsInit {
			if err := r.initSource(id, in, d); err != nil {
				r.log().Warn("source init failed, treating as no value",
					"source", string(id),
					"variable", d.displayName(),
					"error", err)
				continue
			}
		}

		raw, err := src.Fetch(d)
		if err != nil {
			r.log().Warn("source fetch failed, treating as no value",
				"source", string(id),
				"variable", d.displayName(),
				"error", err)
			continue
		}
		if !raw.Ok() {
			continue
		}

		typed, err := cast.To(raw.Raw(), targetType)
		if err != nil {
			r.log().Warn("cast failed, treating as no value",
				"source", string(id),
				"variable", d.displayName(),
				"raw", raw.Raw(),
				"type", string(targetType),
				"error", err)
			continue
		}
		return typed, true
	}
	return nil, false
}

func (r *Resolver) sourceFor(id SourceID) (Source, bool) {
	switch id {
	case SourceSystem:
		return systemSource{}, true
	case SourceConfig:
		return configSource{store: r.store}, true
	default:
		return registeredSource(id)
	}
}

// initSource runs a source's one-time setup, memoized per init key so
// repeat resolutions never redo the work. A failed init is memoized too:
// a broken file path stays broken for the life of the resolver rather than
// being retried on every read.
func (r *Resolver) initSource(id SourceID, in Initer, d *Descriptor) error {
	key := string(id) + "\x00" + in.InitKey(d)
	v, _ := r.inits.LoadOrStore(key, &initState{})
	st := v.(*initState)
	st.once.Do(func() {
		st.err = in.Init(d)
	})
	return st.err
}
