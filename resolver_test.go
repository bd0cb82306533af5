package varbind

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phrazzld/varbind/cast"
)

// newTestResolver builds a resolver with a private cache and config store so
// tests cannot observe each other's state.
func newTestResolver(t *testing.T) (*Resolver, *ConfigStore) {
	t.Helper()
	store := NewConfigStore()
	r := New(
		WithConfigStore(store),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return r, store
}

func mustDescriptor(t *testing.T, namespace, owner string, keys []string, opts Options) *Descriptor {
	t.Helper()
	d, err := NewDescriptor(namespace, owner, keys, opts)
	require.NoError(t, err)
	return d
}

func TestSourcePriority(t *testing.T) {
	r, store := newTestResolver(t)
	t.Setenv("MYAPP_HOSTNAME", "from-env")
	store.Set("myapp", map[string]any{"hostname": "from-config"})

	d := mustDescriptor(t, "", "myapp", []string{"hostname"}, Options{})
	v, err := r.Get(d)
	require.NoError(t, err)
	assert.Equal(t, "from-env", v, "system source outranks config in the default order")
}

func TestConfigWhenSystemAbsent(t *testing.T) {
	r, store := newTestResolver(t)
	store.Set("myapp", map[string]any{"hostname": "from-config"})

	d := mustDescriptor(t, "", "myapp", []string{"hostname"}, Options{})
	v, err := r.Get(d)
	require.NoError(t, err)
	assert.Equal(t, "from-config", v)
}

func TestNestedConfigWalk(t *testing.T) {
	r, store := newTestResolver(t)
	store.Set("myapp", map[string]any{
		"db": map[string]any{"password": "s3cret"},
	})

	d := mustDescriptor(t, "", "myapp", []string{"db", "password"}, Options{})
	v, err := r.Get(d)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", v)

	// A path segment landing on a non-map node is no value, not an error.
	d = mustDescriptor(t, "", "myapp", []string{"db", "password", "deeper"}, Options{})
	v, err = r.Get(d)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDefaultFallback(t *testing.T) {
	r, _ := newTestResolver(t)

	d := mustDescriptor(t, "", "myapp", []string{"hostname"}, Options{Default: "localhost"})
	v, err := r.Get(d)
	require.NoError(t, err)
	assert.Equal(t, "localhost", v, "default applies when no source yields a value")
}

func TestRequiredWithoutDefault(t *testing.T) {
	r, _ := newTestResolver(t)

	d := mustDescriptor(t, "", "myapp", []string{"db", "password"}, Options{Required: true})
	_, err := r.Get(d)
	require.ErrorIs(t, err, ErrRequired)
	assert.Contains(t, err.Error(), "myapp", "error names the owner")
	assert.Contains(t, err.Error(), "db.password", "error names the key path")
}

func TestRequiredErrorNamesNamespace(t *testing.T) {
	r, _ := newTestResolver(t)

	d := mustDescriptor(t, "prod", "myapp", []string{"token"}, Options{Required: true})
	_, err := r.Get(d)
	require.ErrorIs(t, err, ErrRequired)
	assert.Contains(t, err.Error(), "prod")
}

func TestOptionalAbsentResolvesToNil(t *testing.T) {
	r, _ := newTestResolver(t)

	d := mustDescriptor(t, "", "myapp", []string{"hostname"}, Options{})
	v, err := r.Get(d)
	require.NoError(t, err)
	assert.Nil(t, v, "optional variables resolve to nil when absent")
}

func TestCacheIdempotence(t *testing.T) {
	r, _ := newTestResolver(t)
	t.Setenv("MYAPP_HOSTNAME", "first")

	d := mustDescriptor(t, "", "myapp", []string{"hostname"}, Options{})
	v, err := r.Get(d)
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	t.Setenv("MYAPP_HOSTNAME", "second")
	v, err = r.Get(d)
	require.NoError(t, err)
	assert.Equal(t, "first", v, "cached variables ignore underlying changes between reads")
}

func TestCacheBypass(t *testing.T) {
	r, _ := newTestResolver(t)
	t.Setenv("MYAPP_HOSTNAME", "first")

	d := mustDescriptor(t, "", "myapp", []string{"hostname"}, Options{Cached: Ptr(false)})
	v, err := r.Get(d)
	require.NoError(t, err)
	assert.Equal(t, "first", v)

	t.Setenv("MYAPP_HOSTNAME", "second")
	v, err = r.Get(d)
	require.NoError(t, err)
	assert.Equal(t, "second", v, "uncached variables observe underlying changes")
}

func TestResolvedNilIsCached(t *testing.T) {
	r, _ := newTestResolver(t)

	d := mustDescriptor(t, "", "myapp", []string{"hostname"}, Options{})
	v, err := r.Get(d)
	require.NoError(t, err)
	require.Nil(t, v)

	// A later env value must not leak through: the nil resolution is a
	// genuine cache entry.
	t.Setenv("MYAPP_HOSTNAME", "late")
	v, err = r.Get(d)
	require.NoError(t, err)
	assert.Nil(t, v, "resolved-to-absent is cached like any other value")
}

func TestNamespaceFallback(t *testing.T) {
	r, store := newTestResolver(t)
	store.Set("myapp", map[string]any{"hostname": "global-host"})

	d := mustDescriptor(t, "staging", "myapp", []string{"hostname"}, Options{})
	v, err := r.Get(d)
	require.NoError(t, err)
	assert.Equal(t, "global-host", v,
		"a namespaced miss falls back to the full walk without the namespace")
}

func TestNamespaceValueWins(t *testing.T) {
	r, store := newTestResolver(t)
	store.Set("myapp", map[string]any{"hostname": "global-host"})
	store.SetNamespace("myapp", "staging", map[string]any{"hostname": "staging-host"})

	d := mustDescriptor(t, "staging", "myapp", []string{"hostname"}, Options{})
	v, err := r.Get(d)
	require.NoError(t, err)
	assert.Equal(t, "staging-host", v)
}

func TestNamespacedSystemWinsOverGlobalConfig(t *testing.T) {
	r, store := newTestResolver(t)
	t.Setenv("STAGING_MYAPP_HOSTNAME", "staging-env")
	store.Set("myapp", map[string]any{"hostname": "global-host"})

	d := mustDescriptor(t, "staging", "myapp", []string{"hostname"}, Options{})
	v, err := r.Get(d)
	require.NoError(t, err)
	assert.Equal(t, "staging-env", v,
		"the full namespaced walk runs before any fallback")
}

func TestCastFailureFallsThrough(t *testing.T) {
	r, store := newTestResolver(t)
	t.Setenv("MYAPP_PORT", "42.5")
	store.Set("myapp", map[string]any{"port": 9090})

	d := mustDescriptor(t, "", "myapp", []string{"port"}, Options{Type: cast.Int})
	v, err := r.Get(d)
	require.NoError(t, err, "a cast failure is absence, never a hard error")
	assert.Equal(t, 9090, v, "walk continues past the failed source")
}

func TestFractionalConfigValueIsNotTruncated(t *testing.T) {
	r, store := newTestResolver(t)
	store.Set("myapp", map[string]any{"port": 42.5})

	d := mustDescriptor(t, "", "myapp", []string{"port"}, Options{Type: cast.Int})
	v, err := r.Get(d)
	require.NoError(t, err, "a fractional value under an integer type is absence, not a hard error")
	assert.Nil(t, v, "42.5 must not resolve as a truncated 42")
}

func TestCastFailureThenDefault(t *testing.T) {
	r, _ := newTestResolver(t)
	t.Setenv("MYAPP_PORT", "not-a-number")

	d := mustDescriptor(t, "", "myapp", []string{"port"}, Options{Type: cast.Int, Default: 8080})
	v, err := r.Get(d)
	require.NoError(t, err)
	assert.Equal(t, 8080, v, "default is taken as-is, never re-cast")
}

func TestTypeRoundTrip(t *testing.T) {
	r, _ := newTestResolver(t)
	t.Setenv("MYAPP_PORT", "42")

	d := mustDescriptor(t, "", "myapp", []string{"port"}, Options{Type: cast.Int})
	v, err := r.Get(d)
	require.NoError(t, err)
	assert.Equal(t, 42, v, "string \"42\" resolves to integer 42")
}

func TestPut(t *testing.T) {
	r, _ := newTestResolver(t)

	d := mustDescriptor(t, "", "myapp", []string{"hostname"}, Options{})
	require.NoError(t, r.Put(d, "overridden"))

	v, err := r.Get(d)
	require.NoError(t, err)
	assert.Equal(t, "overridden", v, "put bypasses the source walk entirely")
}

func TestPutCacheDisabled(t *testing.T) {
	r, _ := newTestResolver(t)

	d := mustDescriptor(t, "", "myapp", []string{"hostname"}, Options{Cached: Ptr(false)})
	err := r.Put(d, "x")
	require.ErrorIs(t, err, ErrCacheDisabled)
}

func TestReloadRefreshesCache(t *testing.T) {
	r, _ := newTestResolver(t)
	t.Setenv("MYAPP_HOSTNAME", "initial")

	d := mustDescriptor(t, "", "myapp", []string{"hostname"}, Options{})
	require.NoError(t, r.Put(d, "manual"))

	v, err := r.Get(d)
	require.NoError(t, err)
	require.Equal(t, "manual", v)

	t.Setenv("MYAPP_HOSTNAME", "fresh")
	v, err = r.Reload(d)
	require.NoError(t, err)
	assert.Equal(t, "fresh", v, "reload ignores the cached value")

	v, err = r.Get(d)
	require.NoError(t, err)
	assert.Equal(t, "fresh", v, "reload overwrites the cache")
}

func TestReloadFailurePreservesCache(t *testing.T) {
	r, _ := newTestResolver(t)

	d := mustDescriptor(t, "", "myapp", []string{"token"}, Options{Required: true})
	require.NoError(t, r.Put(d, "seeded"))

	_, err := r.Reload(d)
	require.ErrorIs(t, err, ErrRequired, "reload surfaces the walk failure")

	v, err := r.Get(d)
	require.NoError(t, err)
	assert.Equal(t, "seeded", v, "the previous cached value is left untouched")
}

func TestDeleteEvicts(t *testing.T) {
	r, _ := newTestResolver(t)
	t.Setenv("MYAPP_HOSTNAME", "first")

	d := mustDescriptor(t, "", "myapp", []string{"hostname"}, Options{})
	_, err := r.Get(d)
	require.NoError(t, err)

	t.Setenv("MYAPP_HOSTNAME", "second")
	r.Delete(d)

	v, err := r.Get(d)
	require.NoError(t, err)
	assert.Equal(t, "second", v, "eviction forces a fresh walk")
}

func TestUnknownSourceIsSkipped(t *testing.T) {
	r, store := newTestResolver(t)
	store.Set("myapp", map[string]any{"hostname": "from-config"})

	d := mustDescriptor(t, "", "myapp", []string{"hostname"}, Options{
		BindingOrder: []SourceID{"no_such_source", SourceConfig},
	})
	v, err := r.Get(d)
	require.NoError(t, err, "an unknown source id is logged and skipped")
	assert.Equal(t, "from-config", v)
}

func TestConcurrentResolution(t *testing.T) {
	r, store := newTestResolver(t)
	t.Setenv("MYAPP_SHARED", "env-value")
	store.Set("myapp", map[string]any{"other": "config-value"})

	shared := mustDescriptor(t, "", "myapp", []string{"shared"}, Options{})
	other := mustDescriptor(t, "", "myapp", []string{"other"}, Options{})

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				switch i % 4 {
				case 0, 1:
					v, err := r.Get(shared)
					assert.NoError(t, err)
					assert.Equal(t, "env-value", v)
				case 2:
					v, err := r.Get(other)
					assert.NoError(t, err)
					assert.Equal(t, "config-value", v)
				case 3:
					_, err := r.Reload(shared)
					assert.NoError(t, err)
				}
			}
		}(g)
	}
	wg.Wait()
}
