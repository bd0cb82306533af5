package varbind

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStoreLookup(t *testing.T) {
	t.Parallel()
	store := NewConfigStore()
	store.Set("myapp", map[string]any{
		"hostname": "localhost",
		"db": map[string]any{
			"password": "s3cret",
		},
	})

	v, ok := store.lookup("myapp", "", []string{"hostname"})
	require.True(t, ok)
	assert.Equal(t, "localhost", v)

	v, ok = store.lookup("myapp", "", []string{"db", "password"})
	require.True(t, ok)
	assert.Equal(t, "s3cret", v)

	_, ok = store.lookup("myapp", "", []string{"missing"})
	assert.False(t, ok)

	_, ok = store.lookup("otherapp", "", []string{"hostname"})
	assert.False(t, ok, "unknown owner yields no value")

	_, ok = store.lookup("myapp", "", []string{"hostname", "deeper"})
	assert.False(t, ok, "walking through a leaf yields no value")
}

func TestConfigStoreNamespaceIsolation(t *testing.T) {
	t.Parallel()
	store := NewConfigStore()
	store.Set("myapp", map[string]any{"hostname": "global"})
	store.SetNamespace("myapp", "prod", map[string]any{"hostname": "prod-host"})

	v, ok := store.lookup("myapp", "prod", []string{"hostname"})
	require.True(t, ok)
	assert.Equal(t, "prod-host", v)

	// The namespaced tree does not inherit from the plain one at the store
	// level; that fallback belongs to the resolver.
	_, ok = store.lookup("myapp", "staging", []string{"hostname"})
	assert.False(t, ok)
}

func TestConfigStoreMapAnyKeys(t *testing.T) {
	t.Parallel()
	store := NewConfigStore()
	store.Set("myapp", map[string]any{
		"db": map[any]any{"password": "s3cret"},
	})

	v, ok := store.lookup("myapp", "", []string{"db", "password"})
	require.True(t, ok, "yaml-style map[any]any nodes are walkable")
	assert.Equal(t, "s3cret", v)
}

func TestConfigStoreLoad(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "app.yaml")
	content := []byte("hostname: file-host\ndb:\n  port: 5432\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	store := NewConfigStore()
	require.NoError(t, store.Load("myapp", path))

	v, ok := store.lookup("myapp", "", []string{"hostname"})
	require.True(t, ok)
	assert.Equal(t, "file-host", v)

	v, ok = store.lookup("myapp", "", []string{"db", "port"})
	require.True(t, ok)
	assert.EqualValues(t, 5432, v)

	err := store.Load("myapp", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err, "a missing config file is a load error")
}
