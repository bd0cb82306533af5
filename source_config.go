package varbind

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

// ConfigStore holds structured application configuration: one nested
// key/value tree per owner, with separate trees for namespaced overrides.
// It is the backing store of the config binding source. Typical programs
// populate the process-wide store once at startup via SetAppConfig or
// LoadAppConfig; independent stores exist mainly for tests and embedding.
type ConfigStore struct {
	mu     sync.RWMutex
	owners map[string]map[string]any
}

// NewConfigStore returns an empty store.
func NewConfigStore() *ConfigStore {
	return &ConfigStore{owners: make(map[string]map[string]any)}
}

func storeKey(owner, namespace string) string {
	if namespace == "" {
		return owner
	}
	return owner + "@" + namespace
}

// Set replaces owner's configuration tree.
func (s *ConfigStore) Set(owner string, cfg map[string]any) {
	s.mu.Lock()
	s.owners[storeKey(owner, "")] = cfg
	s.mu.Unlock()
}

// SetNamespace replaces owner's configuration tree for one namespace. The
// namespaced tree shadows the plain one only for lookups carrying that
// namespace; the resolver falls back to the plain tree by re-walking with
// the namespace stripped.
func (s *ConfigStore) SetNamespace(owner, namespace string, cfg map[string]any) {
	s.mu.Lock()
	s.owners[storeKey(owner, namespace)] = cfg
	s.mu.Unlock()
}

// Load reads a configuration file (format detected from the extension:
// yaml, json, toml, and the other formats viper understands) and installs
// it as owner's tree.
func (s *ConfigStore) Load(owner, path string) error {
	cfg, err := readConfigFile(path)
	if err != nil {
		return err
	}
	s.Set(owner, cfg)
	return nil
}

// LoadNamespace is Load for a namespaced tree.
func (s *ConfigStore) LoadNamespace(owner, namespace, path string) error {
	cfg, err := readConfigFile(path)
	if err != nil {
		return err
	}
	s.SetNamespace(owner, namespace, cfg)
	return nil
}

func readConfigFile(path string) (map[string]any, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("loading config file %s: %w", path, err)
	}
	return v.AllSettings(), nil
}

// lookup walks keys through owner's tree for the given namespace. Every
// intermediate segment must itself be a keyed collection; anything else
// yields no value.
func (s *ConfigStore) lookup(owner, namespace string, keys []string) (any, bool) {
	s.mu.RLock()
	tree, ok := s.owners[storeKey(owner, namespace)]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}

	var node any = tree
	for _, key := range keys {
		m, ok := asMap(node)
		if !ok {
			return nil, false
		}
		node, ok = m[key]
		if !ok {
			return nil, false
		}
	}
	return node, true
}

// asMap normalizes the map shapes produced by hand-written literals and the
// YAML/JSON parsers viper wraps.
func asMap(node any) (map[string]any, bool) {
	switch m := node.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, v := range m {
			ks, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[ks] = v
		}
		return out, true
	default:
		return nil, false
	}
}

// appConfig is the process-wide store read by the default resolver's config
// source. Initialized once here, never re-created.
var appConfig = NewConfigStore()

// SetAppConfig replaces owner's tree in the process-wide store.
func SetAppConfig(owner string, cfg map[string]any) { appConfig.Set(owner, cfg) }

// SetNamespacedAppConfig replaces owner's tree for one namespace in the
// process-wide store.
func SetNamespacedAppConfig(owner, namespace string, cfg map[string]any) {
	appConfig.SetNamespace(owner, namespace, cfg)
}

// LoadAppConfig loads a configuration file into the process-wide store.
func LoadAppConfig(owner, path string) error { return appConfig.Load(owner, path) }

// configSource resolves descriptors against a ConfigStore. With a namespace
// present it consults only the namespaced tree; global fallback is the
// resolver's job, so a value in the plain tree does not leak into namespaced
// lookups at the source level.
type configSource struct {
	store *ConfigStore
}

func (configSource) ID() SourceID { return SourceConfig }

func (s configSource) Fetch(d *Descriptor) (Value, error) {
	v, ok := s.store.lookup(d.Owner(), d.Namespace(), d.Keys())
	if !ok {
		return NoValue(), nil
	}
	return SomeValue(v), nil
}
