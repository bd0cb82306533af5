// Package cache provides the process-lifetime store for resolved variable
// values. It is a sharded map keyed by the descriptor's structural hash,
// optimized for many concurrent readers: reads take a per-shard RLock, and
// writers only contend with writers touching the same shard.
package cache

import "sync"

const shardCount = 32

type entry struct {
	value any
}

type shard struct {
	mu sync.RWMutex
	m  map[uint64]entry
}

// Cache maps descriptor hashes to resolved values. A stored nil is a valid
// hit, distinct from an absent key. The zero value is not usable; construct
// with New.
type Cache struct {
	shards [shardCount]*shard
}

// New returns an empty cache.
func New() *Cache {
	c := &Cache{}
	for i := range c.shards {
		c.shards[i] = &shard{m: make(map[uint64]entry)}
	}
	return c
}

func (c *Cache) shardFor(key uint64) *shard {
	return c.shards[key%shardCount]
}

// Get returns the value stored under key and whether the key is present.
func (c *Cache) Get(key uint64) (any, bool) {
	s := c.shardFor(key)
	s.mu.RLock()
	e, ok := s.m[key]
	s.mu.RUnlock()
	return e.value, ok
}

// Put stores value under key, replacing any previous value.
func (c *Cache) Put(key uint64, value any) {
	s := c.shardFor(key)
	s.mu.Lock()
	s.m[key] = entry{value: value}
	s.mu.Unlock()
}

// Delete removes key if present.
func (c *Cache) Delete(key uint64) {
	s := c.shardFor(key)
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
}
