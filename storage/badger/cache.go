package badger

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/tari-project/tari-core/module"
	"github.com/tari-project/tari-core/module/metrics"
)

func withLimit[K comparable, V any](limit uint) func(*Cache[K, V]) {
	return func(c *Cache[K, V]) {
		c.limit = limit
	}
}

type retrieveFunc[K comparable, V any] func(key K) (V, error)

func withRetrieve[K comparable, V any](retrieve retrieveFunc[K, V]) func(*Cache[K, V]) {
	return func(c *Cache[K, V]) {
		c.retrieve = retrieve
	}
}

func noRetrieve[K comparable, V any](K) (V, error) {
	var nullV V
	return nullV, fmt.Errorf("no retrieve function for cache get available")
}

func withResource[K comparable, V any](resource string) func(*Cache[K, V]) {
	return func(c *Cache[K, V]) {
		c.resource = resource
	}
}

// Cache is a read-through LRU cache in front of the database. Entries are
// immutable once written, so the cache only needs invalidation on removal.
type Cache[K comparable, V any] struct {
	metrics  module.CacheMetrics
	limit    uint
	retrieve retrieveFunc[K, V]
	resource string
	cache    *lru.Cache[K, V]
}

func newCache[K comparable, V any](collector module.CacheMetrics, options ...func(*Cache[K, V])) *Cache[K, V] {
	c := Cache[K, V]{
		metrics:  collector,
		limit:    1000,
		retrieve: noRetrieve[K, V],
		resource: metrics.ResourceUndefined,
	}
	for _, option := range options {
		option(&c)
	}
	c.cache, _ = lru.New[K, V](int(c.limit))
	c.metrics.CacheEntries(c.resource, uint(c.cache.Len()))
	return &c
}

// Get returns the resource from the cache, loading it from the database on
// a miss.
func (c *Cache[K, V]) Get(key K) (V, error) {
	resource, cached := c.cache.Get(key)
	if cached {
		c.metrics.CacheHit(c.resource)
		return resource, nil
	}

	c.metrics.CacheMiss(c.resource)
	resource, err := c.retrieve(key)
	if err != nil {
		var nullV V
		return nullV, err
	}

	c.Insert(key, resource)
	return resource, nil
}

// Insert adds a resource that has already been persisted.
func (c *Cache[K, V]) Insert(key K, resource V) {
	evicted := c.cache.Add(key, resource)
	if !evicted {
		c.metrics.CacheEntries(c.resource, uint(c.cache.Len()))
	}
}

// Remove drops a resource, after it was deleted from the database.
func (c *Cache[K, V]) Remove(key K) {
	if c.cache.Remove(key) {
		c.metrics.CacheEntries(c.resource, uint(c.cache.Len()))
	}
}
