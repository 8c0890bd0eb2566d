package store

import (
	"context"
	"fmt"
	"sync"

	"anystore/pkg/codec"
	"anystore/pkg/uris"
)

// Cache memoizes stores per (URI, options) pair for the lifetime of the
// process. It is an explicit object callers inject where sharing is
// wanted; New remains the uncached path.
type Cache struct {
	mu     sync.Mutex
	stores map[string]*Store
}

// NewCache returns an empty store cache.
func NewCache() *Cache {
	return &Cache{stores: map[string]*Store{}}
}

// Get returns the store for the URI and options, constructing and
// caching it on first use.
func (c *Cache) Get(ctx context.Context, uri string, opts ...Option) (*Store, error) {
	key, err := fingerprint(uri, opts)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.stores[key]; ok {
		return s, nil
	}
	s, err := New(ctx, uri, opts...)
	if err != nil {
		return nil, err
	}
	c.stores[key] = s
	return s, nil
}

// Len reports how many stores are cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.stores)
}

// Close closes every cached store and empties the cache, returning the
// first close error.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for _, s := range c.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	c.stores = map[string]*Store{}
	return firstErr
}

// fingerprint derives the cache key from the normalized URI and the
// store policy the options produce.
func fingerprint(uri string, opts []Option) (string, error) {
	ensured, err := uris.Ensure(uri)
	if err != nil {
		return "", err
	}
	probe := &Store{codec: codec.Auto{}, storeNone: true}
	for _, opt := range opts {
		opt(probe)
	}
	return fmt.Sprintf("%s|%T|%d|%t|%t|%+v",
		ensured, probe.codec, probe.defaultTTL, probe.strict, probe.storeNone, probe.backendCfg), nil
}
