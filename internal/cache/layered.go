package cache

import (
	"errors"
	"io/fs"
	"time"
)

// LayeredCache reads through an ordered list of caches, fastest first.
// A hit in a slower layer is copied into every faster one.
type LayeredCache struct {
	layers []Cache
}

// NewLayered stacks layers in lookup order
func NewLayered(layers ...Cache) *LayeredCache {
	return &LayeredCache{layers: layers}
}

// NewLayeredCache stacks a memory cache over a disk cache in diskDir
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return NewLayered(
		NewMemoryCache(memoryTTL, 10*time.Minute),
		NewDiskCache(diskDir, diskTTL),
	)
}

// Get returns the value from the first layer holding key
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	for i, layer := range c.layers {
		val, ok := layer.Get(key)
		if !ok {
			continue
		}
		for _, faster := range c.layers[:i] {
			_ = faster.Set(key, val, 0)
		}
		return val, true
	}
	return nil, false
}

// Set writes value to every layer, stopping at the first failure
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	for _, layer := range c.layers {
		if err := layer.Set(key, value, ttl); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes key from every layer; a missing key is not an error
func (c *LayeredCache) Delete(key string) error {
	var errs []error
	for _, layer := range c.layers {
		if err := layer.Delete(key); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Clear empties every layer
func (c *LayeredCache) Clear() error {
	var errs []error
	for _, layer := range c.layers {
		errs = append(errs, layer.Clear())
	}
	return errors.Join(errs...)
}
