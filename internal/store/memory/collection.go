// Package memory provides in-process implementations of the repositories.
// Each collection is guarded by its own mutex, so every read-modify-write
// cycle on a collection is serialized.
package memory

import (
	"sync"

	"github.com/tutorhub/apiserver/internal/store"
)

// collection is an insertion-ordered list of records keyed by id.
type collection[T any] struct {
	mu    sync.RWMutex
	key   func(T) string
	items []T
}

func newCollection[T any](key func(T) string) *collection[T] {
	return &collection[T]{key: key}
}

func (c *collection[T]) find(pred func(T) bool) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.items {
		if pred(item) {
			return item, true
		}
	}
	var zero T
	return zero, false
}

func (c *collection[T]) get(id string) (T, error) {
	item, ok := c.find(func(item T) bool { return c.key(item) == id })
	if !ok {
		return item, store.ErrNotFound
	}
	return item, nil
}

func (c *collection[T]) filter(pred func(T) bool) []T {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := []T{}
	for _, item := range c.items {
		if pred == nil || pred(item) {
			out = append(out, item)
		}
	}
	return out
}

// insert appends item unless conflicts reports a clash with an existing record.
func (c *collection[T]) insert(item T, conflicts func(existing T) bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.items {
		if c.key(existing) == c.key(item) || (conflicts != nil && conflicts(existing)) {
			return store.ErrConflict
		}
	}
	c.items = append(c.items, item)
	return nil
}

// update applies mutate to the record with the given id under the write lock.
func (c *collection[T]) update(id string, mutate func(*T) error) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.key(c.items[i]) != id {
			continue
		}
		next := c.items[i]
		if err := mutate(&next); err != nil {
			var zero T
			return zero, err
		}
		c.items[i] = next
		return next, nil
	}
	var zero T
	return zero, store.ErrNotFound
}

// updateWhere applies mutate to every matching record and returns how many changed.
func (c *collection[T]) updateWhere(pred func(T) bool, mutate func(*T)) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for i := range c.items {
		if pred(c.items[i]) {
			mutate(&c.items[i])
			n++
		}
	}
	return n
}

func (c *collection[T]) delete(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.key(c.items[i]) == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFound
}
