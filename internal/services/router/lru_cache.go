package router

import (
	"container/list"
	"sync"
)

// boundedLRU is a mutex-guarded LRU with a fixed number of entries.
type boundedLRU[K comparable, V any] struct {
	mu      sync.Mutex
	entries map[K]*list.Element
	order   *list.List
	maxSize int
}

type lruEntry[K comparable, V any] struct {
	key   K
	value V
}

func newBoundedLRU[K comparable, V any](maxSize int) *boundedLRU[K, V] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &boundedLRU[K, V]{
		entries: make(map[K]*list.Element, maxSize),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// Get returns the value and marks it most recently used.
func (c *boundedLRU[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*lruEntry[K, V]).value, true
}

func (c *boundedLRU[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*lruEntry[K, V]).value = value
		return
	}
	for len(c.entries) >= c.maxSize {
		back := c.order.Back()
		if back == nil {
			break
		}
		c.order.Remove(back)
		delete(c.entries, back.Value.(*lruEntry[K, V]).key)
	}
	c.entries[key] = c.order.PushFront(&lruEntry[K, V]{key: key, value: value})
}

func (c *boundedLRU[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Clear drops every entry, used when the graph is rebuilt.
func (c *boundedLRU[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*list.Element, c.maxSize)
	c.order.Init()
}
