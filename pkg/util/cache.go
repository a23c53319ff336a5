package util

import (
	"container/list"
	"sync"
)

type (
	// LRUCache memoizes constructed values by key, evicting the least
	// recently used entry once maxSize is exceeded
	LRUCache[T any] struct {
		cache   map[string]*list.Element
		lru     *list.List
		maxSize int
		mu      sync.Mutex
	}

	Constructor[T any] func() (T, error)

	cacheEntry[T any] struct {
		value T
		key   string
	}
)

func NewLRUCache[T any](maxSize int) *LRUCache[T] {
	return &LRUCache[T]{
		cache:   map[string]*list.Element{},
		lru:     list.New(),
		maxSize: max(maxSize, 1),
	}
}

// Get returns the cached value for key, building it with create on a miss.
// Construction errors are returned and never cached
func (c *LRUCache[T]) Get(key string, create Constructor[T]) (T, error) {
	c.mu.Lock()
	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		c.mu.Unlock()
		return elem.Value.(*cacheEntry[T]).value, nil
	}
	c.mu.Unlock()

	value, err := create()
	if err != nil {
		var zero T
		return zero, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[key]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry[T]).value, nil
	}

	elem := c.lru.PushFront(&cacheEntry[T]{key: key, value: value})
	c.cache[key] = elem

	if c.lru.Len() > c.maxSize {
		c.evictLast()
	}
	return value, nil
}

// Len returns the number of cached entries
func (c *LRUCache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *LRUCache[T]) evictLast() {
	back := c.lru.Back()
	if back != nil {
		c.lru.Remove(back)
		delete(c.cache, back.Value.(*cacheEntry[T]).key)
	}
}
