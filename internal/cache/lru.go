package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache holds at most maxSize entries, each for at most ttl. Delete also
// discards any Load that started before it, so a value read from the store
// just before an invalidation never lands in the cache.
type LRUCache[K comparable, V any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	entries map[K]*list.Element
	order   *list.List // front is most recently used
	epoch   uint64     // bumped by every Delete
}

var _ Cache[string, int] = (*LRUCache[string, int])(nil)

type entry[K comparable, V any] struct {
	key     K
	value   V
	expires time.Time
}

func NewLRUCache[K comparable, V any](maxSize int, ttl time.Duration) *LRUCache[K, V] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRUCache[K, V]{
		maxSize: maxSize,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[K]*list.Element),
		order:   list.New(),
	}
}

func (c *LRUCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.getLocked(key)
}

func (c *LRUCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value)
}

// Load returns the cached value for key, or calls load and caches its
// result when load reports it as cacheable. Concurrent loads of the same key
// are not coalesced.
func (c *LRUCache[K, V]) Load(key K, load func() (V, bool, error)) (V, error) {
	c.mu.Lock()
	if v, ok := c.getLocked(key); ok {
		c.mu.Unlock()
		return v, nil
	}
	epoch := c.epoch
	c.mu.Unlock()

	v, cacheable, err := load()
	if err != nil {
		var zero V
		return zero, err
	}
	if cacheable {
		c.mu.Lock()
		if c.epoch == epoch {
			c.setLocked(key, v)
		}
		c.mu.Unlock()
	}
	return v, nil
}

// Delete drops key and invalidates loads in flight.
func (c *LRUCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.epoch++
	if elem, ok := c.entries[key]; ok {
		c.remove(elem)
	}
}

// CleanExpired drops expired entries and returns how many were dropped.
func (c *LRUCache[K, V]) CleanExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if now.After(elem.Value.(*entry[K, V]).expires) {
			c.remove(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

func (c *LRUCache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *LRUCache[K, V]) getLocked(key K) (V, bool) {
	var zero V
	elem, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	e := elem.Value.(*entry[K, V])
	if c.now().After(e.expires) {
		c.remove(elem)
		return zero, false
	}
	c.order.MoveToFront(elem)
	return e.value, true
}

func (c *LRUCache[K, V]) setLocked(key K, value V) {
	e := &entry[K, V]{key: key, value: value, expires: c.now().Add(c.ttl)}
	if elem, ok := c.entries[key]; ok {
		elem.Value = e
		c.order.MoveToFront(elem)
		return
	}
	c.entries[key] = c.order.PushFront(e)
	for c.order.Len() > c.maxSize {
		c.remove(c.order.Back())
	}
}

func (c *LRUCache[K, V]) remove(elem *list.Element) {
	delete(c.entries, elem.Value.(*entry[K, V]).key)
	c.order.Remove(elem)
}
