package template

import (
	"context"
	"sync"
)

// CachedSource keeps the most recently used templates in memory. Templates
// are static assets, so entries never expire; only capacity evicts them.
type CachedSource struct {
	next  Source
	mutex sync.Mutex
	cap   int
	items map[string]*cacheNode
	head  *cacheNode // most recently used
	tail  *cacheNode // least recently used
	stats CacheStats
}

type cacheNode struct {
	key   string
	value []byte
	prev  *cacheNode
	next  *cacheNode
}

// CacheStats reports cache effectiveness
type CacheStats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Size     int   `json:"current_size"`
	Capacity int   `json:"max_capacity"`
}

// NewCachedSource wraps next with an LRU of the given capacity
func NewCachedSource(next Source, capacity int) *CachedSource {
	if capacity <= 0 {
		capacity = 8
	}

	c := &CachedSource{
		next:  next,
		cap:   capacity,
		items: make(map[string]*cacheNode),
		head:  &cacheNode{},
		tail:  &cacheNode{},
	}
	c.head.next = c.tail
	c.tail.prev = c.head
	return c
}

// Load returns the cached template or loads and caches it. Failed loads are
// not cached. Callers must not modify the returned bytes.
func (c *CachedSource) Load(ctx context.Context, name string) ([]byte, error) {
	if data, ok := c.get(name); ok {
		return data, nil
	}

	// Two concurrent misses may both load; the second put just refreshes.
	data, err := c.next.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	c.put(name, data)
	return data, nil
}

// Stats returns hit and miss counters
func (c *CachedSource) Stats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	s := c.stats
	s.Size = len(c.items)
	s.Capacity = c.cap
	return s
}

func (c *CachedSource) get(key string) ([]byte, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	node, ok := c.items[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.unlink(node)
	c.pushFront(node)
	c.stats.Hits++
	return node.value, true
}

func (c *CachedSource) put(key string, value []byte) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if node, ok := c.items[key]; ok {
		node.value = value
		c.unlink(node)
		c.pushFront(node)
		return
	}

	node := &cacheNode{key: key, value: value}
	c.pushFront(node)
	c.items[key] = node

	if len(c.items) > c.cap {
		lru := c.tail.prev
		c.unlink(lru)
		delete(c.items, lru.key)
	}
}

func (c *CachedSource) pushFront(node *cacheNode) {
	node.prev = c.head
	node.next = c.head.next
	c.head.next.prev = node
	c.head.next = node
}

func (c *CachedSource) unlink(node *cacheNode) {
	node.prev.next = node.next
	node.next.prev = node.prev
}
