package catalog

import (
	"container/list"
	"sync"

	"github.com/hyperjump/ruiji/internal/models"
)

// DetailCache is an LRU cache of catalog items keyed by id.
type DetailCache struct {
	capacity int
	cache    map[int64]*list.Element
	lru      *list.List
	mu       sync.Mutex
}

type cacheEntry struct {
	key   int64
	value *models.Item
}

// NewDetailCache creates a cache holding at most capacity items. A capacity
// of zero or less disables caching.
func NewDetailCache(capacity int) *DetailCache {
	return &DetailCache{
		capacity: capacity,
		cache:    make(map[int64]*list.Element),
		lru:      list.New(),
	}
}

// Get returns the cached item for id if present.
func (c *DetailCache) Get(id int64) (*models.Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[id]; ok {
		c.lru.MoveToFront(elem)
		return elem.Value.(*cacheEntry).value, true
	}
	return nil, false
}

// Set stores item under its id, evicting the least recently used entry if at capacity.
func (c *DetailCache) Set(item *models.Item) {
	if c.capacity <= 0 || item == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[item.ID]; ok {
		c.lru.MoveToFront(elem)
		elem.Value.(*cacheEntry).value = item
		return
	}

	elem := c.lru.PushFront(&cacheEntry{key: item.ID, value: item})
	c.cache[item.ID] = elem

	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.cache, oldest.Value.(*cacheEntry).key)
	}
}

// Delete drops id from the cache.
func (c *DetailCache) Delete(id int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.cache[id]; ok {
		c.lru.Remove(elem)
		delete(c.cache, id)
	}
}

// Len returns the number of cached items.
func (c *DetailCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}
