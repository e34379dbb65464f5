package predict

import "container/list"

// DefaultCacheCapacity bounds the response cache.
const DefaultCacheCapacity = 16

type cacheEntry struct {
	key     string
	payload []byte
}

// responseCache is a strict LRU keyed by composite signature. Keys are
// exact-match only: a batch differing by one form or field is a different
// key by construction. The cache is owned by a single client and guarded by
// the client's mutex.
type responseCache struct {
	capacity int
	items    map[string]*list.Element
	order    *list.List
}

func newResponseCache(capacity int) *responseCache {
	if capacity < 1 {
		capacity = DefaultCacheCapacity
	}
	return &responseCache{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached payload and promotes the entry to most recently
// used.
func (c *responseCache) Get(key string) ([]byte, bool) {
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).payload, true
}

// Put stores a payload, evicting the least recently used entry once the
// cache exceeds its capacity.
func (c *responseCache) Put(key string, payload []byte) {
	if el, ok := c.items[key]; ok {
		c.order.MoveToFront(el)
		el.Value.(*cacheEntry).payload = payload
		return
	}
	if c.order.Len() >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.order.Remove(oldest)
			delete(c.items, oldest.Value.(*cacheEntry).key)
		}
	}
	c.items[key] = c.order.PushFront(&cacheEntry{key: key, payload: payload})
}

func (c *responseCache) Len() int { return c.order.Len() }
