package convstore

import (
	"container/list"
	"sync"
	"time"

	"github.com/coralcommerce/dispatcher/models"
)

// lru is a bounded, TTL-aware in-process cache: C6's L1 tier. No pack
// repo imports a third-party LRU, so this is hand-rolled over
// container/list + a map, the same shape as a textbook doubly-linked-
// list LRU.
type lru struct {
	capacity int
	ttl      time.Duration

	mu    sync.Mutex
	ll    *list.List
	items map[string]*list.Element
}

type lruEntry struct {
	key       string
	value     models.ConversationContext
	expiresAt time.Time
}

func newLRU(capacity int, ttl time.Duration) *lru {
	return &lru{
		capacity: capacity,
		ttl:      ttl,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
	}
}

func (c *lru) Get(key string) (models.ConversationContext, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return models.ConversationContext{}, false
	}
	entry := el.Value.(*lruEntry)
	if time.Now().After(entry.expiresAt) {
		c.ll.Remove(el)
		delete(c.items, key)
		return models.ConversationContext{}, false
	}
	c.ll.MoveToFront(el)
	return entry.value, true
}

func (c *lru) Set(key string, value models.ConversationContext) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		entry := el.Value.(*lruEntry)
		entry.value = value
		entry.expiresAt = time.Now().Add(c.ttl)
		c.ll.MoveToFront(el)
		return
	}

	entry := &lruEntry{key: key, value: value, expiresAt: time.Now().Add(c.ttl)}
	el := c.ll.PushFront(entry)
	c.items[key] = el

	if c.ll.Len() > c.capacity {
		oldest := c.ll.Back()
		if oldest != nil {
			c.ll.Remove(oldest)
			delete(c.items, oldest.Value.(*lruEntry).key)
		}
	}
}

func (c *lru) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.ll.Remove(el)
		delete(c.items, key)
	}
}
