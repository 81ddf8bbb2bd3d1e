// Package schemacache holds recently inspected schema snapshots. The cache is
// process-local and purely a latency optimization: entries expire after a TTL,
// the least-recently-used entry is evicted once the size bound is reached, and
// any schema-affecting write invalidates the target's entry. Dropping an entry
// is always safe — the next lookup simply re-inspects the database.
package schemacache

import (
	"container/list"
	"sync"
	"time"

	"dataflow/internal/core"
)

const (
	// DefaultTTL bounds how stale a cached snapshot may get.
	DefaultTTL = 300 * time.Second
	// DefaultMaxSize bounds how many targets are cached at once.
	DefaultMaxSize = 100
)

type entry struct {
	key      string
	schema   *core.Database
	storedAt time.Time
}

// Cache is a TTL + LRU bounded schema snapshot cache keyed by database URL.
type Cache struct {
	ttl     time.Duration
	maxSize int

	mu       sync.Mutex
	order    *list.List // front = most recently used
	elements map[string]*list.Element

	now func() time.Time
}

// New creates a cache. Non-positive ttl or maxSize fall back to the defaults.
func New(ttl time.Duration, maxSize int) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &Cache{
		ttl:      ttl,
		maxSize:  maxSize,
		order:    list.New(),
		elements: make(map[string]*list.Element),
		now:      time.Now,
	}
}

// Get returns the cached snapshot for key, or nil if the key is absent or its
// entry has outlived the TTL. A hit refreshes the entry's LRU position but not
// its expiry time.
func (c *Cache) Get(key string) *core.Database {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.elements[key]
	if !ok {
		return nil
	}
	e := el.Value.(*entry)
	if c.now().Sub(e.storedAt) >= c.ttl {
		c.removeLocked(el)
		return nil
	}
	c.order.MoveToFront(el)
	return e.schema
}

// Put stores a snapshot, evicting the least-recently-used entry if the cache
// is full.
func (c *Cache) Put(key string, schema *core.Database) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.elements[key]; ok {
		e := el.Value.(*entry)
		e.schema = schema
		e.storedAt = c.now()
		c.order.MoveToFront(el)
		return
	}

	for c.order.Len() >= c.maxSize {
		c.removeLocked(c.order.Back())
	}

	el := c.order.PushFront(&entry{key: key, schema: schema, storedAt: c.now()})
	c.elements[key] = el
}

// Invalidate drops the entry for key. Called after DDL is applied to that
// target so the next read re-inspects.
func (c *Cache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.elements[key]; ok {
		c.removeLocked(el)
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.elements = make(map[string]*list.Element)
}

// Len reports the number of live entries, expired or not.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) removeLocked(el *list.Element) {
	if el == nil {
		return
	}
	e := el.Value.(*entry)
	c.order.Remove(el)
	delete(c.elements, e.key)
}
