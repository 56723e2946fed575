package cache

import (
	"container/list"
	"sync"
	"time"
)

type entryKey struct {
	namespace string
	key       string
}

type memEntry struct {
	k          entryKey
	value      []byte
	insertedAt time.Time
	expiresAt  time.Time // zero = no expiry
}

func (e *memEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !e.expiresAt.After(now)
}

// memoryTier is a bounded LRU map with lazy TTL expiry.
//
// Expired entries are swept on every write so they never crowd out live
// ones; capacity eviction removes the least-recently-used live entry.
type memoryTier struct {
	mu         sync.Mutex
	capacity   int // 0 = unbounded
	defaultTTL time.Duration
	now        func() time.Time

	ll    *list.List // front = most recently used
	items map[entryKey]*list.Element
}

func newMemoryTier(capacity int, defaultTTL time.Duration, now func() time.Time) *memoryTier {
	if now == nil {
		now = time.Now
	}
	return &memoryTier{
		capacity:   capacity,
		defaultTTL: defaultTTL,
		now:        now,
		ll:         list.New(),
		items:      map[entryKey]*list.Element{},
	}
}

func (t *memoryTier) get(namespace, key string) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	el, ok := t.items[entryKey{namespace, key}]
	if !ok {
		return nil, false
	}
	e := el.Value.(*memEntry)
	if e.expired(t.now()) {
		t.removeLocked(el)
		return nil, false
	}
	t.ll.MoveToFront(el)
	return e.value, true
}

// put inserts or updates an entry. ttl <= 0 means no expiry.
func (t *memoryTier) put(namespace, key string, value []byte, ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	t.sweepLocked(now)

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = now.Add(ttl)
	}

	k := entryKey{namespace, key}
	if el, ok := t.items[k]; ok {
		e := el.Value.(*memEntry)
		e.value = value
		e.insertedAt = now
		e.expiresAt = expiresAt
		t.ll.MoveToFront(el)
		return
	}

	// Expired victims were already swept; evict exactly one live entry
	// (the least recently used) when at capacity.
	if t.capacity > 0 && t.ll.Len() >= t.capacity {
		if back := t.ll.Back(); back != nil {
			t.removeLocked(back)
		}
	}

	el := t.ll.PushFront(&memEntry{k: k, value: value, insertedAt: now, expiresAt: expiresAt})
	t.items[k] = el
}

func (t *memoryTier) remove(namespace, key string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if el, ok := t.items[entryKey{namespace, key}]; ok {
		t.removeLocked(el)
	}
}

func (t *memoryTier) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ll.Len()
}

func (t *memoryTier) removeLocked(el *list.Element) {
	e := el.Value.(*memEntry)
	t.ll.Remove(el)
	delete(t.items, e.k)
}

func (t *memoryTier) sweepLocked(now time.Time) {
	for el := t.ll.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*memEntry).expired(now) {
			t.removeLocked(el)
		}
		el = prev
	}
}
