// Package cache provides a bounded LRU cache that degrades before it
// evicts: on overflow the coldest strongly held entries are demoted to
// weak references and survive as long as someone else holds the value.
package cache

import (
	"log"
	"weak"
)

// DemoteRatio is the share of strongly held entries demoted per overflow.
const DemoteRatio = 0.2

type entry[K comparable, V any] struct {
	key    K
	strong *V
	weak   weak.Pointer[V]

	prev, next *entry[K, V]
}

// value returns the entry's value, or nil once a weak referent is gone.
func (e *entry[K, V]) value() *V {
	if e.strong != nil {
		return e.strong
	}
	return e.weak.Value()
}

// LRU maps keys to values. The most recently used entry sits at head.
// It is not safe for concurrent use.
type LRU[K comparable, V any] struct {
	Name string

	capacity int
	index    map[K]*entry[K, V]
	head     *entry[K, V]
	tail     *entry[K, V]
	live     int
}

// New returns a cache holding at most capacity values strongly.
func New[K comparable, V any](capacity int) *LRU[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRU[K, V]{capacity: capacity, index: make(map[K]*entry[K, V])}
}

// Get returns the value for k. A demoted entry whose value was collected
// is removed and reported as a miss; a demoted entry that is still alive
// is held strongly again.
func (c *LRU[K, V]) Get(k K) (*V, bool) {
	e, ok := c.index[k]
	if !ok {
		return nil, false
	}
	v := e.value()
	if v == nil {
		c.remove(e)
		return nil, false
	}
	if e.strong == nil {
		e.strong = v
		e.weak = weak.Pointer[V]{}
		c.live++
	}
	c.moveToFront(e)
	c.shrink()
	return v, true
}

// Store inserts v under k. A key that is already present is left alone
// and Store returns false.
func (c *LRU[K, V]) Store(k K, v *V) bool {
	if _, ok := c.index[k]; ok {
		log.Printf("cache %s: store of existing key %v ignored", c.Name, k)
		return false
	}
	e := &entry[K, V]{key: k, strong: v}
	c.index[k] = e
	c.pushFront(e)
	c.live++
	c.shrink()
	return true
}

// Erase drops k and reports whether it was present.
func (c *LRU[K, V]) Erase(k K) bool {
	e, ok := c.index[k]
	if !ok {
		return false
	}
	c.remove(e)
	return true
}

// Len returns the number of entries, demoted ones included.
func (c *LRU[K, V]) Len() int { return len(c.index) }

// LiveLen returns the number of strongly held entries.
func (c *LRU[K, V]) LiveLen() int { return c.live }

func (c *LRU[K, V]) Capacity() int { return c.capacity }

func (c *LRU[K, V]) Clear() {
	c.index = make(map[K]*entry[K, V])
	c.head, c.tail = nil, nil
	c.live = 0
}

// Keys returns the keys from most to least recently used.
func (c *LRU[K, V]) Keys() []K {
	keys := make([]K, 0, len(c.index))
	for e := c.head; e != nil; e = e.next {
		keys = append(keys, e.key)
	}
	return keys
}

// shrink runs when the live count exceeds capacity. The first pass
// demotes the coldest DemoteRatio of strong entries and prunes dead weak
// ones; if that is not enough the coldest strong entries are evicted.
func (c *LRU[K, V]) shrink() {
	if c.live <= c.capacity {
		return
	}
	quota := int(float64(c.live) * DemoteRatio)
	if quota < 1 {
		quota = 1
	}
	for e := c.tail; e != nil; {
		prev := e.prev
		switch {
		case e.strong == nil:
			if e.weak.Value() == nil {
				c.remove(e)
			}
		case quota > 0:
			e.weak = weak.Make(e.strong)
			e.strong = nil
			c.live--
			quota--
		}
		e = prev
	}
	for e := c.tail; e != nil && c.live > c.capacity; {
		prev := e.prev
		if e.strong != nil {
			c.remove(e)
		}
		e = prev
	}
}

func (c *LRU[K, V]) pushFront(e *entry[K, V]) {
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *LRU[K, V]) unlink(e *entry[K, V]) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *LRU[K, V]) moveToFront(e *entry[K, V]) {
	if c.head == e {
		return
	}
	c.unlink(e)
	c.pushFront(e)
}

func (c *LRU[K, V]) remove(e *entry[K, V]) {
	c.unlink(e)
	delete(c.index, e.key)
	if e.strong != nil {
		c.live--
	}
}
