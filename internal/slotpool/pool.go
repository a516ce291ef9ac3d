package slotpool

import (
	"fmt"
	"iter"
	"math"
)

// maxSlots bounds the arena so every position fits an int32 link.
const maxSlots = math.MaxInt32

// DefaultLoadFactor is the slots-per-bucket target used when callers have
// no better estimate.
const DefaultLoadFactor = 0.75

// Stats counts pool activity since construction.
type Stats struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Releases  uint64
}

// Option configures a Pool.
type Option[K comparable, V any] func(*Pool[K, V])

// WithEvictHook registers fn to run when Acquire evicts the least recently
// used slot. fn sees the old binding before the slot is rebound and must not
// call back into the pool.
func WithEvictHook[K comparable, V any](fn func(key K, value *V)) Option[K, V] {
	return func(p *Pool[K, V]) {
		p.onEvict = fn
	}
}

// Pool is a fixed-capacity set of slots addressed by key and recycled in
// least-recently-used order.
//
// All slots are allocated by New; no operation allocates afterwards.
// A Pool is not safe for concurrent use. Callers sharing one must guard
// every call, iteration included, with a single exclusive lock.
type Pool[K comparable, V any] struct {
	slots []Slot[K, V]
	index index[K, V]

	// inUse is ordered least recently acquired (front) to most recently
	// acquired (back). free is reused LIFO.
	inUse list[K, V]
	free  list[K, V]

	onEvict func(key K, value *V)
	stats   Stats
}

// New creates a pool of capacity slots. loadFactor sizes the hash index to
// capacity/loadFactor+1 buckets.
func New[K comparable, V any](capacity int, loadFactor float64, hash Hasher[K], opts ...Option[K, V]) (*Pool[K, V], error) {
	if capacity < 1 || capacity > maxSlots {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	if !(loadFactor > 0) || float64(capacity)/loadFactor >= maxSlots {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidLoadFactor, loadFactor)
	}
	if hash == nil {
		return nil, ErrNilHasher
	}

	slots := newArena[K, V](capacity)
	p := &Pool[K, V]{
		slots: slots,
		index: newIndex(slots, bucketCount(capacity, loadFactor), hash),
		inUse: newList(slots, memberInUse),
		free:  newList(slots, memberFree),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.fillFree()
	return p, nil
}

// MustNew is New that panics on invalid arguments.
func MustNew[K comparable, V any](capacity int, loadFactor float64, hash Hasher[K], opts ...Option[K, V]) *Pool[K, V] {
	p, err := New(capacity, loadFactor, hash, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pool[K, V]) fillFree() {
	for i := range p.slots {
		p.free.pushBack(int32(i))
	}
}

// Acquire returns the slot bound to key, binding one if needed.
//
// On a hit the slot moves to the most recently used end and keeps its value.
// On a miss a free slot is taken, or, when none is left, the least recently
// used slot is evicted; either way the returned slot holds the zero value.
// Acquire never fails.
func (p *Pool[K, V]) Acquire(key K) *Slot[K, V] {
	if i, ok := p.index.find(key); ok {
		p.stats.Hits++
		p.inUse.remove(i)
		p.inUse.pushBack(i)
		return &p.slots[i]
	}

	p.stats.Misses++
	var i int32
	if p.free.len() > 0 {
		i = p.free.popFront()
	} else {
		i = p.inUse.popFront()
		p.index.remove(i)
		p.stats.Evictions++
		if p.onEvict != nil {
			p.onEvict(p.slots[i].key, &p.slots[i].value)
		}
	}

	s := &p.slots[i]
	var zero V
	s.value = zero
	p.index.insert(key, i)
	p.inUse.pushBack(i)
	return s
}

// Find returns the slot bound to key without changing its recency.
func (p *Pool[K, V]) Find(key K) (*Slot[K, V], bool) {
	i, ok := p.index.find(key)
	if !ok {
		return nil, false
	}
	return &p.slots[i], true
}

// Release unbinds s and returns it to the free list, where it is the first
// candidate for the next miss. Releasing a slot that is not in use, or that
// belongs to another pool, panics.
func (p *Pool[K, V]) Release(s *Slot[K, V]) {
	if !p.owns(s) {
		panic("slotpool: release of slot from another pool")
	}
	if !s.InUse() {
		panic("slotpool: release of slot that is not in use")
	}
	p.index.remove(s.id)
	p.inUse.remove(s.id)

	var (
		zeroK K
		zeroV V
	)
	s.key = zeroK
	s.value = zeroV
	p.free.pushFront(s.id)
	p.stats.Releases++
}

func (p *Pool[K, V]) owns(s *Slot[K, V]) bool {
	if s == nil || s.id < 0 || int(s.id) >= len(p.slots) {
		return false
	}
	return &p.slots[s.id] == s
}

// Oldest returns the least recently used slot without promoting it.
func (p *Pool[K, V]) Oldest() (*Slot[K, V], bool) {
	i := p.inUse.front()
	if i == nilIndex {
		return nil, false
	}
	return &p.slots[i], true
}

// Reset unbinds every slot and restores the free list to arena order.
// Counters are kept.
func (p *Pool[K, V]) Reset() {
	p.index.clear()
	p.inUse.clear()
	p.free.clear()

	var (
		zeroK K
		zeroV V
	)
	for i := range p.slots {
		p.slots[i].key = zeroK
		p.slots[i].value = zeroV
	}
	p.fillFree()
}

// Len returns the number of bound slots.
func (p *Pool[K, V]) Len() int {
	return p.inUse.len()
}

// Available returns the number of free slots.
func (p *Pool[K, V]) Available() int {
	return p.free.len()
}

// Capacity returns the fixed number of slots.
func (p *Pool[K, V]) Capacity() int {
	return len(p.slots)
}

// Stats returns the activity counters.
func (p *Pool[K, V]) Stats() Stats {
	return p.stats
}

// Slots iterates bound slots from least to most recently used.
// The pool must not be modified during iteration.
func (p *Pool[K, V]) Slots() iter.Seq[*Slot[K, V]] {
	return func(yield func(*Slot[K, V]) bool) {
		for i := p.inUse.front(); i != nilIndex; i = p.slots[i].next {
			if !yield(&p.slots[i]) {
				return
			}
		}
	}
}

// All iterates bindings from least to most recently used.
// The pool must not be modified during iteration.
func (p *Pool[K, V]) All() iter.Seq2[K, *V] {
	return func(yield func(K, *V) bool) {
		for i := p.inUse.front(); i != nilIndex; i = p.slots[i].next {
			if !yield(p.slots[i].key, &p.slots[i].value) {
				return
			}
		}
	}
}
