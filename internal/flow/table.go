package flow

import (
	"fmt"
	"sync"
	"time"

	"github.com/SkynetNext/flow-gateway/internal/slotpool"
)

// Options configures a Table.
type Options struct {
	// Capacity is the total number of flow slots, split across shards.
	Capacity int

	// LoadFactor sizes each shard's hash index.
	LoadFactor float64

	// Shards must be a power of two no larger than Capacity.
	Shards int

	// OnRemove, if set, is called for every flow that leaves the table
	// except through Reset. It runs after the shard lock is released.
	OnRemove func(Entry, Reason)
}

// Table tracks flows in a bounded, sharded set of LRU slot pools.
// When a shard is full, the flow it saw least recently is recycled.
//
// Each shard is one slotpool.Pool guarded by its own mutex, so the pool's
// single-owner contract holds while flows in different shards proceed in
// parallel.
type Table struct {
	shards   []*shard
	mask     uint64
	onRemove func(Entry, Reason)
}

type shard struct {
	mu   sync.Mutex
	pool *slotpool.Pool[Key, Record]

	// set by the evict hook during Acquire, consumed before unlock
	evicted    Entry
	hasEvicted bool

	// latest LastSeen stored in this shard; keeps LRU order equal to LastSeen order
	clock time.Time
}

// NewTable creates a table with opts.Capacity slots in total.
func NewTable(opts Options) (*Table, error) {
	if opts.Shards <= 0 || opts.Shards&(opts.Shards-1) != 0 {
		return nil, fmt.Errorf("flow: shards must be a power of two, got %d", opts.Shards)
	}
	if opts.Capacity < opts.Shards {
		return nil, fmt.Errorf("flow: capacity %d is smaller than shard count %d", opts.Capacity, opts.Shards)
	}

	t := &Table{
		shards:   make([]*shard, opts.Shards),
		mask:     uint64(opts.Shards - 1),
		onRemove: opts.OnRemove,
	}

	base, extra := opts.Capacity/opts.Shards, opts.Capacity%opts.Shards
	for i := range t.shards {
		capacity := base
		if i < extra {
			capacity++
		}

		s := &shard{}
		pool, err := slotpool.New[Key, Record](capacity, opts.LoadFactor, HashKey,
			slotpool.WithEvictHook(func(k Key, r *Record) {
				s.evicted = Entry{Key: k, Record: *r}
				s.hasEvicted = true
			}),
		)
		if err != nil {
			return nil, fmt.Errorf("flow: shard %d: %w", i, err)
		}
		s.pool = pool
		t.shards[i] = s
	}
	return t, nil
}

// shardFor uses the high half of the hash; the pool buckets by the low bits.
func (t *Table) shardFor(k Key) *shard {
	return t.shards[(HashKey(k)>>32)&t.mask]
}

// Observe records a frame of n bytes on flow k at time now, binding a slot
// to k if needed. A now earlier than the shard's latest observation is
// raised to it, so a flow refreshed later never looks idler than one
// refreshed before it. It returns the updated record and whether the flow is new.
func (t *Table) Observe(k Key, n int, now time.Time) (Record, bool) {
	s := t.shardFor(k)

	s.mu.Lock()
	if now.Before(s.clock) {
		now = s.clock
	} else {
		s.clock = now
	}
	r := s.pool.Acquire(k).Value()
	created := r.Packets == 0
	if created {
		r.FirstSeen = now
	}
	r.Packets++
	r.Bytes += uint64(n)
	r.LastSeen = now
	out := *r

	evicted, hasEvicted := s.evicted, s.hasEvicted
	s.evicted, s.hasEvicted = Entry{}, false
	s.mu.Unlock()

	if hasEvicted {
		t.removed(evicted, ReasonEvicted)
	}
	return out, created
}

// Lookup returns the record of flow k without refreshing its recency.
func (t *Table) Lookup(k Key) (Record, bool) {
	s := t.shardFor(k)
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.pool.Find(k)
	if !ok {
		return Record{}, false
	}
	return *slot.Value(), true
}

// Close releases flow k. It reports whether k was tracked.
func (t *Table) Close(k Key) bool {
	s := t.shardFor(k)

	s.mu.Lock()
	slot, ok := s.pool.Find(k)
	if !ok {
		s.mu.Unlock()
		return false
	}
	e := Entry{Key: k, Record: *slot.Value()}
	s.pool.Release(slot)
	s.mu.Unlock()

	t.removed(e, ReasonClosed)
	return true
}

// CleanupIdle releases flows not observed within timeout of now and returns
// how many were released. Each shard is swept from its least recently
// observed flow and the sweep stops at the first live one.
func (t *Table) CleanupIdle(timeout time.Duration, now time.Time) int {
	total := 0
	var expired []Entry
	for _, s := range t.shards {
		expired = expired[:0]

		s.mu.Lock()
		for {
			slot, ok := s.pool.Oldest()
			if !ok || now.Sub(slot.Value().LastSeen) <= timeout {
				break
			}
			expired = append(expired, Entry{Key: slot.Key(), Record: *slot.Value()})
			s.pool.Release(slot)
		}
		s.mu.Unlock()

		for _, e := range expired {
			t.removed(e, ReasonExpired)
		}
		total += len(expired)
	}
	return total
}

// Snapshot copies up to limit flows, each shard in least to most recently
// observed order. limit <= 0 means all flows.
func (t *Table) Snapshot(limit int) []Entry {
	if n := t.Len(); limit <= 0 || limit > n {
		limit = n
	}
	out := make([]Entry, 0, limit)
	for _, s := range t.shards {
		s.mu.Lock()
		for k, r := range s.pool.All() {
			if len(out) == limit {
				break
			}
			out = append(out, Entry{Key: k, Record: *r})
		}
		s.mu.Unlock()
		if len(out) == limit {
			break
		}
	}
	return out
}

// Reset drops every flow without calling OnRemove.
func (t *Table) Reset() {
	for _, s := range t.shards {
		s.mu.Lock()
		s.pool.Reset()
		s.mu.Unlock()
	}
}

// Len returns the number of tracked flows.
func (t *Table) Len() int {
	n := 0
	for _, s := range t.shards {
		s.mu.Lock()
		n += s.pool.Len()
		s.mu.Unlock()
	}
	return n
}

// Available returns the number of free slots.
func (t *Table) Available() int {
	n := 0
	for _, s := range t.shards {
		s.mu.Lock()
		n += s.pool.Available()
		s.mu.Unlock()
	}
	return n
}

// Capacity returns the fixed number of slots.
func (t *Table) Capacity() int {
	n := 0
	for _, s := range t.shards {
		n += s.pool.Capacity()
	}
	return n
}

// Stats sums the pool counters of all shards.
func (t *Table) Stats() slotpool.Stats {
	var total slotpool.Stats
	for _, s := range t.shards {
		s.mu.Lock()
		st := s.pool.Stats()
		s.mu.Unlock()

		total.Hits += st.Hits
		total.Misses += st.Misses
		total.Evictions += st.Evictions
		total.Releases += st.Releases
	}
	return total
}

func (t *Table) removed(e Entry, reason Reason) {
	if t.onRemove != nil {
		t.onRemove(e, reason)
	}
}
