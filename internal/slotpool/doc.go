// Package slotpool provides a fixed-capacity, key-addressable pool of slots
// recycled in least-recently-used order.
//
// # Layout
//
// A Pool owns three structures that always agree with each other:
//
//   - an arena of Capacity() slots, allocated once by New
//   - a chained hash index from key to slot
//   - two lists threaded through the slots: in-use (LRU at the front,
//     MRU at the back) and free
//
// Links are arena positions rather than pointers, so every link target is a
// bounds-checked slot of the same arena.
//
// # Usage
//
//	p, err := slotpool.New[string, conn](1024, slotpool.DefaultLoadFactor, slotpool.StringHasher)
//	if err != nil {
//	    return err
//	}
//	s := p.Acquire("10.0.0.1:4000") // hit promotes, miss binds or evicts the LRU slot
//	s.Value().lastSeen = now
//	p.Release(s)
//
// # Concurrency
//
// Pools are not safe for concurrent use. Give each pool a single owner, or
// guard every call with one exclusive lock.
//
// # Misuse
//
// Releasing a slot that is not in use, or that came from another pool,
// panics. Continuing would corrupt the index and list invariants.
package slotpool
