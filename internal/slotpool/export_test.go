package slotpool

import "fmt"

// checkInvariants walks every structure of the pool and reports the first
// inconsistency between the arena, the index and the two lists.
func (p *Pool[K, V]) checkInvariants() error {
	if p.inUse.len()+p.free.len() != len(p.slots) {
		return fmt.Errorf("in-use %d + free %d != capacity %d", p.inUse.len(), p.free.len(), len(p.slots))
	}
	if p.index.len() != p.inUse.len() {
		return fmt.Errorf("index size %d != in-use size %d", p.index.len(), p.inUse.len())
	}
	if err := checkList(&p.inUse); err != nil {
		return fmt.Errorf("in-use list: %w", err)
	}
	if err := checkList(&p.free); err != nil {
		return fmt.Errorf("free list: %w", err)
	}

	seen := make(map[K]int32, p.inUse.len())
	for i := p.inUse.front(); i != nilIndex; i = p.slots[i].next {
		s := &p.slots[i]
		if prev, dup := seen[s.key]; dup {
			return fmt.Errorf("key %v bound to slots %d and %d", s.key, prev, i)
		}
		seen[s.key] = i
		j, ok := p.index.find(s.key)
		if !ok || j != i {
			return fmt.Errorf("slot %d with key %v not reachable from index", i, s.key)
		}
	}

	chained := 0
	for b, head := range p.index.buckets {
		prev := nilIndex
		for i := head; i != nilIndex; i = p.slots[i].chainNext {
			s := &p.slots[i]
			if !s.InUse() {
				return fmt.Errorf("indexed slot %d is not in use", i)
			}
			if p.index.bucket(s.hash) != b {
				return fmt.Errorf("slot %d chained in bucket %d, hashes to %d", i, b, p.index.bucket(s.hash))
			}
			if s.chainPrev != prev {
				return fmt.Errorf("slot %d chain back link %d, want %d", i, s.chainPrev, prev)
			}
			prev = i
			chained++
		}
	}
	if chained != p.index.len() {
		return fmt.Errorf("chains hold %d slots, index size %d", chained, p.index.len())
	}
	return nil
}

func checkList[K comparable, V any](l *list[K, V]) error {
	n := 0
	prev := nilIndex
	for i := l.head; i != nilIndex; i = l.slots[i].next {
		s := &l.slots[i]
		if s.owner != l.kind {
			return fmt.Errorf("slot %d tagged %d, want %d", i, s.owner, l.kind)
		}
		if s.prev != prev {
			return fmt.Errorf("slot %d back link %d, want %d", i, s.prev, prev)
		}
		prev = i
		n++
		if n > len(l.slots) {
			return fmt.Errorf("cycle detected")
		}
	}
	if prev != l.tail {
		return fmt.Errorf("tail %d, last member %d", l.tail, prev)
	}
	if n != l.size {
		return fmt.Errorf("walked %d members, size %d", n, l.size)
	}
	return nil
}

// keysLRU lists bound keys from least to most recently used.
func (p *Pool[K, V]) keysLRU() []K {
	keys := make([]K, 0, p.Len())
	for k := range p.All() {
		keys = append(keys, k)
	}
	return keys
}
