package slotpool

// index maps keys to arena positions. Collision chains are doubly linked
// through the slots themselves, so removing a slot never rehashes its key.
// The bucket array is sized once and never grows.
type index[K comparable, V any] struct {
	slots   []Slot[K, V]
	buckets []int32
	hash    Hasher[K]
	size    int
}

func bucketCount(capacity int, loadFactor float64) int {
	return int(float64(capacity)/loadFactor) + 1
}

func newIndex[K comparable, V any](slots []Slot[K, V], buckets int, hash Hasher[K]) index[K, V] {
	x := index[K, V]{
		slots:   slots,
		buckets: make([]int32, buckets),
		hash:    hash,
	}
	for b := range x.buckets {
		x.buckets[b] = nilIndex
	}
	return x
}

func (x *index[K, V]) len() int {
	return x.size
}

func (x *index[K, V]) bucket(h uint64) int {
	return int(h % uint64(len(x.buckets)))
}

// insert links slot i under key. The key must not already be present;
// the pool guarantees that by always calling find first.
func (x *index[K, V]) insert(key K, i int32) {
	h := x.hash(key)
	b := x.bucket(h)
	s := &x.slots[i]
	s.key = key
	s.hash = h
	s.chainPrev = nilIndex
	s.chainNext = x.buckets[b]
	if s.chainNext != nilIndex {
		x.slots[s.chainNext].chainPrev = i
	}
	x.buckets[b] = i
	x.size++
}

func (x *index[K, V]) find(key K) (int32, bool) {
	h := x.hash(key)
	for i := x.buckets[x.bucket(h)]; i != nilIndex; i = x.slots[i].chainNext {
		s := &x.slots[i]
		if s.hash == h && s.key == key {
			return i, true
		}
	}
	return nilIndex, false
}

// remove unlinks slot i from its chain using only the slot's own links.
func (x *index[K, V]) remove(i int32) {
	s := &x.slots[i]
	if s.chainPrev != nilIndex {
		x.slots[s.chainPrev].chainNext = s.chainNext
	} else {
		b := x.bucket(s.hash)
		if x.buckets[b] != i {
			panic("slotpool: remove of slot that is not indexed")
		}
		x.buckets[b] = s.chainNext
	}
	if s.chainNext != nilIndex {
		x.slots[s.chainNext].chainPrev = s.chainPrev
	}
	s.unchain()
	x.size--
}

func (x *index[K, V]) clear() {
	for b, head := range x.buckets {
		for i := head; i != nilIndex; {
			next := x.slots[i].chainNext
			x.slots[i].unchain()
			i = next
		}
		x.buckets[b] = nilIndex
	}
	x.size = 0
}
