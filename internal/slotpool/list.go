package slotpool

// list is a doubly-linked list threaded through the arena.
// Links are arena indices, so no node is ever allocated.
type list[K comparable, V any] struct {
	slots []Slot[K, V]
	kind  membership
	head  int32
	tail  int32
	size  int
}

func newList[K comparable, V any](slots []Slot[K, V], kind membership) list[K, V] {
	return list[K, V]{
		slots: slots,
		kind:  kind,
		head:  nilIndex,
		tail:  nilIndex,
	}
}

func (l *list[K, V]) len() int {
	return l.size
}

func (l *list[K, V]) front() int32 {
	return l.head
}

func (l *list[K, V]) attach(i int32) *Slot[K, V] {
	s := &l.slots[i]
	if s.owner != memberNone {
		panic("slotpool: slot is already a list member")
	}
	s.owner = l.kind
	return s
}

func (l *list[K, V]) pushFront(i int32) {
	s := l.attach(i)
	s.prev = nilIndex
	s.next = l.head
	if l.head != nilIndex {
		l.slots[l.head].prev = i
	} else {
		l.tail = i
	}
	l.head = i
	l.size++
}

func (l *list[K, V]) pushBack(i int32) {
	s := l.attach(i)
	s.next = nilIndex
	s.prev = l.tail
	if l.tail != nilIndex {
		l.slots[l.tail].next = i
	} else {
		l.head = i
	}
	l.tail = i
	l.size++
}

func (l *list[K, V]) popFront() int32 {
	i := l.head
	if i == nilIndex {
		panic("slotpool: pop from empty list")
	}
	l.remove(i)
	return i
}

func (l *list[K, V]) remove(i int32) {
	s := &l.slots[i]
	if s.owner != l.kind {
		panic("slotpool: remove of slot that is not a list member")
	}
	if s.prev != nilIndex {
		l.slots[s.prev].next = s.next
	} else {
		l.head = s.next
	}
	if s.next != nilIndex {
		l.slots[s.next].prev = s.prev
	} else {
		l.tail = s.prev
	}
	s.unlink()
	l.size--
}

// clear detaches every member. Unlike the other operations it is O(size),
// since each member's tag has to be reset.
func (l *list[K, V]) clear() {
	for i := l.head; i != nilIndex; {
		next := l.slots[i].next
		l.slots[i].unlink()
		i = next
	}
	l.head = nilIndex
	l.tail = nilIndex
	l.size = 0
}
