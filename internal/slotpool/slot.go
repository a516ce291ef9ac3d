package slotpool

// nilIndex marks the absence of a link target in the arena.
const nilIndex int32 = -1

// membership identifies which list a slot currently belongs to.
type membership uint8

const (
	memberNone membership = iota
	memberFree
	memberInUse
)

// Slot is one fixed record of the pool's arena.
// A *Slot returned by Acquire or Find stays valid for the pool's lifetime,
// but its key and value belong to the caller only until the slot is
// released or evicted.
type Slot[K comparable, V any] struct {
	key   K
	value V

	// Position in the arena, used to validate Release.
	id int32

	// Links of the list this slot is a member of.
	prev  int32
	next  int32
	owner membership

	// Links of the hash chain, valid while owner == memberInUse.
	chainPrev int32
	chainNext int32
	hash      uint64
}

// Key returns the key the slot is bound to.
func (s *Slot[K, V]) Key() K {
	return s.key
}

// Value returns a pointer to the caller payload.
func (s *Slot[K, V]) Value() *V {
	return &s.value
}

// InUse reports whether the slot is bound to a key.
func (s *Slot[K, V]) InUse() bool {
	return s.owner == memberInUse
}

func (s *Slot[K, V]) unlink() {
	s.prev = nilIndex
	s.next = nilIndex
	s.owner = memberNone
}

func (s *Slot[K, V]) unchain() {
	s.chainPrev = nilIndex
	s.chainNext = nilIndex
	s.hash = 0
}

// newArena allocates capacity slots, all detached.
func newArena[K comparable, V any](capacity int) []Slot[K, V] {
	slots := make([]Slot[K, V], capacity)
	for i := range slots {
		slots[i].id = int32(i)
		slots[i].unlink()
		slots[i].unchain()
	}
	return slots
}
