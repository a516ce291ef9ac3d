package slotpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// constHasher sends every key to the same chain.
func constHasher(string) uint64 { return 42 }

func TestIndex_InsertFindRemove(t *testing.T) {
	slots := newArena[string, int](4)
	x := newIndex(slots, bucketCount(4, 1), StringHasher)

	x.insert("a", 0)
	x.insert("b", 2)
	assert.Equal(t, 2, x.len())

	i, ok := x.find("b")
	require.True(t, ok)
	assert.Equal(t, int32(2), i)

	_, ok = x.find("zzz")
	assert.False(t, ok, "absent key is not found, not an error")

	x.remove(2)
	_, ok = x.find("b")
	assert.False(t, ok)
	assert.Equal(t, 1, x.len())
	assert.Equal(t, nilIndex, slots[2].chainNext)
}

func TestIndex_ChainRemoval(t *testing.T) {
	slots := newArena[string, int](4)
	x := newIndex(slots, 8, constHasher)
	for i, k := range []string{"a", "b", "c", "d"} {
		x.insert(k, int32(i))
	}

	// Chain is d -> c -> b -> a; remove middle, head, tail.
	x.remove(2)
	x.remove(3)
	x.remove(0)
	i, ok := x.find("b")
	require.True(t, ok)
	assert.Equal(t, int32(1), i)
	assert.Equal(t, nilIndex, slots[1].chainPrev)
	assert.Equal(t, nilIndex, slots[1].chainNext)

	for _, k := range []string{"a", "c", "d"} {
		_, ok := x.find(k)
		assert.False(t, ok, k)
	}
}

func TestIndex_Clear(t *testing.T) {
	slots := newArena[string, int](3)
	x := newIndex(slots, 2, StringHasher)
	x.insert("a", 0)
	x.insert("b", 1)
	x.insert("c", 2)

	x.clear()
	assert.Equal(t, 0, x.len())
	for _, k := range []string{"a", "b", "c"} {
		_, ok := x.find(k)
		assert.False(t, ok)
	}
	for b := range x.buckets {
		assert.Equal(t, nilIndex, x.buckets[b])
	}
}

func TestIndex_RemoveUnindexedPanics(t *testing.T) {
	slots := newArena[string, int](2)
	x := newIndex(slots, 4, StringHasher)
	x.insert("a", 0)
	assert.Panics(t, func() { x.remove(1) })
}

func TestBucketCount(t *testing.T) {
	assert.Equal(t, 5, bucketCount(4, 1))
	assert.Equal(t, 3, bucketCount(4, 2))
	assert.Equal(t, 1, bucketCount(1, 4))
	assert.Equal(t, 1334, bucketCount(1000, 0.75))
}
