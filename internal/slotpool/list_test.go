package slotpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func listOrder(l *list[int, int]) []int32 {
	var out []int32
	for i := l.front(); i != nilIndex; i = l.slots[i].next {
		out = append(out, i)
	}
	return out
}

func TestList_PushPop(t *testing.T) {
	slots := newArena[int, int](4)
	l := newList(slots, memberFree)

	l.pushBack(1)
	l.pushBack(2)
	l.pushFront(0)
	l.pushBack(3)
	assert.Equal(t, []int32{0, 1, 2, 3}, listOrder(&l))
	assert.Equal(t, 4, l.len())
	assert.NoError(t, checkList(&l))

	assert.Equal(t, int32(0), l.popFront())
	assert.Equal(t, int32(1), l.popFront())
	assert.Equal(t, []int32{2, 3}, listOrder(&l))
	assert.Equal(t, memberNone, slots[0].owner)
	assert.NoError(t, checkList(&l))
}

func TestList_Remove(t *testing.T) {
	slots := newArena[int, int](5)
	l := newList(slots, memberInUse)
	for i := int32(0); i < 5; i++ {
		l.pushBack(i)
	}

	l.remove(2) // middle
	l.remove(0) // head
	l.remove(4) // tail
	assert.Equal(t, []int32{1, 3}, listOrder(&l))
	assert.Equal(t, int32(3), l.tail)
	assert.NoError(t, checkList(&l))

	l.remove(1)
	l.remove(3)
	assert.Equal(t, 0, l.len())
	assert.Equal(t, nilIndex, l.front())
	assert.Equal(t, nilIndex, l.tail)
}

func TestList_Clear(t *testing.T) {
	slots := newArena[int, int](3)
	l := newList(slots, memberFree)
	for i := int32(0); i < 3; i++ {
		l.pushFront(i)
	}
	l.clear()
	assert.Equal(t, 0, l.len())
	for i := range slots {
		assert.Equal(t, memberNone, slots[i].owner)
		assert.Equal(t, nilIndex, slots[i].next)
	}

	l.pushBack(2)
	assert.Equal(t, []int32{2}, listOrder(&l))
}

func TestList_PreconditionViolations(t *testing.T) {
	slots := newArena[int, int](2)
	free := newList(slots, memberFree)
	used := newList(slots, memberInUse)

	assert.Panics(t, func() { free.popFront() }, "pop from empty list")
	assert.Panics(t, func() { free.remove(0) }, "remove of non-member")

	free.pushBack(0)
	assert.Panics(t, func() { used.pushBack(0) }, "slot in two lists")
	assert.Panics(t, func() { used.remove(0) }, "remove from the wrong list")
	assert.Panics(t, func() { free.pushFront(0) }, "double insert")
}
