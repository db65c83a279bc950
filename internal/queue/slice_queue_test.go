package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type frameItem struct {
	source uint16
	seq    uint8
}

func TestSliceQueue(t *testing.T) {
	assert := assert.New(t)

	t.Run("Empty Queue", func(t *testing.T) {
		q := NewSliceQueue[*frameItem](1)

		assert.True(q.IsEmpty())
		assert.Equal(0, q.Length())

		item, ok := q.Dequeue()
		assert.False(ok)
		assert.Nil(item)

		item, ok = q.Peek()
		assert.False(ok)
		assert.Nil(item)
	})

	t.Run("Enqueue and Dequeue", func(t *testing.T) {
		q := NewSliceQueue[*frameItem](1)

		item1 := &frameItem{source: 1, seq: 1}
		item2 := &frameItem{source: 2, seq: 1}
		q.Enqueue(item1)
		q.Enqueue(item2)
		assert.Equal(2, q.Length())

		got, ok := q.Dequeue()
		assert.True(ok)
		assert.Same(item1, got)

		got, ok = q.Peek()
		assert.True(ok)
		assert.Same(item2, got)
		assert.Equal(1, q.Length())

		got, _ = q.Dequeue()
		assert.Same(item2, got)
		assert.True(q.IsEmpty())
	})

	t.Run("RemoveFunc", func(t *testing.T) {
		q := NewSliceQueue[frameItem](4)
		q.Enqueue(frameItem{source: 1, seq: 1})
		q.Enqueue(frameItem{source: 1, seq: 2})
		q.Enqueue(frameItem{source: 2, seq: 1})
		q.Enqueue(frameItem{source: 1, seq: 1})

		removed := q.RemoveFunc(func(it frameItem) bool { return it.source == 1 && it.seq == 1 })
		assert.Equal(2, removed)
		assert.Equal(2, q.Length())

		first, _ := q.Dequeue()
		second, _ := q.Dequeue()
		assert.Equal(frameItem{source: 1, seq: 2}, first)
		assert.Equal(frameItem{source: 2, seq: 1}, second)

		assert.Equal(0, q.RemoveFunc(func(frameItem) bool { return true }))
	})

	t.Run("Reset", func(t *testing.T) {
		q := NewSliceQueue[int](2)
		q.Enqueue(1)
		q.Enqueue(2)
		q.Reset()

		assert.True(q.IsEmpty())
		q.Enqueue(3)
		got, _ := q.Peek()
		assert.Equal(3, got)
	})
}
