package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := New[int]()
	assert.True(t, q.IsEmpty())

	for i := 1; i <= 5; i++ {
		q.Enqueue(i)
	}
	require.Equal(t, 5, q.Len())

	head, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, 1, head)

	for want := 1; want <= 5; want++ {
		got, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, want, got)
	}

	_, ok = q.Dequeue()
	assert.False(t, ok)
	assert.True(t, q.IsEmpty())
}

func TestQueueReuseAfterDrain(t *testing.T) {
	q := New[string]()
	q.Enqueue("a")
	q.Enqueue("b")
	v, _ := q.Dequeue()
	assert.Equal(t, "a", v)

	q.Enqueue("c")
	v, _ = q.Dequeue()
	assert.Equal(t, "b", v)
	v, _ = q.Dequeue()
	assert.Equal(t, "c", v)

	q.Enqueue("d")
	assert.Equal(t, 1, q.Len())
	v, _ = q.Dequeue()
	assert.Equal(t, "d", v)
}

func TestQueueClear(t *testing.T) {
	q := New[[]byte]()
	q.Enqueue([]byte{1})
	q.Enqueue([]byte{2})
	q.Clear()
	assert.Equal(t, 0, q.Len())
	_, ok := q.Peek()
	assert.False(t, ok)
}
