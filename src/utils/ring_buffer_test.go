package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingBuffer_FIFO(t *testing.T) {
	rb := NewRingBuffer[int](3)
	for i := 1; i <= 3; i++ {
		_, evicted := rb.Push(i)
		assert.False(t, evicted)
	}
	assert.True(t, rb.IsFull())
	assert.Equal(t, []int{1, 2, 3}, rb.GetAll())

	v, ok := rb.Pop()
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.Equal(t, 2, rb.Size())
}

func TestRingBuffer_EvictsOldest(t *testing.T) {
	rb := NewRingBuffer[string](2)
	rb.Push("a")
	rb.Push("b")

	old, evicted := rb.Push("c")
	assert.True(t, evicted)
	assert.Equal(t, "a", old)
	assert.Equal(t, []string{"b", "c"}, rb.GetAll())

	// Wrap-around keeps order.
	rb.Pop()
	rb.Push("d")
	assert.Equal(t, []string{"c", "d"}, rb.GetAll())
}

func TestRingBuffer_EmptyAndClear(t *testing.T) {
	rb := NewRingBuffer[int](0)
	assert.Equal(t, 1, rb.Capacity())

	_, ok := rb.Pop()
	assert.False(t, ok)

	rb.Push(7)
	rb.Clear()
	assert.Zero(t, rb.Size())
	assert.Empty(t, rb.GetAll())
}
