package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRingPush(t *testing.T) {
	r := New[int](100)
	for i := 0; i < 99; i++ {
		assert.True(t, r.Push(i))
	}
	assert.True(t, r.Full())
	assert.Equal(t, 99, r.Len())
	assert.Equal(t, 0, r.Space())
	// Full ring rejects and stays the same
	before := r.Snapshot()
	assert.False(t, r.Push(1000))
	assert.Equal(t, before, r.Snapshot())
	// Free up some space
	v, ok := r.Pop()
	assert.True(t, ok)
	assert.Equal(t, 0, v)
	assert.True(t, r.Push(1000))
	assert.False(t, r.Push(1001))
}

func TestRingPopEmpty(t *testing.T) {
	r := New[string](4)
	v, ok := r.Pop()
	assert.False(t, ok)
	assert.Equal(t, "", v)
	assert.True(t, r.Empty())
	assert.Equal(t, 0, r.Len())
	_, ok = r.Peek()
	assert.False(t, ok)
}

func TestRingFifoOrderAcrossWrap(t *testing.T) {
	r := New[int](5)
	expected := 0
	next := 0
	// Interleave pushes and pops so that positions wrap several times
	for round := 0; round < 20; round++ {
		for r.Push(next) {
			next++
		}
		for i := 0; i < 3; i++ {
			v, ok := r.Pop()
			assert.True(t, ok)
			assert.Equal(t, expected, v)
			expected++
		}
	}
	for {
		v, ok := r.Pop()
		if !ok {
			break
		}
		assert.Equal(t, expected, v)
		expected++
	}
	assert.Equal(t, next, expected)
}

func TestRingCapacity(t *testing.T) {
	r := New[byte](16)
	assert.Equal(t, 15, r.Cap())
	assert.Equal(t, 15, r.Space())
	r = New[byte](0)
	assert.Equal(t, 1, r.Cap())
	assert.True(t, r.Push(1))
	assert.False(t, r.Push(2))
}

func TestRingReset(t *testing.T) {
	r := New[int](8)
	r.Push(1)
	r.Push(2)
	r.Reset()
	assert.True(t, r.Empty())
	assert.Empty(t, r.Snapshot())
	assert.True(t, r.Push(3))
	v, _ := r.Peek()
	assert.Equal(t, 3, v)
}
