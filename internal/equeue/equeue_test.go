package equeue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIFOOrder(t *testing.T) {
	q := New(4)
	require.True(t, q.PutFIFO(1))
	require.True(t, q.PutFIFO(2))
	require.True(t, q.PutFIFO(3))

	assert.Equal(t, 1, q.Get())
	assert.Equal(t, 2, q.Get())
	assert.Equal(t, 3, q.Get())
	assert.True(t, q.IsEmpty())
}

func TestLIFOJumpsToHead(t *testing.T) {
	q := New(4)
	require.True(t, q.PutFIFO(1))
	require.True(t, q.PutFIFO(2))
	require.True(t, q.PutLIFO(99))

	assert.Equal(t, 99, q.Get())
	assert.Equal(t, 1, q.Get())
	assert.Equal(t, 2, q.Get())
}

func TestFullQueueRejects(t *testing.T) {
	q := New(2)
	require.True(t, q.PutFIFO(1))
	require.True(t, q.PutFIFO(2))
	assert.False(t, q.PutFIFO(3))
	assert.False(t, q.PutLIFO(3))
	assert.True(t, q.IsFull())
}

func TestGetOnEmptyPanics(t *testing.T) {
	q := New(1)
	assert.Panics(t, func() { q.Get() })
}

func TestLowWaterMark(t *testing.T) {
	q := New(4)
	assert.Equal(t, 4, q.LowWaterMark())
	q.PutFIFO(1)
	q.PutFIFO(2)
	q.PutFIFO(3)
	assert.Equal(t, 1, q.LowWaterMark())
	q.Get()
	q.Get()
	assert.Equal(t, 1, q.LowWaterMark(), "low water mark never increases")
}

func TestWraparound(t *testing.T) {
	q := New(3)
	q.PutFIFO(1)
	q.PutFIFO(2)
	q.Get()
	q.PutFIFO(3)
	q.PutFIFO(4)
	assert.Equal(t, 2, q.Get())
	assert.Equal(t, 3, q.Get())
	assert.Equal(t, 4, q.Get())
}
