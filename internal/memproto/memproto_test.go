package memproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticBumpAllocExhausts(t *testing.T) {
	s := NewStatic(16)
	a := s.Alloc(8)
	require.NotNil(t, a)
	b := s.Alloc(8)
	require.NotNil(t, b)
	assert.Nil(t, s.Alloc(1), "region exhausted")
}

func TestStaticFreePanics(t *testing.T) {
	s := NewStatic(16)
	assert.Panics(t, func() { s.Free(nil) })
}

func TestPoolAllocFreeAllocReturnsSameBlock(t *testing.T) {
	p := NewPool(32, 4)
	a := p.Alloc(32)
	require.NotNil(t, a)
	a[31] = 0xAB // past the 8-byte free-list link Free writes at the block start
	p.Free(a)
	b := p.Alloc(32)
	require.NotNil(t, b)
	assert.Equal(t, byte(0xAB), b[31], "pool reuses the same block")
}

func TestPoolExhaustion(t *testing.T) {
	p := NewPool(8, 2)
	require.NotNil(t, p.Alloc(8))
	require.NotNil(t, p.Alloc(8))
	assert.Nil(t, p.Alloc(8))
}

func TestHeapFirstFitAndCoalesce(t *testing.T) {
	h := NewHeap(256)
	a := h.Alloc(64)
	b := h.Alloc(64)
	require.NotNil(t, a)
	require.NotNil(t, b)

	h.Free(a)
	h.Free(b)

	// after coalescing both back with the remainder, a single large alloc
	// should succeed again.
	c := h.Alloc(200)
	assert.NotNil(t, c)
}

func TestHeapAllocFailsWhenTooBig(t *testing.T) {
	h := NewHeap(64)
	assert.Nil(t, h.Alloc(128))
}

func TestLibcPassthrough(t *testing.T) {
	l := Libc{}
	buf := l.Alloc(128)
	assert.Len(t, buf, 128)
	l.Free(buf) // no-op, must not panic
}

func TestKindStrings(t *testing.T) {
	assert.Equal(t, "static", KindStatic.String())
	assert.Equal(t, "pool", KindPool.String())
	assert.Equal(t, "heap", KindHeap.String())
	assert.Equal(t, "libc", KindLibc.String())
}
