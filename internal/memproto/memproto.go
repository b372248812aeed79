// Package memproto implements the memory protocol adapter: a uniform
// alloc/free interface over static-bump, fixed-block-pool, first-fit heap,
// and libc-passthrough allocators, grounded on
// original_source/include/mm/{static,pool,heap,stdheap}.h. None of these
// lock internally — every call must be made with the kernel's critical
// section already held, matching the original's caller contract, since Go
// has no raw pointer arithmetic the headers are modeled with slice offsets
// into a single backing []byte rather than pointers before an allocation.
package memproto

import "fmt"

// Kind tags which variant produced a MemoryObject, the Go analogue of the
// original's debug magic distinguishing static/pool/heap/stdheap.
type Kind uint8

const (
	KindStatic Kind = iota
	KindPool
	KindHeap
	KindLibc
)

func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindPool:
		return "pool"
	case KindHeap:
		return "heap"
	case KindLibc:
		return "libc"
	default:
		return "unknown"
	}
}

// MemoryObject is the allocator facade every variant implements: Alloc
// returns nil on exhaustion (it never panics in normal operation) and Free
// returns storage back to the allocator it came from.
type MemoryObject interface {
	Alloc(size int) []byte
	Free(block []byte)
	Kind() Kind
	// BlockSize returns the fixed block size for Pool allocators, and 0
	// for variants that serve arbitrary sizes (used by the event pool
	// registry's block-size-ascending ordering).
	BlockSize() int
}

const alignment = 8

func alignUp(size int) int {
	return (size + alignment - 1) &^ (alignment - 1)
}

// Static is a bump allocator over a fixed region: Alloc advances a
// watermark and rounds up to alignment; Free always fails (asserts) since
// static regions are never reclaimed individually.
type Static struct {
	region []byte
	top    int
}

// NewStatic carves a bump allocator out of a freshly made byte region of
// the given size.
func NewStatic(size int) *Static {
	return &Static{region: make([]byte, size)}
}

func (s *Static) Alloc(size int) []byte {
	size = alignUp(size)
	if s.top+size > len(s.region) {
		return nil
	}
	block := s.region[s.top : s.top+size]
	s.top += size
	return block
}

// Free on a static allocator always fails: individual blocks are never
// reclaimed. Calling it is a contract violation in debug builds.
func (s *Static) Free(block []byte) {
	panic("memproto: Free called on a Static (bump) allocator")
}

func (s *Static) Kind() Kind    { return KindStatic }
func (s *Static) BlockSize() int { return 0 }

// Pool serves fixed-size blocks from a singly linked free list threaded
// through the blocks themselves before they are handed out.
type Pool struct {
	region    []byte
	blockSize int
	freeHead  int // index into region of the first free block, -1 if none
}

// NewPool carves count fixed-size blocks of blockSize bytes (rounded up to
// alignment) out of one backing region, and threads them onto the free
// list in order.
func NewPool(blockSize, count int) *Pool {
	blockSize = alignUp(blockSize)
	p := &Pool{
		region:    make([]byte, blockSize*count),
		blockSize: blockSize,
		freeHead:  -1,
	}
	for i := count - 1; i >= 0; i-- {
		p.pushFree(i * blockSize)
	}
	return p
}

func (p *Pool) pushFree(offset int) {
	// The free-list "next" pointer is stored as an int index in the first
	// 8 bytes of the otherwise-unused free block, the in-place-linked-list
	// technique the original's pool allocator uses over raw blocks.
	putInt(p.region[offset:], p.freeHead)
	p.freeHead = offset
}

func putInt(b []byte, v int) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getInt(b []byte) int {
	var v int
	for i := 0; i < 8; i++ {
		v |= int(b[i]) << (8 * i)
	}
	return v
}

// Alloc ignores size (the block size dominates) and returns the head of
// the free list, or nil if exhausted.
func (p *Pool) Alloc(size int) []byte {
	if p.freeHead < 0 {
		return nil
	}
	off := p.freeHead
	p.freeHead = getInt(p.region[off:])
	return p.region[off : off+p.blockSize]
}

// Free pushes block back onto the head of the free list. The caller must
// pass back a slice previously returned by Alloc on this Pool.
func (p *Pool) Free(block []byte) {
	off := p.offsetOf(block)
	p.pushFree(off)
}

func (p *Pool) offsetOf(block []byte) int {
	// &block[0] - &p.region[0], computed via cap/len bookkeeping since Go
	// forbids raw pointer subtraction: both slices share the same backing
	// array, so re-deriving the offset from len(p.region)-cap(block) is
	// exact.
	return len(p.region) - cap(block)
}

func (p *Pool) Kind() Kind      { return KindPool }
func (p *Pool) BlockSize() int { return p.blockSize }

// heapHeader is kept as a struct alongside the backing buffer rather than
// encoded into the byte buffer's physical layout (the technique the C
// original uses to store a block's size immediately before its payload).
// Go slices don't expose enough pointer arithmetic to do that safely, so
// physical adjacency is modeled with explicit offset/size bookkeeping
// instead — functionally equivalent, minus the raw-pointer coalescing.
type heapHeader struct {
	offset    int
	size      int
	allocated bool
}

// Heap is a first-fit allocator with physical-adjacency coalescing on
// free, modeled over one backing []byte with an explicit block-descriptor
// list standing in for the original's in-place linked free list.
type Heap struct {
	region []byte
	blocks []*heapHeader // physically ordered by offset
}

// NewHeap carves a first-fit heap out of a freshly made byte region.
func NewHeap(size int) *Heap {
	return &Heap{
		region: make([]byte, size),
		blocks: []*heapHeader{{offset: 0, size: size, allocated: false}},
	}
}

func (h *Heap) Alloc(size int) []byte {
	size = alignUp(size)
	for i, b := range h.blocks {
		if b.allocated || b.size < size {
			continue
		}
		remainder := b.size - size
		b.allocated = true
		if remainder >= alignment {
			b.size = size
			split := &heapHeader{offset: b.offset + size, size: remainder, allocated: false}
			h.blocks = append(h.blocks, nil)
			copy(h.blocks[i+2:], h.blocks[i+1:])
			h.blocks[i+1] = split
		}
		return h.region[b.offset : b.offset+size]
	}
	return nil
}

func (h *Heap) Free(block []byte) {
	offset := len(h.region) - cap(block)
	idx := -1
	for i, b := range h.blocks {
		if b.offset == offset {
			idx = i
			break
		}
	}
	if idx < 0 {
		panic(fmt.Sprintf("memproto: Free of unknown block at offset %d", offset))
	}
	h.blocks[idx].allocated = false
	h.coalesce(idx)
}

// coalesce merges the freed block at idx with up to two physical
// neighbors, then updates the block list in place.
func (h *Heap) coalesce(idx int) {
	if idx+1 < len(h.blocks) && !h.blocks[idx+1].allocated {
		h.blocks[idx].size += h.blocks[idx+1].size
		h.blocks = append(h.blocks[:idx+1], h.blocks[idx+2:]...)
	}
	if idx > 0 && !h.blocks[idx-1].allocated {
		h.blocks[idx-1].size += h.blocks[idx].size
		h.blocks = append(h.blocks[:idx], h.blocks[idx+1:]...)
	}
}

func (h *Heap) Kind() Kind      { return KindHeap }
func (h *Heap) BlockSize() int { return 0 }

// Libc wraps the hosted platform's allocator directly: Alloc is a plain
// make, Free is a no-op since Go's garbage collector reclaims the backing
// array once the last reference drops. This mirrors the original's
// passthrough to malloc/free one-for-one in spirit (uniform interface,
// host-managed storage) even though Go has no explicit free.
type Libc struct{}

func (Libc) Alloc(size int) []byte { return make([]byte, size) }
func (Libc) Free(block []byte)     {}
func (Libc) Kind() Kind            { return KindLibc }
func (Libc) BlockSize() int        { return 0 }
