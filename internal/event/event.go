// Package event implements the event object: a fingerprinted,
// reference-counted, optionally reserved unit of communication drawn from a
// registered pool, plus the pool registry itself (kept sorted by block
// size ascending so allocation always picks the smallest pool that fits).
// Grounded on original_source/src/event.c (poolFindI, esEventPoolRegister's
// insertion sort) and original_source/include/ep/event.h. This adopts the
// Neon layout (dedicated ref field, separate attrib bitfield) rather than
// the older eSolid layout that packs the refcount into attrib's low bits —
// see DESIGN.md's Open Question decision.
package event

import (
	"github.com/nradulovic-go/neon/internal/memproto"
)

// Code is the closed error-kind enum from spec.md §7, reused here instead
// of the root package's ErrorCode to keep internal/event free of an import
// cycle back to the root package; the root package's errors.go maps these
// 1:1 when surfacing them to callers.
type Code uint8

const (
	CodeNone Code = iota
	CodeNoMemory
	CodeNoResource
	CodeNoReference
	CodeArgInvalid
)

// attrib bit layout: low byte is the dynamic mask, high byte is the
// reserved mask. attrib == 0 means constant (never recycled).
type attrib uint16

const (
	attrDynamic  attrib = 0x0001
	attrReserved attrib = 0x0100
)

// HeaderSize is the minimum size a caller may request from Create; it
// models "size >= sizeof(EventHeader)" from spec.md §4.E.
const HeaderSize = 16

// Header is the event's fixed prefix. The payload is the remainder of the
// block obtained from the origin allocator, accessed via Payload().
type Header struct {
	id      uint16
	ref     uint16
	attrib  attrib
	mem     memproto.MemoryObject
	block   []byte
	Producer interface{} // optional EPA back-pointer
	Size    int         // size requested from CreateI; zero for constant events
}

// NewConstant wraps an existing block as a constant event: ref_up/ref_down
// are no-ops and it is never freed by the core.
func NewConstant(id uint16, block []byte) *Header {
	return &Header{id: id, block: block}
}

// ID returns the event's application-defined identifier.
func (h *Header) ID() uint16 { return h.id }

// Payload returns the portion of the block past the fixed header prefix.
func (h *Header) Payload() []byte {
	if len(h.block) <= HeaderSize {
		return nil
	}
	return h.block[HeaderSize:]
}

// IsConstant reports whether ref/reserved tracking is disabled for this
// event (attrib == 0).
func (h *Header) IsConstant() bool { return h.attrib == 0 }

// IsReserved reports whether the event's storage is pinned despite a zero
// refcount.
func (h *Header) IsReserved() bool { return h.attrib&attrReserved != 0 }

// Ref returns the current live reference count.
func (h *Header) Ref() uint16 { return h.ref }

// RefUpI increments the reference count unless the event is constant;
// saturates at refLimit and returns CodeNoReference without mutating state
// when it would overflow.
func (h *Header) RefUpI(refLimit uint16) Code {
	if h.IsConstant() {
		return CodeNone
	}
	if h.ref >= refLimit {
		return CodeNoReference
	}
	h.ref++
	return CodeNone
}

// RefDownI decrements the reference count unless the event is constant.
// Callers are responsible for reclaiming storage once the count reaches
// zero and the reserved bit is clear — see MaybeDestroyI.
func (h *Header) RefDownI() {
	if h.IsConstant() {
		return
	}
	if h.ref > 0 {
		h.ref--
	}
}

// MaybeDestroyI reclaims the event's storage iff it is dynamic, at zero
// references, and not reserved. It is a no-op otherwise, so callers can
// call it unconditionally after every RefDownI.
func (h *Header) MaybeDestroyI() {
	if h.IsConstant() || h.ref != 0 || h.IsReserved() {
		return
	}
	h.destroyI()
}

func (h *Header) destroyI() {
	if h.mem != nil {
		h.mem.Free(h.block)
	}
}

// ReserveI sets the reserved bit: a ref_down reaching zero will not
// reclaim the event's storage while reserved.
func (h *Header) ReserveI() {
	if h.IsConstant() {
		return
	}
	h.attrib |= attrReserved
}

// UnlockI clears the reserved bit, reclaiming immediately if the
// refcount is already zero.
func (h *Header) UnlockI() {
	if h.IsConstant() {
		return
	}
	h.attrib &^= attrReserved
	h.MaybeDestroyI()
}

// Forward re-tags an existing event with a new id without reallocating,
// the nevent_forward supplemented feature. It requires the event have at
// most one live reference, since retagging out from under a second holder
// would silently change what they think they're looking at.
func (h *Header) Forward(id uint16) Code {
	if h.ref > 1 {
		return CodeArgInvalid
	}
	h.id = id
	return CodeNone
}

// poolEntry pairs a registered allocator with the block size the registry
// sorts on, since not every memproto.MemoryObject variant reports one
// (BlockSize() == 0 for heap/static/libc).
type poolEntry struct {
	mo        memproto.MemoryObject
	blockSize int
}

// Registry is the global event pool registry: up to maxPools allocators
// kept sorted by block size ascending, plus an optional fallback used when
// no registered pool's block size is large enough for a request.
type Registry struct {
	entries  []poolEntry
	maxPools int
	fallback memproto.MemoryObject
}

// NewRegistry returns an empty registry accepting up to maxPools entries.
func NewRegistry(maxPools int) *Registry {
	return &Registry{maxPools: maxPools}
}

// SetFallback installs the allocator used when no registered pool fits a
// request (typically a Heap or Libc allocator).
func (r *Registry) SetFallback(mo memproto.MemoryObject) {
	r.fallback = mo
}

// RegisterPool inserts mo into the registry in block-size-ascending order.
// Returns CodeNoResource if the registry is already at capacity.
func (r *Registry) RegisterPool(mo memproto.MemoryObject) Code {
	if len(r.entries) >= r.maxPools {
		return CodeNoResource
	}
	entry := poolEntry{mo: mo, blockSize: mo.BlockSize()}
	i := 0
	for i < len(r.entries) && r.entries[i].blockSize <= entry.blockSize {
		i++
	}
	r.entries = append(r.entries, poolEntry{})
	copy(r.entries[i+1:], r.entries[i:])
	r.entries[i] = entry
	return CodeNone
}

// UnregisterPool removes mo from the registry, the nevent_unregister_mem
// supplemented feature.
func (r *Registry) UnregisterPool(mo memproto.MemoryObject) {
	for i, e := range r.entries {
		if e.mo == mo {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// findPool returns the smallest registered pool whose block size is
// greater than or equal to size, or nil if none fits.
func (r *Registry) findPool(size int) memproto.MemoryObject {
	for _, e := range r.entries {
		if e.blockSize >= size {
			return e.mo
		}
	}
	return nil
}

// CreateI allocates a new dynamic event of at least size bytes (including
// the fixed header) tagged with id, drawing from the smallest registered
// pool that fits, falling back to the registry's fallback allocator if no
// pool does.
func (r *Registry) CreateI(size int, id uint16) (*Header, Code) {
	if size < HeaderSize {
		return nil, CodeArgInvalid
	}
	mo := r.findPool(size)
	if mo == nil {
		mo = r.fallback
	}
	if mo == nil {
		return nil, CodeNoResource
	}
	block := mo.Alloc(size)
	if block == nil {
		return nil, CodeNoMemory
	}
	return &Header{id: id, attrib: attrDynamic, mem: mo, block: block, Size: size}, CodeNone
}

// sortedByBlockSize reports whether the registry's invariant (ascending
// block size) currently holds; kept only for tests that want to
// assert the property directly rather than trust RegisterPool's logic.
func (r *Registry) sortedByBlockSize() bool {
	for i := 1; i < len(r.entries); i++ {
		if r.entries[i-1].blockSize > r.entries[i].blockSize {
			return false
		}
	}
	return true
}
