// Package biaslist implements the sentinel-anchored intrusive doubly
// linked list used by both the priority queue (internal/prioq) and the
// virtual timer wheel (internal/timerwheel). The original models this with
// container_of-style macro arithmetic from a bare list node back to its
// owning struct; the Go rendition carries a typed back-pointer on the node
// instead, per the "intrusive handle" design note.
package biaslist

// Node is one link in a circular doubly linked list. Owner is the typed
// back-pointer replacing container_of; Bias is the node's priority key,
// used by sorted (non-FIFO) insertion.
type Node struct {
	next, prev *Node
	Bias       int
	Owner      interface{}
}

// Next returns the node following n. If n is a list's sentinel and the
// list is empty, Next returns n itself (self-loop), matching the C
// sentinel convention where next/prev both point at the sentinel when
// empty.
func (n *Node) Next() *Node { return n.next }

// Prev returns the node preceding n.
func (n *Node) Prev() *Node { return n.prev }

// List is a sentinel node; an empty list has the sentinel pointing to
// itself in both directions.
type List struct {
	sentinel Node
}

// Init resets the list to empty. Safe to call on the zero value too, since
// NewList already does this, but exported for the cases (prioq buckets)
// that keep an array of Lists.
func (l *List) Init() {
	l.sentinel.next = &l.sentinel
	l.sentinel.prev = &l.sentinel
}

// NewList returns an initialized empty list.
func NewList() *List {
	l := &List{}
	l.Init()
	return l
}

// Sentinel returns the list's anchor node. Iteration starts at
// Sentinel().Next() and ends when it returns to Sentinel().
func (l *List) Sentinel() *Node { return &l.sentinel }

// IsEmpty reports whether the list has no non-sentinel nodes.
func (l *List) IsEmpty() bool {
	return l.sentinel.next == &l.sentinel
}

// AddAfter splices n in immediately after at.
func AddAfter(at, n *Node) {
	n.next = at.next
	n.prev = at
	at.next.prev = n
	at.next = n
}

// AddBefore splices n in immediately before at.
func AddBefore(at, n *Node) {
	AddAfter(at.prev, n)
}

// PushBack appends n at the tail of the list (before the sentinel),
// i.e. FIFO order when iterating from the head.
func (l *List) PushBack(n *Node) {
	AddBefore(&l.sentinel, n)
}

// PushFront inserts n at the head of the list.
func (l *List) PushFront(n *Node) {
	AddAfter(&l.sentinel, n)
}

// Remove unlinks n from whatever list it is currently on and clears its
// links, so Linked(n) reports false afterwards. n must be linked: calling
// Remove on an unlinked node dereferences its nil links and panics, so
// callers that are unsure check Linked first.
func Remove(n *Node) {
	n.prev.next = n.next
	n.next.prev = n.prev
	n.next = nil
	n.prev = nil
}

// Linked reports whether n is currently part of some list.
func Linked(n *Node) bool {
	return n.next != nil
}

// InsertSorted inserts n into the list in descending-Bias order (highest
// bias first), with ties placed after existing equal-bias nodes — this is
// the "insertion by strict descending-priority key, ties after existing
// equals" tie-break spec.md §4.B requires for buckets that don't share a
// 1:1 priority-to-bucket mapping.
func (l *List) InsertSorted(n *Node) {
	cur := l.sentinel.next
	for cur != &l.sentinel && cur.Bias >= n.Bias {
		cur = cur.next
	}
	AddBefore(cur, n)
}
