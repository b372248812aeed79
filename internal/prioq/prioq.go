// Package prioq implements the bucketed, O(1)-highest-priority run queue:
// an array of intrusive lists, one bitmap bit per bucket, and (for more than
// one bitmap word) a second-level group bitmap so the highest non-empty
// bucket is found in O(1) regardless of bucket count.
package prioq

import (
	"math/bits"

	"github.com/nradulovic-go/neon/internal/biaslist"
)

const wordBits = 64

// Queue is the scheduler's run queue: EPA thread records (as
// biaslist.Node values) are inserted at a priority and the highest-priority
// non-empty bucket is found without scanning.
type Queue struct {
	buckets             []biaslist.List
	bitmap              []uint64
	group               uint64
	prioritiesPerBucket int
	fifoWithinBucket    bool
}

// New builds a queue with bucketCount buckets covering priorityCount
// priority levels. When bucketCount == priorityCount each bucket holds at
// most one priority, so within-bucket order is plain FIFO; otherwise nodes
// are insertion-sorted by descending priority within their bucket.
func New(bucketCount, priorityCount int) *Queue {
	if bucketCount <= 0 || priorityCount <= 0 || priorityCount%bucketCount != 0 {
		panic("prioq: bucketCount must evenly divide priorityCount")
	}
	if bucketCount > wordBits*wordBits {
		panic("prioq: bucketCount exceeds the two-level bitmap's addressable range")
	}
	q := &Queue{
		buckets:             make([]biaslist.List, bucketCount),
		bitmap:              make([]uint64, (bucketCount+wordBits-1)/wordBits),
		prioritiesPerBucket: priorityCount / bucketCount,
		fifoWithinBucket:    bucketCount == priorityCount,
	}
	for i := range q.buckets {
		q.buckets[i].Init()
	}
	return q
}

func (q *Queue) bucketOf(priority int) int {
	return priority / q.prioritiesPerBucket
}

func (q *Queue) setBit(bucket int) {
	word, bit := bucket/wordBits, uint(bucket%wordBits)
	wasZero := q.bitmap[word] == 0
	q.bitmap[word] |= 1 << bit
	if wasZero {
		q.group |= 1 << uint(word)
	}
}

func (q *Queue) clearBit(bucket int) {
	word, bit := bucket/wordBits, uint(bucket%wordBits)
	q.bitmap[word] &^= 1 << bit
	if q.bitmap[word] == 0 {
		q.group &^= 1 << uint(word)
	}
}

// Insert places node into the bucket matching priority. node.Bias is set
// to priority so Rotate and sorted tie-breaks can use it later.
func (q *Queue) Insert(node *biaslist.Node, priority int) {
	node.Bias = priority
	bucket := q.bucketOf(priority)
	if q.buckets[bucket].IsEmpty() {
		q.setBit(bucket)
	}
	if q.fifoWithinBucket {
		q.buckets[bucket].PushBack(node)
	} else {
		q.buckets[bucket].InsertSorted(node)
	}
}

// Remove unlinks node from its current bucket (computed from node.Bias).
func (q *Queue) Remove(node *biaslist.Node) {
	bucket := q.bucketOf(node.Bias)
	biaslist.Remove(node)
	if q.buckets[bucket].IsEmpty() {
		q.clearBit(bucket)
	}
}

// Rotate removes then reinserts node at its own priority, advancing the
// head of its bucket so equal-priority threads round-robin.
func (q *Queue) Rotate(node *biaslist.Node) {
	priority := node.Bias
	q.Remove(node)
	q.Insert(node, priority)
}

// highestBit returns the index of the most-significant set bit in v, the
// word-level equivalent of the port's Log2 over the group bitmap.
func highestBit(v uint64) int {
	return 63 - bits.LeadingZeros64(v)
}

// Peek returns the head node of the highest non-empty bucket. Behavior is
// undefined (panics) when the queue is empty; callers must check IsEmpty
// first, matching the original's documented precondition.
func (q *Queue) Peek() *biaslist.Node {
	if q.group == 0 {
		panic("prioq: Peek on empty queue")
	}
	word := highestBit(q.group)
	bit := highestBit(q.bitmap[word])
	bucket := word*wordBits + bit
	return q.buckets[bucket].Sentinel().Next()
}

// IsEmpty reports whether every bucket is empty.
func (q *Queue) IsEmpty() bool {
	return q.group == 0
}
