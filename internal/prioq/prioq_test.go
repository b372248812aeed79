package prioq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nradulovic-go/neon/internal/biaslist"
)

func TestOneBucketPerPriorityIsFIFO(t *testing.T) {
	q := New(8, 8)
	assert.True(t, q.IsEmpty())

	a, b := &biaslist.Node{}, &biaslist.Node{}
	q.Insert(a, 3)
	q.Insert(b, 3)

	// bucketCount == priorityCount here only when prioritiesPerBucket==1,
	// which requires distinct priorities per bucket; exercise round robin
	// at a single shared priority instead via Rotate.
	require.False(t, q.IsEmpty())
	assert.Same(t, a, q.Peek())
	q.Rotate(a)
	assert.Same(t, b, q.Peek())
}

func TestHighestPriorityWins(t *testing.T) {
	q := New(8, 8)
	lo, hi := &biaslist.Node{}, &biaslist.Node{}
	q.Insert(lo, 1)
	q.Insert(hi, 5)
	assert.Same(t, hi, q.Peek())
	q.Remove(hi)
	assert.Same(t, lo, q.Peek())
}

func TestSortedBucketTieBreak(t *testing.T) {
	q := New(2, 8) // 4 priorities share each bucket -> sorted within bucket
	a := &biaslist.Node{}
	b := &biaslist.Node{}
	q.Insert(a, 2)
	q.Insert(b, 3) // same bucket (3/4==0), higher priority
	assert.Same(t, b, q.Peek())
}

func TestBitmapClearsOnLastRemove(t *testing.T) {
	q := New(8, 8)
	n := &biaslist.Node{}
	q.Insert(n, 4)
	q.Remove(n)
	assert.True(t, q.IsEmpty())
}

func TestManyBucketsSpanningMultipleWords(t *testing.T) {
	q := New(128, 128)
	n := &biaslist.Node{}
	q.Insert(n, 127)
	assert.Same(t, n, q.Peek())
}
