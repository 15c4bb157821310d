// Package util provides the small data structures the session core is
// built on: a priority heap for the outbound frame queue, a non-blocking
// counting semaphore for MAX_CONCURRENT_STREAMS accounting, and a
// non-blocking send-window tracker for SPDY/3 flow control.
package util

import (
	"container/heap"
)

// PriorityItem is implemented by values stored in a Queue. TakePrecedenceOver
// reports whether this item must be drained before other.
type PriorityItem interface {
	TakePrecedenceOver(other PriorityItem) bool
}

type priorityHeap []PriorityItem

func (q priorityHeap) Len() int { return len(q) }

func (q priorityHeap) Less(i, j int) bool {
	return q[i].TakePrecedenceOver(q[j])
}

func (q priorityHeap) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *priorityHeap) Push(x interface{}) {
	*q = append(*q, x.(PriorityItem))
}

func (q *priorityHeap) Pop() interface{} {
	old := *q
	last := len(old) - 1
	item := old[last]
	old[last] = nil
	*q = old[:last]
	return item
}

// Queue is a priority heap of pending outbound items. It is not safe for
// concurrent use: the session core that owns it is itself single-threaded
// per call, matching the engine's cooperative concurrency model.
type Queue struct {
	h priorityHeap
}

// NewQueue creates an empty priority queue with capacity reserved for size
// items.
func NewQueue(size int) *Queue {
	return &Queue{h: make(priorityHeap, 0, size)}
}

// Push inserts item in O(log n).
func (q *Queue) Push(item PriorityItem) {
	heap.Push(&q.h, item)
}

// Pop removes and returns the highest-precedence item in O(log n), or nil if
// the queue is empty.
func (q *Queue) Pop() PriorityItem {
	if len(q.h) == 0 {
		return nil
	}
	return heap.Pop(&q.h).(PriorityItem)
}

// Len reports the number of queued items.
func (q *Queue) Len() int {
	return len(q.h)
}

// RemoveMatching deletes every queued item for which match returns true,
// used to purge queued DATA/HEADERS belonging to a stream being reset.
// O(n).
func (q *Queue) RemoveMatching(match func(PriorityItem) bool) {
	q.ExtractMatching(match)
}

// ExtractMatching removes every queued item for which match returns true
// and returns them, for callers that need to act on what was discarded
// (e.g. firing a not-sent callback per cancelled SYN_STREAM) rather than
// silently dropping it. O(n).
func (q *Queue) ExtractMatching(match func(PriorityItem) bool) []PriorityItem {
	var removed []PriorityItem
	kept := q.h[:0]
	for _, item := range q.h {
		if match(item) {
			removed = append(removed, item)
			continue
		}
		kept = append(kept, item)
	}
	q.h = kept
	heap.Init(&q.h)
	return removed
}
