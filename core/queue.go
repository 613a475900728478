package core

import "sync/atomic"

// queueNode is one link in a lock-free MPSC queue. Wrapping every posted
// value in its own node gives producers a distinguishable identity to
// compare against after enqueue (see queue.Post), which plain function
// values or interfaces cannot provide by themselves.
type queueNode[T any] struct {
	value T
	next  atomic.Pointer[queueNode[T]]
}

// queue is an unbounded multi-producer, single-consumer FIFO queue.
// Any goroutine may call Post, PeekHead and IsEmpty (the answer of the
// latter two may be stale by the time it is used); only one goroutine
// at a time (the owning scheduler) may call TryDequeue.
type queue[T any] struct {
	head atomic.Pointer[queueNode[T]]
	tail atomic.Pointer[queueNode[T]]
}

func newQueue[T any]() *queue[T] {
	dummy := &queueNode[T]{}
	q := &queue[T]{}
	q.head.Store(dummy)
	q.tail.Store(dummy)
	return q
}

// Post appends value to the tail of the queue and returns the node that
// now holds it. Producers compare this returned node's identity against
// PeekHead to detect whether the actor was idle right before this post.
func (q *queue[T]) Post(value T) *queueNode[T] {
	n := &queueNode[T]{value: value}
	for {
		tail := q.tail.Load()
		next := tail.next.Load()
		if next == nil {
			if tail.next.CompareAndSwap(nil, n) {
				q.tail.CompareAndSwap(tail, n)
				return n
			}
			continue
		}
		// Another producer linked a node but hasn't advanced tail yet; help it along.
		q.tail.CompareAndSwap(tail, next)
	}
}

// PeekHead returns the first unconsumed node, or nil if the queue is
// empty. Safe to call from any goroutine; the node it returns may already
// have been dequeued by the consumer by the time the caller inspects it.
func (q *queue[T]) PeekHead() *queueNode[T] {
	return q.head.Load().next.Load()
}

// TryDequeue removes and returns the next value. Consumer-only.
func (q *queue[T]) TryDequeue() (T, bool) {
	head := q.head.Load()
	next := head.next.Load()
	if next == nil {
		var zero T
		return zero, false
	}
	q.head.Store(next)
	value := next.value
	var zero T
	next.value = zero // release reference for GC
	return value, true
}

// IsEmpty reports whether the queue currently has no unconsumed entries.
// Consumer-only for a linearizable answer; producers may call it too but
// should not rely on the result staying accurate.
func (q *queue[T]) IsEmpty() bool {
	return q.head.Load().next.Load() == nil
}
