// Package queue provides the FIFO handoff between the acceptor and the
// worker pool: one producer appends connection handles, W consumers block
// until one is available.
package queue

import (
	"context"
	"math"
	"sync"

	"github.com/agilira/go-errors"
	"golang.org/x/sync/semaphore"
)

// ErrCodeQueueInvalid is returned by Push and Pop after Invalidate.
const ErrCodeQueueInvalid errors.ErrorCode = "CREAM_QUEUE_INVALID"

// NewErrQueueInvalid reports an operation on an invalidated queue.
func NewErrQueueInvalid(operation string) error {
	return errors.NewWithField(ErrCodeQueueInvalid, "queue has been invalidated", "operation", operation)
}

// IsInvalid reports whether err is a post-invalidation queue error.
func IsInvalid(err error) bool { return errors.HasCode(err, ErrCodeQueueInvalid) }

// Queue is a strict-FIFO multi-producer/multi-consumer handoff. Items are
// counted by a weighted semaphore so consumers park without spinning; the
// list itself is guarded by a mutex. Fairness between consumers is whatever
// the semaphore provides.
type Queue[T any] struct {
	mu      sync.Mutex
	head    *node[T]
	tail    *node[T]
	invalid bool

	// items counts queued entries. The semaphore starts fully acquired, so
	// Pop blocks until a Push releases a unit.
	items *semaphore.Weighted

	// ctx is canceled by Invalidate to release parked consumers.
	ctx    context.Context
	cancel context.CancelFunc
}

type node[T any] struct {
	item T
	next *node[T]
}

// New constructs an empty queue.
func New[T any]() *Queue[T] {
	items := semaphore.NewWeighted(math.MaxInt64)
	// Drain the full weight up front; each Push hands one unit back.
	if !items.TryAcquire(math.MaxInt64) {
		panic("queue: fresh semaphore must be acquirable")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Queue[T]{items: items, ctx: ctx, cancel: cancel}
}

// Push appends item and wakes at most one parked consumer.
func (q *Queue[T]) Push(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.invalid {
		return NewErrQueueInvalid("push")
	}
	n := &node[T]{item: item}
	if q.tail == nil {
		q.head = n
	} else {
		q.tail.next = n
	}
	q.tail = n
	q.items.Release(1)
	return nil
}

// Pop blocks until an item is available, then removes and returns the head.
// It fails only after Invalidate; there is no timeout.
func (q *Queue[T]) Pop() (T, error) {
	var zero T
	if err := q.items.Acquire(q.ctx, 1); err != nil {
		return zero, NewErrQueueInvalid("pop")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.invalid {
		// The unit we consumed belonged to a drained item.
		return zero, NewErrQueueInvalid("pop")
	}
	// One semaphore unit per queued item, so head is non-nil here.
	n := q.head
	q.head = n.next
	if q.head == nil {
		q.tail = nil
	}
	return n.item, nil
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for cur := q.head; cur != nil; cur = cur.next {
		n++
	}
	return n
}

// Invalidate drains the queue, calling destroy on each remaining item, and
// permanently disables it. Parked consumers are released with an error;
// subsequent Push and Pop fail.
func (q *Queue[T]) Invalidate(destroy func(T)) error {
	q.mu.Lock()
	if q.invalid {
		q.mu.Unlock()
		return NewErrQueueInvalid("invalidate")
	}
	q.invalid = true
	for cur := q.head; cur != nil; cur = cur.next {
		if destroy != nil {
			destroy(cur.item)
		}
		// Reclaim the unit so counts stay consistent with the list.
		q.items.TryAcquire(1)
	}
	q.head, q.tail = nil, nil
	q.mu.Unlock()

	q.cancel()
	return nil
}
