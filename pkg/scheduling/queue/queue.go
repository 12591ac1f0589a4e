package queue

import (
	"context"
	"fmt"
	"strings"
	"sync"

	dserrors "github.com/vnykmshr/dispatch/pkg/common/errors"
	"github.com/vnykmshr/dispatch/pkg/common/validation"
)

// Policy defines how a bounded queue handles a submission when it is full.
type Policy int

const (
	// Block makes the submitter wait until space frees, the queue closes, or
	// its context ends.
	Block Policy = iota

	// Reject fails the submission immediately with errors.ErrFull.
	Reject
)

func (p Policy) String() string {
	switch p {
	case Block:
		return "block"
	case Reject:
		return "reject"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy converts "block" or "reject" (case-insensitive) into a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "block", "":
		return Block, nil
	case "reject":
		return Reject, nil
	default:
		return Block, dserrors.NewValidationError("queue", "Policy", s, "unknown overflow policy").
			WithHint(`use "block" or "reject"`)
	}
}

// Config holds configuration for a Queue.
type Config struct {
	// Capacity is the maximum number of queued items. Zero means unbounded.
	Capacity int

	// Policy applies when a bounded queue is full. Ignored when unbounded.
	Policy Policy
}

// Stats holds counters describing queue activity.
type Stats struct {
	// Submitted is the number of items accepted.
	Submitted int64

	// Taken is the number of items handed to takers.
	Taken int64

	// RejectedFull is the number of submissions refused with ErrFull.
	RejectedFull int64

	// RejectedClosed is the number of submissions refused with ErrClosed.
	RejectedClosed int64

	// BlockedSubmits is the number of submissions that had to wait for space.
	BlockedSubmits int64

	// HighWater is the largest number of items queued at once.
	HighWater int

	// Len is the number of items queued when the snapshot was taken.
	Len int

	// Closed reports whether Close had been called.
	Closed bool
}

// Queue is a FIFO shared by many producers and many takers. A single mutex
// guards the buffer; producers and takers wait on separate condition
// variables.
type Queue[T any] struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond

	buffer   []T
	head     int
	count    int
	capacity int
	policy   Policy
	closed   bool

	stats Stats
}

const initialUnboundedSize = 16

// New creates a queue with the given capacity and the Block policy. It panics
// on a negative capacity.
func New[T any](capacity int) *Queue[T] {
	q, err := NewWithConfig[T](Config{Capacity: capacity, Policy: Block})
	if err != nil {
		panic(err)
	}
	return q
}

// NewWithConfig creates a queue with the specified configuration.
func NewWithConfig[T any](config Config) (*Queue[T], error) {
	if err := validation.ValidateNonNegative("queue", "Capacity", config.Capacity); err != nil {
		return nil, err
	}
	if config.Policy != Block && config.Policy != Reject {
		return nil, dserrors.NewValidationError("queue", "Policy", config.Policy, "unknown overflow policy")
	}

	size := config.Capacity
	if size == 0 {
		size = initialUnboundedSize
	}

	q := &Queue[T]{
		buffer:   make([]T, size),
		capacity: config.Capacity,
		policy:   config.Policy,
	}
	q.notEmpty = sync.NewCond(&q.mu)
	q.notFull = sync.NewCond(&q.mu)

	return q, nil
}

// Submit appends item to the queue.
//
// It returns errors.ErrClosed once Close has been called. When a bounded
// queue is full, the Reject policy returns errors.ErrFull and the Block
// policy waits for space; a wait interrupted by ctx returns the context's
// error and the item is not enqueued.
func (q *Queue[T]) Submit(ctx context.Context, item T) error {
	if ctx == nil {
		ctx = context.Background()
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.stats.RejectedClosed++
		return dserrors.ErrClosed
	}

	if q.fullLocked() {
		if q.policy == Reject {
			q.stats.RejectedFull++
			return dserrors.ErrFull
		}

		q.stats.BlockedSubmits++
		if ctx.Done() != nil {
			stop := context.AfterFunc(ctx, q.wake)
			defer stop()
		}

		for q.fullLocked() && !q.closed {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("queue: submit canceled: %w", err)
			}
			q.notFull.Wait()
		}

		if q.closed {
			q.stats.RejectedClosed++
			return dserrors.ErrClosed
		}
	}

	q.pushLocked(item)
	return nil
}

// TrySubmit appends item without ever blocking. It returns errors.ErrFull
// when a bounded queue is full, whatever the configured policy.
func (q *Queue[T]) TrySubmit(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		q.stats.RejectedClosed++
		return dserrors.ErrClosed
	}
	if q.fullLocked() {
		q.stats.RejectedFull++
		return dserrors.ErrFull
	}

	q.pushLocked(item)
	return nil
}

// Take removes and returns the oldest item, blocking while the queue is open
// and empty. It returns false only once the queue is closed and drained.
func (q *Queue[T]) Take() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.notEmpty.Wait()
	}

	if q.count == 0 {
		var zero T
		return zero, false
	}

	return q.popLocked(), true
}

// TakeContext is Take with cancellation. On cancellation it returns the
// context's error; otherwise it behaves exactly like Take.
func (q *Queue[T]) TakeContext(ctx context.Context) (T, bool, error) {
	var zero T

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 && !q.closed && ctx.Done() != nil {
		stop := context.AfterFunc(ctx, q.wake)
		defer stop()
	}

	for q.count == 0 && !q.closed {
		if err := ctx.Err(); err != nil {
			return zero, false, err
		}
		q.notEmpty.Wait()
	}

	if q.count == 0 {
		return zero, false, nil
	}

	item := q.popLocked()
	return item, true, nil
}

// TryTake removes and returns the oldest item if one is queued.
func (q *Queue[T]) TryTake() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.popLocked(), true
}

// Close stops the queue from accepting items and wakes every blocked taker
// and submitter. Items already queued stay retrievable. Close is idempotent.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

// IsClosed reports whether Close has been called.
func (q *Queue[T]) IsClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Cap returns the configured capacity; zero means unbounded.
func (q *Queue[T]) Cap() int {
	return q.capacity
}

// Policy returns the overflow policy.
func (q *Queue[T]) Policy() Policy {
	return q.policy
}

// Stats returns a snapshot of the queue counters.
func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()

	stats := q.stats
	stats.Len = q.count
	stats.Closed = q.closed
	return stats
}

// wake broadcasts on both conditions so context-bound waiters re-check.
func (q *Queue[T]) wake() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.notEmpty.Broadcast()
	q.notFull.Broadcast()
}

func (q *Queue[T]) fullLocked() bool {
	return q.capacity > 0 && q.count >= q.capacity
}

// pushLocked adds a value to the tail (must hold lock).
func (q *Queue[T]) pushLocked(item T) {
	if q.count == len(q.buffer) {
		q.growLocked()
	}
	q.buffer[(q.head+q.count)%len(q.buffer)] = item
	q.count++
	q.stats.Submitted++
	if q.count > q.stats.HighWater {
		q.stats.HighWater = q.count
	}
	q.notEmpty.Signal()
}

// popLocked removes a value from the head (must hold lock).
func (q *Queue[T]) popLocked() T {
	var zero T
	item := q.buffer[q.head]
	q.buffer[q.head] = zero // Clear reference
	q.head = (q.head + 1) % len(q.buffer)
	q.count--
	q.stats.Taken++
	q.notFull.Signal()
	return item
}

// growLocked doubles an unbounded buffer, unrolling the ring (must hold lock).
func (q *Queue[T]) growLocked() {
	grown := make([]T, len(q.buffer)*2)
	n := copy(grown, q.buffer[q.head:])
	copy(grown[n:], q.buffer[:q.head])
	q.buffer = grown
	q.head = 0
}
