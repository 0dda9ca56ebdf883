package pipeline

import (
	"sync"

	"quote-observer/src/models"
	"quote-observer/src/utils"
)

// OverflowPolicy decides what Offer does when the queue is full.
type OverflowPolicy string

const (
	// DropOldest evicts the oldest queued quote and counts it as dropped.
	DropOldest OverflowPolicy = "drop_oldest"
	// Block makes the producer wait for space or for the queue to close.
	Block OverflowPolicy = "block"
)

// Queue is the bounded FIFO between the stream supervisor and the consumer.
// It has a single consumer.
type Queue struct {
	mu       sync.Mutex
	buf      *utils.RingBuffer[models.MQuote]
	policy   OverflowPolicy
	closed   bool
	dropped  uint64
	notEmpty chan struct{}
	notFull  chan struct{}
	done     chan struct{}

	// OnDrop runs once per dropped quote, outside the lock. Set before use.
	OnDrop func()
}

// -----------------------------------------------------------------------------

func NewQueue(capacity int, policy OverflowPolicy) *Queue {
	if policy != Block {
		policy = DropOldest
	}
	return &Queue{
		buf:      utils.NewRingBuffer[models.MQuote](capacity),
		policy:   policy,
		notEmpty: make(chan struct{}, 1),
		notFull:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// -----------------------------------------------------------------------------

// Offer enqueues q. It returns false when q was rejected because the queue is
// closed; such quotes count as dropped.
func (qu *Queue) Offer(q models.MQuote) bool {
	for {
		qu.mu.Lock()
		if qu.closed {
			qu.dropped++
			qu.mu.Unlock()
			qu.drop()
			return false
		}

		if !qu.buf.IsFull() {
			qu.buf.Push(q)
			qu.mu.Unlock()
			signal(qu.notEmpty)
			return true
		}

		if qu.policy == DropOldest {
			qu.buf.Push(q) // evicts the oldest
			qu.dropped++
			qu.mu.Unlock()
			qu.drop()
			signal(qu.notEmpty)
			return true
		}

		qu.mu.Unlock()
		select {
		case <-qu.notFull:
		case <-qu.done:
		}
	}
}

func (qu *Queue) drop() {
	if qu.OnDrop != nil {
		qu.OnDrop()
	}
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// -----------------------------------------------------------------------------

// TryReceive dequeues the oldest quote without waiting.
func (qu *Queue) TryReceive() (models.MQuote, bool) {
	qu.mu.Lock()
	q, ok := qu.buf.Pop()
	qu.mu.Unlock()

	if ok {
		signal(qu.notFull)
	}
	return q, ok
}

// Ready fires after an Offer. It may fire spuriously; follow with TryReceive.
func (qu *Queue) Ready() <-chan struct{} {
	return qu.notEmpty
}

// -----------------------------------------------------------------------------

// Close stops accepting quotes. Queued quotes stay available to TryReceive.
func (qu *Queue) Close() {
	qu.mu.Lock()
	defer qu.mu.Unlock()
	if !qu.closed {
		qu.closed = true
		close(qu.done)
	}
}

// Discard empties the queue, counts the discarded quotes as dropped and
// returns how many there were.
func (qu *Queue) Discard() int {
	qu.mu.Lock()
	n := qu.buf.Size()
	qu.buf.Clear()
	qu.dropped += uint64(n)
	qu.mu.Unlock()

	for i := 0; i < n; i++ {
		qu.drop()
	}
	return n
}

// -----------------------------------------------------------------------------

func (qu *Queue) Len() int {
	qu.mu.Lock()
	defer qu.mu.Unlock()
	return qu.buf.Size()
}

// Dropped returns the number of quotes lost to overflow, late offers after
// Close and Discard.
func (qu *Queue) Dropped() uint64 {
	qu.mu.Lock()
	defer qu.mu.Unlock()
	return qu.dropped
}
