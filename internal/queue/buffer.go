package queue

import (
	"context"
	"sync"
)

// Buffer is a thread-safe ring buffer that doubles its capacity when it
// reaches 70% full. Push never blocks and never drops.
type Buffer[T any] struct {
	mu       sync.Mutex
	buf      []T
	head     int // read position
	tail     int // write position
	count    int
	capacity int
	closed   bool

	// ready is closed and replaced whenever an item arrives, so select
	// loops can wait on it alongside other channels.
	ready chan struct{}

	totalPushed int64
	totalPopped int64
	resizeCount int
}

// Stats contains buffer statistics.
type Stats struct {
	Count       int
	Capacity    int
	TotalPushed int64
	TotalPopped int64
	ResizeCount int
}

// New creates a buffer with the given initial capacity.
func New[T any](initialCapacity int) *Buffer[T] {
	if initialCapacity < 1 {
		initialCapacity = 1
	}
	return &Buffer[T]{
		buf:      make([]T, initialCapacity),
		capacity: initialCapacity,
		ready:    make(chan struct{}),
	}
}

// Push appends an item. Returns false if the buffer is closed.
func (b *Buffer[T]) Push(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	b.growIfNeeded()
	b.buf[b.tail] = item
	b.tail = (b.tail + 1) % b.capacity
	b.count++
	b.totalPushed++

	b.signal()
	return true
}

// PushFront puts an item back at the head, ahead of everything queued.
// Used to requeue a message whose send failed without breaking order.
func (b *Buffer[T]) PushFront(item T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return false
	}

	b.growIfNeeded()
	b.head = (b.head - 1 + b.capacity) % b.capacity
	b.buf[b.head] = item
	b.count++
	b.totalPushed++

	b.signal()
	return true
}

// Pop removes and returns the head item without blocking.
func (b *Buffer[T]) Pop() (T, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.popLocked()
}

// Receive blocks until an item is available, the buffer is closed and
// drained, or ctx is done.
func (b *Buffer[T]) Receive(ctx context.Context) (T, bool) {
	for {
		b.mu.Lock()
		if b.count > 0 {
			item, ok := b.popLocked()
			b.mu.Unlock()
			return item, ok
		}
		if b.closed {
			b.mu.Unlock()
			var zero T
			return zero, false
		}
		ready := b.ready
		b.mu.Unlock()

		select {
		case <-ready:
		case <-ctx.Done():
			var zero T
			return zero, false
		}
	}
}

// Ready returns a channel that is closed when the next item is pushed or
// the buffer is closed.
func (b *Buffer[T]) Ready() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count > 0 || b.closed {
		done := make(chan struct{})
		close(done)
		return done
	}
	return b.ready
}

// Drain removes up to max items (all when max <= 0) in FIFO order.
func (b *Buffer[T]) Drain(max int) []T {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}

	n := b.count
	if max > 0 && max < n {
		n = max
	}

	result := make([]T, n)
	for i := 0; i < n; i++ {
		result[i], _ = b.popLocked()
	}
	return result
}

// Close closes the buffer. After closing, Push returns false; remaining
// items can still be drained.
func (b *Buffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.ready)
}

// Len returns the current number of items.
func (b *Buffer[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Stats returns buffer statistics.
func (b *Buffer[T]) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return Stats{
		Count:       b.count,
		Capacity:    b.capacity,
		TotalPushed: b.totalPushed,
		TotalPopped: b.totalPopped,
		ResizeCount: b.resizeCount,
	}
}

// popLocked must be called with the lock held.
func (b *Buffer[T]) popLocked() (T, bool) {
	var zero T
	if b.count == 0 {
		return zero, false
	}
	item := b.buf[b.head]
	b.buf[b.head] = zero // clear reference for GC
	b.head = (b.head + 1) % b.capacity
	b.count--
	b.totalPopped++
	return item, true
}

// signal wakes waiters. Must be called with the lock held.
func (b *Buffer[T]) signal() {
	close(b.ready)
	b.ready = make(chan struct{})
}

// growIfNeeded doubles the capacity once the next item would reach 70%.
// Must be called with the lock held.
func (b *Buffer[T]) growIfNeeded() {
	threshold := (b.capacity * 70) / 100
	if threshold < 1 {
		threshold = 1
	}
	if b.count+1 < threshold && b.count < b.capacity {
		return
	}

	newCapacity := b.capacity * 2
	newBuf := make([]T, newCapacity)
	if b.count > 0 {
		if b.head < b.tail {
			copy(newBuf, b.buf[b.head:b.tail])
		} else {
			n := copy(newBuf, b.buf[b.head:])
			copy(newBuf[n:], b.buf[:b.tail])
		}
	}

	b.buf = newBuf
	b.head = 0
	b.tail = b.count
	b.capacity = newCapacity
	b.resizeCount++
}
