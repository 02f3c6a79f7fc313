package recorder

import (
	"sync"

	audit "vigil/pkg/platform/audit"
)

// RingBuffer is a bounded, thread-safe buffer for audit records.
// When full, the oldest records are dropped to make room for new ones.
type RingBuffer struct {
	mu       sync.Mutex
	records  []audit.Record
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int

	dropped int64
}

// NewRingBuffer creates a ring buffer with the given capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 10000 // default
	}
	return &RingBuffer{
		records:  make([]audit.Record, capacity),
		capacity: capacity,
	}
}

// Enqueue adds a record, dropping the oldest if necessary. Returns the number
// of records dropped to make room (0 or 1).
func (b *RingBuffer) Enqueue(rec audit.Record) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	droppedNow := 0
	if b.count >= b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
		droppedNow = 1
	}

	b.records[b.head] = rec
	b.head = (b.head + 1) % b.capacity
	b.count++
	return droppedNow
}

// DequeueBatch removes up to n records from the buffer, oldest first.
func (b *RingBuffer) DequeueBatch(n int) []audit.Record {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}

	result := make([]audit.Record, n)
	for i := 0; i < n; i++ {
		result[i] = b.records[b.tail]
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return result
}

// Len returns the current number of records in the buffer.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped returns the total number of dropped records.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
