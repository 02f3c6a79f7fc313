package recorder

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"vigil/pkg/platform/audit"
)

func rec(n int) audit.Record {
	return audit.Record{Actor: fmt.Sprintf("actor-%d", n), Action: audit.ActionLogin}
}

func TestRingBufferFIFO(t *testing.T) {
	buf := NewRingBuffer(4)
	for i := 0; i < 3; i++ {
		assert.Zero(t, buf.Enqueue(rec(i)))
	}
	assert.Equal(t, 3, buf.Len())

	batch := buf.DequeueBatch(2)
	assert.Len(t, batch, 2)
	assert.Equal(t, "actor-0", batch[0].Actor)
	assert.Equal(t, "actor-1", batch[1].Actor)
	assert.Equal(t, 1, buf.Len())
}

func TestRingBufferDropOldestWhenFull(t *testing.T) {
	buf := NewRingBuffer(3)
	for i := 0; i < 3; i++ {
		assert.Zero(t, buf.Enqueue(rec(i)))
	}

	assert.Equal(t, 1, buf.Enqueue(rec(3)))
	assert.Equal(t, 1, buf.Enqueue(rec(4)))
	assert.Equal(t, int64(2), buf.Dropped())
	assert.Equal(t, 3, buf.Len())

	batch := buf.DequeueBatch(3)
	assert.Equal(t, "actor-2", batch[0].Actor)
	assert.Equal(t, "actor-3", batch[1].Actor)
	assert.Equal(t, "actor-4", batch[2].Actor)
}

func TestRingBufferDequeueMoreThanHeld(t *testing.T) {
	buf := NewRingBuffer(8)
	buf.Enqueue(rec(0))

	batch := buf.DequeueBatch(100)
	assert.Len(t, batch, 1)
	assert.Empty(t, buf.DequeueBatch(10))
	assert.Zero(t, buf.Len())
}

func TestRingBufferWrapAround(t *testing.T) {
	buf := NewRingBuffer(4)
	for i := 0; i < 3; i++ {
		buf.Enqueue(rec(i))
	}
	buf.DequeueBatch(2)
	for i := 3; i < 6; i++ {
		buf.Enqueue(rec(i))
	}

	batch := buf.DequeueBatch(4)
	assert.Len(t, batch, 4)
	for i, got := range batch {
		assert.Equal(t, fmt.Sprintf("actor-%d", i+2), got.Actor)
	}
}
